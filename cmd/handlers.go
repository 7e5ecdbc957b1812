package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/teal-fm/beacon/models"
	"github.com/teal-fm/beacon/service/refresh"
	"github.com/teal-fm/beacon/service/settings"
)

type batchRunner interface {
	Run(ctx context.Context) (*refresh.BatchResult, error)
}

type settingsSaver interface {
	Save(ctx context.Context, userID string, in settings.Settings) (*models.User, error)
}

type userGetter interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

type profileFetcher interface {
	Me(ctx context.Context, accessToken string) (*discordgo.User, error)
}

func apiUpdatePresences(runner batchRunner, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// the response is only written once every user is processed, which
		// is bounded by refresh.batch_timeout rather than the server timeout
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.Debugw("Could not lift write deadline", "error", err)
		}

		// a client hanging up must not abort users mid-rotation
		result, err := runner.Run(context.WithoutCancel(r.Context()))
		if err != nil {
			logger.Errorw("Batch update error", "error", err)
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}

		jsonResponse(w, http.StatusOK, map[string]any{
			"message": "Batch update completed",
			"results": result,
		})
	}
}

func apiSaveSettings(saver settingsSaver, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("id")

		var in settings.Settings
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			jsonResponse(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body: " + err.Error()})
			return
		}

		_, err := saver.Save(r.Context(), userID, in)
		var validationErr *settings.ValidationError
		switch {
		case err == nil:
			jsonResponse(w, http.StatusOK, map[string]any{"success": true})
		case errors.As(err, &validationErr):
			jsonResponse(w, http.StatusBadRequest, map[string]any{"success": false, "error": validationErr.Message})
		case errors.Is(err, settings.ErrUserNotFound):
			jsonResponse(w, http.StatusNotFound, map[string]any{"success": false, "error": "User not found"})
		case errors.Is(err, settings.ErrPresenceNotUpdated):
			jsonResponse(w, http.StatusBadGateway, map[string]any{
				"success": false,
				"error":   "Failed to update Discord presence. Your settings were saved but the presence update failed.",
			})
		default:
			logger.Errorw("Error saving settings", "user_id", userID, "error", err)
			jsonResponse(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to save settings"})
		}
	}
}

type userView struct {
	ID         string          `json:"id"`
	Enabled    bool            `json:"enabled"`
	HasSession bool            `json:"hasSession"`
	Presence   presenceView    `json:"presence"`
	Profile    *discordgo.User `json:"profile,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type presenceView struct {
	Name       *string             `json:"name"`
	Type       models.ActivityKind `json:"type"`
	Platform   *models.Platform    `json:"platform"`
	State      *string             `json:"state"`
	Details    *string             `json:"details"`
	LargeImage *string             `json:"largeImage"`
	LargeText  *string             `json:"largeText"`
	SmallImage *string             `json:"smallImage"`
	SmallText  *string             `json:"smallText"`
	Btn1Text   *string             `json:"btn1Text"`
	Btn1URL    *string             `json:"btn1Url"`
	Btn2Text   *string             `json:"btn2Text"`
	Btn2URL    *string             `json:"btn2Url"`
}

// apiGetUser shows a user's stored presence settings without any credential.
// The Discord profile is best effort and left out when the access token is stale.
func apiGetUser(users userGetter, profiles profileFetcher, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("id")

		user, err := users.GetUserByID(r.Context(), userID)
		if err != nil {
			logger.Errorw("Error fetching user", "user_id", userID, "error", err)
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve user information"})
			return
		}
		if user == nil {
			jsonResponse(w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}

		view := userView{
			ID:         user.ID,
			Enabled:    user.Enabled,
			HasSession: user.HasSession(),
			Presence: presenceView{
				Name:       user.Name,
				Type:       user.Type,
				Platform:   user.Platform,
				State:      user.State,
				Details:    user.Details,
				LargeImage: user.LargeImage,
				LargeText:  user.LargeText,
				SmallImage: user.SmallImage,
				SmallText:  user.SmallText,
				Btn1Text:   user.Button1Text,
				Btn1URL:    user.Button1URL,
				Btn2Text:   user.Button2Text,
				Btn2URL:    user.Button2URL,
			},
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		}

		if user.AccessToken != "" {
			profile, err := profiles.Me(r.Context(), user.AccessToken)
			if err != nil {
				logger.Warnw("Could not fetch Discord profile", "user_id", userID, "error", err)
			} else {
				view.Profile = profile
			}
		}

		jsonResponse(w, http.StatusOK, view)
	}
}
