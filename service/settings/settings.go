package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/teal-fm/beacon/db"
	"github.com/teal-fm/beacon/models"
	"github.com/teal-fm/beacon/service/presence"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrPresenceNotUpdated means the settings were stored but publishing them failed
	ErrPresenceNotUpdated = errors.New("your settings were saved but the presence update failed")
)

// Settings is the presence form a user submits
type Settings struct {
	Enabled    bool   `json:"enabled"`
	Name       string `json:"name" validate:"required,max=128"`
	Platform   string `json:"platform,omitempty" validate:"omitempty,oneof=desktop ios android"`
	Type       int    `json:"type"`
	Details    string `json:"details,omitempty" validate:"max=128"`
	State      string `json:"state,omitempty" validate:"max=128"`
	LargeImage string `json:"largeImage,omitempty"`
	LargeText  string `json:"largeText,omitempty"`
	SmallImage string `json:"smallImage,omitempty"`
	SmallText  string `json:"smallText,omitempty"`
	Btn1Text   string `json:"btn1Text,omitempty" validate:"max=32"`
	Btn1URL    string `json:"btn1Url,omitempty" validate:"omitempty,url"`
	Btn2Text   string `json:"btn2Text,omitempty" validate:"max=32"`
	Btn2URL    string `json:"btn2Url,omitempty" validate:"omitempty,url"`
}

// ValidationError reports the first invalid field of a submission
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	UpdatePresenceSettings(ctx context.Context, user *models.User) error
	UpdateSessionToken(ctx context.Context, userID string, token *string) error
}

// SessionClient publishes or tears down a headless session
type SessionClient interface {
	Update(ctx context.Context, accessToken string, activities []*presence.Activity, sessionToken *string) (*presence.UpdateResult, error)
	Delete(ctx context.Context, accessToken string, sessionToken *string) bool
}

type Service struct {
	store    UserStore
	sessions SessionClient
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewService(store UserStore, sessions SessionClient, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("settings"),
	}
}

// Save stores the user's presence settings. An enabled presence is published
// right away with the stored access token; a disabled one has its headless
// session deleted and the stored session token cleared.
func (s *Service) Save(ctx context.Context, userID string, in Settings) (*models.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	apply(user, in)

	// an enabled user must be publishable, otherwise every batch would fail on it
	if user.Enabled {
		if _, err := presence.BuildActivity(user); err != nil {
			return nil, toValidationError(err)
		}
	}

	if err := s.store.UpdatePresenceSettings(ctx, user); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	if !user.Enabled {
		s.teardown(ctx, user)
		return user, nil
	}

	if err := s.publish(ctx, user); err != nil {
		s.logger.Errorw("failed to update presence after saving settings", "user_id", user.ID, "error", err)
		return user, fmt.Errorf("%w: %w", ErrPresenceNotUpdated, err)
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, user *models.User) error {
	activity, err := presence.BuildActivity(user)
	if err != nil {
		return err
	}

	result, err := s.sessions.Update(ctx, user.AccessToken, []*presence.Activity{activity}, user.SessionToken)
	if err != nil {
		return err
	}

	if result.Token != "" && (user.SessionToken == nil || *user.SessionToken != result.Token) {
		token := result.Token
		if err := s.store.UpdateSessionToken(ctx, user.ID, &token); err != nil {
			return fmt.Errorf("failed to persist session token: %w", err)
		}
		user.SessionToken = &token
	}
	return nil
}

func (s *Service) teardown(ctx context.Context, user *models.User) {
	if !s.sessions.Delete(ctx, user.AccessToken, user.SessionToken) {
		s.logger.Warnw("headless session not deleted", "user_id", user.ID)
	}

	if err := s.store.UpdateSessionToken(ctx, user.ID, nil); err != nil {
		s.logger.Errorw("failed to clear session token", "user_id", user.ID, "error", err)
		return
	}
	user.SessionToken = nil
}

func apply(user *models.User, in Settings) {
	user.Enabled = in.Enabled
	user.Name = optional(in.Name)
	user.Type = models.ActivityKindFromCode(in.Type)
	user.Platform = models.ParsePlatform(in.Platform)
	user.Details = optional(in.Details)
	user.State = optional(in.State)
	user.LargeImage = optional(in.LargeImage)
	user.LargeText = optional(in.LargeText)
	user.SmallImage = optional(in.SmallImage)
	user.SmallText = optional(in.SmallText)
	user.Button1Text = optional(in.Btn1Text)
	user.Button1URL = optional(in.Btn1URL)
	user.Button2Text = optional(in.Btn2Text)
	user.Button2URL = optional(in.Btn2URL)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toValidationError(err error) error {
	var cfgErr *presence.ConfigError
	if errors.As(err, &cfgErr) {
		return &ValidationError{Field: cfgErr.Field, Message: "Invalid presence: " + cfgErr.Error()}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		if fe.Field() == "Name" {
			return &ValidationError{Field: field, Message: "Name is required"}
		}
		return &ValidationError{Field: field, Message: field + " is required"}
	case "url":
		return &ValidationError{Field: field, Message: field + " must be a valid URL"}
	case "max":
		return &ValidationError{Field: field, Message: field + " must be at most " + fe.Param() + " characters"}
	case "oneof":
		return &ValidationError{Field: field, Message: field + " must be one of " + fe.Param()}
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s failed %s validation", field, fe.Tag())}
	}
}
