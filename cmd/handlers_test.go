package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/teal-fm/beacon/db"
	"github.com/teal-fm/beacon/models"
	"github.com/teal-fm/beacon/oauth"
	"github.com/teal-fm/beacon/service/presence"
	"github.com/teal-fm/beacon/service/refresh"
	"github.com/teal-fm/beacon/service/settings"
)

func strPtr(s string) *string { return &s }

type mockRunner struct {
	result *refresh.BatchResult
	err    error
	ctxErr error
	delay  time.Duration
}

func (m *mockRunner) Run(ctx context.Context) (*refresh.BatchResult, error) {
	m.ctxErr = ctx.Err()
	time.Sleep(m.delay)
	return m.result, m.err
}

type mockSaver struct {
	userID string
	in     settings.Settings
	err    error
}

func (m *mockSaver) Save(ctx context.Context, userID string, in settings.Settings) (*models.User, error) {
	m.userID = userID
	m.in = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: userID}, nil
}

type mockUsers struct {
	user *models.User
	err  error
}

func (m *mockUsers) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return m.user, m.err
}

type mockProfiles struct {
	user *discordgo.User
	err  error
}

func (m *mockProfiles) Me(ctx context.Context, accessToken string) (*discordgo.User, error) {
	return m.user, m.err
}

func TestAPIUpdatePresences(t *testing.T) {
	t.Run("returns the batch result", func(t *testing.T) {
		runner := &mockRunner{result: &refresh.BatchResult{
			RunID:   "run-1",
			Success: 1,
			Failed:  1,
			Errors:  []refresh.UserError{{UserID: "u2", Kind: refresh.KindUpdate, Error: "Failed to update presence"}},
		}}

		rec := httptest.NewRecorder()
		apiUpdatePresences(runner, zap.NewNop().Sugar())(rec, httptest.NewRequest(http.MethodPost, "/api/update-presences", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var body struct {
			Message string              `json:"message"`
			Results refresh.BatchResult `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Invalid response body: %v", err)
		}
		if body.Message != "Batch update completed" {
			t.Errorf("Unexpected message %q", body.Message)
		}
		if body.Results.Success != 1 || body.Results.Failed != 1 {
			t.Errorf("Expected 1/1, got %d/%d", body.Results.Success, body.Results.Failed)
		}
		if len(body.Results.Errors) != 1 || body.Results.Errors[0].Kind != refresh.KindUpdate {
			t.Errorf("Unexpected errors %+v", body.Results.Errors)
		}
	})

	t.Run("client hang up does not cancel the batch", func(t *testing.T) {
		runner := &mockRunner{result: &refresh.BatchResult{RunID: "run-2"}}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/update-presences", nil).WithContext(ctx)

		rec := httptest.NewRecorder()
		apiUpdatePresences(runner, zap.NewNop().Sugar())(rec, req)

		if runner.ctxErr != nil {
			t.Errorf("Expected the batch context to outlive the request, got %v", runner.ctxErr)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("batch outlasting the write timeout still answers", func(t *testing.T) {
		runner := &mockRunner{result: &refresh.BatchResult{RunID: "run-3", Success: 2}, delay: 200 * time.Millisecond}

		srv := httptest.NewUnstartedServer(apiUpdatePresences(runner, zap.NewNop().Sugar()))
		srv.Config.WriteTimeout = 50 * time.Millisecond
		srv.Start()
		defer srv.Close()

		resp, err := http.Post(srv.URL, "application/json", nil)
		if err != nil {
			t.Fatalf("Expected a response after the write timeout, got %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Results refresh.BatchResult `json:"results"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("Invalid response body: %v", err)
		}
		if body.Results.Success != 2 {
			t.Errorf("Expected 2 successes, got %+v", body.Results)
		}
	})

	t.Run("aborted batch is a server error", func(t *testing.T) {
		runner := &mockRunner{err: errors.New("failed to list enabled users")}

		rec := httptest.NewRecorder()
		apiUpdatePresences(runner, zap.NewNop().Sugar())(rec, httptest.NewRequest(http.MethodPost, "/api/update-presences", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Internal server error") {
			t.Errorf("Unexpected body %s", rec.Body.String())
		}
	})
}

func TestAPISaveSettings(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		err      error
		expected int
	}{
		{name: "saved", body: `{"enabled":true,"name":"VS Code","type":0}`, expected: http.StatusOK},
		{name: "malformed body", body: `{"enabled":`, expected: http.StatusBadRequest},
		{name: "invalid settings", body: `{"name":""}`, err: &settings.ValidationError{Field: "name", Message: "Name is required"}, expected: http.StatusBadRequest},
		{name: "unknown user", body: `{"name":"x"}`, err: settings.ErrUserNotFound, expected: http.StatusNotFound},
		{name: "presence not updated", body: `{"enabled":true,"name":"x"}`, err: settings.ErrPresenceNotUpdated, expected: http.StatusBadGateway},
		{name: "store failure", body: `{"name":"x"}`, err: errors.New("disk full"), expected: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			saver := &mockSaver{err: tc.err}
			mux := http.NewServeMux()
			mux.HandleFunc("PUT /api/v1/users/{id}/settings", apiSaveSettings(saver, zap.NewNop().Sugar()))

			req := httptest.NewRequest(http.MethodPut, "/api/v1/users/1001/settings", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.expected {
				t.Errorf("Expected %d, got %d: %s", tc.expected, rec.Code, rec.Body.String())
			}
			if tc.expected == http.StatusOK {
				if saver.userID != "1001" {
					t.Errorf("Expected user id from the path, got %q", saver.userID)
				}
				if !saver.in.Enabled || saver.in.Name != "VS Code" {
					t.Errorf("Expected decoded settings, got %+v", saver.in)
				}
			}
		})
	}
}

func TestAPIGetUser(t *testing.T) {
	stored := &models.User{
		ID:           "1001",
		AccessToken:  "secret-access",
		RefreshToken: "secret-refresh",
		SessionToken: strPtr("S1"),
		Enabled:      true,
		Name:         strPtr("VS Code"),
		Type:         models.ActivityPlaying,
	}

	testCases := []struct {
		name        string
		users       *mockUsers
		profiles    *mockProfiles
		expected    int
		wantProfile bool
	}{
		{name: "with profile", users: &mockUsers{user: stored}, profiles: &mockProfiles{user: &discordgo.User{ID: "1001", Username: "someone"}}, expected: http.StatusOK, wantProfile: true},
		{name: "stale token", users: &mockUsers{user: stored}, profiles: &mockProfiles{err: errors.New("401")}, expected: http.StatusOK},
		{name: "missing user", users: &mockUsers{}, profiles: &mockProfiles{}, expected: http.StatusNotFound},
		{name: "store failure", users: &mockUsers{err: errors.New("locked")}, profiles: &mockProfiles{}, expected: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/v1/users/{id}", apiGetUser(tc.users, tc.profiles, zap.NewNop().Sugar()))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/1001", nil))

			if rec.Code != tc.expected {
				t.Fatalf("Expected %d, got %d", tc.expected, rec.Code)
			}
			if tc.expected != http.StatusOK {
				return
			}

			body := rec.Body.String()
			if strings.Contains(body, "secret-access") || strings.Contains(body, "secret-refresh") || strings.Contains(body, `"S1"`) {
				t.Errorf("Credentials leaked in response: %s", body)
			}

			var view userView
			if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
				t.Fatalf("Invalid response body: %v", err)
			}
			if !view.HasSession || view.Presence.Name == nil || *view.Presence.Name != "VS Code" {
				t.Errorf("Unexpected view %+v", view)
			}
			if (view.Profile != nil) != tc.wantProfile {
				t.Errorf("Expected profile present=%v, got %+v", tc.wantProfile, view.Profile)
			}
		})
	}
}

func newTestApplication(t *testing.T) *application {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	logger := zap.NewNop().Sugar()
	presenceClient := presence.NewClient("http://127.0.0.1:0", "app", 0, logger)
	oauthService := oauth.NewOAuth2Service("app", "secret", "http://127.0.0.1:0/oauth2/token", logger)

	return &application{
		database:        database,
		refreshService:  refresh.NewService(database, oauthService, presenceClient, refresh.Options{}, logger),
		settingsService: settings.NewService(database, presenceClient, logger),
		presenceClient:  presenceClient,
		apiPassword:     "hunter2",
		logger:          logger,
	}
}

func TestRoutes(t *testing.T) {
	handler := newTestApplication(t).routes()

	testCases := []struct {
		name     string
		method   string
		path     string
		auth     string
		expected int
	}{
		{name: "trigger without auth", method: http.MethodPost, path: "/api/update-presences", expected: http.StatusUnauthorized},
		{name: "trigger with wrong password", method: http.MethodPost, path: "/api/update-presences", auth: "Bearer nope", expected: http.StatusUnauthorized},
		{name: "trigger with password", method: http.MethodPost, path: "/api/update-presences", auth: "Bearer hunter2", expected: http.StatusOK},
		{name: "trigger requires POST", method: http.MethodGet, path: "/api/update-presences", auth: "Bearer hunter2", expected: http.StatusMethodNotAllowed},
		{name: "user lookup without auth", method: http.MethodGet, path: "/api/v1/users/1001", expected: http.StatusUnauthorized},
		{name: "unknown user", method: http.MethodGet, path: "/api/v1/users/1001", auth: "Bearer hunter2", expected: http.StatusNotFound},
		{name: "metrics", method: http.MethodGet, path: "/metrics", expected: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.expected {
				t.Errorf("Expected %d, got %d: %s", tc.expected, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRoutesEmptyBatch(t *testing.T) {
	handler := newTestApplication(t).routes()

	req := httptest.NewRequest(http.MethodPost, "/api/update-presences", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body struct {
		Message string              `json:"message"`
		Results refresh.BatchResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if body.Results.Success != 0 || body.Results.Failed != 0 || body.Results.RunID == "" {
		t.Errorf("Expected an empty batch with a run id, got %+v", body.Results)
	}
}
