package presence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teal-fm/beacon/metrics"
	"github.com/teal-fm/beacon/util/wirecase"
)

const (
	defaultAPIBaseURL = "https://discord.com/api/v10"

	headlessSessionsPath = "/users/@me/headless-sessions"
	deletePath           = "/users/@me/headless-sessions/delete"
	mePath               = "/users/@me"
)

// UpdateResult is the upstream answer to a headless session update
type UpdateResult struct {
	Token string `json:"token"`
	// Activities as echoed back, keys converted to camelCase
	Activities []map[string]any `json:"activities"`
}

type updateRequest struct {
	Activities []Activity `json:"activities"`
	Token      *string    `json:"token,omitempty"`
}

type deleteRequest struct {
	Token *string `json:"token,omitempty"`
}

// Client talks to the headless session endpoints of the presence API
type Client struct {
	apiBaseURL    string
	applicationID string
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *zap.SugaredLogger
}

// NewClient creates a presence API client. requestsPerSecond <= 0 disables pacing.
func NewClient(apiBaseURL, applicationID string, requestsPerSecond float64, logger *zap.SugaredLogger) *Client {
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Client{
		apiBaseURL:    strings.TrimRight(apiBaseURL, "/"),
		applicationID: applicationID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("presence"),
	}
}

// Update replaces the activity list of the user's headless session. The prior
// session token, when present, continues that session instead of opening a new one.
func (c *Client) Update(ctx context.Context, accessToken string, activities []*Activity, sessionToken *string) (*UpdateResult, error) {
	body := updateRequest{
		Activities: make([]Activity, 0, len(activities)),
		Token:      nonEmpty(sessionToken),
	}
	for _, a := range activities {
		withApp := *a
		withApp.ApplicationID = c.applicationID
		body.Activities = append(body.Activities, withApp)
	}

	status, respBody, err := c.post(ctx, "update", headlessSessionsPath, accessToken, body)
	if err != nil {
		return nil, &UpdateError{StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &UpdateError{StatusCode: status, Body: string(respBody)}
	}

	var result UpdateResult
	if err := wirecase.Decode(respBody, &result); err != nil {
		return nil, &UpdateError{StatusCode: status, Body: string(respBody), Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &result, nil
}

// Delete tears down the user's headless session. It is best effort: failures
// are logged and reported as false.
func (c *Client) Delete(ctx context.Context, accessToken string, sessionToken *string) bool {
	status, respBody, err := c.post(ctx, "delete", deletePath, accessToken, deleteRequest{Token: nonEmpty(sessionToken)})
	if err != nil {
		c.logger.Errorw("error deleting headless session", "error", err)
		return false
	}
	if status < 200 || status > 299 {
		c.logger.Errorw("failed to delete headless session", "status", status, "body", string(respBody))
		return false
	}
	return true
}

// Me returns the user that authorized the access token
func (c *Client) Me(ctx context.Context, accessToken string) (*discordgo.User, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+mePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.do("me", req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch user info failed (%d): %s", resp.StatusCode, respBody)
	}

	// discordgo tags are already snake_case
	var user discordgo.User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &user, nil
}

// post sends body as snake_case JSON and returns the status and raw response body
func (c *Client) post(ctx context.Context, endpoint, path, accessToken string, body any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	payload, err := wirecase.Encode(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(endpoint, req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func (c *Client) do(endpoint string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
