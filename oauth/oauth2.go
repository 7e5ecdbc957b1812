package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Scope granted to headless presence sessions
const Scope = "sdk.social_layer"

// Credentials is a rotated access/refresh token pair
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// OAuth2Service exchanges stored refresh tokens against the provider's token endpoint
type OAuth2Service struct {
	config     oauth2.Config
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewOAuth2Service creates a new OAuth2Service for the given token endpoint
func NewOAuth2Service(clientID, clientSecret, tokenURL string, logger *zap.SugaredLogger) *OAuth2Service {
	return &OAuth2Service{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{Scope},
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
				// client_id and client_secret travel in the form body
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Named("oauth"),
	}
}

// Refresh performs a single refresh_token grant. The old refresh token must be
// considered spent once this returns successfully.
func (o *OAuth2Service) Refresh(ctx context.Context, userID, refreshToken string) (*Credentials, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	source := o.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		refreshErr := classify(userID, err)
		o.logger.Warnw("token refresh failed", "user_id", userID, "reason", refreshErr.Reason, "status", refreshErr.StatusCode)
		return nil, refreshErr
	}

	return &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

func classify(userID string, err error) *RefreshError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &RefreshError{UserID: userID, Reason: RejectedByProvider, StatusCode: status, Err: err}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RefreshError{UserID: userID, Reason: Transport, Err: err}
	}

	// a 2xx response the library could not use, e.g. no access_token
	return &RefreshError{UserID: userID, Reason: RejectedByProvider, Err: fmt.Errorf("unusable token response: %w", err)}
}
