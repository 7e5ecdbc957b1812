package oauth

import "fmt"

// RefreshReason says why a refresh grant failed
type RefreshReason string

const (
	// RejectedByProvider means the token endpoint answered with a non-success status
	RejectedByProvider RefreshReason = "RejectedByProvider"
	// Transport means the token endpoint could not be reached
	Transport RefreshReason = "Transport"
)

// RefreshError is returned by Refresh. It is terminal for the current batch cycle.
type RefreshError struct {
	UserID     string
	Reason     RefreshReason
	StatusCode int
	Err        error
}

func (e *RefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh for user %s failed (%s, status %d): %v", e.UserID, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token refresh for user %s failed (%s): %v", e.UserID, e.Reason, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
