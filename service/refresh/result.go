package refresh

import (
	"errors"

	"github.com/teal-fm/beacon/oauth"
	"github.com/teal-fm/beacon/service/presence"
)

// ErrorKind classifies why a user failed a batch run
type ErrorKind string

const (
	KindConfig     ErrorKind = "ConfigError"
	KindRefresh    ErrorKind = "RefreshError"
	KindUpdate     ErrorKind = "UpdateError"
	KindUnexpected ErrorKind = "Unexpected"
	// KindCancelled marks users the batch never started before its deadline
	KindCancelled ErrorKind = "Cancelled"
)

// UserError is one failed user in a batch result
type UserError struct {
	UserID string    `json:"userId"`
	Kind   ErrorKind `json:"kind"`
	Error  string    `json:"error"`
}

// BatchResult aggregates the outcome of one batch run. Errors are in the
// order users were listed by the store.
type BatchResult struct {
	RunID   string      `json:"runId"`
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Errors  []UserError `json:"errors"`
}

// outcome is the terminal state of a single user's pipeline; nil err is success
type outcome struct {
	userID string
	err    error
}

// failure pins an explicit kind and message on an error
type failure struct {
	kind    ErrorKind
	message string
	err     error
}

func (f *failure) Error() string {
	if f.err == nil {
		return f.message
	}
	return f.message + ": " + f.err.Error()
}

func (f *failure) Unwrap() error {
	return f.err
}

func unexpected(message string, err error) error {
	return &failure{kind: KindUnexpected, message: message, err: err}
}

// classify maps a pipeline error to its kind and user-facing message
func classify(err error) (ErrorKind, string) {
	var f *failure
	if errors.As(err, &f) {
		return f.kind, f.message
	}

	var cfgErr *presence.ConfigError
	if errors.As(err, &cfgErr) {
		if errors.Is(err, presence.ErrMissingName) {
			return KindConfig, "No activity name configured"
		}
		return KindConfig, "Invalid presence configuration"
	}

	var refreshErr *oauth.RefreshError
	if errors.As(err, &refreshErr) {
		if refreshErr.Reason == oauth.Transport {
			return KindRefresh, "Token refresh exception"
		}
		return KindRefresh, "Failed to refresh token"
	}

	var updateErr *presence.UpdateError
	if errors.As(err, &updateErr) {
		return KindUpdate, "Failed to update presence"
	}

	return KindUnexpected, "Unexpected error"
}

// fold collapses per-user outcomes, kept in listing order, into a BatchResult
func fold(runID string, outcomes []outcome) *BatchResult {
	result := &BatchResult{RunID: runID, Errors: []UserError{}}
	for _, o := range outcomes {
		if o.err == nil {
			result.Success++
			continue
		}
		kind, message := classify(o.err)
		result.Failed++
		result.Errors = append(result.Errors, UserError{UserID: o.userID, Kind: kind, Error: message})
	}
	return result
}
