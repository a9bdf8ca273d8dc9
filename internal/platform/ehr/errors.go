package ehr

import (
	"errors"
	"fmt"

	"github.com/chartview/chartview/internal/platform/fhir"
)

var (
	// ErrNoSession means no usable credentials exist for the call: either
	// the access token was never set, or a refresh was needed and no
	// refresh token remained. The caller must send the user back to login.
	ErrNoSession = errors.New("no active session")

	// ErrSessionExpired means the refresh grant itself was rejected. The
	// token store has been cleared; only a fresh login can recover.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthorized means the remote kept answering 401 after the one
	// allowed refresh-and-retry cycle.
	ErrUnauthorized = errors.New("unauthorized by remote api")

	// ErrNotFound maps the remote's 404 for a single resource.
	ErrNotFound = errors.New("resource not found")
)

// RemoteError carries any other non-2xx remote status with a sanitized
// message. Raw remote payloads never travel in it.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("remote api error (status %d): %s", e.StatusCode, e.Message)
}

// remoteError builds the typed error for a failed remote response,
// extracting a sanitized message from the body when one is recognizable.
func remoteError(status int, body []byte) error {
	msg := fhir.OutcomeMessage(body)
	return &RemoteError{StatusCode: status, Message: msg}
}
