package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned when the backend rejects the credential (HTTP 401).
// It is terminal for the current operation and never retried.
var ErrSessionExpired = errors.New("session expired")

// maxErrorBody limits how much of a response body is echoed in error strings.
const maxErrorBody = 256

// RemoteError is a non-2xx, non-401 response.
type RemoteError struct {
	Status int
	Body   []byte
}

func (e *RemoteError) Error() string {
	body := string(e.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return fmt.Sprintf("remote error: status %d", e.Status)
	}
	return fmt.Sprintf("remote error: status %d: %s", e.Status, body)
}

// NetworkError is a transport failure where no response was received.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Cause) }
func (e *NetworkError) Unwrap() error { return e.Cause }

// Retryable reports whether offering the user a retry makes sense.
// The pipeline itself never retries.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrSessionExpired) {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status >= http.StatusInternalServerError || remote.Status == http.StatusTooManyRequests
	}
	return false
}

// StatusOf returns the HTTP status carried by a RemoteError, or 0.
func StatusOf(err error) int {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status
	}
	return 0
}
