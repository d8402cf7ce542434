// ABOUTME: Error kinds returned by the agent client
// ABOUTME: UnauthorizedError for HTTP 401, RequestError for every other failure

package agentclient

import "errors"

// Fallback messages used when no better message is available.
const (
	MsgUnauthorized = "Unauthorized access"
	MsgQueryFailed  = "Failed to fetch response"
	MsgResetFailed  = "Failed to reset agent"
)

// UnauthorizedError is returned when the agent service answers HTTP 401.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// RequestError is returned for transport failures, non-401 HTTP errors and
// malformed response bodies. StatusCode is zero when no response was received.
type RequestError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is, or wraps, an *UnauthorizedError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

// messageOr returns msg, or fallback when msg is empty.
func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
