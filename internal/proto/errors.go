package proto

// Error codes carried inside error envelopes.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeAuthFailed   = "AUTH_FAILED"
	CodeRoomNotFound = "ROOM_NOT_FOUND"
	CodeRoomFull     = "ROOM_FULL"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInvalidState = "INVALID_STATE"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL"
	CodeDecodeError  = "DECODE_ERROR"
)

// Error is the wire-level error payload. It doubles as a domain error
// value so hooks can return a structured rejection directly.
type Error struct {
	Code      string            `json:"code" msgpack:"code"`
	Message   string            `json:"message" msgpack:"message"`
	Retryable bool              `json:"retryable,omitempty" msgpack:"retryable,omitempty"`
	Details   map[string]string `json:"details,omitempty" msgpack:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a non-retryable protocol error.
func NewError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Internal wraps an unexpected failure as a retryable INTERNAL error.
func Internal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: CodeInternal, Message: msg, Retryable: true}
}
