package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrInvalidFile
	ErrNoContent
	ErrUploadFailed
	ErrIndexFailed
	ErrUnavailable
	ErrAIUnavailable
	ErrAIRejected
)

var messages = map[int]string{
	ErrUnknown:       "internal error",
	ErrUnauthorized:  "unauthorized",
	ErrForbidden:     "access denied",
	ErrNotFound:      "not found",
	ErrInvalid:       "invalid request",
	ErrConflict:      "conflict",
	ErrTooMany:       "too many requests",
	ErrInternal:      "internal error",
	ErrInvalidFile:   "only PDF files are supported",
	ErrNoContent:     "no extractable content",
	ErrUploadFailed:  "failed to save document",
	ErrIndexFailed:   "failed to index document",
	ErrUnavailable:   "service temporarily unavailable",
	ErrAIUnavailable: "the model is temporarily unavailable",
	ErrAIRejected:    "the model refused this request",
}

// Message is the fixed user-facing text for a code.
func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ErrUnknown]
}
