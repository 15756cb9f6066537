package apperr

import "errors"

// Business Error Codes
const (
	CodeSuccess          = 0
	CodeBadRequest       = 400
	CodeUnauthorized     = 401
	CodeForbidden        = 403
	CodeNotFound         = 404
	CodeInternalError    = 500
	CodeDatabaseError    = 1001
	CodeCacheError       = 1002
	CodeSlugExhausted    = 2001
	CodeCounterUnderflow = 2002
	CodeStaleTracker     = 2003
	CodeInvalidState     = 2004
	CodeTopicClosed      = 2005
)

// Business Errors
var (
	// ErrSlugExhausted all candidate slugs in the scope are taken.
	// Surfaced to the caller of create/rename, never retried with random suffixes.
	ErrSlugExhausted = errors.New("slug candidates exhausted in scope")

	// ErrCounterUnderflow a decrement would drive a denormalized counter
	// below zero. Indicates a missed cascade; the transaction rolls back.
	ErrCounterUnderflow = errors.New("counter underflow")

	// ErrInvalidTopicState attempted lifecycle transition outside the
	// allowed set. Reported as a no-op warning, not a request abort.
	ErrInvalidTopicState = errors.New("invalid topic state transition")

	// ErrStaleTracker transient read-tracker upsert conflict; retried once.
	ErrStaleTracker = errors.New("stale read tracker")

	ErrNotFound      = errors.New("not found")
	ErrInvalidParams = errors.New("invalid parameters")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrTopicClosed   = errors.New("topic is closed")
	ErrNoPoll        = errors.New("topic has no poll")
	ErrPollChoice    = errors.New("invalid poll choice")
)

// AppError Application Error with code and message
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError Create new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError Wrap error with code
func WrapError(err error, code int) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
	}
}

// CodeFor maps a sentinel error to its business code
func CodeFor(err error) int {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, ErrSlugExhausted):
		return CodeSlugExhausted
	case errors.Is(err, ErrCounterUnderflow):
		return CodeCounterUnderflow
	case errors.Is(err, ErrStaleTracker):
		return CodeStaleTracker
	case errors.Is(err, ErrInvalidTopicState):
		return CodeInvalidState
	case errors.Is(err, ErrTopicClosed):
		return CodeTopicClosed
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalidParams), errors.Is(err, ErrPollChoice), errors.Is(err, ErrNoPoll):
		return CodeBadRequest
	default:
		return CodeInternalError
	}
}
