package workflow

import "fmt"

type ErrorCode string

const (
	ErrorNotFound           ErrorCode = "NOT_FOUND"
	ErrorPreconditionFailed ErrorCode = "PRECONDITION_FAILED"
	ErrorStore              ErrorCode = "STORE_ERROR"
	ErrorVerifier           ErrorCode = "VERIFIER_ERROR"
	ErrorAssistant          ErrorCode = "ASSISTANT_ERROR"
	ErrorInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrorSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
)

// Error describes a workflow failure. Failures with codes other than
// INVALID_INPUT and SESSION_NOT_FOUND are recovered inside the engine and
// surface only as a rendered message plus Turn.Failure.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("workflow: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("workflow: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
