package exam

import (
	"errors"
	"fmt"
)

var (
	ErrTestNotFound       = errors.New("test not found")
	ErrNoQuestions        = errors.New("test has no questions")
	ErrIndexOutOfRange    = errors.New("question index out of range")
	ErrOptionOutOfRange   = errors.New("option index out of range")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrSessionClosed      = errors.New("session is no longer in progress")
	ErrNothingToRetry     = errors.New("no failed submission to retry")
	ErrSessionNotFound    = errors.New("exam session not found")
	ErrSessionForbidden   = errors.New("exam session belongs to another user")
	ErrSubjectMismatch    = errors.New("test does not belong to the requested subject")
)

// RecordError reports a stored question that cannot be used in a session.
type RecordError struct {
	QuestionID int64
	Field      string
	Reason     string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("question %d: malformed %s: %s", e.QuestionID, e.Field, e.Reason)
}

// PersistError wraps a failed write of a scored result. The score itself is
// valid; only the durable record is missing.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "persist result: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
