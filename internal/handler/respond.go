package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/mocktest/internal/exam"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/store"
)

// ErrorPayload is the error part of every failed response. Back is set when
// the client cannot continue where it is and should offer a way back.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Back      bool   `json:"back,omitempty"`
	BackLabel string `json:"back_label,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

// Envelope wraps every JSON response.
type Envelope struct {
	OK    bool          `json:"ok"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
	Meta  Meta          `json:"meta"`
}

// apiError describes how a failure is reported to the client.
type apiError struct {
	status int
	code   string
	msgID  string
	back   bool
}

var (
	errBadRequest   = apiError{http.StatusBadRequest, "invalid_request", "ErrBadRequest", false}
	errUnauthorized = apiError{http.StatusUnauthorized, "unauthorized", "ErrUnauthorized", false}
	errForbidden    = apiError{http.StatusForbidden, "forbidden", "ErrForbidden", false}
	errNotFound     = apiError{http.StatusNotFound, "not_found", "ErrNotFound", false}
	errInternal     = apiError{http.StatusInternalServerError, "internal_error", "ErrInternal", false}
)

func writeOK(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, Envelope{
		OK:   true,
		Data: data,
		Meta: Meta{RequestID: middleware.GetReqID(r.Context())},
	})
}

// writeError reports e with a localized message. data, when non-nil, is
// sent alongside the error.
func writeError(w http.ResponseWriter, r *http.Request, e apiError, data any) {
	payload := &ErrorPayload{
		Code:    e.code,
		Message: appI18n.T(r.Context(), e.msgID),
		Back:    e.back,
	}
	if e.back {
		payload.BackLabel = appI18n.T(r.Context(), "GoBack")
	}
	writeEnvelope(w, e.status, Envelope{
		OK:    false,
		Data:  data,
		Error: payload,
		Meta:  Meta{RequestID: middleware.GetReqID(r.Context())},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// classify maps domain errors to their API representation.
func classify(err error) apiError {
	var (
		rerr *exam.RecordError
		perr *exam.PersistError
	)
	switch {
	case errors.Is(err, exam.ErrTestNotFound):
		return apiError{http.StatusNotFound, "test_not_found", "ErrTestNotFound", true}
	case errors.Is(err, exam.ErrSubjectMismatch):
		return apiError{http.StatusBadRequest, "subject_mismatch", "ErrSubjectMismatch", true}
	case errors.Is(err, exam.ErrNoQuestions):
		return apiError{http.StatusUnprocessableEntity, "no_questions", "ErrNoQuestions", true}
	case errors.As(err, &rerr):
		return apiError{http.StatusUnprocessableEntity, "malformed_question", "ErrMalformedQuestion", true}
	case errors.As(err, &perr):
		return apiError{http.StatusServiceUnavailable, "persist_failed", "ErrPersistFailed", false}
	case errors.Is(err, exam.ErrIndexOutOfRange):
		return apiError{http.StatusBadRequest, "index_out_of_range", "ErrIndexOutOfRange", false}
	case errors.Is(err, exam.ErrOptionOutOfRange):
		return apiError{http.StatusBadRequest, "option_out_of_range", "ErrOptionOutOfRange", false}
	case errors.Is(err, exam.ErrSubmissionInFlight):
		return apiError{http.StatusConflict, "submission_in_flight", "ErrSubmissionInFlight", false}
	case errors.Is(err, exam.ErrSessionClosed):
		return apiError{http.StatusConflict, "session_closed", "ErrSessionClosed", false}
	case errors.Is(err, exam.ErrNothingToRetry):
		return apiError{http.StatusConflict, "nothing_to_retry", "ErrNothingToRetry", false}
	case errors.Is(err, exam.ErrSessionNotFound):
		return apiError{http.StatusNotFound, "session_not_found", "ErrSessionNotFound", true}
	case errors.Is(err, exam.ErrSessionForbidden):
		return errForbidden
	case errors.Is(err, exam.ErrInvalidImport):
		return errBadRequest
	case errors.Is(err, store.ErrTestExists):
		return apiError{http.StatusConflict, "test_exists", "ErrTestExists", false}
	case errors.Is(err, store.ErrNotFound):
		return errNotFound
	default:
		return errInternal
	}
}

// fail logs unexpected errors and writes the classified response.
func fail(w http.ResponseWriter, r *http.Request, err error, data any) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, r, e, data)
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeJSON reads a single JSON value from the request body into dst. An
// empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}
