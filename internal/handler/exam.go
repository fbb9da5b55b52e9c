package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mocktest/internal/exam"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
)

// questionView is a question as shown during a session, without the key.
type questionView struct {
	ID      int64    `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type gridCell struct {
	Index  int         `json:"index"`
	Status exam.Status `json:"status"`
	Label  string      `json:"label"`
}

// examView is the client-facing state of a live session.
type examView struct {
	ID               string        `json:"id"`
	State            exam.State    `json:"state"`
	StateLabel       string        `json:"state_label"`
	Test             model.Test    `json:"test"`
	SubjectID        string        `json:"subject_id"`
	Current          int           `json:"current"`
	Total            int           `json:"total"`
	Question         *questionView `json:"question,omitempty"`
	Answer           *int          `json:"answer"`
	Flagged          bool          `json:"flagged"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Grid             []gridCell    `json:"grid"`
	Result           *model.Result `json:"result,omitempty"`
	ScoreLine        string        `json:"score_line,omitempty"`
}

var stateLabels = map[exam.State]string{
	exam.StateInProgress:    "StateInProgress",
	exam.StateSubmitting:    "StateSubmitting",
	exam.StateSubmitted:     "StateSubmitted",
	exam.StatePersistFailed: "StatePersistFailed",
	exam.StateAbandoned:     "StateAbandoned",
	exam.StateError:         "StateError",
}

var statusLabels = map[exam.Status]string{
	exam.StatusFlagged:   "StatusFlagged",
	exam.StatusAttempted: "StatusAttempted",
	exam.StatusUnvisited: "StatusUnvisited",
}

func newExamView(ctx context.Context, snap exam.Snapshot) examView {
	v := examView{
		ID:               snap.ID,
		State:            snap.State,
		StateLabel:       appI18n.T(ctx, stateLabels[snap.State]),
		Test:             snap.Test,
		SubjectID:        snap.SubjectID,
		Current:          snap.Current,
		Total:            snap.Total,
		Flagged:          snap.Flagged,
		RemainingSeconds: snap.Remaining,
		Grid:             make([]gridCell, len(snap.Grid)),
		Result:           snap.Result,
	}
	if snap.Result != nil {
		v.ScoreLine = scoreLine(ctx, *snap.Result)
	}
	if snap.State != exam.StateError {
		v.Question = &questionView{ID: snap.Question.ID, Prompt: snap.Question.Prompt, Options: snap.Question.Options}
	}
	if snap.Answer != exam.Unset {
		a := snap.Answer
		v.Answer = &a
	}
	for i, st := range snap.Grid {
		v.Grid[i] = gridCell{Index: i, Status: st, Label: appI18n.T(ctx, statusLabels[st])}
	}
	return v
}

// session resolves the {sessionID} URL parameter for the acting user.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*exam.Session, bool) {
	s, err := h.exams.Get(chi.URLParam(r, "sessionID"), principal(r))
	if err != nil {
		fail(w, r, err, nil)
		return nil, false
	}
	return s, true
}

func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, status int, s *exam.Session) {
	writeOK(w, r, status, newExamView(r.Context(), s.Snapshot()))
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	sessions := h.exams.ListFor(principal(r))
	out := make([]examView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newExamView(r.Context(), s.Snapshot()))
	}
	writeOK(w, r, http.StatusOK, out)
}

type startRequest struct {
	TestID    string `json:"test_id"`
	SubjectID string `json:"subject_id"`
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil || req.TestID == "" {
		writeError(w, r, errBadRequest, nil)
		return
	}

	if s, ok := h.exams.Resume(principal(r), req.TestID); ok {
		h.writeView(w, r, http.StatusOK, s)
		return
	}

	s, err := h.exams.Start(r.Context(), principal(r), req.TestID, req.SubjectID)
	if err != nil {
		var data any
		if s != nil {
			data = newExamView(r.Context(), s.Snapshot())
		}
		fail(w, r, err, data)
		return
	}
	h.writeView(w, r, http.StatusCreated, s)
}

func (h *Handler) handleExamView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeView(w, r, http.StatusOK, s)
}

type indexRequest struct {
	Index  *int `json:"index,omitempty"`
	Option *int `json:"option,omitempty"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req indexRequest
	if err := decodeJSON(r, &req); err != nil || req.Index == nil || req.Option == nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	if err := s.SetAnswer(*req.Index, *req.Option); err != nil {
		fail(w, r, err, nil)
		return
	}
	h.writeView(w, r, http.StatusOK, s)
}

func (h *Handler) handleFlag(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req indexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	// Without an index the current question is flagged.
	index := s.Snapshot().Current
	if req.Index != nil {
		index = *req.Index
	}
	if _, err := s.ToggleFlag(index); err != nil {
		fail(w, r, err, nil)
		return
	}
	h.writeView(w, r, http.StatusOK, s)
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.Next(); err != nil {
		fail(w, r, err, nil)
		return
	}
	h.writeView(w, r, http.StatusOK, s)
}

func (h *Handler) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.Previous(); err != nil {
		fail(w, r, err, nil)
		return
	}
	h.writeView(w, r, http.StatusOK, s)
}

func (h *Handler) handleJump(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req indexRequest
	if err := decodeJSON(r, &req); err != nil || req.Index == nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	if err := s.JumpTo(*req.Index); err != nil {
		fail(w, r, err, nil)
		return
	}
	h.writeView(w, r, http.StatusOK, s)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	_, err := s.Submit(r.Context())
	h.writeFinal(w, r, s, err)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	_, err := s.RetryPersist(r.Context())
	h.writeFinal(w, r, s, err)
}

// writeFinal reports the outcome of a submission. A failed write still
// returns the scored view so the client can show the score and offer retry.
func (h *Handler) writeFinal(w http.ResponseWriter, r *http.Request, s *exam.Session, err error) {
	var perr *exam.PersistError
	switch {
	case err == nil:
		h.writeView(w, r, http.StatusOK, s)
	case errors.As(err, &perr):
		fail(w, r, err, newExamView(r.Context(), s.Snapshot()))
	default:
		fail(w, r, err, nil)
	}
}

func (h *Handler) handleQuit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Quit(); err != nil {
		fail(w, r, err, nil)
		return
	}
	slog.Debug("exam quit via API", "session_id", s.ID())
	h.writeView(w, r, http.StatusOK, s)
}
