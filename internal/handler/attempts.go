package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mocktest/internal/exam"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
)

const explainTimeout = 20 * time.Second

type attemptSummary struct {
	model.Result
	ReasonLabel string `json:"reason_label"`
	ScoreLine   string `json:"score_line"`
}

// reviewItem shows one question of a finished attempt.
type reviewItem struct {
	Index       int      `json:"index"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Chosen      *int     `json:"chosen"`
	Correct     int      `json:"correct"`
	IsCorrect   bool     `json:"is_correct"`
	Explanation string   `json:"explanation,omitempty"`
	Generated   bool     `json:"explanation_generated,omitempty"`
}

type attemptReview struct {
	attemptSummary
	Test  model.Test   `json:"test"`
	Items []reviewItem `json:"items"`

	// Set when explanations were asked for but cannot be generated.
	ExplainNotice string `json:"explain_notice,omitempty"`
}

var reasonLabels = map[model.SubmitReason]string{
	model.ReasonSubmitted: "ReasonSubmitted",
	model.ReasonTimeout:   "ReasonTimeout",
}

func summarize(ctx context.Context, res model.Result) attemptSummary {
	return attemptSummary{
		Result:      res,
		ReasonLabel: appI18n.T(ctx, reasonLabels[res.Reason]),
		ScoreLine:   scoreLine(ctx, res),
	}
}

func scoreLine(ctx context.Context, res model.Result) string {
	return appI18n.Td(ctx, "ScoreLine", map[string]any{"Score": res.Score, "Total": res.Total})
}

// handleListAttempts returns the caller's attempts, or everyone's for staff.
func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	var (
		results []model.Result
		err     error
	)
	if isStaff(p) && r.URL.Query().Get("scope") == "all" {
		results, err = h.store.ListAllAttempts(r.Context())
	} else {
		results, err = h.store.ListAttemptsByUser(r.Context(), p.UserID)
	}
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	out := make([]attemptSummary, 0, len(results))
	for _, res := range results {
		out = append(out, summarize(r.Context(), res))
	}
	writeOK(w, r, http.StatusOK, out)
}

func (h *Handler) handleReviewAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "attemptID"), 10, 64)
	if err != nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	res, err := h.store.GetAttempt(r.Context(), id)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	p := principal(r)
	if res.UserID != p.UserID && !isStaff(p) {
		// Do not reveal that someone else's attempt exists.
		writeError(w, r, errNotFound, nil)
		return
	}

	loaded, err := exam.LoadTest(r.Context(), h.store, res.TestID)
	if err != nil {
		fail(w, r, err, nil)
		return
	}

	review := attemptReview{
		attemptSummary: summarize(r.Context(), res),
		Test:           loaded.Test,
		Items:          make([]reviewItem, len(loaded.Questions)),
	}
	explain := r.URL.Query().Get("explain") == "1"
	if explain && h.llm == nil {
		review.ExplainNotice = appI18n.T(r.Context(), "ErrLLMUnavailable")
		explain = false
	}
	for i, q := range loaded.Questions {
		item := reviewItem{
			Index:       i,
			Prompt:      q.Prompt,
			Options:     q.Options,
			Correct:     q.CorrectOption,
			Explanation: q.Explanation,
		}
		chosen, answered := res.Answers[i]
		if answered {
			c := chosen
			item.Chosen = &c
			item.IsCorrect = chosen == q.CorrectOption
		}
		if explain && item.Explanation == "" && !item.IsCorrect {
			if !answered {
				chosen = -1
			}
			item.Explanation, item.Generated = h.explain(r.Context(), q, chosen)
		}
		review.Items[i] = item
	}
	writeOK(w, r, http.StatusOK, review)
}

// explain asks the LLM for an explanation. Failures degrade to no text.
func (h *Handler) explain(ctx context.Context, q model.Question, chosen int) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, explainTimeout)
	defer cancel()
	text, err := h.llm.Explain(ctx, q, chosen)
	if err != nil {
		slog.Warn("LLM explanation failed", "question_id", q.ID, "error", err)
		return "", false
	}
	return text, true
}
