package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mocktest/internal/exam"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/llm"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	exams  *exam.Manager
	llm    *llm.Client
	config model.ExamConfig
}

// New creates a new Handler. l may be nil, in which case review explanations
// fall back to the stored text only.
func New(s *store.Store, m *exam.Manager, l *llm.Client, cfg model.ExamConfig) (*Handler, error) {
	return &Handler{store: s, exams: m, llm: l, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)

	r.Get("/healthz", h.handleHealth)
	r.Get("/csrf", h.handleCSRF)
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
		r.Get("/tests", h.handleListTests)

		r.Get("/exam", h.handleListExams)
		r.Post("/exam/start", h.handleStartExam)
		r.Route("/exam/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleExamView)
			r.Post("/answer", h.handleAnswer)
			r.Post("/flag", h.handleFlag)
			r.Post("/next", h.handleNext)
			r.Post("/previous", h.handlePrevious)
			r.Post("/jump", h.handleJump)
			r.Post("/submit", h.handleSubmit)
			r.Post("/quit", h.handleQuit)
			r.Post("/retry", h.handleRetry)
		})

		r.Get("/attempts", h.handleListAttempts)
		r.Get("/attempts/{attemptID}", h.handleReviewAttempt)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleStaff, model.UserRoleAdmin))
			r.Post("/admin/tests", h.handleUploadTest)
			r.Get("/admin/export", h.handleExport)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/admin/users", h.handleListUsers)
			r.Post("/admin/users", h.handleCreateUser)
			r.Post("/admin/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, r, apiError{http.StatusServiceUnavailable, "unavailable", "ErrInternal", false}, nil)
		return
	}
	writeOK(w, r, http.StatusOK, map[string]any{
		"app":           appI18n.T(r.Context(), "AppTitle"),
		"live_sessions": h.exams.Len(),
	})
}

// cookiePath scopes cookies to the deployment prefix.
func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

type testInfo struct {
	model.Test
	QuestionCount  int    `json:"question_count"`
	QuestionsLabel string `json:"questions_label"`
}

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.store.ListTests(r.Context(), r.URL.Query().Get("subject"))
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	subjects, err := h.store.ListSubjects(r.Context())
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	out := make([]testInfo, 0, len(tests))
	for _, t := range tests {
		n, err := h.store.QuestionCount(r.Context(), t.ID)
		if err != nil {
			fail(w, r, err, nil)
			return
		}
		out = append(out, testInfo{
			Test:           t,
			QuestionCount:  n,
			QuestionsLabel: appI18n.Tp(r.Context(), "QuestionsCount", n),
		})
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	writeOK(w, r, http.StatusOK, map[string]any{"subjects": subjects, "tests": out})
}
