package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/model"
)

type userView struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Role        model.UserRole `json:"role"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
}

func newUserView(u model.User) userView {
	return userView{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role, Active: u.Active, CreatedAt: u.CreatedAt}
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		writeError(w, r, errInternal, nil)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	writeOK(w, r, http.StatusOK, out)
}

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

func validRole(role model.UserRole) bool {
	switch role {
	case model.UserRoleStudent, model.UserRoleStaff, model.UserRoleAdmin:
		return true
	}
	return false
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, r, errBadRequest, nil)
		return
	}
	role := model.UserRole(req.Role)
	if role == "" {
		role = model.UserRoleStudent
	}
	if !validRole(role) {
		writeError(w, r, errBadRequest, nil)
		return
	}

	existing, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	if existing != nil {
		writeError(w, r, apiError{http.StatusConflict, "user_exists", "ErrUserExists", false}, nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, r, errInternal, nil)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	u := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	u.ID, err = h.store.CreateUser(r.Context(), u)
	if err != nil {
		slog.Error("failed to create user", "error", err)
		writeError(w, r, errInternal, nil)
		return
	}
	writeOK(w, r, http.StatusCreated, newUserView(u))
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	if id == principal(r).UserID {
		// An admin cannot lock themselves out.
		writeError(w, r, errForbidden, nil)
		return
	}

	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		writeError(w, r, errInternal, nil)
		return
	}
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	if u == nil {
		writeError(w, r, errNotFound, nil)
		return
	}
	if !u.Active {
		if err := h.store.DeleteUserAuthSessions(r.Context(), u.ID); err != nil {
			slog.Warn("failed to sign out disabled user", "id", u.ID, "error", err)
		}
	}
	writeOK(w, r, http.StatusOK, newUserView(*u))
}

type uploadResult struct {
	TestID    string `json:"test_id"`
	Questions int    `json:"questions"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// handleUploadTest imports a test file sent as the multipart field test_file.
// Re-uploading a file with an unchanged hash is a no-op.
func (h *Handler) handleUploadTest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	file, header, err := r.FormFile("test_file")
	if err != nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, errInternal, nil)
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])
	key := "upload:" + header.Filename

	storedHash, err := h.store.GetImportedFileHash(r.Context(), key)
	if err != nil {
		slog.Error("failed to check import status", "error", err)
		writeError(w, r, errInternal, nil)
		return
	}

	var ti model.TestImport
	if err := json.Unmarshal(data, &ti); err != nil {
		writeError(w, r, errBadRequest, nil)
		return
	}
	if storedHash == hash {
		writeOK(w, r, http.StatusOK, uploadResult{TestID: ti.ID, Questions: len(ti.Questions), Duplicate: true})
		return
	}

	if err := exam.ValidateImport(ti); err != nil {
		var rerr *exam.RecordError
		if errors.As(err, &rerr) || errors.Is(err, exam.ErrNoQuestions) || errors.Is(err, exam.ErrInvalidImport) {
			slog.Warn("rejected test upload", "file", header.Filename, "error", err)
			writeError(w, r, apiError{http.StatusUnprocessableEntity, "invalid_test", "ErrBadRequest", false}, map[string]string{"detail": err.Error()})
			return
		}
		fail(w, r, err, nil)
		return
	}
	if err := h.store.ImportTest(r.Context(), ti); err != nil {
		fail(w, r, err, nil)
		return
	}
	if err := h.store.SetImportedFileHash(r.Context(), key, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("imported test", "file", header.Filename, "test_id", ti.ID, "questions", len(ti.Questions),
		"user_id", principal(r).UserID)
	writeOK(w, r, http.StatusCreated, uploadResult{TestID: ti.ID, Questions: len(ti.Questions)})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	records, err := h.store.ExportAttempts(r.Context(), subject)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	if records == nil {
		records = []model.AttemptRecord{}
	}
	writeOK(w, r, http.StatusOK, model.AttemptExport{
		GeneratedAt: time.Now().UTC(),
		SubjectID:   subject,
		Attempts:    records,
	})
}
