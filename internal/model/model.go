package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent can take mock tests and see their own attempts.
	UserRoleStudent UserRole = "student"
	// UserRoleStaff can see every attempt and upload tests.
	UserRoleStaff UserRole = "staff"
	// UserRoleAdmin manages accounts.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Principal is the acting user handed to an exam session at construction.
type Principal struct {
	UserID      int64    `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
}

// PrincipalOf builds the principal for an authenticated user.
func PrincipalOf(u *User) Principal {
	return Principal{UserID: u.ID, DisplayName: u.DisplayName, Role: u.Role}
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Subject groups tests (e.g. "psychology", "aptitude").
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Test is a timed mock test.
type Test struct {
	ID              string `json:"id"`
	SubjectID       string `json:"subject_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// QuestionRecord is a question row as stored. Options is the raw JSON array.
type QuestionRecord struct {
	ID            int64
	TestID        string
	Prompt        string
	Options       string
	CorrectOption int
	Explanation   *string
	CreatedAt     time.Time
}

// Question is a validated, immutable question of a loaded test.
type Question struct {
	ID            int64    `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation,omitempty"`
}

// SubmitReason records what finalized an attempt.
type SubmitReason string

const (
	ReasonSubmitted SubmitReason = "submitted"
	ReasonTimeout   SubmitReason = "timeout"
)

// Result is a scored attempt. It is written once and never mutated.
type Result struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	TestID    string       `json:"test_id"`
	SubjectID string       `json:"subject_id"`
	Score     int          `json:"score"`
	Total     int          `json:"total"`
	Answers   map[int]int  `json:"answers"`
	Reason    SubmitReason `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

// ExamConfig holds runtime parameters set via CLI flags.
type ExamConfig struct {
	BasePath       string        // URL prefix for sub-path deployments
	SecureCookies  bool          // Set Secure flag on cookies (disable for local dev)
	PersistTimeout time.Duration // Upper bound for writing a result
	SessionTTL     time.Duration // Lifetime of a login; zero uses the store default
}

// TestImport is the JSON shape accepted by `mocktest seed` and the admin upload.
type TestImport struct {
	ID              string           `json:"id"`
	Subject         Subject          `json:"subject"`
	Name            string           `json:"name"`
	DurationMinutes int              `json:"duration_minutes"`
	Questions       []QuestionImport `json:"questions"`
}

// QuestionImport is one question inside a TestImport.
type QuestionImport struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation,omitempty"`
}
