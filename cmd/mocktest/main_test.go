package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeTestFile(t *testing.T, dir, name string, ti model.TestImport) string {
	t.Helper()
	data, err := json.Marshal(ti)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func sampleImport(id string) model.TestImport {
	return model.TestImport{
		ID:              id,
		Subject:         model.Subject{ID: "psych", Name: "Psychology"},
		Name:            "Mock " + id,
		DurationMinutes: 20,
		Questions: []model.QuestionImport{
			{Prompt: "First?", Options: []string{"a", "b"}, CorrectOption: 0},
			{Prompt: "Second?", Options: []string{"a", "b", "c"}, CorrectOption: 2},
		},
	}
}

func TestLoadTests(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "mock.json", sampleImport("mock-1"))

	if err := loadTests(ctx, db, []string{path}); err != nil {
		t.Fatalf("loadTests: %v", err)
	}
	count, err := db.QuestionCount(ctx, "mock-1")
	if err != nil || count != 2 {
		t.Fatalf("expected 2 questions, got %d (%v)", count, err)
	}

	// Unchanged and changed files are both skipped on the next run.
	if err := loadTests(ctx, db, []string{path}); err != nil {
		t.Fatalf("second loadTests: %v", err)
	}
	changed := sampleImport("mock-1")
	changed.Questions = append(changed.Questions, model.QuestionImport{Prompt: "Third?", Options: []string{"x", "y"}})
	writeTestFile(t, dir, "mock.json", changed)
	if err := loadTests(ctx, db, []string{path}); err != nil {
		t.Fatalf("third loadTests: %v", err)
	}
	count, _ = db.QuestionCount(ctx, "mock-1")
	if count != 2 {
		t.Errorf("changed file must not be re-imported, got %d questions", count)
	}
}

func TestLoadTestsRejectsInvalid(t *testing.T) {
	db := newTestStore(t)
	bad := sampleImport("bad")
	bad.Questions[0].Options = []string{"only"}
	path := writeTestFile(t, t.TempDir(), "bad.json", bad)

	if err := loadTests(context.Background(), db, []string{path}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := db.GetTest(context.Background(), "bad"); err == nil {
		t.Error("invalid test must not be stored")
	}
}

func TestSeedAdmin(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := seedAdmin(ctx, db, ""); err == nil {
		t.Fatal("expected error without password")
	}
	if err := seedAdmin(ctx, db, "pw"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	u, err := db.GetUserByUsername(ctx, "admin")
	if err != nil || u == nil || u.Role != model.UserRoleAdmin {
		t.Fatalf("admin not seeded: %v %v", u, err)
	}
	// Existing users make it a no-op, even without a password.
	if err := seedAdmin(ctx, db, ""); err != nil {
		t.Errorf("second seedAdmin: %v", err)
	}
}

func TestAddUser(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := addUser(ctx, db, "asha", "", "pw", model.UserRoleStudent); err != nil {
		t.Fatalf("addUser: %v", err)
	}
	u, _ := db.GetUserByUsername(ctx, "asha")
	if u == nil || u.DisplayName != "asha" {
		t.Errorf("unexpected user %+v", u)
	}
	if err := addUser(ctx, db, "asha", "", "pw", model.UserRoleStudent); err == nil {
		t.Error("expected duplicate username error")
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"serve", "seed", "export", "useradd"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("missing subcommand %s: %v", name, err)
		}
	}
	if root.Flags().Lookup("persist-timeout") == nil {
		t.Error("serve flags should be available on the root command")
	}
}
