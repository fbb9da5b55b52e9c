package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/store"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed FILE...",
		Short: "Import tests and their questions from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSeed,
	}
	addDBFlags(cmd.Flags())
	addLogFlags(cmd.Flags())
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer db.Close()

	return loadTests(cmd.Context(), db, args)
}

// loadTests imports every file once. A file whose content changed since it
// was imported is skipped, so attempts already recorded against a test keep
// pointing at the questions they were scored on.
func loadTests(ctx context.Context, db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		key := path
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, key)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("test file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("test file changed since last import, skipping to keep existing attempts consistent",
				"path", path)
			continue
		}

		var ti model.TestImport
		if err := json.Unmarshal(data, &ti); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := exam.ValidateImport(ti); err != nil {
			return fmt.Errorf("validate %s: %w", path, err)
		}
		if err := db.ImportTest(ctx, ti); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(ctx, key, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported test", "path", path, "test_id", ti.ID, "questions", len(ti.Questions))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded attempts as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addDBFlags(f)
	f.String("subject", "", "Only export attempts for this subject id")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer db.Close()

	subject := v.GetString("subject")
	records, err := db.ExportAttempts(cmd.Context(), subject)
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}
	if records == nil {
		records = []model.AttemptRecord{}
	}

	export := model.AttemptExport{
		GeneratedAt: time.Now().UTC(),
		SubjectID:   subject,
		Attempts:    records,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported attempts", "count", len(records), "subject", subject)
	return nil
}

func useraddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "useradd USERNAME",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE:  runUseradd,
	}
	f := cmd.Flags()
	addDBFlags(f)
	f.String("display-name", "", "Display name (defaults to the username)")
	f.String("role", string(model.UserRoleStudent), "Role (student, staff, admin)")
	f.String("password", "", "Password (or set MOCKTEST_PASSWORD)")
	addLogFlags(f)
	return cmd
}

func runUseradd(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	role := model.UserRole(v.GetString("role"))
	switch role {
	case model.UserRoleStudent, model.UserRoleStaff, model.UserRoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	password := v.GetString("password")
	if password == "" {
		return fmt.Errorf("password is required: set --password flag or MOCKTEST_PASSWORD env var")
	}

	db, err := openStore(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer db.Close()

	return addUser(cmd.Context(), db, args[0], v.GetString("display-name"), password, role)
}

func addUser(ctx context.Context, db *store.Store, username, displayName, password string, role model.UserRole) error {
	existing, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user %q already exists", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if displayName == "" {
		displayName = username
	}
	_, err = db.CreateUser(ctx, model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	return err
}
