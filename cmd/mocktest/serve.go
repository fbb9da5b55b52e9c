package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/handler"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/llm"
	"github.com/pavelanni/mocktest/internal/llm/prompts"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addDBFlags(f)
	f.StringSliceP("tests", "t", nil, "Test JSON files to import at startup (repeatable)")
	f.StringP("lang", "l", "en", "Default language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /mock)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Origins allowed to call the API")
	f.String("admin-password", "", "Initial admin password (or set MOCKTEST_ADMIN_PASSWORD)")
	f.Duration("persist-timeout", 10*time.Second, "Upper bound for writing a submitted result")
	f.Duration("idle-timeout", 2*time.Hour, "End untimed or unsaved exam sessions idle this long (0 keeps them)")
	f.Duration("session-ttl", store.DefaultAuthSessionTTL, "Login session lifetime")
	f.String("llm-url", "", "OpenAI-compatible API base URL for review explanations (empty disables)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptBrief), "Explanation prompt variant (brief, detailed)")
	addLogFlags(f)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := loadTests(ctx, db, v.GetStringSlice("tests")); err != nil {
		return fmt.Errorf("load tests: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Explanations are optional; an unreachable endpoint only disables them.
	var llmClient *llm.Client
	if url := v.GetString("llm-url"); url != "" {
		llmClient, err = llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"),
			strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant"))))
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = llmClient.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("LLM health check failed, explanations disabled", "url", url, "error", err)
			llmClient = nil
		} else {
			slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
		}
	}

	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	examCfg := model.ExamConfig{
		BasePath:       basePath,
		SecureCookies:  v.GetBool("secure-cookies"),
		PersistTimeout: v.GetDuration("persist-timeout"),
		SessionTTL:     v.GetDuration("session-ttl"),
	}

	manager := exam.NewManager(db, db, exam.Options{
		PersistTimeout: examCfg.PersistTimeout,
		IdleTimeout:    v.GetDuration("idle-timeout"),
	})
	defer manager.Shutdown()
	go manager.RunSweeper(ctx, time.Minute)

	h, err := handler.New(db, manager, llmClient, examCfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   v.GetStringSlice("cors-origins"),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-CSRF-Token", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	go cleanupAuthSessions(ctx, db)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"db_driver", v.GetString("db-driver"),
			"lang", lang,
			"base_path", basePath,
			"persist_timeout", examCfg.PersistTimeout,
			"llm", llmClient != nil,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "live_sessions", manager.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type sessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) error
}

// cleanupAuthSessions removes expired login sessions every hour until ctx ends.
func cleanupAuthSessions(ctx context.Context, db sessionCleaner) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.CleanupExpiredSessions(ctx); err != nil {
				slog.Warn("failed to clean up expired auth sessions", "error", err)
			}
		}
	}
}
