package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/mocktest/internal/model"
)

// fakeAPI serves the two OpenAI endpoints the client uses.
func fakeAPI(t *testing.T, reply string, gotPrompt *string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"tutor","object":"model"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if gotPrompt != nil && len(req.Messages) > 0 {
			*gotPrompt = req.Messages[0].Content
		}
		var choices []map[string]any
		if reply != "" {
			choices = append(choices, map[string]any{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "object": "chat.completion", "choices": choices})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

var question = model.Question{
	ID:            3,
	Prompt:        "What does IQ stand for?",
	Options:       []string{"Intelligence quotient", "Internal query"},
	CorrectOption: 0,
}

func TestExplain(t *testing.T) {
	var prompt string
	srv := fakeAPI(t, "  Quotient refers to a ratio.  ", &prompt)
	c, err := New(srv.URL+"/v1", "key", "tutor", "brief")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Explain(context.Background(), question, 1)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got != "Quotient refers to a ratio." {
		t.Errorf("Explain = %q", got)
	}
	if !strings.Contains(prompt, "Student chose: 1. Internal query") {
		t.Errorf("prompt missing student choice:\n%s", prompt)
	}
}

func TestExplainEmptyResponse(t *testing.T) {
	srv := fakeAPI(t, "", nil)
	c, err := New(srv.URL+"/v1", "key", "tutor", "brief")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Explain(context.Background(), question, 0); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestPing(t *testing.T) {
	srv := fakeAPI(t, "ok", nil)
	c, err := New(srv.URL+"/v1", "key", "unknown-model", "brief")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	srv.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error from closed endpoint")
	}
}

func TestNewRejectsUnknownVariant(t *testing.T) {
	if _, err := New("", "key", "tutor", "detailed"); err != nil {
		t.Errorf("New(detailed): %v", err)
	}
	if _, err := New("", "key", "tutor", "verbose"); err == nil {
		t.Error("expected error for unknown variant")
	}
}
