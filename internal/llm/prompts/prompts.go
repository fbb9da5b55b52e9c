package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/mocktest/internal/model"
)

// FS holds the built-in explanation templates.
//
//go:embed templates/*.txt
var FS embed.FS

var tagRegex = regexp.MustCompile(`(?i)</?\s*(question|options)\b[^>]*>`)

// PromptVariant selects how much detail an explanation carries.
type PromptVariant string

const (
	// PromptBrief asks for a few sentences.
	PromptBrief PromptVariant = "brief"
	// PromptDetailed walks through every option.
	PromptDetailed PromptVariant = "detailed"
)

var validVariants = map[PromptVariant]bool{
	PromptBrief:    true,
	PromptDetailed: true,
}

var (
	loadOnce         sync.Once
	loadErr          error
	explainTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// ExplainData holds template data for explanation prompts.
type ExplainData struct {
	Prompt      string
	Options     []string
	Correct     int
	CorrectText string
	Chosen      int
	ChosenText  string
	Answered    bool
	Wrong       bool
}

// Load parses the explanation templates from fsys once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		explainTemplates = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptBrief, PromptDetailed} {
			file := "templates/explain_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New("explain").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			explainTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildExplainPrompt renders the explanation prompt for q. chosen is the
// option the student picked, or a negative value when unanswered.
func BuildExplainPrompt(variant PromptVariant, q model.Question, chosen int) (string, error) {
	if explainTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := explainTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return "", fmt.Errorf("correct option %d out of range", q.CorrectOption)
	}

	options := make([]string, len(q.Options))
	for i, o := range q.Options {
		options[i] = sanitize(o, 500)
	}
	data := ExplainData{
		Prompt:      sanitize(q.Prompt, 4000),
		Options:     options,
		Correct:     q.CorrectOption,
		CorrectText: options[q.CorrectOption],
		Chosen:      chosen,
	}
	if chosen >= 0 && chosen < len(options) {
		data.Answered = true
		data.ChosenText = options[chosen]
		data.Wrong = chosen != q.CorrectOption
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips the delimiter tags used by the templates and caps length.
func sanitize(s string, limit int) string {
	s = tagRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit]) + " [truncated]"
	}
	return s
}
