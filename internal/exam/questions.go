package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/store"
)

// Source is the read side of the question store.
type Source interface {
	GetTest(ctx context.Context, id string) (model.Test, error)
	ListQuestionRecords(ctx context.Context, testID string) ([]model.QuestionRecord, error)
}

// LoadedTest is a test with its validated questions in presentation order.
type LoadedTest struct {
	Test      model.Test
	Questions []model.Question
}

// LoadTest fetches a test and its questions once and validates every record.
func LoadTest(ctx context.Context, src Source, testID string) (*LoadedTest, error) {
	test, err := src.GetTest(ctx, testID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test %s: %w", testID, err)
	}

	records, err := src.ListQuestionRecords(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions of %s: %w", testID, err)
	}
	if len(records) == 0 {
		return nil, ErrNoQuestions
	}

	questions := make([]model.Question, 0, len(records))
	for _, rec := range records {
		q, err := parseQuestion(rec)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return &LoadedTest{Test: test, Questions: questions}, nil
}

func parseQuestion(rec model.QuestionRecord) (model.Question, error) {
	if strings.TrimSpace(rec.Prompt) == "" {
		return model.Question{}, &RecordError{QuestionID: rec.ID, Field: "prompt", Reason: "empty"}
	}
	var options []string
	if err := json.Unmarshal([]byte(rec.Options), &options); err != nil {
		return model.Question{}, &RecordError{QuestionID: rec.ID, Field: "options", Reason: err.Error()}
	}
	if len(options) < 2 {
		return model.Question{}, &RecordError{
			QuestionID: rec.ID, Field: "options",
			Reason: fmt.Sprintf("need at least 2 options, got %d", len(options)),
		}
	}
	if rec.CorrectOption < 0 || rec.CorrectOption >= len(options) {
		return model.Question{}, &RecordError{
			QuestionID: rec.ID, Field: "correct_option",
			Reason: fmt.Sprintf("%d not in [0, %d)", rec.CorrectOption, len(options)),
		}
	}
	q := model.Question{
		ID:            rec.ID,
		Prompt:        rec.Prompt,
		Options:       options,
		CorrectOption: rec.CorrectOption,
	}
	if rec.Explanation != nil {
		q.Explanation = *rec.Explanation
	}
	return q, nil
}

// ErrInvalidImport is returned by ValidateImport for a test header that
// cannot be stored.
var ErrInvalidImport = errors.New("invalid test import")

// ValidateImport applies the load-time rules to a test before it is stored,
// so that nothing accepted on import fails when a session opens it.
// Question errors carry the 1-based position in QuestionID.
func ValidateImport(ti model.TestImport) error {
	switch {
	case strings.TrimSpace(ti.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidImport)
	case strings.TrimSpace(ti.Subject.ID) == "":
		return fmt.Errorf("%w: missing subject id", ErrInvalidImport)
	case strings.TrimSpace(ti.Name) == "":
		return fmt.Errorf("%w: missing name", ErrInvalidImport)
	case ti.DurationMinutes < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidImport)
	case len(ti.Questions) == 0:
		return ErrNoQuestions
	}
	for i, qi := range ti.Questions {
		opts, err := json.Marshal(qi.Options)
		if err != nil {
			return fmt.Errorf("encode options of question %d: %w", i+1, err)
		}
		rec := model.QuestionRecord{
			ID:            int64(i + 1),
			Prompt:        qi.Prompt,
			Options:       string(opts),
			CorrectOption: qi.CorrectOption,
		}
		if _, err := parseQuestion(rec); err != nil {
			return err
		}
	}
	return nil
}
