package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/mocktest/internal/model"
)

// ErrTestExists is returned by ImportTest when the test id is already taken.
var ErrTestExists = errors.New("test already exists")

// UpsertSubject inserts a subject or renames an existing one.
func (s *Store) UpsertSubject(ctx context.Context, sub model.Subject) error {
	_, err := s.exec(ctx,
		`INSERT INTO subjects (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		sub.ID, sub.Name,
	)
	return err
}

// ListSubjects returns all subjects ordered by name.
func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.query(ctx, `SELECT id, name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// UpsertTest inserts a test or updates its name, subject and duration.
func (s *Store) UpsertTest(ctx context.Context, t model.Test) error {
	_, err := s.exec(ctx,
		`INSERT INTO tests (id, subject_id, name, duration_minutes) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET subject_id = excluded.subject_id, name = excluded.name,
		 duration_minutes = excluded.duration_minutes`,
		t.ID, t.SubjectID, t.Name, t.DurationMinutes,
	)
	return err
}

// GetTest returns a test by ID, or ErrNotFound.
func (s *Store) GetTest(ctx context.Context, id string) (model.Test, error) {
	var t model.Test
	err := s.queryRow(ctx,
		`SELECT id, subject_id, name, duration_minutes FROM tests WHERE id = ?`, id,
	).Scan(&t.ID, &t.SubjectID, &t.Name, &t.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// ListTests returns all tests, optionally restricted to one subject.
func (s *Store) ListTests(ctx context.Context, subjectID string) ([]model.Test, error) {
	query := `SELECT id, subject_id, name, duration_minutes FROM tests`
	var args []any
	if subjectID != "" {
		query += ` WHERE subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY name`
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.SubjectID, &t.Name, &t.DurationMinutes); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// InsertQuestion stores a question record and returns its ID.
func (s *Store) InsertQuestion(ctx context.Context, q model.QuestionRecord) (int64, error) {
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := s.queryRow(ctx,
		`INSERT INTO questions (test_id, prompt, options, correct_option, explanation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		q.TestID, q.Prompt, q.Options, q.CorrectOption, q.Explanation, createdAt,
	).Scan(&id)
	return id, err
}

// ListQuestionRecords returns the raw question rows of a test in creation order.
func (s *Store) ListQuestionRecords(ctx context.Context, testID string) ([]model.QuestionRecord, error) {
	rows, err := s.query(ctx,
		`SELECT id, test_id, prompt, options, correct_option, explanation, created_at
		 FROM questions WHERE test_id = ? ORDER BY created_at, id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.QuestionRecord
	for rows.Next() {
		var q model.QuestionRecord
		var explanation sql.NullString
		if err := rows.Scan(&q.ID, &q.TestID, &q.Prompt, &q.Options, &q.CorrectOption, &explanation, &q.CreatedAt); err != nil {
			return nil, err
		}
		if explanation.Valid {
			e := explanation.String
			q.Explanation = &e
		}
		records = append(records, q)
	}
	return records, rows.Err()
}

// QuestionCount returns the number of questions stored for a test.
func (s *Store) QuestionCount(ctx context.Context, testID string) (int, error) {
	var count int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM questions WHERE test_id = ?`, testID).Scan(&count)
	return count, err
}

// ImportTest creates a subject, a test and its questions in one transaction.
// Questions keep the order they have in ti.Questions.
func (s *Store) ImportTest(ctx context.Context, ti model.TestImport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM tests WHERE id = ?`), ti.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check test: %w", err)
	}
	if exists > 0 {
		return ErrTestExists
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO subjects (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`),
		ti.Subject.ID, ti.Subject.Name,
	); err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO tests (id, subject_id, name, duration_minutes) VALUES (?, ?, ?, ?)`),
		ti.ID, ti.Subject.ID, ti.Name, ti.DurationMinutes,
	); err != nil {
		return fmt.Errorf("insert test: %w", err)
	}

	base := time.Now().UTC()
	for i, qi := range ti.Questions {
		opts, err := json.Marshal(qi.Options)
		if err != nil {
			return fmt.Errorf("encode options of question %d: %w", i, err)
		}
		var explanation *string
		if qi.Explanation != "" {
			e := qi.Explanation
			explanation = &e
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO questions (test_id, prompt, options, correct_option, explanation, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			ti.ID, qi.Prompt, string(opts), qi.CorrectOption, explanation,
			base.Add(time.Duration(i)*time.Millisecond),
		); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit()
}
