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

// InsertAttempt persists a scored result and returns its ID.
func (s *Store) InsertAttempt(ctx context.Context, r model.Result) (int64, error) {
	answers, err := encodeAnswers(r.Answers)
	if err != nil {
		return 0, err
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	reason := r.Reason
	if reason == "" {
		reason = model.ReasonSubmitted
	}
	var id int64
	err = s.queryRow(ctx,
		`INSERT INTO attempts (user_id, test_id, subject_id, score, total, answers, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		r.UserID, r.TestID, r.SubjectID, r.Score, r.Total, answers, reason, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	return id, nil
}

// GetAttempt returns a stored attempt, or ErrNotFound.
func (s *Store) GetAttempt(ctx context.Context, id int64) (model.Result, error) {
	row := s.queryRow(ctx,
		`SELECT id, user_id, test_id, subject_id, score, total, answers, reason, created_at
		 FROM attempts WHERE id = ?`, id,
	)
	r, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

// ListAttemptsByUser returns a user's attempts, newest first.
func (s *Store) ListAttemptsByUser(ctx context.Context, userID int64) ([]model.Result, error) {
	return s.listAttempts(ctx,
		`SELECT id, user_id, test_id, subject_id, score, total, answers, reason, created_at
		 FROM attempts WHERE user_id = ? ORDER BY id DESC`, userID)
}

// ListAllAttempts returns every attempt, newest first.
func (s *Store) ListAllAttempts(ctx context.Context) ([]model.Result, error) {
	return s.listAttempts(ctx,
		`SELECT id, user_id, test_id, subject_id, score, total, answers, reason, created_at
		 FROM attempts ORDER BY id DESC`)
}

func (s *Store) listAttempts(ctx context.Context, query string, args ...any) ([]model.Result, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		r, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (model.Result, error) {
	var r model.Result
	var answers string
	if err := row.Scan(&r.ID, &r.UserID, &r.TestID, &r.SubjectID, &r.Score, &r.Total, &answers, &r.Reason, &r.CreatedAt); err != nil {
		return r, err
	}
	decoded, err := decodeAnswers(answers)
	if err != nil {
		return r, fmt.Errorf("attempt %d: %w", r.ID, err)
	}
	r.Answers = decoded
	return r, nil
}

// encodeAnswers stores the answer map as a JSON object keyed by question index.
func encodeAnswers(answers map[int]int) (string, error) {
	if answers == nil {
		answers = map[int]int{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(data), nil
}

func decodeAnswers(raw string) (map[int]int, error) {
	out := map[int]int{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return out, nil
}
