package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/mocktest/internal/model"
)

// ExportAttempts builds export-ready attempt records, optionally for one subject.
func (s *Store) ExportAttempts(ctx context.Context, subjectID string) ([]model.AttemptRecord, error) {
	query := `SELECT a.id, COALESCE(u.username, ''), COALESCE(u.display_name, ''),
		a.test_id, COALESCE(t.name, ''), a.subject_id, a.score, a.total, a.answers, a.reason, a.created_at
		FROM attempts a
		LEFT JOIN users u ON u.id = a.user_id
		LEFT JOIN tests t ON t.id = a.test_id`
	var args []any
	if subjectID != "" {
		query += ` WHERE a.subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY a.id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var records []model.AttemptRecord
	for rows.Next() {
		var rec model.AttemptRecord
		var answers string
		if err := rows.Scan(&rec.AttemptID, &rec.Username, &rec.DisplayName, &rec.TestID, &rec.TestName,
			&rec.SubjectID, &rec.Score, &rec.Total, &answers, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		decoded, err := decodeAnswers(answers)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", rec.AttemptID, err)
		}
		rec.Answers = decoded
		records = append(records, rec)
	}
	return records, rows.Err()
}
