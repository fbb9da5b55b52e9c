package model

import "time"

// AttemptExport is the top-level JSON structure for `mocktest export`.
type AttemptExport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	SubjectID   string          `json:"subject_id,omitempty"`
	Attempts    []AttemptRecord `json:"attempts"`
}

// AttemptRecord holds one stored attempt with display names resolved.
type AttemptRecord struct {
	AttemptID   int64        `json:"attempt_id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name"`
	TestID      string       `json:"test_id"`
	TestName    string       `json:"test_name"`
	SubjectID   string       `json:"subject_id"`
	Score       int          `json:"score"`
	Total       int          `json:"total"`
	Answers     map[int]int  `json:"answers"`
	Reason      SubmitReason `json:"reason"`
	CreatedAt   time.Time    `json:"created_at"`
}
