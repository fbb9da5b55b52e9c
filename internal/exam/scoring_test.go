package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/mocktest/internal/model"
)

func TestScore(t *testing.T) {
	qs := func(correct ...int) []model.Question {
		out := make([]model.Question, len(correct))
		for i, c := range correct {
			out[i] = model.Question{CorrectOption: c, Options: []string{"a", "b", "c"}}
		}
		return out
	}

	tests := []struct {
		name      string
		questions []model.Question
		answers   map[int]int
		wantScore int
		wantTotal int
	}{
		{"one right one wrong", qs(1, 0), map[int]int{0: 1, 1: 1}, 1, 2},
		{"nothing answered", qs(0, 1, 2), map[int]int{}, 0, 3},
		{"nil answers", qs(0), nil, 0, 1},
		{"all right", qs(2, 2), map[int]int{0: 2, 1: 2}, 2, 2},
		{"sparse", qs(0, 1, 2), map[int]int{2: 2}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, total := Score(tt.questions, tt.answers)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantTotal, total)
			assert.True(t, score >= 0 && score <= total)
		})
	}
}
