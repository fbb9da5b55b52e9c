package exam

import "github.com/pavelanni/mocktest/internal/model"

// Score counts the questions whose answer equals the correct option.
// Unanswered questions count as wrong.
func Score(questions []model.Question, answers map[int]int) (score, total int) {
	for i, q := range questions {
		if opt, ok := answers[i]; ok && opt == q.CorrectOption {
			score++
		}
	}
	return score, len(questions)
}
