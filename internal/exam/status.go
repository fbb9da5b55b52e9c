package exam

// Status is the display state of one question in the status grid.
type Status string

const (
	StatusFlagged   Status = "flagged"
	StatusAttempted Status = "attempted"
	StatusUnvisited Status = "unvisited"
)

// Classify derives the status of question index. A flag wins over an answer.
func Classify(l *Ledger, index int) Status {
	switch {
	case l.Flagged(index):
		return StatusFlagged
	case l.Answer(index) != Unset:
		return StatusAttempted
	default:
		return StatusUnvisited
	}
}

// Grid classifies every question of the ledger.
func Grid(l *Ledger) []Status {
	grid := make([]Status, l.Len())
	for i := range grid {
		grid[i] = Classify(l, i)
	}
	return grid
}
