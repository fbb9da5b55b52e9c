package exam

// Unset is returned by Ledger.Answer for a question without an answer.
const Unset = -1

// Ledger holds the answers and review flags of one attempt. Keys are
// always question indexes in [0, Len()).
type Ledger struct {
	optionCounts []int
	answers      map[int]int
	flags        map[int]bool
}

// NewLedger creates an empty ledger. optionCounts[i] is the number of
// options of question i.
func NewLedger(optionCounts []int) *Ledger {
	counts := make([]int, len(optionCounts))
	copy(counts, optionCounts)
	return &Ledger{
		optionCounts: counts,
		answers:      make(map[int]int),
		flags:        make(map[int]bool),
	}
}

// Len returns the number of questions.
func (l *Ledger) Len() int {
	return len(l.optionCounts)
}

func (l *Ledger) checkIndex(index int) error {
	if index < 0 || index >= len(l.optionCounts) {
		return ErrIndexOutOfRange
	}
	return nil
}

// SetAnswer records option as the answer to question index, replacing any
// earlier answer.
func (l *Ledger) SetAnswer(index, option int) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	if option < 0 || option >= l.optionCounts[index] {
		return ErrOptionOutOfRange
	}
	l.answers[index] = option
	return nil
}

// Answer returns the chosen option for index, or Unset.
func (l *Ledger) Answer(index int) int {
	if opt, ok := l.answers[index]; ok {
		return opt
	}
	return Unset
}

// ToggleFlag flips the review flag of index and returns the new value.
// An absent flag counts as not flagged.
func (l *Ledger) ToggleFlag(index int) (bool, error) {
	if err := l.checkIndex(index); err != nil {
		return false, err
	}
	l.flags[index] = !l.flags[index]
	return l.flags[index], nil
}

// Flagged reports whether index is flagged for review.
func (l *Ledger) Flagged(index int) bool {
	return l.flags[index]
}

// Answers returns a copy of the sparse answer map.
func (l *Ledger) Answers() map[int]int {
	out := make(map[int]int, len(l.answers))
	for k, v := range l.answers {
		out[k] = v
	}
	return out
}

// Flags returns the indexes currently flagged.
func (l *Ledger) Flags() map[int]bool {
	out := make(map[int]bool)
	for k, v := range l.flags {
		if v {
			out[k] = true
		}
	}
	return out
}
