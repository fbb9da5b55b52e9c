package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAnswers(t *testing.T) {
	l := NewLedger([]int{3, 2, 4})

	assert.Equal(t, Unset, l.Answer(0))
	require.NoError(t, l.SetAnswer(0, 2))
	require.NoError(t, l.SetAnswer(0, 1))
	assert.Equal(t, 1, l.Answer(0), "later answer overwrites")

	assert.ErrorIs(t, l.SetAnswer(3, 0), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.SetAnswer(-1, 0), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.SetAnswer(1, 2), ErrOptionOutOfRange)

	answers := l.Answers()
	assert.Equal(t, map[int]int{0: 1}, answers)
	answers[2] = 0
	assert.Equal(t, Unset, l.Answer(2), "Answers returns a copy")
}

func TestLedgerToggleFlag(t *testing.T) {
	l := NewLedger([]int{2, 2})

	assert.False(t, l.Flagged(1))
	on, err := l.ToggleFlag(1)
	require.NoError(t, err)
	assert.True(t, on, "first toggle sets the flag")

	off, err := l.ToggleFlag(1)
	require.NoError(t, err)
	assert.False(t, off, "second toggle restores the original value")
	assert.Empty(t, l.Flags())

	_, err = l.ToggleFlag(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLedgerKeysStayInRange(t *testing.T) {
	l := NewLedger([]int{2, 2, 2})
	for i := -2; i < 6; i++ {
		_ = l.SetAnswer(i, 1)
		_, _ = l.ToggleFlag(i)
	}
	for k := range l.Answers() {
		assert.True(t, k >= 0 && k < 3, "answer key %d", k)
	}
	for k := range l.Flags() {
		assert.True(t, k >= 0 && k < 3, "flag key %d", k)
	}
}
