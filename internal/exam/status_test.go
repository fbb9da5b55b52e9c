package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	l := NewLedger([]int{3, 3, 3, 3})
	require.NoError(t, l.SetAnswer(0, 1))
	_, err := l.ToggleFlag(1)
	require.NoError(t, err)
	require.NoError(t, l.SetAnswer(2, 0))
	_, err = l.ToggleFlag(2)
	require.NoError(t, err)

	tests := []struct {
		name  string
		index int
		want  Status
	}{
		{"answered", 0, StatusAttempted},
		{"flagged only", 1, StatusFlagged},
		{"flag wins over answer", 2, StatusFlagged},
		{"untouched", 3, StatusUnvisited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(l, tt.index))
		})
	}

	assert.Equal(t, []Status{StatusAttempted, StatusFlagged, StatusFlagged, StatusUnvisited}, Grid(l))
}

func TestClassifyFlagPrecedence(t *testing.T) {
	// Whatever sequence of answers happens, a set flag always classifies as flagged.
	l := NewLedger([]int{4})
	_, _ = l.ToggleFlag(0)
	for opt := 0; opt < 4; opt++ {
		require.NoError(t, l.SetAnswer(0, opt))
		assert.Equal(t, StatusFlagged, Classify(l, 0))
	}
	_, _ = l.ToggleFlag(0)
	assert.Equal(t, StatusAttempted, Classify(l, 0))
}
