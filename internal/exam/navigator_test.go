package exam

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNavigatorBoundaries(t *testing.T) {
	n := NewNavigator(3)
	assert.Equal(t, 0, n.Previous(), "previous at first index is a no-op")
	assert.Equal(t, 1, n.Next())
	assert.Equal(t, 2, n.Next())
	assert.Equal(t, 2, n.Next(), "next at last index is a no-op")
	assert.Equal(t, 1, n.Previous())

	assert.ErrorIs(t, n.JumpTo(3), ErrIndexOutOfRange)
	assert.ErrorIs(t, n.JumpTo(-1), ErrIndexOutOfRange)
	assert.Equal(t, 1, n.Current(), "rejected jump leaves position unchanged")
	assert.NoError(t, n.JumpTo(0))
	assert.Equal(t, 0, n.Current())
}

func TestNavigatorSingleQuestion(t *testing.T) {
	n := NewNavigator(1)
	assert.Equal(t, 0, n.Next())
	assert.Equal(t, 0, n.Previous())
}

func TestNavigatorNeverLeavesRange(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for count := 1; count <= 8; count++ {
		n := NewNavigator(count)
		for step := 0; step < 200; step++ {
			switch r.IntN(3) {
			case 0:
				n.Next()
			case 1:
				n.Previous()
			default:
				_ = n.JumpTo(r.IntN(count+4) - 2)
			}
			cur := n.Current()
			if cur < 0 || cur > count-1 {
				t.Fatalf("count %d: index %d out of range", count, cur)
			}
		}
	}
}
