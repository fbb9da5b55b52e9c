package exam

// Navigator tracks the current question index within [0, count-1].
type Navigator struct {
	current int
	count   int
}

// NewNavigator starts at the first of count questions. count must be >= 1.
func NewNavigator(count int) *Navigator {
	return &Navigator{count: count}
}

func (n *Navigator) Current() int { return n.current }
func (n *Navigator) Count() int   { return n.count }

// Next moves forward one question; at the last question it does nothing.
func (n *Navigator) Next() int {
	if n.current < n.count-1 {
		n.current++
	}
	return n.current
}

// Previous moves back one question; at the first question it does nothing.
func (n *Navigator) Previous() int {
	if n.current > 0 {
		n.current--
	}
	return n.current
}

// JumpTo moves to index. Out-of-range indexes are rejected and leave the
// position unchanged.
func (n *Navigator) JumpTo(index int) error {
	if index < 0 || index >= n.count {
		return ErrIndexOutOfRange
	}
	n.current = index
	return nil
}
