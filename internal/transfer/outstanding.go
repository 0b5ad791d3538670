package transfer

import "math/rand/v2"

// Outstanding is the set of unacknowledged sequence numbers. It is
// array-backed so Pick draws uniformly among the current members.
type Outstanding struct {
	items []int
	pos   map[int]int
}

// NewOutstanding returns a set holding 0..n-1.
func NewOutstanding(n int) *Outstanding {
	o := &Outstanding{
		items: make([]int, n),
		pos:   make(map[int]int, n),
	}
	for i := range n {
		o.items[i] = i
		o.pos[i] = i
	}
	return o
}

func (o *Outstanding) Len() int { return len(o.items) }

func (o *Outstanding) Contains(seq int) bool {
	_, ok := o.pos[seq]
	return ok
}

// Remove deletes seq by swapping it with the last member. It reports
// whether seq was present.
func (o *Outstanding) Remove(seq int) bool {
	i, ok := o.pos[seq]
	if !ok {
		return false
	}
	last := len(o.items) - 1
	moved := o.items[last]
	o.items[i] = moved
	o.pos[moved] = i
	o.items = o.items[:last]
	delete(o.pos, seq)
	return true
}

// Pick returns a uniformly random member. The set must not be empty.
func (o *Outstanding) Pick(r *rand.Rand) int {
	return o.items[r.IntN(len(o.items))]
}

// Items returns a copy of the current members in storage order.
func (o *Outstanding) Items() []int {
	return append([]int(nil), o.items...)
}
