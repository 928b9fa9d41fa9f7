package ticker

import "time"

// entry is one armed firing: a key, a deadline and the callback to
// dispatch when the deadline passes.
type entry struct {
	id     string
	fireAt time.Time
	fn     Callback
	index  int // position in the heap, maintained by heap.Interface
}

// deadlineQueue implements heap.Interface ordered by deadline. The
// entry with the earliest deadline is at index 0.
type deadlineQueue []*entry

// Len returns the number of armed entries.
func (dq deadlineQueue) Len() int { return len(dq) }

// Less orders entries by deadline, earliest first.
func (dq deadlineQueue) Less(i, j int) bool {
	return dq[i].fireAt.Before(dq[j].fireAt)
}

// Swap exchanges two entries and keeps their index fields consistent.
func (dq deadlineQueue) Swap(i, j int) {
	dq[i], dq[j] = dq[j], dq[i]
	dq[i].index = i
	dq[j].index = j
}

// Push adds an entry. Used by heap.Push, not called directly.
func (dq *deadlineQueue) Push(x interface{}) {
	n := len(*dq)
	item := x.(*entry)
	item.index = n
	*dq = append(*dq, item)
}

// Pop removes and returns the last entry. Used by heap.Pop, not called
// directly.
func (dq *deadlineQueue) Pop() interface{} {
	old := *dq
	n := len(old)
	item := old[n-1]
	item.index = -1 // mark as removed
	*dq = old[0 : n-1]

	return item
}
