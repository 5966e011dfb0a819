package scheduler

import "container/heap"

// readyHeap is a min-heap of ready Tasks ordered by (Priority, Deadline),
// the container/heap.Interface implementation pattern grounded on
// joeycumines-go-utilpkg/eventloop's timerHeap (Len/Less/Swap/Push/Pop
// over a slice sorted by a single comparison key, generalized here to
// the two-key (priority, deadline) ordering spec.md's ready queue needs).
type readyHeap []*Task

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Deadline < h[j].Deadline
}

func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *readyHeap) Push(x any) {
	t := x.(*Task)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

func (h *readyHeap) fix(t *Task) {
	if t.heapIndex >= 0 {
		heap.Fix(h, t.heapIndex)
	}
}
