package queue

import "container/heap"

// entry is one min-heap slot, keyed by (priority, created_at) so that
// lower priority values run first and equal priorities run in FIFO order.
type entry struct {
	jobID     string
	priority  int
	seq       int64 // monotonic enqueue sequence, breaks (priority, createdAt) ties deterministically
	createdAt int64 // unix nanos
}

type priorityHeap []*entry

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	if h[i].createdAt != h[j].createdAt {
		return h[i].createdAt < h[j].createdAt
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityHeap)(nil)
