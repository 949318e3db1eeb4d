package scheduler

import "container/heap"

// taskHeap is a min-heap ordered by sortIndex, then by insertion id.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].sortIndex != h[j].sortIndex {
		return h[i].sortIndex < h[j].sortIndex
	}
	return h[i].id < h[j].id
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

func (h *taskHeap) push(t *Task) { heap.Push(h, t) }

func (h *taskHeap) peek() *Task {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

func (h *taskHeap) pop() *Task {
	if len(*h) == 0 {
		return nil
	}
	return heap.Pop(h).(*Task)
}

func (h *taskHeap) remove(t *Task) {
	if t.index < 0 || t.index >= len(*h) || (*h)[t.index] != t {
		return
	}
	heap.Remove(h, t.index)
}
