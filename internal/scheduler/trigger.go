package scheduler

import (
	"container/heap"
	"time"

	"github.com/jonesrussell/gosched/internal/domain"
)

// Trigger is the in-memory handle for one job. The engine mutex guards all
// fields.
type Trigger struct {
	Job         *domain.Job
	NextRunTime time.Time

	runningCount int
	heapIndex    int // -1 when not queued
}

// triggerHeap is a min-heap of triggers keyed by NextRunTime. Paused
// triggers are not queued.
type triggerHeap []*Trigger

var _ heap.Interface = (*triggerHeap)(nil)

func (h triggerHeap) Len() int { return len(h) }

func (h triggerHeap) Less(i, j int) bool {
	return h[i].NextRunTime.Before(h[j].NextRunTime)
}

func (h triggerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *triggerHeap) Push(x any) {
	t := x.(*Trigger)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

// peek returns the earliest trigger without removing it, nil when empty.
func (h triggerHeap) peek() *Trigger {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// push queues a trigger.
func (h *triggerHeap) push(t *Trigger) {
	heap.Push(h, t)
}

// remove dequeues a trigger if it is queued.
func (h *triggerHeap) remove(t *Trigger) {
	if t.heapIndex >= 0 {
		heap.Remove(h, t.heapIndex)
	}
}

// fix restores heap order after a trigger's NextRunTime changed in place.
func (h *triggerHeap) fix(t *Trigger) {
	if t.heapIndex >= 0 {
		heap.Fix(h, t.heapIndex)
	}
}
