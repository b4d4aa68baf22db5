package soundcore

import (
	"container/heap"
	"time"
)

// pendingCompletion is one scheduled end-of-playback callback, tagged with
// the generation of the assignment that scheduled it. A completion whose
// generation no longer matches its channel is stale and must be ignored.
type pendingCompletion struct {
	deadline   time.Time
	channelID  int
	generation uint64
	seq        uint64
	index      int
}

// completionHeap is a min-heap ordered by deadline, scheduling order as
// the tie-break.
type completionHeap []*pendingCompletion

func (h completionHeap) Len() int { return len(h) }

func (h completionHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h completionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *completionHeap) Push(x any) {
	item := x.(*pendingCompletion)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *completionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// completionScheduler tracks at most one pending completion per channel.
// It is driven by the Manager's tick and shares its serialization.
type completionScheduler struct {
	heap      completionHeap
	byChannel map[int]*pendingCompletion
	nextSeq   uint64
}

func newCompletionScheduler() *completionScheduler {
	return &completionScheduler{
		byChannel: make(map[int]*pendingCompletion),
	}
}

// schedule registers a completion for channelID, replacing any earlier one
// still pending for the same channel.
func (s *completionScheduler) schedule(channelID int, generation uint64, deadline time.Time) {
	if existing, ok := s.byChannel[channelID]; ok {
		existing.deadline = deadline
		existing.generation = generation
		existing.seq = s.nextSeq
		s.nextSeq++
		heap.Fix(&s.heap, existing.index)
		return
	}

	item := &pendingCompletion{
		deadline:   deadline,
		channelID:  channelID,
		generation: generation,
		seq:        s.nextSeq,
	}
	s.nextSeq++
	heap.Push(&s.heap, item)
	s.byChannel[channelID] = item
}

// cancel removes the pending completion for channelID, if any.
func (s *completionScheduler) cancel(channelID int) bool {
	item, ok := s.byChannel[channelID]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, item.index)
	delete(s.byChannel, channelID)
	return true
}

// due pops every completion whose deadline has passed, earliest first.
func (s *completionScheduler) due(now time.Time) []pendingCompletion {
	var fired []pendingCompletion
	for s.heap.Len() > 0 && !s.heap[0].deadline.After(now) {
		item := heap.Pop(&s.heap).(*pendingCompletion)
		delete(s.byChannel, item.channelID)
		fired = append(fired, *item)
	}
	return fired
}

func (s *completionScheduler) pending() int {
	return s.heap.Len()
}
