package kwire

import (
	"container/heap"
	"time"
)

// deadlineEntry is one in-flight request tracked by deadline.
type deadlineEntry struct {
	deadline time.Time
	nodeID   int32
	corrID   int32
	index    int // position in the heap, maintained by heap.Interface
}

// deadlineHeap orders entries by deadline, tie-broken by correlation id so
// two requests landing in the same time.Time bucket still have a stable
// order. It implements container/heap.Interface.
type deadlineHeap []*deadlineEntry

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].corrID < h[j].corrID
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*deadlineEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// DeadlineSet is an ordered-by-deadline index of in-flight requests, backing
// the timeout scan in NetworkClient.Poll (spec §4.C step 3e): rather than
// walking every node's in-flight queue on every poll looking for expired
// entries, the set gives ordered iteration starting from the earliest
// deadline so expired entries are found in O(expired) instead of O(total).
type DeadlineSet struct {
	h        deadlineHeap
	byCorrID map[int32]*deadlineEntry
}

// NewDeadlineSet returns an empty set.
func NewDeadlineSet() *DeadlineSet {
	return &DeadlineSet{byCorrID: make(map[int32]*deadlineEntry)}
}

// Add records that the request with corrID on nodeID must complete by
// deadline.
func (s *DeadlineSet) Add(nodeID, corrID int32, deadline time.Time) {
	e := &deadlineEntry{deadline: deadline, nodeID: nodeID, corrID: corrID}
	heap.Push(&s.h, e)
	s.byCorrID[corrID] = e
}

// Remove drops the tracked deadline for corrID, if any. Called once the
// request's response (or a synthetic one) has been delivered.
func (s *DeadlineSet) Remove(corrID int32) {
	e, ok := s.byCorrID[corrID]
	if !ok {
		return
	}
	heap.Remove(&s.h, e.index)
	delete(s.byCorrID, corrID)
}

// Expired returns and removes every entry whose deadline is at or before
// now, in deadline order.
func (s *DeadlineSet) Expired(now time.Time) []ExpiredEntry {
	var out []ExpiredEntry
	for len(s.h) > 0 && !s.h[0].deadline.After(now) {
		e := heap.Pop(&s.h).(*deadlineEntry)
		delete(s.byCorrID, e.corrID)
		out = append(out, ExpiredEntry{NodeID: e.nodeID, CorrelationID: e.corrID})
	}
	return out
}

// Len reports how many deadlines are currently tracked.
func (s *DeadlineSet) Len() int { return len(s.byCorrID) }

// ExpiredEntry identifies one request whose request_timeout has elapsed.
type ExpiredEntry struct {
	NodeID        int32
	CorrelationID int32
}
