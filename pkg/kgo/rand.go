package kgo

import "math/rand"

// randSource is the injectable random source leastLoadedNode uses to pick
// its scan starting offset (spec §9). Only ever touched from the single
// poll-calling goroutine, so it needs no locking.
type randSource struct {
	r *rand.Rand
}

func newRandSource(seed int64) *randSource {
	return &randSource{r: rand.New(rand.NewSource(seed))}
}

func (s *randSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if s.r == nil {
		s.r = rand.New(rand.NewSource(1))
	}
	return s.r.Intn(n)
}
