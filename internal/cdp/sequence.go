package cdp

import "sync/atomic"

// sequence is the monotonic outbound request-id allocator (component
// C). IDs start at 1 and are never reused within a session's lifetime;
// opening a fresh session gets a fresh sequence.
type sequence struct {
	counter atomic.Int64
}

// next returns the next strictly increasing id, starting at 1.
func (s *sequence) next() int64 {
	return s.counter.Add(1)
}
