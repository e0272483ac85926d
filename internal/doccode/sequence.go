// sequence.go defines the per-rule counter used for identifier allocation.

package doccode

import (
	"context"
	"sync"

	"github.com/jpl-au/dms/internal/errs"
)

// Sequencer hands out the next number for a rule.
//
// start is the value considered already used when the rule has no counter
// yet. max is the largest number the rule can represent. accept, when not
// nil, sees the candidate before it is committed. Implementations must
// never consume a number when last >= max or accept refuses the candidate;
// they return an error wrapping errs.ErrSequenceExhausted instead.
type Sequencer interface {
	Next(ctx context.Context, ruleID int, start, max int64, accept func(n int64) bool) (int64, error)
}

// MemorySequencer keeps counters in a process-local map.
type MemorySequencer struct {
	mu   sync.Mutex
	last map[int]int64
}

// NewMemorySequencer returns an empty in-memory sequencer.
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{last: make(map[int]int64)}
}

// Next implements Sequencer.
func (s *MemorySequencer) Next(_ context.Context, ruleID int, start, max int64, accept func(n int64) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.last[ruleID]
	if !ok {
		last = start
	}
	if last >= max {
		return 0, errs.SequenceExhaustedf("rule %d at %d", ruleID, last)
	}
	if accept != nil && !accept(last+1) {
		return 0, errs.SequenceExhaustedf("rule %d: %d refused", ruleID, last+1)
	}
	last++
	s.last[ruleID] = last
	return last, nil
}

// SetLast overrides the counter for a rule.
func (s *MemorySequencer) SetLast(ruleID int, last int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[ruleID] = last
}

// Last returns the current counter for a rule and whether one exists.
func (s *MemorySequencer) Last(ruleID int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.last[ruleID]
	return v, ok
}
