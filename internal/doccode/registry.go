// registry.go implements the DocumentCode Registry.
//
// Separated from rule.go so that compilation stays a property of a single
// rule while ordering, fallback selection and allocation live here.
//
// Design: registered rules are immutable. Register compiles a private copy
// and hands back a pointer that every later lookup returns, so callers can
// compare rules by identity.

package doccode

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/validate"
)

// Registry holds rules in registration order.
type Registry struct {
	mu       sync.RWMutex
	rules    []*Rule
	byID     map[int]*Rule
	fallback *Rule
	sealed   bool

	seq Sequencer
}

// NewRegistry creates an empty registry. A nil sequencer falls back to an
// in-memory one.
func NewRegistry(seq Sequencer) *Registry {
	if seq == nil {
		seq = NewMemorySequencer()
	}
	return &Registry{byID: make(map[int]*Rule), seq: seq}
}

// Register compiles and adds a rule.
func (g *Registry) Register(r Rule) (*Rule, error) {
	if err := r.compile(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sealed {
		return nil, errs.Configurationf("rule %d: registry is sealed", r.ID)
	}
	if _, dup := g.byID[r.ID]; dup {
		return nil, errs.Configurationf("rule %d: duplicate id", r.ID)
	}
	if r.NoDoccode && g.fallback != nil {
		return nil, errs.Configurationf("rule %d: rule %d already handles uncategorized names", r.ID, g.fallback.ID)
	}

	rule := &r
	g.rules = append(g.rules, rule)
	g.byID[r.ID] = rule
	if r.NoDoccode {
		g.fallback = rule
	}
	return rule, nil
}

// Seal rejects all further registrations.
func (g *Registry) Seal() {
	g.mu.Lock()
	g.sealed = true
	g.mu.Unlock()
}

// Get returns a rule by id.
func (g *Registry) Get(id int) (*Rule, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.byID[id]
	if !ok {
		return nil, errs.NotFoundf("rule %d", id)
	}
	return r, nil
}

// Rules returns all rules in registration order.
func (g *Registry) Rules() []*Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

// Fallback returns the no-doccode rule, or nil.
func (g *Registry) Fallback() *Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fallback
}

// Strip removes the extension from a filename, leaving the code candidate.
func Strip(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// Classify returns the first active rule matching the stripped filename,
// then the active no-doccode rule. The returned code is the stripped name.
// A nil rule means the name is uncategorized.
func (g *Registry) Classify(filename string) (*Rule, string) {
	code := Strip(filename)

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, r := range g.rules {
		if r.NoDoccode || !r.Active {
			continue
		}
		if r.Matches(code) {
			return r, code
		}
	}
	if g.fallback != nil && g.fallback.Active {
		return g.fallback, code
	}
	return nil, code
}

// Lookup finds the rule governing an existing code. Unlike Classify it
// takes a code, not a filename, and does not strip anything.
func (g *Registry) Lookup(code string) (*Rule, error) {
	if err := validate.Code(code); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.rules {
		if !r.NoDoccode && r.Active && r.Matches(code) {
			return r, nil
		}
	}
	if g.fallback != nil && g.fallback.Active {
		return g.fallback, nil
	}
	return nil, errs.NotFoundf("no rule for code %q", code)
}

// maxSequence is the largest number representable in width digits.
func maxSequence(width int) int64 {
	if width <= 0 || width >= 19 {
		return math.MaxInt64
	}
	return int64(math.Pow10(width)) - 1
}

// AllocateIdentifier atomically takes the rule's next number and formats it.
func (g *Registry) AllocateIdentifier(ctx context.Context, r *Rule) (string, error) {
	if r == nil {
		return "", errs.Configurationf("allocate: nil rule")
	}
	if !r.CanAllocate() {
		return "", errs.Configurationf("rule %d cannot allocate identifiers", r.ID)
	}

	// A number whose code falls outside the pattern is refused before the
	// counter moves, so it stays available if the rule is widened later.
	matches := func(n int64) bool { return r.Matches(r.identifier(n)) }
	n, err := g.seq.Next(ctx, r.ID, r.SequenceStart, maxSequence(r.Width), matches)
	if err != nil {
		return "", err
	}
	return r.identifier(n), nil
}

func (r *Rule) identifier(n int64) string {
	return strings.Replace(r.Format, "%s", fmt.Sprintf("%0*d", r.Width, n), 1)
}

// Split derives storage path segments for a code.
func (g *Registry) Split(r *Rule, code string) ([]string, error) {
	return r.SplitCode(code)
}

// SplitCode derives storage path segments for a code under this rule. The code
// must belong to the rule; a code that does not match is a validation error.
func (r *Rule) SplitCode(code string) ([]string, error) {
	if err := validate.Code(code); err != nil {
		return nil, err
	}
	if !r.NoDoccode && !r.Matches(code) {
		return nil, errs.Validationf("code %q does not match rule %d", code, r.ID)
	}
	segs, err := r.segments(code)
	if err != nil {
		return nil, errs.Validationf("rule %d: %v", r.ID, err)
	}
	return segs, nil
}
