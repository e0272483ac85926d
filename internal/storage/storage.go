// Package storage persists document revisions.
//
// A backend addresses one unit per (rule, split segments, code). Each unit
// holds an ordered list of revisions, numbered from 1 with no gaps at
// allocation time. Backends never derive paths on their own: every location
// comes from the rule's Split, so all processes sharing a backend agree on
// where a code lives.
package storage

import (
	"context"
	"iter"
	"path"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
)

// Backend stores and serves revisions.
type Backend interface {
	// Store writes data as the unit's next revision and returns its number.
	Store(ctx context.Context, rule *doccode.Rule, code string, data []byte, meta document.Metadata) (int, error)

	// Retrieve returns a revision's content and record. rev 0 means latest.
	Retrieve(ctx context.Context, rule *doccode.Rule, code string, rev int) ([]byte, document.Metadata, error)

	// Revisions returns every revision record, oldest first.
	Revisions(ctx context.Context, rule *doccode.Rule, code string) ([]document.Metadata, error)

	// Delete removes one revision, or the whole unit when rev is 0.
	Delete(ctx context.Context, rule *doccode.Rule, code string, rev int) error

	// List enumerates codes stored under a rule. Each call starts afresh.
	List(ctx context.Context, rule *doccode.Rule) iter.Seq2[string, error]
}

// UnitPath returns the slash-separated unit location relative to a
// backend's root: <ruleID>/<segments...>/<code>.
func UnitPath(rule *doccode.Rule, code string) (string, error) {
	if rule == nil {
		return "", errs.Configurationf("storage: document has no rule")
	}
	segs, err := rule.SplitCode(code)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(segs)+2)
	parts = append(parts, ruleDir(rule))
	parts = append(parts, segs...)
	parts = append(parts, code)
	return path.Join(parts...), nil
}

func ruleDir(rule *doccode.Rule) string {
	return itoa(rule.ID)
}

func latest(revs []document.Metadata) (document.Metadata, bool) {
	if len(revs) == 0 {
		return document.Metadata{}, false
	}
	best := revs[0]
	for _, r := range revs[1:] {
		if r.Revision > best.Revision {
			best = r
		}
	}
	return best, true
}

func find(revs []document.Metadata, rev int) (document.Metadata, bool) {
	if rev == 0 {
		return latest(revs)
	}
	for _, r := range revs {
		if r.Revision == rev {
			return r, true
		}
	}
	return document.Metadata{}, false
}
