// Package history provides document revision history with optional diffs.
//
// Every ingest of an existing code creates a new revision, so the history
// is the audit trail of a document. The diff view shows what changed
// between consecutive revisions.
package history

import (
	"context"
	"fmt"
	"io"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/format"
	"github.com/jpl-au/dms/internal/service"
)

// Options configures a history operation.
type Options struct {
	User     string // User making the request
	Limit    int    // Show only the newest Limit revisions (0 = all)
	ShowDiff bool   // Show diffs between consecutive revisions
	Colour   bool   // Colourise diff output
}

// Result contains the outcome of a history operation.
type Result struct {
	Code      string              `json:"code"`
	Revisions []document.Metadata `json:"revisions"`
}

// Run retrieves the revision history of code and writes it to w.
func Run(ctx context.Context, w io.Writer, svc service.Service, code string, opts Options) (Result, error) {
	result := Result{Code: code}

	revs, err := svc.History(ctx, code, opts.User)
	if err != nil {
		return result, err
	}
	if len(revs) == 0 {
		return result, fmt.Errorf("no history found for %s", code)
	}
	if opts.Limit > 0 && len(revs) > opts.Limit {
		revs = revs[len(revs)-opts.Limit:]
	}
	result.Revisions = revs

	format.Revisions(w, revs)
	if !opts.ShowDiff {
		return result, nil
	}

	for i := 1; i < len(revs); i++ {
		from, to := revs[i-1].Revision, revs[i].Revision
		d, err := svc.Diff(ctx, code, from, to, opts.User)
		if err != nil {
			return result, err
		}
		fmt.Fprintf(w, "\nrevision %d -> %d\n", from, to)
		fmt.Fprint(w, d.Format(opts.Colour))
	}
	return result, nil
}
