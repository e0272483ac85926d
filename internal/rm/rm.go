// Package rm provides removal of documents and single revisions.
//
// Removal runs the before_removal pipeline for each code, so security and
// cache stages see it like any other request. Revision numbers of removed
// revisions are never handed out again.
package rm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jpl-au/dms/internal/service"
)

// Options configures a remove operation.
type Options struct {
	Revision int    // If > 0, remove only this revision
	User     string // User making the request
}

// Result contains the outcome of a remove operation.
type Result struct {
	Removed  []string `json:"removed"`
	Revision int      `json:"revision,omitempty"`
}

// Run removes each code in turn. It stops at the first failure; the codes
// removed before it are reported in the result.
func Run(ctx context.Context, w io.Writer, svc service.Service, codes []string, opts Options) (Result, error) {
	result := Result{Revision: opts.Revision}

	if len(codes) == 0 {
		return result, errors.New("no document codes given")
	}
	if opts.Revision > 0 && len(codes) > 1 {
		return result, errors.New("--revision applies to a single document")
	}

	for _, code := range codes {
		if err := svc.Remove(ctx, code, opts.Revision, opts.User); err != nil {
			return result, fmt.Errorf("%s: %w", code, err)
		}
		result.Removed = append(result.Removed, code)
		if opts.Revision > 0 {
			fmt.Fprintf(w, "Removed %s (revision %d)\n", code, opts.Revision)
		} else {
			fmt.Fprintf(w, "Removed %s\n", code)
		}
	}
	return result, nil
}
