// Package ls provides document listing across rules with optional tag
// filtering and a long format.
//
// Listing codes is cheap: backends enumerate unit names without reading
// content. The long format additionally runs a metadata-only fetch per code,
// which goes through the retrieval pipeline like any read. A code the user
// may not read is still listed, marked as denied, since the listing itself
// only reveals names.
package ls

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/format"
	"github.com/jpl-au/dms/internal/service"
)

// Options configures a list operation.
type Options struct {
	Rule int    // Only this rule (0 = every rule)
	Tag  string // Only codes carrying this tag
	Long bool   // Table with latest revision metadata
	User string // User for the metadata fetches of the long format
}

// Result contains the outcome of a list operation.
type Result struct {
	Entries []format.Entry `json:"entries"`
}

// Codes returns the listed codes in order.
func (r Result) Codes() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Code
	}
	return out
}

// Run lists documents and writes them to w.
func Run(ctx context.Context, w io.Writer, svc service.Service, opts Options) (Result, error) {
	var result Result

	rules, err := selectRules(svc, opts.Rule)
	if err != nil {
		return result, err
	}

	var tagged map[string]bool
	if opts.Tag != "" {
		codes, err := svc.CodesWithTag(ctx, opts.Tag)
		if err != nil {
			return result, err
		}
		tagged = make(map[string]bool, len(codes))
		for _, c := range codes {
			tagged[c] = true
		}
	}

	for _, r := range rules {
		var codes []string
		for code, err := range svc.ListCodes(ctx, r.ID) {
			if err != nil {
				return result, err
			}
			if tagged != nil && !tagged[code] {
				continue
			}
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			result.Entries = append(result.Entries, format.Entry{Code: code, Rule: r.ID})
		}
	}

	if !opts.Long {
		format.Codes(w, result.Codes())
		return result, nil
	}

	for i := range result.Entries {
		if err := fill(ctx, svc, &result.Entries[i], opts.User); err != nil {
			return result, err
		}
	}
	format.Long(w, result.Entries)
	return result, nil
}

func selectRules(svc service.Service, id int) ([]*doccode.Rule, error) {
	all := svc.Rules()
	if id == 0 {
		return all, nil
	}
	for _, r := range all {
		if r.ID == id {
			return []*doccode.Rule{r}, nil
		}
	}
	return nil, errs.NotFoundf("rule %d", id)
}

// fill loads the latest revision metadata of e. Authorization failures are
// recorded on the entry; anything else aborts the listing.
func fill(ctx context.Context, svc service.Service, e *format.Entry, user string) error {
	res, err := svc.Fetch(ctx, e.Code, service.FetchOptions{OnlyMetadata: true, User: user})
	switch {
	case errors.Is(err, errs.ErrAuthorization):
		e.Denied = true
		e.ErrorMsg = "permission denied"
		return nil
	case err != nil:
		return err
	}
	e.Latest = res.Metadata
	e.Count = len(res.Revisions)
	e.Tags = res.Tags
	return nil
}
