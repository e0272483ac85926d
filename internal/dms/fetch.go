// fetch.go implements retrieval and the read-only views built on it:
// revision history and revision diffs.
//
// Every read goes through the before_retrieval pipeline, including history,
// so a security stage that refuses a fetch also refuses the history.

package dms

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"strings"

	"github.com/jpl-au/dms/internal/diff"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/service"
)

// Fetch implements service.Service.
func (s *Service) Fetch(ctx context.Context, code string, opts service.FetchOptions) (res service.FetchResult, err error) {
	action := "read"
	if opts.OnlyMetadata {
		action = "metadata"
	}
	ev := log.Event("dms:fetch", action).Author(opts.User).Code(code).Revision(opts.Revision)
	defer func() {
		ev.ResultRevision(res.Revision).Detail("format", opts.Format).Write(err)
	}()

	if err := s.Seal(); err != nil {
		return res, err
	}
	return s.fetch(ctx, code, opts)
}

func (s *Service) fetch(ctx context.Context, code string, opts service.FetchOptions) (service.FetchResult, error) {
	var res service.FetchResult
	if opts.Revision < 0 {
		return res, errs.Validationf("revision %d: must be positive", opts.Revision)
	}
	rule, err := s.rules.Lookup(code)
	if err != nil {
		return res, err
	}

	doc := document.New(code, rule, s.user(opts.User))
	doc.Uncategorized = rule.NoDoccode
	doc.Revision = opts.Revision
	doc.RequestedExtension = strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	doc.Options.OnlyMetadata = opts.OnlyMetadata
	if len(opts.Options) > 0 {
		doc.Options.Extra = maps.Clone(opts.Options)
	}

	rep, err := s.exec.RunReport(ctx, doc, rule, plugin.BeforeRetrieval)
	if err != nil {
		return res, err
	}
	if rep.Storage == "" && !rep.ShortCircuit {
		return res, errs.Configurationf("rule %d: no storage stage", rule.ID)
	}

	// The storage stage ends metadata-only runs before the tags stage.
	tags := doc.Tags
	if opts.OnlyMetadata && s.tagger != nil && !doc.Uncategorized {
		if tags, err = s.tagger.Tags(ctx, code); err != nil {
			return res, errs.Transientf("tags for %s: %v", code, err)
		}
	}

	return service.FetchResult{
		Data:      doc.Buffer,
		Mimetype:  doc.Mimetype,
		Filename:  doc.ServedName(),
		Code:      doc.Code,
		Revision:  doc.Revision,
		Metadata:  doc.Current,
		Revisions: doc.Revisions,
		Tags:      tags,
		Cached:    rep.ShortCircuit && rep.Storage == "",
	}, nil
}

// History implements service.Service.
func (s *Service) History(ctx context.Context, code, user string) (revs []document.Metadata, err error) {
	ev := log.Event("dms:history", "metadata").Author(user).Code(code)
	defer func() { ev.Detail("revisions", len(revs)).Write(err) }()

	if err := s.Seal(); err != nil {
		return nil, err
	}
	res, err := s.fetch(ctx, code, service.FetchOptions{User: user, OnlyMetadata: true})
	if err != nil {
		return nil, err
	}
	return res.Revisions, nil
}

// Diff implements service.Service.
func (s *Service) Diff(ctx context.Context, code string, from, to int, user string) (r diff.Result, err error) {
	ev := log.Event("dms:diff", "read").Author(user).Code(code).Revision(from)
	defer func() { ev.Detail("to", to).Write(err) }()

	if err := s.Seal(); err != nil {
		return r, err
	}
	old, err := s.fetch(ctx, code, service.FetchOptions{Revision: from, User: user})
	if err != nil {
		return r, err
	}
	cur, err := s.fetch(ctx, code, service.FetchOptions{Revision: to, User: user})
	if err != nil {
		return r, err
	}
	return diff.Compute(old.Data, cur.Data, label(code, old.Revision), label(code, cur.Revision)), nil
}

func label(code string, rev int) string {
	return fmt.Sprintf("%s revision %d", code, rev)
}

// ListCodes implements service.Service.
func (s *Service) ListCodes(ctx context.Context, ruleID int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := s.Seal(); err != nil {
			yield("", err)
			return
		}
		rule, err := s.rules.Get(ruleID)
		if err != nil {
			yield("", err)
			return
		}
		n := 0
		var lerr error
		defer func() {
			log.Event("dms:list", "list").Rule(ruleID).Detail("codes", n).Write(lerr)
		}()
		for code, err := range s.backend.List(ctx, rule) {
			if err != nil {
				lerr = err
				yield("", err)
				return
			}
			n++
			if !yield(code, nil) {
				return
			}
		}
	}
}
