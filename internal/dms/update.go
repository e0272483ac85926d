// update.go implements removal and updates of stored documents.
//
// A rename is not a storage operation: backends address units by code, so
// moving a document means ingesting its latest revision under the new code
// and removing the old unit. Only the latest revision moves; the old
// history goes with the old code.

package dms

import (
	"context"
	"maps"
	"slices"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/service"
	"github.com/jpl-au/dms/internal/validate"
)

// Remove implements service.Service.
func (s *Service) Remove(ctx context.Context, code string, revision int, user string) (err error) {
	defer func() {
		log.Event("dms:remove", "delete").Author(user).Code(code).Revision(revision).Write(err)
	}()

	if err := s.Seal(); err != nil {
		return err
	}
	if revision < 0 {
		return errs.Validationf("revision %d: must be positive", revision)
	}
	if err := s.remove(ctx, code, revision, s.user(user)); err != nil {
		return err
	}
	s.fireEvent(extension.DocumentRemoveEvent{Code: code, Revision: revision, User: user})
	return nil
}

func (s *Service) remove(ctx context.Context, code string, revision int, user document.User) error {
	rule, err := s.rules.Lookup(code)
	if err != nil {
		return err
	}
	doc := document.New(code, rule, user)
	doc.Uncategorized = rule.NoDoccode
	doc.Revision = revision

	rep, err := s.exec.RunReport(ctx, doc, rule, plugin.BeforeRemoval)
	if err != nil {
		return err
	}
	if rep.Storage == "" && !rep.ShortCircuit {
		return errs.Configurationf("rule %d: no storage stage", rule.ID)
	}
	return nil
}

// Update implements service.Service.
func (s *Service) Update(ctx context.Context, code string, opts service.UpdateOptions) (res service.UpdateResult, err error) {
	ev := log.Event("dms:update", "update").Author(opts.User).Code(code)
	defer func() {
		ev.Resolved(res.Code).ResultRevision(res.Revision).
			Detail("add", opts.AddTags).
			Detail("remove", opts.RemoveTags).
			Write(err)
	}()

	if err := s.Seal(); err != nil {
		return res, err
	}
	if opts.NewName != "" {
		if err := validate.Code(opts.NewName); err != nil {
			return res, err
		}
	}
	if err := validate.Tags(opts.AddTags); err != nil {
		return res, err
	}

	rule, err := s.rules.Lookup(code)
	if err != nil {
		return res, err
	}
	user := s.user(opts.User)

	// Stages at before_update check against the stored record (hashcode)
	// and an update of an unknown code must fail, so load it first.
	revs, err := s.backend.Revisions(ctx, rule, code)
	if err != nil {
		return res, err
	}
	if len(revs) == 0 {
		return res, errs.NotFoundf("%s", code)
	}

	doc := document.New(code, rule, user)
	doc.Uncategorized = rule.NoDoccode
	doc.Revisions = revs
	doc.Current = revs[len(revs)-1]
	doc.Revision = doc.Current.Revision
	doc.AddTags = opts.AddTags
	doc.RemoveTags = opts.RemoveTags
	doc.Options.NewName = opts.NewName
	if len(opts.Options) > 0 {
		doc.Options.Extra = maps.Clone(opts.Options)
	}

	if _, err := s.exec.RunReport(ctx, doc, rule, plugin.BeforeUpdate); err != nil {
		return res, err
	}
	res = service.UpdateResult{Code: code, Revision: doc.Revision, Tags: doc.Tags}

	if opts.NewName != "" && opts.NewName != code {
		moved, err := s.rename(ctx, doc, opts.NewName, user)
		if err != nil {
			return res, err
		}
		res = moved
	}

	s.fireEvent(extension.DocumentUpdateEvent{Code: code, NewCode: res.Code, User: opts.User})
	for _, t := range opts.AddTags {
		s.fireEvent(extension.TagEvent{Code: res.Code, Tag: t, Added: true})
	}
	for _, t := range opts.RemoveTags {
		s.fireEvent(extension.TagEvent{Code: res.Code, Tag: t})
	}
	return res, nil
}

// rename re-ingests the latest revision of doc under newName, moves its
// tags and removes the old document.
func (s *Service) rename(ctx context.Context, doc *document.Document, newName string, user document.User) (service.UpdateResult, error) {
	var res service.UpdateResult

	cur, err := s.fetch(ctx, doc.Code, service.FetchOptions{User: user.Name})
	if err != nil {
		return res, err
	}
	filename := newName
	if cur.Metadata.Extension != "" {
		filename += "." + cur.Metadata.Extension
	}
	in, _, err := s.ingest(ctx, filename, cur.Data, user, service.IngestOptions{
		Code:        newName,
		Description: cur.Metadata.Description,
		Mimetype:    cur.Mimetype,
	})
	if err != nil {
		return res, err
	}

	tags := cur.Tags
	if s.tagger != nil && !doc.Uncategorized {
		if err := s.tagger.RenameTags(ctx, doc.Code, in.Code); err != nil {
			return res, errs.Transientf("move tags %s -> %s: %v", doc.Code, in.Code, err)
		}
		if tags, err = s.tagger.Tags(ctx, in.Code); err != nil {
			return res, errs.Transientf("tags for %s: %v", in.Code, err)
		}
	}
	if err := s.remove(ctx, doc.Code, 0, user); err != nil {
		return res, err
	}
	return service.UpdateResult{
		Code:     in.Code,
		Revision: in.Revision,
		Tags:     slices.Clone(tags),
		Renamed:  true,
	}, nil
}
