// ingest.go implements document ingestion: classification, code
// allocation and the before_storage and storage pipelines.
//
// Classification happens here rather than in a stage because the rule
// decides which stages run at all. Once the rule and code are settled the
// pipelines own everything else, including where the bytes land.

package dms

import (
	"bytes"
	"context"
	"io"
	"maps"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/service"
	"github.com/jpl-au/dms/internal/validate"
)

// Ingest implements service.Service.
func (s *Service) Ingest(ctx context.Context, filename string, r io.Reader, user string, opts service.IngestOptions) (res service.IngestResult, err error) {
	ev := log.Event("dms:ingest", "store").Author(user).Detail("filename", filename)
	defer func() {
		ev.Code(res.Code).Rule(res.Rule).ResultRevision(res.Revision).Write(err)
	}()

	if err := s.Seal(); err != nil {
		return res, err
	}
	data, err := s.read(r)
	if err != nil {
		return res, err
	}

	res, doc, err := s.ingest(ctx, filename, data, s.user(user), opts)
	if err != nil {
		return res, err
	}
	s.fireEvent(extension.DocumentIngestEvent{
		Code:     res.Code,
		Rule:     res.Rule,
		Revision: res.Revision,
		User:     user,
		Filename: filename,
		Mimetype: doc.Mimetype,
		Size:     int64(len(data)),
	})
	return res, nil
}

// read loads the content, refusing anything over the size limit without
// reading more than one byte past it.
func (s *Service) read(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errs.Validationf("no content")
	}
	if s.maxContent > 0 {
		r = io.LimitReader(r, s.maxContent+1)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errs.Transientf("read content: %v", err)
	}
	if err := validate.Content(int64(buf.Len()), s.maxContent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ingest runs the storage pipelines for already-read content.
func (s *Service) ingest(ctx context.Context, filename string, data []byte, user document.User, opts service.IngestOptions) (service.IngestResult, *document.Document, error) {
	var res service.IngestResult

	_, ext, err := validate.Filename(filename)
	if err != nil {
		return res, nil, err
	}
	// Tags are written after the storage commit, so a bad one must be
	// refused before anything is stored.
	if err := validate.Tags(opts.Tags); err != nil {
		return res, nil, err
	}
	rule, code, err := s.resolve(ctx, filename, opts)
	if err != nil {
		return res, nil, err
	}

	doc := document.New(code, rule, user)
	doc.Filename = filename
	doc.Extension = ext
	doc.Uncategorized = rule.NoDoccode
	doc.Buffer = data
	doc.Mimetype = opts.Mimetype
	doc.AddTags = opts.Tags
	doc.Options.Description = opts.Description
	if len(opts.Options) > 0 {
		doc.Options.Extra = maps.Clone(opts.Options)
	}

	rep, err := s.exec.Runs(ctx, doc, rule, plugin.BeforeStorage, plugin.Storage)
	if err != nil {
		return res, doc, err
	}
	if rep.Storage == "" && !rep.ShortCircuit {
		return res, doc, errs.Configurationf("rule %d: no storage stage", rule.ID)
	}

	res = service.IngestResult{
		Code:          doc.Code,
		Revision:      doc.Revision,
		Rule:          rule.ID,
		Uncategorized: doc.Uncategorized,
		Stages:        rep.Stages,
	}
	return res, doc, nil
}

// resolve settles the rule and code for an ingestion.
//
// An explicit code is looked up like a stored one. Otherwise the filename
// is classified, and a code is allocated when asked for or when the name
// fell through to an uncategorized rule that can number documents.
func (s *Service) resolve(ctx context.Context, filename string, opts service.IngestOptions) (*doccode.Rule, string, error) {
	if opts.Allocate && opts.Rule != 0 {
		rule, err := s.rules.Get(opts.Rule)
		if err != nil {
			return nil, "", err
		}
		if !rule.Active {
			return nil, "", errs.Validationf("rule %d is not active", rule.ID)
		}
		code, err := s.rules.AllocateIdentifier(ctx, rule)
		return rule, code, err
	}

	var rule *doccode.Rule
	var code string
	if opts.Code != "" {
		r, err := s.rules.Lookup(opts.Code)
		if err != nil && errs.KindOf(err) != errs.KindNotFound {
			return nil, "", err
		}
		rule, code = r, opts.Code
	} else {
		rule, code = s.rules.Classify(filename)
	}

	if rule == nil || rule.NoDoccode {
		if s.uncategorized == config.UncategorizedReject {
			return nil, "", errs.Validationf("%q matches no document code rule", code)
		}
		if rule == nil {
			return nil, "", errs.Configurationf("%q matches no rule and there is no uncategorized rule", code)
		}
		if rule.CanAllocate() && opts.Code == "" {
			c, err := s.rules.AllocateIdentifier(ctx, rule)
			return rule, c, err
		}
		return rule, code, nil
	}

	if opts.Allocate {
		if !rule.CanAllocate() {
			return nil, "", errs.Validationf("rule %d cannot allocate codes", rule.ID)
		}
		c, err := s.rules.AllocateIdentifier(ctx, rule)
		return rule, c, err
	}
	return rule, code, nil
}
