// storage.go is the terminal stage: it commits, loads and deletes
// revisions through a storage.Backend.
//
// At the storage point it runs last, after every stage that shapes the
// content. At before_retrieval it runs first among the content stages,
// since decompression, verification and conversion all need the bytes it
// loads. At before_removal it deletes, and stages that clean up after a
// removal order themselves behind it.

package stages

import (
	"context"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/storage"
)

// Storage binds a pipeline to a Backend.
type Storage struct {
	base
	backend storage.Backend
}

// NewStorage returns the storage stage for backend.
func NewStorage(name string, backend storage.Backend) (*Storage, error) {
	if backend == nil {
		return nil, errs.Configurationf("stage %s: no storage backend", name)
	}
	return &Storage{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "Storage",
				Description: "Stores and retrieves document revisions",
				Class:       plugin.ClassStorage,
				Order:       plugin.ClassStorage.DefaultOrder(),
				Active:      true,
			},
			orders: map[plugin.Point]int{plugin.BeforeRetrieval: 0},
			points: []plugin.Point{plugin.Storage, plugin.BeforeRetrieval, plugin.BeforeRemoval},
		},
		backend: backend,
	}, nil
}

// Backend returns the backend the stage writes to.
func (s *Storage) Backend() storage.Backend { return s.backend }

// Work implements plugin.Stage.
func (s *Storage) Work(ctx context.Context, point plugin.Point, doc *document.Document) plugin.Outcome {
	switch point {
	case plugin.Storage:
		return s.store(ctx, doc)
	case plugin.BeforeRetrieval:
		if doc.Options.OnlyMetadata {
			return s.metadata(ctx, doc)
		}
		return s.retrieve(ctx, doc)
	case plugin.BeforeRemoval:
		if err := s.backend.Delete(ctx, doc.Rule, doc.Code, doc.Revision); err != nil {
			return abort(err)
		}
	}
	return plugin.Continue()
}

func (s *Storage) store(ctx context.Context, doc *document.Document) plugin.Outcome {
	if doc.Buffer == nil {
		return plugin.Abort(errs.Validationf("%s: no content", doc.Code))
	}
	meta := doc.Current
	if meta.Extension == "" {
		meta.Extension = doc.Extension
	}
	if meta.Mimetype == "" {
		meta.Mimetype = doc.Mimetype
	}
	rev, err := s.backend.Store(ctx, doc.Rule, doc.Code, doc.Buffer, meta)
	if err != nil {
		return abort(err)
	}
	meta.Revision = rev
	doc.Revision = rev
	doc.Current = meta
	return plugin.Continue()
}

func (s *Storage) retrieve(ctx context.Context, doc *document.Document) plugin.Outcome {
	data, meta, err := s.backend.Retrieve(ctx, doc.Rule, doc.Code, doc.Revision)
	if err != nil {
		return abort(err)
	}
	doc.Buffer = data
	doc.Current = meta
	doc.Revision = meta.Revision
	doc.Mimetype = meta.Mimetype
	doc.Extension = meta.Extension
	return plugin.Continue()
}

// metadata loads the revision records and ends the run: with no content
// there is nothing for the remaining stages to do.
func (s *Storage) metadata(ctx context.Context, doc *document.Document) plugin.Outcome {
	revs, err := s.backend.Revisions(ctx, doc.Rule, doc.Code)
	if err != nil {
		return abort(err)
	}
	doc.Revisions = revs
	want := doc.Revision
	var cur *document.Metadata
	for i := range revs {
		r := &revs[i]
		if r.Revision == want || (want == 0 && (cur == nil || r.Revision > cur.Revision)) {
			cur = r
		}
	}
	if cur == nil {
		return plugin.Abort(errs.NotFoundf("%s revision %d", doc.Code, want))
	}
	doc.Current = *cur
	doc.Revision = doc.Current.Revision
	doc.Mimetype = doc.Current.Mimetype
	doc.Extension = doc.Current.Extension
	return plugin.ShortCircuit()
}
