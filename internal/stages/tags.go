// tags.go keeps a document's tag set in step with the lifecycle.
//
// Tags belong to the code, not to a revision. They are applied after the
// storage commit so a failed store leaves no orphan tags, populated on
// retrieval, edited on update and cleared when the whole unit is removed.
// Uncategorized documents carry no tags.

package stages

import (
	"context"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/store"
)

// Tags reads and writes tags through a store.Tagger.
type Tags struct {
	base
	tagger store.Tagger
}

// NewTags returns a tag stage backed by tagger.
func NewTags(name string, tagger store.Tagger) (*Tags, error) {
	if tagger == nil {
		return nil, errs.Configurationf("stage %s: no tag database", name)
	}
	return &Tags{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "Tags",
				Description: "Populates and saves document tags",
				Class:       plugin.ClassInfo,
				Order:       plugin.ClassInfo.DefaultOrder(),
				Active:      true,
			},
			orders: map[plugin.Point]int{
				plugin.Storage:       110,
				plugin.BeforeRemoval: 110,
			},
			points: []plugin.Point{plugin.Storage, plugin.BeforeRetrieval, plugin.BeforeRemoval, plugin.BeforeUpdate},
		},
		tagger: tagger,
	}, nil
}

// Work implements plugin.Stage.
func (t *Tags) Work(ctx context.Context, point plugin.Point, doc *document.Document) plugin.Outcome {
	if doc.Uncategorized {
		return plugin.Continue()
	}
	switch point {
	case plugin.Storage, plugin.BeforeUpdate:
		if err := t.edit(ctx, doc); err != nil {
			return abort(err)
		}
		return t.populate(ctx, doc)

	case plugin.BeforeRetrieval:
		return t.populate(ctx, doc)

	case plugin.BeforeRemoval:
		if doc.Revision != 0 {
			return plugin.Continue()
		}
		if err := t.tagger.ClearTags(ctx, doc.Code); err != nil {
			return abort(err)
		}
		doc.Tags = nil
	}
	return plugin.Continue()
}

func (t *Tags) edit(ctx context.Context, doc *document.Document) error {
	if len(doc.AddTags) > 0 {
		if err := t.tagger.Tag(ctx, doc.Code, doc.AddTags...); err != nil {
			return err
		}
	}
	if len(doc.RemoveTags) > 0 {
		if err := t.tagger.Untag(ctx, doc.Code, doc.RemoveTags...); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tags) populate(ctx context.Context, doc *document.Document) plugin.Outcome {
	tags, err := t.tagger.Tags(ctx, doc.Code)
	if err != nil {
		return abort(err)
	}
	doc.Tags = tags
	return plugin.Continue()
}
