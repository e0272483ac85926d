// interfaces.go defines the capabilities the rest of dms needs from the
// database.
//
// Separated from the SQLite implementation so consumers depend only on the
// capability they use: doccode needs a Sequencer, the tags stage needs a
// Tagger, the storage stage needs a storage.Backend.

package store

import (
	"context"
	"database/sql"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/storage"
)

// Tagger manages the tag set of a document code. Tags belong to the code,
// not to a revision, so they survive new revisions.
type Tagger interface {
	// Tags returns a code's tags in lexical order.
	Tags(ctx context.Context, code string) ([]string, error)

	// Tag adds tags to a code. Existing tags are left untouched.
	Tag(ctx context.Context, code string, tags ...string) error

	// Untag removes tags from a code. Missing tags are ignored.
	Untag(ctx context.Context, code string, tags ...string) error

	// ClearTags removes every tag from a code.
	ClearTags(ctx context.Context, code string) error

	// RenameTags moves all tags from one code to another.
	RenameTags(ctx context.Context, from, to string) error

	// CodesWithTag lists codes carrying tag.
	CodesWithTag(ctx context.Context, tag string) ([]string, error)

	// AllTags lists every tag with its document count.
	AllTags(ctx context.Context) ([]TagCount, error)
}

// Maintainer covers connection lifecycle.
type Maintainer interface {
	Close() error
	DB() *sql.DB
	Checkpoint(ctx context.Context) error
}

// Store is everything SQLiteStore provides.
type Store interface {
	doccode.Sequencer
	storage.Backend
	Tagger
	Maintainer
}
