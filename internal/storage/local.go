// local.go implements Backend on the local filesystem.
//
// Layout under the root:
//
//	<ruleID>/<segments...>/<code>/<code>_r<N>.<ext>   revision content
//	<ruleID>/<segments...>/<code>/<code>.json         unit index
//
// The index records the last allocated revision and every live revision's
// metadata. It is kept when the last revision goes, so numbering resumes
// where it stopped if the code is stored again. Revision files are created with O_EXCL, so even a second
// process writing the same root can never overwrite a revision: it gets a
// CollisionError instead. The index is replaced atomically by rename.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
)

const indexExt = ".json"

// unitIndex is the on-disk record of one unit.
type unitIndex struct {
	Code      string              `json:"code"`
	Last      int                 `json:"last"`
	Revisions []document.Metadata `json:"revisions"`
}

// Local stores revisions as plain files.
type Local struct {
	root  string
	locks KeyedMutex
}

var _ Backend = (*Local)(nil)

// NewLocal returns a backend rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Transientf("create storage root: %v", err)
	}
	return &Local{root: dir}, nil
}

// Root returns the storage root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) unitDir(rule *doccode.Rule, code string) (string, error) {
	p, err := UnitPath(rule, code)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(p)), nil
}

func revisionFile(code string, rev int, ext string) string {
	name := fmt.Sprintf("%s_r%d", code, rev)
	if ext != "" {
		name += "." + ext
	}
	return name
}

func readIndex(dir, code string) (*unitIndex, error) {
	b, err := os.ReadFile(filepath.Join(dir, code+indexExt))
	if errors.Is(err, fs.ErrNotExist) {
		return &unitIndex{Code: code}, nil
	}
	if err != nil {
		return nil, errs.Transientf("read index %s: %v", code, err)
	}
	var idx unitIndex
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, errs.Transientf("corrupt index %s: %v", code, err)
	}
	return &idx, nil
}

func writeIndex(dir string, idx *unitIndex) error {
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+idx.Code+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, idx.Code+indexExt))
}

// Store implements Backend.
func (l *Local) Store(_ context.Context, rule *doccode.Rule, code string, data []byte, meta document.Metadata) (int, error) {
	dir, err := l.unitDir(rule, code)
	if err != nil {
		return 0, err
	}

	unlock := l.locks.Lock(dir)
	defer unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errs.Transientf("create unit %s: %v", code, err)
	}
	idx, err := readIndex(dir, code)
	if err != nil {
		return 0, err
	}

	rev := idx.Last + 1
	name := filepath.Join(dir, revisionFile(code, rev, meta.Extension))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return 0, errs.Collisionf("%s revision %d already exists", code, rev)
	}
	if err != nil {
		return 0, errs.Transientf("create revision %s r%d: %v", code, rev, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return 0, errs.Transientf("write revision %s r%d: %v", code, rev, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return 0, errs.Transientf("close revision %s r%d: %v", code, rev, err)
	}

	meta.Revision = rev
	if meta.Size == 0 {
		meta.Size = int64(len(data))
	}
	idx.Last = rev
	idx.Revisions = append(idx.Revisions, meta)
	if err := writeIndex(dir, idx); err != nil {
		os.Remove(name)
		return 0, errs.Transientf("write index %s: %v", code, err)
	}
	return rev, nil
}

// Retrieve implements Backend.
func (l *Local) Retrieve(_ context.Context, rule *doccode.Rule, code string, rev int) ([]byte, document.Metadata, error) {
	dir, err := l.unitDir(rule, code)
	if err != nil {
		return nil, document.Metadata{}, err
	}
	idx, err := readIndex(dir, code)
	if err != nil {
		return nil, document.Metadata{}, err
	}
	meta, ok := find(idx.Revisions, rev)
	if !ok {
		return nil, document.Metadata{}, notFound(code, rev)
	}

	data, err := os.ReadFile(filepath.Join(dir, revisionFile(code, meta.Revision, meta.Extension)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, document.Metadata{}, notFound(code, meta.Revision)
	}
	if err != nil {
		return nil, document.Metadata{}, errs.Transientf("read %s r%d: %v", code, meta.Revision, err)
	}
	return data, meta, nil
}

// Revisions implements Backend.
func (l *Local) Revisions(_ context.Context, rule *doccode.Rule, code string) ([]document.Metadata, error) {
	dir, err := l.unitDir(rule, code)
	if err != nil {
		return nil, err
	}
	idx, err := readIndex(dir, code)
	if err != nil {
		return nil, err
	}
	if len(idx.Revisions) == 0 {
		return nil, errs.NotFoundf("document %s", code)
	}
	revs := slices.Clone(idx.Revisions)
	slices.SortFunc(revs, func(a, b document.Metadata) int { return a.Revision - b.Revision })
	return revs, nil
}

// Delete implements Backend. The index outlives every deletion, including
// removal of the whole unit, so a revision number is never handed out
// again; an index with no revisions is a tombstone that List, Retrieve and
// Revisions treat as absent.
func (l *Local) Delete(_ context.Context, rule *doccode.Rule, code string, rev int) error {
	dir, err := l.unitDir(rule, code)
	if err != nil {
		return err
	}

	unlock := l.locks.Lock(dir)
	defer unlock()

	idx, err := readIndex(dir, code)
	if err != nil {
		return err
	}
	if len(idx.Revisions) == 0 {
		return errs.NotFoundf("document %s", code)
	}

	var gone []document.Metadata
	if rev == 0 {
		gone, idx.Revisions = idx.Revisions, nil
	} else {
		meta, ok := find(idx.Revisions, rev)
		if !ok {
			return notFound(code, rev)
		}
		gone = []document.Metadata{meta}
		idx.Revisions = slices.DeleteFunc(idx.Revisions, func(m document.Metadata) bool { return m.Revision == rev })
	}

	// Index first: a crash between the two steps leaves unreferenced
	// files, never an index pointing at missing content.
	if err := writeIndex(dir, idx); err != nil {
		return errs.Transientf("write index %s: %v", code, err)
	}
	for _, m := range gone {
		err := os.Remove(filepath.Join(dir, revisionFile(code, m.Revision, m.Extension)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.Transientf("remove %s r%d: %v", code, m.Revision, err)
		}
	}
	return nil
}

// List implements Backend. Units are found by their index file, in
// lexical path order.
func (l *Local) List(ctx context.Context, rule *doccode.Rule) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if rule == nil {
			yield("", errs.Configurationf("storage: list without a rule"))
			return
		}
		base := filepath.Join(l.root, ruleDir(rule))
		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && p == base {
					return filepath.SkipAll
				}
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), indexExt) {
				return nil
			}
			code := strings.TrimSuffix(d.Name(), indexExt)
			if filepath.Base(filepath.Dir(p)) != code {
				return nil
			}
			idx, err := readIndex(filepath.Dir(p), code)
			if err != nil {
				return err
			}
			if len(idx.Revisions) == 0 {
				return nil
			}
			if !yield(code, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", errs.Transientf("list rule %d: %v", rule.ID, err))
		}
	}
}

func notFound(code string, rev int) error {
	if rev == 0 {
		return errs.NotFoundf("document %s", code)
	}
	return errs.NotFoundf("document %s revision %d", code, rev)
}
