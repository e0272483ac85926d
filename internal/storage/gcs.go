// gcs.go implements Backend on Google Cloud Storage.
//
// Object layout under the configured prefix:
//
//	<ruleID>/<segments...>/<code>/counter       last allocated revision
//	<ruleID>/<segments...>/<code>/r00000001     revision content
//
// Revision allocation is a compare-and-swap on the counter object using
// generation preconditions, retried on 412. The revision object itself is
// written with a DoesNotExist precondition, so a lost race surfaces as a
// CollisionError instead of an overwrite. Revision metadata travels in the
// object's custom metadata. The counter outlives its revisions, so a unit
// removed and stored again continues its numbering.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
)

const (
	counterObject = "counter"
	metaKey       = "dms-metadata"
	maxCASRetries = 16
)

// GCS stores revisions as objects in a bucket.
type GCS struct {
	bucket *storage.BucketHandle
	prefix string
}

var _ Backend = (*GCS)(nil)

// NewGCS returns a backend writing under prefix in bucket.
func NewGCS(client *storage.Client, bucket, prefix string) *GCS {
	return &GCS{bucket: client.Bucket(bucket), prefix: strings.Trim(prefix, "/")}
}

func (g *GCS) unit(rule *doccode.Rule, code string) (string, error) {
	p, err := UnitPath(rule, code)
	if err != nil {
		return "", err
	}
	return path.Join(g.prefix, p), nil
}

func revisionObject(unit string, rev int) string {
	return fmt.Sprintf("%s/r%08d", unit, rev)
}

// parseRevisionObject splits ".../<code>/r00000003" into code and revision.
// Revisions past 99999999 outgrow the padding and are still accepted.
func parseRevisionObject(name string) (code string, rev int, ok bool) {
	dir, base := path.Split(name)
	digits, found := strings.CutPrefix(base, "r")
	if !found || digits == "" || strings.Trim(digits, "0123456789") != "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return "", 0, false
	}
	return path.Base(dir), n, true
}

func isPrecondition(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func gcsErr(op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errs.NotFoundf("%s", op)
	}
	return errs.Transientf("%s: %v", op, err)
}

// nextRevision bumps the unit counter with a generation-matched write.
func (g *GCS) nextRevision(ctx context.Context, unit string) (int, error) {
	obj := g.bucket.Object(unit + "/" + counterObject)
	for range maxCASRetries {
		last := 0
		cond := storage.Conditions{DoesNotExist: true}

		r, err := obj.NewReader(ctx)
		switch {
		case err == nil:
			b, rerr := io.ReadAll(r)
			gen := r.Attrs.Generation
			r.Close()
			if rerr != nil {
				return 0, errs.Transientf("read counter %s: %v", unit, rerr)
			}
			if last, err = strconv.Atoi(strings.TrimSpace(string(b))); err != nil {
				return 0, errs.Transientf("corrupt counter %s: %v", unit, err)
			}
			cond = storage.Conditions{GenerationMatch: gen}
		case !errors.Is(err, storage.ErrObjectNotExist):
			return 0, errs.Transientf("read counter %s: %v", unit, err)
		}

		next := last + 1
		w := obj.If(cond).NewWriter(ctx)
		w.ContentType = "text/plain"
		if _, err := io.WriteString(w, strconv.Itoa(next)); err != nil {
			_ = w.Close()
			if isPrecondition(err) {
				continue
			}
			return 0, errs.Transientf("write counter %s: %v", unit, err)
		}
		if err := w.Close(); err != nil {
			if isPrecondition(err) {
				continue
			}
			return 0, errs.Transientf("write counter %s: %v", unit, err)
		}
		return next, nil
	}
	return 0, errs.Transientf("counter %s: too much contention", unit)
}

// Store implements Backend.
func (g *GCS) Store(ctx context.Context, rule *doccode.Rule, code string, data []byte, meta document.Metadata) (int, error) {
	unit, err := g.unit(rule, code)
	if err != nil {
		return 0, err
	}
	rev, err := g.nextRevision(ctx, unit)
	if err != nil {
		return 0, err
	}

	meta.Revision = rev
	if meta.Size == 0 {
		meta.Size = int64(len(data))
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	name := revisionObject(unit, rev)
	w := g.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = meta.Mimetype
	w.Metadata = map[string]string{metaKey: string(encoded)}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		if isPrecondition(err) {
			return 0, errs.Collisionf("%s revision %d already exists", code, rev)
		}
		return 0, errs.Transientf("write %s: %v", name, err)
	}
	if err := w.Close(); err != nil {
		if isPrecondition(err) {
			return 0, errs.Collisionf("%s revision %d already exists", code, rev)
		}
		return 0, errs.Transientf("finalize %s: %v", name, err)
	}
	return rev, nil
}

func decodeMeta(attrs *storage.ObjectAttrs, rev int) document.Metadata {
	var m document.Metadata
	if s, ok := attrs.Metadata[metaKey]; ok {
		_ = json.Unmarshal([]byte(s), &m)
	}
	m.Revision = rev
	if m.Mimetype == "" {
		m.Mimetype = attrs.ContentType
	}
	if m.Created.IsZero() {
		m.Created = attrs.Created
	}
	if m.Size == 0 {
		m.Size = attrs.Size
	}
	return m
}

// Revisions implements Backend.
func (g *GCS) Revisions(ctx context.Context, rule *doccode.Rule, code string) ([]document.Metadata, error) {
	unit, err := g.unit(rule, code)
	if err != nil {
		return nil, err
	}
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: unit + "/r"})
	var revs []document.Metadata
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, gcsErr("list "+code, err)
		}
		c, rev, ok := parseRevisionObject(attrs.Name)
		if !ok || c != code {
			continue
		}
		revs = append(revs, decodeMeta(attrs, rev))
	}
	if len(revs) == 0 {
		return nil, errs.NotFoundf("document %s", code)
	}
	slices.SortFunc(revs, func(a, b document.Metadata) int { return a.Revision - b.Revision })
	return revs, nil
}

// Retrieve implements Backend.
func (g *GCS) Retrieve(ctx context.Context, rule *doccode.Rule, code string, rev int) ([]byte, document.Metadata, error) {
	if rev == 0 {
		revs, err := g.Revisions(ctx, rule, code)
		if err != nil {
			return nil, document.Metadata{}, err
		}
		m, _ := latest(revs)
		rev = m.Revision
	}
	unit, err := g.unit(rule, code)
	if err != nil {
		return nil, document.Metadata{}, err
	}

	r, err := g.bucket.Object(revisionObject(unit, rev)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, document.Metadata{}, notFound(code, rev)
	}
	if err != nil {
		return nil, document.Metadata{}, gcsErr("read "+code, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, document.Metadata{}, errs.Transientf("read %s r%d: %v", code, rev, err)
	}

	attrs, err := g.bucket.Object(revisionObject(unit, rev)).Attrs(ctx)
	if err != nil {
		return nil, document.Metadata{}, gcsErr("attrs "+code, err)
	}
	return data, decodeMeta(attrs, rev), nil
}

// Delete implements Backend. Only revision objects are deleted; the
// counter object stays even when the whole unit goes, so a number is never
// handed out twice.
func (g *GCS) Delete(ctx context.Context, rule *doccode.Rule, code string, rev int) error {
	unit, err := g.unit(rule, code)
	if err != nil {
		return err
	}
	if rev != 0 {
		err := g.bucket.Object(revisionObject(unit, rev)).Delete(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return notFound(code, rev)
		}
		if err != nil {
			return gcsErr("delete "+code, err)
		}
		return nil
	}

	it := g.bucket.Objects(ctx, &storage.Query{Prefix: unit + "/r"})
	n := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return gcsErr("list "+code, err)
		}
		if c, _, ok := parseRevisionObject(attrs.Name); !ok || c != code {
			continue
		}
		if err := g.bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return gcsErr("delete "+attrs.Name, err)
		}
		n++
	}
	if n == 0 {
		return errs.NotFoundf("document %s", code)
	}
	return nil
}

// List implements Backend. Object listings are lexically ordered, so all
// revisions of one unit arrive together.
func (g *GCS) List(ctx context.Context, rule *doccode.Rule) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if rule == nil {
			yield("", errs.Configurationf("storage: list without a rule"))
			return
		}
		it := g.bucket.Objects(ctx, &storage.Query{Prefix: path.Join(g.prefix, ruleDir(rule)) + "/"})
		prev := ""
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", gcsErr("list rule "+ruleDir(rule), err))
				return
			}
			code, _, ok := parseRevisionObject(attrs.Name)
			if !ok || code == prev {
				continue
			}
			prev = code
			if !yield(code, nil) {
				return
			}
		}
	}
}
