// metadata.go fills the revision record before the content is committed.
//
// Size and page count describe the content as the caller sent it, so the
// stage runs after validation and before any transfer encoding.

package stages

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/mimetype"
	"github.com/jpl-au/dms/internal/plugin"
)

// Metadata records creation time, author, description, size, mimetype
// and, for PDFs, the page count.
type Metadata struct {
	base
	now func() time.Time
}

// NewMetadata returns a metadata stage. now defaults to time.Now.
func NewMetadata(name string, now func() time.Time) *Metadata {
	if now == nil {
		now = time.Now
	}
	return &Metadata{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "Metadata",
				Description: "Records revision metadata",
				Class:       plugin.ClassMetadata,
				Order:       plugin.ClassMetadata.DefaultOrder(),
				Active:      true,
			},
			points: []plugin.Point{plugin.BeforeStorage},
		},
		now: now,
	}
}

// Work implements plugin.Stage.
func (m *Metadata) Work(_ context.Context, _ plugin.Point, doc *document.Document) plugin.Outcome {
	if doc.Buffer == nil {
		return plugin.Abort(errs.Validationf("%s: no content", doc.Code))
	}
	if doc.Mimetype == "" {
		doc.Mimetype = mimetype.DetectNamed(doc.Buffer, doc.Extension)
	}
	if doc.Extension == "" {
		doc.Extension = mimetype.Extension(doc.Mimetype)
	}

	cur := &doc.Current
	cur.Created = m.now().UTC()
	cur.User = doc.User.Name
	cur.Description = doc.Options.Description
	cur.Size = doc.Size()
	cur.Mimetype = doc.Mimetype
	cur.Extension = doc.Extension
	if doc.Mimetype == mimetype.PDF {
		cur.Pages = pageCount(doc.Buffer)
	}
	return plugin.Continue()
}

// pageCount returns the number of pages in a PDF, or 0 when it cannot be
// parsed. A PDF pdfcpu cannot read is still a valid document to store.
func pageCount(data []byte) int {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		slog.Debug("pdf page count failed", "error", err)
		return 0
	}
	return n
}
