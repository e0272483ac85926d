// filetype.go implements the content type validator.
//
// Separated from metadata.go because rejecting content is validation, and
// validation must finish before anything is recorded about the document.
// The sniffed type is kept on the document so later stages do not sniff
// again.

package stages

import (
	"context"
	"slices"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/mimetype"
	"github.com/jpl-au/dms/internal/plugin"
)

// DefaultAllowed is the content accepted when no allow list is configured.
var DefaultAllowed = []string{
	mimetype.PDF, mimetype.TIFF, mimetype.JPEG, mimetype.GIF, mimetype.PNG,
	mimetype.Text, mimetype.C, mimetype.CPP, mimetype.Word, mimetype.Excel,
}

// FileType rejects content whose sniffed type is not allowed.
type FileType struct {
	base
	allowed []string
}

// NewFileType returns a validator accepting the given mimetypes or
// extensions. An empty list means DefaultAllowed.
func NewFileType(name string, allowed []string) (*FileType, error) {
	var resolved []string
	for _, a := range allowed {
		m := mimetype.Resolve(a)
		if m == "" {
			return nil, errs.Configurationf("stage %s: unknown file type %q", name, a)
		}
		if !slices.Contains(resolved, m) {
			resolved = append(resolved, m)
		}
	}
	if len(resolved) == 0 {
		resolved = slices.Clone(DefaultAllowed)
	}
	return &FileType{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "File Type Validator",
				Description: "Validates document type against supported types",
				Class:       plugin.ClassValidation,
				Order:       plugin.ClassValidation.DefaultOrder(),
				Active:      true,
			},
			points: []plugin.Point{plugin.BeforeStorage},
		},
		allowed: resolved,
	}, nil
}

// Allowed returns the accepted mimetypes.
func (f *FileType) Allowed() []string { return slices.Clone(f.allowed) }

// Work implements plugin.Stage.
func (f *FileType) Work(_ context.Context, _ plugin.Point, doc *document.Document) plugin.Outcome {
	if doc.Buffer == nil {
		return plugin.Abort(errs.Validationf("%s: no content", doc.Code))
	}
	m := mimetype.DetectNamed(doc.Buffer, doc.Extension)
	if !slices.Contains(f.allowed, m) {
		return plugin.Abort(errs.Validationf("file type %s is not supported", m))
	}
	doc.Mimetype = m
	if doc.Extension == "" {
		doc.Extension = mimetype.Extension(m)
	}
	return plugin.Continue()
}
