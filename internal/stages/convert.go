// convert.go serves a revision in a format other than the stored one.
//
// Raster images convert among themselves through image codecs and into
// PDF through pdfcpu, one image per page. Anything else is refused rather
// than served under a misleading extension.

package stages

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/tiff"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/mimetype"
	"github.com/jpl-au/dms/internal/plugin"
)

// Convert honours Document.RequestedExtension.
type Convert struct {
	base
}

// NewConvert returns a format conversion stage.
func NewConvert(name string) *Convert {
	return &Convert{base: base{
		info: plugin.Info{
			Name:        name,
			Title:       "File Type Converter",
			Description: "Converts documents to the requested format",
			Class:       plugin.ClassTransfer,
			Order:       30,
			Active:      true,
		},
		points: []plugin.Point{plugin.BeforeRetrieval},
	}}
}

// Work implements plugin.Stage.
func (c *Convert) Work(_ context.Context, _ plugin.Point, doc *document.Document) plugin.Outcome {
	if doc.Options.OnlyMetadata || doc.Buffer == nil || doc.RequestedExtension == "" {
		return plugin.Continue()
	}
	target := mimetype.FromExtension(doc.RequestedExtension)
	if target == "" {
		return plugin.Abort(errs.Validationf("unknown format %q", doc.RequestedExtension))
	}
	source := doc.Mimetype
	if source == "" {
		source = mimetype.DetectNamed(doc.Buffer, doc.Extension)
	}
	if source == target {
		return plugin.Continue()
	}

	out, err := convert(doc.Buffer, source, target)
	if err != nil {
		return plugin.Abort(err)
	}
	doc.Buffer = out
	doc.Mimetype = target
	return plugin.Continue()
}

func convert(data []byte, from, to string) ([]byte, error) {
	if !mimetype.IsImage(from) {
		return nil, errs.Validationf("cannot convert %s to %s", from, to)
	}
	switch to {
	case mimetype.PDF:
		return imageToPDF(data, from)
	case mimetype.JPEG, mimetype.PNG, mimetype.GIF, mimetype.TIFF:
		img, err := decodeImage(data, from)
		if err != nil {
			return nil, err
		}
		return encodeImage(img, to)
	}
	return nil, errs.Validationf("cannot convert %s to %s", from, to)
}

func decodeImage(data []byte, m string) (image.Image, error) {
	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch m {
	case mimetype.JPEG:
		img, err = jpeg.Decode(r)
	case mimetype.PNG:
		img, err = png.Decode(r)
	case mimetype.GIF:
		img, err = gif.Decode(r)
	case mimetype.TIFF:
		img, err = tiff.Decode(r)
	default:
		return nil, errs.Validationf("unsupported image type %s", m)
	}
	if err != nil {
		return nil, errs.Validationf("decode %s: %v", m, err)
	}
	return img, nil
}

func encodeImage(img image.Image, m string) ([]byte, error) {
	var (
		buf bytes.Buffer
		err error
	)
	switch m {
	case mimetype.JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case mimetype.PNG:
		err = png.Encode(&buf, img)
	case mimetype.GIF:
		err = gif.Encode(&buf, img, nil)
	case mimetype.TIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	}
	if err != nil {
		return nil, errs.Transientf("encode %s: %v", m, err)
	}
	return buf.Bytes(), nil
}

// imageToPDF embeds the image on a single page. pdfcpu reads JPEG and PNG
// directly; other formats are re-encoded as PNG first.
func imageToPDF(data []byte, from string) ([]byte, error) {
	if from != mimetype.JPEG && from != mimetype.PNG {
		img, err := decodeImage(data, from)
		if err != nil {
			return nil, err
		}
		if data, err = encodeImage(img, mimetype.PNG); err != nil {
			return nil, err
		}
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	var out bytes.Buffer
	imgs := []io.Reader{bytes.NewReader(data)}
	if err := api.ImportImages(nil, &out, imgs, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return nil, errs.Validationf("convert to pdf: %v", err)
	}
	return out.Bytes(), nil
}
