// compress.go implements the transfer encodings: gzip, zstd and lz4.
//
// Each codec writes its name into the revision record when it encodes and
// decodes only content carrying that name, so revisions stored before a
// codec was enabled, or under a different codec, pass through untouched.
// The first codec to encode wins; later ones see the marker and skip.
//
// Design: zstd and lz4 keep content as-is when encoding would not shrink
// it. gzip always encodes, matching what older repositories expect.

package stages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
)

// Codec names as recorded in Metadata.Compression.
const (
	Gzip = "gzip"
	Zstd = "zstd"
	LZ4  = "lz4"
)

var errIncompressible = errors.New("content does not compress")

// codec encodes and decodes whole buffers. size is the original length,
// known from the revision record.
type codec interface {
	encode(data []byte) ([]byte, error)
	decode(data []byte, size int64) ([]byte, error)
}

// Compress is a transfer stage wrapping one codec.
type Compress struct {
	base
	kind  string
	codec codec
}

// NewCompress returns the stage for codec kind (Gzip, Zstd or LZ4). level
// applies to gzip only; zero means the default.
func NewCompress(name, kind string, level int) (*Compress, error) {
	var c codec
	switch kind {
	case Gzip:
		if level == 0 {
			level = gzip.DefaultCompression
		}
		if level < gzip.HuffmanOnly || level > gzip.BestCompression {
			return nil, errs.Configurationf("stage %s: gzip level %d out of range", name, level)
		}
		c = gzipCodec{level: level}
	case Zstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errs.Configurationf("stage %s: %v", name, err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errs.Configurationf("stage %s: %v", name, err)
		}
		c = &zstdCodec{enc: enc, dec: dec}
	case LZ4:
		c = lz4Codec{}
	default:
		return nil, errs.Configurationf("stage %s: unknown codec %q", name, kind)
	}
	return &Compress{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       kind + " compression",
				Description: "Compresses content at rest",
				Class:       plugin.ClassTransfer,
				Order:       plugin.ClassTransfer.DefaultOrder(),
				Active:      true,
			},
			orders: map[plugin.Point]int{plugin.BeforeRetrieval: 10},
			points: []plugin.Point{plugin.BeforeStorage, plugin.BeforeRetrieval},
		},
		kind:  kind,
		codec: c,
	}, nil
}

// Codec returns the name recorded for content this stage encodes.
func (c *Compress) Codec() string { return c.kind }

// Work implements plugin.Stage.
func (c *Compress) Work(_ context.Context, point plugin.Point, doc *document.Document) plugin.Outcome {
	switch point {
	case plugin.BeforeStorage:
		if doc.Buffer == nil || doc.Current.Compression != "" {
			return plugin.Continue()
		}
		if doc.Current.Size == 0 {
			doc.Current.Size = doc.Size()
		}
		out, err := c.codec.encode(doc.Buffer)
		if errors.Is(err, errIncompressible) {
			return plugin.Continue()
		}
		if err != nil {
			return plugin.Abort(errs.Transientf("%s: %v", c.Codec(), err))
		}
		doc.Buffer = out
		doc.Current.Compression = c.Codec()

	case plugin.BeforeRetrieval:
		if doc.Buffer == nil || doc.Current.Compression != c.Codec() {
			return plugin.Continue()
		}
		out, err := c.codec.decode(doc.Buffer, doc.Current.Size)
		if err != nil {
			return plugin.Abort(errs.Validationf("%s r%d: corrupt %s content: %v", doc.Code, doc.Current.Revision, c.Codec(), err))
		}
		doc.Buffer = out
	}
	return plugin.Continue()
}

type gzipCodec struct{ level int }

func (g gzipCodec) encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) decode(data []byte, _ int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// zstdCodec shares one encoder and decoder; both are safe for concurrent
// EncodeAll and DecodeAll.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (z *zstdCodec) encode(data []byte) ([]byte, error) {
	out := z.enc.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

func (z *zstdCodec) decode(data []byte, size int64) ([]byte, error) {
	out, err := z.dec.DecodeAll(data, make([]byte, 0, size))
	if err != nil {
		return nil, err
	}
	if size > 0 && int64(len(out)) != size {
		return nil, fmt.Errorf("got %d bytes, expected %d", len(out), size)
	}
	return out, nil
}

// lz4Codec uses block mode, which needs the original length to decode.
type lz4Codec struct{}

func (lz4Codec) encode(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func (lz4Codec) decode(data []byte, size int64) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("original size unknown")
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if int64(n) != size {
		return nil, fmt.Errorf("got %d bytes, expected %d", n, size)
	}
	return dst, nil
}
