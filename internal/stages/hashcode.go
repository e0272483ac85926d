// hashcode.go implements content digests.
//
// On store the digest of the original content is written into the
// revision record. On retrieval the content, once every transfer encoding
// has been undone, must hash to the recorded value, and to the hashcode
// the caller quoted if there is one. A quoted hashcode works as a
// capability: links handed out with it stop working if the content changes.

package stages

import (
	"context"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
)

// OptHashcode is the document option carrying a caller-quoted hashcode.
const OptHashcode = "hashcode"

// Hashcode records and verifies keyed blake2b-256 digests.
type Hashcode struct {
	base
	key []byte
}

// NewHashcode returns a digest stage. key may be empty; longer than 64
// bytes is a configuration error.
func NewHashcode(name string, key []byte) (*Hashcode, error) {
	if len(key) > blake2b.Size {
		return nil, errs.Configurationf("stage %s: hash key longer than %d bytes", name, blake2b.Size)
	}
	return &Hashcode{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "Hash",
				Description: "Hash code generation on storage, validation on retrieval",
				Class:       plugin.ClassValidation,
				Order:       15,
				Active:      true,
			},
			orders: map[plugin.Point]int{
				plugin.BeforeRetrieval: 20,
				plugin.BeforeUpdate:    plugin.ClassValidation.DefaultOrder(),
			},
			points: []plugin.Point{plugin.BeforeStorage, plugin.BeforeRetrieval, plugin.BeforeUpdate},
		},
		key: key,
	}, nil
}

// Sum returns the hex digest of data.
func (h *Hashcode) Sum(data []byte) string {
	d, _ := blake2b.New256(h.key) // key length checked in NewHashcode
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

// Work implements plugin.Stage.
func (h *Hashcode) Work(_ context.Context, point plugin.Point, doc *document.Document) plugin.Outcome {
	switch point {
	case plugin.BeforeStorage:
		if doc.Buffer == nil {
			return plugin.Abort(errs.Validationf("%s: no content", doc.Code))
		}
		doc.Current.Hashcode = h.Sum(doc.Buffer)

	case plugin.BeforeRetrieval:
		if doc.Options.OnlyMetadata || doc.Buffer == nil {
			return plugin.Continue()
		}
		sum := h.Sum(doc.Buffer)
		if doc.Current.Hashcode != "" && !same(sum, doc.Current.Hashcode) {
			return plugin.Abort(errs.Validationf("%s r%d: content does not match its hashcode", doc.Code, doc.Current.Revision))
		}
		if q := doc.Option(OptHashcode); q != "" && !same(sum, q) {
			return plugin.Abort(errs.Validationf("%s: hashcode did not validate", doc.Code))
		}

	case plugin.BeforeUpdate:
		if q := doc.Option(OptHashcode); q != "" && !same(doc.Current.Hashcode, q) {
			return plugin.Abort(errs.Validationf("%s: hashcode did not validate", doc.Code))
		}
	}
	return plugin.Continue()
}

func same(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
