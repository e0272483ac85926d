// Package stages provides the pipeline stages dms ships with and builds
// them from configuration.
//
// Each kind is an explicit constructor in the catalog; a configured stage
// names its kind, the points it serves and the rules that opt into it.
// Stages hold no per-run state: everything a run needs travels on the
// document, so one stage value serves concurrent runs.
package stages

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
)

// base carries what every stage reports about itself.
type base struct {
	info plugin.Info
	// orders overrides info.Order at specific points.
	orders map[plugin.Point]int
	// points lists where the stage knows how to work.
	points []plugin.Point
}

func (b *base) Info() plugin.Info { return b.info }

// OrderAt implements plugin.Orderer.
func (b *base) OrderAt(p plugin.Point) int {
	if o, ok := b.orders[p]; ok {
		return o
	}
	return b.info.Order
}

// Points returns the points the stage supports, in lifecycle order.
func (b *base) Points() []plugin.Point { return slices.Clone(b.points) }

func (b *base) supports(p plugin.Point) bool { return slices.Contains(b.points, p) }

// Options is the free-form option set of a configured stage.
type Options map[string]string

func (o Options) str(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

func (o Options) integer(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.Configurationf("option %s: %q is not a number", key, v)
	}
	return n, nil
}

// list splits a comma-separated option.
func (o Options) list(key string, def []string) []string {
	v, ok := o[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// abort fails a run with err, filing errors outside the taxonomy (raw
// database or I/O failures) as transient.
func abort(err error) plugin.Outcome {
	if errs.KindOf(err) == errs.KindUnknown {
		err = fmt.Errorf("%w: %w", errs.ErrTransient, err)
	}
	return plugin.Abort(err)
}

func (b *base) self() *base { return b }
