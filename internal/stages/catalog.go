// catalog.go builds stages from configuration.
//
// Separated from the stage implementations so each stage stays a plain
// constructor callable from tests, while configuration concerns (names,
// points, orders, rule assignment) live in one place.

package stages

import (
	"fmt"
	"slices"
	"time"

	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/storage"
	"github.com/jpl-au/dms/internal/store"
)

// Spec declares one configured stage.
type Spec struct {
	// Name identifies the stage; defaults to Kind.
	Name string
	Kind string
	// Points limits the stage to some of the points its kind supports.
	// Empty means all of them.
	Points []string
	// Order replaces the kind's per-point ordering with one value.
	Order *int
	// Active overrides the kind's default (active).
	Active *bool
	// Rules opts rules in by id. Empty means every rule.
	Rules   []int
	Options Options
}

// Deps are the services stages are built on.
type Deps struct {
	Backend storage.Backend
	Tagger  store.Tagger
	// Now is the clock the metadata stage stamps revisions with.
	Now func() time.Time
}

type env struct {
	deps  Deps
	cache *Cache
}

type factory func(name string, opts Options, e *env) (plugin.Stage, error)

var kinds = map[string]factory{
	"filetype": func(name string, opts Options, _ *env) (plugin.Stage, error) {
		return NewFileType(name, opts.list("allowed", nil))
	},
	"security": func(name string, opts Options, _ *env) (plugin.Stage, error) {
		return NewSecurity(name, opts.str("group", DefaultGroup)), nil
	},
	"hashcode": func(name string, opts Options, _ *env) (plugin.Stage, error) {
		return NewHashcode(name, []byte(opts.str("key", "")))
	},
	Gzip: func(name string, opts Options, _ *env) (plugin.Stage, error) {
		level, err := opts.integer("level", 0)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		return NewCompress(name, Gzip, level)
	},
	Zstd: func(name string, _ Options, _ *env) (plugin.Stage, error) {
		return NewCompress(name, Zstd, 0)
	},
	LZ4: func(name string, _ Options, _ *env) (plugin.Stage, error) {
		return NewCompress(name, LZ4, 0)
	},
	"metadata": func(name string, _ Options, e *env) (plugin.Stage, error) {
		return NewMetadata(name, e.deps.Now), nil
	},
	"convert": func(name string, _ Options, _ *env) (plugin.Stage, error) {
		return NewConvert(name), nil
	},
	"tags": func(name string, _ Options, e *env) (plugin.Stage, error) {
		return NewTags(name, e.deps.Tagger)
	},
	"cache": func(name string, opts Options, e *env) (plugin.Stage, error) {
		c, err := e.sharedCache(opts)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		return NewCacheLookup(name, c), nil
	},
	"cache_fill": func(name string, opts Options, e *env) (plugin.Stage, error) {
		c, err := e.sharedCache(opts)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		return NewCacheFill(name, c), nil
	},
	"storage": func(name string, _ Options, e *env) (plugin.Stage, error) {
		return NewStorage(name, e.deps.Backend)
	},
}

// sharedCache returns the one Cache every cache stage of a build uses,
// creating it from the first ttl option seen.
func (e *env) sharedCache(opts Options) (*Cache, error) {
	if e.cache != nil {
		return e.cache, nil
	}
	ttl := DefaultCacheTTL
	if v := opts.str("ttl", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errs.Configurationf("cache ttl %q is not a positive duration", v)
		}
		ttl = d
	}
	e.cache = NewCache(ttl)
	return e.cache, nil
}

// Kinds returns every stage kind Build understands, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Defaults is the stage set used when configuration declares none.
// The tags stage is included only when a tag database is available.
func Defaults(deps Deps) []Spec {
	specs := []Spec{
		{Kind: "filetype"},
		{Kind: "hashcode"},
		{Kind: "metadata"},
		{Kind: Gzip},
		{Kind: "convert"},
	}
	if deps.Tagger != nil {
		specs = append(specs, Spec{Kind: "tags"})
	}
	return append(specs,
		Spec{Kind: "cache"},
		Spec{Kind: "cache_fill"},
		Spec{Kind: "storage"},
	)
}

// Build constructs every spec, registers it and assigns it to its rules.
// The first failure stops the build with a configuration error.
func Build(reg *plugin.Registry, specs []Spec, deps Deps) ([]plugin.Stage, error) {
	e := &env{deps: deps}
	var built []plugin.Stage
	for _, spec := range specs {
		st, err := build(reg, spec, e)
		if err != nil {
			return nil, err
		}
		built = append(built, st)
	}
	return built, nil
}

func build(reg *plugin.Registry, spec Spec, e *env) (plugin.Stage, error) {
	newStage, ok := kinds[spec.Kind]
	if !ok {
		return nil, errs.Configurationf("unknown stage kind %q", spec.Kind)
	}
	name := spec.Name
	if name == "" {
		name = spec.Kind
	}
	st, err := newStage(name, spec.Options, e)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			err = fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
		}
		return nil, err
	}
	b := st.(interface{ self() *base }).self()
	if spec.Active != nil {
		b.info.Active = *spec.Active
	}

	points := b.points
	if len(spec.Points) > 0 {
		points = nil
		for _, p := range spec.Points {
			pt, err := plugin.ParsePoint(p)
			if err != nil {
				return nil, errs.Configurationf("stage %s: %v", name, err)
			}
			if !b.supports(pt) {
				return nil, errs.Configurationf("stage %s: kind %s cannot run at %s", name, spec.Kind, pt)
			}
			points = append(points, pt)
		}
	}

	if spec.Order != nil {
		for _, p := range points {
			if err := reg.RegisterAt(st, p, *spec.Order); err != nil {
				return nil, err
			}
		}
	} else if err := reg.Register(st, points...); err != nil {
		return nil, err
	}

	if len(spec.Rules) == 0 {
		return st, reg.AssignAll(name)
	}
	for _, id := range spec.Rules {
		if err := reg.Assign(id, name); err != nil {
			return nil, err
		}
	}
	return st, nil
}
