// open.go wires a Service from a repository and its configuration.
//
// Separated from dms.go so that tests and embedders can build a Service
// from explicit parts with New, while the command line, the MCP server and
// the hot folder all get the same wiring through Open.

package dms

import (
	"context"
	"fmt"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/repo"
	"github.com/jpl-au/dms/internal/stages"
	"github.com/jpl-au/dms/internal/storage"
	"github.com/jpl-au/dms/internal/store"
	"github.com/jpl-au/dms/internal/tracing"
)

// Open opens the repository's database, builds the backend, the rules and
// the stages named by cfg, and returns an unsealed Service. The caller
// must Close it.
func Open(ctx context.Context, r repo.Repo, cfg *config.Config) (_ *Service, err error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(r.DBPath())
	if err != nil {
		return nil, errs.Transientf("%v", err)
	}
	closers := []func() error{st.Close, func() error {
		return st.Checkpoint(context.Background())
	}}
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()
	if err := st.Init(); err != nil {
		return nil, errs.Transientf("init store: %v", err)
	}

	backend, closeBackend, err := openBackend(ctx, r, cfg, st)
	if err != nil {
		return nil, err
	}
	if closeBackend != nil {
		closers = append(closers, closeBackend)
	}

	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.TracingEnabled(),
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		SampleRate:   cfg.SampleRate(),
	})
	if err != nil {
		return nil, errs.Configurationf("tracing: %v", err)
	}
	closers = append(closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	})

	rules := doccode.NewRegistry(st)
	for _, rc := range cfg.RuleSet() {
		if _, err := rules.Register(RuleFromConfig(rc)); err != nil {
			return nil, err
		}
	}

	reg := plugin.NewRegistry()
	deps := stages.Deps{Backend: backend, Tagger: st, Now: time.Now}
	specs := stages.Defaults(deps)
	if len(cfg.Stages) > 0 {
		specs = SpecsFromConfig(cfg.Stages)
	}
	if _, err := stages.Build(reg, specs, deps); err != nil {
		return nil, err
	}

	return New(Options{
		Rules:         rules,
		Stages:        reg,
		Backend:       backend,
		Tagger:        st,
		Tracer:        tp.Tracer(),
		Uncategorized: cfg.UncategorizedPolicy(),
		MaxContent:    cfg.MaxContent(),
		Groups:        cfg.Groups,
		DB:            st.DB(),
		Closers:       closers,
	})
}

// openBackend builds the configured storage backend. The returned closer
// may be nil.
func openBackend(ctx context.Context, r repo.Repo, cfg *config.Config, st *store.SQLiteStore) (storage.Backend, func() error, error) {
	switch cfg.Backend() {
	case config.BackendSQLite:
		return st, nil, nil
	case config.BackendGCS:
		client, err := gcs.NewClient(ctx, option.WithUserAgent("dms"))
		if err != nil {
			return nil, nil, errs.Transientf("gcs client: %v", err)
		}
		return storage.NewGCS(client, cfg.Storage.Bucket, cfg.Storage.Prefix), client.Close, nil
	default:
		l, err := storage.NewLocal(r.Resolve(cfg.Root()))
		if err != nil {
			return nil, nil, err
		}
		return l, nil, nil
	}
}

// RuleFromConfig converts a configured rule.
func RuleFromConfig(c config.Rule) doccode.Rule {
	return doccode.Rule{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Pattern:       c.Pattern,
		Split:         c.Split,
		Format:        c.Format,
		Width:         c.Width,
		SequenceStart: c.SequenceStart,
		NoDoccode:     c.NoDoccode,
		Active:        c.IsActive(),
		Luhn:          c.Luhn,
	}
}

// SpecsFromConfig converts configured stages.
func SpecsFromConfig(cs []config.Stage) []stages.Spec {
	out := make([]stages.Spec, len(cs))
	for i, c := range cs {
		out[i] = stages.Spec{
			Name:    c.StageName(),
			Kind:    c.Kind,
			Points:  c.Points,
			Order:   c.Order,
			Active:  c.Active,
			Rules:   c.Rules,
			Options: stages.Options(c.Options),
		}
	}
	return out
}

// Describe is a one-line summary of how a Service was wired, for logs.
func Describe(cfg *config.Config) string {
	return fmt.Sprintf("backend=%s uncategorized=%s stages=%d rules=%d",
		cfg.Backend(), cfg.UncategorizedPolicy(), len(cfg.Stages), len(cfg.RuleSet()))
}
