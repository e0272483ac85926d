// Package dms is the document management service: it owns the rule and
// stage registries, runs the pipelines and implements service.Service.
//
// A Service is configured in two phases. During setup rules and stages are
// registered, either from configuration by Open or directly through
// RegisterRule and RegisterStage. The first request seals both registries:
// from then on the set of rules and stages is fixed, so every request sees
// the same pipelines for its whole run.
package dms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/pipeline"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/service"
	"github.com/jpl-au/dms/internal/storage"
	"github.com/jpl-au/dms/internal/store"
)

// Options wires a Service.
type Options struct {
	Rules   *doccode.Registry
	Stages  *plugin.Registry
	Backend storage.Backend
	// Tagger is optional; without it tag queries fail with a
	// configuration error.
	Tagger store.Tagger
	Tracer trace.Tracer

	// Uncategorized is config.UncategorizedFallback (the default) or
	// config.UncategorizedReject.
	Uncategorized string
	// MaxContent bounds ingested content in bytes; 0 means no limit.
	MaxContent int64
	// Groups resolves a user's groups. Nil gives every user no groups.
	Groups func(user string) []string

	// DB is handed to extensions through their Context.
	DB *sql.DB
	// Closers run on Close in reverse order.
	Closers []func() error
}

// Service implements service.Service.
type Service struct {
	rules   *doccode.Registry
	stages  *plugin.Registry
	backend storage.Backend
	tagger  store.Tagger
	exec    *pipeline.Executor

	uncategorized string
	maxContent    int64
	groups        func(string) []string

	db      *sql.DB
	closers []func() error

	mu      sync.Mutex
	sealed  bool
	sealErr error

	extCtx extension.Context
}

var _ service.Service = (*Service)(nil)

// New creates a Service from explicit parts.
func New(opts Options) (*Service, error) {
	if opts.Rules == nil || opts.Stages == nil || opts.Backend == nil {
		return nil, errs.Configurationf("dms: rules, stages and backend are required")
	}
	policy := opts.Uncategorized
	if policy == "" {
		policy = config.UncategorizedFallback
	}
	if policy != config.UncategorizedFallback && policy != config.UncategorizedReject {
		return nil, errs.Configurationf("dms: unknown uncategorized policy %q", policy)
	}
	return &Service{
		rules:         opts.Rules,
		stages:        opts.Stages,
		backend:       opts.Backend,
		tagger:        opts.Tagger,
		exec:          pipeline.New(opts.Stages, opts.Tracer),
		uncategorized: policy,
		maxContent:    opts.MaxContent,
		groups:        opts.Groups,
		db:            opts.DB,
		closers:       opts.Closers,
	}, nil
}

// Close runs the closers in reverse order and returns their errors joined.
func (s *Service) Close() error {
	var errList []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	s.closers = nil
	return errors.Join(errList...)
}

// DB returns the metadata database, or nil when the service has none.
func (s *Service) DB() *sql.DB { return s.db }

// Backend returns the storage backend.
func (s *Service) Backend() storage.Backend { return s.backend }

// Seal freezes the rule and stage registries. It is called by the first
// request; calling it earlier surfaces setup errors at startup.
//
// Sealing checks that the uncategorized policy can be honoured: a fallback
// policy needs an active rule flagged no_doccode.
func (s *Service) Seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return s.sealErr
	}
	s.sealed = true
	s.rules.Seal()
	s.stages.Seal()

	if s.uncategorized == config.UncategorizedFallback {
		if fb := s.rules.Fallback(); fb == nil || !fb.Active {
			s.sealErr = errs.Configurationf("uncategorized policy is fallback but no active no_doccode rule is registered")
		}
	}
	return s.sealErr
}

// SetExtensionContext sets the extension context for firing events.
// Called from cmd/root.go after creating the context.
func (s *Service) SetExtensionContext(ctx extension.Context) {
	s.extCtx = ctx
}

// fireEvent notifies all registered extension event handlers.
//
// Handler errors are logged, never returned: by the time an event fires
// the pipeline has committed and there is nothing left to refuse.
func (s *Service) fireEvent(e extension.Event) {
	if s.extCtx == nil {
		return
	}
	for _, h := range extension.Handlers() {
		if err := h.HandleEvent(s.extCtx, e); err != nil {
			name := fmt.Sprintf("%T", h)
			if ext, ok := h.(extension.Extension); ok {
				name = ext.Name()
			}
			log.Event("event:error", "error").
				Code(e.EventCode()).
				Detail("ext", name).
				Detail("event", string(e.EventType())).
				Write(err)
		}
	}
}

// user resolves a name into a document.User with its groups.
func (s *Service) user(name string) document.User {
	u := document.User{Name: name}
	if s.groups != nil && name != "" {
		u.Groups = s.groups(name)
	}
	return u
}

// Rules implements service.Service.
func (s *Service) Rules() []*doccode.Rule { return s.rules.Rules() }

// Stages implements service.Service.
func (s *Service) Stages() []plugin.Registration { return s.stages.All() }

// Tags implements service.Service.
func (s *Service) Tags(ctx context.Context) ([]store.TagCount, error) {
	if s.tagger == nil {
		return nil, errs.Configurationf("no tag database configured")
	}
	return s.tagger.AllTags(ctx)
}

// CodesWithTag implements service.Service.
func (s *Service) CodesWithTag(ctx context.Context, tag string) ([]string, error) {
	if s.tagger == nil {
		return nil, errs.Configurationf("no tag database configured")
	}
	return s.tagger.CodesWithTag(ctx, tag)
}

// RegisterRule implements service.Service.
func (s *Service) RegisterRule(r doccode.Rule) (*doccode.Rule, error) {
	if s.isSealed() {
		return nil, errs.Configurationf("rule %d: service is sealed", r.ID)
	}
	return s.rules.Register(r)
}

// RegisterStage implements service.Service.
func (s *Service) RegisterStage(st plugin.Stage, points []plugin.Point, ruleIDs []int) error {
	if s.isSealed() {
		return errs.Configurationf("stage %s: service is sealed", st.Info().Name)
	}
	if err := s.stages.Register(st, points...); err != nil {
		return err
	}
	name := st.Info().Name
	if len(ruleIDs) == 0 {
		return s.stages.AssignAll(name)
	}
	for _, id := range ruleIDs {
		if _, err := s.rules.Get(id); err != nil {
			return errs.Configurationf("stage %s: unknown rule %d", name, id)
		}
		if err := s.stages.Assign(id, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) isSealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}
