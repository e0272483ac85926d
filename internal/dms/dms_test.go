package dms_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/repo"
	"github.com/jpl-au/dms/internal/service"
	"github.com/jpl-au/dms/internal/stages"
	"github.com/jpl-au/dms/internal/storage"
	"github.com/jpl-au/dms/internal/store"
)

var ctx = context.Background()

// recorder collects events for the codes a test cares about. Extensions
// register once per process, so every test shares it.
type recorder struct {
	mu     sync.Mutex
	events []extension.Event
}

func (r *recorder) Name() string                  { return "test-recorder" }
func (r *recorder) Commands() []*cobra.Command    { return nil }
func (r *recorder) MCPTools() []extension.MCPTool { return nil }

func (r *recorder) HandleEvent(_ extension.Context, e extension.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) forCode(code string) []extension.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []extension.EventType
	for _, e := range r.events {
		if e.EventCode() == code {
			out = append(out, e.EventType())
		}
	}
	return out
}

var events = &recorder{}

func init() { extension.Register(events) }

type opts struct {
	policy     string
	maxContent int64
	noFallback bool
	extra      []stages.Spec
}

// newService builds a service over a local backend and a SQLite tag and
// sequence database in a temp dir, with the default stages plus extra.
func newService(t *testing.T, o opts) *dms.Service {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "dms.db"))
	require.NoError(t, err)
	require.NoError(t, db.Init())
	backend, err := storage.NewLocal(filepath.Join(dir, "documents"))
	require.NoError(t, err)

	rules := doccode.NewRegistry(db)
	for _, rc := range config.DefaultRules() {
		if o.noFallback && rc.NoDoccode {
			continue
		}
		_, err := rules.Register(dms.RuleFromConfig(rc))
		require.NoError(t, err)
	}

	reg := plugin.NewRegistry()
	deps := stages.Deps{
		Backend: backend,
		Tagger:  db,
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	_, err = stages.Build(reg, append(stages.Defaults(deps), o.extra...), deps)
	require.NoError(t, err)

	svc, err := dms.New(dms.Options{
		Rules:         rules,
		Stages:        reg,
		Backend:       backend,
		Tagger:        db,
		Uncategorized: o.policy,
		MaxContent:    o.maxContent,
		Groups: func(user string) []string {
			if user == "alice" {
				return []string{stages.DefaultGroup}
			}
			return nil
		},
		DB:      db.DB(),
		Closers: []func() error{db.Close},
	})
	require.NoError(t, err)
	svc.SetExtensionContext(extension.NewContext(svc, db.DB(), nil))
	t.Cleanup(func() { svc.Close() })
	return svc
}

func ingest(t *testing.T, svc *dms.Service, name, body string, o service.IngestOptions) service.IngestResult {
	t.Helper()
	res, err := svc.Ingest(ctx, name, strings.NewReader(body), "alice", o)
	require.NoError(t, err)
	return res
}

func TestIngestFetch_RoundTrip(t *testing.T) {
	svc := newService(t, opts{})

	res := ingest(t, svc, "ADL-1234.txt", "first", service.IngestOptions{Description: "scan"})
	assert.Equal(t, service.IngestResult{Code: "ADL-1234", Revision: 1, Rule: 1, Stages: res.Stages}, res)
	assert.Contains(t, res.Stages, "storage")

	res = ingest(t, svc, "ADL-1234.txt", "second", service.IngestOptions{})
	assert.Equal(t, 2, res.Revision)

	got, err := svc.Fetch(ctx, "ADL-1234", service.FetchOptions{User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "second", string(got.Data))
	assert.Equal(t, 2, got.Revision)
	assert.Equal(t, "text/plain", got.Mimetype)
	assert.Equal(t, "ADL-1234.txt", got.Filename)

	first, err := svc.Fetch(ctx, "ADL-1234", service.FetchOptions{Revision: 1})
	require.NoError(t, err)
	assert.Equal(t, "first", string(first.Data))
	assert.Equal(t, "scan", first.Metadata.Description)
	assert.Equal(t, int64(5), first.Metadata.Size)
}

func TestFetch_CacheHit(t *testing.T) {
	svc := newService(t, opts{})
	ingest(t, svc, "ADL-2000.txt", "cached", service.IngestOptions{})

	a, err := svc.Fetch(ctx, "ADL-2000", service.FetchOptions{})
	require.NoError(t, err)
	assert.False(t, a.Cached)
	b, err := svc.Fetch(ctx, "ADL-2000", service.FetchOptions{})
	require.NoError(t, err)
	assert.True(t, b.Cached)
	assert.Equal(t, a.Data, b.Data)

	// A new revision invalidates.
	ingest(t, svc, "ADL-2000.txt", "fresh", service.IngestOptions{})
	c, err := svc.Fetch(ctx, "ADL-2000", service.FetchOptions{})
	require.NoError(t, err)
	assert.False(t, c.Cached)
	assert.Equal(t, "fresh", string(c.Data))
}

func TestIngest_Allocate(t *testing.T) {
	svc := newService(t, opts{})

	a := ingest(t, svc, "scan.txt", "a", service.IngestOptions{Allocate: true, Rule: 1})
	b := ingest(t, svc, "scan.txt", "b", service.IngestOptions{Allocate: true, Rule: 1})
	assert.Equal(t, "ADL-1001", a.Code)
	assert.Equal(t, "ADL-1002", b.Code)

	// Classified names can ask for a fresh code too.
	c := ingest(t, svc, "ADL-9999.txt", "c", service.IngestOptions{Allocate: true})
	assert.Equal(t, "ADL-1003", c.Code)
}

func TestIngest_ConcurrentAllocation(t *testing.T) {
	svc := newService(t, opts{})
	const n = 16

	var mu sync.Mutex
	var codes []string
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			res, err := svc.Ingest(ctx, "scan.txt", strings.NewReader(fmt.Sprint(i)), "alice",
				service.IngestOptions{Allocate: true, Rule: 1})
			if err != nil {
				return err
			}
			mu.Lock()
			codes = append(codes, res.Code)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	slices.Sort(codes)
	want := make([]string, n)
	for i := range n {
		want[i] = fmt.Sprintf("ADL-%04d", 1001+i)
	}
	assert.Equal(t, want, codes)
}

func TestIngest_Uncategorized(t *testing.T) {
	t.Run("fallback", func(t *testing.T) {
		svc := newService(t, opts{})
		res := ingest(t, svc, "holiday photo.txt", "x", service.IngestOptions{Tags: []string{"ignored"}})
		assert.Equal(t, "holiday photo", res.Code)
		assert.Equal(t, 1000, res.Rule)
		assert.True(t, res.Uncategorized)

		got, err := svc.Fetch(ctx, "holiday photo", service.FetchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "x", string(got.Data))
		assert.Empty(t, got.Tags, "uncategorized documents carry no tags")
	})

	t.Run("reject", func(t *testing.T) {
		svc := newService(t, opts{policy: config.UncategorizedReject})
		_, err := svc.Ingest(ctx, "holiday.txt", strings.NewReader("x"), "alice", service.IngestOptions{})
		assert.ErrorIs(t, err, errs.ErrValidation)

		_, err = svc.Ingest(ctx, "ADL-1111.txt", strings.NewReader("x"), "alice", service.IngestOptions{})
		assert.NoError(t, err, "categorized names still pass")
	})

	t.Run("fallback without rule", func(t *testing.T) {
		svc := newService(t, opts{noFallback: true})
		_, err := svc.Ingest(ctx, "ADL-1111.txt", strings.NewReader("x"), "alice", service.IngestOptions{})
		assert.ErrorIs(t, err, errs.ErrConfiguration)
	})
}

func TestIngest_Validation(t *testing.T) {
	svc := newService(t, opts{maxContent: 4})

	_, err := svc.Ingest(ctx, "ADL-1234.txt", strings.NewReader("12345"), "alice", service.IngestOptions{})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.Ingest(ctx, "../ADL-1234.txt", strings.NewReader("1"), "alice", service.IngestOptions{})
	assert.ErrorIs(t, err, errs.ErrValidation)

	zip := []byte("PK\x03\x04\x14\x00\x00\x00")
	_, err = svc.Ingest(ctx, "ADL-1234.zip", bytes.NewReader(zip), "alice", service.IngestOptions{})
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, "filetype", errs.StageOf(err))

	_, err = svc.Fetch(ctx, "ADL-1234", service.FetchOptions{})
	assert.ErrorIs(t, err, errs.ErrNotFound, "nothing was stored")
}

func TestIngest_InvalidTagStoresNothing(t *testing.T) {
	svc := newService(t, opts{})

	_, err := svc.Ingest(ctx, "ADL-5100.txt", strings.NewReader("body"), "alice",
		service.IngestOptions{Tags: []string{"ok", "a,b"}})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.Fetch(ctx, "ADL-5100", service.FetchOptions{})
	assert.ErrorIs(t, err, errs.ErrNotFound, "no revision may survive a rejected tag")
	codes, err := svc.CodesWithTag(ctx, "ok")
	require.NoError(t, err)
	assert.Empty(t, codes)

	// A retry with valid tags starts at revision 1.
	res := ingest(t, svc, "ADL-5100.txt", "body", service.IngestOptions{Tags: []string{"ok"}})
	assert.Equal(t, 1, res.Revision)
}

func TestUpdate_InvalidTag(t *testing.T) {
	svc := newService(t, opts{})
	ingest(t, svc, "ADL-5200.txt", "body", service.IngestOptions{Tags: []string{"draft"}})

	_, err := svc.Update(ctx, "ADL-5200", service.UpdateOptions{
		AddTags: []string{"fine", ""}, RemoveTags: []string{"draft"}, User: "alice",
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	meta, err := svc.Fetch(ctx, "ADL-5200", service.FetchOptions{OnlyMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft"}, meta.Tags, "a rejected update changes nothing")
}

func TestFetch_Authorization(t *testing.T) {
	svc := newService(t, opts{extra: []stages.Spec{{Kind: "security", Rules: []int{1}}}})
	ingest(t, svc, "ADL-4321.txt", "secret", service.IngestOptions{})

	got, err := svc.Fetch(ctx, "ADL-4321", service.FetchOptions{User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "secret", string(got.Data))

	got, err = svc.Fetch(ctx, "ADL-4321", service.FetchOptions{User: "bob"})
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	assert.Equal(t, "security", errs.StageOf(err))
	assert.Nil(t, got.Data)

	_, err = svc.History(ctx, "ADL-4321", "bob")
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	_, err = svc.Ingest(ctx, "ADL-4321.txt", strings.NewReader("x"), "", service.IngestOptions{})
	assert.ErrorIs(t, err, errs.ErrAuthorization)
}

func TestRemove(t *testing.T) {
	svc := newService(t, opts{})
	ingest(t, svc, "ADL-3000.txt", "one", service.IngestOptions{Tags: []string{"finance"}})
	ingest(t, svc, "ADL-3000.txt", "two", service.IngestOptions{})

	require.NoError(t, svc.Remove(ctx, "ADL-3000", 1, "alice"))
	revs, err := svc.History(ctx, "ADL-3000", "alice")
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, 2, revs[0].Revision)

	require.NoError(t, svc.Remove(ctx, "ADL-3000", 0, "alice"))
	_, err = svc.Fetch(ctx, "ADL-3000", service.FetchOptions{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	codes, err := svc.CodesWithTag(ctx, "finance")
	require.NoError(t, err)
	assert.Empty(t, codes)

	assert.Equal(t,
		[]extension.EventType{extension.EventDocumentIngest, extension.EventDocumentIngest,
			extension.EventDocumentRemove, extension.EventDocumentRemove},
		events.forCode("ADL-3000"))
}

func TestUpdate_Tags(t *testing.T) {
	svc := newService(t, opts{})
	ingest(t, svc, "ADL-5000.txt", "body", service.IngestOptions{Tags: []string{"draft", "finance"}})

	res, err := svc.Update(ctx, "ADL-5000", service.UpdateOptions{
		AddTags: []string{"approved"}, RemoveTags: []string{"draft"}, User: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "ADL-5000", res.Code)
	assert.Equal(t, []string{"approved", "finance"}, res.Tags)

	meta, err := svc.Fetch(ctx, "ADL-5000", service.FetchOptions{OnlyMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"approved", "finance"}, meta.Tags)
	assert.Nil(t, meta.Data)

	_, err = svc.Update(ctx, "ADL-5999", service.UpdateOptions{AddTags: []string{"x"}})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.Contains(t, events.forCode("ADL-5000"), extension.EventTagAdd)
}

func TestUpdate_Rename(t *testing.T) {
	svc := newService(t, opts{})
	ingest(t, svc, "ADL-6000.txt", "v1", service.IngestOptions{Tags: []string{"finance"}})
	ingest(t, svc, "ADL-6000.txt", "v2", service.IngestOptions{Description: "latest"})

	res, err := svc.Update(ctx, "ADL-6000", service.UpdateOptions{NewName: "ADL-6001", User: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Renamed)
	assert.Equal(t, "ADL-6001", res.Code)
	assert.Equal(t, 1, res.Revision)
	assert.Equal(t, []string{"finance"}, res.Tags)

	got, err := svc.Fetch(ctx, "ADL-6001", service.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got.Data))
	assert.Equal(t, "latest", got.Metadata.Description)

	_, err = svc.Fetch(ctx, "ADL-6000", service.FetchOptions{})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.Update(ctx, "ADL-6001", service.UpdateOptions{NewName: "../x"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestHistoryAndDiff(t *testing.T) {
	svc := newService(t, opts{})
	ingest(t, svc, "ADL-7000.txt", "alpha\nbeta\n", service.IngestOptions{})
	ingest(t, svc, "ADL-7000.txt", "alpha\ngamma\n", service.IngestOptions{})

	revs, err := svc.History(ctx, "ADL-7000", "alice")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 1, revs[0].Revision)
	assert.Equal(t, "alice", revs[1].User)

	d, err := svc.Diff(ctx, "ADL-7000", 1, 0, "alice")
	require.NoError(t, err)
	assert.Contains(t, d.Diff, "- beta")
	assert.Contains(t, d.Diff, "+ gamma")
	assert.Equal(t, "ADL-7000 revision 2", d.New)

	_, err = svc.Diff(ctx, "ADL-7000", 9, 0, "alice")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListCodes(t *testing.T) {
	svc := newService(t, opts{})
	for _, c := range []string{"ADL-0003", "ADL-0001", "ADL-0002"} {
		ingest(t, svc, c+".txt", c, service.IngestOptions{})
	}

	var got []string
	for code, err := range svc.ListCodes(ctx, 1) {
		require.NoError(t, err)
		got = append(got, code)
	}
	slices.Sort(got)
	assert.Equal(t, []string{"ADL-0001", "ADL-0002", "ADL-0003"}, got)

	for _, err := range svc.ListCodes(ctx, 42) {
		assert.ErrorIs(t, err, errs.ErrNotFound)
	}
}

func TestRegister_SealedOnFirstRequest(t *testing.T) {
	svc := newService(t, opts{})

	_, err := svc.RegisterRule(doccode.Rule{ID: 7, Pattern: `INV-[0-9]+`, Split: "0:3", Active: true})
	require.NoError(t, err)
	sec := stages.NewSecurity("guard", stages.DefaultGroup)
	require.NoError(t, svc.RegisterStage(sec, []plugin.Point{plugin.BeforeRetrieval}, []int{7}))
	assert.ErrorIs(t, svc.RegisterStage(stages.NewSecurity("other", "x"), []plugin.Point{plugin.BeforeRetrieval}, []int{99}), errs.ErrConfiguration)

	ingest(t, svc, "INV-12.txt", "invoice", service.IngestOptions{})
	_, err = svc.Fetch(ctx, "INV-12", service.FetchOptions{User: "bob"})
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	_, err = svc.RegisterRule(doccode.Rule{ID: 8, Pattern: `X`, Active: true})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	err = svc.RegisterStage(stages.NewSecurity("late", "x"), []plugin.Point{plugin.BeforeRetrieval}, nil)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestOpen(t *testing.T) {
	r, err := repo.Init(false, false, t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	svc, err := dms.Open(ctx, r, cfg)
	require.NoError(t, err)
	defer svc.Close()

	res, err := svc.Ingest(ctx, "ADL-0042.txt", strings.NewReader("hello"), "alice", service.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Revision)
	assert.FileExists(t, filepath.Join(r.Dir, repo.DocumentsDir, "1", "ADL", "0042", "ADL-0042", "ADL-0042.json"))
	assert.Len(t, svc.Rules(), 2)
	assert.NotEmpty(t, svc.Stages())
}

func TestOpen_SQLiteBackend(t *testing.T) {
	r, err := repo.Init(false, false, t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	require.NoError(t, cfg.Set("storage.backend", "sqlite"))
	svc, err := dms.Open(ctx, r, cfg)
	require.NoError(t, err)
	defer svc.Close()

	ingest(t, svc, "ADL-0042.txt", "in the database", service.IngestOptions{})
	got, err := svc.Fetch(ctx, "ADL-0042", service.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "in the database", string(got.Data))
	assert.NoDirExists(t, filepath.Join(r.Dir, repo.DocumentsDir, "1"))
}

func TestOpen_BadStage(t *testing.T) {
	r, err := repo.Init(false, false, t.TempDir())
	require.NoError(t, err)
	cfg := &config.Config{Stages: []config.Stage{{Kind: "teleport"}}}
	_, err = dms.Open(ctx, r, cfg)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
