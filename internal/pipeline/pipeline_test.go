package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/pipeline"
	"github.com/jpl-au/dms/internal/plugin"
)

// step is a scripted stage recording its calls.
type step struct {
	info  plugin.Info
	calls *[]string
	do    func(*document.Document) plugin.Outcome
}

func (s *step) Info() plugin.Info { return s.info }

func (s *step) Work(_ context.Context, _ plugin.Point, doc *document.Document) plugin.Outcome {
	*s.calls = append(*s.calls, s.info.Name)
	if s.do == nil {
		return plugin.Continue()
	}
	return s.do(doc)
}

type fixture struct {
	reg   *plugin.Registry
	calls []string
	rule  *doccode.Rule
}

func setup(t *testing.T) *fixture {
	t.Helper()
	rule, err := doccode.NewRegistry(nil).Register(doccode.Rule{ID: 1, Pattern: `ADL-[0-9]{4}`, Active: true})
	require.NoError(t, err)
	return &fixture{reg: plugin.NewRegistry(), rule: rule}
}

func (f *fixture) add(t *testing.T, name string, class plugin.Class, order int, point plugin.Point, do func(*document.Document) plugin.Outcome) {
	t.Helper()
	s := &step{info: plugin.Info{Name: name, Class: class, Order: order, Active: true}, calls: &f.calls, do: do}
	require.NoError(t, f.reg.Register(s, point))
	require.NoError(t, f.reg.Assign(f.rule.ID, name))
}

func newDoc() *document.Document {
	d := document.New("ADL-0001", nil, document.User{Name: "alice"})
	d.Buffer = []byte("content")
	return d
}

// --- Run ---

func TestRun_OrderAndMutation(t *testing.T) {
	f := setup(t)
	f.add(t, "upper", plugin.ClassTransfer, 20, plugin.BeforeStorage, func(d *document.Document) plugin.Outcome {
		d.Buffer = []byte("CONTENT")
		return plugin.Continue()
	})
	f.add(t, "check", plugin.ClassValidation, 10, plugin.BeforeStorage, nil)

	exec := pipeline.New(f.reg, nil)
	doc, err := exec.Run(context.Background(), newDoc(), f.rule, plugin.BeforeStorage)
	require.NoError(t, err)
	assert.Equal(t, []string{"check", "upper"}, f.calls)
	assert.Equal(t, "CONTENT", string(doc.Buffer))
	assert.Equal(t, f.rule, doc.Rule)
}

func TestRun_ShortCircuit(t *testing.T) {
	f := setup(t)
	f.add(t, "cache", plugin.ClassCache, 1, plugin.BeforeRetrieval, func(*document.Document) plugin.Outcome {
		return plugin.ShortCircuit()
	})
	f.add(t, "after", plugin.ClassTransfer, 2, plugin.BeforeRetrieval, nil)

	rep, err := pipeline.New(f.reg, nil).RunReport(context.Background(), newDoc(), f.rule, plugin.BeforeRetrieval)
	require.NoError(t, err)
	assert.True(t, rep.ShortCircuit)
	assert.Equal(t, pipeline.Committed, rep.State)
	assert.Equal(t, []string{"cache"}, f.calls, "stages after a short-circuit must not run")
}

func TestRun_AbortAnnotatesStage(t *testing.T) {
	f := setup(t)
	f.add(t, "filetype", plugin.ClassValidation, 1, plugin.BeforeStorage, func(*document.Document) plugin.Outcome {
		return plugin.Abort(errs.Validationf("application/zip not allowed"))
	})
	f.add(t, "storage", plugin.ClassStorage, 100, plugin.BeforeStorage, nil)

	_, err := pipeline.New(f.reg, nil).Run(context.Background(), newDoc(), f.rule, plugin.BeforeStorage)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, "filetype", errs.StageOf(err))

	var se *errs.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "before_storage", se.Point)
	assert.Equal(t, []string{"filetype"}, f.calls, "no storage after an abort")
}

func TestRun_AbortWithoutError(t *testing.T) {
	f := setup(t)
	f.add(t, "bad", plugin.ClassValidation, 1, plugin.BeforeStorage, func(*document.Document) plugin.Outcome {
		return plugin.Abort(nil)
	})
	_, err := pipeline.New(f.reg, nil).Run(context.Background(), newDoc(), f.rule, plugin.BeforeStorage)
	assert.ErrorIs(t, err, errs.ErrTransient)
}

func TestRun_SingleStorageCommit(t *testing.T) {
	f := setup(t)
	f.add(t, "local", plugin.ClassStorage, 100, plugin.Storage, nil)
	f.add(t, "cloud", plugin.ClassStorage, 101, plugin.Storage, nil)

	rep, err := pipeline.New(f.reg, nil).RunReport(context.Background(), newDoc(), f.rule, plugin.Storage)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, f.calls)
	assert.Equal(t, "local", rep.Storage)
	assert.Equal(t, []string{"cloud"}, rep.Skipped)
}

func TestRuns_CommitLimitSpansPoints(t *testing.T) {
	f := setup(t)
	f.add(t, "early", plugin.ClassStorage, 100, plugin.BeforeStorage, nil)
	f.add(t, "local", plugin.ClassStorage, 100, plugin.Storage, nil)

	rep, err := pipeline.New(f.reg, nil).Runs(context.Background(), newDoc(), f.rule, plugin.BeforeStorage, plugin.Storage)
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, f.calls)
	assert.Equal(t, []string{"local"}, rep.Skipped)
}

func TestRuns_ShortCircuitStopsLaterPoints(t *testing.T) {
	f := setup(t)
	f.add(t, "stop", plugin.ClassInfo, 1, plugin.BeforeStorage, func(*document.Document) plugin.Outcome {
		return plugin.ShortCircuit()
	})
	f.add(t, "local", plugin.ClassStorage, 100, plugin.Storage, nil)

	rep, err := pipeline.New(f.reg, nil).Runs(context.Background(), newDoc(), f.rule, plugin.BeforeStorage, plugin.Storage)
	require.NoError(t, err)
	assert.True(t, rep.ShortCircuit)
	assert.Equal(t, []string{"stop"}, f.calls)
}

func TestRun_BufferMustSurvive(t *testing.T) {
	f := setup(t)
	f.add(t, "wipe", plugin.ClassTransfer, 1, plugin.BeforeStorage, func(d *document.Document) plugin.Outcome {
		d.Buffer = nil
		return plugin.Continue()
	})
	_, err := pipeline.New(f.reg, nil).Run(context.Background(), newDoc(), f.rule, plugin.BeforeStorage)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.Equal(t, "wipe", errs.StageOf(err))
}

func TestRun_Cancelled(t *testing.T) {
	f := setup(t)
	f.add(t, "a", plugin.ClassValidation, 1, plugin.BeforeStorage, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.New(f.reg, nil).Run(ctx, newDoc(), f.rule, plugin.BeforeStorage)
	assert.ErrorIs(t, err, errs.ErrTransient)
	assert.Empty(t, f.calls)
}

func TestRun_NoStages(t *testing.T) {
	f := setup(t)
	doc, err := pipeline.New(f.reg, nil).Run(context.Background(), newDoc(), f.rule, plugin.BeforeUpdate)
	require.NoError(t, err)
	assert.Equal(t, "content", string(doc.Buffer))
}

func TestRun_Spans(t *testing.T) {
	f := setup(t)
	f.add(t, "a", plugin.ClassValidation, 1, plugin.BeforeStorage, nil)
	f.add(t, "b", plugin.ClassValidation, 2, plugin.BeforeStorage, nil)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	exec := pipeline.New(f.reg, tp.Tracer("test"))

	_, err := exec.Run(context.Background(), newDoc(), f.rule, plugin.BeforeStorage)
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"stage.a", "stage.b", "pipeline.before_storage"}, names)
}
