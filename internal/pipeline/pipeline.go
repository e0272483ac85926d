// Package pipeline runs a document through the stages registered for its
// rule at a pipeline point.
//
// A run moves INTAKE -> STAGE[0..n] -> COMMITTED, or to ABORTED with the
// first error a stage reports. The executor adds no ordering of its own
// beyond what the registry returns. It enforces three things: a stage error
// aborts the run and is annotated with the stage name, a short-circuit ends
// the run successfully, and only the first storage-class stage reached may
// commit.
package pipeline

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/log"
	"github.com/jpl-au/dms/internal/plugin"
	"github.com/jpl-au/dms/internal/tracing"
)

// State is the terminal state of a run.
type State string

const (
	Committed State = "committed"
	Aborted   State = "aborted"
)

// Report describes how a run ended.
type Report struct {
	State State
	// ShortCircuit is set when a stage stopped the run early.
	ShortCircuit bool
	// Stages lists the stages that ran, in order.
	Stages []string
	// Skipped lists storage-class stages passed over because another
	// storage stage had already committed.
	Skipped []string
	// Storage names the storage-class stage that ran, if any.
	Storage string
}

// Executor runs pipelines.
type Executor struct {
	stages *plugin.Registry
	tracer trace.Tracer
}

// New creates an executor. A nil tracer records nothing.
func New(stages *plugin.Registry, tracer trace.Tracer) *Executor {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Executor{stages: stages, tracer: tracer}
}

// Run executes the stages for rule at point and returns the document.
func (e *Executor) Run(ctx context.Context, doc *document.Document, rule *doccode.Rule, point plugin.Point) (*document.Document, error) {
	_, err := e.RunReport(ctx, doc, rule, point)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Runs executes consecutive points as one logical operation, so ingestion
// is Runs(ctx, doc, rule, BeforeStorage, Storage). A short-circuit at any
// point ends the whole sequence, and the single-commit limit spans all of
// the points.
func (e *Executor) Runs(ctx context.Context, doc *document.Document, rule *doccode.Rule, points ...plugin.Point) (Report, error) {
	var total Report
	total.State = Committed
	for _, p := range points {
		r, err := e.run(ctx, doc, rule, p, total.Storage)
		total.Stages = append(total.Stages, r.Stages...)
		total.Skipped = append(total.Skipped, r.Skipped...)
		if r.Storage != "" {
			total.Storage = r.Storage
		}
		if err != nil {
			total.State = Aborted
			return total, err
		}
		if r.ShortCircuit {
			total.ShortCircuit = true
			break
		}
	}
	return total, nil
}

// RunReport is Run returning the run's report.
func (e *Executor) RunReport(ctx context.Context, doc *document.Document, rule *doccode.Rule, point plugin.Point) (Report, error) {
	return e.run(ctx, doc, rule, point, "")
}

func (e *Executor) run(ctx context.Context, doc *document.Document, rule *doccode.Rule, point plugin.Point, committed string) (rep Report, err error) {
	if doc.Rule == nil {
		doc.Rule = rule
	}
	ruleID := 0
	if rule != nil {
		ruleID = rule.ID
	}

	ctx, span := e.tracer.Start(ctx, "pipeline."+string(point), trace.WithAttributes(
		attribute.Int(tracing.AttrRule, ruleID),
		attribute.String(tracing.AttrCode, doc.Code),
		attribute.String(tracing.AttrPoint, string(point)),
		attribute.String(tracing.AttrRunID, doc.RunID.String()),
	))
	defer func() {
		outcome := string(Committed)
		if err != nil {
			outcome = string(Aborted)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String(tracing.AttrErrKind, string(errs.KindOf(err))))
		} else if rep.ShortCircuit {
			outcome = "short_circuit"
		}
		span.SetAttributes(attribute.String(tracing.AttrOutcome, outcome))
		span.End()

		log.Event("pipeline:"+string(point), "run").
			Author(doc.User.Name).
			Code(doc.Code).
			Rule(ruleID).
			Revision(doc.Revision).
			Detail("run", doc.RunID.String()).
			Detail("stages", rep.Stages).
			Detail("outcome", outcome).
			Write(err)
	}()

	rep.State = Committed
	rep.Storage = committed
	hadBuffer := doc.Buffer != nil

	for _, s := range e.stages.StagesFor(ruleID, point) {
		info := s.Info()

		if info.Class == plugin.ClassStorage && rep.Storage != "" {
			slog.Warn("storage stage skipped, another storage stage already committed",
				"stage", info.Name, "committed", rep.Storage, "point", point, "code", doc.Code)
			rep.Skipped = append(rep.Skipped, info.Name)
			continue
		}

		if cerr := ctx.Err(); cerr != nil {
			rep.State = Aborted
			return rep, &errs.StageError{Stage: info.Name, Point: string(point), Err: errs.Transientf("%v", cerr)}
		}

		out := e.work(ctx, s, point, doc)
		rep.Stages = append(rep.Stages, info.Name)
		if info.Class == plugin.ClassStorage {
			rep.Storage = info.Name
		}

		switch out.Status {
		case plugin.StatusAbort:
			rep.State = Aborted
			cause := out.Err
			if cause == nil {
				cause = errs.Transientf("aborted without a reason")
			}
			return rep, &errs.StageError{Stage: info.Name, Point: string(point), Err: cause}

		case plugin.StatusShortCircuit:
			rep.ShortCircuit = true
			return rep, nil
		}

		if hadBuffer && doc.Buffer == nil {
			rep.State = Aborted
			return rep, &errs.StageError{Stage: info.Name, Point: string(point),
				Err: errs.Configurationf("stage cleared the document buffer")}
		}
		hadBuffer = hadBuffer || doc.Buffer != nil
	}
	return rep, nil
}

// work runs one stage inside its own span.
func (e *Executor) work(ctx context.Context, s plugin.Stage, point plugin.Point, doc *document.Document) plugin.Outcome {
	info := s.Info()
	ctx, span := e.tracer.Start(ctx, "stage."+info.Name, trace.WithAttributes(
		attribute.String(tracing.AttrStage, info.Name),
		attribute.String(tracing.AttrPoint, string(point)),
	))
	defer span.End()

	out := s.Work(ctx, point, doc)
	span.SetAttributes(attribute.String(tracing.AttrOutcome, out.Status.String()))
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	return out
}
