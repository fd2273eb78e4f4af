package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/swmlgen/internal/logger"
	"github.com/dgallion1/swmlgen/internal/manifest"
	"github.com/dgallion1/swmlgen/internal/parser"
	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/dgallion1/swmlgen/internal/stats"
	"github.com/dgallion1/swmlgen/internal/swml"
)

// Phase names recorded in latency stats.
const (
	PhaseBuild    = "build"
	PhaseRender   = "render"
	PhaseValidate = "validate"
)

// Request describes one build: a manifest and how to render it.
type Request struct {
	Manifest []byte
	BaseDir  string
	Format   render.Format
	Dialect  swml.Dialect
	Indent   bool
}

// Output is the result of a successful build.
type Output struct {
	Document    []byte
	Format      render.Format
	ContentHash string
	Validation  schema.Result
}

// Worker turns manifests into rendered, validated documents. Each call builds
// its own Document, so one Worker can serve many goroutines.
type Worker struct {
	validator  *schema.Validator
	schema     schema.Source
	stats      *stats.Latency
	log        *logger.Logger
	parserOpts parser.Options
}

// NewWorker returns a worker. src may be nil to disable validation.
func NewWorker(v *schema.Validator, src schema.Source, st *stats.Latency, log *logger.Logger, opts parser.Options) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	if v == nil {
		v = schema.NewValidator(log)
	}
	if st == nil {
		st = stats.NewLatency(time.Hour)
	}
	return &Worker{validator: v, schema: src, stats: st, log: log, parserOpts: opts}
}

// Render runs manifest -> document -> render -> validate. onPhase, when set,
// is called as each phase starts.
func (w *Worker) Render(ctx context.Context, req Request, onPhase func(JobStatus)) (*Output, error) {
	phase := func(s JobStatus) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if onPhase != nil {
			onPhase(s)
		}
		return nil
	}
	if req.Format == "" {
		req.Format = render.JSON
	}

	// Phase 1: Build
	if err := phase(StatusBuilding); err != nil {
		return nil, err
	}
	start := time.Now()
	m, err := manifest.Load(req.Manifest)
	if err != nil {
		return nil, err
	}
	doc, err := m.Build(req.BaseDir, w.parserOpts)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	w.stats.Record(PhaseBuild, time.Since(start))

	// Phase 2: Render
	if err := phase(StatusRendering); err != nil {
		return nil, err
	}
	start = time.Now()
	var opts []render.Option
	if req.Indent {
		opts = append(opts, render.WithIndent("  "))
	}
	out, err := doc.RenderAs(req.Dialect, req.Format, opts...)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	w.stats.Record(PhaseRender, time.Since(start))

	res := &Output{Document: out, Format: req.Format, ContentHash: ContentHashHex(out)}

	// Phase 3: Validate. The schema describes the logical layout, so that is
	// what gets checked regardless of the output dialect.
	if w.schema == nil {
		res.Validation = schema.Result{Status: schema.StatusSkipped}
		return res, nil
	}
	if err := phase(StatusValidating); err != nil {
		return nil, err
	}
	start = time.Now()
	v, err := w.validator.ValidateDocument(doc, w.schema)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	w.stats.Record(PhaseValidate, time.Since(start))
	res.Validation = v
	return res, nil
}

// Process runs a queued job to a terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "name", job.Name)

	out, err := w.Render(ctx, job.Request(), func(s JobStatus) {
		job.SetStatus(s, string(s))
	})
	if err != nil {
		var rerr *render.Error
		if errors.As(err, &rerr) {
			log.Error("render failed", "key", rerr.Key, "path", rerr.Path, "error", rerr.Err)
		} else {
			log.Error("job failed", "error", err)
		}
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, job.Snapshot().Phase)
		return
	}

	job.SetOutput(out.Document)
	job.SetValidation(out.Validation)
	if out.Validation.Status == schema.StatusFailed {
		for _, issue := range out.Validation.Errors {
			job.AddError(fmt.Sprintf("%s: %s", issue.Path, issue.Message))
		}
		log.Warn("document failed validation", "issues", len(out.Validation.Errors))
		job.SetStatus(StatusInvalid, "done")
		return
	}
	log.Info("job complete", "bytes", len(out.Document), "validation", out.Validation.Status)
	job.SetStatus(StatusCompleted, "done")
}
