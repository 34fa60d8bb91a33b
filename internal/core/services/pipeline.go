package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/core/ports/driving"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// Ensure Pipeline implements the interfaces.
var (
	_ driving.ProtocolService = (*Pipeline)(nil)
	_ driven.PromptStoreAware = (*Pipeline)(nil)
)

const (
	// maxTrackedRuns bounds the run registry; the oldest finished runs
	// are evicted first.
	maxTrackedRuns = 256

	defaultWorkers   = 4
	defaultQueueSize = 64
)

// PipelineDeps are the driven ports a Pipeline runs against.
type PipelineDeps struct {
	LLM      driven.LLMService
	Embedder driven.EmbeddingService
	Store    driven.EmbeddingStore
	// Drafts is optional. Without it no per-stage snapshots are kept.
	Drafts driven.DraftStore
}

// Pipeline sequences the generation stages for one request at a time per
// protocol and runs the bounded improve-and-rescore loop.
type Pipeline struct {
	settings domain.PipelineSettings
	store    driven.EmbeddingStore
	drafts   driven.DraftStore
	query    *ContextQuery

	analyzer    *Analyzer
	synthesizer *Synthesizer
	integrator  *Integrator
	examples    *ExampleGenerator
	scorer      *Scorer
	locks       *Locks

	mu     sync.Mutex
	runs   map[string]*runEntry
	order  []string
	closed bool

	queue     chan *runEntry
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time
}

// runEntry is one tracked run. run and finished are guarded by Pipeline.mu;
// result and err are written once before done is closed.
type runEntry struct {
	run      *domain.PipelineRun
	req      domain.GenerateRequest
	ctx      context.Context
	cancel   context.CancelFunc
	release  func()
	done     chan struct{}
	finished bool
	result   *domain.PipelineResult
	err      error
}

// NewPipeline creates a pipeline and starts its worker goroutines.
// Call Close to stop them.
func NewPipeline(deps PipelineDeps, settings domain.PipelineSettings) *Pipeline {
	settings = settings.WithDefaults()
	query := NewContextQuery(deps.Store, deps.Embedder)

	p := &Pipeline{
		settings:    settings,
		store:       deps.Store,
		drafts:      deps.Drafts,
		query:       query,
		analyzer:    NewAnalyzer(deps.LLM, query, settings),
		synthesizer: NewSynthesizer(deps.LLM),
		integrator:  NewIntegrator(deps.LLM),
		examples:    NewExampleGenerator(deps.LLM),
		scorer:      NewScorer(deps.LLM),
		locks:       NewLocks(),
		runs:        make(map[string]*runEntry),
		queue:       make(chan *runEntry, defaultQueueSize),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	p.wg.Add(defaultWorkers)
	for range defaultWorkers {
		go p.worker()
	}
	return p
}

// SetPromptStore sets the prompt store on every stage.
func (p *Pipeline) SetPromptStore(store driven.PromptStore) {
	p.analyzer.SetPromptStore(store)
	p.synthesizer.SetPromptStore(store)
	p.integrator.SetPromptStore(store)
	p.examples.SetPromptStore(store)
	p.scorer.SetPromptStore(store)
}

// Generate runs the full state machine in the calling goroutine.
// Cancelling ctx cancels the run at the next stage boundary.
func (p *Pipeline) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.PipelineResult, error) {
	e, err := p.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	p.execute(e)
	return e.result, e.err
}

// Start queues a run and returns its id. The run outlives ctx.
func (p *Pipeline) Start(ctx context.Context, req domain.GenerateRequest) (string, error) {
	e, err := p.admit(context.WithoutCancel(ctx), req)
	if err != nil {
		return "", err
	}
	id := e.run.ID

	p.mu.Lock()
	closed := p.closed
	var queued bool
	if !closed {
		select {
		case p.queue <- e:
			queued = true
		default:
		}
	}
	p.mu.Unlock()

	if !queued {
		e.release()
		e.cancel()
		p.forget(id)
		if closed {
			return "", fmt.Errorf("%w: pipeline closed", domain.ErrPipelineBusy)
		}
		return "", fmt.Errorf("%w: run queue is full", domain.ErrPipelineBusy)
	}
	logger.Debug("Queued run %s for protocol %s", id, req.ProtocolID)
	return id, nil
}

// Status returns a snapshot of a run.
func (p *Pipeline) Status(_ context.Context, runID string) (*domain.PipelineRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}
	return e.run.Copy(), nil
}

// Wait blocks until a run finishes or ctx is done.
func (p *Pipeline) Wait(ctx context.Context, runID string) (*domain.PipelineResult, error) {
	p.mu.Lock()
	e, ok := p.runs[runID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}

	select {
	case <-e.done:
		return e.result, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel requests cancellation of a run. The run stops at the next stage
// boundary; cancelling a finished run is a no-op.
func (p *Pipeline) Cancel(_ context.Context, runID string) error {
	p.mu.Lock()
	e, ok := p.runs[runID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}
	logger.Info("Cancelling run %s", runID)
	e.cancel()
	return nil
}

// Forget drops a finished run from the registry.
func (p *Pipeline) Forget(runID string) error {
	p.mu.Lock()
	e, ok := p.runs[runID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}
	select {
	case <-e.done:
	default:
		return fmt.Errorf("%w: run %s is still in flight", domain.ErrPipelineBusy, runID)
	}
	p.forget(runID)
	return nil
}

// Revalidate scores a draft without running any other stage.
func (p *Pipeline) Revalidate(ctx context.Context, draft *domain.ProtocolDraft) (domain.ValidationResult, error) {
	if draft == nil {
		return domain.ValidationResult{}, fmt.Errorf("%w: draft is required", domain.ErrInvalidInput)
	}
	logger.Section("Revalidate")
	return p.scorer.Score(ctx, draft)
}

// LatestDraft returns the most recent snapshot saved for a protocol.
func (p *Pipeline) LatestDraft(ctx context.Context, protocolID string) (*domain.ProtocolDraft, error) {
	if strings.TrimSpace(protocolID) == "" {
		return nil, fmt.Errorf("%w: protocol id is required", domain.ErrInvalidInput)
	}
	if p.drafts == nil {
		return nil, fmt.Errorf("%w: no draft store configured", domain.ErrNotFound)
	}
	return p.drafts.Latest(ctx, protocolID)
}

// Close cancels in-flight runs, stops the workers and fails anything still
// queued with ErrCancelled.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		for _, e := range p.runs {
			if !e.finished {
				e.cancel()
			}
		}
		p.mu.Unlock()

		close(p.stopCh)
		p.wg.Wait()
		p.drain()
	})
	return nil
}

func (p *Pipeline) drain() {
	for {
		select {
		case e := <-p.queue:
			e.release()
			run := p.update(e, func(r *domain.PipelineRun) {
				r.Stage = domain.StageFailed
				r.LastError = domain.ErrCancelled.Error()
			})
			p.finish(e, &domain.PipelineResult{Run: run},
				&domain.PipelineError{RunID: run.ID, Stage: domain.StageIngesting, Err: domain.ErrCancelled})
		default:
			return
		}
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case e := <-p.queue:
			p.execute(e)
		}
	}
}

// admit validates req, takes the protocol lock and registers a new run.
func (p *Pipeline) admit(parent context.Context, req domain.GenerateRequest) (*runEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: protocol_id and goal are required", err)
	}

	release, ok := p.locks.TryLock(req.ProtocolID)
	if !ok {
		return nil, fmt.Errorf("%w: protocol %s already has a generation in flight", domain.ErrPipelineBusy, req.ProtocolID)
	}

	ctx, cancel := context.WithCancel(parent)
	now := p.now()
	e := &runEntry{
		run: &domain.PipelineRun{
			ID:         uuid.New().String(),
			ProtocolID: req.ProtocolID,
			Stage:      domain.StageIngesting,
			StartedAt:  now,
			UpdatedAt:  now,
		},
		req:     req,
		ctx:     ctx,
		cancel:  cancel,
		release: release,
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	p.runs[e.run.ID] = e
	p.order = append(p.order, e.run.ID)
	p.mu.Unlock()
	return e, nil
}

func (p *Pipeline) execute(e *runEntry) {
	result, err := p.run(e)
	e.release()
	e.cancel()
	p.finish(e, result, err)
}

// finish records the outcome, wakes waiters and evicts the oldest finished
// runs beyond the registry bound.
func (p *Pipeline) finish(e *runEntry, result *domain.PipelineResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e.result = result
	e.err = err
	e.finished = true
	close(e.done)

	for len(p.order) > maxTrackedRuns {
		idx := -1
		for i, id := range p.order {
			if r, ok := p.runs[id]; ok && r.finished {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		delete(p.runs, p.order[idx])
		p.order = append(p.order[:idx], p.order[idx+1:]...)
	}
}

func (p *Pipeline) forget(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
	for i, id := range p.order {
		if id == runID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// update applies fn to the run under the registry lock and returns a copy.
func (p *Pipeline) update(e *runEntry, fn func(r *domain.PipelineRun)) *domain.PipelineRun {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(e.run)
	e.run.UpdatedAt = p.now()
	return e.run.Copy()
}

func (p *Pipeline) warn(e *runEntry, warnings ...string) {
	if len(warnings) == 0 {
		return
	}
	p.update(e, func(r *domain.PipelineRun) {
		r.Warnings = append(r.Warnings, warnings...)
	})
}

// stage moves the run into stage and runs fn under a span. fn is not
// interrupted by cancellation; a run cancelled while fn was in flight
// reports ErrCancelled and its result is discarded.
func (p *Pipeline) stage(ctx context.Context, e *runEntry, stage domain.Stage, fn func(ctx context.Context) error) error {
	if e.ctx.Err() != nil {
		return domain.ErrCancelled
	}

	p.update(e, func(r *domain.PipelineRun) { r.Stage = stage })
	logger.With("run", e.run.ID, "protocol", e.req.ProtocolID).Debug("Stage %s", stage)

	sctx, span := tracer.Start(ctx, "pipeline."+strings.ToLower(string(stage)))
	defer span.End()

	err := fn(context.WithoutCancel(sctx))
	if err == nil && e.ctx.Err() != nil {
		err = domain.ErrCancelled
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// run executes the state machine for one entry.
func (p *Pipeline) run(e *runEntry) (*domain.PipelineResult, error) {
	req := e.req
	ctx, span := tracer.Start(e.ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", e.run.ID),
		attribute.String("protocol_id", req.ProtocolID),
	))
	defer span.End()

	logger.Section("Generate")
	logger.Info("Run %s: protocol %s, goal %q", e.run.ID, req.ProtocolID, req.Goal)

	var (
		analysis   AnalyzeResult
		draft      *domain.ProtocolDraft
		best       *domain.ProtocolDraft
		iterations int
	)

	fail := func(stage domain.Stage, err error) (*domain.PipelineResult, error) {
		out := best
		if out == nil {
			out = draft
		}
		if out != nil {
			out = out.Clone()
			out.Status = domain.DraftStatusFailed
		}
		run := p.update(e, func(r *domain.PipelineRun) {
			r.Stage = domain.StageFailed
			r.LastError = err.Error()
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Run %s failed at %s: %v", run.ID, stage, err)
		return &domain.PipelineResult{Run: run, Draft: out},
			&domain.PipelineError{RunID: run.ID, Stage: stage, Err: err, BestDraft: out}
	}

	err := p.stage(ctx, e, domain.StageIngesting, func(ctx context.Context) error {
		return p.checkStore(ctx, req.ProtocolID)
	})
	if err != nil {
		return fail(domain.StageIngesting, err)
	}

	// Stage closures hand their output back. It is committed only after
	// stage returns nil, so a cancelled stage leaves no trace in the run.
	var next AnalyzeResult
	err = p.stage(ctx, e, domain.StageAnalyzing, func(ctx context.Context) error {
		next = p.analyzer.Analyze(ctx, req.ProtocolID, req.Goal)
		p.warn(e, next.Warnings...)
		return nil
	})
	if err != nil {
		return fail(domain.StageAnalyzing, err)
	}
	analysis = next

	keep := context.WithoutCancel(ctx)
	var d *domain.ProtocolDraft
	err = p.stage(ctx, e, domain.StageSynthesizing, func(ctx context.Context) error {
		var warnings []string
		var err error
		d, warnings, err = p.synthesizer.Synthesize(ctx, req)
		p.warn(e, warnings...)
		if err != nil {
			return err
		}
		d.References = analysis.References()
		return nil
	})
	if err != nil {
		return fail(domain.StageSynthesizing, err)
	}
	draft = d
	p.snapshot(keep, e, domain.StageSynthesizing, draft)

	err = p.stage(ctx, e, domain.StageIntegrating, func(ctx context.Context) error {
		var warnings []string
		d, warnings = p.integrator.Integrate(ctx, draft, analysis.Analysis, nil)
		p.warn(e, warnings...)
		return nil
	})
	if err != nil {
		return fail(domain.StageIntegrating, err)
	}
	draft = d
	p.snapshot(keep, e, domain.StageIntegrating, draft)

	err = p.stage(ctx, e, domain.StageExampleGen, func(ctx context.Context) error {
		examples, warnings := p.examples.Generate(ctx, draft, p.settings.ExampleCount, analysis.Analysis.ExampleSeeds, nil)
		p.warn(e, warnings...)
		d = p.withExamples(draft, examples)
		return nil
	})
	if err != nil {
		return fail(domain.StageExampleGen, err)
	}
	draft = d
	p.snapshot(keep, e, domain.StageExampleGen, draft)

	for {
		var result domain.ValidationResult
		err = p.stage(ctx, e, domain.StageValidating, func(ctx context.Context) error {
			var err error
			result, err = p.scorer.Score(ctx, draft)
			return err
		})
		if err != nil {
			return fail(domain.StageValidating, err)
		}
		score := result.Score
		draft = draft.Clone()
		draft.Score = &score
		p.update(e, func(r *domain.PipelineRun) { r.History = append(r.History, result) })
		if best == nil || score.Overall > best.Score.Overall {
			best = draft.Clone()
		}
		p.snapshot(keep, e, domain.StageValidating, draft)

		logger.Info("Run %s: draft v%d scored %.2f (threshold %.0f)",
			e.run.ID, draft.Version, score.Overall, p.settings.QualityThreshold)
		if score.Overall >= p.settings.QualityThreshold {
			return p.complete(ctx, e, draft, domain.DraftStatusComplete), nil
		}
		if iterations >= p.settings.MaxIterations {
			break
		}

		feedback := result.Feedback()
		err = p.stage(ctx, e, domain.StageImproving, func(ctx context.Context) error {
			improved, warnings := p.integrator.Integrate(ctx, draft, analysis.Analysis, feedback)
			p.warn(e, warnings...)

			examples, warnings := p.examples.Generate(ctx, improved, p.settings.ExampleCount, analysis.Analysis.ExampleSeeds, feedback)
			p.warn(e, warnings...)
			if len(examples) > 0 {
				improved = p.withExamples(improved, examples)
			} else if improved == draft {
				improved = draft.Clone()
			}
			improved.Score = nil
			d = improved
			return nil
		})
		if err != nil {
			return fail(domain.StageImproving, err)
		}
		iterations++
		p.update(e, func(r *domain.PipelineRun) { r.IterationCount = iterations })
		draft = d
		p.snapshot(keep, e, domain.StageImproving, draft)
	}

	if best.Score.Overall >= p.settings.HardFloor {
		p.warn(e, fmt.Sprintf("quality threshold %.0f not reached after %d iterations; best score %.2f",
			p.settings.QualityThreshold, iterations, best.Score.Overall))
		return p.complete(ctx, e, best, domain.DraftStatusCompleteWithWarnings), nil
	}
	return fail(domain.StageValidating, fmt.Errorf("%w: best score %.2f, floor %.0f",
		domain.ErrBelowHardFloor, best.Score.Overall, p.settings.HardFloor))
}

func (p *Pipeline) complete(ctx context.Context, e *runEntry, draft *domain.ProtocolDraft, status domain.DraftStatus) *domain.PipelineResult {
	out := draft.Clone()
	out.Status = status
	out.UpdatedAt = p.now()

	run := p.update(e, func(r *domain.PipelineRun) { r.Stage = domain.StageComplete })
	p.snapshot(context.WithoutCancel(ctx), e, domain.StageComplete, out)
	logger.Info("Run %s complete: draft v%d, status %s", run.ID, out.Version, status)
	return &domain.PipelineResult{Run: run, Draft: out}
}

// withExamples returns a new draft version carrying examples.
func (p *Pipeline) withExamples(draft *domain.ProtocolDraft, examples []domain.Example) *domain.ProtocolDraft {
	out := draft.Clone()
	out.Examples = examples
	out.Version++
	out.UpdatedAt = p.now()
	return out
}

// checkStore confirms the store answers for the protocol, retrying once on
// ErrStoreUnavailable. Ingestion itself is a separate operation.
func (p *Pipeline) checkStore(ctx context.Context, protocolID string) error {
	if p.store == nil {
		return domain.ErrStoreUnavailable
	}
	var n int
	err := p.query.withRetry(ctx, func() error {
		var err error
		n, err = p.store.Count(ctx, protocolID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	logger.Debug("Context items for %s: %d", protocolID, n)
	return nil
}

// snapshot saves an immutable copy of draft. Failures become run warnings.
func (p *Pipeline) snapshot(ctx context.Context, e *runEntry, stage domain.Stage, draft *domain.ProtocolDraft) {
	if p.drafts == nil || draft == nil {
		return
	}
	if err := p.drafts.SaveSnapshot(ctx, e.run.ID, stage, draft.Clone()); err != nil {
		logger.Warn("Snapshot after %s failed: %v", stage, err)
		p.warn(e, fmt.Sprintf("snapshot after %s failed: %v", stage, err))
	}
}
