package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/attest/internal/documents"
	"github.com/JaimeStill/attest/internal/frameworks"
	"github.com/JaimeStill/attest/internal/prompts"
	"github.com/JaimeStill/attest/pkg/broadcast"
	"github.com/JaimeStill/attest/pkg/lifecycle"
)

// Orchestrator owns running analyses. Each job runs as tracked background
// work on the lifecycle coordinator and publishes its progress on a broker
// topic keyed by the job id.
type Orchestrator struct {
	rt        Runtime
	cfg       Config
	lc        *lifecycle.Coordinator
	evaluator *Evaluator
	broker    *broadcast.Broker[ProgressEvent]
	logger    *slog.Logger

	mu   sync.Mutex
	runs map[uuid.UUID]*run
}

type run struct {
	mu     sync.Mutex
	job    Job
	totals Totals
	seq    int64

	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   context.CancelFunc
}

// New creates an Orchestrator and registers a shutdown hook that closes
// every progress topic.
func New(rt Runtime, cfg Config, lc *lifecycle.Coordinator) *Orchestrator {
	cfg.Concurrency = max(cfg.Concurrency, 1)
	logger := rt.Logger.With("system", "workflow")

	o := &Orchestrator{
		rt:        rt,
		cfg:       cfg,
		lc:        lc,
		evaluator: NewEvaluator(rt.Client, cfg.Evaluator, logger),
		broker: broadcast.New(
			broadcast.Config{Buffer: cfg.SubscriberBuffer, Retain: cfg.RetainWindow},
			broadcast.WithReplay(func(e ProgressEvent) ProgressEvent {
				e.Replay = true
				return e
			}),
		),
		logger: logger,
		runs:   make(map[uuid.UUID]*run),
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		o.broker.Shutdown()
		o.logger.Info("progress broker closed")
	})

	return o
}

// Start registers a queued job and runs it asynchronously. It returns once
// the job is durably queued. Identical requests create independent jobs.
func (o *Orchestrator) Start(ctx context.Context, cmd StartCommand) (*Job, error) {
	if cmd.OrganizationID == uuid.Nil || cmd.FrameworkID == uuid.Nil {
		return nil, fmt.Errorf("%w: organization_id and framework_id are required", ErrInvalidCommand)
	}
	if o.lc.WorkContext().Err() != nil {
		return nil, ErrShutdown
	}

	job := Job{
		ID:             uuid.New(),
		OrganizationID: cmd.OrganizationID,
		FrameworkID:    cmd.FrameworkID,
		DocumentIDs:    unique(cmd.DocumentIDs),
		State:          StateQueued,
		CreatedAt:      time.Now().UTC(),
	}

	if err := o.rt.Store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	jobCtx, cancel := context.WithCancelCause(o.lc.WorkContext())
	r := &run{job: job, cancel: cancel}
	r.ctx, r.stop = jobCtx, func() {}
	if o.cfg.JobTimeout > 0 {
		r.ctx, r.stop = context.WithTimeoutCause(jobCtx, o.cfg.JobTimeout, ErrJobTimeout)
	}

	if err := o.broker.Open(job.ID.String()); err != nil {
		r.stop()
		cancel(ErrShutdown)
		o.fail(r, ErrShutdown)
		return nil, fmt.Errorf("%w: open progress topic: %w", ErrShutdown, err)
	}

	o.mu.Lock()
	o.runs[job.ID] = r
	o.mu.Unlock()

	r.mu.Lock()
	o.publish(r, "analysis queued", nil)
	snap := r.job.clone()
	r.mu.Unlock()

	// Shutdown may have begun while the job was being created.
	if !o.lc.TryGo(func(context.Context) { o.execute(r) }) {
		r.stop()
		cancel(ErrShutdown)
		o.fail(r, ErrShutdown)
		return nil, ErrShutdown
	}

	o.logger.InfoContext(ctx, "analysis queued",
		"job_id", job.ID,
		"organization_id", job.OrganizationID,
		"framework_id", job.FrameworkID,
		"documents", len(job.DocumentIDs),
	)

	return &snap, nil
}

// Snapshot returns the latest known state of a job. Jobs no longer held in
// memory are read from the store.
func (o *Orchestrator) Snapshot(ctx context.Context, id uuid.UUID) (*Job, error) {
	if r := o.lookup(id); r != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		snap := r.job.clone()
		return &snap, nil
	}
	return o.rt.Store.Find(ctx, id)
}

// Subscribe attaches an observer to a job's progress. The first event is a
// replay of the latest one. For a job whose topic is gone the subscription
// yields a single event built from the job snapshot.
func (o *Orchestrator) Subscribe(ctx context.Context, id uuid.UUID) (*broadcast.Subscription[ProgressEvent], error) {
	sub, err := o.broker.Subscribe(id.String())
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, broadcast.ErrTopicNotFound) {
		return nil, err
	}

	job, err := o.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return broadcast.Single(snapshotEvent(*job)), nil
}

// Cancel stops a job that has not reached finalizing. Scheduled evaluations
// are skipped, in-flight ones finish, and the job fails with ErrCancelled.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (*Job, error) {
	r := o.lookup(id)
	if r == nil {
		if _, err := o.rt.Store.Find(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotCancellable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.job.State.Cancellable() || r.ctx.Err() != nil {
		return nil, ErrNotCancellable
	}

	r.cancel(ErrCancelled)
	o.logger.InfoContext(ctx, "analysis cancel requested", "job_id", id, "state", r.job.State)

	snap := r.job.clone()
	return &snap, nil
}

// Delete removes a terminal job and its evidence.
func (o *Orchestrator) Delete(ctx context.Context, id uuid.UUID) error {
	if r := o.lookup(id); r != nil {
		r.mu.Lock()
		state := r.job.State
		r.mu.Unlock()
		if !state.Terminal() {
			return ErrNotTerminal
		}
	}

	if err := o.rt.Store.Delete(ctx, id); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.runs, id)
	o.mu.Unlock()
	o.broker.Remove(id.String())

	o.logger.InfoContext(ctx, "analysis deleted", "job_id", id)
	return nil
}

// Active returns the number of jobs held in memory, including terminal jobs
// still inside the retain window.
func (o *Orchestrator) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs)
}

func (o *Orchestrator) execute(r *run) {
	defer r.stop()
	ctx := r.ctx

	agg, err := o.analyze(ctx, r)
	if err == nil {
		err = o.finalize(ctx, r, agg)
	}
	if err != nil {
		o.fail(r, err)
	}
}

func (o *Orchestrator) analyze(ctx context.Context, r *run) (*Aggregator, error) {
	job := r.job.clone()

	if err := o.transition(r, StatePreparing, "loading framework controls", nil); err != nil {
		return nil, err
	}

	controls, err := o.rt.Frameworks.Controls(ctx, job.FrameworkID)
	if err != nil {
		return nil, o.stageError(ctx, "load controls", err)
	}
	if len(controls) == 0 {
		return nil, ErrNoControls
	}
	controls = slices.Clone(controls)
	slices.SortStableFunc(controls, func(a, b frameworks.Control) int {
		return a.Position - b.Position
	})

	if len(job.DocumentIDs) == 0 {
		return nil, ErrNoDocuments
	}

	pc, err := o.rt.Documents.GetPreparedContext(ctx, job.OrganizationID, job.DocumentIDs)
	if err != nil {
		if errors.Is(err, documents.ErrNoPreparedDocuments) {
			return nil, fmt.Errorf("%w: %w", ErrNoDocuments, err)
		}
		return nil, o.stageError(ctx, "prepare document context", err)
	}

	instructions, err := o.rt.Prompts.Compose(ctx, prompts.StageEvaluate, job.FrameworkID)
	if err != nil {
		return nil, o.stageError(ctx, "compose prompt", err)
	}

	step := fmt.Sprintf("evaluating %d controls against %d documents", len(controls), len(pc.Documents))
	if err := o.transition(r, StateEvaluating, step, func(r *run) {
		r.totals = Totals{Total: len(controls)}
		r.job.applyTotals(r.totals)
	}); err != nil {
		return nil, err
	}

	return o.evaluate(ctx, r, instructions, controls, pc)
}

// evaluate fans controls out to a bounded worker pool and folds every
// outcome through one ingestion loop, the aggregator's only writer.
func (o *Orchestrator) evaluate(
	ctx context.Context,
	r *run,
	instructions string,
	controls []frameworks.Control,
	pc *documents.PreparedContext,
) (*Aggregator, error) {
	agg := NewAggregator(controls)
	results := make(chan ControlOutcome)

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)

	go func() {
		defer close(results)
		for _, c := range controls {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				results <- o.evaluator.Evaluate(ctx, instructions, c, pc)
				return nil
			})
		}
		g.Wait()
	}()

	for outcome := range results {
		totals, err := agg.Add(outcome)
		if err != nil {
			o.logger.ErrorContext(ctx, "outcome rejected", "job_id", r.job.ID, "error", err)
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		o.record(r, totals, outcome)
	}

	if ctx.Err() != nil {
		return nil, stopCause(ctx)
	}
	if !agg.Done() {
		t := agg.Totals()
		return nil, fmt.Errorf("evaluation ended with %d of %d outcomes", t.Completed, t.Total)
	}
	return agg, nil
}

func (o *Orchestrator) record(r *run, totals Totals, outcome ControlOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.totals = totals
	r.job.applyTotals(totals)
	r.job.Progress = max(r.job.Progress, totals.Progress())

	step := fmt.Sprintf("evaluated %s (%d/%d)", outcome.ControlCode, totals.Completed, totals.Total)
	o.publish(r, step, outcome.Summary())
}

// finalize persists the summary and every outcome, then publishes the
// terminal event. Observers never see a terminal event ahead of the
// durable summary it describes.
func (o *Orchestrator) finalize(ctx context.Context, r *run, agg *Aggregator) error {
	if err := o.transition(r, StateFinalizing, "persisting summary", nil); err != nil {
		return err
	}

	r.mu.Lock()
	job := r.job.clone()
	r.mu.Unlock()

	now := time.Now().UTC()
	job.State = StateCompleted
	job.CompletedAt = &now
	job.Progress = 100
	job.ProcessingMillis = elapsed(job.StartedAt, now)
	job.applyTotals(agg.Totals())

	pctx, cancel := o.persistContext(ctx)
	defer cancel()

	if err := o.rt.Store.Complete(pctx, job, agg.Outcomes()); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}

	r.mu.Lock()
	r.job = job
	r.totals = agg.Totals()
	ev := o.event(r, "analysis completed", nil)
	ev.Terminal = true
	r.mu.Unlock()

	o.finish(r, ev)

	o.logger.InfoContext(ctx, "analysis completed",
		"job_id", job.ID,
		"controls", job.TotalControls,
		"compliant", job.CompliantCount,
		"partial", job.PartialCount,
		"missing", job.MissingCount,
		"failed", job.FailedCount,
		"average_confidence", job.AverageConfidence,
		"duration_ms", *job.ProcessingMillis,
	)
	return nil
}

// fail moves a job to failed. Counters are zeroed since no outcome of a
// failed job is kept; progress keeps its last value.
func (o *Orchestrator) fail(r *run, cause error) {
	r.mu.Lock()
	if r.job.State.Terminal() {
		r.mu.Unlock()
		return
	}

	msg := cause.Error()
	now := time.Now().UTC()
	r.job.State = StateFailed
	r.job.Error = &msg
	r.job.CompletedAt = &now
	r.job.ProcessingMillis = elapsed(r.job.StartedAt, now)
	r.totals = Totals{Total: r.totals.Total}
	r.job.applyTotals(r.totals)

	job := r.job.clone()
	ev := o.event(r, "analysis failed", nil)
	ev.Terminal = true
	ev.Error = msg
	r.mu.Unlock()

	pctx, cancel := o.persistContext(r.ctx)
	defer cancel()

	if err := o.rt.Store.Fail(pctx, job); err != nil {
		o.logger.Error("persist failed analysis", "job_id", job.ID, "error", err)
	}

	o.finish(r, ev)
	o.logger.Warn("analysis failed", "job_id", job.ID, "error", msg)
}

// transition moves r to the next state and publishes the change. The
// cancellation check and the state change happen under the run lock, so a
// successful Cancel always fails the job.
func (o *Orchestrator) transition(r *run, to State, step string, mutate func(*run)) error {
	r.mu.Lock()

	if err := ValidateTransition(r.job.State, to); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return stopCause(r.ctx)
	}

	r.job.State = to
	if to == StatePreparing {
		now := time.Now().UTC()
		r.job.StartedAt = &now
	}
	if mutate != nil {
		mutate(r)
	}
	o.publish(r, step, nil)
	job := r.job.clone()
	r.mu.Unlock()

	pctx, cancel := o.persistContext(r.ctx)
	defer cancel()

	if err := o.rt.Store.UpdateState(pctx, job); err != nil {
		o.logger.Warn("persist analysis state", "job_id", job.ID, "state", to, "error", err)
	}
	return nil
}

// event must be called with r.mu held.
func (o *Orchestrator) event(r *run, step string, outcome *OutcomeSummary) ProgressEvent {
	r.seq++
	return ProgressEvent{
		JobID:     r.job.ID,
		Sequence:  r.seq,
		Stage:     r.job.State,
		Progress:  r.job.Progress,
		Step:      step,
		Totals:    r.totals,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
}

// publish must be called with r.mu held.
func (o *Orchestrator) publish(r *run, step string, outcome *OutcomeSummary) {
	ev := o.event(r, step, outcome)
	if err := o.broker.Publish(r.job.ID.String(), ev); err != nil {
		o.logger.Debug("progress event not published", "job_id", r.job.ID, "error", err)
	}
}

func (o *Orchestrator) finish(r *run, ev ProgressEvent) {
	if err := o.broker.Finish(r.job.ID.String(), ev); err != nil {
		o.logger.Debug("terminal event not published", "job_id", r.job.ID, "error", err)
	}
	o.retire(r)
}

// retire drops the in-memory run once the retain window elapses. Snapshots
// are served from the store afterwards.
func (o *Orchestrator) retire(r *run) {
	id := r.job.ID
	forget := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.runs[id] == r {
			delete(o.runs, id)
		}
	}

	if o.cfg.RetainWindow <= 0 {
		forget()
		return
	}
	time.AfterFunc(o.cfg.RetainWindow, forget)
}

func (o *Orchestrator) lookup(id uuid.UUID) *run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[id]
}

func (o *Orchestrator) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if o.cfg.PersistTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.PersistTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) stageError(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return stopCause(ctx)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// stopCause names why a job context ended. A context cancelled without one
// of the job causes was cancelled by service shutdown.
func stopCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrCancelled) || errors.Is(cause, ErrJobTimeout) {
		return cause
	}
	return ErrShutdown
}

func snapshotEvent(job Job) ProgressEvent {
	ts := time.Now().UTC()
	if job.CompletedAt != nil {
		ts = *job.CompletedAt
	}

	ev := ProgressEvent{
		JobID:     job.ID,
		Stage:     job.State,
		Progress:  job.Progress,
		Step:      "analysis " + string(job.State),
		Totals:    job.Totals(),
		Terminal:  job.State.Terminal(),
		Replay:    true,
		Timestamp: ts,
	}
	if job.Error != nil {
		ev.Error = *job.Error
	}
	return ev
}

func elapsed(start *time.Time, end time.Time) *int64 {
	if start == nil {
		return nil
	}
	ms := end.Sub(*start).Milliseconds()
	return &ms
}

func unique(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
