package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/agencyboard/backend/internal/infrastructure/telemetry"
)

// Orchestrator runs migration job trees in the background. Launching a
// parent fans its children out over a bounded worker pool; the HTTP request
// that triggered the launch returns immediately and the work continues on
// the orchestrator's own context until shutdown.
type Orchestrator struct {
	jobs     migration.JobRepository
	importer *Importer
	hub      *Hub
	logger   *zap.Logger
	metrics  *telemetry.MigrationMetrics

	sem chan struct{}
	wg  sync.WaitGroup

	baseCtx context.Context
	stop    context.CancelFunc

	// running tracks in-flight child jobs so Launch cannot double-start them
	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithMaxConcurrentBoards bounds how many boards import at once
func WithMaxConcurrentBoards(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = make(chan struct{}, n)
		}
	}
}

// WithOrchestratorLogger sets the orchestrator's logger
func WithOrchestratorLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithOrchestratorMetrics sets the orchestrator's metrics recorder
func WithOrchestratorMetrics(m *telemetry.MigrationMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(jobs migration.JobRepository, importer *Importer, hub *Hub, opts ...OrchestratorOption) *Orchestrator {
	baseCtx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		jobs:     jobs,
		importer: importer,
		hub:      hub,
		logger:   zap.NewNop(),
		sem:      make(chan struct{}, 3),
		baseCtx:  baseCtx,
		stop:     stop,
		running:  make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Launch starts a parent job's pending children. It returns how many were
// handed to the worker pool and the total child count; the imports
// themselves run in the background. Launching an already-running parent is
// not an error, it just starts zero new children.
func (o *Orchestrator) Launch(ctx context.Context, parentID uuid.UUID) (int, int, error) {
	parent, err := o.jobs.FindByID(ctx, parentID)
	if err != nil {
		return 0, 0, err
	}
	if parent.IsChild() {
		return 0, 0, migration.ErrJobNotRunning
	}

	switch parent.Status {
	case migration.JobStatusPending:
		if err := parent.Start(); err != nil {
			return 0, 0, err
		}
		if err := o.jobs.Save(ctx, parent); err != nil {
			return 0, 0, err
		}
		if o.metrics != nil {
			o.metrics.JobStarted(ctx)
		}
		o.publish(parent, EventStarted, "")
	case migration.JobStatusRunning:
		// Repeat launch while the tree is in flight is a no-op apart from
		// dispatching any children still pending, normally zero
	default:
		return 0, 0, migration.ErrJobAlreadyLaunched
	}

	children, err := o.jobs.FindChildren(ctx, parentID)
	if err != nil {
		return 0, 0, err
	}

	launched := 0
	for _, child := range children {
		if child.Status != migration.JobStatusPending {
			continue
		}
		if !o.markRunning(child.ID) {
			continue
		}
		launched++
		o.wg.Add(1)
		go o.runChild(child.ID, parentID)
	}

	if launched == 0 {
		// Nothing to do: finalize immediately so the parent cannot hang
		o.finalizeParentIfDone(o.baseCtx, parentID)
	}
	return launched, len(children), nil
}

func (o *Orchestrator) markRunning(jobID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[jobID]; ok {
		return false
	}
	o.running[jobID] = struct{}{}
	return true
}

func (o *Orchestrator) unmarkRunning(jobID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, jobID)
}

// runChild executes one board import inside a worker slot
func (o *Orchestrator) runChild(childID, parentID uuid.UUID) {
	defer o.wg.Done()
	defer o.unmarkRunning(childID)

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-o.baseCtx.Done():
		return
	}

	ctx := o.baseCtx
	log := o.logger.With(zap.String("job_id", childID.String()))

	child, err := o.jobs.FindByID(ctx, childID)
	if err != nil {
		log.Error("failed to load child job", zap.Error(err))
		return
	}
	if child.Status != migration.JobStatusPending {
		// Cancelled while waiting for a worker slot
		o.finalizeParentIfDone(ctx, parentID)
		return
	}

	if err := child.Start(); err != nil {
		log.Error("failed to start child job", zap.Error(err))
		return
	}
	if err := o.jobs.Save(ctx, child); err != nil {
		log.Error("failed to persist child job start", zap.Error(err))
		return
	}
	o.publish(child, EventStarted, "")
	o.importAndSettle(ctx, child, parentID, log)
}

// resumeChild re-runs a child a previous process left in the running state.
// The mapping ledger makes the re-run idempotent.
func (o *Orchestrator) resumeChild(childID, parentID uuid.UUID) {
	defer o.wg.Done()
	defer o.unmarkRunning(childID)

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-o.baseCtx.Done():
		return
	}

	ctx := o.baseCtx
	log := o.logger.With(zap.String("job_id", childID.String()))

	child, err := o.jobs.FindByID(ctx, childID)
	if err != nil {
		log.Error("failed to load child job", zap.Error(err))
		return
	}
	if child.Status != migration.JobStatusRunning {
		// Settled or cancelled since the recovery scan
		o.finalizeParentIfDone(ctx, parentID)
		return
	}

	log.Info("resuming interrupted board import")
	o.publish(child, EventStarted, "")
	o.importAndSettle(ctx, child, parentID, log)
}

// importAndSettle runs one board import to its terminal state and lets the
// last finishing child settle the parent
func (o *Orchestrator) importAndSettle(ctx context.Context, child *migration.Job, parentID uuid.UUID, log *zap.Logger) {
	progress := func(current, total int, phase string) {
		child.SetProgress(current, total, phase)
		if err := o.jobs.Save(ctx, child); err != nil {
			log.Warn("failed to persist progress", zap.Error(err))
		}
		o.publish(child, EventProgress, "")
	}

	importErr := o.importer.ImportBoard(ctx, child, progress)
	o.settleChild(ctx, child, importErr, log)
	o.finalizeParentIfDone(ctx, parentID)
}

// Recover re-dispatches work a previous process left behind: children still
// stored as running are re-run, pending children of a running parent are
// launched, and a running parent whose children all finished is finalized.
// Returns how many children were dispatched.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	stale, err := o.jobs.FindByStatus(ctx, migration.JobStatusRunning)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, job := range stale {
		if !job.IsChild() {
			continue
		}
		if !o.markRunning(job.ID) {
			continue
		}
		dispatched++
		o.wg.Add(1)
		go o.resumeChild(job.ID, *job.ParentJobID)
	}

	for _, job := range stale {
		if job.IsChild() {
			continue
		}
		children, err := o.jobs.FindChildren(ctx, job.ID)
		if err != nil {
			o.logger.Error("failed to load children during recovery",
				zap.String("job_id", job.ID.String()), zap.Error(err))
			continue
		}
		for _, child := range children {
			if child.Status != migration.JobStatusPending {
				continue
			}
			if !o.markRunning(child.ID) {
				continue
			}
			dispatched++
			o.wg.Add(1)
			go o.runChild(child.ID, job.ID)
		}
		// Covers a crash between the last child settling and the parent
		// finalization; a no-op while any child is unfinished
		o.finalizeParentIfDone(ctx, job.ID)
	}
	return dispatched, nil
}

// settleChild moves the child into its terminal state after an import attempt
func (o *Orchestrator) settleChild(ctx context.Context, child *migration.Job, importErr error, log *zap.Logger) {
	switch {
	case importErr == nil:
		if err := child.Complete(); err != nil {
			log.Error("failed to complete child job", zap.Error(err))
			return
		}
		if o.metrics != nil {
			o.metrics.JobCompleted(ctx)
		}
		o.saveAndPublish(ctx, child, EventCompleted, "", log)

	case errors.Is(importErr, errJobStopped):
		// Status was changed externally (cancel or pause); it is already
		// persisted, only announce it
		log.Info("child job stopped", zap.String("status", string(child.Status)))
		if child.Status == migration.JobStatusCancelled {
			o.publish(child, EventCancelled, "")
		}

	case errors.Is(importErr, context.Canceled):
		// Shutdown: leave the job running in the store so a restart can
		// observe and recover it
		log.Warn("child job interrupted by shutdown")

	default:
		log.Error("board import failed", zap.Error(importErr))
		if err := child.Fail(importErr.Error()); err != nil {
			log.Error("failed to mark child job failed", zap.Error(err))
			return
		}
		if o.metrics != nil {
			o.metrics.JobFailed(ctx)
		}
		o.saveAndPublish(ctx, child, EventFailed, importErr.Error(), log)
	}
}

func (o *Orchestrator) saveAndPublish(ctx context.Context, job *migration.Job, eventType EventType, errMsg string, log *zap.Logger) {
	if err := o.jobs.Save(ctx, job); err != nil {
		log.Error("failed to persist job state", zap.Error(err))
	}
	o.publish(job, eventType, errMsg)
}

// finalizeParentIfDone completes the parent once its last child reaches a
// terminal state. The child that finishes last performs the finalization,
// so a parent can never be left running with no active children.
func (o *Orchestrator) finalizeParentIfDone(ctx context.Context, parentID uuid.UUID) {
	unfinished, err := o.jobs.CountUnfinishedChildren(ctx, parentID)
	if err != nil {
		o.logger.Error("failed to count unfinished children", zap.Error(err))
		return
	}
	if unfinished > 0 {
		return
	}

	parent, err := o.jobs.FindByID(ctx, parentID)
	if err != nil {
		o.logger.Error("failed to load parent job", zap.Error(err))
		return
	}
	if parent.Status != migration.JobStatusRunning {
		return
	}

	children, err := o.jobs.FindChildren(ctx, parentID)
	if err != nil {
		o.logger.Error("failed to load children for finalization", zap.Error(err))
		return
	}

	parent.Report = migration.Report{}
	failed, cancelled := 0, 0
	for _, child := range children {
		parent.Report.Merge(child.Report)
		switch child.Status {
		case migration.JobStatusFailed:
			failed++
		case migration.JobStatusCancelled:
			cancelled++
		}
	}

	log := o.logger.With(zap.String("job_id", parentID.String()))
	switch {
	case failed > 0:
		msg := fmt.Sprintf("%d of %d boards failed", failed, len(children))
		if err := parent.Fail(msg); err != nil {
			log.Error("failed to finalize parent", zap.Error(err))
			return
		}
		o.saveAndPublish(ctx, parent, EventFailed, msg, log)
	case cancelled > 0:
		if err := parent.Cancel(); err != nil {
			log.Error("failed to finalize parent", zap.Error(err))
			return
		}
		o.saveAndPublish(ctx, parent, EventCancelled, "", log)
	default:
		if err := parent.Complete(); err != nil {
			log.Error("failed to finalize parent", zap.Error(err))
			return
		}
		o.saveAndPublish(ctx, parent, EventCompleted, "", log)
	}
	log.Info("parent job finalized",
		zap.String("status", string(parent.Status)),
		zap.Int("children", len(children)),
		zap.Int("failed", failed),
	)
}

// Cancel requests cooperative cancellation of a job tree. Pending children
// stop before starting; running children stop at their next batch boundary.
func (o *Orchestrator) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobs.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return migration.ErrJobNotRunning
	}

	if job.IsChild() {
		if err := job.Cancel(); err != nil {
			return err
		}
		return o.jobs.Save(ctx, job)
	}

	children, err := o.jobs.FindChildren(ctx, jobID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.Status.IsTerminal() {
			continue
		}
		// Running children cancel themselves at the next batch check;
		// flipping the stored status is the signal they poll for
		if err := child.Cancel(); err != nil {
			continue
		}
		if err := o.jobs.Save(ctx, child); err != nil {
			return err
		}
	}

	// A still-pending parent has no children running on its behalf
	if job.Status == migration.JobStatusPending {
		if err := job.Cancel(); err != nil {
			return err
		}
		if err := o.jobs.Save(ctx, job); err != nil {
			return err
		}
		o.publish(job, EventCancelled, "")
	}
	return nil
}

// Subscribe attaches a listener to a job's event stream
func (o *Orchestrator) Subscribe(jobID uuid.UUID) (<-chan Event, func()) {
	return o.hub.Subscribe(jobID)
}

// Shutdown stops accepting work and waits for in-flight imports to reach a
// batch boundary, up to the context deadline
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publish sends the event under the job's own ID and, for children, under
// the parent's ID as well
func (o *Orchestrator) publish(job *migration.Job, eventType EventType, errMsg string) {
	event := Event{
		Type:       eventType,
		JobID:      job.ID,
		BoardIndex: job.BoardIndex,
		Status:     job.Status,
		Progress:   job.Progress,
		Report:     job.Report,
		Error:      errMsg,
		Timestamp:  time.Now(),
	}
	o.hub.Publish(job.ID, event)
	if job.ParentJobID != nil {
		o.hub.Publish(*job.ParentJobID, event)
	}
}
