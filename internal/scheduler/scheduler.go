// Package scheduler drives batches of generation jobs one at a time against a
// rate-limited remote service.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/infra"
	"pixelbatch/internal/pngmeta"
)

// Mode is the scheduler-level state.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeRunning  Mode = "running"
	ModeStopping Mode = "stopping"
)

// Generator performs one generation call. It must return promptly once ctx is
// cancelled.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

// Observer is notified after every job status change.
type Observer interface {
	JobUpdated(ctx context.Context, job domain.Job) error
}

// RunObserver is optionally implemented by observers interested in run
// summaries.
type RunObserver interface {
	RunFinished(ctx context.Context, report Report)
}

// ArtifactSink receives the encoded image of every completed job.
type ArtifactSink interface {
	Add(ctx context.Context, artifact domain.Artifact) error
}

// Report summarizes one run.
type Report struct {
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Failed      int    `json:"failed"`
	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`
	Cancelled   bool   `json:"cancelled"`
}

// Options configures a Scheduler.
type Options struct {
	Generator Generator
	Delay     time.Duration
	Sink      ArtifactSink
	Observers []Observer
	Logger    *infra.Logger
	Now       func() time.Time
}

// Scheduler owns the live queue. Job statuses are mutated only under mu; the
// generation call itself runs without holding it.
type Scheduler struct {
	gen       Generator
	delay     time.Duration
	sink      ArtifactSink
	observers []Observer
	logger    *infra.Logger
	now       func() time.Time

	mu        sync.Mutex
	order     []string
	jobs      map[string]*domain.Job
	mode      Mode
	cancel    context.CancelFunc
	processed int
	current   *Run
}

// Run is a handle on a batch executing in the background.
type Run struct {
	done   chan struct{}
	report Report
}

// Done is closed once the run has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes and returns its summary.
func (r *Run) Wait() Report {
	<-r.done
	return r.report
}

// New constructs a Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Generator == nil {
		return nil, errors.New("scheduler: generator is required")
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("scheduler: delay must not be negative, got %s", opts.Delay)
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		gen:       opts.Generator,
		delay:     opts.Delay,
		sink:      opts.Sink,
		observers: opts.Observers,
		logger:    logger,
		now:       now,
		jobs:      map[string]*domain.Job{},
		mode:      ModeIdle,
	}, nil
}

// Enqueue appends jobs to the live queue. Jobs whose id is already known are
// ignored so an id is never reused.
func (s *Scheduler) Enqueue(ctx context.Context, jobs []domain.Job) []domain.Job {
	s.mu.Lock()
	added := s.addLocked(jobs)
	s.mu.Unlock()
	s.notify(ctx, added...)
	return added
}

func (s *Scheduler) addLocked(jobs []domain.Job) []domain.Job {
	added := make([]domain.Job, 0, len(jobs))
	stamp := s.now()
	for _, job := range jobs {
		if job.ID == "" {
			continue
		}
		if _, exists := s.jobs[job.ID]; exists {
			continue
		}
		job.Status = domain.JobStatusPending
		job.FailureReason = ""
		if job.CreatedAt.IsZero() {
			job.CreatedAt = stamp
		}
		job.UpdatedAt = stamp
		stored := job
		s.jobs[job.ID] = &stored
		s.order = append(s.order, job.ID)
		added = append(added, job)
	}
	return added
}

// Start runs a batch and blocks until it finishes. See Begin.
func (s *Scheduler) Start(ctx context.Context, batch []domain.Job) (Report, error) {
	run, err := s.Begin(ctx, batch)
	if err != nil {
		return Report{}, err
	}
	return run.Wait(), nil
}

// Begin claims the single runner slot and executes in the background. With an
// explicit batch the run iterates exactly those jobs (enqueueing unknown ones);
// with a nil batch it repeatedly takes the first pending job of the live
// queue. Returns domain.ErrAlreadyRunning, leaving state untouched, when a run
// is active.
func (s *Scheduler) Begin(ctx context.Context, batch []domain.Job) (*Run, error) {
	s.mu.Lock()
	if s.mode != ModeIdle {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}
	var snapshot []string
	var added []domain.Job
	if batch != nil {
		added = s.addLocked(batch)
		snapshot = make([]string, 0, len(batch))
		for _, job := range batch {
			snapshot = append(snapshot, job.ID)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{done: make(chan struct{})}
	s.mode = ModeRunning
	s.cancel = cancel
	s.current = run
	s.mu.Unlock()

	s.notify(ctx, added...)
	go func() {
		defer close(run.done)
		defer cancel()
		run.report = s.loop(runCtx, snapshot)
		s.finish(runCtx, run)
	}()
	return run, nil
}

// Generate replaces the live queue with batch and starts it.
func (s *Scheduler) Generate(ctx context.Context, batch []domain.Job) (*Run, error) {
	s.mu.Lock()
	busy := s.mode != ModeIdle
	s.mu.Unlock()
	if busy {
		return nil, domain.ErrAlreadyRunning
	}
	s.Clear(ctx)
	if batch == nil {
		batch = []domain.Job{}
	}
	return s.Begin(ctx, batch)
}

func (s *Scheduler) finish(ctx context.Context, run *Run) {
	s.mu.Lock()
	if s.current == run {
		s.mode = ModeIdle
		s.cancel = nil
		s.current = nil
	}
	s.mu.Unlock()

	event := s.logger.Info()
	if run.report.Aborted {
		event = s.logger.Warn().Str("reason", run.report.AbortReason)
	}
	event.
		Int("batch_size", run.report.Total).
		Int("completed", run.report.Completed).
		Int("failed", run.report.Failed).
		Bool("cancelled", run.report.Cancelled).
		Msg("scheduler: run finished")

	for _, obs := range s.observers {
		if ro, ok := obs.(RunObserver); ok {
			ro.RunFinished(context.WithoutCancel(ctx), run.report)
		}
	}
}

func (s *Scheduler) loop(ctx context.Context, snapshot []string) Report {
	var report Report
	explicit := snapshot != nil
	if explicit {
		report.Total = len(snapshot)
	}
	pos := 0
	first := true
	for {
		if ctx.Err() != nil {
			report.Cancelled = true
			s.cancelRemaining(ctx, snapshot, pos)
			return report
		}
		id, next, ok := s.nextPending(snapshot, pos)
		if !ok {
			report.Cancelled = ctx.Err() != nil
			return report
		}
		pos = next
		if !first {
			if !s.wait(ctx) {
				report.Cancelled = true
				s.cancelRemaining(ctx, snapshot, pos)
				return report
			}
			// The job may have been removed or cancelled during the delay.
			if !s.isPending(id) {
				continue
			}
		}
		first = false
		if !explicit {
			report.Total++
		}

		job, ok := s.transition(ctx, id, domain.JobStatusProcessing, "")
		if !ok {
			continue
		}
		err := s.execute(ctx, job)
		switch {
		case err == nil:
			report.Completed++
		case domain.IsRateLimit(err):
			report.Failed++
			report.Aborted = true
			report.AbortReason = domain.FailureReason(err)
			s.transition(ctx, id, domain.JobStatusFailed, report.AbortReason)
			s.stopRemaining(ctx, snapshot, pos)
			return report
		default:
			report.Failed++
			s.transition(ctx, id, domain.JobStatusFailed, domain.FailureReason(err))
			if errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil {
				report.Cancelled = true
				s.cancelRemaining(ctx, snapshot, pos)
				return report
			}
			s.logger.Warn().Err(err).Str("job_id", id).Msg("scheduler: job failed")
		}
	}
}

// execute performs the generation call and hands the encoded artifact to the
// sink. A nil return means the job was marked completed.
func (s *Scheduler) execute(ctx context.Context, job domain.Job) error {
	result, err := s.gen.Generate(ctx, job.Request())
	if err != nil {
		return err
	}
	completedAt := s.now()
	md := Provenance(job, completedAt)
	artifact := domain.Artifact{
		JobID:        job.ID,
		ImageBytes:   pngmeta.Encode(result.ImageBytes, md),
		MetadataUsed: md.Map(),
		Width:        job.Params.Width,
		Height:       job.Params.Height,
		CreatedAt:    completedAt,
	}
	if _, ok := s.transition(ctx, job.ID, domain.JobStatusCompleted, ""); !ok {
		// Stopped while the call was settling.
		return fmt.Errorf("scheduler: job %s: %w", job.ID, domain.ErrCancelled)
	}
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
	if s.sink != nil {
		if err := s.sink.Add(context.WithoutCancel(ctx), artifact); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduler: store artifact failed")
		}
	}
	return nil
}

// wait observes the inter-job delay. It returns false when ctx was cancelled
// first; the timer is always released.
func (s *Scheduler) wait(ctx context.Context) bool {
	if s.delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextPending returns the next pending job id. With a snapshot it scans from
// pos; otherwise it recomputes the pending filter over the live queue.
func (s *Scheduler) nextPending(snapshot []string, pos int) (string, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot == nil {
		for _, id := range s.order {
			if job := s.jobs[id]; job != nil && job.Status == domain.JobStatusPending {
				return id, 0, true
			}
		}
		return "", 0, false
	}
	for i := pos; i < len(snapshot); i++ {
		if job := s.jobs[snapshot[i]]; job != nil && job.Status == domain.JobStatusPending {
			return snapshot[i], i + 1, true
		}
	}
	return "", len(snapshot), false
}

func (s *Scheduler) isPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	return job != nil && job.Status == domain.JobStatusPending
}

// transition applies a status change if the state machine allows it and
// notifies observers.
func (s *Scheduler) transition(ctx context.Context, id string, next domain.JobStatus, reason string) (domain.Job, bool) {
	s.mu.Lock()
	job := s.jobs[id]
	if job == nil || !job.Status.CanTransition(next) {
		s.mu.Unlock()
		return domain.Job{}, false
	}
	job.Status = next
	job.FailureReason = reason
	job.UpdatedAt = s.now()
	updated := *job
	s.mu.Unlock()

	s.logger.Debug().Str("job_id", id).Str("status", string(next)).Str("reason", reason).Msg("scheduler: job updated")
	s.notify(ctx, updated)
	return updated, true
}

// stopRemaining fails every still-pending job after pos with ReasonStopped.
func (s *Scheduler) stopRemaining(ctx context.Context, snapshot []string, pos int) {
	s.failRemaining(ctx, snapshot, pos, domain.ReasonStopped)
}

func (s *Scheduler) cancelRemaining(ctx context.Context, snapshot []string, pos int) {
	s.failRemaining(ctx, snapshot, pos, domain.ReasonCancelled)
}

func (s *Scheduler) failRemaining(ctx context.Context, snapshot []string, pos int, reason string) {
	s.mu.Lock()
	ids := snapshot
	if ids == nil {
		ids = append([]string(nil), s.order...)
		pos = 0
	}
	var changed []domain.Job
	stamp := s.now()
	for i := pos; i < len(ids); i++ {
		job := s.jobs[ids[i]]
		if job == nil || job.Status != domain.JobStatusPending {
			continue
		}
		job.Status = domain.JobStatusFailed
		job.FailureReason = reason
		job.UpdatedAt = stamp
		changed = append(changed, *job)
	}
	s.mu.Unlock()
	s.notify(ctx, changed...)
}

// Stop cancels the active run, aborting any in-flight call, and fails every
// pending or processing job with ReasonCancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.mode == ModeRunning {
		s.mode = ModeStopping
	}
	cancel := s.cancel
	s.cancel = nil
	if cancel != nil {
		cancel()
	}
	var changed []domain.Job
	stamp := s.now()
	for _, id := range s.order {
		job := s.jobs[id]
		if job == nil || job.Status.IsTerminal() {
			continue
		}
		job.Status = domain.JobStatusFailed
		job.FailureReason = domain.ReasonCancelled
		job.UpdatedAt = stamp
		changed = append(changed, *job)
	}
	s.mu.Unlock()

	if cancel != nil {
		s.logger.Info().Int("cancelled", len(changed)).Msg("scheduler: stop requested")
	}
	s.notify(ctx, changed...)
}

// Clear empties the live queue, stopping an active run first and waiting for
// it to settle.
func (s *Scheduler) Clear(ctx context.Context) {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()
	if run != nil {
		s.Stop(ctx)
		<-run.Done()
	}
	s.mu.Lock()
	s.order = nil
	s.jobs = map[string]*domain.Job{}
	s.mu.Unlock()
}

// Remove deletes one job from the live queue. A job that is currently
// processing cannot be removed.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("scheduler: job %s: %w", id, domain.ErrNotFound)
	}
	if job.Status == domain.JobStatusProcessing {
		return domain.NewValidationError("id", "job is processing; stop the queue first")
	}
	delete(s.jobs, id)
	for i, queued := range s.order {
		if queued == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Jobs returns a copy of the live queue in enqueue order.
func (s *Scheduler) Jobs() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, 0, len(s.order))
	for _, id := range s.order {
		if job := s.jobs[id]; job != nil {
			out = append(out, *job)
		}
	}
	return out
}

// Job returns one job by id.
func (s *Scheduler) Job(id string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// Mode returns the scheduler-level state.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Processed returns the number of jobs completed since construction.
func (s *Scheduler) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

func (s *Scheduler) notify(ctx context.Context, jobs ...domain.Job) {
	if len(jobs) == 0 || len(s.observers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, job := range jobs {
		for _, obs := range s.observers {
			if err := obs.JobUpdated(ctx, job); err != nil {
				s.logger.Error().Err(err).Str("job_id", job.ID).Str("status", string(job.Status)).Msg("scheduler: observer failed")
			}
		}
	}
}
