package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/pngmeta"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tinyPNG() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	return buf.Bytes()
}

type scriptedGenerator struct {
	mu      sync.Mutex
	calls   []domain.GenerationRequest
	errs    map[int]error
	blockOn int
	started chan string
}

func (g *scriptedGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	n := len(g.calls)
	err := g.errs[n]
	g.mu.Unlock()

	if g.started != nil {
		g.started <- req.JobID
	}
	if g.blockOn == n {
		<-ctx.Done()
		return domain.GenerationResult{}, fmt.Errorf("generation %w", domain.ErrCancelled)
	}
	if err != nil {
		return domain.GenerationResult{}, err
	}
	return domain.GenerationResult{ImageBytes: tinyPNG(), MIME: "image/png"}, nil
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type memorySink struct {
	mu        sync.Mutex
	artifacts []domain.Artifact
	added     chan string
}

func (s *memorySink) Add(ctx context.Context, a domain.Artifact) error {
	s.mu.Lock()
	s.artifacts = append(s.artifacts, a)
	s.mu.Unlock()
	if s.added != nil {
		s.added <- a.JobID
	}
	return nil
}

type recordingObserver struct {
	mu      sync.Mutex
	events  []string
	reports []Report
	err     error
}

func (o *recordingObserver) JobUpdated(ctx context.Context, job domain.Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, job.ID+":"+string(job.Status))
	return o.err
}

func (o *recordingObserver) RunFinished(ctx context.Context, report Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, report)
}

func makeJobs(n int) []domain.Job {
	jobs := make([]domain.Job, 0, n)
	for i := 1; i <= n; i++ {
		jobs = append(jobs, domain.Job{
			ID:     fmt.Sprintf("job-%d", i),
			Prompt: domain.ResolvedPrompt{Text: fmt.Sprintf("prompt %d", i), Selections: []domain.Selection{}},
			Params: domain.GenerationParams{}.WithDefaults(),
			Seed:   int64(i),
		})
	}
	return jobs
}

func newScheduler(t *testing.T, gen Generator, delay time.Duration, sink ArtifactSink, observers ...Observer) *Scheduler {
	t.Helper()
	s, err := New(Options{Generator: gen, Delay: delay, Sink: sink, Observers: observers})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func statuses(s *Scheduler) map[string]domain.Job {
	out := map[string]domain.Job{}
	for _, job := range s.Jobs() {
		out[job.ID] = job
	}
	return out
}

func TestRateLimitAbortsRemainingBatch(t *testing.T) {
	gen := &scriptedGenerator{errs: map[int]error{3: &domain.RateLimitError{StatusCode: 429}}}
	sink := &memorySink{}
	s := newScheduler(t, gen, 0, sink)

	report, err := s.Start(context.Background(), makeJobs(5))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	got := statuses(s)
	for _, id := range []string{"job-1", "job-2"} {
		if got[id].Status != domain.JobStatusCompleted {
			t.Fatalf("%s status = %s", id, got[id].Status)
		}
	}
	if got["job-3"].Status != domain.JobStatusFailed || got["job-3"].FailureReason != "rate limited: Rate limit exceeded! Please increase delay or wait." {
		t.Fatalf("job-3 = %+v", got["job-3"])
	}
	for _, id := range []string{"job-4", "job-5"} {
		if got[id].Status != domain.JobStatusFailed || got[id].FailureReason != domain.ReasonStopped {
			t.Fatalf("%s = %+v", id, got[id])
		}
	}
	if s.Mode() != ModeIdle {
		t.Fatalf("mode = %s", s.Mode())
	}
	if gen.callCount() != 3 {
		t.Fatalf("generator calls = %d, want 3", gen.callCount())
	}
	if report.Completed != 2 || report.Failed != 1 || !report.Aborted || report.Total != 5 {
		t.Fatalf("report = %+v", report)
	}
	if len(sink.artifacts) != 2 || s.Processed() != 2 {
		t.Fatalf("artifacts = %d processed = %d", len(sink.artifacts), s.Processed())
	}
}

func TestOrdinaryFailureIsIsolated(t *testing.T) {
	gen := &scriptedGenerator{errs: map[int]error{2: &domain.GenerationError{StatusCode: 400, Message: "bad prompt"}}}
	s := newScheduler(t, gen, 0, nil)

	report, err := s.Start(context.Background(), makeJobs(3))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	got := statuses(s)
	if got["job-2"].Status != domain.JobStatusFailed || got["job-2"].FailureReason != "bad prompt" {
		t.Fatalf("job-2 = %+v", got["job-2"])
	}
	if got["job-1"].Status != domain.JobStatusCompleted || got["job-3"].Status != domain.JobStatusCompleted {
		t.Fatalf("neighbours should complete: %+v", got)
	}
	if report.Aborted || report.Completed != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestStopDuringDelayPreventsNextJob(t *testing.T) {
	gen := &scriptedGenerator{}
	sink := &memorySink{added: make(chan string, 1)}
	s := newScheduler(t, gen, time.Hour, sink)

	run, err := s.Begin(context.Background(), makeJobs(3))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	<-sink.added
	s.Stop(context.Background())
	report := run.Wait()

	got := statuses(s)
	if got["job-1"].Status != domain.JobStatusCompleted {
		t.Fatalf("job-1 = %+v", got["job-1"])
	}
	for _, id := range []string{"job-2", "job-3"} {
		if got[id].Status == domain.JobStatusCompleted || got[id].Status == domain.JobStatusProcessing {
			t.Fatalf("%s must never start: %+v", id, got[id])
		}
		if got[id].Status == domain.JobStatusFailed && got[id].FailureReason != domain.ReasonCancelled {
			t.Fatalf("%s reason = %q", id, got[id].FailureReason)
		}
	}
	if gen.callCount() != 1 {
		t.Fatalf("generator calls = %d", gen.callCount())
	}
	if !report.Cancelled || s.Mode() != ModeIdle {
		t.Fatalf("report = %+v mode = %s", report, s.Mode())
	}
}

func TestStopAbortsInFlightCall(t *testing.T) {
	gen := &scriptedGenerator{blockOn: 1, started: make(chan string, 1)}
	s := newScheduler(t, gen, 0, nil)

	run, err := s.Begin(context.Background(), makeJobs(2))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	<-gen.started
	if s.Mode() != ModeRunning {
		t.Fatalf("mode = %s", s.Mode())
	}
	s.Stop(context.Background())
	s.Stop(context.Background())
	run.Wait()

	for id, job := range statuses(s) {
		if job.Status != domain.JobStatusFailed || job.FailureReason != domain.ReasonCancelled {
			t.Fatalf("%s = %+v", id, job)
		}
	}
	if gen.callCount() != 1 {
		t.Fatalf("generator calls = %d", gen.callCount())
	}
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	gen := &scriptedGenerator{blockOn: 1, started: make(chan string, 1)}
	s := newScheduler(t, gen, 0, nil)

	run, err := s.Begin(context.Background(), makeJobs(1))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	<-gen.started
	before := len(s.Jobs())
	if _, err := s.Begin(context.Background(), makeJobs(4)[1:]); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("second begin err = %v", err)
	}
	if _, err := s.Generate(context.Background(), makeJobs(2)); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("generate err = %v", err)
	}
	if len(s.Jobs()) != before {
		t.Fatalf("rejected start must not change the queue")
	}
	s.Stop(context.Background())
	run.Wait()
}

func TestLiveQueueProcessesPendingJobs(t *testing.T) {
	gen := &scriptedGenerator{}
	s := newScheduler(t, gen, 0, nil)
	jobs := makeJobs(3)
	s.Enqueue(context.Background(), jobs)
	s.Enqueue(context.Background(), jobs[:1])
	if err := s.Remove("job-2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove("job-9"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove unknown err = %v", err)
	}

	report, err := s.Start(context.Background(), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if report.Total != 2 || report.Completed != 2 {
		t.Fatalf("report = %+v", report)
	}
	order := s.Jobs()
	if len(order) != 2 || order[0].ID != "job-1" || order[1].ID != "job-3" {
		t.Fatalf("queue = %+v", order)
	}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.calls[0].JobID != "job-1" || gen.calls[1].JobID != "job-3" {
		t.Fatalf("calls out of order: %+v", gen.calls)
	}
}

func TestGenerateReplacesQueue(t *testing.T) {
	s := newScheduler(t, &scriptedGenerator{}, 0, nil)
	s.Enqueue(context.Background(), makeJobs(2))

	fresh := []domain.Job{{ID: "fresh", Params: domain.GenerationParams{}.WithDefaults()}}
	run, err := s.Generate(context.Background(), fresh)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	run.Wait()
	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].ID != "fresh" || jobs[0].Status != domain.JobStatusCompleted {
		t.Fatalf("queue = %+v", jobs)
	}
	s.Clear(context.Background())
	if len(s.Jobs()) != 0 {
		t.Fatalf("clear left jobs behind")
	}
}

func TestDelaySitsBetweenJobsOnly(t *testing.T) {
	const delay = 30 * time.Millisecond
	s := newScheduler(t, &scriptedGenerator{}, delay, nil)

	started := time.Now()
	if _, err := s.Start(context.Background(), makeJobs(3)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 2*delay {
		t.Fatalf("elapsed %s, want at least %s", elapsed, 2*delay)
	}

	started = time.Now()
	if _, err := s.Start(context.Background(), makeJobs(1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if elapsed := time.Since(started); elapsed >= delay {
		t.Fatalf("single job waited %s", elapsed)
	}
}

func TestParentCancellationCancelsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &scriptedGenerator{}
	s := newScheduler(t, gen, 0, nil)
	report, err := s.Start(ctx, makeJobs(2))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !report.Cancelled || gen.callCount() != 0 {
		t.Fatalf("report = %+v calls = %d", report, gen.callCount())
	}
	for id, job := range statuses(s) {
		if job.FailureReason != domain.ReasonCancelled {
			t.Fatalf("%s = %+v", id, job)
		}
	}
}

func TestObserversSeeEveryTransition(t *testing.T) {
	good := &recordingObserver{}
	failing := &recordingObserver{err: errors.New("db down")}
	s := newScheduler(t, &scriptedGenerator{}, 0, nil, good, failing)

	if _, err := s.Start(context.Background(), makeJobs(1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	want := []string{"job-1:pending", "job-1:processing", "job-1:completed"}
	if fmt.Sprint(good.events) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", good.events, want)
	}
	if len(failing.events) != 3 {
		t.Fatalf("failing observer should still be called: %v", failing.events)
	}
	if len(good.reports) != 1 || good.reports[0].Completed != 1 {
		t.Fatalf("reports = %+v", good.reports)
	}
}

func TestCompletedArtifactCarriesProvenance(t *testing.T) {
	sink := &memorySink{}
	s := newScheduler(t, &scriptedGenerator{}, 0, sink)
	jobs := makeJobs(1)
	jobs[0].Seed = 0
	jobs[0].OriginalTemplate = "a {red|blue} gem"
	if _, err := s.Start(context.Background(), jobs); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(sink.artifacts) != 1 {
		t.Fatalf("artifacts = %d", len(sink.artifacts))
	}
	decoded := pngmeta.Decode(sink.artifacts[0].ImageBytes)
	if decoded.Err != nil {
		t.Fatalf("decode: %v", decoded.Err)
	}
	if decoded.Prompt != "prompt 1" || decoded.OriginalPrompt != "a {red|blue} gem" {
		t.Fatalf("prompt fields = %q / %q", decoded.Prompt, decoded.OriginalPrompt)
	}
	if decoded.Seed != "0" || decoded.NoBackground != "false" || decoded.GuidanceScale != "8" {
		t.Fatalf("scalar fields = %+v", decoded.Metadata)
	}
	if decoded.Generator != GeneratorName || decoded.Settings["id"] != "job-1" {
		t.Fatalf("generator/settings = %q %v", decoded.Generator, decoded.Settings)
	}
	if sink.artifacts[0].MetadataUsed["seed"] != "0" {
		t.Fatalf("metadata used = %v", sink.artifacts[0].MetadataUsed)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without generator")
	}
	if _, err := New(Options{Generator: &scriptedGenerator{}, Delay: -time.Second}); err == nil {
		t.Fatalf("expected error for negative delay")
	}
}
