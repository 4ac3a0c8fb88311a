package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/sdgateway"
)

type fakeGateway struct {
	mu        sync.Mutex
	delay     time.Duration
	failNames map[string]bool
	running   int
	maxRunning int
}

func (f *fakeGateway) Txt2Img(ctx context.Context, p sdgateway.GenerationParams) (sdgateway.GenerationResult, error) {
	f.mu.Lock()
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return sdgateway.GenerationResult{}, ctx.Err()
	}

	if f.failNames[p.Prompt] {
		return sdgateway.GenerationResult{}, errTest
	}
	return sdgateway.GenerationResult{Images: [][]byte{[]byte("img")}, Info: "ok"}, nil
}

func (f *fakeGateway) PollProgress(ctx context.Context) (sdgateway.ProgressInfo, error) {
	return sdgateway.ProgressInfo{Progress: 0.5}, nil
}

func (f *fakeGateway) Interrupt(ctx context.Context) error { return nil }

type errType struct{ msg string }

func (e *errType) Error() string { return e.msg }

var errTest = &errType{msg: "generation failed"}

type fakeUploader struct{}

func (fakeUploader) Upload(ctx context.Context, image []byte, userID string) (UploadOutcome, error) {
	return UploadOutcome{URL: "http://local/x.png", Sink: "local"}, nil
}

func waitForState(t *testing.T, e *Engine, jobID string, want State, timeout time.Duration) Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := e.Get(jobID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.State == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %s to reach %s", jobID, want)
	return Job{}
}

func TestEnqueue_RunsToCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{delay: 5 * time.Millisecond}
	e := New(ctx, gw, nil, fakeUploader{}, config.NSFWConfig{}, 10)

	id := e.Enqueue(Request{Prompt: "a cat"}, 1)
	job := waitForState(t, e, id, StateCompleted, time.Second)
	if job.Result == nil || len(job.Result.ImageURLs) != 1 {
		t.Fatalf("expected one image URL, got %+v", job.Result)
	}
}

func TestQueue_PriorityOrdering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{delay: 20 * time.Millisecond}
	e := New(ctx, gw, nil, fakeUploader{}, config.NSFWConfig{}, 10)

	lowPriorityID := e.Enqueue(Request{Prompt: "low"}, 5)
	time.Sleep(2 * time.Millisecond)
	highPriorityID := e.Enqueue(Request{Prompt: "high"}, 1)

	waitForState(t, e, lowPriorityID, StateRunning, time.Second)

	highJob, _ := e.Get(highPriorityID)
	if highJob.State != StateQueued {
		t.Fatalf("expected high-priority job still queued while low-priority runs (at-most-one-running), got %v", highJob.State)
	}

	waitForState(t, e, highPriorityID, StateCompleted, time.Second)
	waitForState(t, e, lowPriorityID, StateCompleted, time.Second)
}

func TestQueue_AtMostOneRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{delay: 10 * time.Millisecond}
	e := New(ctx, gw, nil, fakeUploader{}, config.NSFWConfig{}, 10)

	for i := 0; i < 5; i++ {
		e.Enqueue(Request{Prompt: "x"}, i)
	}
	time.Sleep(200 * time.Millisecond)

	gw.mu.Lock()
	maxRunning := gw.maxRunning
	gw.mu.Unlock()
	if maxRunning > 1 {
		t.Fatalf("expected at most one job running at a time, observed %d", maxRunning)
	}
}

func TestCancel_QueuedJobNeverRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{delay: 50 * time.Millisecond}
	e := New(ctx, gw, nil, fakeUploader{}, config.NSFWConfig{}, 10)

	blocker := e.Enqueue(Request{Prompt: "blocker"}, 1)
	waitForState(t, e, blocker, StateRunning, time.Second)

	queued := e.Enqueue(Request{Prompt: "never-runs"}, 1)
	if err := e.Cancel(ctx, queued); err != nil {
		t.Fatalf("unexpected error cancelling queued job: %v", err)
	}

	job := waitForState(t, e, queued, StateCancelled, time.Second)
	if job.Result != nil {
		t.Fatalf("cancelled job must not expose a result, got %+v", job.Result)
	}
}

func TestJob_FailureMarksFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{delay: 5 * time.Millisecond, failNames: map[string]bool{"boom": true}}
	e := New(ctx, gw, nil, fakeUploader{}, config.NSFWConfig{}, 10)

	id := e.Enqueue(Request{Prompt: "boom"}, 1)
	job := waitForState(t, e, id, StateFailed, time.Second)
	if job.Err == "" {
		t.Fatalf("expected error message on failed job")
	}
}

func TestHistory_ReverseChronologicalOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{delay: 2 * time.Millisecond}
	e := New(ctx, gw, nil, fakeUploader{}, config.NSFWConfig{}, 10)

	firstID := e.Enqueue(Request{Prompt: "first"}, 1)
	waitForState(t, e, firstID, StateCompleted, time.Second)
	secondID := e.Enqueue(Request{Prompt: "second"}, 1)
	waitForState(t, e, secondID, StateCompleted, time.Second)

	hist := e.History(10)
	if len(hist) < 2 || hist[0].ID != secondID {
		t.Fatalf("expected most recent job first, got %+v", hist)
	}
}
