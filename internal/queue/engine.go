package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/sdgateway"
)

const component = "queue"

// Generator is the subset of sdgateway.Client the worker drives.
type Generator interface {
	Txt2Img(ctx context.Context, p sdgateway.GenerationParams) (sdgateway.GenerationResult, error)
	PollProgress(ctx context.Context) (sdgateway.ProgressInfo, error)
	Interrupt(ctx context.Context) error
}

// Censor is the subset of sdgateway.Client the worker drives for the
// optional post-generation NSFW pass.
type Censor interface {
	Censor(ctx context.Context, req sdgateway.CensorRequest) (sdgateway.CensorResult, error)
}

// UploadOutcome is what the uploader reports after routing one image.
type UploadOutcome struct {
	URL  string
	Sink string
}

// Uploader is the subset of uploadrouter.Router the worker drives.
type Uploader interface {
	Upload(ctx context.Context, image []byte, userID string) (UploadOutcome, error)
}

// Engine is the priority-ordered job queue. A single background worker
// drains it; all public methods are safe to call concurrently.
type Engine struct {
	mu       sync.Mutex
	heap     priorityHeap
	jobs     map[string]*Job
	history  []*Job
	nextSeq  int64
	wake     chan struct{}
	retain   int
	pollIntv time.Duration

	gateway  Generator
	censor   Censor
	uploader Uploader
	nsfw     config.NSFWConfig
}

// New builds an Engine and starts its background worker on ctx. The worker
// exits when ctx is cancelled.
func New(ctx context.Context, gateway Generator, censor Censor, uploader Uploader, nsfw config.NSFWConfig, historyRetention int) *Engine {
	e := &Engine{
		heap:     make(priorityHeap, 0),
		jobs:     make(map[string]*Job),
		wake:     make(chan struct{}, 1),
		retain:   historyRetention,
		pollIntv: time.Second,
		gateway:  gateway,
		censor:   censor,
		uploader: uploader,
		nsfw:     nsfw,
	}
	go e.run(ctx)
	return e
}

// Enqueue adds a new job at the given priority (lower runs first) and
// returns its id.
func (e *Engine) Enqueue(req Request, priority int) string {
	id := uuid.NewString()
	now := time.Now().UTC()

	e.mu.Lock()
	e.jobs[id] = &Job{ID: id, Request: req, Priority: priority, State: StateQueued, CreatedAt: now}
	e.nextSeq++
	heap.Push(&e.heap, &entry{jobID: id, priority: priority, seq: e.nextSeq, createdAt: now.UnixNano()})
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return id
}

// Get returns a snapshot of a job's current state.
func (e *Engine) Get(jobID string) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return Job{}, apperr.NotFound(component, "job "+jobID+" not found")
	}
	return j.snapshot(), nil
}

// Cancel cancels a job. A queued job is removed from the heap; a running
// job is interrupted at the engine and its in-flight image discarded.
func (e *Engine) Cancel(ctx context.Context, jobID string) error {
	e.mu.Lock()
	j, ok := e.jobs[jobID]
	if !ok {
		e.mu.Unlock()
		return apperr.NotFound(component, "job "+jobID+" not found")
	}
	if j.State.terminal() {
		e.mu.Unlock()
		return apperr.Conflict(component, "job already in terminal state "+string(j.State), "")
	}

	wasRunning := j.State == StateRunning
	if !wasRunning {
		e.removeFromHeap(jobID)
	}
	e.markTerminal(j, StateCancelled, nil, "")
	e.mu.Unlock()

	if wasRunning {
		if err := e.gateway.Interrupt(ctx); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("interrupt failed during cancel")
		}
	}
	return nil
}

func (e *Engine) removeFromHeap(jobID string) {
	for i, entry := range e.heap {
		if entry.jobID == jobID {
			heap.Remove(&e.heap, i)
			return
		}
	}
}

// List returns snapshots of jobs matching an optional status filter.
func (e *Engine) List(status *State) []Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Job, 0, len(e.jobs))
	for _, j := range e.jobs {
		if status != nil && j.State != *status {
			continue
		}
		out = append(out, j.snapshot())
	}
	return out
}

// History returns terminal jobs in reverse chronological order, up to
// limit (bounded by the configured retention cap regardless).
func (e *Engine) History(limit int) []Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Job, n)
	for i := 0; i < n; i++ {
		out[i] = e.history[len(e.history)-1-i].snapshot()
	}
	return out
}

func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
		for {
			job := e.popNext()
			if job == nil {
				break
			}
			e.runJobSafely(ctx, job)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (e *Engine) popNext() *Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.heap.Len() == 0 {
		return nil
	}
	ent := heap.Pop(&e.heap).(*entry)
	job, ok := e.jobs[ent.jobID]
	if !ok || job.State.terminal() {
		return nil
	}
	now := time.Now().UTC()
	job.State = StateRunning
	job.StartedAt = &now
	return job
}

// runJobSafely recovers from a worker panic so one bad job cannot take the
// background worker down with it; the job is marked failed and the loop
// continues.
func (e *Engine) runJobSafely(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			if !job.State.terminal() {
				e.markTerminal(job, StateFailed, nil, fmt.Sprintf("worker panic: %v", r))
			}
			e.mu.Unlock()
			log.Error().Interface("panic", r).Str("job_id", job.ID).Msg("queue worker recovered from panic")
		}
	}()
	e.runJob(ctx, job)
}

func (e *Engine) runJob(ctx context.Context, job *Job) {
	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()
	go e.trackProgress(progressCtx, job.ID)

	result, err := e.gateway.Txt2Img(ctx, sdgateway.GenerationParams{
		Prompt:         job.Request.Prompt,
		NegativePrompt: job.Request.NegativePrompt,
		Steps:          job.Request.Steps,
		Width:          job.Request.Width,
		Height:         job.Request.Height,
		SamplerName:    job.Request.SamplerName,
		CFGScale:       job.Request.CFGScale,
		Seed:           job.Request.Seed,
	})

	e.mu.Lock()
	if job.State == StateCancelled {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err != nil {
		e.mu.Lock()
		e.markTerminal(job, StateFailed, nil, err.Error())
		e.mu.Unlock()
		return
	}

	urls := make([]string, 0, len(result.Images))
	sink := ""
	for _, img := range result.Images {
		img = e.maybeCensor(ctx, job, img)
		if e.uploader != nil {
			outcome, err := e.uploader.Upload(ctx, img, job.Request.UserID)
			if err != nil {
				e.mu.Lock()
				e.markTerminal(job, StateFailed, nil, err.Error())
				e.mu.Unlock()
				return
			}
			urls = append(urls, outcome.URL)
			sink = outcome.Sink
		}
	}

	e.mu.Lock()
	if job.State == StateCancelled {
		e.mu.Unlock()
		return
	}
	e.markTerminal(job, StateCompleted, &Result{ImageURLs: urls, Sink: sink, Info: result.Info}, "")
	e.mu.Unlock()
}

func (e *Engine) maybeCensor(ctx context.Context, job *Job, img []byte) []byte {
	if !job.Request.ApplyCensor || e.censor == nil {
		return img
	}
	req := sdgateway.BuildCensorRequest(img, e.nsfw)
	result, err := e.censor.Censor(ctx, req)
	if err != nil || result.Unavailable || result.CensoredImage == nil {
		return img
	}
	return result.CensoredImage
}

func (e *Engine) trackProgress(ctx context.Context, jobID string) {
	ticker := time.NewTicker(e.pollIntv)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := e.gateway.PollProgress(ctx)
			if err != nil {
				continue
			}
			e.mu.Lock()
			if job, ok := e.jobs[jobID]; ok && job.State == StateRunning && info.Progress > job.Progress {
				job.Progress = info.Progress
			}
			e.mu.Unlock()
		}
	}
}

// markTerminal transitions a job into a terminal state. Caller must hold e.mu.
func (e *Engine) markTerminal(job *Job, state State, result *Result, errMsg string) {
	now := time.Now().UTC()
	job.State = state
	job.FinishedAt = &now
	job.Result = result
	job.Err = errMsg
	if state != StateCancelled {
		job.Progress = 1.0
	}

	e.history = append(e.history, job)
	if e.retain > 0 && len(e.history) > e.retain {
		e.history = e.history[len(e.history)-e.retain:]
	}
}
