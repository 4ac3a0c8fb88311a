package toolsurface

import (
	"context"

	"github.com/sdforge/sdforge/internal/loracatalog"
	"github.com/sdforge/sdforge/internal/queue"
	"github.com/sdforge/sdforge/internal/sdgateway"
)

// GenerateResult is the payload of a direct, synchronous generation.
type GenerateResult struct {
	ImageURL string `json:"image_url,omitempty"`
	Sink     string `json:"sink,omitempty"`
	Info     string `json:"info,omitempty"`
}

// GenerateImage runs txt2img synchronously against the SD engine and
// uploads the first result, the direct (non-queued) counterpart to
// EnqueueImageGeneration. When the caller hasn't already embedded
// `<lora:NAME:WEIGHT>` tags into params.Prompt itself, pass the chosen
// LoRAs via selected and they are rendered into the prompt here.
func (s *Surface) GenerateImage(ctx context.Context, params sdgateway.GenerationParams, selected []loracatalog.Selection, userID string) Result {
	params.Prompt = embedLoRATags(params.Prompt, selected)
	result, err := s.gateway.Txt2Img(ctx, params)
	if err != nil {
		return fail(err)
	}
	if len(result.Images) == 0 {
		return failMsg("no images generated")
	}

	out := GenerateResult{Info: result.Info}
	if s.uploader != nil {
		outcome, err := s.uploader.Upload(ctx, result.Images[0], userID)
		if err != nil {
			out.Info = result.Info + " (upload failed: " + err.Error() + ")"
			return ok(out)
		}
		out.ImageURL = outcome.URL
		out.Sink = outcome.Sink
	}
	return ok(out)
}

// EnqueueImageGeneration submits a generation request to the background
// queue and returns its job id immediately.
func (s *Surface) EnqueueImageGeneration(req queue.Request, priority int) Result {
	jobID := s.queue.Enqueue(req, priority)
	return ok(map[string]string{"job_id": jobID})
}

// GetGenerationProgress reports one job's current state and progress. When
// jobID is empty it reports the currently running job, if any.
func (s *Surface) GetGenerationProgress(jobID string) Result {
	if jobID == "" {
		running := queue.StateRunning
		jobs := s.queue.List(&running)
		if len(jobs) == 0 {
			return ok(map[string]string{"status": "idle"})
		}
		return ok(jobs[0])
	}
	job, err := s.queue.Get(jobID)
	if err != nil {
		return fail(err)
	}
	return ok(job)
}

// GetQueueStatus lists every non-terminal job.
func (s *Surface) GetQueueStatus() Result {
	all := s.queue.List(nil)
	queued := make([]queue.Job, 0, len(all))
	for _, j := range all {
		if j.State == queue.StateQueued || j.State == queue.StateRunning {
			queued = append(queued, j)
		}
	}
	return ok(queued)
}

// CancelGenerationJob cancels a queued or running job.
func (s *Surface) CancelGenerationJob(ctx context.Context, jobID string) Result {
	if err := s.queue.Cancel(ctx, jobID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"job_id": jobID, "status": "cancelled"})
}

// GetJobHistory lists the most recent finished (completed, failed or
// cancelled) jobs, most recent first.
func (s *Surface) GetJobHistory(limit int) Result {
	return ok(s.queue.History(limit))
}

// TestHostingServices probes which upload sinks are currently usable,
// without performing any upload.
func (s *Surface) TestHostingServices(ctx context.Context) Result {
	if s.uploader == nil {
		return failMsg("no uploader configured")
	}
	return ok(s.uploader.Probe(ctx))
}
