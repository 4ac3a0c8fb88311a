// Package toolsurface publishes the outward tool catalog an LLM host
// drives: model/sampler/LoRA enumeration, content analysis, direct and
// queued image generation, job inspection, the end-to-end orchestration
// recipe, and the admin/maintenance tools layered on top of the other
// components. Every tool returns the same structured envelope rather than
// throwing across the boundary, mirroring content_guide_tools.py and
// queue_manager.py's "return a dict with a success flag" idiom.
package toolsurface

// Result is the structured envelope every tool call returns.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func ok(payload any) Result {
	return Result{Success: true, Payload: payload}
}

func fail(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

func failMsg(msg string) Result {
	return Result{Success: false, Error: msg}
}
