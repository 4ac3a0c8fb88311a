package toolsurface

import (
	"context"
	"strconv"
	"strings"

	"github.com/sdforge/sdforge/internal/contentclassifier"
	"github.com/sdforge/sdforge/internal/loracatalog"
	"github.com/sdforge/sdforge/internal/queue"
)

// OrchestrationStep names one stage of the guided-generation recipe, so
// callers can tell which stages ran and which were skipped or downgraded.
type OrchestrationStep string

const (
	StepAnalyze  OrchestrationStep = "analyze_content"
	StepSuggest  OrchestrationStep = "suggest_loras"
	StepOptimize OrchestrationStep = "optimize_weights"
	StepValidate OrchestrationStep = "validate_combination"
	StepEnqueue  OrchestrationStep = "enqueue_generation"
)

// OrchestrationResult reports the full guided-generation recipe's outcome:
// which steps completed, any LoRAs dropped to resolve conflicts, and the
// resulting job id.
type OrchestrationResult struct {
	CompletedSteps []OrchestrationStep            `json:"completed_steps"`
	Safety         contentclassifier.Safety       `json:"safety"`
	Suggested      []loracatalog.SuggestResult    `json:"suggested_loras"`
	Applied        []loracatalog.OptimizedWeight  `json:"applied_loras"`
	Dropped        []string                       `json:"dropped_loras,omitempty"`
	JobID          string                         `json:"job_id"`
}

// OrchestrateImageGeneration runs the full guided recipe: analyze the
// prompt for safety, suggest and weight-optimize LoRAs, drop any that
// violate the combination rules, then enqueue the generation. It is the
// single entry point a host calls instead of driving each tool by hand.
func (s *Surface) OrchestrateImageGeneration(
	ctx context.Context,
	userID, prompt, negativePrompt string,
	maxLoRAs int,
	stylePref loracatalog.StylePreference,
	priority int,
) OrchestrationResult {
	var result OrchestrationResult

	analysis, err := s.classifier.Analyze(ctx, prompt, negativePrompt)
	if err == nil {
		result.Safety = analysis.Safety
		result.CompletedSteps = append(result.CompletedSteps, StepAnalyze)
	}

	suggestions, err := s.catalog.SuggestForPrompt(ctx, prompt, maxLoRAs)
	if err != nil {
		return result
	}
	result.Suggested = suggestions
	result.CompletedSteps = append(result.CompletedSteps, StepSuggest)

	selected := make([]loracatalog.Selection, 0, len(suggestions))
	for _, sg := range suggestions {
		selected = append(selected, loracatalog.Selection{Name: sg.Name, Weight: sg.RecommendedWeight})
	}

	optimized, err := s.catalog.OptimizeWeights(ctx, selected, stylePref)
	if err == nil {
		result.CompletedSteps = append(result.CompletedSteps, StepOptimize)
		for i, w := range optimized {
			selected[i].Weight = w.Weight
		}
	}

	conflicts, err := s.catalog.ValidateCombination(ctx, selected)
	if err == nil {
		result.CompletedSteps = append(result.CompletedSteps, StepValidate)
		selected, result.Dropped = dropConflicting(selected, conflicts)
	}
	result.Applied = toWeights(selected)

	jobID := s.queue.Enqueue(queue.Request{
		Prompt: embedLoRATags(prompt, selected), NegativePrompt: negativePrompt, UserID: userID,
	}, priority)
	result.JobID = jobID
	result.CompletedSteps = append(result.CompletedSteps, StepEnqueue)

	return result
}

func dropConflicting(selected []loracatalog.Selection, conflicts []loracatalog.Conflict) ([]loracatalog.Selection, []string) {
	drop := make(map[string]bool)
	for _, c := range conflicts {
		if len(c.Involved) > 1 {
			drop[c.Involved[len(c.Involved)-1]] = true
		}
	}
	if len(drop) == 0 {
		return selected, nil
	}
	kept := make([]loracatalog.Selection, 0, len(selected))
	var dropped []string
	for _, sel := range selected {
		if drop[sel.Name] {
			dropped = append(dropped, sel.Name)
			continue
		}
		kept = append(kept, sel)
	}
	return kept, dropped
}

// embedLoRATags renders each selection as a `<lora:Name:Weight>` tag and
// prepends them to prompt, the form the SD engine expects for applying a
// LoRA at a given strength. A prompt with no selections is returned as-is.
func embedLoRATags(prompt string, selected []loracatalog.Selection) string {
	if len(selected) == 0 {
		return prompt
	}
	var b strings.Builder
	for _, sel := range selected {
		b.WriteString("<lora:")
		b.WriteString(sel.Name)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(sel.Weight, 'f', -1, 64))
		b.WriteString("> ")
	}
	b.WriteString(prompt)
	return b.String()
}

func toWeights(selected []loracatalog.Selection) []loracatalog.OptimizedWeight {
	out := make([]loracatalog.OptimizedWeight, len(selected))
	for i, sel := range selected {
		out[i] = loracatalog.OptimizedWeight{Name: sel.Name, Weight: sel.Weight}
	}
	return out
}
