package sdgateway

import "strings"

// DetectModelFormat infers a checkpoint's base-model family from its
// filename/title, following the naming conventions the engine community
// uses (no authoritative metadata field covers this across all loaders).
func DetectModelFormat(name string) ModelFormat {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "flux"):
		return FormatFlux
	case strings.Contains(lower, "sd3") || strings.Contains(lower, "sd_3") || strings.Contains(lower, "stable-diffusion-3"):
		return FormatSD3
	case strings.Contains(lower, "xl") || strings.Contains(lower, "sdxl"):
		return FormatSDXL
	case strings.Contains(lower, "sd15") || strings.Contains(lower, "sd1.5") || strings.Contains(lower, "v1-5"):
		return FormatSD15
	default:
		return FormatUnknown
	}
}

var constraintsByFormat = map[ModelFormat]ModelConstraints{
	FormatSD15:    {RecommendedSteps: 20, Width: 512, Height: 512, RecommendedCFG: 7.0, MaxCFG: 20},
	FormatSDXL:    {RecommendedSteps: 30, Width: 1024, Height: 1024, RecommendedCFG: 6.0, MaxCFG: 15},
	FormatSD3:     {RecommendedSteps: 28, Width: 1024, Height: 1024, RecommendedCFG: 4.5, MaxCFG: 10},
	FormatFlux:    {RecommendedSteps: 20, Width: 1024, Height: 1024, RecommendedCFG: 1.0, MaxCFG: 5},
	FormatUnknown: {RecommendedSteps: 20, Width: 512, Height: 512, RecommendedCFG: 7.0, MaxCFG: 0},
}

// ConstraintsFor returns the recommended parameter envelope for a format.
func ConstraintsFor(f ModelFormat) ModelConstraints {
	if c, ok := constraintsByFormat[f]; ok {
		return c
	}
	return constraintsByFormat[FormatUnknown]
}

// ValidateAndAdjustParams fills in zero-valued fields with the format's
// recommended defaults and clamps CFGScale to the format's ceiling when one
// is defined. It never lowers an explicitly chosen value unless it exceeds
// MaxCFG, and never changes Prompt/NegativePrompt/SamplerName/Seed.
func ValidateAndAdjustParams(p GenerationParams, format ModelFormat) GenerationParams {
	c := ConstraintsFor(format)
	adjusted := p

	if adjusted.Steps <= 0 {
		adjusted.Steps = c.RecommendedSteps
	}
	if adjusted.Width <= 0 {
		adjusted.Width = c.Width
	}
	if adjusted.Height <= 0 {
		adjusted.Height = c.Height
	}
	if adjusted.CFGScale <= 0 {
		adjusted.CFGScale = c.RecommendedCFG
	} else if c.MaxCFG > 0 && adjusted.CFGScale > c.MaxCFG {
		adjusted.CFGScale = c.MaxCFG
	}
	return adjusted
}
