// Package sdgateway presents a narrow, typed facade over the external
// Stable Diffusion HTTP engine (model/sampler/LoRA listing, txt2img
// invocation, progress polling, and the NSFW-censor extension). It performs
// no retries — retry policy belongs to the caller (internal/queue) — and
// every operation returns a structured *apperr.Error on failure instead of
// a bare error, so upstream components never branch on transport details.
package sdgateway

// ModelFormat identifies the base-model family a checkpoint belongs to.
// Detection drives the parameter constraints ValidateAndAdjustParams applies.
type ModelFormat string

const (
	FormatSD15    ModelFormat = "sd15"
	FormatSDXL    ModelFormat = "sdxl"
	FormatSD3     ModelFormat = "sd3"
	FormatFlux    ModelFormat = "flux"
	FormatUnknown ModelFormat = "unknown"
)

// ModelConstraints captures recommended generation parameters for a model
// format, mirroring the engine's own documented defaults per family.
type ModelConstraints struct {
	RecommendedSteps  int
	Width, Height     int
	RecommendedCFG    float64
	MaxCFG            float64 // 0 means unconstrained
}

// SDModel describes a checkpoint as reported by /sdapi/v1/sd-models.
type SDModel struct {
	Title    string `json:"title"`
	ModelName string `json:"model_name"`
	Hash     string `json:"hash,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Sampler describes a sampler as reported by /sdapi/v1/samplers.
type Sampler struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// LoRAListing is the raw per-LoRA metadata returned by /sdapi/v1/loras,
// including training tag frequency when the engine's extension exposes it.
// LoRACatalog consumes this to derive category/trigger-words/content-type.
type LoRAListing struct {
	Name     string         `json:"name"`
	Alias    string         `json:"alias,omitempty"`
	Path     string         `json:"path"`
	Metadata LoRAListingMeta `json:"metadata,omitempty"`
}

// LoRAListingMeta carries the engine's training bucket metadata, when present.
type LoRAListingMeta struct {
	// TagFrequency maps tag -> count, already summed across training buckets
	// by the engine's extension. May be empty.
	TagFrequency map[string]int `json:"ss_tag_frequency,omitempty"`
}

// GenerationParams is the txt2img request payload. LoRA references must
// already be embedded into Prompt in the engine's `<lora:NAME:WEIGHT>` form
// by the caller (LoRACatalog / ToolSurface), not by this package.
type GenerationParams struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Width          int
	Height         int
	SamplerName    string
	CFGScale       float64
	Seed           int64
}

// GenerationResult is the outcome of a successful txt2img call.
type GenerationResult struct {
	Images     [][]byte // decoded PNG/JPEG bytes, one per requested image
	Parameters map[string]any
	Info       string
}

// ProgressInfo is the outcome of a progress poll.
type ProgressInfo struct {
	Progress     float64 // [0,1]
	ETARelative  float64 // seconds
	CurrentImage []byte  // nil if the engine doesn't return a live preview
}

// CensorRequest carries the per-class thresholds and filter configuration
// the NSFW-masking extension expects.
type CensorRequest struct {
	Image                []byte
	Thresholds           [18]float64 // indexed by LabelOrder
	ExpandHorizontal     [18]float64
	ExpandVertical       [18]float64
	FilterType           string // "Variable blur" | "Pixelation" | "Solid fill"
	BlurRadius           int
	BlurStrengthCurve    float64
	PixelationFactor     float64
	FillColor            string
	MaskShape            string // "Ellipse" | "Rectangle"
	MaskBlendRadius      int
	RectangleRoundRadius int
	NMSThreshold         float64
}

// CensorResult is the outcome of a censor pass.
type CensorResult struct {
	CensoredImage []byte // nil if nothing needed censoring
	DetectionMask []byte // nil if the extension didn't return a mask
	HasNSFW       bool   // the extension's has_detections flag
	Unavailable   bool   // true when the extension is not installed (HTTP 404)
}

// LabelOrder documents the fixed NudeNet detection-label index order that
// Thresholds/ExpandHorizontal/ExpandVertical arrays must follow.
var LabelOrder = [18]string{
	"Female_genitalia_covered", "Face_female", "Buttocks_exposed",
	"Female_breast_exposed", "Female_genitalia_exposed", "Male_breast_exposed",
	"Anus_exposed", "Feet_exposed", "Belly_covered", "Feet_covered",
	"Armpits_covered", "Armpits_exposed", "Face_male", "Belly_exposed",
	"Male_genitalia_exposed", "Anus_covered", "Female_breast_covered",
	"Buttocks_covered",
}
