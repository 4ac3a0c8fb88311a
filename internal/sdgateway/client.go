package sdgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
)

const component = "sdgateway"

// Client is a narrow, typed facade over the external SD HTTP engine. It
// performs no retries; the caller owns retry policy.
type Client struct {
	baseURL      string
	authUser     string
	authPassword string

	listTimeout   time.Duration
	genTimeout    time.Duration
	censorTimeout time.Duration
	httpc         *http.Client
}

// New builds a Client from the SD engine configuration.
func New(cfg config.SDConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		authUser:     cfg.BasicAuthUser,
		authPassword: cfg.BasicAuthPass,
		listTimeout:  cfg.ListTimeout,
		genTimeout:   cfg.GenerateTimeout,
		censorTimeout: cfg.CensorTimeout,
		httpc:        &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Internal(component, "encode request", err)
		}
		reader = bytes.NewReader(b)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperr.Internal(component, "build request", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authUser != "" {
		req.SetBasicAuth(c.authUser, c.authPassword)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, apperr.Timeout(component, fmt.Sprintf("%s %s timed out", method, path))
		}
		return nil, apperr.Transport(component, fmt.Sprintf("%s %s failed", method, path), err)
	}
	return resp, nil
}

func drainAndClose(resp *http.Response) []byte {
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return b
}

func statusError(path string, resp *http.Response, body []byte) *apperr.Error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.Configuration(component, fmt.Sprintf("%s: authentication rejected (%d)", path, resp.StatusCode))
	case resp.StatusCode >= 500:
		return apperr.Upstream(component, fmt.Sprintf("%s: upstream error %d: %s", path, resp.StatusCode, string(body)))
	default:
		return apperr.Transport(component, fmt.Sprintf("%s: unexpected status %d: %s", path, resp.StatusCode, string(body)), nil)
	}
}

// ListModels returns the checkpoints known to the engine.
func (c *Client) ListModels(ctx context.Context) ([]SDModel, error) {
	resp, err := c.do(ctx, c.listTimeout, http.MethodGet, "/sdapi/v1/sd-models", nil)
	if err != nil {
		return nil, err
	}
	body := drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("/sdapi/v1/sd-models", resp, body)
	}
	var out []SDModel
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Internal(component, "decode sd-models response", err)
	}
	return out, nil
}

// ListSamplers returns the samplers known to the engine.
func (c *Client) ListSamplers(ctx context.Context) ([]Sampler, error) {
	resp, err := c.do(ctx, c.listTimeout, http.MethodGet, "/sdapi/v1/samplers", nil)
	if err != nil {
		return nil, err
	}
	body := drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("/sdapi/v1/samplers", resp, body)
	}
	var out []Sampler
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Internal(component, "decode samplers response", err)
	}
	return out, nil
}

// ListLoRAs returns the raw per-LoRA metadata the engine reports, including
// training tag frequency when the engine's extension exposes it.
func (c *Client) ListLoRAs(ctx context.Context) ([]LoRAListing, error) {
	resp, err := c.do(ctx, c.listTimeout, http.MethodGet, "/sdapi/v1/loras", nil)
	if err != nil {
		return nil, err
	}
	body := drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("/sdapi/v1/loras", resp, body)
	}
	var out []LoRAListing
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Internal(component, "decode loras response", err)
	}
	return out, nil
}

type optionsResponse struct {
	SDModelCheckpoint string `json:"sd_model_checkpoint"`
}

// CurrentModel returns the checkpoint name the engine currently has loaded,
// as reported by its options endpoint.
func (c *Client) CurrentModel(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, c.listTimeout, http.MethodGet, "/sdapi/v1/options", nil)
	if err != nil {
		return "", err
	}
	body := drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return "", statusError("/sdapi/v1/options", resp, body)
	}
	var decoded optionsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", apperr.Internal(component, "decode options response", err)
	}
	return decoded.SDModelCheckpoint, nil
}

type txt2imgRequest struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Steps             int     `json:"steps,omitempty"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	SamplerName       string  `json:"sampler_name,omitempty"`
	CFGScale          float64 `json:"cfg_scale,omitempty"`
	Seed              int64   `json:"seed,omitempty"`
}

type txt2imgResponse struct {
	Images     []string       `json:"images"`
	Parameters map[string]any `json:"parameters"`
	Info       string         `json:"info"`
}

// Txt2Img invokes image generation. Prompt must already contain any LoRA
// references in the engine's `<lora:NAME:WEIGHT>` form. Before submitting,
// it detects the currently loaded checkpoint's format and fills in any
// zero-valued step/resolution/CFG parameters with that format's defaults,
// clamping CFG to the format's ceiling.
func (c *Client) Txt2Img(ctx context.Context, p GenerationParams) (GenerationResult, error) {
	format := FormatUnknown
	if model, err := c.CurrentModel(ctx); err == nil && model != "" {
		format = DetectModelFormat(model)
	}
	p = ValidateAndAdjustParams(p, format)

	req := txt2imgRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Steps:          p.Steps,
		Width:          p.Width,
		Height:         p.Height,
		SamplerName:    p.SamplerName,
		CFGScale:       p.CFGScale,
		Seed:           p.Seed,
	}
	resp, err := c.do(ctx, c.genTimeout, http.MethodPost, "/sdapi/v1/txt2img", req)
	if err != nil {
		return GenerationResult{}, err
	}
	body := drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return GenerationResult{}, statusError("/sdapi/v1/txt2img", resp, body)
	}

	var decoded txt2imgResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return GenerationResult{}, apperr.Internal(component, "decode txt2img response", err)
	}

	images := make([][]byte, 0, len(decoded.Images))
	for _, s := range decoded.Images {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return GenerationResult{}, apperr.Internal(component, "decode image payload", err)
		}
		images = append(images, raw)
	}
	return GenerationResult{Images: images, Parameters: decoded.Parameters, Info: decoded.Info}, nil
}

type progressResponse struct {
	Progress    float64 `json:"progress"`
	ETARelative float64 `json:"eta_relative"`
	CurrentImage string `json:"current_image"`
}

// PollProgress reports the current generation progress.
func (c *Client) PollProgress(ctx context.Context) (ProgressInfo, error) {
	resp, err := c.do(ctx, c.listTimeout, http.MethodGet, "/sdapi/v1/progress", nil)
	if err != nil {
		return ProgressInfo{}, err
	}
	body := drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return ProgressInfo{}, statusError("/sdapi/v1/progress", resp, body)
	}
	var decoded progressResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ProgressInfo{}, apperr.Internal(component, "decode progress response", err)
	}
	info := ProgressInfo{Progress: decoded.Progress, ETARelative: decoded.ETARelative}
	if decoded.CurrentImage != "" {
		if raw, err := base64.StdEncoding.DecodeString(decoded.CurrentImage); err == nil {
			info.CurrentImage = raw
		}
	}
	return info, nil
}

// Interrupt requests the engine stop the in-flight generation.
func (c *Client) Interrupt(ctx context.Context) error {
	resp, err := c.do(ctx, c.listTimeout, http.MethodPost, "/sdapi/v1/interrupt", struct{}{})
	if err != nil {
		return err
	}
	body := drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return statusError("/sdapi/v1/interrupt", resp, body)
	}
	return nil
}

type censorRequestWire struct {
	Image                string     `json:"image"`
	Thresholds           [18]float64 `json:"thresholds"`
	ExpandHorizontal     [18]float64 `json:"expand_horizontal"`
	ExpandVertical       [18]float64 `json:"expand_vertical"`
	FilterType           string     `json:"filter_type"`
	BlurRadius           int        `json:"blur_radius"`
	BlurStrengthCurve    float64    `json:"blur_strength_curve"`
	PixelationFactor     float64    `json:"pixelation_factor"`
	FillColor            string     `json:"fill_color"`
	MaskShape            string     `json:"mask_shape"`
	MaskBlendRadius      int        `json:"mask_blend_radius"`
	RectangleRoundRadius int        `json:"rectangle_round_radius"`
	NMSThreshold         float64    `json:"nms_threshold"`
}

type censorResponseWire struct {
	Image         string `json:"image"`
	Mask          string `json:"mask,omitempty"`
	HasDetections bool   `json:"has_detections"`
}

// Censor drives the external NSFW-masking extension. A 404 response means
// the extension is not installed; this is surfaced as CensorResult.Unavailable
// rather than an error, since callers should degrade gracefully.
func (c *Client) Censor(ctx context.Context, req CensorRequest) (CensorResult, error) {
	wire := censorRequestWire{
		Image:                base64.StdEncoding.EncodeToString(req.Image),
		Thresholds:           req.Thresholds,
		ExpandHorizontal:     req.ExpandHorizontal,
		ExpandVertical:       req.ExpandVertical,
		FilterType:           req.FilterType,
		BlurRadius:           req.BlurRadius,
		BlurStrengthCurve:    req.BlurStrengthCurve,
		PixelationFactor:     req.PixelationFactor,
		FillColor:            req.FillColor,
		MaskShape:            req.MaskShape,
		MaskBlendRadius:      req.MaskBlendRadius,
		RectangleRoundRadius: req.RectangleRoundRadius,
		NMSThreshold:         req.NMSThreshold,
	}

	resp, err := c.do(ctx, c.censorTimeout, http.MethodPost, "/sdapi/v1/censor", wire)
	if err != nil {
		return CensorResult{}, err
	}
	body := drainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return CensorResult{Unavailable: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return CensorResult{}, statusError("/sdapi/v1/censor", resp, body)
	}

	var decoded censorResponseWire
	if err := json.Unmarshal(body, &decoded); err != nil {
		return CensorResult{}, apperr.Internal(component, "decode censor response", err)
	}

	result := CensorResult{HasNSFW: decoded.HasDetections}
	if decoded.Image != "" {
		if raw, err := base64.StdEncoding.DecodeString(decoded.Image); err == nil {
			result.CensoredImage = raw
		}
	}
	if decoded.Mask != "" {
		if raw, err := base64.StdEncoding.DecodeString(decoded.Mask); err == nil {
			result.DetectionMask = raw
		}
	}
	return result, nil
}
