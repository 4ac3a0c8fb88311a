package sdgateway

import "github.com/sdforge/sdforge/internal/config"

// BuildCensorRequest assembles a CensorRequest from the static NSFW
// configuration and an image to censor. ExpandHorizontal/ExpandVertical are
// uniform across classes in this engine's extension, so the scalar config
// values are broadcast across all 18 label slots.
func BuildCensorRequest(image []byte, cfg config.NSFWConfig) CensorRequest {
	req := CensorRequest{
		Image:                image,
		Thresholds:           cfg.Thresholds,
		FilterType:           cfg.FilterType,
		BlurRadius:           cfg.BlurRadius,
		BlurStrengthCurve:    cfg.BlurStrengthCurve,
		PixelationFactor:     cfg.PixelationFactor,
		FillColor:            cfg.FillColor,
		MaskShape:            cfg.MaskShape,
		MaskBlendRadius:      cfg.MaskBlendRadius,
		RectangleRoundRadius: cfg.RectangleRoundRadius,
		NMSThreshold:         cfg.NMSThreshold,
	}
	for i := range req.ExpandHorizontal {
		req.ExpandHorizontal[i] = cfg.ExpandHorizontal
		req.ExpandVertical[i] = cfg.ExpandVertical
	}
	return req
}
