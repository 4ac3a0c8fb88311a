package loracatalog

import (
	"context"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/repo"
)

// OptimizedWeight pairs a LoRA name with its adjusted weight.
type OptimizedWeight struct {
	Name   string
	Weight float64
}

func factorFor(pref StylePreference) float64 {
	switch pref {
	case StyleSubtle:
		return optimizeFactorSubtle
	case StyleStrong:
		return optimizeFactorStrong
	default:
		return optimizeFactorBalanced
	}
}

// OptimizeWeights applies the style-preference multiplicative factor to
// each selected LoRA's weight, clamped to that LoRA's [MinWeight,
// MaxWeight] bounds.
func (c *Catalog) OptimizeWeights(ctx context.Context, selected []Selection, pref StylePreference) ([]OptimizedWeight, error) {
	factor := factorFor(pref)
	out := make([]OptimizedWeight, 0, len(selected))

	for _, s := range selected {
		row, err := repo.GetLoRA(ctx, c.db, s.Name)
		if err != nil {
			return nil, apperr.NotFound(component, "lora "+s.Name+" not found in catalog")
		}
		entry := toEntry(*row)

		adjusted := s.Weight * factor
		if adjusted < entry.MinWeight {
			adjusted = entry.MinWeight
		}
		if adjusted > entry.MaxWeight {
			adjusted = entry.MaxWeight
		}
		out = append(out, OptimizedWeight{Name: s.Name, Weight: adjusted})
	}
	return out, nil
}
