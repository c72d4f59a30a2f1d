package geom

import (
	"math"

	"github.com/starford/vellum/internal/models"
)

// DefaultFitMaxScale caps fit-to-node so small nodes are not over-magnified.
const DefaultFitMaxScale = 0.85

// FitConfig tunes FitNode.
type FitConfig struct {
	// Padding is subtracted from each viewport dimension before fitting.
	Padding  float64
	MaxScale float64
	Limits   Limits
}

// FitNode returns the transform that shows the whole rect centered in a
// viewport of the given size.
func FitNode(r models.Rect, viewport models.Size, cfg FitConfig) Transform {
	if cfg.MaxScale <= 0 {
		cfg.MaxScale = DefaultFitMaxScale
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}

	scale := cfg.MaxScale
	if r.Width > 0 {
		scale = math.Min(scale, (viewport.Width-cfg.Padding)/r.Width)
	}
	if r.Height > 0 {
		scale = math.Min(scale, (viewport.Height-cfg.Padding)/r.Height)
	}
	scale = math.Max(scale, cfg.Limits.Min)

	c := r.Center()
	return Transform{
		Scale:   scale,
		OffsetX: viewport.Width/2 - c.X*scale,
		OffsetY: viewport.Height/2 - c.Y*scale,
	}
}
