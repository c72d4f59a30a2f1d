// Package geom implements the canvas coordinate transform: world↔screen
// conversion, zoom anchored at a screen point, panning and fit-to-node.
package geom

import (
	"math"

	"github.com/starford/vellum/internal/models"
)

// Default scale bounds.
const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 4.0
)

// Limits bounds the transform scale. Offsets are unbounded.
type Limits struct {
	Min float64
	Max float64
}

// DefaultLimits returns the [0.1, 4.0] scale range.
func DefaultLimits() Limits {
	return Limits{Min: DefaultMinScale, Max: DefaultMaxScale}
}

// Clamp restricts s to [l.Min, l.Max].
func (l Limits) Clamp(s float64) float64 {
	if math.IsNaN(s) {
		return l.Min
	}
	return math.Max(l.Min, math.Min(l.Max, s))
}

// Transform maps world coordinates to screen coordinates:
// screen = world*Scale + Offset.
type Transform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Identity is the unscaled, unpanned transform.
func Identity() Transform {
	return Transform{Scale: 1}
}

// ToScreen converts a world point to screen space.
func (t Transform) ToScreen(p models.Point) models.Point {
	return models.Point{X: p.X*t.Scale + t.OffsetX, Y: p.Y*t.Scale + t.OffsetY}
}

// ToWorld converts a screen point to world space.
func (t Transform) ToWorld(p models.Point) models.Point {
	return models.Point{X: (p.X - t.OffsetX) / t.Scale, Y: (p.Y - t.OffsetY) / t.Scale}
}

// RectToScreen converts a world rectangle to screen space.
func (t Transform) RectToScreen(r models.Rect) models.Rect {
	o := t.ToScreen(models.Point{X: r.X, Y: r.Y})
	return models.Rect{X: o.X, Y: o.Y, Width: r.Width * t.Scale, Height: r.Height * t.Scale}
}

// ZoomAt multiplies the scale by factor, clamped to l, keeping the world
// point under the screen point p fixed.
func (t Transform) ZoomAt(p models.Point, factor float64, l Limits) Transform {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return t
	}
	return t.zoomTo(p, l.Clamp(t.Scale*factor))
}

// SetScale sets an absolute scale anchored at the screen point p.
func (t Transform) SetScale(p models.Point, scale float64, l Limits) Transform {
	return t.zoomTo(p, l.Clamp(scale))
}

func (t Transform) zoomTo(p models.Point, next float64) Transform {
	ratio := next / t.Scale
	return Transform{
		Scale:   next,
		OffsetX: p.X - (p.X-t.OffsetX)*ratio,
		OffsetY: p.Y - (p.Y-t.OffsetY)*ratio,
	}
}

// PanBy shifts the offset by a screen-space delta.
func (t Transform) PanBy(dx, dy float64) Transform {
	t.OffsetX += dx
	t.OffsetY += dy
	return t
}

// Normalize repairs a zero or out-of-range scale.
func (t Transform) Normalize(l Limits) Transform {
	if t.Scale == 0 {
		t.Scale = 1
	}
	t.Scale = l.Clamp(t.Scale)
	return t
}
