package geom

import (
	"math"
	"strings"

	"github.com/starford/vellum/internal/models"
)

// Gesture tuning defaults.
const (
	DefaultPinchSensitivity = 0.01
	DefaultWheelSensitivity = 0.002
	// DefaultPinchThreshold separates trackpad pinch deltas (small, continuous)
	// from mouse-wheel clicks (large, discrete).
	DefaultPinchThreshold = 50.0
	DefaultKeyZoomStep    = 1.2
)

// WheelConfig tunes wheel and pinch handling.
type WheelConfig struct {
	PinchSensitivity float64
	WheelSensitivity float64
	PinchThreshold   float64
	KeyZoomStep      float64
	Limits           Limits
}

// DefaultWheelConfig returns the stock gesture tuning.
func DefaultWheelConfig() WheelConfig {
	return WheelConfig{
		PinchSensitivity: DefaultPinchSensitivity,
		WheelSensitivity: DefaultWheelSensitivity,
		PinchThreshold:   DefaultPinchThreshold,
		KeyZoomStep:      DefaultKeyZoomStep,
		Limits:           DefaultLimits(),
	}
}

// WheelEvent is a wheel or trackpad event reported by the host page.
// Browsers report trackpad pinch as a wheel event with CtrlKey set.
type WheelEvent struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	DeltaX  float64 `json:"deltaX"`
	DeltaY  float64 `json:"deltaY"`
	CtrlKey bool    `json:"ctrlKey"`
	MetaKey bool    `json:"metaKey"`
}

// WheelKind classifies a wheel event.
type WheelKind string

const (
	WheelPan   WheelKind = "pan"
	WheelPinch WheelKind = "pinch"
	WheelZoom  WheelKind = "zoom"
)

// WheelAction is the outcome of classifying a wheel event.
type WheelAction struct {
	Kind   WheelKind `json:"kind"`
	Factor float64   `json:"factor,omitempty"`
	DX     float64   `json:"dx,omitempty"`
	DY     float64   `json:"dy,omitempty"`
}

// ClassifyWheel decides whether e pans or zooms and by how much.
func ClassifyWheel(e WheelEvent, cfg WheelConfig) WheelAction {
	if !e.CtrlKey && !e.MetaKey {
		return WheelAction{Kind: WheelPan, DX: -e.DeltaX, DY: -e.DeltaY}
	}
	if math.Abs(e.DeltaY) < cfg.PinchThreshold {
		return WheelAction{Kind: WheelPinch, Factor: math.Exp(-e.DeltaY * cfg.PinchSensitivity)}
	}
	return WheelAction{Kind: WheelZoom, Factor: math.Exp(-e.DeltaY * cfg.WheelSensitivity)}
}

// Wheel applies e to t. The returned bool is always true: every wheel event
// over the canvas is consumed so the platform never applies its own zoom.
func Wheel(t Transform, e WheelEvent, cfg WheelConfig) (Transform, WheelAction, bool) {
	a := ClassifyWheel(e, cfg)
	if a.Kind == WheelPan {
		return t.PanBy(a.DX, a.DY), a, true
	}
	return t.ZoomAt(models.Point{X: e.X, Y: e.Y}, a.Factor, cfg.Limits), a, true
}

// KeyEvent is a keyboard shortcut candidate.
type KeyEvent struct {
	Key     string `json:"key"`
	CtrlKey bool   `json:"ctrlKey"`
	MetaKey bool   `json:"metaKey"`
}

// KeyZoom applies a zoom shortcut anchored at the viewport center. It only
// handles keys while the pointer is over the canvas, so browser-wide
// shortcuts keep working elsewhere.
func KeyZoom(t Transform, e KeyEvent, overCanvas bool, viewport models.Size, cfg WheelConfig) (Transform, bool) {
	if !overCanvas || (!e.CtrlKey && !e.MetaKey) {
		return t, false
	}
	center := models.Point{X: viewport.Width / 2, Y: viewport.Height / 2}
	step := cfg.KeyZoomStep
	if step <= 1 {
		step = DefaultKeyZoomStep
	}
	switch strings.ToLower(e.Key) {
	case "=", "+":
		return t.ZoomAt(center, step, cfg.Limits), true
	case "-", "_":
		return t.ZoomAt(center, 1/step, cfg.Limits), true
	case "0":
		return t.SetScale(center, 1, cfg.Limits), true
	}
	return t, false
}
