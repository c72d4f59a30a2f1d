package canvas

import (
	"fmt"
	"log/slog"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/interaction"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/sse"
)

type focusPayload struct {
	models.FocusTrigger
	Transform geom.Transform `json:"transform"`
}

// WheelResult reports how a wheel event was handled. PreventDefault is
// always set for events over the canvas so the browser never zooms the page.
type WheelResult struct {
	Action         geom.WheelAction `json:"action"`
	Transform      geom.Transform   `json:"transform"`
	PreventDefault bool             `json:"preventDefault"`
}

// KeyResult reports whether a key was consumed as a zoom shortcut.
type KeyResult struct {
	Handled   bool           `json:"handled"`
	Transform geom.Transform `json:"transform"`
}

func geomFit(n models.Node, vp models.Size, cfg Config) geom.Transform {
	return geom.FitNode(n.Rect(), vp, cfg.Fit)
}

// Transform returns the current world→screen transform.
func (s *Service) Transform() geom.Transform {
	return *s.transform.Load()
}

// SetTransform replaces the transform, clamping its scale.
func (s *Service) SetTransform(t geom.Transform) {
	s.setTransform(t)
}

func (s *Service) setTransform(t geom.Transform) geom.Transform {
	t = t.Normalize(s.cfg.Limits)
	s.transform.Store(&t)
	s.events.Publish(sse.Event{Type: sse.EventViewport, Data: t})
	s.markDirty()
	return t
}

// Viewport returns the host viewport size in screen pixels.
func (s *Service) Viewport() models.Size {
	return *s.viewport.Load()
}

// SetViewport records the host viewport size.
func (s *Service) SetViewport(size models.Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("canvas: viewport %vx%v: %w", size.Width, size.Height, apperr.ErrInvalidInput)
	}
	s.viewport.Store(&size)
	return nil
}

// Wheel applies a wheel or trackpad event.
func (s *Service) Wheel(e geom.WheelEvent) WheelResult {
	next, action, prevent := geom.Wheel(s.Transform(), e, s.cfg.Wheel)
	return WheelResult{Action: action, Transform: s.setTransform(next), PreventDefault: prevent}
}

// Key applies a zoom shortcut when the pointer is over the canvas.
func (s *Service) Key(e geom.KeyEvent, overCanvas bool) KeyResult {
	next, ok := geom.KeyZoom(s.Transform(), e, overCanvas, s.Viewport(), s.cfg.Wheel)
	if !ok {
		return KeyResult{Transform: next}
	}
	return KeyResult{Handled: true, Transform: s.setTransform(next)}
}

// ZoomAt zooms by factor around a screen point.
func (s *Service) ZoomAt(p models.Point, factor float64) geom.Transform {
	if factor <= 0 {
		return s.Transform()
	}
	return s.setTransform(s.Transform().ZoomAt(p, factor, s.cfg.Limits))
}

// PointerDown forwards a pointer press to the interaction machine.
func (s *Service) PointerDown(e interaction.PointerEvent) interaction.Outcome {
	return s.machine.Down(e)
}

// PointerMove forwards pointer motion to the interaction machine.
func (s *Service) PointerMove(e interaction.PointerEvent) interaction.Outcome {
	return s.machine.Move(e)
}

// PointerUp ends the active gesture.
func (s *Service) PointerUp(e interaction.PointerEvent) interaction.Outcome {
	return s.machine.Up(e)
}

// SetTool switches between the select and hand tools.
func (s *Service) SetTool(t interaction.Tool) interaction.Tool {
	s.machine.SetTool(t)
	return s.machine.Tool()
}

// CommitNode is called when a drag or resize ends.
func (s *Service) CommitNode(n models.Node) {
	s.log.Debug("canvas: gesture committed", slog.String("node", n.ID),
		slog.Float64("x", n.X), slog.Float64("y", n.Y),
		slog.Float64("width", n.Width), slog.Float64("height", n.Height))
	s.requestSave()
}
