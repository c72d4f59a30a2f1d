package geom

import (
	"testing"

	"github.com/starford/vellum/internal/models"
)

func TestClassifyWheel(t *testing.T) {
	cfg := DefaultWheelConfig()

	a := ClassifyWheel(WheelEvent{DeltaX: 5, DeltaY: 40}, cfg)
	if a.Kind != WheelPan || a.DX != -5 || a.DY != -40 {
		t.Errorf("plain scroll = %+v, want pan", a)
	}

	pinch := ClassifyWheel(WheelEvent{DeltaY: -4, CtrlKey: true}, cfg)
	if pinch.Kind != WheelPinch || pinch.Factor <= 1 {
		t.Errorf("small ctrl delta = %+v, want pinch zoom-in", pinch)
	}

	wheel := ClassifyWheel(WheelEvent{DeltaY: 100, MetaKey: true}, cfg)
	if wheel.Kind != WheelZoom || wheel.Factor >= 1 {
		t.Errorf("large ctrl delta = %+v, want wheel zoom-out", wheel)
	}
}

func TestPinchStepFinerThanWheelClick(t *testing.T) {
	cfg := DefaultWheelConfig()
	p := ClassifyWheel(WheelEvent{DeltaY: -5, CtrlKey: true}, cfg)
	w := ClassifyWheel(WheelEvent{DeltaY: -100, CtrlKey: true}, cfg)
	if p.Factor <= 1 || w.Factor <= 1 {
		t.Fatalf("factors = %f, %f; want both > 1", p.Factor, w.Factor)
	}
	if p.Factor >= w.Factor {
		t.Errorf("pinch step %f should be finer than wheel click %f", p.Factor, w.Factor)
	}
}

func TestWheelAlwaysConsumed(t *testing.T) {
	tr := Identity()
	got, _, handled := Wheel(tr, WheelEvent{X: 10, Y: 10, DeltaY: 10}, DefaultWheelConfig())
	if !handled {
		t.Error("wheel over canvas must be consumed")
	}
	if got.OffsetY != -10 {
		t.Errorf("offsetY = %f, want -10", got.OffsetY)
	}
}

func TestKeyZoomOnlyOverCanvas(t *testing.T) {
	vp := models.Size{Width: 800, Height: 600}
	cfg := DefaultWheelConfig()
	tr := Identity()

	if _, handled := KeyZoom(tr, KeyEvent{Key: "=", CtrlKey: true}, false, vp, cfg); handled {
		t.Error("shortcut handled outside the canvas")
	}
	if _, handled := KeyZoom(tr, KeyEvent{Key: "="}, true, vp, cfg); handled {
		t.Error("shortcut without modifier should not be handled")
	}

	in, handled := KeyZoom(tr, KeyEvent{Key: "+", MetaKey: true}, true, vp, cfg)
	if !handled || !near(in.Scale, DefaultKeyZoomStep) {
		t.Errorf("zoom in = %+v handled=%v", in, handled)
	}
	out, _ := KeyZoom(in, KeyEvent{Key: "-", CtrlKey: true}, true, vp, cfg)
	if !near(out.Scale, 1) {
		t.Errorf("zoom out scale = %f, want 1", out.Scale)
	}
	reset, _ := KeyZoom(Transform{Scale: 3, OffsetX: 9}, KeyEvent{Key: "0", CtrlKey: true}, true, vp, cfg)
	if reset.Scale != 1 {
		t.Errorf("reset scale = %f", reset.Scale)
	}
}
