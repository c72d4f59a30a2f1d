package board

import (
	"testing"

	"github.com/starford/vellum/internal/models"
)

var floor = models.Size{Width: 320, Height: 200}

func TestResizeWestExample(t *testing.T) {
	orig := models.Rect{X: 100, Y: 100, Width: 400, Height: 300}
	got := Resize(orig, HandleW, 20, 0, floor)
	if got.X != 120 || got.Width != 380 || got.Y != 100 || got.Height != 300 {
		t.Errorf("west resize = %+v, want x=120 w=380", got)
	}
}

func TestResizeAnchors(t *testing.T) {
	orig := models.Rect{X: 10, Y: 20, Width: 500, Height: 400}
	for _, dx := range []float64{-300, -50, 0, 35, 900} {
		for _, dy := range []float64{-250, 0, 80} {
			e := Resize(orig, HandleE, dx, dy, floor)
			if e.X != orig.X {
				t.Errorf("east resize moved x: %+v", e)
			}
			w := Resize(orig, HandleW, dx, dy, floor)
			if w.X-orig.X != -(w.Width - orig.Width) {
				t.Errorf("west resize: dx=%v x shift %v, width delta %v", dx, w.X-orig.X, w.Width-orig.Width)
			}
			if w.X+w.Width != orig.X+orig.Width {
				t.Errorf("west resize moved right edge: %+v", w)
			}
			s := Resize(orig, HandleS, dx, dy, floor)
			if s.Y != orig.Y {
				t.Errorf("south resize moved y: %+v", s)
			}
			n := Resize(orig, HandleN, dx, dy, floor)
			if n.Y+n.Height != orig.Y+orig.Height {
				t.Errorf("north resize moved bottom edge: %+v", n)
			}
		}
	}
}

func TestResizeFloor(t *testing.T) {
	orig := models.Rect{X: 0, Y: 0, Width: 400, Height: 300}
	for _, h := range Handles {
		for _, d := range []float64{-5000, -400, 400, 5000} {
			r := Resize(orig, h, d, d, floor)
			if r.Width < floor.Width || r.Height < floor.Height {
				t.Errorf("handle %s delta %v produced %+v", h, d, r)
			}
		}
	}
}

func TestResizeCornerChangesBothAxes(t *testing.T) {
	orig := models.Rect{X: 0, Y: 0, Width: 400, Height: 300}
	r := Resize(orig, HandleNW, -10, -20, floor)
	if r.X != -10 || r.Y != -20 || r.Width != 410 || r.Height != 320 {
		t.Errorf("nw resize = %+v", r)
	}
}

func TestFloorsForType(t *testing.T) {
	f := DefaultFloors()
	if f.For(models.NodeNote).Width != 160 {
		t.Errorf("note floor = %+v", f.For(models.NodeNote))
	}
	if f.For(models.NodeComponent) != floor {
		t.Errorf("component floor = %+v", f.For(models.NodeComponent))
	}
}

func TestNextSlot(t *testing.T) {
	if p := NextSlot(nil, 80); p != (models.Point{}) {
		t.Errorf("empty board slot = %+v", p)
	}
	nodes := []models.Node{
		{X: 0, Y: 50, Width: 400},
		{X: 500, Y: -20, Width: 300},
	}
	if p := NextSlot(nodes, 80); p.X != 880 || p.Y != -20 {
		t.Errorf("slot = %+v, want (880,-20)", p)
	}
}
