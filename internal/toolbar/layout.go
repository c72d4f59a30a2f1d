// Package toolbar positions the floating controls drawn over a node: resize
// handles, the header drag strip, the title editor and the action toolbar.
// Everything is computed in screen space from world geometry and the
// current transform, so controls keep a constant on-screen size at any zoom.
package toolbar

import (
	"math"

	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/models"
)

// Screen-space sizes in CSS pixels.
const (
	HandleSize     = 12.0
	HeaderHeight   = 28.0
	ToolbarHeight  = 40.0
	ToolbarGap     = 12.0
	TitleMaxWidth  = 320.0
	handleHitSlack = 4.0
)

// Placement says on which side of the node the action toolbar sits.
type Placement string

const (
	Above Placement = "above"
	Below Placement = "below"
)

// HandleBox is a resize handle and its screen rectangle.
type HandleBox struct {
	Handle board.Handle `json:"handle"`
	Rect   models.Rect  `json:"rect"`
}

// Layout is the screen-space geometry of a node's overlay.
type Layout struct {
	NodeID      string       `json:"nodeId"`
	Frame       models.Rect  `json:"frame"`
	Header      models.Rect  `json:"header"`
	TitleEditor models.Rect  `json:"titleEditor"`
	Handles     []HandleBox  `json:"handles"`
	Toolbar     models.Point `json:"toolbar"`
	Placement   Placement    `json:"placement"`
	Visible     bool         `json:"visible"`
}

// Compute lays out the overlay for n under t in a viewport of the given size.
func Compute(n models.Node, t geom.Transform, viewport models.Size) Layout {
	f := t.RectToScreen(n.Rect())
	l := Layout{
		NodeID: n.ID,
		Frame:  f,
		Header: models.Rect{X: f.X, Y: f.Y - HeaderHeight, Width: f.Width, Height: HeaderHeight},
	}
	l.TitleEditor = models.Rect{X: f.X, Y: l.Header.Y, Width: math.Min(f.Width, TitleMaxWidth), Height: HeaderHeight}

	for _, h := range board.Handles {
		c := handleCenter(f, h)
		l.Handles = append(l.Handles, HandleBox{
			Handle: h,
			Rect:   models.Rect{X: c.X - HandleSize/2, Y: c.Y - HandleSize/2, Width: HandleSize, Height: HandleSize},
		})
	}

	// The toolbar sits above the header; it flips below the node when it
	// would be clipped by the top of the viewport.
	l.Placement = Above
	l.Toolbar = models.Point{X: f.X + f.Width/2, Y: l.Header.Y - ToolbarGap - ToolbarHeight}
	if l.Toolbar.Y < 0 {
		l.Placement = Below
		l.Toolbar.Y = f.Y + f.Height + ToolbarGap
	}

	l.Visible = f.X+f.Width >= 0 && f.Y+f.Height >= 0 && f.X <= viewport.Width && f.Y <= viewport.Height
	return l
}

func handleCenter(f models.Rect, h board.Handle) models.Point {
	x, y := f.X+f.Width/2, f.Y+f.Height/2
	switch h {
	case board.HandleN, board.HandleNE, board.HandleNW:
		y = f.Y
	case board.HandleS, board.HandleSE, board.HandleSW:
		y = f.Y + f.Height
	}
	switch h {
	case board.HandleE, board.HandleNE, board.HandleSE:
		x = f.X + f.Width
	case board.HandleW, board.HandleNW, board.HandleSW:
		x = f.X
	}
	return models.Point{X: x, Y: y}
}

// HitHandle returns the resize handle under p. Corners win over edges.
func (l Layout) HitHandle(p models.Point) (board.Handle, bool) {
	var edge board.Handle
	for _, hb := range l.Handles {
		r := hb.Rect
		r.X -= handleHitSlack
		r.Y -= handleHitSlack
		r.Width += 2 * handleHitSlack
		r.Height += 2 * handleHitSlack
		if !r.Contains(p) {
			continue
		}
		if len(hb.Handle) == 2 {
			return hb.Handle, true
		}
		if edge == "" {
			edge = hb.Handle
		}
	}
	return edge, edge != ""
}

// InHeader reports whether p is on the drag strip.
func (l Layout) InHeader(p models.Point) bool {
	return l.Header.Contains(p)
}

// InFrame reports whether p is over the node body.
func (l Layout) InFrame(p models.Point) bool {
	return l.Frame.Contains(p)
}
