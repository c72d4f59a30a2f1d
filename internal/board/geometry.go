package board

import (
	"math"

	"github.com/starford/vellum/internal/models"
)

// Handle identifies a resize handle by compass direction.
type Handle string

const (
	HandleN  Handle = "n"
	HandleS  Handle = "s"
	HandleE  Handle = "e"
	HandleW  Handle = "w"
	HandleNE Handle = "ne"
	HandleNW Handle = "nw"
	HandleSE Handle = "se"
	HandleSW Handle = "sw"
)

// Handles lists every resize handle in drawing order.
var Handles = []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

// Valid reports whether h names a known handle.
func (h Handle) Valid() bool {
	switch h {
	case HandleN, HandleS, HandleE, HandleW, HandleNE, HandleNW, HandleSE, HandleSW:
		return true
	}
	return false
}

func (h Handle) north() bool { return h == HandleN || h == HandleNE || h == HandleNW }
func (h Handle) south() bool { return h == HandleS || h == HandleSE || h == HandleSW }
func (h Handle) east() bool  { return h == HandleE || h == HandleNE || h == HandleSE }
func (h Handle) west() bool  { return h == HandleW || h == HandleNW || h == HandleSW }

// Floors are the minimum node sizes enforced while resizing.
type Floors struct {
	Component models.Size
	Image     models.Size
	Note      models.Size
}

// DefaultFloors returns 320×200 for components and images, 160×120 for notes.
func DefaultFloors() Floors {
	return Floors{
		Component: models.Size{Width: 320, Height: 200},
		Image:     models.Size{Width: 320, Height: 200},
		Note:      models.Size{Width: 160, Height: 120},
	}
}

// For returns the floor for a node type.
func (f Floors) For(t models.NodeType) models.Size {
	switch t {
	case models.NodeImage:
		return f.Image
	case models.NodeNote:
		return f.Note
	default:
		return f.Component
	}
}

// Resize applies a world-space delta dragged on handle h to orig. The edge
// opposite the handle stays fixed and the result never drops below min.
func Resize(orig models.Rect, h Handle, dx, dy float64, min models.Size) models.Rect {
	r := orig
	switch {
	case h.east():
		r.Width = math.Max(min.Width, orig.Width+dx)
	case h.west():
		r.Width = math.Max(min.Width, orig.Width-dx)
		r.X = orig.X + orig.Width - r.Width
	}
	switch {
	case h.south():
		r.Height = math.Max(min.Height, orig.Height+dy)
	case h.north():
		r.Height = math.Max(min.Height, orig.Height-dy)
		r.Y = orig.Y + orig.Height - r.Height
	}
	return r
}

// Move offsets orig by a world-space delta.
func Move(orig models.Rect, dx, dy float64) models.Rect {
	orig.X += dx
	orig.Y += dy
	return orig
}

// NextSlot returns the top-left for a new node placed to the right of every
// existing node, top-aligned with the topmost one.
func NextSlot(nodes []models.Node, gap float64) models.Point {
	if len(nodes) == 0 {
		return models.Point{}
	}
	right, top := math.Inf(-1), math.Inf(1)
	for _, n := range nodes {
		right = math.Max(right, n.X+n.Width)
		top = math.Min(top, n.Y)
	}
	return models.Point{X: right + gap, Y: top}
}

// Beside returns the top-left for a node placed right of src.
func Beside(src models.Node, gap float64) models.Point {
	return models.Point{X: src.X + src.Width + gap, Y: src.Y}
}
