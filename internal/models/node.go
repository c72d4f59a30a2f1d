// Package models defines the domain types for Vellum.
package models

import "time"

// NodeType is the closed set of node variants placed on the canvas.
type NodeType string

const (
	NodeComponent NodeType = "component"
	NodeImage     NodeType = "image"
	NodeNote      NodeType = "note"
)

// Valid reports whether t is one of the known node variants.
func (t NodeType) Valid() bool {
	switch t {
	case NodeComponent, NodeImage, NodeNote:
		return true
	}
	return false
}

// Node is a placed item on the canvas. Geometry is in world units.
// HTML is set for components, ImageURL for images, Content and Color for notes.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Title    string   `json:"title"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	HTML     string   `json:"html,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Content  string   `json:"content,omitempty"`
	Color    string   `json:"color,omitempty"`

	// Revision increases on every mutation of the node.
	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Rect returns the node's world-space bounds.
func (n Node) Rect() Rect {
	return Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

// Point is a 2D coordinate, in world or screen space depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle with a top-left origin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// SelectedElement describes a DOM element picked inside a component's rendered document.
type SelectedElement struct {
	NodeID    string `json:"nodeId"`
	ElementID string `json:"elementId"`
	TagName   string `json:"tagName"`
	Text      string `json:"text"`
	ClassName string `json:"className"`
	OuterHTML string `json:"outerHtml"`
	Rect      Rect   `json:"rect"`
}

// PreviewTab is an open full-size preview of a node.
type PreviewTab struct {
	ID     string `json:"id"`
	NodeID string `json:"nodeId"`
	Title  string `json:"title"`
}

// FocusTrigger asks the viewport to fit a node. At is bumped on every request
// so that focusing the same node twice is still observed as a new trigger.
type FocusTrigger struct {
	NodeID string    `json:"nodeId"`
	At     time.Time `json:"at"`
}
