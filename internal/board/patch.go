package board

import "github.com/starford/vellum/internal/models"

// Patch lists the fields to overwrite on a node. Nil fields are left as is.
type Patch struct {
	Title    *string  `json:"title,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	HTML     *string  `json:"html,omitempty"`
	ImageURL *string  `json:"imageUrl,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Color    *string  `json:"color,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Geometry builds a patch that moves and sizes a node to r.
func Geometry(r models.Rect) Patch {
	return Patch{X: &r.X, Y: &r.Y, Width: &r.Width, Height: &r.Height}
}

// HTML builds a patch that replaces a component's markup.
func HTML(html string) Patch {
	return Patch{HTML: &html}
}

// Title builds a patch that renames a node.
func Title(title string) Patch {
	return Patch{Title: &title}
}

func (p Patch) apply(n *models.Node) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
	if p.Width != nil {
		n.Width = *p.Width
	}
	if p.Height != nil {
		n.Height = *p.Height
	}
	if p.HTML != nil {
		n.HTML = *p.HTML
	}
	if p.ImageURL != nil {
		n.ImageURL = *p.ImageURL
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
}
