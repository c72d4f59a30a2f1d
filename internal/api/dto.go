package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/bridge"
	"github.com/starford/vellum/internal/catalog"
	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/interaction"
	"github.com/starford/vellum/internal/models"
)

// CreateNoteRequest is the request body for creating a sticky note.
type CreateNoteRequest struct {
	Title   string        `json:"title" example:"Ideas"`
	Content string        `json:"content" example:"Try a darker hero"`
	Color   string        `json:"color,omitempty" example:"yellow"`
	At      *models.Point `json:"at,omitempty"`
}

// Validate validates the request.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Length(0, 200)),
	)
}

// PatchNodeRequest is a partial node update; absent fields are left alone.
type PatchNodeRequest = board.Patch

// ViewportSizeRequest reports the host's canvas size in pixels.
type ViewportSizeRequest struct {
	Width  float64 `json:"width" example:"1280"`
	Height float64 `json:"height" example:"800"`
}

// Validate validates the request.
func (r *ViewportSizeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Width, validation.Required, validation.Min(1.0)),
		validation.Field(&r.Height, validation.Required, validation.Min(1.0)),
	)
}

// TransformRequest replaces the viewport transform.
type TransformRequest struct {
	Scale   float64 `json:"scale" example:"1"`
	OffsetX float64 `json:"offsetX" example:"0"`
	OffsetY float64 `json:"offsetY" example:"0"`
}

// Validate validates the request.
func (r *TransformRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Scale, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

// ZoomRequest zooms by a factor around a screen point.
type ZoomRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Factor float64 `json:"factor" example:"1.1"`
}

// Validate validates the request.
func (r *ZoomRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Factor, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

// WheelRequest is a DOM wheel event.
type WheelRequest = geom.WheelEvent

// KeyRequest is a DOM keydown event plus whether the pointer is over the canvas.
type KeyRequest struct {
	geom.KeyEvent
	OverCanvas bool `json:"overCanvas"`
}

// PointerRequest is a DOM pointer event in canvas-relative screen pixels.
type PointerRequest = interaction.PointerEvent

// ToolRequest switches the pointer tool.
type ToolRequest struct {
	Tool interaction.Tool `json:"tool" example:"hand"`
}

// Validate validates the request.
func (r *ToolRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Tool, validation.Required, validation.In(interaction.ToolSelect, interaction.ToolHand)),
	)
}

// ToolResponse reports the active tool.
type ToolResponse struct {
	Tool interaction.Tool `json:"tool"`
}

// SelectRequest selects a node; an empty id deselects.
type SelectRequest struct {
	NodeID string `json:"nodeId" example:"3f2a..."`
}

// TabRequest activates a preview tab; an empty id returns to the canvas.
type TabRequest struct {
	TabID string `json:"tabId"`
}

// UpdateElementRequest edits one element inside a mounted document.
type UpdateElementRequest = bridge.UpdateElement

// ApplyRequest commits edits made inside a document. LiveMarkup is the
// frame's current serialized document; when empty the server mirror is used.
type ApplyRequest struct {
	LiveMarkup string `json:"liveMarkup,omitempty"`
}

// PromptRequest starts a generation.
type PromptRequest struct {
	Prompt string `json:"prompt" example:"A landing page for a coffee shop"`
}

// Validate validates the request.
func (r *PromptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Prompt, validation.Required, validation.Length(1, 8000)),
	)
}

// InstructionRequest regenerates a node or element.
type InstructionRequest struct {
	Instruction string `json:"instruction" example:"Make the button larger"`
}

// Validate validates the request.
func (r *InstructionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Instruction, validation.Required, validation.Length(1, 8000)),
	)
}

// GeneratingResponse lists nodes with a stream in flight.
type GeneratingResponse struct {
	Generating bool     `json:"generating"`
	Nodes      []string `json:"nodes" validate:"required"`
}

// CopyImageResponse reports how a node was copied.
type CopyImageResponse struct {
	Fallback bool `json:"fallback"`
	// PNG is base64 encoded when rasterization succeeded.
	PNG []byte `json:"png,omitempty"`
}

// NodeListResponse wraps paginated catalog listings.
type NodeListResponse struct {
	Nodes []catalog.NodeRow `json:"nodes" validate:"required"`
	Total int               `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []catalog.SearchResult `json:"results" validate:"required"`
}

// AssetUploadResponse is returned after an image upload.
type AssetUploadResponse struct {
	Node models.Node `json:"node"`
	Size int64       `json:"size" example:"12345"`
	URL  string      `json:"url" example:"/assets/0f3c9a1b2d4e5f60.png"`
}

// AssetRefsResponse lists nodes referencing an asset.
type AssetRefsResponse struct {
	Asset string   `json:"asset"`
	Nodes []string `json:"nodes" validate:"required"`
}

// ViewportResponse is the current view state.
type ViewportResponse struct {
	Transform geom.Transform   `json:"transform"`
	Size      models.Size      `json:"size"`
	Tool      interaction.Tool `json:"tool"`
}
