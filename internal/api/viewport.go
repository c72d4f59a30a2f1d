package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/interaction"
	"github.com/starford/vellum/internal/models"
)

// GetViewport handles GET /api/viewport.
//
//	@Summary		Current transform, viewport size and tool
//	@Tags			viewport
//	@Produce		json
//	@Success		200	{object}	ViewportResponse
//	@Security		BearerAuth
//	@Router			/viewport [get]
func (h *Handler) GetViewport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ViewportResponse{
		Transform: h.svc.Transform(),
		Size:      h.svc.Viewport(),
		Tool:      h.svc.Machine().Tool(),
	})
}

// SetTransform handles PUT /api/viewport/transform. The scale is clamped.
func (h *Handler) SetTransform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.SetTransform(geom.Transform{Scale: req.Scale, OffsetX: req.OffsetX, OffsetY: req.OffsetY})
	writeJSON(w, http.StatusOK, h.svc.Transform())
}

// SetViewportSize handles PUT /api/viewport/size.
//
//	@Summary		Report the host canvas size
//	@Tags			viewport
//	@Accept			json
//	@Param			body	body	ViewportSizeRequest	true	"Size in pixels"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/viewport/size [put]
func (h *Handler) SetViewportSize(w http.ResponseWriter, r *http.Request) {
	var req ViewportSizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetViewport(models.Size{Width: req.Width, Height: req.Height}); err != nil {
		writeError(w, "set viewport", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Zoom handles POST /api/viewport/zoom.
func (h *Handler) Zoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ZoomAt(models.Point{X: req.X, Y: req.Y}, req.Factor))
}

// Wheel handles POST /api/input/wheel.
//
//	@Summary		Apply a wheel event (pan, pinch zoom or ctrl-wheel zoom)
//	@Tags			input
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WheelRequest	true	"Wheel event"
//	@Success		200		{object}	canvas.WheelResult
//	@Security		BearerAuth
//	@Router			/input/wheel [post]
func (h *Handler) Wheel(w http.ResponseWriter, r *http.Request) {
	var req WheelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Wheel(req))
}

// Key handles POST /api/input/key.
func (h *Handler) Key(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Key(req.KeyEvent, req.OverCanvas))
}

// Pointer handles POST /api/input/pointer/{phase} where phase is down, move or up.
//
//	@Summary		Feed a pointer event to the gesture machine
//	@Tags			input
//	@Accept			json
//	@Produce		json
//	@Param			phase	path		string			true	"Pointer phase"	Enums(down, move, up)
//	@Param			body	body		PointerRequest	true	"Pointer event"
//	@Success		200		{object}	interaction.Outcome
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/input/pointer/{phase} [post]
func (h *Handler) Pointer(w http.ResponseWriter, r *http.Request) {
	var step func(interaction.PointerEvent) interaction.Outcome
	switch chi.URLParam(r, "phase") {
	case "down":
		step = h.svc.PointerDown
	case "move":
		step = h.svc.PointerMove
	case "up":
		step = h.svc.PointerUp
	default:
		writeJSON(w, http.StatusNotFound, errorBody("unknown pointer phase"))
		return
	}
	var req PointerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, step(req))
}

// SetTool handles PUT /api/tool.
func (h *Handler) SetTool(w http.ResponseWriter, r *http.Request) {
	var req ToolRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, ToolResponse{Tool: h.svc.SetTool(req.Tool)})
}
