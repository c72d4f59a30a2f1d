package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/bridge"
)

const maxBridgeBytes = 1 << 20

// Display handles GET /api/nodes/{id}/display.
//
//	@Summary		What a node shows right now (live, cached or nothing)
//	@Tags			render
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	render.Display
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/display [get]
func (h *Handler) Display(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Display(nodeID(r))
	if err != nil {
		writeError(w, "display", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Frame handles GET /api/nodes/{id}/frame. The response is the node's
// document with the bridge script injected, served under a sandbox CSP.
// The render key, source and progress flag travel in headers.
//
//	@Summary		Mount a node's embedded document
//	@Tags			render
//	@Produce		html
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/frame [get]
func (h *Handler) Frame(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Frame(nodeID(r))
	if err != nil {
		writeError(w, "frame", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", bridge.CSPHeader())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Render-Key", f.Key)
	w.Header().Set("X-Render-Source", string(f.Source))
	w.Header().Set("X-Render-Progress", strconv.FormatBool(f.Progress))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, f.HTML)
}

// UnmountFrame handles DELETE /api/frames/{key}.
func (h *Handler) UnmountFrame(w http.ResponseWriter, r *http.Request) {
	h.svc.UnmountFrame(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

// Bridge handles POST /api/bridge: a message an embedded document posted to
// the host page, relayed verbatim. Malformed or stale messages are dropped
// and still answered with 202.
//
//	@Summary		Relay a bridge message from an embedded document
//	@Tags			render
//	@Accept			json
//	@Success		202
//	@Security		BearerAuth
//	@Router			/bridge [post]
func (h *Handler) Bridge(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBridgeBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("message too large"))
		return
	}
	h.svc.HandleBridge(raw)
	w.WriteHeader(http.StatusAccepted)
}

// UpdateElement handles POST /api/nodes/{id}/elements.
//
//	@Summary		Edit an element's text or styles inside a mounted document
//	@Tags			render
//	@Accept			json
//	@Param			id		path	string					true	"Node id"
//	@Param			body	body	UpdateElementRequest	true	"Element edit"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/elements [post]
func (h *Handler) UpdateElement(w http.ResponseWriter, r *http.Request) {
	var req UpdateElementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	id := nodeID(r)
	if err := requireNode(h, id); err != nil {
		writeError(w, "update element", err)
		return
	}
	if err := h.svc.UpdateElement(id, req); err != nil {
		writeError(w, "update element", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyEdits handles POST /api/nodes/{id}/apply.
//
//	@Summary		Commit in-document edits as the node's HTML
//	@Tags			render
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Node id"
//	@Param			body	body		ApplyRequest	false	"Live markup"
//	@Success		200		{object}	models.Node
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/apply [post]
func (h *Handler) ApplyEdits(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.ApplyEdits(nodeID(r), req.LiveMarkup)
	if err != nil {
		writeError(w, "apply edits", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
