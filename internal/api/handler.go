package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/canvas"
	"github.com/starford/vellum/internal/catalog"
	"github.com/starford/vellum/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *canvas.Service
	db  catalog.NodeCatalog
}

// NewHandler creates a new Handler.
func NewHandler(svc *canvas.Service, db catalog.NodeCatalog) *Handler {
	return &Handler{svc: svc, db: db}
}

func nodeID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

// Snapshot handles GET /api/snapshot.
//
//	@Summary		Current board, selection, tabs and viewport
//	@Tags			canvas
//	@Produce		json
//	@Success		200	{object}	board.Snapshot
//	@Security		BearerAuth
//	@Router			/snapshot [get]
func (h *Handler) Snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// ListNodes handles GET /api/nodes.
//
//	@Summary		List the nodes on the board in z-order
//	@Tags			nodes
//	@Produce		json
//	@Success		200	{array}	models.Node
//	@Security		BearerAuth
//	@Router			/nodes [get]
func (h *Handler) ListNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := h.svc.Snapshot().Nodes
	if nodes == nil {
		nodes = []models.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

// GetNode handles GET /api/nodes/{id}.
//
//	@Summary		Get a node
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	models.Node
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	n, ok := h.svc.Snapshot().Node(nodeID(r))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a sticky note
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.CreateNote(req.Title, req.Content, req.Color, req.At)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// PatchNode handles PATCH /api/nodes/{id}.
//
//	@Summary		Update node fields (title, geometry, html, content, color)
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Node id"
//	@Param			body	body		PatchNodeRequest	true	"Fields to change"
//	@Success		200		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [patch]
func (h *Handler) PatchNode(w http.ResponseWriter, r *http.Request) {
	var req PatchNodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.PatchNode(nodeID(r), req)
	if err != nil {
		writeError(w, "patch node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNode handles DELETE /api/nodes/{id}.
//
//	@Summary		Delete a node
//	@Tags			nodes
//	@Param			id	path	string	true	"Node id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if !h.svc.DeleteNode(nodeID(r)) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Select handles PUT /api/selection.
//
//	@Summary		Select a node; an empty id deselects
//	@Tags			nodes
//	@Accept			json
//	@Param			body	body	SelectRequest	true	"Node to select"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/selection [put]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NodeID != "" {
		if _, ok := h.svc.Snapshot().Node(req.NodeID); !ok {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
	}
	h.svc.SelectNode(req.NodeID)
	w.WriteHeader(http.StatusNoContent)
}

// ClearElement handles DELETE /api/selection/element.
func (h *Handler) ClearElement(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearElement()
	w.WriteHeader(http.StatusNoContent)
}

// FocusNode handles POST /api/nodes/{id}/focus.
//
//	@Summary		Fit the viewport to a node
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	geom.Transform
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/focus [post]
func (h *Handler) FocusNode(w http.ResponseWriter, r *http.Request) {
	if !h.svc.FocusNode(nodeID(r)) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Transform())
}

// OpenTab handles POST /api/nodes/{id}/tab.
func (h *Handler) OpenTab(w http.ResponseWriter, r *http.Request) {
	tab, err := h.svc.OpenTab(nodeID(r))
	if err != nil {
		writeError(w, "open tab", err)
		return
	}
	writeJSON(w, http.StatusOK, tab)
}

// CloseTab handles DELETE /api/nodes/{id}/tab.
func (h *Handler) CloseTab(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseTab(nodeID(r)); err != nil {
		writeError(w, "close tab", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateTab handles PUT /api/tabs/active.
func (h *Handler) ActivateTab(w http.ResponseWriter, r *http.Request) {
	var req TabRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ActivateTab(req.TabID); err != nil {
		writeError(w, "activate tab", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireNode(h *Handler, id string) error {
	if _, ok := h.svc.Snapshot().Node(id); !ok {
		return fmt.Errorf("api: node %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
