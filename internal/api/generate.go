package api

import (
	"net/http"
)

// Generate handles POST /api/generate. The node is returned as soon as it is
// placed; its HTML arrives through node.updated events.
//
//	@Summary		Generate a new component from a prompt
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PromptRequest	true	"Prompt"
//	@Success		202		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.Generate(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusAccepted, n)
}

// Generating handles GET /api/generating.
func (h *Handler) Generating(w http.ResponseWriter, _ *http.Request) {
	ids := h.svc.Generating()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, GeneratingResponse{Generating: len(ids) > 0, Nodes: ids})
}

// StartVariant handles POST /api/nodes/{id}/variant-request. It asks every
// host to open the variant prompt for the node.
func (h *Handler) StartVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.StartVariant(nodeID(r)); err != nil {
		writeError(w, "start variant", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CreateVariant handles POST /api/nodes/{id}/variants.
//
//	@Summary		Create a variant of a component beside it
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Source node id"
//	@Param			body	body		PromptRequest	true	"Variant prompt"
//	@Success		202		{object}	models.Node
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/variants [post]
func (h *Handler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.CreateVariant(r.Context(), nodeID(r), req.Prompt)
	if err != nil {
		writeError(w, "create variant", err)
		return
	}
	writeJSON(w, http.StatusAccepted, n)
}

// Regenerate handles POST /api/nodes/{id}/regenerate.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req InstructionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Regenerate(r.Context(), nodeID(r), req.Instruction); err != nil {
		writeError(w, "regenerate", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// EditElement handles POST /api/element/edit: regenerates the node owning
// the selected element with an instruction scoped to that element.
func (h *Handler) EditElement(w http.ResponseWriter, r *http.Request) {
	var req InstructionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.EditElement(r.Context(), req.Instruction); err != nil {
		writeError(w, "edit element", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CancelGeneration handles DELETE /api/nodes/{id}/generation.
func (h *Handler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelGeneration(nodeID(r)); err != nil {
		writeError(w, "cancel generation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
