package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
)

// Thumbnail handles GET /api/nodes/{id}/thumbnail.
//
//	@Summary		Render a PNG thumbnail of a node
//	@Tags			export
//	@Produce		png
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/thumbnail [get]
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	png, err := h.svc.Thumbnail(r.Context(), nodeID(r))
	if err != nil {
		writeError(w, "thumbnail", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// CopyImage handles POST /api/nodes/{id}/copy-image. The PNG is returned for
// the host page to place on the browser clipboard; when rasterization fails
// the HTML was copied to the host clipboard instead.
func (h *Handler) CopyImage(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CopyImage(r.Context(), nodeID(r))
	if err != nil {
		writeError(w, "copy image", err)
		return
	}
	writeJSON(w, http.StatusOK, CopyImageResponse{Fallback: res.Fallback, PNG: res.PNG})
}

// CopyCode handles POST /api/nodes/{id}/copy-code.
func (h *Handler) CopyCode(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CopyCode(nodeID(r))
	if err != nil {
		writeError(w, "copy code", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExportZip handles GET /api/nodes/{id}/export.
//
//	@Summary		Download a node as a zip bundle
//	@Tags			export
//	@Produce		application/zip
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/export [get]
func (h *Handler) ExportZip(w http.ResponseWriter, r *http.Request) {
	// Buffered so a failed export can still answer with a JSON error.
	var buf bytes.Buffer
	name, err := h.svc.ExportZip(&buf, nodeID(r))
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
