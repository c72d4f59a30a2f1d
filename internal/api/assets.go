package api

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/canvas"
	"github.com/starford/vellum/internal/catalog"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// AssetHandler accepts image uploads and serves stored assets.
type AssetHandler struct {
	svc *canvas.Service
	db  catalog.NodeCatalog
	ws  *storage.Workspace
}

// NewAssetHandler creates a handler over the workspace asset store.
func NewAssetHandler(svc *canvas.Service, db catalog.NodeCatalog, ws *storage.Workspace) *AssetHandler {
	return &AssetHandler{svc: svc, db: db, ws: ws}
}

// assetPath maps a URL name onto the workspace-relative asset path.
func assetPath(name string) (string, bool) {
	rel := path.Join(storage.AssetsDir, name)
	if strings.Contains(name, "/") || !storage.IsAsset(rel) {
		return "", false
	}
	return rel, true
}

// ServeFile handles GET /assets/{name}. It is mounted outside the API auth
// group because embedded documents load images with plain <img> requests.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rel, ok := assetPath(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "invalid asset name", http.StatusBadRequest)
		return
	}
	data, ctype, err := h.ws.ReadAsset(rel)
	if errors.Is(err, apperr.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// Asset names are content hashes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Upload handles POST /api/assets (multipart/form-data, field "file"). The
// image is stored and placed on the board as an image node. Optional form
// fields: title, x, y.
//
//	@Summary		Upload an image and create an image node
//	@Tags			assets
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Param			title	formData	string	false	"Node title"
//	@Success		201		{object}	AssetUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(header.Filename, path.Ext(header.Filename))
	}
	var at *models.Point
	if xs, ys := r.FormValue("x"), r.FormValue("y"); xs != "" && ys != "" {
		x, errX := strconv.ParseFloat(xs, 64)
		y, errY := strconv.ParseFloat(ys, 64)
		if errX != nil || errY != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("x and y must be numbers"))
			return
		}
		at = &models.Point{X: x, Y: y}
	}

	n, err := h.svc.CreateImage(title, data, at)
	if err != nil {
		writeError(w, "upload asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, AssetUploadResponse{Node: n, Size: int64(len(data)), URL: n.ImageURL})
}

// References handles GET /api/assets/{name}/refs: the indexed nodes that
// use an asset.
func (h *AssetHandler) References(w http.ResponseWriter, r *http.Request) {
	rel, ok := assetPath(chi.URLParam(r, "name"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid asset name"))
		return
	}
	ids, err := h.db.References(rel)
	if err != nil {
		writeError(w, "asset references", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, AssetRefsResponse{Asset: storage.AssetURL(rel), Nodes: ids})
}
