package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/vellum/internal/catalog"
)

// Catalog handles GET /api/catalog.
//
//	@Summary		List indexed nodes with optional pagination and filtering
//	@Tags			catalog
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			type	query		string	false	"Filter by node type"	Enums(component, image, note)
//	@Param			sort	query		string	false	"Sort field"			Enums(updated, title)
//	@Success		200		{object}	NodeListResponse
//	@Security		BearerAuth
//	@Router			/catalog [get]
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.db.List(limit, offset, q.Get("type"), q.Get("sort"))
	if err != nil {
		slog.Error("list catalog failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rows == nil {
		rows = []catalog.NodeRow{}
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: rows, Total: total})
}

// Search handles GET /api/search?q=...
//
//	@Summary		Full-text search over node titles, text and keywords
//	@Tags			catalog
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.db.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []catalog.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
