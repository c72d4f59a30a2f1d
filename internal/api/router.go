package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/canvas"
	"github.com/starford/vellum/internal/catalog"
	"github.com/starford/vellum/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *canvas.Service, db catalog.NodeCatalog, ws *storage.Workspace, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, db)
	ah := NewAssetHandler(svc, db, ws)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/snapshot", h.Snapshot)

	// Nodes.
	r.Get("/nodes", h.ListNodes)
	r.Get("/nodes/{id}", h.GetNode)
	r.Patch("/nodes/{id}", h.PatchNode)
	r.Delete("/nodes/{id}", h.DeleteNode)
	r.Post("/notes", h.CreateNote)
	r.Put("/selection", h.Select)
	r.Delete("/selection/element", h.ClearElement)
	r.Post("/nodes/{id}/focus", h.FocusNode)

	// Preview tabs.
	r.Post("/nodes/{id}/tab", h.OpenTab)
	r.Delete("/nodes/{id}/tab", h.CloseTab)
	r.Put("/tabs/active", h.ActivateTab)

	// Viewport and input.
	r.Get("/viewport", h.GetViewport)
	r.Put("/viewport/transform", h.SetTransform)
	r.Put("/viewport/size", h.SetViewportSize)
	r.Post("/viewport/zoom", h.Zoom)
	r.Post("/input/wheel", h.Wheel)
	r.Post("/input/key", h.Key)
	r.Post("/input/pointer/{phase}", h.Pointer)
	r.Put("/tool", h.SetTool)

	// Rendering and the embedded document bridge.
	r.Get("/nodes/{id}/display", h.Display)
	r.Get("/nodes/{id}/frame", h.Frame)
	r.Delete("/frames/{key}", h.UnmountFrame)
	r.Post("/bridge", h.Bridge)
	r.Post("/nodes/{id}/elements", h.UpdateElement)
	r.Post("/nodes/{id}/apply", h.ApplyEdits)

	// Generation.
	r.Post("/generate", h.Generate)
	r.Get("/generating", h.Generating)
	r.Post("/nodes/{id}/variant-request", h.StartVariant)
	r.Post("/nodes/{id}/variants", h.CreateVariant)
	r.Post("/nodes/{id}/regenerate", h.Regenerate)
	r.Delete("/nodes/{id}/generation", h.CancelGeneration)
	r.Post("/element/edit", h.EditElement)

	// Export.
	r.Get("/nodes/{id}/thumbnail", h.Thumbnail)
	r.Post("/nodes/{id}/copy-image", h.CopyImage)
	r.Post("/nodes/{id}/copy-code", h.CopyCode)
	r.Get("/nodes/{id}/export", h.ExportZip)

	// Catalog.
	r.Get("/catalog", h.Catalog)
	r.Get("/search", h.Search)

	// Assets upload (auth-protected).
	r.Post("/assets", ah.Upload)
	r.Get("/assets/{name}/refs", ah.References)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
