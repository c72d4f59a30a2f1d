package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/canvas"
	"github.com/starford/vellum/internal/catalog"
	"github.com/starford/vellum/internal/export"
	"github.com/starford/vellum/internal/generation"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/storage"
	"github.com/starford/vellum/internal/testutil"
)

const page = `<html><head><title>Coffee</title></head><body><h1 id="hero">Fresh beans</h1><p>Roasted daily</p></body></html>`

type chunkStreamer struct{ chunks []string }

func (c chunkStreamer) Stream(_ context.Context, _ generation.Request, onChunk func(string) error) (generation.Result, error) {
	var sb strings.Builder
	for _, ch := range c.chunks {
		if err := onChunk(ch); err != nil {
			return generation.Result{}, err
		}
		sb.WriteString(ch)
	}
	return generation.Result{Text: sb.String()}, nil
}

type failRaster struct{}

func (failRaster) Rasterize(context.Context, models.Node, models.Size, float64) (image.Image, error) {
	return nil, errors.New("no browser")
}

type memClipboard struct{ text string }

func (m *memClipboard) WriteText(s string) error { m.text = s; return nil }

type env struct {
	svc    *canvas.Service
	db     *catalog.DB
	ws     *storage.Workspace
	clip   *memClipboard
	router http.Handler
}

// testEnv sets up a temp workspace, SQLite catalog, canvas service, and router.
// An empty token means auth is disabled.
func testEnv(t *testing.T, token string) *env {
	t.Helper()
	return testEnvWithSSE(t, token, nil)
}

func testEnvWithSSE(t *testing.T, token string, sseHandler http.Handler) *env {
	t.Helper()
	_, ws := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)
	clip := &memClipboard{}
	exp := export.New(export.DefaultConfig(), failRaster{}, clip, testutil.Logger())

	cfg := canvas.DefaultConfig()
	cfg.Viewport = models.Size{Width: 1200, Height: 800}
	svc := canvas.New(cfg, canvas.Deps{
		Workspace: ws,
		Streamer:  chunkStreamer{chunks: []string{"```html\n", page[:40], page[40:], "\n```"}},
		Exporter:  exp,
		Logger:    testutil.Logger(),
	})
	t.Cleanup(svc.Close)

	router := NewRouter(svc, db, ws, token != "", token, sseHandler)
	return &env{svc: svc, db: db, ws: ws, clip: clip, router: router}
}

func (e *env) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) component(t *testing.T) models.Node {
	t.Helper()
	n, err := e.svc.AddNode(models.Node{Type: models.NodeComponent, Width: 1440, Height: 900, HTML: page})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	return n
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetNote(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/notes", map[string]any{"title": " Ideas ", "content": "<b>bold</b><script>x()</script>"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.Node](t, w)
	if created.Type != models.NodeNote || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}
	if strings.Contains(created.Content, "script") {
		t.Errorf("content not sanitized: %q", created.Content)
	}

	w = e.do(t, http.MethodGet, "/nodes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode[models.Node](t, w); got.ID != created.ID {
		t.Errorf("got id %q, want %q", got.ID, created.ID)
	}

	w = e.do(t, http.MethodGet, "/nodes", nil)
	if nodes := decode[[]models.Node](t, w); len(nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(nodes))
	}
}

func TestGetNode_NotFound(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/nodes/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing node = %d, want 404", w.Code)
	}
}

func TestPatchNode(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)

	w := e.do(t, http.MethodPatch, "/nodes/"+n.ID, map[string]any{"title": "Landing", "x": 50.0})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[models.Node](t, w)
	if got.Title != "Landing" || got.X != 50 {
		t.Errorf("patched = %+v", got)
	}

	// Notes have no HTML.
	w = e.do(t, http.MethodPost, "/notes", map[string]any{"title": "n"})
	note := decode[models.Node](t, w)
	if w := e.do(t, http.MethodPatch, "/nodes/"+note.ID, map[string]any{"html": "<p>x</p>"}); w.Code != http.StatusBadRequest {
		t.Errorf("html on a note = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPatch, "/nodes/nope", map[string]any{"title": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("patch missing = %d, want 404", w.Code)
	}
}

func TestInvalidJSON(t *testing.T) {
	e := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json = %d, want 400", w.Code)
	}
}

func TestDeleteNode(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)
	e.svc.SelectNode(n.ID)

	if w := e.do(t, http.MethodDelete, "/nodes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if sel := e.svc.Snapshot().SelectedID; sel != "" {
		t.Errorf("selection = %q after delete", sel)
	}
	if w := e.do(t, http.MethodDelete, "/nodes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestSelectAndFocus(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)

	if w := e.do(t, http.MethodPut, "/selection", SelectRequest{NodeID: "nope"}); w.Code != http.StatusNotFound {
		t.Errorf("select missing = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/selection", SelectRequest{NodeID: n.ID}); w.Code != http.StatusNoContent {
		t.Fatalf("select = %d", w.Code)
	}
	if e.svc.Snapshot().SelectedID != n.ID {
		t.Error("node not selected")
	}
	if w := e.do(t, http.MethodPut, "/selection", SelectRequest{}); w.Code != http.StatusNoContent {
		t.Fatalf("deselect = %d", w.Code)
	}
	if e.svc.Snapshot().SelectedID != "" {
		t.Error("node still selected")
	}

	w := e.do(t, http.MethodPost, "/nodes/"+n.ID+"/focus", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("focus = %d", w.Code)
	}
	if tr := e.svc.Transform(); tr.Scale >= 1 || tr.Scale <= 0 {
		t.Errorf("fit scale = %v, want a zoom out for a 1440 wide node", tr.Scale)
	}
	if w := e.do(t, http.MethodPost, "/nodes/nope/focus", nil); w.Code != http.StatusNotFound {
		t.Errorf("focus missing = %d, want 404", w.Code)
	}
}

func TestTabs(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)

	w := e.do(t, http.MethodPost, "/nodes/"+n.ID+"/tab", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("open tab = %d", w.Code)
	}
	tab := decode[models.PreviewTab](t, w)
	if w := e.do(t, http.MethodPut, "/tabs/active", TabRequest{TabID: tab.ID}); w.Code != http.StatusNoContent {
		t.Errorf("activate = %d", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/tabs/active", TabRequest{TabID: "nope"}); w.Code != http.StatusNotFound {
		t.Errorf("activate missing = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/nodes/"+n.ID+"/tab", nil); w.Code != http.StatusNoContent {
		t.Errorf("close tab = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/nodes/"+n.ID+"/tab", nil); w.Code != http.StatusNotFound {
		t.Errorf("close again = %d, want 404", w.Code)
	}
}

func TestViewportEndpoints(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodPut, "/viewport/size", ViewportSizeRequest{Width: 0, Height: 600}); w.Code != http.StatusBadRequest {
		t.Errorf("zero width = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/viewport/size", ViewportSizeRequest{Width: 800, Height: 600}); w.Code != http.StatusNoContent {
		t.Fatalf("size = %d", w.Code)
	}

	w := e.do(t, http.MethodPut, "/viewport/transform", TransformRequest{Scale: 100, OffsetX: 5})
	if w.Code != http.StatusOK {
		t.Fatalf("transform = %d", w.Code)
	}

	w = e.do(t, http.MethodGet, "/viewport", nil)
	vp := decode[ViewportResponse](t, w)
	if vp.Size.Width != 800 || vp.Transform.OffsetX != 5 {
		t.Errorf("viewport = %+v", vp)
	}
	if vp.Transform.Scale >= 100 {
		t.Errorf("scale %v was not clamped", vp.Transform.Scale)
	}
	if vp.Tool != "select" {
		t.Errorf("tool = %q", vp.Tool)
	}
}

func TestWheelPreventsDefault(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodPost, "/input/wheel", map[string]any{"x": 10, "y": 10, "deltaY": 30})
	if w.Code != http.StatusOK {
		t.Fatalf("wheel = %d", w.Code)
	}
	res := decode[canvas.WheelResult](t, w)
	if !res.PreventDefault || res.Transform.OffsetY != -30 {
		t.Errorf("wheel result = %+v", res)
	}

	w = e.do(t, http.MethodPost, "/input/key", map[string]any{"key": "=", "ctrlKey": true, "overCanvas": true})
	if k := decode[canvas.KeyResult](t, w); !k.Handled {
		t.Errorf("zoom key not handled: %+v", k)
	}
}

func TestPointerAndTool(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodPost, "/input/pointer/sideways", map[string]any{}); w.Code != http.StatusNotFound {
		t.Errorf("unknown phase = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/tool", ToolRequest{Tool: "lasso"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad tool = %d, want 400", w.Code)
	}
	w := e.do(t, http.MethodPut, "/tool", ToolRequest{Tool: "hand"})
	if w.Code != http.StatusOK {
		t.Fatalf("tool = %d", w.Code)
	}

	before := e.svc.Transform()
	for _, step := range []struct {
		phase string
		x, y  float64
	}{{"down", 100, 100}, {"move", 140, 120}, {"up", 140, 120}} {
		if w := e.do(t, http.MethodPost, "/input/pointer/"+step.phase, PointerRequest{X: step.x, Y: step.y}); w.Code != http.StatusOK {
			t.Fatalf("%s = %d", step.phase, w.Code)
		}
	}
	after := e.svc.Transform()
	if after.OffsetX-before.OffsetX != 40 || after.OffsetY-before.OffsetY != 20 {
		t.Errorf("hand pan moved by (%v,%v), want (40,20)", after.OffsetX-before.OffsetX, after.OffsetY-before.OffsetY)
	}
}

func TestFrameServesSandboxedDocument(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)

	w := e.do(t, http.MethodGet, "/nodes/"+n.ID+"/frame", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("frame = %d, body = %s", w.Code, w.Body.String())
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.HasPrefix(csp, "sandbox ") || !strings.Contains(csp, "allow-scripts") {
		t.Errorf("csp = %q", csp)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if w.Header().Get("X-Render-Source") != "live" || w.Header().Get("X-Render-Key") == "" {
		t.Errorf("render headers = %v", w.Header())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Fresh beans") || !strings.Contains(body, "<script") {
		t.Errorf("frame body lacks document or bridge script: %s", body)
	}

	note := decode[models.Node](t, e.do(t, http.MethodPost, "/notes", map[string]any{"title": "n"}))
	if w := e.do(t, http.MethodGet, "/nodes/"+note.ID+"/frame", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("note frame = %d, want 422", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/nodes/nope/frame", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing frame = %d, want 404", w.Code)
	}

	w = e.do(t, http.MethodGet, "/nodes/"+n.ID+"/display", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("display = %d", w.Code)
	}
}

func TestBridgeDropsGarbage(t *testing.T) {
	e := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/bridge", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("garbage bridge message = %d, want 202", w.Code)
	}
	if e.svc.Snapshot().Element != nil {
		t.Error("garbage selected an element")
	}
}

func TestUpdateElementAndApply(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)
	if w := e.do(t, http.MethodGet, "/nodes/"+n.ID+"/frame", nil); w.Code != http.StatusOK {
		t.Fatalf("frame = %d", w.Code)
	}

	text := "Dark roast"
	if w := e.do(t, http.MethodPost, "/nodes/"+n.ID+"/elements", UpdateElementRequest{ID: "hero", Text: &text}); w.Code != http.StatusNoContent {
		t.Fatalf("update element = %d, body = %s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodPost, "/nodes/"+n.ID+"/elements", UpdateElementRequest{Text: &text}); w.Code != http.StatusBadRequest {
		t.Errorf("missing element id = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/nodes/nope/elements", UpdateElementRequest{ID: "hero", Text: &text}); w.Code != http.StatusNotFound {
		t.Errorf("missing node = %d, want 404", w.Code)
	}

	w := e.do(t, http.MethodPost, "/nodes/"+n.ID+"/apply", ApplyRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("apply = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[models.Node](t, w)
	if !strings.Contains(got.HTML, "Dark roast") || strings.Contains(got.HTML, "<script") {
		t.Errorf("applied html = %s", got.HTML)
	}
}

func TestGenerateStreamsIntoNode(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodPost, "/generate", PromptRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty prompt = %d, want 400", w.Code)
	}

	w := e.do(t, http.MethodPost, "/generate", PromptRequest{Prompt: "a coffee shop"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("generate = %d, body = %s", w.Code, w.Body.String())
	}
	n := decode[models.Node](t, w)
	e.svc.WaitGenerations()

	got, ok := e.svc.Snapshot().Node(n.ID)
	if !ok {
		t.Fatal("generated node missing")
	}
	if !strings.Contains(got.HTML, "Fresh beans") || strings.Contains(got.HTML, "```") {
		t.Errorf("html = %q", got.HTML)
	}
	if got.Title != "Coffee" {
		t.Errorf("title = %q, want Coffee", got.Title)
	}

	w = e.do(t, http.MethodGet, "/generating", nil)
	if g := decode[GeneratingResponse](t, w); g.Generating || len(g.Nodes) != 0 {
		t.Errorf("generating = %+v", g)
	}
}

func TestGenerationErrors(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodPost, "/element/edit", InstructionRequest{Instruction: "bigger"}); w.Code != http.StatusBadRequest {
		t.Errorf("edit without element = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/nodes/nope/generation", nil); w.Code != http.StatusNotFound {
		t.Errorf("cancel idle = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/nodes/nope/variants", PromptRequest{Prompt: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("variant of missing = %d, want 404", w.Code)
	}

	note := decode[models.Node](t, e.do(t, http.MethodPost, "/notes", map[string]any{"title": "n"}))
	if w := e.do(t, http.MethodPost, "/nodes/"+note.ID+"/variant-request", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("variant request on note = %d, want 422", w.Code)
	}
	n := e.component(t)
	if w := e.do(t, http.MethodPost, "/nodes/"+n.ID+"/variant-request", nil); w.Code != http.StatusAccepted {
		t.Errorf("variant request = %d, want 202", w.Code)
	}
}

func TestExportZip(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)
	e.svc.RenameNode(n.ID, "Coffee Landing")

	w := e.do(t, http.MethodGet, "/nodes/"+n.ID+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".zip") {
		t.Errorf("content disposition = %q", cd)
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["index.html"] || !names["manifest.json"] {
		t.Errorf("zip entries = %v", names)
	}

	if w := e.do(t, http.MethodGet, "/nodes/nope/export", nil); w.Code != http.StatusNotFound {
		t.Errorf("export missing = %d, want 404", w.Code)
	}
}

func TestCopyEndpoints(t *testing.T) {
	e := testEnv(t, "")
	n := e.component(t)

	w := e.do(t, http.MethodPost, "/nodes/"+n.ID+"/copy-image", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("copy image = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decode[CopyImageResponse](t, w); !res.Fallback || len(res.PNG) != 0 {
		t.Errorf("copy image = %+v, want fallback", res)
	}
	if e.clip.text != page {
		t.Errorf("clipboard = %q", e.clip.text)
	}

	w = e.do(t, http.MethodPost, "/nodes/"+n.ID+"/copy-code", nil)
	if res := decode[canvas.CodeResult](t, w); !res.Copied || res.HTML != page {
		t.Errorf("copy code = %+v", res)
	}

	if w := e.do(t, http.MethodGet, "/nodes/"+n.ID+"/thumbnail", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("thumbnail without rasterizer = %d, want 500", w.Code)
	}
}

func TestCatalogAndSearch(t *testing.T) {
	e := testEnv(t, "")
	e.component(t)
	if w := e.do(t, http.MethodPost, "/notes", map[string]any{"title": "Espresso notes", "content": "crema matters"}); w.Code != http.StatusCreated {
		t.Fatalf("note = %d", w.Code)
	}
	if err := catalog.Sync(e.db, e.svc.Snapshot().Nodes, testutil.Logger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	w := e.do(t, http.MethodGet, "/catalog?type=note", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("catalog = %d", w.Code)
	}
	list := decode[NodeListResponse](t, w)
	if list.Total != 1 || len(list.Nodes) != 1 || list.Nodes[0].Title != "Espresso notes" {
		t.Errorf("catalog = %+v", list)
	}

	w = e.do(t, http.MethodGet, "/search?q=crema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	if res := decode[SearchResponse](t, w); len(res.Results) != 1 {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("no q = %d, want 400", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret")
	w := e.do(t, http.MethodGet, "/nodes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Bearer realm="vellum"` {
		t.Errorf("challenge = %q", got)
	}
	if !strings.Contains(w.Body.String(), `"error":"unauthorized"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	e := testEnv(t, "secret")
	if w := e.do(t, http.MethodGet, "/nodes?access_token=secret", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/nodes?access_token=wrong", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("GET with wrong query token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/notes?access_token=secret", map[string]string{"content": "x"}); w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/nodes", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, "secret", blockingSSE)
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	e := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", w.Code)
	}
}

// Asset tests.

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func assetRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Get("/assets/{name}", NewAssetHandler(e.svc, e.db, e.ws).ServeFile)
	return r
}

func TestUploadAndServeAsset(t *testing.T) {
	e := testEnv(t, "")

	w := uploadFile(t, e.router, "hero shot.png", pngBytes(t, 100, 50), map[string]string{"x": "10", "y": "20"})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[AssetUploadResponse](t, w)
	if resp.Node.Type != models.NodeImage || resp.Node.Title != "hero shot" || resp.Node.X != 10 {
		t.Errorf("node = %+v", resp.Node)
	}
	if !strings.HasPrefix(resp.URL, "/assets/") || !strings.HasSuffix(resp.URL, ".png") {
		t.Fatalf("url = %q", resp.URL)
	}

	req := httptest.NewRequest(http.MethodGet, resp.URL, nil)
	sw := httptest.NewRecorder()
	assetRouter(e).ServeHTTP(sw, req)
	if sw.Code != http.StatusOK {
		t.Fatalf("serve = %d", sw.Code)
	}
	if sw.Header().Get("Content-Type") != "image/png" {
		t.Errorf("content type = %q", sw.Header().Get("Content-Type"))
	}

	if err := catalog.Sync(e.db, e.svc.Snapshot().Nodes, testutil.Logger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	name := strings.TrimPrefix(resp.URL, "/assets/")
	w = e.do(t, http.MethodGet, "/assets/"+name+"/refs", nil)
	refs := decode[AssetRefsResponse](t, w)
	if len(refs.Nodes) != 1 || refs.Nodes[0] != resp.Node.ID {
		t.Errorf("refs = %+v", refs)
	}
}

func TestUploadAsset_NotAnImage(t *testing.T) {
	e := testEnv(t, "")
	if w := uploadFile(t, e.router, "notes.txt", []byte("hello"), nil); w.Code != http.StatusBadRequest {
		t.Errorf("non-image upload = %d, want 400", w.Code)
	}
}

func TestUploadAsset_BadPosition(t *testing.T) {
	e := testEnv(t, "")
	if w := uploadFile(t, e.router, "a.png", pngBytes(t, 4, 4), map[string]string{"x": "left", "y": "1"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad x = %d, want 400", w.Code)
	}
}

func TestServeAsset_NotFound(t *testing.T) {
	e := testEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/assets/0000000000000000.png", nil)
	w := httptest.NewRecorder()
	assetRouter(e).ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", w.Code)
	}
}

func TestServeAsset_TraversalBlocked(t *testing.T) {
	e := testEnv(t, "")
	if err := e.svc.Save(); err != nil {
		t.Fatal(err)
	}
	r := assetRouter(e)
	for _, name := range []string{"../board.json", "..%2Fboard.json", ".hidden"} {
		req := httptest.NewRequest(http.MethodGet, "/assets/"+name, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		// chi may not route the traversal paths at all (404), or our handler rejects (400).
		if w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

func TestUploadAsset_AuthProtected(t *testing.T) {
	e := testEnv(t, "secret")
	if w := uploadFile(t, e.router, "x.png", pngBytes(t, 2, 2), nil); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadAsset_MissingFileField(t *testing.T) {
	e := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
