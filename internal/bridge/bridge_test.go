package bridge

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/models"
)

type recorder struct {
	mu  sync.Mutex
	out []Outbound
}

func (r *recorder) SendBridge(o Outbound) {
	r.mu.Lock()
	r.out = append(r.out, o)
	r.mu.Unlock()
}

const page = `<!DOCTYPE html><html><head><title>T</title></head><body><h1 id="title">Old</h1><p class="lead">Keep me</p><ul><li>One</li><li>Two</li></ul></body></html>`

func ptr(s string) *string { return &s }

func TestInjectBeforeBodyClose(t *testing.T) {
	out, err := DefaultSchema.Inject(page, "n1", "")
	if err != nil {
		t.Fatal(err)
	}
	script := strings.Index(out, "<script "+DefaultSchema.MarkerAttr)
	body := strings.LastIndex(out, "</body>")
	if script < 0 || body < script {
		t.Fatalf("script at %d, </body> at %d", script, body)
	}
	if !strings.Contains(out, `var nodeId = "n1"`) {
		t.Error("node id not passed into script")
	}
	if !strings.HasPrefix(out, `<!DOCTYPE html><html><head><title>T</title></head><body><h1 id="title">Old</h1>`) {
		t.Error("document before the script was rewritten")
	}
}

func TestInjectIgnoresBodyTagInsideScript(t *testing.T) {
	src := `<html><body><script>var s = "</body>";</script><p>x</p></body></html>`
	out, err := DefaultSchema.Inject(src, "n", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out, "</script></body></html>") {
		t.Errorf("unexpected tail: %q", out[len(out)-40:])
	}
}

func TestInjectFragmentAppends(t *testing.T) {
	out, err := DefaultSchema.Inject("<div>hi</div>", "n", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "<div>hi</div><script") {
		t.Errorf("out = %q", out[:30])
	}
}

func TestScriptEscapesNodeID(t *testing.T) {
	s, err := DefaultSchema.Script(`x"</script><b>`, "")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(s, "</script>") != 1 {
		t.Error("node id broke out of the script element")
	}
}

func TestInjectThenStripRestoresDocument(t *testing.T) {
	injected, err := DefaultSchema.Inject(page, "n", "")
	if err != nil {
		t.Fatal(err)
	}
	live := strings.Replace(injected, `<p class="lead">`, `<p class="lead" `+DefaultSchema.SelectedAttr+`="">`, 1)
	out, err := DefaultSchema.Strip(live)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "data-vellum") || strings.Contains(out, "<script") {
		t.Errorf("artifacts survived: %s", out)
	}
	if !strings.Contains(out, `<p class="lead">Keep me</p>`) {
		t.Errorf("content lost: %s", out)
	}
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"elementSelected","nodeId":"n","id":"vl-3","tagName":"h1","text":"Hi","rect":{"x":1,"y":2,"width":3,"height":4}}`))
	if err != nil {
		t.Fatal(err)
	}
	sel, ok := msg.(ElementSelected)
	if !ok || sel.Rect.Height != 4 || sel.TagName != "h1" {
		t.Fatalf("msg = %#v", msg)
	}

	for _, raw := range []string{
		`not json`,
		`{"type":"bogus"}`,
		`{"type":"elementSelected","id":"x"}`,
	} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Decode(%s) err = %v", raw, err)
		}
	}
}

func TestEncodeCarriesType(t *testing.T) {
	raw, err := Encode(UpdateElement{ID: "a", Text: ptr("x")})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["type"] != string(KindUpdateElement) || m["id"] != "a" || m["text"] != "x" {
		t.Errorf("encoded = %s", raw)
	}
}

func TestUpdateElementValidate(t *testing.T) {
	bad := []UpdateElement{
		{Text: ptr("x")},
		{ID: "a"},
		{ID: "a", Styles: map[string]string{"color": "red; background: url(x)"}},
		{ID: "a", Styles: map[string]string{"co{lor": "red"}},
	}
	for _, c := range bad {
		if err := c.Validate(); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Validate(%+v) = %v", c, err)
		}
	}
	if err := (UpdateElement{ID: "a", Styles: map[string]string{"font-size": "18px"}}).Validate(); err != nil {
		t.Error(err)
	}
}

func TestDocumentResolvesGeneratedIDs(t *testing.T) {
	doc, err := DefaultSchema.ParseDocument(page)
	if err != nil {
		t.Fatal(err)
	}
	// html=0 head=1 title=2 body=3 h1=4 p=5 ul=6 li=7 li=8
	n := doc.Element("vl-8")
	if n == nil || n.Data != "li" || n.FirstChild.Data != "Two" {
		t.Fatalf("vl-8 = %+v", n)
	}
	if doc.Element("vl-99") != nil || doc.Element("missing") != nil {
		t.Error("resolved a nonexistent element")
	}
}

func TestElementUpdateRoundTrip(t *testing.T) {
	doc, err := DefaultSchema.ParseDocument(page)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := doc.Render()
	if !doc.Apply(UpdateElement{ID: "title", Text: ptr("New heading"), Styles: map[string]string{"color": "red"}}) {
		t.Fatal("element not found")
	}
	after, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(after, `<h1 id="title" style="color: red">New heading</h1>`) {
		t.Errorf("update not applied: %s", after)
	}
	restOf := func(s string) string { return s[strings.Index(s, "</h1>"):] }
	if restOf(before) != restOf(after) {
		t.Errorf("siblings changed:\n%s\n%s", restOf(before), restOf(after))
	}
}

func TestMergeStyle(t *testing.T) {
	got := mergeStyle("color: blue; margin:0", map[string]string{"Color": "red", "padding": "4px"})
	if got != "color: red; margin: 0; padding: 4px" {
		t.Errorf("got %q", got)
	}
}

func newHost(t *testing.T) (*Host, *board.Store, *recorder) {
	t.Helper()
	st := board.NewStore(
		models.Node{ID: "n5", Type: models.NodeComponent, HTML: page, Width: 400, Height: 300},
		models.Node{ID: "n6", Type: models.NodeComponent, HTML: page, Width: 400, Height: 300},
		models.Node{ID: "note", Type: models.NodeNote},
	)
	rec := &recorder{}
	return NewHost(DefaultSchema, st, rec, nil), st, rec
}

func TestHandleInboundSelectsNode(t *testing.T) {
	h, st, _ := newHost(t)
	el, ok := h.HandleInbound([]byte(`{"type":"elementSelected","nodeId":"n5","id":"title","tagName":"h1","text":"Old"}`))
	if !ok || el.NodeID != "n5" {
		t.Fatalf("el = %+v ok = %v", el, ok)
	}
	snap := st.Snapshot()
	if snap.SelectedID != "n5" || snap.Element == nil || snap.Element.ElementID != "title" {
		t.Errorf("snapshot = %+v", snap)
	}

	// Deleting the node clears both selections.
	st.Delete("n5")
	snap = st.Snapshot()
	if snap.SelectedID != "" || snap.Element != nil {
		t.Errorf("after delete: selected=%q element=%v", snap.SelectedID, snap.Element)
	}
}

func TestHandleInboundIgnoresBadMessages(t *testing.T) {
	h, st, _ := newHost(t)
	for _, raw := range []string{
		`{"type":"elementSelected","nodeId":"ghost","id":"x"}`,
		`{"type":"elementSelected","nodeId":"note","id":"x"}`,
		`{"type":"clearSelection"}`,
		`{{{`,
	} {
		if _, ok := h.HandleInbound([]byte(raw)); ok {
			t.Errorf("accepted %s", raw)
		}
	}
	if st.Snapshot().SelectedID != "" {
		t.Error("selection changed")
	}
}

func TestDeselectBroadcastsToEveryFrame(t *testing.T) {
	h, _, rec := newHost(t)
	for _, k := range []string{"n5:live", "n6:live"} {
		if _, err := h.Mount(k, k[:2], page); err != nil {
			t.Fatal(err)
		}
	}
	h.SelectionChanged("n5")
	if len(rec.out) != 0 {
		t.Fatalf("sent on select: %+v", rec.out)
	}
	h.SelectionChanged("")
	if len(rec.out) != 2 {
		t.Fatalf("sent %d messages, want 2", len(rec.out))
	}
	for _, o := range rec.out {
		if o.Message.Kind() != KindClearSelection {
			t.Errorf("message = %#v", o.Message)
		}
	}
}

func TestUpdateAndApplyFromMirror(t *testing.T) {
	h, _, rec := newHost(t)
	if _, err := h.Mount("n5:live", "n5", page); err != nil {
		t.Fatal(err)
	}
	if err := h.UpdateElement("n6", UpdateElement{ID: "title", Text: ptr("x")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unmounted node err = %v", err)
	}
	if err := h.UpdateElement("n5", UpdateElement{ID: "title", Text: ptr("Fresh")}); err != nil {
		t.Fatal(err)
	}
	if len(rec.out) != 1 || rec.out[0].FrameKey != "n5:live" {
		t.Fatalf("outbound = %+v", rec.out)
	}
	out, err := h.Apply("n5", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, ">Fresh</h1>") || !strings.Contains(out, `<p class="lead">Keep me</p>`) {
		t.Errorf("applied = %s", out)
	}
}

func TestApplyPrefersLiveMarkup(t *testing.T) {
	h, _, _ := newHost(t)
	injected, err := h.Mount("n5:live", "n5", page)
	if err != nil {
		t.Fatal(err)
	}
	live := strings.Replace(injected, "Old", "Edited live", 1)
	out, err := h.Apply("n5", live)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Edited live") || strings.Contains(out, "<script") {
		t.Errorf("applied = %s", out)
	}
}

func TestOutboundJSON(t *testing.T) {
	raw, err := json.Marshal(Outbound{FrameKey: "k", NodeID: "n", Message: ClearSelection{}})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"frameKey":"k","nodeId":"n","message":{"type":"clearSelection"}}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestSandbox(t *testing.T) {
	if SandboxAttr() != "allow-scripts allow-same-origin allow-forms allow-popups allow-modals" {
		t.Error(SandboxAttr())
	}
	if strings.Contains(SandboxAttr(), "top-navigation") {
		t.Error("frames must not navigate the host")
	}
}

func TestMountReplacesNodesOtherFrames(t *testing.T) {
	h, _, rec := newHost(t)
	if _, err := h.Mount("n5:cached", "n5", page); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Mount("n6:live", "n6", page); err != nil {
		t.Fatal(err)
	}
	regenerated := strings.Replace(page, "</ul>", "</ul><p>added</p>", 1)
	if _, err := h.Mount("n5:live", "n5", regenerated); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(h.Frames(), ","); got != "n5:live,n6:live" {
		t.Fatalf("frames = %s", got)
	}

	if err := h.UpdateElement("n5", UpdateElement{ID: "title", Text: ptr("Edited")}); err != nil {
		t.Fatal(err)
	}
	if len(rec.out) != 1 || rec.out[0].FrameKey != "n5:live" {
		t.Fatalf("outbound = %+v", rec.out)
	}
	out, err := h.Apply("n5", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, ">Edited</h1>") || !strings.Contains(out, "<p>added</p>") {
		t.Errorf("applied = %s", out)
	}

	rec.out = nil
	h.SelectionChanged("")
	if len(rec.out) != 2 {
		t.Errorf("cleared %d frames, want 2", len(rec.out))
	}
}

func TestGeneratedIDsDoNotCollide(t *testing.T) {
	// html=0 head=1 body=2 div=3 p=4 footer=5. The p kept the id it was
	// given when it still sat at index 5.
	doc, err := DefaultSchema.ParseDocument(`<html><head></head><body><div>Short</div><p id="vl-5">Kept</p><footer>Foot</footer></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if n := doc.Element("vl-5"); n == nil || n.Data != "p" {
		t.Fatalf("vl-5 = %+v", n)
	}
	if doc.Element("vl-4") != nil {
		t.Error("an element with its own id was resolved by position")
	}
	// The footer now sits at index 5; the document picks the next free id.
	if !doc.Apply(UpdateElement{ID: "vl-5-1", Text: ptr("New foot")}) {
		t.Fatal("footer not resolved")
	}
	out, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<p id="vl-5">Kept</p>`) || !strings.Contains(out, `<footer id="vl-5-1">New foot</footer>`) {
		t.Errorf("rendered = %s", out)
	}
}

func TestMountScopesGeneratedIDs(t *testing.T) {
	h, _, _ := newHost(t)
	first, err := h.Mount("n5:live", "n5", page)
	if err != nil {
		t.Fatal(err)
	}
	base := h.frames["n5:live"].doc.idBase
	if !strings.HasPrefix(base, DefaultSchema.IDPrefix) || base == DefaultSchema.IDPrefix {
		t.Fatalf("id base = %q", base)
	}
	if !strings.Contains(first, `ID_BASE = "`+base+`"`) {
		t.Error("script does not use the frame's id base")
	}
	if _, err := h.Mount("n5:live", "n5", page); err != nil {
		t.Fatal(err)
	}
	if h.frames["n5:live"].doc.idBase == base {
		t.Error("remount reused the id base")
	}

	// html=0 head=1 title=2 body=3 h1=4 p=5
	base = h.frames["n5:live"].doc.idBase
	if err := h.UpdateElement("n5", UpdateElement{ID: base + "5", Text: ptr("Lead")}); err != nil {
		t.Fatal(err)
	}
	out, err := h.Apply("n5", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<p class="lead" id="`+base+`5">Lead</p>`) {
		t.Errorf("applied = %s", out)
	}
	if h.frames["n5:live"].doc.Element(DefaultSchema.IDPrefix+"5") != nil {
		t.Error("an id without the frame's nonce was resolved by position")
	}
}
