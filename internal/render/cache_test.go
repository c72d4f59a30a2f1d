package render

import (
	"strings"
	"testing"

	"github.com/starford/vellum/internal/models"
)

func comp(id, html string, rev uint64) models.Node {
	return models.Node{ID: id, Type: models.NodeComponent, HTML: html, Revision: rev}
}

func TestIsComplete(t *testing.T) {
	cases := []struct {
		html string
		want bool
	}{
		{"", false},
		{"</body>", false},
		{"<html><body><p>hello world</p></BODY>", true},
		{"<html><body><p>hello world</p></html >", true},
		{"<html><body><p>hello world, still streaming", false},
	}
	for _, tc := range cases {
		if got := IsComplete(tc.html, DefaultMinLength); got != tc.want {
			t.Errorf("IsComplete(%q) = %v, want %v", tc.html, got, tc.want)
		}
	}
}

func TestStreamingChunksExample(t *testing.T) {
	c := NewCache(0)
	chunks := []string{"<html><body>", "<h1>Hi</h1>", "</body></html>"}
	var html string
	for i, ch := range chunks {
		html += ch
		n := comp("n2", html, uint64(i+1))
		c.Observe([]models.Node{n})
		d := c.Display(n)
		if i < 2 {
			if !d.Empty() || !d.Progress {
				t.Fatalf("after chunk %d display = %+v, want placeholder with progress", i+1, d)
			}
			continue
		}
		if d.HTML != html || d.Source != SourceLive || d.Progress {
			t.Fatalf("after final chunk display = %+v", d)
		}
	}
	if got, ok := c.Cached("n2"); !ok || got != html {
		t.Errorf("cache = %q,%v", got, ok)
	}
}

func TestCacheMonotonic(t *testing.T) {
	c := NewCache(0)
	first := "<html><body><p>first version</p></body></html>"
	second := "<html><body><p>second version</p></body></html>"
	seq := []string{first, "<html><body><p>sec", second}

	for i, html := range seq {
		n := comp("a", html, uint64(i+1))
		c.Observe([]models.Node{n})
		d := c.Display(n)
		if d.HTML != "" && !IsComplete(d.HTML, DefaultMinLength) {
			t.Fatalf("step %d displayed incomplete html %q", i, d.HTML)
		}
		if i == 1 && (d.HTML != first || d.Source != SourceCached || !d.Progress) {
			t.Fatalf("regenerating display = %+v", d)
		}
	}
	if d := c.Display(comp("a", second, 3)); d.HTML != second {
		t.Errorf("display = %q, want second version", d.HTML)
	}

	// A stale complete string from an older revision never replaces a newer one.
	c.Observe([]models.Node{comp("a", first, 2)})
	if got, _ := c.Cached("a"); got != second {
		t.Errorf("cache regressed to %q", got)
	}
}

func TestRenderKeyFlipsWithSource(t *testing.T) {
	c := NewCache(0)
	done := comp("k", "<html><body>complete doc</body></html>", 1)
	c.Observe([]models.Node{done})
	live := c.Display(done)
	partial := c.Display(comp("k", "<html><body>part", 2))
	if live.Key == partial.Key {
		t.Errorf("key did not change: %s", live.Key)
	}
	if !strings.HasPrefix(partial.Key, "k:") {
		t.Errorf("key = %s", partial.Key)
	}
}

func TestExplicitEndOfStream(t *testing.T) {
	c := NewCache(0)
	// Content quoting a closing tag mid-stream must not count as complete.
	partial := comp("s", "<html><body><pre>&lt;/body&gt; is written </body> here", 1)
	c.BeginStream("s")
	c.Observe([]models.Node{partial})
	if d := c.Display(partial); !d.Empty() {
		t.Fatalf("mid-stream display = %+v", d)
	}

	// Final text without a closing tag is still authoritative.
	final := comp("s", "<div>short final fragment</div>", 2)
	c.MarkFinal(final)
	if d := c.Display(final); d.Source != SourceLive || d.Progress {
		t.Fatalf("final display = %+v", d)
	}
	if c.Streaming("s") {
		t.Error("stream still marked in flight")
	}
}

func TestNonComponentAndEmpty(t *testing.T) {
	c := NewCache(0)
	if d := c.Display(models.Node{ID: "n", Type: models.NodeNote}); !d.Empty() || d.Progress {
		t.Errorf("note display = %+v", d)
	}
	if d := c.Display(comp("e", "", 0)); !d.Empty() || d.Progress {
		t.Errorf("empty component display = %+v", d)
	}
}

func TestForget(t *testing.T) {
	c := NewCache(0)
	c.Observe([]models.Node{comp("f", "<html><body>complete doc</body></html>", 1)})
	c.Forget("f")
	if _, ok := c.Cached("f"); ok {
		t.Error("entry survived Forget")
	}
}
