// Package render decides which HTML a component node actually displays.
//
// Streaming generation produces partial, invalid markup. The cache remembers
// the last complete document per node and serves it while a newer version is
// still streaming, so a rendered node only ever shows nothing, a placeholder,
// or a complete document.
package render

import (
	"regexp"
	"sync"

	"github.com/starford/vellum/internal/models"
)

// DefaultMinLength is the shortest string that can count as a complete document.
const DefaultMinLength = 20

var closingTagRe = regexp.MustCompile(`(?i)</\s*(body|html)\s*>`)

// IsComplete reports whether html looks like a finished document: longer
// than minLen and containing a closing body or html tag.
//
// This is a textual heuristic. A document whose content legitimately
// contains the literal text "</body>" is misdetected; streams driven by the
// generation pipeline use MarkFinal instead.
func IsComplete(html string, minLen int) bool {
	return len(html) > minLen && closingTagRe.MatchString(html)
}

// Source says where displayed HTML came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceLive   Source = "live"
	SourceCached Source = "cached"
)

// Display is the render decision for one node.
type Display struct {
	HTML   string `json:"html,omitempty"`
	Source Source `json:"source"`
	// Progress is set while the live HTML is non-empty but incomplete.
	Progress bool `json:"progress"`
	// Key identifies the rendered document instance. It changes when the
	// source flips between live and cached, which remounts the frame.
	Key string `json:"key"`
}

// Empty reports whether nothing renderable is available.
func (d Display) Empty() bool { return d.Source == SourceNone }

type entry struct {
	html     string
	revision uint64
}

// Cache tracks the last complete HTML per component node.
type Cache struct {
	mu        sync.RWMutex
	minLen    int
	entries   map[string]entry
	streaming map[string]bool
	final     map[string]string
}

// NewCache creates a cache. minLen <= 0 selects DefaultMinLength.
func NewCache(minLen int) *Cache {
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	return &Cache{
		minLen:    minLen,
		entries:   make(map[string]entry),
		streaming: make(map[string]bool),
		final:     make(map[string]string),
	}
}

// complete must be called with c.mu held.
func (c *Cache) complete(n models.Node) bool {
	if n.HTML == "" {
		return false
	}
	if f, ok := c.final[n.ID]; ok && f == n.HTML {
		return true
	}
	if c.streaming[n.ID] {
		return false
	}
	return IsComplete(n.HTML, c.minLen)
}

// Observe records the complete HTML of every component node in nodes. An
// entry is only replaced by a different complete string from a newer node
// revision.
func (c *Cache) Observe(nodes []models.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range nodes {
		if n.Type != models.NodeComponent || !c.complete(n) {
			continue
		}
		c.store(n)
	}
}

func (c *Cache) store(n models.Node) {
	cur, ok := c.entries[n.ID]
	if ok && (cur.html == n.HTML || n.Revision < cur.revision) {
		return
	}
	c.entries[n.ID] = entry{html: n.HTML, revision: n.Revision}
}

// BeginStream marks a node as receiving a generation stream. Until
// MarkFinal or AbortStream, its live HTML is never treated as complete.
func (c *Cache) BeginStream(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming[id] = true
	delete(c.final, id)
}

// MarkFinal is the explicit end-of-stream signal: n.HTML is the finished
// document for this generation.
func (c *Cache) MarkFinal(n models.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streaming, n.ID)
	if n.HTML == "" {
		return
	}
	c.final[n.ID] = n.HTML
	c.store(n)
}

// AbortStream ends a stream without a final document.
func (c *Cache) AbortStream(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streaming, id)
}

// Streaming reports whether a stream is in flight for the node.
func (c *Cache) Streaming(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streaming[id]
}

// Forget drops all state for a deleted node.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	delete(c.streaming, id)
	delete(c.final, id)
}

// Cached returns the stored complete HTML for a node.
func (c *Cache) Cached(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e.html, ok
}

// Display returns what the node should render right now.
func (c *Cache) Display(n models.Node) Display {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := Display{Source: SourceNone}
	switch {
	case n.Type != models.NodeComponent || n.HTML == "":
	case c.complete(n):
		d.HTML, d.Source = n.HTML, SourceLive
	default:
		d.Progress = true
		if e, ok := c.entries[n.ID]; ok {
			d.HTML, d.Source = e.html, SourceCached
		}
	}
	d.Key = n.ID + ":" + string(d.Source)
	return d
}
