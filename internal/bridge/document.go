package bridge

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Document is a server-side mirror of a rendered document. Update commands
// sent to the live document are applied here as well, so the host can commit
// an edit even when the live markup cannot be read back.
type Document struct {
	schema Schema
	root   *html.Node
	// idBase prefixes the ids the live document generates.
	idBase string
}

// ParseDocument parses markup into a mirror. Bridge artifacts are removed.
func (s Schema) ParseDocument(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("bridge: parse document: %w", err)
	}
	s.strip(root)
	return &Document{schema: s, root: root, idBase: s.idBase("")}, nil
}

// Element finds an element by id. An id the live document generated is
// resolved by the document-order index it encodes; the element there must
// still have no id of its own, otherwise nothing is found.
func (d *Document) Element(id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walkElements(d.root, func(n *html.Node, _ int) bool {
		if attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	if found != nil || !strings.HasPrefix(id, d.idBase) {
		return found
	}
	index, _, _ := strings.Cut(strings.TrimPrefix(id, d.idBase), "-")
	idx, err := strconv.Atoi(index)
	if err != nil || idx < 0 {
		return nil
	}
	walkElements(d.root, func(n *html.Node, i int) bool {
		if i == idx {
			found = n
			return false
		}
		return true
	})
	if found == nil || attr(found, "id") != "" {
		return nil
	}
	setAttr(found, "id", id)
	return found
}

// Apply mirrors an update command. It reports false when the element is
// not in the document.
func (d *Document) Apply(cmd UpdateElement) bool {
	n := d.Element(cmd.ID)
	if n == nil {
		return false
	}
	if cmd.Text != nil {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: *cmd.Text})
	}
	if len(cmd.Styles) > 0 {
		setAttr(n, "style", mergeStyle(attr(n, "style"), cmd.Styles))
	}
	return true
}

// Render serializes the mirror.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("bridge: render document: %w", err)
	}
	return buf.String(), nil
}

// Strip removes everything the bridge adds to a live document: the script,
// its stylesheet and the hover/selection attributes.
func (s Schema) Strip(src string) (string, error) {
	doc, err := s.ParseDocument(src)
	if err != nil {
		return "", err
	}
	return doc.Render()
}

func (s Schema) strip(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && hasAttr(c, s.MarkerAttr) {
			n.RemoveChild(c)
		} else {
			s.strip(c)
		}
		c = next
	}
	if n.Type == html.ElementNode {
		removeAttr(n, s.HoverAttr)
		removeAttr(n, s.SelectedAttr)
	}
}

// walkElements visits element nodes in document order with their index.
// fn returns false to stop.
func walkElements(root *html.Node, fn func(n *html.Node, i int) bool) {
	i := 0
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if !fn(n, i) {
				return false
			}
			i++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// mergeStyle overlays props onto an inline style declaration list, keeping
// the order of existing properties and appending new ones sorted by name.
func mergeStyle(style string, props map[string]string) string {
	type decl struct{ k, v string }
	var decls []decl
	seen := make(map[string]int)
	for _, part := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(part, ":")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" {
			continue
		}
		seen[k] = len(decls)
		decls = append(decls, decl{k, strings.TrimSpace(v)})
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lk := strings.ToLower(k)
		if i, ok := seen[lk]; ok {
			decls[i].v = props[k]
			continue
		}
		seen[lk] = len(decls)
		decls = append(decls, decl{lk, props[k]})
	}
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.k + ": " + d.v
	}
	return strings.Join(parts, "; ")
}
