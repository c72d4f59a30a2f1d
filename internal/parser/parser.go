// Package parser extracts titles, text, links and keywords from generated
// HTML documents, and cleans up model output before it reaches a node.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	fenceOpenRe  = regexp.MustCompile("^\\s*```[a-zA-Z0-9_-]*[ \\t]*\\r?\\n?")
	fenceCloseRe = regexp.MustCompile("\\r?\\n?```\\s*$")
	spaceRe      = regexp.MustCompile(`\s+`)
)

// Result holds the output of parsing an HTML document.
type Result struct {
	Title    string
	Text     string
	Headings []string
	Links    []string
	Keywords []string
	// Closed is set when the markup contains explicit </body> or </html>
	// end tags outside scripts, comments and raw text.
	Closed bool
}

// Parse extracts title, visible text, headings, links and meta keywords.
func Parse(data []byte) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	r := &Result{
		Title:    deriveTitle(doc),
		Headings: extractHeadings(doc),
		Links:    extractLinks(doc),
		Keywords: extractKeywords(doc),
		Closed:   hasClosingTags(data),
	}
	var sb strings.Builder
	collectText(doc, &sb)
	r.Text = strings.TrimSpace(spaceRe.ReplaceAllString(sb.String(), " "))
	return r, nil
}

// Title returns the document title, or "" when there is none.
func Title(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}
	return deriveTitle(doc)
}

// StripFences removes a Markdown code fence wrapped around model output. An
// unterminated opening fence is removed too, so partial streams render
// without the fence line.
func StripFences(s string) string {
	loc := fenceOpenRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	s = s[loc[1]:]
	return fenceCloseRe.ReplaceAllString(s, "")
}

// deriveTitle returns the <title> text, otherwise the first h1, otherwise "".
func deriveTitle(doc *html.Node) string {
	if n := find(doc, atom.Title); n != nil {
		if t := textOf(n); t != "" {
			return t
		}
	}
	if n := find(doc, atom.H1); n != nil {
		return textOf(n)
	}
	return ""
}

func extractHeadings(doc *html.Node) []string {
	var out []string
	walk(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3:
			if t := textOf(n); t != "" {
				out = append(out, t)
			}
			return false
		}
		return true
	})
	return out
}

// extractLinks returns deduplicated anchor targets, skipping fragments and
// javascript: URLs.
func extractLinks(doc *html.Node) []string {
	seen := make(map[string]struct{})
	var out []string
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return true
		}
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		if _, ok := seen[href]; !ok {
			seen[href] = struct{}{}
			out = append(out, href)
		}
		return true
	})
	return out
}

// extractKeywords reads <meta name="keywords">.
func extractKeywords(doc *html.Node) []string {
	seen := make(map[string]struct{})
	var out []string
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Meta || !strings.EqualFold(attr(n, "name"), "keywords") {
			return true
		}
		for _, k := range strings.Split(attr(n, "content"), ",") {
			k = strings.ToLower(strings.TrimSpace(k))
			if k == "" {
				continue
			}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
		return true
	})
	return out
}

func hasClosingTags(data []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.EndTagToken:
			name, _ := z.TagName()
			if s := string(name); s == "body" || s == "html" {
				return true
			}
		}
	}
}

// walk visits element nodes depth first; fn returns false to skip children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(doc *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)
	return strings.TrimSpace(spaceRe.ReplaceAllString(sb.String(), " "))
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
