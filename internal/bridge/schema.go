// Package bridge connects the host to the isolated documents that render
// component nodes.
//
// Every rendered document gets an interaction script that reports element
// picks to the host and accepts update commands back. The message kinds,
// attribute names and limits below are the single definition both sides are
// built from: the script is rendered from them and the host decodes against
// them.
package bridge

import "strings"

// Kind tags a bridge message.
type Kind string

const (
	KindElementSelected Kind = "elementSelected"
	KindUpdateElement   Kind = "updateElement"
	KindClearSelection  Kind = "clearSelection"
)

// Schema holds the values shared by the injected script and the host.
type Schema struct {
	// MarkerAttr tags elements the bridge adds to a document.
	MarkerAttr string
	// HoverAttr and SelectedAttr are toggled on elements to draw outlines.
	HoverAttr       string
	SelectedAttr    string
	HoverOutline    string
	SelectedOutline string
	// IDPrefix precedes the document-order index in generated element ids.
	IDPrefix string
	// TextLimit and OuterHTMLLimit truncate reported element content.
	TextLimit      int
	OuterHTMLLimit int
	// SkipTags are never hover- or click-targets.
	SkipTags []string
}

// DefaultSchema is the protocol shipped with the service.
var DefaultSchema = Schema{
	MarkerAttr:      "data-vellum-bridge",
	HoverAttr:       "data-vellum-hover",
	SelectedAttr:    "data-vellum-selected",
	HoverOutline:    "2px dashed #6366f1",
	SelectedOutline: "2px solid #4f46e5",
	IDPrefix:        "vl-",
	TextLimit:       200,
	OuterHTMLLimit:  500,
	SkipTags:        []string{"html", "head", "body", "script", "style", "meta", "link", "title", "br"},
}

// SandboxTokens are the only capabilities granted to a rendered document.
var SandboxTokens = []string{
	"allow-scripts",
	"allow-same-origin",
	"allow-forms",
	"allow-popups",
	"allow-modals",
}

// SandboxAttr is the value for the frame's sandbox attribute.
func SandboxAttr() string { return strings.Join(SandboxTokens, " ") }

// CSPHeader is the Content-Security-Policy value applied when a document is
// served directly, so the same restrictions hold outside a sandboxed frame.
func CSPHeader() string { return "sandbox " + SandboxAttr() }
