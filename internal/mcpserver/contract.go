package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/vellum/internal/bridge"
)

// BridgeProtocolURI is the resource URI of the bridge protocol description.
const BridgeProtocolURI = "vellum://bridge-protocol"

// ComponentContract describes what generated or hand-written component HTML
// must look like to render on the canvas.
const ComponentContract = `# Vellum Component Contract

A component node holds one complete, self-contained HTML document.

## Rules

1. The document starts with ` + "`<!DOCTYPE html>`" + ` or ` + "`<html>`" + ` and ends with ` + "`</html>`" + `.
   Anything shorter or unterminated is shown with a progress indicator instead of rendered.
2. **` + "`<title>`" + `** names the node on the canvas; without one the first ` + "`<h1>`" + ` is used.
3. Inline all CSS and scripts, or load them from a CDN. There is no build step.
4. Give elements you expect to edit stable ` + "`id`" + ` attributes. Elements without one get a
   generated id when picked, and generated ids change when the document structure changes.
5. Images use absolute URLs or workspace assets (` + "`/assets/<hash>.<ext>`" + `, see ` + "`upload_image`" + `).
6. Do not wrap the document in Markdown code fences.
`

// BridgeProtocol renders the message contract between the host page and
// the documents it embeds.
func BridgeProtocol(s bridge.Schema) string {
	var b strings.Builder
	b.WriteString("# Vellum Bridge Protocol\n\n")
	b.WriteString("Every rendered component document carries an injected script (tagged with the `")
	b.WriteString(s.MarkerAttr)
	b.WriteString("` attribute) that talks to the host page with `postMessage`. Messages are JSON objects with a `type` field.\n\n")

	b.WriteString("## Document → host\n\n")
	fmt.Fprintf(&b, "`%s`: the user clicked an element.\n\n", bridge.KindElementSelected)
	b.WriteString("| field | meaning |\n|---|---|\n")
	b.WriteString("| nodeId | canvas node the document belongs to |\n")
	fmt.Fprintf(&b, "| id | element id; `%s<mount>-<n>` (document order, `-<k>` appended when taken) when the element had none |\n", s.IDPrefix)
	b.WriteString("| tagName | lower-case tag name |\n")
	fmt.Fprintf(&b, "| text | text content, first %d characters |\n", s.TextLimit)
	b.WriteString("| className | class attribute |\n")
	fmt.Fprintf(&b, "| outerHtml | serialized element, first %d characters |\n", s.OuterHTMLLimit)
	b.WriteString("| rect | bounding box inside the document (x, y, width, height) |\n\n")
	fmt.Fprintf(&b, "These tags are never picked: %s.\n\n", strings.Join(s.SkipTags, ", "))

	b.WriteString("## Host → document\n\n")
	fmt.Fprintf(&b, "`%s`: `{id, text?, styles?}` replaces the element's text and merges inline styles.\n", bridge.KindUpdateElement)
	b.WriteString("Style names are CSS properties; values may not contain `;`, braces or angle brackets.\n\n")
	fmt.Fprintf(&b, "`%s`: removes the selection outline. Sent to every mounted document when the canvas selection moves.\n\n", bridge.KindClearSelection)

	b.WriteString("## Outlines\n\n")
	fmt.Fprintf(&b, "- hover: `%s` on `[%s]`\n", s.HoverOutline, s.HoverAttr)
	fmt.Fprintf(&b, "- selected: `%s` on `[%s]`\n\n", s.SelectedOutline, s.SelectedAttr)

	b.WriteString("## Sandbox\n\n")
	fmt.Fprintf(&b, "Documents run with `sandbox=\"%s\"`; served frames carry `Content-Security-Policy: %s`.\n", bridge.SandboxAttr(), bridge.CSPHeader())
	return b.String()
}
