package bridge

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/net/html"
)

var scriptTmpl = template.Must(template.New("bridge").Parse(`<script {{.S.MarkerAttr}}>
(function () {
  "use strict";
  var nodeId = "{{js .NodeID}}", ID_BASE = "{{js .IDBase}}";
  var MARK = "{{js .S.MarkerAttr}}", HOVER = "{{js .S.HoverAttr}}", SEL = "{{js .S.SelectedAttr}}";
  var skip = { {{- range $i, $t := .S.SkipTags}}{{if $i}}, {{end}}"{{js $t}}": true{{end -}} };
  var selected = null;

  var style = document.createElement("style");
  style.setAttribute(MARK, "");
  style.textContent = "[" + HOVER + "]{outline:{{js .S.HoverOutline}};outline-offset:2px}" +
    "[" + SEL + "]{outline:{{js .S.SelectedOutline}};outline-offset:2px}";
  (document.head || document.documentElement).appendChild(style);

  function eligible(el) {
    return !!el && el.nodeType === 1 && !skip[el.tagName.toLowerCase()] && !el.hasAttribute(MARK);
  }
  function indexOf(el) {
    var all = document.querySelectorAll("*"), n = 0;
    for (var i = 0; i < all.length; i++) {
      if (all[i].hasAttribute(MARK)) continue;
      if (all[i] === el) return n;
      n++;
    }
    return -1;
  }
  function ensureId(el) {
    if (el.id) return el.id;
    var base = ID_BASE + indexOf(el), id = base, k = 0;
    while (document.getElementById(id)) id = base + "-" + (++k);
    el.id = id;
    return id;
  }
  function clip(s, n) {
    s = s || "";
    return s.length > n ? s.slice(0, n) : s;
  }
  function clearSelected() {
    if (selected) selected.removeAttribute(SEL);
    selected = null;
  }

  document.addEventListener("mouseover", function (e) {
    var el = e.target;
    if (eligible(el) && el !== selected) el.setAttribute(HOVER, "");
  }, true);
  document.addEventListener("mouseout", function (e) {
    var el = e.target;
    if (el && el.nodeType === 1 && el !== selected) el.removeAttribute(HOVER);
  }, true);
  document.addEventListener("click", function (e) {
    var el = e.target;
    if (!eligible(el)) return;
    e.preventDefault();
    e.stopPropagation();
    clearSelected();
    el.removeAttribute(HOVER);
    el.setAttribute(SEL, "");
    selected = el;
    var r = el.getBoundingClientRect();
    window.parent.postMessage({
      type: "{{js .ElementSelected}}",
      nodeId: nodeId,
      id: ensureId(el),
      tagName: el.tagName.toLowerCase(),
      text: clip(el.innerText, {{.S.TextLimit}}),
      className: typeof el.className === "string" ? el.className : "",
      outerHtml: clip(el.outerHTML, {{.S.OuterHTMLLimit}}),
      rect: { x: r.left, y: r.top, width: r.width, height: r.height }
    }, "*");
  }, true);
  window.addEventListener("message", function (e) {
    if (e.source !== window.parent) return;
    var m = e.data;
    if (!m || typeof m !== "object") return;
    if (m.type === "{{js .UpdateElement}}") {
      var el = document.getElementById(m.id);
      if (!el) return;
      if (typeof m.text === "string") el.textContent = m.text;
      if (m.styles) for (var k in m.styles) el.style.setProperty(k, m.styles[k]);
    } else if (m.type === "{{js .ClearSelection}}") {
      clearSelected();
    }
  });
})();
</script>`))

type scriptData struct {
	S                                              Schema
	NodeID                                         string
	IDBase                                         string
	ElementSelected, UpdateElement, ClearSelection Kind
}

// idBase is the prefix of element ids generated in a document mounted
// with nonce: IDPrefix, then the nonce and a dash when there is one. The
// document-order index follows, plus "-k" when that id is already taken.
func (s Schema) idBase(nonce string) string {
	if nonce == "" {
		return s.IDPrefix
	}
	return s.IDPrefix + nonce + "-"
}

// Script renders the interaction script for one node's document.
func (s Schema) Script(nodeID, nonce string) (string, error) {
	var buf bytes.Buffer
	err := scriptTmpl.Execute(&buf, scriptData{
		S:               s,
		NodeID:          nodeID,
		IDBase:          s.idBase(nonce),
		ElementSelected: KindElementSelected,
		UpdateElement:   KindUpdateElement,
		ClearSelection:  KindClearSelection,
	})
	if err != nil {
		return "", fmt.Errorf("bridge: render script: %w", err)
	}
	return buf.String(), nil
}

// Inject inserts the interaction script before the document's closing body
// tag, or before </html>, or at the end when neither exists. A document that
// already carries bridge artifacts is stripped first. nonce scopes the ids
// the script generates to this document.
func (s Schema) Inject(src, nodeID, nonce string) (string, error) {
	if strings.Contains(src, s.MarkerAttr) {
		stripped, err := s.Strip(src)
		if err != nil {
			return "", err
		}
		src = stripped
	}
	script, err := s.Script(nodeID, nonce)
	if err != nil {
		return "", err
	}
	at := closeTagOffset(src, "body")
	if at < 0 {
		at = closeTagOffset(src, "html")
	}
	if at < 0 {
		return src + script, nil
	}
	return src[:at] + script + src[at:], nil
}

// closeTagOffset returns the byte offset of the last end tag named tag, found
// with the HTML tokenizer so markup inside scripts and comments is skipped.
func closeTagOffset(src, tag string) int {
	z := html.NewTokenizer(strings.NewReader(src))
	off, last := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return last
		}
		n := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == tag {
				last = off
			}
		}
		off += n
	}
}
