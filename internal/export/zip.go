package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/models"
)

// Manifest describes an exported component.
type Manifest struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	NodeID     string    `json:"nodeId"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	Entry      string    `json:"entry"`
	ExportedAt time.Time `json:"exportedAt"`
	Generator  string    `json:"generator"`
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a file-friendly name from a node title.
func Slug(title string) string {
	s := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if s == "" {
		return "component"
	}
	return s
}

// Zip writes an archive with index.html, manifest.json and README.md.
func (e *Exporter) Zip(w io.Writer, n models.Node, now time.Time) error {
	if n.HTML == "" {
		return fmt.Errorf("export: zip %s: %w", n.ID, apperr.ErrNotRenderable)
	}
	name := Slug(n.Title)
	manifest, err := json.MarshalIndent(Manifest{
		Name:       name,
		Title:      n.Title,
		NodeID:     n.ID,
		Width:      n.Width,
		Height:     n.Height,
		Entry:      "index.html",
		ExportedAt: now.UTC(),
		Generator:  "vellum",
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("export: zip manifest: %w", err)
	}
	title := n.Title
	if title == "" {
		title = name
	}
	readme := fmt.Sprintf("# %s\n\nExported from Vellum on %s.\n\nOpen `index.html` in a browser to view the page.\n",
		title, now.UTC().Format(time.RFC3339))

	zw := zip.NewWriter(w)
	files := []struct {
		name string
		data []byte
	}{
		{"index.html", []byte(n.HTML)},
		{"manifest.json", manifest},
		{"README.md", []byte(readme)},
	}
	for _, f := range files {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return fmt.Errorf("export: zip %s: %w", f.name, err)
		}
		if _, err := fw.Write(f.data); err != nil {
			return fmt.Errorf("export: zip %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("export: zip close: %w", err)
	}
	return nil
}
