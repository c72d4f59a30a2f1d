package catalog

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/vellum/internal/checksum"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
	"github.com/starford/vellum/internal/storage"
)

// Sync brings the catalog up to date with the given board nodes:
//   - new/changed nodes are parsed and upserted
//   - nodes no longer on the board are deleted from the catalog
func Sync(db *DB, nodes []models.Node, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		live[n.ID] = struct{}{}

		if checksums[n.ID] == Checksum(n) {
			continue
		}
		if err := IndexNode(db, n); err != nil {
			logger.Warn("sync: index failed", slog.String("node", n.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("node", n.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := live[id]; !ok {
			if err := db.Delete(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("node", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("node", id))
			}
		}
	}

	return nil
}

// Checksum is the catalog checksum of a node: its searchable content and
// geometry. Moving a node changes it so list rows stay positioned.
func Checksum(n models.Node) string {
	return checksum.String(fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s\x00%g,%g,%g,%g",
		n.Type, n.Title, n.HTML, n.Content, n.ImageURL, n.X, n.Y, n.Width, n.Height))
}

// IndexNode extracts searchable text from n and upserts it.
func IndexNode(db *DB, n models.Node) error {
	row := NodeRow{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Checksum:  Checksum(n),
		X:         n.X,
		Y:         n.Y,
		Width:     n.Width,
		Height:    n.Height,
		UpdatedAt: n.UpdatedAt,
	}
	var (
		body string
		refs []string
	)
	switch n.Type {
	case models.NodeComponent:
		res, err := parser.Parse([]byte(n.HTML))
		if err != nil {
			return err
		}
		if row.Title == "" {
			row.Title = res.Title
		}
		row.Keywords = res.Keywords
		body = strings.Join(append(res.Headings, res.Text), "\n")
	case models.NodeNote:
		body = n.Content
	case models.NodeImage:
		if ref, ok := storage.AssetFromURL(n.ImageURL); ok {
			refs = []string{ref}
		}
	}
	return db.Upsert(row, body, refs)
}
