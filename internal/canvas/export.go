package canvas

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/export"
	"github.com/starford/vellum/internal/models"
)

func (s *Service) exportNode(id string) (models.Node, error) {
	if s.exporter == nil {
		return models.Node{}, fmt.Errorf("canvas: export disabled: %w", apperr.ErrNotRenderable)
	}
	n, ok := s.store.Snapshot().Node(id)
	if !ok {
		return models.Node{}, fmt.Errorf("canvas: node %s: %w", id, apperr.ErrNotFound)
	}
	return n, nil
}

// exportFailed reports a failed export to the hosts. Canvas state is untouched.
func (s *Service) exportFailed(op, id string, err error) error {
	s.log.Warn("canvas: export failed", slog.String("op", op), slog.String("node", id), slog.Any("error", err))
	s.events.Toast("error", fmt.Sprintf("%s failed", op))
	return err
}

// Thumbnail renders a PNG thumbnail of a node.
func (s *Service) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	n, err := s.exportNode(id)
	if err != nil {
		return nil, err
	}
	png, err := s.exporter.Thumbnail(ctx, n)
	if err != nil {
		return nil, s.exportFailed("Thumbnail", id, err)
	}
	return png, nil
}

// CopyImage renders a node for the clipboard, falling back to its HTML text.
func (s *Service) CopyImage(ctx context.Context, id string) (export.CopyResult, error) {
	n, err := s.exportNode(id)
	if err != nil {
		return export.CopyResult{}, err
	}
	res, err := s.exporter.CopyImage(ctx, n)
	if err != nil {
		return export.CopyResult{}, s.exportFailed("Copy image", id, err)
	}
	if res.Fallback {
		s.events.Toast("info", "Image capture failed, copied HTML instead")
	}
	return res, nil
}

// CodeResult is the outcome of CopyCode. When the host clipboard is not
// available Copied is false and the caller copies HTML itself.
type CodeResult struct {
	HTML   string `json:"html"`
	Copied bool   `json:"copied"`
}

// CopyCode copies a component's HTML to the host clipboard.
func (s *Service) CopyCode(id string) (CodeResult, error) {
	n, err := s.exportNode(id)
	if err != nil {
		return CodeResult{}, err
	}
	if n.HTML == "" {
		return CodeResult{}, fmt.Errorf("canvas: copy code %s: %w", id, apperr.ErrNotRenderable)
	}
	if err := s.exporter.CopyCode(n); err != nil {
		s.log.Info("canvas: host clipboard unavailable", slog.String("node", id), slog.Any("error", err))
		return CodeResult{HTML: n.HTML}, nil
	}
	return CodeResult{HTML: n.HTML, Copied: true}, nil
}

// ExportZip writes a zip bundle of a node to w.
func (s *Service) ExportZip(w io.Writer, id string) (string, error) {
	n, err := s.exportNode(id)
	if err != nil {
		return "", err
	}
	if err := s.exporter.Zip(w, n, time.Now()); err != nil {
		return "", s.exportFailed("Export", id, err)
	}
	return export.Slug(n.Title) + ".zip", nil
}
