package canvas

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/board"
	"github.com/starford/vellum/internal/export"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/storage"
)

// maxRemoteImage bounds images fetched over HTTP for rasterizing.
const maxRemoteImage = 20 << 20

// CreateImage stores an uploaded image as a workspace asset and places an
// image node showing it. The node keeps the image's aspect ratio with its
// longer side at most the configured maximum.
func (s *Service) CreateImage(title string, data []byte, at *models.Point) (models.Node, error) {
	if s.workspace == nil {
		return models.Node{}, fmt.Errorf("canvas: no workspace for assets: %w", apperr.ErrInvalidInput)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.Node{}, fmt.Errorf("canvas: decode image: %v: %w", err, apperr.ErrInvalidInput)
	}
	rel, err := s.workspace.PutAsset(data)
	if err != nil {
		return models.Node{}, err
	}
	size := fitImage(float64(cfg.Width), float64(cfg.Height), s.cfg.ImageMax)
	pos := s.place(at)
	return s.AddNode(models.Node{
		Type:     models.NodeImage,
		Title:    strings.TrimSpace(title),
		X:        pos.X,
		Y:        pos.Y,
		Width:    size.Width,
		Height:   size.Height,
		ImageURL: storage.AssetURL(rel),
	})
}

func fitImage(w, h, limit float64) models.Size {
	if w <= 0 || h <= 0 {
		return models.Size{}
	}
	if long := max(w, h); long > limit {
		k := limit / long
		w, h = w*k, h*k
	}
	return models.Size{Width: w, Height: h}
}

// releaseAsset deletes an image asset once no node on the board uses it.
func (s *Service) releaseAsset(url string, snap *board.Snapshot) {
	rel, ok := storage.AssetFromURL(url)
	if !ok || s.workspace == nil {
		return
	}
	for _, n := range snap.Nodes {
		if n.ImageURL == url {
			return
		}
	}
	if err := s.workspace.DeleteAsset(rel); err != nil {
		s.log.Warn("canvas: release asset", slog.String("asset", rel), slog.Any("error", err))
	}
}

// ImageLoader resolves image node URLs for the card rasterizer: workspace
// assets are read from disk, http(s) URLs are fetched.
func ImageLoader(ws *storage.Workspace, client *http.Client) export.ImageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, url string) (image.Image, error) {
		if rel, ok := storage.AssetFromURL(url); ok && ws != nil {
			data, _, err := ws.ReadAsset(rel)
			if err != nil {
				return nil, err
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			return img, err
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("canvas: image url %q: %w", url, apperr.ErrNotFound)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("canvas: fetch image: status %d", resp.StatusCode)
		}
		img, _, err := image.Decode(io.LimitReader(resp.Body, maxRemoteImage))
		return img, err
	}
}
