// Package export turns nodes into files: zip bundles, PNG thumbnails and
// clipboard images.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/models"
)

var errClipboardUnsupported = errors.New("export: clipboard unsupported on this host")

// Rasterizer renders a node to an image of size logical pixels at the given
// pixel density.
type Rasterizer interface {
	Rasterize(ctx context.Context, n models.Node, size models.Size, density float64) (image.Image, error)
}

// Clipboard receives text copied on the host.
type Clipboard interface {
	WriteText(s string) error
}

// Config sizes the capture operations.
type Config struct {
	CaptureWidth  int
	CaptureHeight int
	ThumbWidth    int
	// Density is the pixel ratio used for clipboard images.
	Density float64
}

// DefaultConfig captures at a desktop viewport and produces 320px thumbnails.
func DefaultConfig() Config {
	return Config{CaptureWidth: 1440, CaptureHeight: 900, ThumbWidth: 320, Density: 2}
}

// Exporter runs the export operations.
type Exporter struct {
	cfg    Config
	raster Rasterizer
	clip   Clipboard
	log    *slog.Logger
}

// New creates an Exporter. A nil logger uses slog.Default.
func New(cfg Config, raster Rasterizer, clip Clipboard, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.CaptureWidth <= 0 || cfg.CaptureHeight <= 0 {
		cfg.CaptureWidth, cfg.CaptureHeight = def.CaptureWidth, def.CaptureHeight
	}
	if cfg.ThumbWidth <= 0 {
		cfg.ThumbWidth = def.ThumbWidth
	}
	if cfg.Density <= 0 {
		cfg.Density = def.Density
	}
	return &Exporter{cfg: cfg, raster: raster, clip: clip, log: log}
}

// Thumbnail renders the node at the capture size and downsamples it to the
// thumbnail width, preserving aspect ratio. The result is PNG encoded.
func (e *Exporter) Thumbnail(ctx context.Context, n models.Node) ([]byte, error) {
	if n.Type == models.NodeComponent && n.HTML == "" {
		return nil, fmt.Errorf("export: thumbnail %s: %w", n.ID, apperr.ErrNotRenderable)
	}
	size := models.Size{Width: float64(e.cfg.CaptureWidth), Height: float64(e.cfg.CaptureHeight)}
	if n.Type != models.NodeComponent {
		size = models.Size{Width: n.Width, Height: n.Height}
	}
	img, err := e.raster.Rasterize(ctx, n, size, 1)
	if err != nil {
		return nil, fmt.Errorf("export: thumbnail %s: %w", n.ID, err)
	}
	return encodePNG(downsample(img, e.cfg.ThumbWidth))
}

// CopyResult is the outcome of CopyImage.
type CopyResult struct {
	PNG []byte
	// Fallback is set when rasterization failed and the HTML text was copied
	// to the host clipboard instead.
	Fallback bool
}

// CopyImage rasterizes the node at the configured density. When that fails
// the node's HTML is copied as text instead.
func (e *Exporter) CopyImage(ctx context.Context, n models.Node) (CopyResult, error) {
	size := models.Size{Width: n.Width, Height: n.Height}
	img, err := e.raster.Rasterize(ctx, n, size, e.cfg.Density)
	if err == nil {
		var data []byte
		data, err = encodePNG(img)
		if err == nil {
			return CopyResult{PNG: data}, nil
		}
	}
	e.log.Warn("export: rasterize failed, copying html instead",
		slog.String("node", n.ID), slog.Any("error", err))
	if n.HTML == "" {
		return CopyResult{}, fmt.Errorf("export: copy image %s: %w", n.ID, err)
	}
	if cerr := e.clip.WriteText(n.HTML); cerr != nil {
		return CopyResult{}, fmt.Errorf("export: copy image %s: %w", n.ID, errors.Join(err, cerr))
	}
	return CopyResult{Fallback: true}, nil
}

// CopyCode copies the node's raw HTML to the host clipboard.
func (e *Exporter) CopyCode(n models.Node) error {
	if n.HTML == "" {
		return fmt.Errorf("export: copy code %s: %w", n.ID, apperr.ErrNotRenderable)
	}
	if err := e.clip.WriteText(n.HTML); err != nil {
		return fmt.Errorf("export: copy code %s: %w", n.ID, err)
	}
	return nil
}

func downsample(src image.Image, width int) image.Image {
	b := src.Bounds()
	if b.Dx() <= width {
		return src
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("export: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
