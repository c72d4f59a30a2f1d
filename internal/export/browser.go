package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/models"
)

// BrowserConfig configures the headless Chrome rasterizer.
type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome on first use.
	RemoteURL string
	Logger    *slog.Logger
}

// Browser renders component HTML in headless Chrome and screenshots it.
type Browser struct {
	cfg BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBrowser creates a Browser rasterizer. Chrome is started lazily.
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Browser{cfg: cfg}
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("export: browser is closed")
	}
	if b.browser != nil {
		return b.browser, nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("export: launch chrome: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.cfg.Logger.Info("export: launched local chrome", slog.String("url", wsURL))
	}
	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("export: connect chrome: %w", err)
	}
	b.browser = br
	return br, nil
}

// Rasterize loads the node's HTML into a fresh page sized to size and
// captures a PNG screenshot.
func (b *Browser) Rasterize(ctx context.Context, n models.Node, size models.Size, density float64) (image.Image, error) {
	if n.Type != models.NodeComponent || n.HTML == "" {
		return nil, fmt.Errorf("export: browser rasterize %s: %w", n.ID, apperr.ErrNotRenderable)
	}
	br, err := b.connect()
	if err != nil {
		return nil, err
	}
	page, err := br.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("export: open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.cfg.Logger.Debug("export: close page", slog.Any("error", err))
		}
	}()

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             int(size.Width),
		Height:            int(size.Height),
		DeviceScaleFactor: density,
	})
	if err != nil {
		return nil, fmt.Errorf("export: set viewport: %w", err)
	}
	if err := page.SetDocumentContent(n.HTML); err != nil {
		return nil, fmt.Errorf("export: load html: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("export: wait load: %w", err)
	}
	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("export: screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("export: decode screenshot: %w", err)
	}
	return img, nil
}

// Close shuts down Chrome.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch = nil
	}
	return err
}

// Chain tries each rasterizer in order and returns the first success.
type Chain []Rasterizer

func (c Chain) Rasterize(ctx context.Context, n models.Node, size models.Size, density float64) (image.Image, error) {
	var errs []error
	for _, r := range c {
		img, err := r.Rasterize(ctx, n, size, density)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("export: no rasterizer: %w", apperr.ErrNotRenderable)
	}
	return nil, errors.Join(errs...)
}
