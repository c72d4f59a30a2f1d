package export

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	xdraw "golang.org/x/image/draw"

	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
)

// ImageLoader resolves an image node's URL to a decoded image.
type ImageLoader func(ctx context.Context, url string) (image.Image, error)

// Card draws nodes without a browser: notes as coloured cards, images
// scaled into their frame, and components as a title bar over their text.
type Card struct {
	Images ImageLoader
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(gomono.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("export: parse font: %w", fontErr)
	}
	return truetype.NewFace(fontTTF, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

var noteColors = map[string]string{
	"yellow": "#fef08a",
	"pink":   "#fbcfe8",
	"blue":   "#bfdbfe",
	"green":  "#bbf7d0",
	"purple": "#e9d5ff",
	"orange": "#fed7aa",
}

// NoteColor resolves a note colour name or hex value. Unknown values map
// to yellow.
func NoteColor(c string) string {
	if strings.HasPrefix(c, "#") && (len(c) == 4 || len(c) == 7) {
		return c
	}
	if hex, ok := noteColors[strings.ToLower(c)]; ok {
		return hex
	}
	return noteColors["yellow"]
}

// Rasterize draws the card at size × density pixels.
func (c Card) Rasterize(ctx context.Context, n models.Node, size models.Size, density float64) (image.Image, error) {
	if density <= 0 {
		density = 1
	}
	w, h := int(size.Width*density), int(size.Height*density)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("export: card %s: empty size %vx%v", n.ID, size.Width, size.Height)
	}
	dc := gg.NewContext(w, h)
	dc.Scale(density, density)

	switch n.Type {
	case models.NodeImage:
		if err := c.drawImage(ctx, dc, n, size); err != nil {
			return nil, err
		}
	case models.NodeNote:
		dc.SetHexColor(NoteColor(n.Color))
		dc.Clear()
		if err := drawText(dc, n.Content, 16, size, 20, "#1f2937"); err != nil {
			return nil, err
		}
	default:
		dc.SetHexColor("#ffffff")
		dc.Clear()
		dc.SetHexColor("#f3f4f6")
		dc.DrawRectangle(0, 0, size.Width, 48)
		dc.Fill()
		ff, err := face(20)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(ff)
		dc.SetHexColor("#111827")
		dc.DrawStringAnchored(n.Title, 20, 24, 0, 0.35)
		text := ""
		if r, err := parser.Parse([]byte(n.HTML)); err == nil {
			text = r.Text
		}
		body := size
		body.Height -= 48
		sub := gg.NewContext(int(body.Width), int(body.Height))
		if err := drawText(sub, text, 14, body, 20, "#374151"); err != nil {
			return nil, err
		}
		dc.DrawImage(sub.Image(), 0, 48)
	}
	return dc.Image(), nil
}

func (c Card) drawImage(ctx context.Context, dc *gg.Context, n models.Node, size models.Size) error {
	dc.SetHexColor("#e5e7eb")
	dc.Clear()
	if c.Images == nil || n.ImageURL == "" {
		return nil
	}
	src, err := c.Images(ctx, n.ImageURL)
	if err != nil {
		return fmt.Errorf("export: load image %s: %w", n.ImageURL, err)
	}
	// Contain the image inside the frame, centred.
	b := src.Bounds()
	scale := min(size.Width/float64(b.Dx()), size.Height/float64(b.Dy()))
	dw, dh := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
	if dw < 1 || dh < 1 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	dc.DrawImage(dst, int((size.Width-float64(dw))/2), int((size.Height-float64(dh))/2))
	return nil
}

func drawText(dc *gg.Context, text string, size float64, box models.Size, pad float64, hex string) error {
	ff, err := face(size)
	if err != nil {
		return err
	}
	dc.SetFontFace(ff)
	dc.SetHexColor(hex)
	dc.DrawStringWrapped(text, pad, pad, 0, 0, box.Width-2*pad, 1.4, gg.AlignLeft)
	return nil
}
