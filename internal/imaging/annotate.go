package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

// AnnotateOptions controls the overlay colors. Empty or unparsable values
// fall back to the defaults.
type AnnotateOptions struct {
	SectionColor   string // default "#0080FF"
	ElementColor   string // default "#00C000"
	HighlightColor string // default "#FF0000"

	// HighlightID is the element drawn in HighlightColor with a thicker
	// outline. Empty means none.
	HighlightID string
}

var (
	defaultSectionColor   = color.RGBA{0, 128, 255, 255}
	defaultElementColor   = color.RGBA{0, 192, 0, 255}
	defaultHighlightColor = color.RGBA{255, 0, 0, 255}
)

// Annotate draws h over img and returns the result as PNG. Sections are
// outlined and numbered in order; elements get a thin outline.
func Annotate(img image.Image, h *layout.Hierarchy, opts AnnotateOptions) ([]byte, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	sectionColor := colorOr(opts.SectionColor, defaultSectionColor)
	elementColor := colorOr(opts.ElementColor, defaultElementColor)
	highlightColor := colorOr(opts.HighlightColor, defaultHighlightColor)

	var highlight *layout.Element
	for i, s := range h.Sections {
		drawBox(result, s.Box, sectionColor, 2)
		drawLabel(result, s.Box.X1+3, s.Box.Y1+3, strconv.Itoa(i+1),
			color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})

		for _, e := range s.Children {
			if opts.HighlightID != "" && e.ID == opts.HighlightID {
				highlight = e
				continue
			}
			drawBox(result, e.Box, elementColor, 1)
		}
	}

	// Drawn last so nothing covers it.
	if highlight != nil {
		drawBox(result, highlight.Box, highlightColor, 3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func colorOr(hex string, fallback color.RGBA) color.RGBA {
	if hex == "" {
		return fallback
	}
	c, err := parseHexColor(hex)
	if err != nil {
		return fallback
	}
	return c
}

// drawBox outlines box with the given stroke width, growing inward.
// Pixels outside img are skipped.
func drawBox(img *image.RGBA, box geometry.Box, c color.RGBA, stroke int) {
	bounds := img.Bounds()
	set := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(bounds) {
			img.Set(x, y, c)
		}
	}

	for s := 0; s < stroke; s++ {
		x1, y1 := box.X1+s, box.Y1+s
		x2, y2 := box.X2-1-s, box.Y2-1-s
		if x1 > x2 || y1 > y2 {
			return
		}
		for x := x1; x <= x2; x++ {
			set(x, y1)
			set(x, y2)
		}
		for y := y1; y <= y2; y++ {
			set(x1, y)
			set(x2, y)
		}
	}
}

// parseHexColor accepts "#RRGGBB" or "#RRGGBBAA"; the "#" is optional.
func parseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	alpha := uint8(255)
	switch len(hex) {
	case 6:
	case 8:
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		alpha = uint8(a)
		hex = hex[:6]
	default:
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB or #RRGGBBAA", s)
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}, nil
}

// drawLabel writes text in the 7x13 basic font on a filled background
// whose top-left corner is (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x+1, y+1+face.Ascent),
	}
	width := d.MeasureString(text).Ceil()

	bgRect := image.Rect(x-1, y-1, x+width+2, y+face.Height+2)
	draw.Draw(img, bgRect.Intersect(img.Bounds()), image.NewUniform(bg), image.Point{}, draw.Src)
	d.DrawString(text)
}
