package imaging

import (
	"fmt"
	"image"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ColorFrequency represents a color and its occurrence frequency in an image.
type ColorFrequency struct {
	Hex        string   `json:"hex"`        // Hex color "#RRGGBB" (quantized)
	Percentage float64  `json:"percentage"` // Percentage of pixels with this color (0-100)
	RGB        RGBColor `json:"rgb"`        // RGB components (quantized)
}

// DominantColors extracts the N most common colors from an image.
//
// To group similar colors, each RGB component is quantized by dividing by 16
// and rounding down, so #F0F0F0 and #FAFAFA land in the same bucket.
// Fully transparent pixels are ignored. Ties are broken by hex value so the
// result is deterministic.
func DominantColors(img image.Image, count int) []ColorFrequency {
	bounds := img.Bounds()
	counts := make(map[RGBColor]int)
	total := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			// Quantize to reduce color space (group similar colors)
			c := RGBColor{
				R: uint8((r >> 8) / 16 * 16),
				G: uint8((g >> 8) / 16 * 16),
				B: uint8((b >> 8) / 16 * 16),
			}
			counts[c]++
			total++
		}
	}
	if total == 0 {
		return nil
	}

	colors := make([]ColorFrequency, 0, len(counts))
	for c, n := range counts {
		colors = append(colors, ColorFrequency{
			Hex:        fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B),
			Percentage: float64(n) / float64(total) * 100,
			RGB:        c,
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	if count > 0 && len(colors) > count {
		colors = colors[:count]
	}
	return colors
}

type namedColor struct {
	name string
	lab  colorful.Color
}

// palette holds the names the matcher understands. Order matters only for
// exact distance ties.
var palette = mustPalette([][2]string{
	{"white", "#FFFFFF"},
	{"light gray", "#D3D3D3"},
	{"gray", "#808080"},
	{"dark gray", "#404040"},
	{"black", "#000000"},
	{"red", "#FF0000"},
	{"dark red", "#8B0000"},
	{"orange", "#FF8C00"},
	{"yellow", "#FFD700"},
	{"green", "#2EA043"},
	{"dark green", "#006400"},
	{"teal", "#008080"},
	{"cyan", "#00BCD4"},
	{"light blue", "#87CEEB"},
	{"blue", "#0000FF"},
	{"navy", "#000080"},
	{"purple", "#8A2BE2"},
	{"pink", "#FF69B4"},
	{"brown", "#8B4513"},
})

func mustPalette(entries [][2]string) []namedColor {
	out := make([]namedColor, len(entries))
	for i, e := range entries {
		c, err := colorful.Hex(e[1])
		if err != nil {
			panic(fmt.Sprintf("imaging: bad palette color %q: %v", e[1], err))
		}
		out[i] = namedColor{name: e[0], lab: c}
	}
	return out
}

// ColorName returns the palette name closest to c in CIE Lab space.
func ColorName(c RGBColor) string {
	target := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}

	best := palette[0].name
	bestDist := target.DistanceLab(palette[0].lab)
	for _, p := range palette[1:] {
		if d := target.DistanceLab(p.lab); d < bestDist {
			best, bestDist = p.name, d
		}
	}
	return best
}

// DominantColorName names the most common color of img.
func DominantColorName(img image.Image) (string, error) {
	colors := DominantColors(img, 1)
	if len(colors) == 0 {
		return "", fmt.Errorf("image has no opaque pixels")
	}
	return ColorName(colors[0].RGB), nil
}

// NameCropColor decodes an encoded crop and names its dominant color.
func NameCropColor(data []byte) (string, error) {
	img, err := Decode(data)
	if err != nil {
		return "", err
	}
	return DominantColorName(img)
}
