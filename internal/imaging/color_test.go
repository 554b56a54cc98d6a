package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestDominantColors(t *testing.T) {
	img := createPatternImage(100, 100)

	colors := DominantColors(img, 4)
	if len(colors) != 4 {
		t.Fatalf("expected 4 colors, got %d", len(colors))
	}

	for _, c := range colors {
		if c.Percentage < 24 || c.Percentage > 26 {
			t.Errorf("color %s: expected ~25%%, got %.1f%%", c.Hex, c.Percentage)
		}
	}

	// Equal shares are ordered by hex.
	for i := 1; i < len(colors); i++ {
		if colors[i-1].Hex > colors[i].Hex {
			t.Errorf("colors not in hex order on ties: %s before %s", colors[i-1].Hex, colors[i].Hex)
		}
	}
}

func TestDominantColors_Quantization(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			// #F0F0F0 and #FAFAFA share a bucket.
			if x < 5 {
				img.Set(x, y, color.RGBA{0xF0, 0xF0, 0xF0, 255})
			} else {
				img.Set(x, y, color.RGBA{0xFA, 0xFA, 0xFA, 255})
			}
		}
	}

	colors := DominantColors(img, 5)
	if len(colors) != 1 {
		t.Fatalf("expected 1 color after quantization, got %d", len(colors))
	}
	if colors[0].Hex != "#F0F0F0" || colors[0].Percentage != 100 {
		t.Errorf("got %s at %.1f%%, want #F0F0F0 at 100%%", colors[0].Hex, colors[0].Percentage)
	}
}

func TestDominantColors_Limit(t *testing.T) {
	colors := DominantColors(createPatternImage(100, 100), 2)
	if len(colors) != 2 {
		t.Errorf("expected 2 colors, got %d", len(colors))
	}
}

func TestDominantColors_IgnoresTransparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	if colors := DominantColors(img, 1); colors != nil {
		t.Errorf("fully transparent image: got %v, want nil", colors)
	}
}

func TestColorName(t *testing.T) {
	tests := []struct {
		name string
		c    RGBColor
		want string
	}{
		{"white", RGBColor{255, 255, 255}, "white"},
		{"black", RGBColor{0, 0, 0}, "black"},
		{"red", RGBColor{240, 0, 0}, "red"},
		{"blue", RGBColor{0, 0, 240}, "blue"},
		{"mid gray", RGBColor{128, 128, 128}, "gray"},
		{"navy", RGBColor{0, 0, 128}, "navy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColorName(tt.c); got != tt.want {
				t.Errorf("ColorName(%v) = %q, want %q", tt.c, got, tt.want)
			}
		})
	}
}

func TestDominantColorName(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x < 3 {
				c = color.RGBA{255, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}

	name, err := DominantColorName(img)
	if err != nil {
		t.Fatalf("DominantColorName failed: %v", err)
	}
	if name != "white" {
		t.Errorf("got %q, want white", name)
	}
}

func TestNameCropColor(t *testing.T) {
	data := encodePNG(t, createInMemoryImage(8, 8, color.RGBA{0, 0, 0, 255}))

	name, err := NameCropColor(data)
	if err != nil {
		t.Fatalf("NameCropColor failed: %v", err)
	}
	if name != "black" {
		t.Errorf("got %q, want black", name)
	}

	if _, err := NameCropColor([]byte("not an image")); err == nil {
		t.Error("expected error for invalid image data")
	}
	if _, err := NameCropColor(encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 4, 4)))); err == nil {
		t.Error("expected error for fully transparent crop")
	}
}
