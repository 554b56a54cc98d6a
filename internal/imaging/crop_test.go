package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

func TestCropPNG(t *testing.T) {
	img := createPatternImage(100, 100)

	data, err := CropPNG(img, geometry.Box{X1: 10, Y1: 10, X2: 40, Y2: 30})
	if err != nil {
		t.Fatalf("CropPNG failed: %v", err)
	}

	out := decodePNG(t, data)
	if out.Bounds().Dx() != 30 || out.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if r, g, b := rgb8(out.At(0, 0)); r != 255 || g != 0 || b != 0 {
		t.Errorf("top-left should be red, got (%d,%d,%d)", r, g, b)
	}
}

func TestCropPNG_VerifyContent(t *testing.T) {
	img := createPatternImage(100, 100)

	// Straddles all four quadrants.
	data, err := CropPNG(img, geometry.Box{X1: 40, Y1: 40, X2: 60, Y2: 60})
	if err != nil {
		t.Fatalf("CropPNG failed: %v", err)
	}
	out := decodePNG(t, data)

	tests := []struct {
		name    string
		x, y    int
		r, g, b uint8
	}{
		{"red", 0, 0, 255, 0, 0},
		{"green", 19, 0, 0, 255, 0},
		{"blue", 0, 19, 0, 0, 255},
		{"white", 19, 19, 255, 255, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := rgb8(out.At(tt.x, tt.y))
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("pixel (%d,%d): got (%d,%d,%d), want (%d,%d,%d)", tt.x, tt.y, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestCropPNG_ClipsToImage(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{128, 128, 128, 255})

	data, err := CropPNG(img, geometry.Box{X1: 80, Y1: 90, X2: 150, Y2: 150})
	if err != nil {
		t.Fatalf("CropPNG failed: %v", err)
	}
	out := decodePNG(t, data)
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 10 {
		t.Errorf("clipped dimensions: got %dx%d, want 20x10", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestCropPNG_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{128, 128, 128, 255})

	tests := []struct {
		name string
		box  geometry.Box
	}{
		{"entirely right", geometry.Box{X1: 150, Y1: 0, X2: 200, Y2: 50}},
		{"entirely below", geometry.Box{X1: 0, Y1: 100, X2: 50, Y2: 120}},
		{"inverted", geometry.Box{X1: 50, Y1: 50, X2: 10, Y2: 10}},
		{"zero width", geometry.Box{X1: 10, Y1: 10, X2: 10, Y2: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CropPNG(img, tt.box); err == nil {
				t.Errorf("expected error for %v", tt.box)
			}
		})
	}
}

func TestCropPNG_OffsetBounds(t *testing.T) {
	// Sub-images keep their parent's coordinates; crops are relative to Min.
	parent := createPatternImage(100, 100)
	sub := parent.SubImage(image.Rect(50, 0, 100, 50))

	data, err := CropPNG(sub, geometry.Box{X1: 0, Y1: 0, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("CropPNG failed: %v", err)
	}
	if r, g, b := rgb8(decodePNG(t, data).At(0, 0)); r != 0 || g != 255 || b != 0 {
		t.Errorf("expected green, got (%d,%d,%d)", r, g, b)
	}
}

func TestAttachCrops(t *testing.T) {
	img := createPatternImage(100, 100)
	h := testHierarchy()

	if err := AttachCrops(img, h); err != nil {
		t.Fatalf("AttachCrops failed: %v", err)
	}

	s := h.Sections[0]
	if len(s.ImageCrop) == 0 {
		t.Fatal("section crop not attached")
	}
	if b := decodePNG(t, s.ImageCrop).Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("section crop: got %dx%d, want 100x50", b.Dx(), b.Dy())
	}
	for _, e := range s.Children {
		if len(e.ImageCrop) == 0 {
			t.Errorf("element %s crop not attached", e.ID)
			continue
		}
		if b := decodePNG(t, e.ImageCrop).Bounds(); b.Dx() != 30 || b.Dy() != 20 {
			t.Errorf("element %s crop: got %dx%d, want 30x20", e.ID, b.Dx(), b.Dy())
		}
	}

	name, err := NameCropColor(s.Children[0].ImageCrop)
	if err != nil {
		t.Fatalf("NameCropColor failed: %v", err)
	}
	if name != "red" {
		t.Errorf("element e1 color: got %q, want red", name)
	}
}

func TestAttachCrops_BadBox(t *testing.T) {
	img := createInMemoryImage(50, 50, color.RGBA{0, 0, 0, 255})
	h := &layout.Hierarchy{
		Sections: []*layout.Section{{
			ID:       "s1",
			Box:      geometry.Box{X1: 0, Y1: 0, X2: 50, Y2: 50},
			Children: []*layout.Element{{ID: "far", Box: geometry.Box{X1: 200, Y1: 200, X2: 210, Y2: 210}}},
		}},
	}

	if err := AttachCrops(img, h); err == nil {
		t.Error("expected error for element outside the image")
	}
}
