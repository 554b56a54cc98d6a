package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

// CropPNG cuts box out of img and encodes it as PNG. The box is clipped to
// the image first.
func CropPNG(img image.Image, box geometry.Box) ([]byte, error) {
	cropped, err := cropBox(img, box)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

// cropBox returns box's pixels as a new image with origin (0,0).
func cropBox(img image.Image, box geometry.Box) (*image.NRGBA, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	clipped := geometry.FromRect(box.Rect().Add(bounds.Min).Intersect(bounds).Sub(bounds.Min))
	if !clipped.Valid() {
		return nil, fmt.Errorf("crop region %v outside image bounds %dx%d", box, bounds.Dx(), bounds.Dy())
	}
	return imaging.Crop(img, clipped.Rect().Add(bounds.Min)), nil
}

// AttachCrops fills ImageCrop on every section and element of h.
func AttachCrops(img image.Image, h *layout.Hierarchy) error {
	for _, s := range h.Sections {
		crop, err := CropPNG(img, s.Box)
		if err != nil {
			return fmt.Errorf("section %s: %w", s.ID, err)
		}
		s.ImageCrop = crop

		for _, e := range s.Children {
			crop, err := CropPNG(img, e.Box)
			if err != nil {
				return fmt.Errorf("element %s: %w", e.ID, err)
			}
			e.ImageCrop = crop
		}
	}
	return nil
}
