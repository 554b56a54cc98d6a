package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
)

// DefaultMaxFileSize bounds screenshots read from disk.
const DefaultMaxFileSize = 32 << 20

// ErrTooLarge is returned when a file exceeds the read limit.
var ErrTooLarge = errors.New("image file too large")

// ReadFile reads an image file's raw bytes, refusing files over maxBytes.
// A non-positive maxBytes means DefaultMaxFileSize.
//
// The raw bytes, not the decoded pixels, are what the artifact cache hashes,
// so callers should keep them.
func ReadFile(path string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path, maxBytes)
	}
	return data, nil
}

// Decode decodes PNG, JPEG or GIF bytes.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Info describes an encoded image without decoding its pixels.
type Info struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the registered decoder name: "png", "jpeg" or "gif".
	Format string `json:"format"`
}

// DecodeInfo reads only the image header.
func DecodeInfo(data []byte) (*Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	return &Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
