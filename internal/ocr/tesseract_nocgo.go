//go:build !cgo

package ocr

import (
	"fmt"

	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

func tesseract([]byte, Config) ([]word, error) {
	return nil, fmt.Errorf("%w: tesseract requires a cgo build", perception.ErrUnavailable)
}
