//go:build cgo

package ocr

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// tesseract runs one recognition pass over an encoded image.
func tesseract(data []byte, cfg Config) ([]word, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	var words []word
	for _, level := range []struct {
		ril   gosseract.PageIteratorLevel
		label string
	}{
		{gosseract.RIL_WORD, LabelWord},
		{gosseract.RIL_TEXTLINE, LabelLine},
	} {
		boxes, err := client.GetBoundingBoxes(level.ril)
		if err != nil {
			return nil, fmt.Errorf("OCR failed: %w", err)
		}
		for _, b := range boxes {
			words = append(words, word{
				text:       b.Word,
				box:        b.Box,
				confidence: b.Confidence / 100.0,
				label:      level.label,
			})
		}
	}
	return words, nil
}
