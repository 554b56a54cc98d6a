package perception

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MultiDetector concatenates the detections of several detectors in order.
//
// The primary detector decides the image size and its failure is fatal.
// Secondary detectors add regions (OCR word boxes, local heuristics); when
// one fails it is logged and skipped.
type MultiDetector struct {
	primary     Detector
	secondaries []Detector
	logger      *zap.Logger
}

// NewMultiDetector combines primary with any number of secondaries.
func NewMultiDetector(logger *zap.Logger, primary Detector, secondaries ...Detector) *MultiDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiDetector{primary: primary, secondaries: secondaries, logger: logger}
}

// Detect runs the detectors sequentially so output order is stable.
func (m *MultiDetector) Detect(ctx context.Context, image []byte) (*DetectResult, error) {
	if m.primary == nil {
		return nil, fmt.Errorf("%w: no primary detector", ErrUnavailable)
	}
	res, err := m.primary.Detect(ctx, image)
	if err != nil {
		return nil, err
	}

	out := &DetectResult{Width: res.Width, Height: res.Height}
	out.Detections = append(out.Detections, res.Detections...)

	for i, d := range m.secondaries {
		extra, err := d.Detect(ctx, image)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			level := m.logger.Warn
			if errors.Is(err, ErrUnavailable) {
				level = m.logger.Debug
			}
			level("secondary detector failed", zap.Int("detector", i), zap.Error(err))
			continue
		}
		out.Detections = append(out.Detections, extra.Detections...)
	}
	return out, nil
}
