package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
	imgutil "github.com/ironsheep/ui-locate-mcp/internal/imaging"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// Labels reported by the OCR detector.
const (
	LabelWord = "text"
	LabelLine = "text line"
)

// Config controls recognition.
type Config struct {
	// Language is a Tesseract language code such as "eng" or "eng+deu".
	Language string `mapstructure:"language"`

	// MinConfidence drops boxes scored below it (0.0 to 1.0).
	MinConfidence float64 `mapstructure:"min_confidence"`

	// Scale enlarges the image before recognition. Values <= 1 disable it.
	Scale float64 `mapstructure:"scale"`

	// TessdataPrefix overrides the Tesseract data directory.
	TessdataPrefix string `mapstructure:"tessdata_prefix"`
}

// DefaultConfig returns English recognition at 2x scale.
func DefaultConfig() Config {
	return Config{
		Language:      "eng",
		MinConfidence: 0.5,
		Scale:         2,
	}
}

// word is one recognized box in the coordinates of the image Tesseract saw.
type word struct {
	text       string
	box        image.Rectangle
	confidence float64
	label      string
}

// Detector implements perception.Detector with Tesseract.
type Detector struct {
	cfg       Config
	logger    *zap.Logger
	recognize func([]byte, Config) ([]word, error)
}

var _ perception.Detector = (*Detector)(nil)

// NewDetector creates an OCR detector. A nil logger disables logging.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Detector{cfg: cfg, logger: logger, recognize: tesseract}
}

// Detect recognizes words and lines in data and returns them as detections
// in original image coordinates. Blank and low-confidence boxes are skipped.
//
// Tesseract cannot be interrupted, so ctx is only checked before it starts.
func (d *Detector) Detect(ctx context.Context, data []byte) (*perception.DetectResult, error) {
	info, err := imgutil.DecodeInfo(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, scale, err := d.prepare(data, info)
	if err != nil {
		return nil, err
	}

	words, err := d.recognize(input, d.cfg)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	dets := toDetections(words, scale, info.Width, info.Height, d.cfg.MinConfidence)
	d.logger.Debug("ocr detection",
		zap.Int("boxes", len(words)),
		zap.Int("kept", len(dets)),
		zap.Float64("scale", scale))

	return &perception.DetectResult{Width: info.Width, Height: info.Height, Detections: dets}, nil
}

// prepare returns the bytes to hand to Tesseract and the scale applied.
func (d *Detector) prepare(data []byte, info *imgutil.Info) ([]byte, float64, error) {
	if d.cfg.Scale <= 1 {
		return data, 1, nil
	}

	img, err := imgutil.Decode(data)
	if err != nil {
		return nil, 0, err
	}
	w := int(math.Round(float64(info.Width) * d.cfg.Scale))
	enlarged := imaging.Resize(img, w, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, enlarged); err != nil {
		return nil, 0, fmt.Errorf("failed to encode scaled image: %w", err)
	}
	return buf.Bytes(), float64(enlarged.Bounds().Dx()) / float64(info.Width), nil
}

// toDetections maps recognized boxes back through scale, clips them to the
// image and drops blank, invalid or low-confidence ones.
func toDetections(words []word, scale float64, width, height int, minConfidence float64) []layout.Detection {
	dets := make([]layout.Detection, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w.text) == "" || w.confidence < minConfidence {
			continue
		}
		box := geometry.Box{
			X1: int(math.Floor(float64(w.box.Min.X) / scale)),
			Y1: int(math.Floor(float64(w.box.Min.Y) / scale)),
			X2: int(math.Ceil(float64(w.box.Max.X) / scale)),
			Y2: int(math.Ceil(float64(w.box.Max.Y) / scale)),
		}.Clip(width, height)
		if !box.Valid() {
			continue
		}
		dets = append(dets, layout.Detection{
			Box:   box,
			Score: math.Round(w.confidence*1000) / 1000,
			Label: w.label,
		})
	}
	return dets
}
