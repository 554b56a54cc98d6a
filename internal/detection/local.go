package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
	"github.com/ironsheep/ui-locate-mcp/internal/imaging"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// Config tunes the local detector.
type Config struct {
	// Contrast is the minimum gray-level distance from the background for a
	// pixel to count as foreground (1-255).
	Contrast uint8 `mapstructure:"contrast"`

	// Radii are the dilation radii, one detection level each.
	Radii []float64 `mapstructure:"radii"`

	// MinSide drops boxes narrower or shorter than this many pixels.
	MinSide int `mapstructure:"min_side"`

	// MaxIconSide and MaxTextHeight feed the shape labels.
	MaxIconSide   int `mapstructure:"max_icon_side"`
	MaxTextHeight int `mapstructure:"max_text_height"`

	// Concurrency bounds how many levels run at once.
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns settings tuned for desktop screenshots.
func DefaultConfig() Config {
	return Config{
		Contrast:      40,
		Radii:         []float64{1, 3},
		MinSide:       4,
		MaxIconSide:   48,
		MaxTextHeight: 40,
		Concurrency:   2,
	}
}

// ErrNoLevels is returned when Config has no dilation radii.
var ErrNoLevels = errors.New("detection: no dilation radii configured")

// Local implements perception.Detector without any network dependency.
type Local struct {
	cfg    Config
	logger *zap.Logger
}

var _ perception.Detector = (*Local)(nil)

// NewLocal creates a local detector. A nil logger disables logging.
func NewLocal(cfg Config, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Local{cfg: cfg, logger: logger}
}

// Detect decodes data and returns foreground components at every level.
//
// Detections are ordered by level, then top-to-bottom, then left-to-right.
func (l *Local) Detect(ctx context.Context, data []byte) (*perception.DetectResult, error) {
	if len(l.cfg.Radii) == 0 {
		return nil, ErrNoLevels
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	mask, maskImg := foregroundMask(img, l.cfg.Contrast)

	levels := make([][]layout.Detection, len(l.cfg.Radii))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, radius := range l.cfg.Radii {
		i, radius := i, radius
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			grown := toBools(effect.Dilate(maskImg, radius))
			levels[i] = l.detections(findComponents(grown, mask, width, height))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("local detection: %w", err)
	}

	seen := make(map[geometry.Box]bool)
	var dets []layout.Detection
	for i, level := range levels {
		added := 0
		for _, d := range level {
			if seen[d.Box] {
				continue
			}
			seen[d.Box] = true
			dets = append(dets, d)
			added++
		}
		l.logger.Debug("local detection level",
			zap.Float64("radius", l.cfg.Radii[i]),
			zap.Int("components", len(level)),
			zap.Int("added", added))
	}

	return &perception.DetectResult{Width: width, Height: height, Detections: dets}, nil
}

func (l *Local) detections(comps []component) []layout.Detection {
	dets := make([]layout.Detection, 0, len(comps))
	for _, c := range comps {
		if c.box.Width() < l.cfg.MinSide || c.box.Height() < l.cfg.MinSide {
			continue
		}
		dets = append(dets, layout.Detection{
			Box:   c.box,
			Score: score(c),
			Label: label(c.box, l.cfg.MaxIconSide, l.cfg.MaxTextHeight),
		})
	}

	sort.Slice(dets, func(i, j int) bool {
		a, b := dets[i].Box, dets[j].Box
		if a.Y1 != b.Y1 {
			return a.Y1 < b.Y1
		}
		if a.X1 != b.X1 {
			return a.X1 < b.X1
		}
		if a.Y2 != b.Y2 {
			return a.Y2 < b.Y2
		}
		return a.X2 < b.X2
	})
	return dets
}

// foregroundMask marks pixels whose gray level differs from the background
// by at least contrast. It returns the mask both as a grid and as an image
// for the bild filters. Coordinates are relative to img's origin.
func foregroundMask(img image.Image, contrast uint8) ([][]bool, *image.Gray) {
	gray := effect.Grayscale(img)
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	bg := backgroundLevel(gray)

	dist := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := int(gray.Pix[y*gray.Stride+x*4])
			d := v - int(bg)
			if d < 0 {
				d = -d
			}
			dist.Pix[y*dist.Stride+x] = uint8(d)
		}
	}

	maskImg := segment.Threshold(dist, max(contrast, 1))
	return toBools(maskImg), maskImg
}

// backgroundLevel returns the most common gray level, the darker one on ties.
func backgroundLevel(gray *image.RGBA) uint8 {
	var hist [256]int
	bounds := gray.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			hist[row[x*4]]++
		}
	}

	best := 0
	for v := 1; v < len(hist); v++ {
		if hist[v] > hist[best] {
			best = v
		}
	}
	return uint8(best)
}

// toBools reads any image as a set/unset grid: a pixel is set when its
// gray level is at least half intensity.
func toBools(img image.Image) [][]bool {
	bounds := img.Bounds()
	out := make([][]bool, bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		out[y] = make([]bool, bounds.Dx())
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			out[y][x] = (r+g+b)/3 >= 0x8000
		}
	}
	return out
}
