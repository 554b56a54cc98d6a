package layout

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// Config holds the fixed thresholds of the hierarchy builder.
type Config struct {
	IoUThreshold float64 `mapstructure:"iou_threshold"`
	MinArea      int     `mapstructure:"min_area"`
	MaxArea      int     `mapstructure:"max_area"`

	MenuMinHeight  int `mapstructure:"menu_min_height"`
	MenuMaxHeight  int `mapstructure:"menu_max_height"`
	LineTolerance  int `mapstructure:"line_tolerance"`
	MenuItemMaxGap int `mapstructure:"menu_item_max_gap"`

	ParagraphMinWidth    int `mapstructure:"paragraph_min_width"`
	ParagraphLineSpacing int `mapstructure:"paragraph_line_spacing"`

	ListIndent      int `mapstructure:"list_indent"`
	ListItemSpacing int `mapstructure:"list_item_spacing"`

	MinGap        int     `mapstructure:"min_gap"`
	ClaimFraction float64 `mapstructure:"claim_fraction"`

	Scales []DensityScale `mapstructure:"scales"`
}

// DefaultConfig returns the thresholds tuned for desktop and mobile screenshots.
func DefaultConfig() Config {
	return Config{
		IoUThreshold:         0.5,
		MinArea:              50,
		MaxArea:              50000,
		MenuMinHeight:        20,
		MenuMaxHeight:        40,
		LineTolerance:        12,
		MenuItemMaxGap:       60,
		ParagraphMinWidth:    200,
		ParagraphLineSpacing: 5,
		ListIndent:           20,
		ListItemSpacing:      8,
		MinGap:               20,
		ClaimFraction:        0.4,
		Scales:               DefaultScales(),
	}
}

// ErrInvalidImageSize is returned when Build receives non-positive dimensions.
var ErrInvalidImageSize = errors.New("invalid image size")

var (
	elementNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ui-locate/element"))
	sectionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ui-locate/section"))
)

// Builder turns raw detections into a Hierarchy. It holds no per-image
// state and is safe for concurrent use.
type Builder struct {
	cfg    Config
	logger *zap.Logger
}

// NewBuilder creates a builder. A nil logger discards output.
func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Build decomposes one image's detections into sections, elements and the
// density container overlay.
//
// The pipeline is: deduplicate overlapping detections, drop implausibly
// sized boxes, bucket and merge runs by layout class, cut the image into
// sections at vertical gaps, record containment and neighbors per section,
// and finally compute the density containers.
//
// The output depends only on the detections (including their order) and the
// dimensions; it never reads the clock or iterates maps.
func (b *Builder) Build(dets []Detection, width, height int) (*Hierarchy, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidImageSize, width, height)
	}

	valid := make([]Detection, 0, len(dets))
	for i, d := range dets {
		if err := d.Box.Validate(); err != nil {
			b.logger.Warn("rejecting detection",
				zap.Int("index", i), zap.String("label", d.Label), zap.Error(err))
			continue
		}
		valid = append(valid, d)
	}

	merged := dedupe(valid, b.cfg.IoUThreshold)
	sized := filterBySize(merged, b.cfg.MinArea, b.cfg.MaxArea)
	laidOut := processLayout(sized, b.cfg)

	b.logger.Debug("layout processed",
		zap.Int("detections", len(dets)),
		zap.Int("deduplicated", len(merged)),
		zap.Int("sized", len(sized)),
		zap.Int("elements", len(laidOut)))

	h := &Hierarchy{Width: width, Height: height}
	if len(laidOut) == 0 {
		return h, nil
	}

	elements := newElements(laidOut)
	boxes := make([]geometry.Box, len(elements))
	for i, e := range elements {
		boxes[i] = e.Box
	}

	bands := sectionBands(boxes, height, b.cfg.MinGap)
	owners, fractions := assignToBands(boxes, bands, b.cfg.ClaimFraction)

	sections := make([]*Section, len(bands))
	for i, bd := range bands {
		box := geometry.Box{X1: 0, Y1: bd.y1, X2: width, Y2: bd.y2}
		sections[i] = &Section{
			ID:               uuid.NewSHA1(sectionNamespace, []byte(boxKey(box))).String(),
			Box:              box,
			PositionMetadata: positionMetadata(box, height),
			Children:         []*Element{},
		}
	}

	var kept []geometry.Box
	for i, e := range elements {
		if owners[i] < 0 {
			b.logger.Warn("element not claimed by any section",
				zap.String("element_id", e.ID),
				zap.Float64("best_fraction", fractions[i]))
			h.Dropped = append(h.Dropped, e.ID)
			continue
		}
		s := sections[owners[i]]
		e.SectionID = s.ID
		s.Children = append(s.Children, e)
		kept = append(kept, e.Box)
	}

	for _, s := range sections {
		linkContained(s.Children)
		ApplyNeighbors(s.Children)
	}

	h.Sections = sections
	h.Containers = buildContainers(kept, width, height, b.cfg.Scales)
	return h, nil
}

// newElements assigns content-derived ids and reference points. Identical
// box and label pairs get an ordinal suffix so ids stay unique.
func newElements(dets []Detection) []*Element {
	seen := make(map[string]int, len(dets))
	out := make([]*Element, len(dets))
	for i, d := range dets {
		key := boxKey(d.Box) + "|" + d.Label
		if n := seen[key]; n > 0 {
			seen[key] = n + 1
			key = fmt.Sprintf("%s#%d", key, n)
		} else {
			seen[key] = 1
		}
		out[i] = &Element{
			ID:    uuid.NewSHA1(elementNamespace, []byte(key)).String(),
			Box:   d.Box,
			Score: d.Score,
			Label: d.Label,
			Position: geometry.Point{
				X: d.Box.X1 + d.Box.Width()/4,
				Y: d.Box.Y1 + d.Box.Height()/4,
			},
		}
	}
	return out
}

// linkContained records, for each element, the ids of siblings it contains.
// Identical boxes contain each other, so neither is a leaf.
func linkContained(elements []*Element) {
	for _, e := range elements {
		e.ChildIDs = nil
		for _, c := range elements {
			if c == e {
				continue
			}
			if geometry.Contains(e.Box, c.Box) {
				e.ChildIDs = append(e.ChildIDs, c.ID)
			}
		}
	}
}

func boxKey(b geometry.Box) string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X1, b.Y1, b.X2, b.Y2)
}
