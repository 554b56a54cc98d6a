package layout

import (
	"math"
	"sort"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// band is a half-open vertical range [y1, y2).
type band struct {
	y1, y2 int
}

// sectionBands projects boxes onto the y-axis and cuts the image height at
// every empty run of at least minGap pixels. The first band starts at 0 and
// the last ends at height, so leading and trailing whitespace belongs to the
// outermost sections.
func sectionBands(boxes []geometry.Box, height, minGap int) []band {
	if len(boxes) == 0 {
		return nil
	}

	spans := make([]band, len(boxes))
	for i, b := range boxes {
		spans[i] = band{b.Y1, b.Y2}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].y1 != spans[j].y1 {
			return spans[i].y1 < spans[j].y1
		}
		return spans[i].y2 < spans[j].y2
	})

	// Union of occupied ranges.
	occupied := []band{spans[0]}
	for _, s := range spans[1:] {
		last := &occupied[len(occupied)-1]
		if s.y1 <= last.y2 {
			last.y2 = max(last.y2, s.y2)
			continue
		}
		occupied = append(occupied, s)
	}

	var bands []band
	start := 0
	for i := 0; i+1 < len(occupied); i++ {
		gapStart, gapEnd := occupied[i].y2, occupied[i+1].y1
		if gapEnd-gapStart >= minGap {
			bands = append(bands, band{start, gapStart})
			start = gapEnd
		}
	}
	end := max(height, occupied[len(occupied)-1].y2)
	return append(bands, band{start, end})
}

// claimFraction returns the share of box's height covered by b.
func claimFraction(box geometry.Box, b band) float64 {
	h := box.Height()
	if h <= 0 {
		return 0
	}
	return float64(geometry.SpanOverlap(box.Y1, box.Y2, b.y1, b.y2)) / float64(h)
}

// assignToBands returns, per box, the index of the band claiming the largest
// share of its height, or -1 when no band claims more than minFraction.
// Equal shares go to the upper band.
func assignToBands(boxes []geometry.Box, bands []band, minFraction float64) ([]int, []float64) {
	owners := make([]int, len(boxes))
	best := make([]float64, len(boxes))
	for i, box := range boxes {
		owners[i] = -1
		for j, b := range bands {
			f := claimFraction(box, b)
			if f > best[i] {
				best[i] = f
				owners[i] = j
			}
		}
		if best[i] <= minFraction {
			owners[i] = -1
		}
	}
	return owners, best
}

// positionMetadata expresses a section's vertical extent as rounded
// percentages of the image height.
func positionMetadata(b geometry.Box, imageHeight int) PositionMetadata {
	if imageHeight <= 0 {
		return PositionMetadata{VerticalPosition: "top"}
	}
	yStart := float64(b.Y1) / float64(imageHeight) * 100
	yEnd := float64(b.Y2) / float64(imageHeight) * 100

	pos := "bottom"
	switch {
	case yStart < 33:
		pos = "top"
	case yStart < 66:
		pos = "middle"
	}

	return PositionMetadata{
		YStart:           round2(yStart),
		YEnd:             round2(yEnd),
		VerticalPosition: pos,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
