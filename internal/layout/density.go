package layout

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// DensityScale configures one level of the container overlay.
type DensityScale struct {
	// Level is 1 (coarse) to 3 (fine).
	Level int `mapstructure:"level"`
	// CellSize is the side of one occupancy cell in pixels.
	CellSize int `mapstructure:"cell_size"`
	// Sigma is the Gaussian blur radius in cells.
	Sigma float64 `mapstructure:"sigma"`
	// Threshold is the smoothed occupancy (0-255) a cell needs to count as dense.
	Threshold uint8 `mapstructure:"threshold"`
	// MinArea is the smallest connected region, in square pixels, kept as a container.
	MinArea int `mapstructure:"min_area"`
}

// DefaultScales returns the coarse, medium and fine density levels.
func DefaultScales() []DensityScale {
	return []DensityScale{
		{Level: 1, CellSize: 64, Sigma: 2.0, Threshold: 96, MinArea: 16384},
		{Level: 2, CellSize: 32, Sigma: 1.5, Threshold: 112, MinArea: 4096},
		{Level: 3, CellSize: 16, Sigma: 1.0, Threshold: 128, MinArea: 1024},
	}
}

// buildContainers runs every scale in order and links each container to a
// container of the previous scale: the smallest one enclosing it, else the
// one it overlaps most. Coarse and fine grids do not align, so a parent
// that only overlaps its child is grown, together with its ancestors, until
// it encloses the child.
func buildContainers(boxes []geometry.Box, width, height int, scales []DensityScale) []Container {
	if len(boxes) == 0 || width <= 0 || height <= 0 {
		return nil
	}

	var all []Container
	index := map[string]int{}
	coarseStart, coarseEnd := 0, 0
	for _, sc := range scales {
		if sc.CellSize <= 0 {
			continue
		}
		start := len(all)
		for _, c := range densityRegions(boxes, width, height, sc) {
			index[c.ID] = len(all)
			all = append(all, c)
		}

		for i := start; i < len(all); i++ {
			p := parentIndex(all[coarseStart:coarseEnd], all[i].Box)
			if p < 0 {
				all[i].ParentID = RootContainerID
				continue
			}
			p += coarseStart
			all[i].ParentID = all[p].ID
			growAncestors(all, index, p, all[i].Box)
		}
		coarseStart, coarseEnd = start, len(all)
	}
	return all
}

// parentIndex returns the smallest candidate enclosing box, else the
// candidate sharing the most area with it, else -1.
func parentIndex(candidates []Container, box geometry.Box) int {
	best, bestArea := -1, 0
	for i, c := range candidates {
		if !geometry.Contains(c.Box, box) {
			continue
		}
		if a := c.Box.Area(); best < 0 || a < bestArea {
			best, bestArea = i, a
		}
	}
	if best >= 0 {
		return best
	}

	bestOverlap := 0
	for i, c := range candidates {
		if ov := geometry.IntersectionArea(c.Box, box); ov > bestOverlap {
			best, bestOverlap = i, ov
		}
	}
	return best
}

// growAncestors widens all[p] to enclose box and repeats up the parent
// chain until an ancestor already encloses the grown box.
func growAncestors(all []Container, index map[string]int, p int, box geometry.Box) {
	for {
		if geometry.Contains(all[p].Box, box) {
			return
		}
		all[p].Box = geometry.Union(all[p].Box, box)
		box = all[p].Box

		q, ok := index[all[p].ParentID]
		if !ok {
			return
		}
		p = q
	}
}

// densityRegions rasterises box coverage onto a cell grid, smooths and
// thresholds it, and returns one container per 4-connected dense region.
func densityRegions(boxes []geometry.Box, width, height int, sc DensityScale) []Container {
	cell := sc.CellSize
	gw := (width + cell - 1) / cell
	gh := (height + cell - 1) / cell

	coverage := make([]float64, gw*gh)
	cellArea := float64(cell * cell)
	for _, b := range boxes {
		b = b.Clip(width, height)
		if !b.Valid() {
			continue
		}
		for cy := b.Y1 / cell; cy <= (b.Y2-1)/cell; cy++ {
			for cx := b.X1 / cell; cx <= (b.X2-1)/cell; cx++ {
				cb := geometry.Box{X1: cx * cell, Y1: cy * cell, X2: (cx + 1) * cell, Y2: (cy + 1) * cell}
				coverage[cy*gw+cx] += float64(geometry.IntersectionArea(b, cb)) / cellArea
			}
		}
	}

	field := image.NewGray(image.Rect(0, 0, gw, gh))
	for cy := 0; cy < gh; cy++ {
		for cx := 0; cx < gw; cx++ {
			v := min(coverage[cy*gw+cx], 1.0)
			field.SetGray(cx, cy, color.Gray{Y: uint8(v * 255)})
		}
	}

	smoothed := blur.Gaussian(field, sc.Sigma)
	mask := segment.Threshold(smoothed, sc.Threshold)

	var out []Container
	visited := make([]bool, gw*gh)
	for cy := 0; cy < gh; cy++ {
		for cx := 0; cx < gw; cx++ {
			if visited[cy*gw+cx] || mask.GrayAt(cx, cy).Y == 0 {
				continue
			}
			cells, bounds := floodRegion(mask, visited, cx, cy, gw, gh)
			area := cells * cell * cell
			if area < sc.MinArea {
				continue
			}
			box := geometry.Box{
				X1: bounds.X1 * cell,
				Y1: bounds.Y1 * cell,
				X2: (bounds.X2 + 1) * cell,
				Y2: (bounds.Y2 + 1) * cell,
			}.Clip(width, height)
			out = append(out, Container{
				ID:    fmt.Sprintf("container-%d-%d", sc.Level, len(out)+1),
				Box:   box,
				Level: sc.Level,
				Area:  area,
			})
		}
	}
	return out
}

// floodRegion marks the 4-connected dense region containing (startX, startY)
// and returns its cell count and inclusive cell bounds. It uses an explicit
// stack so large regions cannot overflow the goroutine stack.
func floodRegion(mask *image.Gray, visited []bool, startX, startY, gw, gh int) (int, geometry.Box) {
	bounds := geometry.Box{X1: startX, Y1: startY, X2: startX, Y2: startY}
	stack := []geometry.Point{{X: startX, Y: startY}}
	count := 0

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= gw || p.Y < 0 || p.Y >= gh {
			continue
		}
		idx := p.Y*gw + p.X
		if visited[idx] || mask.GrayAt(p.X, p.Y).Y == 0 {
			continue
		}
		visited[idx] = true
		count++

		bounds.X1 = min(bounds.X1, p.X)
		bounds.Y1 = min(bounds.Y1, p.Y)
		bounds.X2 = max(bounds.X2, p.X)
		bounds.Y2 = max(bounds.Y2, p.Y)

		stack = append(stack,
			geometry.Point{X: p.X + 1, Y: p.Y},
			geometry.Point{X: p.X - 1, Y: p.Y},
			geometry.Point{X: p.X, Y: p.Y + 1},
			geometry.Point{X: p.X, Y: p.Y - 1},
		)
	}

	return count, bounds
}
