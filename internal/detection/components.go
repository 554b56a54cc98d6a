package detection

import (
	"image"
	"math"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// component is one connected group of grown foreground pixels, reduced to
// the tight box of the original foreground it covers.
type component struct {
	box   geometry.Box
	fill  int // original foreground pixels inside the component
	total int // pixels in the grown component
}

// findComponents groups the set pixels of grown into 8-connected components.
// Boxes are measured on mask, so growth never inflates them. Components
// covering no mask pixel are discarded.
func findComponents(grown, mask [][]bool, width, height int) []component {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	var comps []component

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !grown[y][x] || visited[y][x] {
				continue
			}
			c := component{box: geometry.Box{X1: math.MaxInt, Y1: math.MaxInt, X2: -1, Y2: -1}}
			floodFill(grown, visited, x, y, width, height, func(p image.Point) {
				c.total++
				if !mask[p.Y][p.X] {
					return
				}
				c.fill++
				c.box.X1 = min(c.box.X1, p.X)
				c.box.Y1 = min(c.box.Y1, p.Y)
				c.box.X2 = max(c.box.X2, p.X+1)
				c.box.Y2 = max(c.box.Y2, p.Y+1)
			})
			if c.fill > 0 {
				comps = append(comps, c)
			}
		}
	}

	return comps
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large components. Marks visited pixels and reports each one to visit.
// Uses 8-connectivity (includes diagonal neighbors).
func floodFill(set, visited [][]bool, startX, startY, width, height int, visit func(image.Point)) {
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !set[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		visit(p)

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// Labels reported by the local detector.
const (
	LabelText   = "text"
	LabelIcon   = "icon"
	LabelRegion = "region"
)

// label names a box from its shape alone.
//
//   - icon: at most maxIconSide on both sides with aspect ratio in [0.75, 1.33]
//   - text: at most maxTextHeight tall and at least twice as wide as tall
//   - region: everything else (panels, outlined inputs, images)
func label(box geometry.Box, maxIconSide, maxTextHeight int) string {
	w, h := box.Width(), box.Height()
	aspect := float64(w) / float64(h)

	switch {
	case w <= maxIconSide && h <= maxIconSide && aspect >= 0.75 && aspect <= 1.33:
		return LabelIcon
	case h <= maxTextHeight && w >= 2*h:
		return LabelText
	}
	return LabelRegion
}

// score is the share of the component's box covered by foreground, rounded
// to three decimals. Outlines score low and filled shapes score high.
func score(c component) float64 {
	area := c.box.Area()
	if area == 0 {
		return 0
	}
	return math.Round(float64(c.fill)/float64(area)*1000) / 1000
}
