package layout

import (
	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// ResolveNeighbors finds, for every element, the nearest element in each of
// the four directions.
//
// A candidate is a left/right neighbor only if the y-ranges overlap and an
// above/below neighbor only if the x-ranges overlap. The smallest
// edge-to-edge gap wins; equal gaps go to the smaller id. The relation is
// not symmetric: B being A's nearest right does not make A B's nearest left.
func ResolveNeighbors(elements []*Element) map[string]Neighbors {
	result := make(map[string]Neighbors, len(elements))

	for _, e := range elements {
		var n Neighbors
		gaps := map[Direction]int{}

		consider := func(d Direction, gap int, id string) {
			best, ok := gaps[d]
			if !ok || gap < best || (gap == best && id < n.Get(d)) {
				gaps[d] = gap
				n.Set(d, id)
			}
		}

		for _, c := range elements {
			if c == e || c.ID == e.ID {
				continue
			}
			eb, cb := e.Box, c.Box

			if geometry.VerticalOverlap(eb, cb) {
				if cb.X2 <= eb.X1 {
					consider(Left, eb.X1-cb.X2, c.ID)
				} else if cb.X1 >= eb.X2 {
					consider(Right, cb.X1-eb.X2, c.ID)
				}
			}
			if geometry.HorizontalOverlap(eb, cb) {
				if cb.Y2 <= eb.Y1 {
					consider(Above, eb.Y1-cb.Y2, c.ID)
				} else if cb.Y1 >= eb.Y2 {
					consider(Below, cb.Y1-eb.Y2, c.ID)
				}
			}
		}

		result[e.ID] = n
	}

	return result
}

// ApplyNeighbors writes resolved neighbor ids onto the elements in place.
func ApplyNeighbors(elements []*Element) {
	resolved := ResolveNeighbors(elements)
	for _, e := range elements {
		e.Neighbors = resolved[e.ID]
	}
}
