package layout

import (
	"strings"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// labelSeparator joins distinct labels of deduplicated detections.
const labelSeparator = " | "

// dedupe merges detections whose IoU with a group's seed exceeds threshold.
//
// Seeds are taken in input order. Each group keeps the box and score of its
// highest-scoring member (first one wins on equal scores) and the distinct
// labels of all members in first-seen order.
func dedupe(dets []Detection, threshold float64) []Detection {
	if len(dets) == 0 {
		return nil
	}

	used := make([]bool, len(dets))
	merged := make([]Detection, 0, len(dets))

	for i := range dets {
		if used[i] {
			continue
		}
		used[i] = true
		group := []int{i}

		for j := range dets {
			if used[j] {
				continue
			}
			if geometry.IoU(dets[i].Box, dets[j].Box) > threshold {
				group = append(group, j)
				used[j] = true
			}
		}

		best := group[0]
		labels := make([]string, 0, len(group))
		for _, k := range group {
			if dets[k].Score > dets[best].Score {
				best = k
			}
			labels = appendDistinct(labels, dets[k].Label)
		}

		merged = append(merged, Detection{
			Box:   dets[best].Box,
			Score: dets[best].Score,
			Label: strings.Join(labels, labelSeparator),
		})
	}

	return merged
}

func appendDistinct(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	return append(labels, label)
}

// filterBySize keeps detections with minArea < area < maxArea.
func filterBySize(dets []Detection, minArea, maxArea int) []Detection {
	filtered := make([]Detection, 0, len(dets))
	for _, d := range dets {
		area := d.Box.Area()
		if area > minArea && area < maxArea {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
