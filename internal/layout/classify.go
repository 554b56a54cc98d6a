package layout

import (
	"sort"
	"strings"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// bucket is the coarse layout class of a detection.
type bucket int

const (
	bucketMenu bucket = iota
	bucketParagraph
	bucketList
	bucketOther
)

func (b bucket) String() string {
	switch b {
	case bucketMenu:
		return "menu"
	case bucketParagraph:
		return "paragraph"
	case bucketList:
		return "list"
	}
	return "other"
}

// item is a detection tagged with its position in the input, used as the
// final sort tie-breaker.
type item struct {
	Detection
	order int
}

// classify buckets a detection by its geometry alone. The menu test wins
// over paragraph, paragraph over list.
func classify(d Detection, cfg Config) bucket {
	h := d.Box.Height()
	w := d.Box.Width()

	switch {
	case h >= cfg.MenuMinHeight && h <= cfg.MenuMaxHeight:
		return bucketMenu
	case w >= cfg.ParagraphMinWidth:
		return bucketParagraph
	case d.Box.X1 >= cfg.ListIndent:
		return bucketList
	}
	return bucketOther
}

// groupByLayout splits detections into the four buckets, preserving input order.
func groupByLayout(dets []Detection, cfg Config) [4][]item {
	var groups [4][]item
	for i, d := range dets {
		b := classify(d, cfg)
		groups[b] = append(groups[b], item{Detection: d, order: i})
	}
	return groups
}

// byRow orders items top-to-bottom, then left-to-right, then by input order.
func byRow(items []item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Box, items[j].Box
		if a.Y1 != b.Y1 {
			return a.Y1 < b.Y1
		}
		if a.X1 != b.X1 {
			return a.X1 < b.X1
		}
		return items[i].order < items[j].order
	})
}

// byColumn orders items left-to-right, then top-to-bottom, then by input order.
func byColumn(items []item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Box, items[j].Box
		if a.X1 != b.X1 {
			return a.X1 < b.X1
		}
		if a.Y1 != b.Y1 {
			return a.Y1 < b.Y1
		}
		return items[i].order < items[j].order
	})
}

// mergeMenu splits menu items into lines by top edge, then merges items on
// a line whose horizontal gap stays below MenuItemMaxGap.
func mergeMenu(items []item, cfg Config) []Detection {
	if len(items) == 0 {
		return nil
	}
	items = append([]item(nil), items...)
	byRow(items)

	var out []Detection
	line := []item{items[0]}
	lastY := items[0].Box.Y1

	flush := func() {
		byColumn(line)
		out = append(out, runs(line, func(prev, next item) bool {
			return next.Box.X1-prev.Box.X2 < cfg.MenuItemMaxGap
		})...)
	}

	for _, it := range items[1:] {
		if abs(it.Box.Y1-lastY) > cfg.LineTolerance {
			flush()
			line = nil
		}
		line = append(line, it)
		lastY = it.Box.Y1
	}
	flush()

	return out
}

// mergeParagraphs merges stacked wide blocks whose vertical gap is at most
// ParagraphLineSpacing.
func mergeParagraphs(items []item, cfg Config) []Detection {
	return stack(items, cfg.ParagraphLineSpacing)
}

// mergeLists merges indented items whose vertical spacing is at most
// ListItemSpacing.
func mergeLists(items []item, cfg Config) []Detection {
	return stack(items, cfg.ListItemSpacing)
}

// stack merges items into vertical runs. In row order, an item extends the
// first run whose last member sits directly above it: horizontally
// overlapping, with a vertical gap in [0, spacing]. Items side by side never
// merge. Runs are emitted in the row order of their first member.
func stack(items []item, spacing int) []Detection {
	if len(items) == 0 {
		return nil
	}
	items = append([]item(nil), items...)
	byRow(items)

	var columns [][]item
	for _, it := range items {
		joined := false
		for c, col := range columns {
			last := col[len(col)-1]
			gap := it.Box.Y1 - last.Box.Y2
			if gap >= 0 && gap <= spacing && geometry.HorizontalOverlap(last.Box, it.Box) {
				columns[c] = append(col, it)
				joined = true
				break
			}
		}
		if !joined {
			columns = append(columns, []item{it})
		}
	}

	out := make([]Detection, 0, len(columns))
	for _, col := range columns {
		out = append(out, mergeItems(col))
	}
	return out
}

// runs greedily groups consecutive sorted items while join(prev, next)
// holds and collapses each group into one detection. Used for menu lines,
// whose items are already confined to one row.
func runs(items []item, join func(prev, next item) bool) []Detection {
	if len(items) == 0 {
		return nil
	}
	var out []Detection
	run := []item{items[0]}
	for _, it := range items[1:] {
		if join(run[len(run)-1], it) {
			run = append(run, it)
			continue
		}
		out = append(out, mergeItems(run))
		run = []item{it}
	}
	return append(out, mergeItems(run))
}

// mergeItems unions boxes, keeps the maximum score and joins labels.
func mergeItems(run []item) Detection {
	box := run[0].Box
	score := run[0].Score
	labels := make([]string, 0, len(run))
	for _, it := range run {
		box = geometry.Union(box, it.Box)
		if it.Score > score {
			score = it.Score
		}
		labels = append(labels, it.Label)
	}
	return Detection{Box: box, Score: score, Label: strings.Join(labels, " ")}
}

// processLayout runs classification and per-bucket merging. Output order is
// menu runs, paragraph runs, list runs, then untouched other detections.
func processLayout(dets []Detection, cfg Config) []Detection {
	groups := groupByLayout(dets, cfg)

	var out []Detection
	out = append(out, mergeMenu(groups[bucketMenu], cfg)...)
	out = append(out, mergeParagraphs(groups[bucketParagraph], cfg)...)
	out = append(out, mergeLists(groups[bucketList], cfg)...)
	for _, it := range groups[bucketOther] {
		out = append(out, it.Detection)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
