package layout

import (
	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

// RootContainerID is the parent of every coarsest-level container and of
// finer containers no coarser container encloses.
const RootContainerID = "root"

// Detection is one raw region reported by a detector.
type Detection struct {
	Box   geometry.Box `json:"box"`
	Score float64      `json:"score"`
	Label string       `json:"label"`
}

// Semantics is the enrichment attached to an element by the classifier.
type Semantics struct {
	Type            string   `json:"type,omitempty"`
	Text            string   `json:"text,omitempty"`
	VisualElements  []string `json:"visual_elements,omitempty"`
	PrimaryFunction string   `json:"primary_function,omitempty"`
	DominantColor   string   `json:"dominant_color,omitempty"`
}

// Direction names one of the four neighbor slots.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Above Direction = "above"
	Below Direction = "below"
)

// Directions lists the neighbor slots in a fixed order.
var Directions = []Direction{Left, Right, Above, Below}

// Neighbors holds element ids, never element copies. Empty means none.
type Neighbors struct {
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
	Above string `json:"above,omitempty"`
	Below string `json:"below,omitempty"`
}

// Get returns the id stored for d.
func (n Neighbors) Get(d Direction) string {
	switch d {
	case Left:
		return n.Left
	case Right:
		return n.Right
	case Above:
		return n.Above
	case Below:
		return n.Below
	}
	return ""
}

// Set stores id for d.
func (n *Neighbors) Set(d Direction, id string) {
	switch d {
	case Left:
		n.Left = id
	case Right:
		n.Right = id
	case Above:
		n.Above = id
	case Below:
		n.Below = id
	}
}

// Element is a leaf UI region owned by exactly one Section.
type Element struct {
	ID        string         `json:"id"`
	Box       geometry.Box   `json:"box"`
	Position  geometry.Point `json:"position"`
	Score     float64        `json:"score"`
	Label     string         `json:"label"`
	ImageCrop []byte         `json:"image_crop,omitempty"`
	SectionID string         `json:"section_id"`
	// ChildIDs lists elements of the same section whose boxes this one contains.
	ChildIDs  []string   `json:"child_ids,omitempty"`
	Neighbors Neighbors  `json:"neighbors"`
	Semantics *Semantics `json:"semantics,omitempty"`
}

// IsLeaf reports whether the element contains no other element.
func (e *Element) IsLeaf() bool {
	return len(e.ChildIDs) == 0
}

// PositionMetadata locates a section vertically as percentages of image height.
type PositionMetadata struct {
	YStart           float64 `json:"y_start"`
	YEnd             float64 `json:"y_end"`
	VerticalPosition string  `json:"vertical_position"`
}

// Section is a full-width horizontal band between vertical gaps.
type Section struct {
	ID               string           `json:"id"`
	Box              geometry.Box     `json:"box"`
	PositionMetadata PositionMetadata `json:"position_metadata"`
	ImageCrop        []byte           `json:"image_crop,omitempty"`
	Children         []*Element       `json:"children"`
}

// Container is one connected dense region of the density overlay. Area is
// the dense area measured at its own scale; Box may be wider, since it
// always encloses the container's children.
type Container struct {
	ID       string       `json:"id"`
	Box      geometry.Box `json:"box"`
	Level    int          `json:"level"`
	Area     int          `json:"area"`
	ParentID string       `json:"parent_id"`
}

// Hierarchy is the complete, cacheable decomposition of one screenshot.
type Hierarchy struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Sections   []*Section  `json:"sections"`
	Containers []Container `json:"containers"`
	// Dropped lists elements no section claimed with the required fraction.
	Dropped []string `json:"dropped,omitempty"`
}

// Elements returns every element in section order.
func (h *Hierarchy) Elements() []*Element {
	var out []*Element
	for _, s := range h.Sections {
		out = append(out, s.Children...)
	}
	return out
}

// Index builds the flat id-keyed element table neighbors resolve through.
func (h *Hierarchy) Index() map[string]*Element {
	idx := make(map[string]*Element)
	for _, s := range h.Sections {
		for _, e := range s.Children {
			idx[e.ID] = e
		}
	}
	return idx
}

// Section returns the section with the given id, or nil.
func (h *Hierarchy) Section(id string) *Section {
	for _, s := range h.Sections {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Clone returns a deep copy so a pipeline run can annotate elements
// without touching a cached artifact.
func (h *Hierarchy) Clone() *Hierarchy {
	if h == nil {
		return nil
	}
	out := &Hierarchy{
		Width:      h.Width,
		Height:     h.Height,
		Containers: append([]Container(nil), h.Containers...),
		Dropped:    append([]string(nil), h.Dropped...),
	}
	if h.Sections != nil {
		out.Sections = make([]*Section, len(h.Sections))
	}
	for i, s := range h.Sections {
		sc := *s
		sc.ImageCrop = append([]byte(nil), s.ImageCrop...)
		sc.Children = make([]*Element, len(s.Children))
		for j, e := range s.Children {
			sc.Children[j] = e.clone()
		}
		out.Sections[i] = &sc
	}
	return out
}

func (e *Element) clone() *Element {
	c := *e
	c.ImageCrop = append([]byte(nil), e.ImageCrop...)
	c.ChildIDs = append([]string(nil), e.ChildIDs...)
	if e.Semantics != nil {
		sem := *e.Semantics
		sem.VisualElements = append([]string(nil), e.Semantics.VisualElements...)
		c.Semantics = &sem
	}
	return &c
}
