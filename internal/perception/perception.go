package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

// ErrUnavailable reports a collaborator that cannot be reached or is not
// built into this binary.
var ErrUnavailable = errors.New("perception backend unavailable")

// StatusError is a non-2xx reply from a collaborator endpoint.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// DetectResult is a detector's view of one screenshot.
type DetectResult struct {
	Width      int
	Height     int
	Detections []layout.Detection
}

// Detector finds raw regions in an encoded image.
type Detector interface {
	Detect(ctx context.Context, image []byte) (*DetectResult, error)
}

// Normalizer turns a free-text request into a NormalizedQuery.
type Normalizer interface {
	Normalize(ctx context.Context, prompt string) (*NormalizedQuery, error)
}

// SectionInput is what the prefilter sees of a section.
type SectionInput struct {
	ID               string
	Image            []byte
	PositionMetadata layout.PositionMetadata
}

// Classifier answers the per-item questions of the match pipeline.
type Classifier interface {
	// Prefilter reports whether a section likely contains the target.
	Prefilter(ctx context.Context, section SectionInput, q *NormalizedQuery, relaxed bool) (bool, error)
	// Analyze describes one element crop.
	Analyze(ctx context.Context, crop []byte) (*layout.Semantics, error)
	// Match returns the id of the best candidate in batch, or "" for none.
	Match(ctx context.Context, batch []MatchCandidate, q *NormalizedQuery) (string, error)
}

// NeighborHint describes a neighbor the user mentioned.
type NeighborHint struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// NormalizedQuery holds the attributes extracted from a request. The
// pipeline passes it through unchanged: when it was decoded from a
// normalizer reply it re-encodes to exactly those bytes.
type NormalizedQuery struct {
	Type            string                  `json:"type,omitempty"`
	Text            string                  `json:"text,omitempty"`
	Color           string                  `json:"color,omitempty"`
	Position        string                  `json:"position,omitempty"`
	PrimaryFunction string                  `json:"primary_function,omitempty"`
	VisualElements  []string                `json:"visual_elements,omitempty"`
	DerivedIntent   string                  `json:"derived_intent,omitempty"`
	Neighbors       map[string]NeighborHint `json:"neighbors,omitempty"`

	raw json.RawMessage
}

type queryFields NormalizedQuery

// UnmarshalJSON decodes the known fields and keeps the original bytes.
func (q *NormalizedQuery) UnmarshalJSON(data []byte) error {
	var f queryFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*q = NormalizedQuery(f)
	q.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the original normalizer bytes when present.
func (q NormalizedQuery) MarshalJSON() ([]byte, error) {
	if len(q.raw) > 0 {
		return q.raw, nil
	}
	return json.Marshal(queryFields(q))
}

// NeighborSnapshot is a one-hop copy of a neighbor's attributes. It never
// carries the neighbor's own neighbors.
type NeighborSnapshot struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Text           string   `json:"text"`
	VisualElements []string `json:"visual_elements"`
	DominantColor  string   `json:"dominant_color"`
}

// MatchCandidate is an enriched element as sent to the matcher.
type MatchCandidate struct {
	ID              string                      `json:"id"`
	Type            string                      `json:"type"`
	Text            string                      `json:"text"`
	VisualElements  []string                    `json:"visual_elements"`
	PrimaryFunction string                      `json:"primary_function,omitempty"`
	DominantColor   string                      `json:"dominant_color"`
	Neighbors       map[string]NeighborSnapshot `json:"neighbors,omitempty"`
}

// UnknownColor is reported when no dominant color is known.
const UnknownColor = "unknown"

// Snapshot copies the shallow attributes of e.
func Snapshot(e *layout.Element) NeighborSnapshot {
	s := NeighborSnapshot{ID: e.ID, DominantColor: UnknownColor, VisualElements: []string{}}
	if sem := e.Semantics; sem != nil {
		s.Type = sem.Type
		s.Text = sem.Text
		if len(sem.VisualElements) > 0 {
			s.VisualElements = append([]string(nil), sem.VisualElements...)
		}
		if sem.DominantColor != "" {
			s.DominantColor = sem.DominantColor
		}
	}
	return s
}

// NewMatchCandidate builds the matcher view of e, materializing each
// neighbor id through index one level deep. Ids missing from index are
// skipped.
func NewMatchCandidate(e *layout.Element, index map[string]*layout.Element) MatchCandidate {
	snap := Snapshot(e)
	c := MatchCandidate{
		ID:             e.ID,
		Type:           snap.Type,
		Text:           snap.Text,
		VisualElements: snap.VisualElements,
		DominantColor:  snap.DominantColor,
	}
	if e.Semantics != nil {
		c.PrimaryFunction = e.Semantics.PrimaryFunction
	}
	for _, d := range layout.Directions {
		id := e.Neighbors.Get(d)
		if id == "" {
			continue
		}
		n, ok := index[id]
		if !ok {
			continue
		}
		if c.Neighbors == nil {
			c.Neighbors = make(map[string]NeighborSnapshot, len(layout.Directions))
		}
		c.Neighbors[string(d)] = Snapshot(n)
	}
	return c
}
