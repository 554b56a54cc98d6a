package match

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// ErrStageTimeout wraps a context expiry inside a stage.
var ErrStageTimeout = errors.New("pipeline stage timed out")

const (
	// DefaultBatchSize is the number of elements per match call.
	DefaultBatchSize = 5
	// DefaultConcurrency bounds in-flight collaborator calls per stage.
	DefaultConcurrency = 4
)

// Stage names used in Result.Detail and logs.
const (
	StagePrefilter = "prefilter"
	StageRelaxed   = "relaxed prefilter"
	StageEnrich    = "enrichment"
	StageMatch     = "matching"
	StageReduce    = "reduction"
)

// ColorNamer names the dominant color of an encoded crop.
type ColorNamer func(crop []byte) (string, error)

// Options tunes a Pipeline.
type Options struct {
	BatchSize   int
	Concurrency int
	// EnrichNeighbors also analyzes neighbors of candidates that are not
	// candidates themselves, so their snapshots carry semantics.
	EnrichNeighbors bool
	// ColorNamer fills DominantColor when Analyze leaves it empty.
	ColorNamer ColorNamer
}

// Result is the outcome of one Run.
type Result struct {
	Found bool `json:"found"`
	// Match is the winning element with its semantics, nil when not Found.
	Match *layout.Element `json:"match,omitempty"`
	// Detail explains a missing match.
	Detail string `json:"detail,omitempty"`

	FilteredSectionIDs []string `json:"filtered_section_ids"`
	Relaxed            bool     `json:"relaxed"`
	CandidateIDs       []string `json:"candidate_ids"`
	AnalyzedIDs        []string `json:"analyzed_ids"`
	// Rounds holds the survivor count after initial matching and after each
	// reduction round.
	Rounds []int `json:"rounds"`
	// TouchedIDs lists every section and element id a collaborator saw, in
	// first-touch order.
	TouchedIDs []string `json:"touched_ids"`

	touched map[string]bool
}

func (r *Result) touch(ids ...string) {
	if r.touched == nil {
		r.touched = make(map[string]bool)
	}
	for _, id := range ids {
		if !r.touched[id] {
			r.touched[id] = true
			r.TouchedIDs = append(r.TouchedIDs, id)
		}
	}
}

// Pipeline runs the prefilter, enrichment and tournament stages against a
// Classifier. It is safe for concurrent use.
type Pipeline struct {
	classifier perception.Classifier
	opts       Options
	logger     *zap.Logger
}

// New creates a pipeline. Zero options take the defaults.
func New(classifier perception.Classifier, opts Options, logger *zap.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{classifier: classifier, opts: opts, logger: logger}
}

// Run finds the best element of h for q.
//
// Run writes semantics onto the elements of h, so callers holding a cached
// hierarchy must pass a clone.
func (p *Pipeline) Run(ctx context.Context, h *layout.Hierarchy, q *perception.NormalizedQuery) (*Result, error) {
	res := &Result{
		FilteredSectionIDs: []string{},
		CandidateIDs:       []string{},
		AnalyzedIDs:        []string{},
		Rounds:             []int{},
		TouchedIDs:         []string{},
	}

	sections := h.Sections
	for _, s := range sections {
		res.touch(s.ID)
	}

	kept := p.prefilter(ctx, sections, q, false)
	if err := stageErr(ctx, StagePrefilter, res); err != nil {
		return res, err
	}

	if len(kept) == 0 && len(sections) > 0 {
		p.logger.Info("no section passed prefilter, retrying relaxed", zap.Int("sections", len(sections)))
		res.Relaxed = true
		kept = p.prefilter(ctx, sections, q, true)
		if err := stageErr(ctx, StageRelaxed, res); err != nil {
			return res, err
		}
	}

	for _, s := range kept {
		res.FilteredSectionIDs = append(res.FilteredSectionIDs, s.ID)
	}
	if len(kept) == 0 {
		res.Detail = "no section passed prefilter"
		return res, nil
	}

	var candidates []*layout.Element
	for _, s := range kept {
		for _, e := range s.Children {
			if e.IsLeaf() {
				candidates = append(candidates, e)
				res.CandidateIDs = append(res.CandidateIDs, e.ID)
			}
		}
	}
	res.touch(res.CandidateIDs...)
	if len(candidates) == 0 {
		res.Detail = "filtered sections hold no leaf elements"
		return res, nil
	}

	enriched := p.enrich(ctx, h, candidates, res)
	if err := stageErr(ctx, StageEnrich, res); err != nil {
		return res, err
	}
	if len(enriched) == 0 {
		res.Detail = "no candidate could be analyzed"
		return res, nil
	}

	index := h.Index()
	survivors := p.matchRound(ctx, enriched, index, q)
	res.Rounds = append(res.Rounds, len(survivors))
	p.logger.Debug("initial matching done", zap.Int("candidates", len(enriched)), zap.Int("survivors", len(survivors)))
	if err := stageErr(ctx, StageMatch, res); err != nil {
		return res, err
	}

	for len(survivors) > 1 {
		next := p.matchRound(ctx, survivors, index, q)
		res.Rounds = append(res.Rounds, len(next))
		p.logger.Debug("reduction round done", zap.Int("in", len(survivors)), zap.Int("out", len(next)))
		if err := stageErr(ctx, StageReduce, res); err != nil {
			return res, err
		}
		if len(next) == 0 || len(next) >= len(survivors) {
			res.Detail = fmt.Sprintf("reduction stalled at %d survivors", len(survivors))
			return res, nil
		}
		survivors = next
	}

	if len(survivors) == 0 {
		res.Detail = "no batch produced a match"
		return res, nil
	}

	res.Found = true
	res.Match = survivors[0]
	return res, nil
}

// stageErr turns an expired context into a no-match Result detail and a
// wrapped error.
func stageErr(ctx context.Context, stage string, res *Result) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	res.Found = false
	res.Match = nil
	res.Detail = "timed out during " + stage
	return fmt.Errorf("%w: %s: %w", ErrStageTimeout, stage, err)
}

// fanOut calls fn for 0..n-1 with at most limit calls in flight and
// returns the results in index order.
func fanOut[T any](ctx context.Context, limit, n int, fn func(ctx context.Context, i int) T) []T {
	out := make([]T, n)
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			out[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
