package match

import (
	"context"

	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// itemResult is the outcome of one collaborator call.
type itemResult[T any] struct {
	value T
	err   error
}

// prefilter returns the sections the classifier considers likely, in
// input order. A failed call counts as not likely.
func (p *Pipeline) prefilter(ctx context.Context, sections []*layout.Section, q *perception.NormalizedQuery, relaxed bool) []*layout.Section {
	results := fanOut(ctx, p.opts.Concurrency, len(sections), func(ctx context.Context, i int) itemResult[bool] {
		s := sections[i]
		likely, err := p.classifier.Prefilter(ctx, perception.SectionInput{
			ID:               s.ID,
			Image:            s.ImageCrop,
			PositionMetadata: s.PositionMetadata,
		}, q, relaxed)
		return itemResult[bool]{likely, err}
	})

	var kept []*layout.Section
	for i, r := range results {
		if r.err != nil {
			p.logger.Warn("prefilter failed, excluding section",
				zap.String("section_id", sections[i].ID),
				zap.Bool("relaxed", relaxed),
				zap.Error(r.err))
			continue
		}
		if r.value {
			kept = append(kept, sections[i])
		}
	}
	return kept
}

// enrich attaches semantics to candidates and returns those that were
// analyzed successfully.
func (p *Pipeline) enrich(ctx context.Context, h *layout.Hierarchy, candidates []*layout.Element, res *Result) []*layout.Element {
	analyzed := p.analyze(ctx, candidates, "analyze failed, dropping candidate")

	var enriched []*layout.Element
	for i, ok := range analyzed {
		if ok {
			enriched = append(enriched, candidates[i])
			res.AnalyzedIDs = append(res.AnalyzedIDs, candidates[i].ID)
		}
	}

	if !p.opts.EnrichNeighbors || len(enriched) == 0 {
		return enriched
	}

	// Neighbors outside the candidate set are analyzed once so their
	// snapshots are not blank. Failures here drop nothing.
	isCandidate := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		isCandidate[c.ID] = true
	}
	index := h.Index()
	seen := map[string]bool{}
	var extra []*layout.Element
	for _, e := range enriched {
		for _, d := range layout.Directions {
			id := e.Neighbors.Get(d)
			n, ok := index[id]
			if !ok || isCandidate[id] || seen[id] || n.Semantics != nil {
				continue
			}
			seen[id] = true
			extra = append(extra, n)
		}
	}

	for i, ok := range p.analyze(ctx, extra, "analyze failed for neighbor") {
		res.touch(extra[i].ID)
		if ok {
			res.AnalyzedIDs = append(res.AnalyzedIDs, extra[i].ID)
		}
	}
	return enriched
}

// analyze runs Classifier.Analyze over elements and reports per element
// whether semantics were attached.
func (p *Pipeline) analyze(ctx context.Context, elements []*layout.Element, failMsg string) []bool {
	results := fanOut(ctx, p.opts.Concurrency, len(elements), func(ctx context.Context, i int) itemResult[*layout.Semantics] {
		sem, err := p.classifier.Analyze(ctx, elements[i].ImageCrop)
		if err == nil && sem != nil && sem.DominantColor == "" && p.opts.ColorNamer != nil {
			if name, cerr := p.opts.ColorNamer(elements[i].ImageCrop); cerr == nil {
				sem.DominantColor = name
			}
		}
		return itemResult[*layout.Semantics]{sem, err}
	})

	ok := make([]bool, len(elements))
	for i, r := range results {
		if r.err != nil || r.value == nil {
			p.logger.Warn(failMsg, zap.String("element_id", elements[i].ID), zap.Error(r.err))
			continue
		}
		elements[i].Semantics = r.value
		ok[i] = true
	}
	return ok
}

// matchRound splits elements into batches and keeps each batch's winner,
// in batch order. A failed call, an empty answer or an id outside the
// batch yields nothing for that batch.
func (p *Pipeline) matchRound(ctx context.Context, elements []*layout.Element, index map[string]*layout.Element, q *perception.NormalizedQuery) []*layout.Element {
	batches := partition(elements, p.opts.BatchSize)

	results := fanOut(ctx, p.opts.Concurrency, len(batches), func(ctx context.Context, i int) itemResult[string] {
		views := make([]perception.MatchCandidate, len(batches[i]))
		for j, e := range batches[i] {
			views[j] = perception.NewMatchCandidate(e, index)
		}
		id, err := p.classifier.Match(ctx, views, q)
		return itemResult[string]{id, err}
	})

	var winners []*layout.Element
	for i, r := range results {
		if r.err != nil {
			p.logger.Warn("match failed, dropping batch", zap.Int("batch", i), zap.Int("size", len(batches[i])), zap.Error(r.err))
			continue
		}
		if r.value == "" {
			continue
		}
		winner := find(batches[i], r.value)
		if winner == nil {
			p.logger.Warn("matcher returned id outside its batch", zap.Int("batch", i), zap.String("match_id", r.value))
			continue
		}
		winners = append(winners, winner)
	}
	return winners
}

// partition splits elements into consecutive batches of at most size.
func partition(elements []*layout.Element, size int) [][]*layout.Element {
	var out [][]*layout.Element
	for start := 0; start < len(elements); start += size {
		end := min(start+size, len(elements))
		out = append(out, elements[start:end])
	}
	return out
}

func find(batch []*layout.Element, id string) *layout.Element {
	for _, e := range batch {
		if e.ID == id {
			return e
		}
	}
	return nil
}
