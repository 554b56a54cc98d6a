package locate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/ui-locate-mcp/internal/cache"
	"github.com/ironsheep/ui-locate-mcp/internal/imaging"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/match"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

var (
	// ErrDetect wraps detector failures.
	ErrDetect = errors.New("element detection failed")

	// ErrNormalize wraps query normalization failures.
	ErrNormalize = errors.New("query normalization failed")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// Service wires the collaborators of a locate request.
type Service struct {
	detector   perception.Detector
	normalizer perception.Normalizer
	builder    *layout.Builder
	store      cache.Store
	pipeline   *match.Pipeline
	timeout    time.Duration
	logger     *zap.Logger

	// builds collapses concurrent cache misses for the same image.
	builds singleflight.Group
}

// Options configures a Service.
type Options struct {
	Detector   perception.Detector
	Normalizer perception.Normalizer
	Builder    *layout.Builder
	Store      cache.Store
	Pipeline   *match.Pipeline

	// Timeout bounds one Locate call. Zero means only the caller's context
	// applies.
	Timeout time.Duration
}

// New creates a Service. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		detector:   opts.Detector,
		normalizer: opts.Normalizer,
		builder:    opts.Builder,
		store:      opts.Store,
		pipeline:   opts.Pipeline,
		timeout:    opts.Timeout,
		logger:     logger,
	}
}

// Artifacts is a hierarchy and where it came from.
type Artifacts struct {
	ImageHash string
	Cached    bool
	Hierarchy *layout.Hierarchy
}

// Outcome is the result of Locate.
type Outcome struct {
	ImageHash string                      `json:"image_hash"`
	Cached    bool                        `json:"cached"`
	Query     *perception.NormalizedQuery `json:"query"`
	Result    *match.Result               `json:"result"`
}

// Locate finds the element of the screenshot image that best matches query.
//
// A request that times out inside the pipeline returns both a partial
// Outcome and an error wrapping match.ErrStageTimeout.
func (s *Service) Locate(ctx context.Context, image []byte, query string) (*Outcome, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var (
		art *Artifacts
		q   *perception.NormalizedQuery
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		art, err = s.Artifacts(gctx, image)
		return err
	})
	g.Go(func() error {
		var err error
		q, err = s.normalizer.Normalize(gctx, query)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNormalize, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The pipeline writes semantics onto elements; keep the cached copy clean.
	res, err := s.pipeline.Run(ctx, art.Hierarchy.Clone(), q)
	out := &Outcome{ImageHash: art.ImageHash, Cached: art.Cached, Query: q, Result: res}
	if err != nil {
		return out, err
	}

	s.logger.Info("locate finished",
		zap.String("image_hash", art.ImageHash),
		zap.Bool("cached", art.Cached),
		zap.Bool("found", res.Found),
		zap.Bool("relaxed", res.Relaxed),
		zap.Int("candidates", len(res.CandidateIDs)))
	return out, nil
}

// Artifacts returns the hierarchy for image, from the cache when possible.
// A fresh hierarchy is written back to the cache; a failed write is logged
// and does not fail the call.
//
// Concurrent misses for the same image share one build and receive the
// same hierarchy, which callers must treat as read-only. The build is
// detached from every caller's cancellation and bounded by the service
// timeout only; a caller whose context ends stops waiting without failing
// the others.
func (s *Service) Artifacts(ctx context.Context, image []byte) (*Artifacts, error) {
	hash := cache.Hash(image)

	if e, ok := s.store.Get(ctx, hash); ok {
		s.logger.Debug("artifact cache hit", zap.String("image_hash", hash))
		return &Artifacts{ImageHash: hash, Cached: true, Hierarchy: e.Hierarchy}, nil
	}
	s.logger.Debug("artifact cache miss", zap.String("image_hash", hash))

	ch := s.builds.DoChan(hash, func() (any, error) {
		bctx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			bctx, cancel = context.WithTimeout(bctx, s.timeout)
			defer cancel()
		}

		h, err := s.build(bctx, image)
		if err != nil {
			return nil, err
		}
		if err := s.store.Put(bctx, hash, h); err != nil {
			s.logger.Warn("failed to cache hierarchy", zap.String("image_hash", hash), zap.Error(err))
		}
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.logger.Debug("shared hierarchy build", zap.String("image_hash", hash))
		}
		return &Artifacts{ImageHash: hash, Hierarchy: r.Val.(*layout.Hierarchy)}, nil
	}
}

func (s *Service) build(ctx context.Context, image []byte) (*layout.Hierarchy, error) {
	img, err := imaging.Decode(image)
	if err != nil {
		return nil, err
	}

	det, err := s.detector.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetect, err)
	}

	width, height := det.Width, det.Height
	b := img.Bounds()
	if width != b.Dx() || height != b.Dy() {
		s.logger.Warn("detector reported a different image size, using decoded size",
			zap.Int("reported_width", width), zap.Int("reported_height", height),
			zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))
		width, height = b.Dx(), b.Dy()
	}

	h, err := s.builder.Build(clipDetections(det.Detections, width, height), width, height)
	if err != nil {
		return nil, err
	}
	if err := imaging.AttachCrops(img, h); err != nil {
		return nil, err
	}
	return h, nil
}

// clipDetections restricts boxes to the image and drops the ones left
// without area. Invalid boxes pass through for the builder to reject.
func clipDetections(dets []layout.Detection, width, height int) []layout.Detection {
	out := make([]layout.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Box.Valid() {
			d.Box = d.Box.Clip(width, height)
			if !d.Box.Valid() {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// Evict drops the cached hierarchy of image.
func (s *Service) Evict(ctx context.Context, image []byte) (string, error) {
	hash := cache.Hash(image)
	if err := s.store.Evict(ctx, hash); err != nil {
		return hash, fmt.Errorf("failed to evict %s: %w", hash, err)
	}
	return hash, nil
}
