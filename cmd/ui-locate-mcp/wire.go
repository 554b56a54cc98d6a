package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/cache"
	"github.com/ironsheep/ui-locate-mcp/internal/config"
	"github.com/ironsheep/ui-locate-mcp/internal/detection"
	"github.com/ironsheep/ui-locate-mcp/internal/imaging"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/locate"
	"github.com/ironsheep/ui-locate-mcp/internal/match"
	"github.com/ironsheep/ui-locate-mcp/internal/ocr"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// app holds the wired service and what must be released on exit.
type app struct {
	service *locate.Service
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	store, err := buildStore(ctx, cfg.Cache, logger, a)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	client := perception.NewClient(perception.ClientOptions{
		BaseURL:     cfg.Perception.BaseURL,
		DetectorURL: cfg.Perception.DetectorURL,
		Timeout:     cfg.Perception.Timeout,
		MaxConns:    cfg.Perception.MaxConns,
		RateLimit:   cfg.Perception.RateLimit,
	}, logger.Named("perception"))
	a.closers = append(a.closers, func() error { client.Close(); return nil })

	opts := match.Options{
		BatchSize:       cfg.Pipeline.BatchSize,
		Concurrency:     cfg.Pipeline.Concurrency,
		EnrichNeighbors: cfg.Pipeline.EnrichNeighbors,
	}
	if cfg.Pipeline.ColorFallback {
		opts.ColorNamer = imaging.NameCropColor
	}

	a.service = locate.New(locate.Options{
		Detector:   buildDetector(cfg.Detector, client, logger),
		Normalizer: client,
		Builder:    layout.NewBuilder(cfg.Layout, logger.Named("layout")),
		Store:      store,
		Pipeline:   match.New(client, opts, logger.Named("match")),
		Timeout:    cfg.Pipeline.Timeout,
	}, logger.Named("locate"))
	return a, nil
}

// buildStore creates the configured cache backend. Redis is pinged so a bad
// address fails at startup rather than on the first request.
func buildStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger, a *app) (cache.Store, error) {
	newMemory := func() *cache.Memory {
		m := cache.NewMemory(cfg.TTL,
			cache.WithMaxEntries(cfg.MaxEntries),
			cache.WithLogger(logger.Named("cache")))
		m.StartSweeper(ctx, cfg.SweepInterval)
		return m
	}
	newRedis := func() (*cache.Redis, error) {
		r := cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.TTL,
		}, logger.Named("cache"))
		a.closers = append(a.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		return r, nil
	}

	switch cfg.Backend {
	case config.CacheRedis:
		return newRedis()
	case config.CacheTiered:
		r, err := newRedis()
		if err != nil {
			return nil, err
		}
		return cache.NewTiered(newMemory(), r), nil
	default:
		return newMemory(), nil
	}
}

// buildDetector picks the detection chain for the configured mode. OCR, when
// enabled, always runs as a secondary.
func buildDetector(cfg config.DetectorConfig, remote perception.Detector, logger *zap.Logger) perception.Detector {
	var secondaries []perception.Detector
	local := detection.NewLocal(cfg.Local, logger.Named("detection"))

	var primary perception.Detector
	switch cfg.Mode {
	case config.DetectorLocal:
		primary = local
	case config.DetectorHybrid:
		primary = remote
		secondaries = append(secondaries, local)
	default:
		primary = remote
	}
	if cfg.OCR {
		secondaries = append(secondaries, ocr.NewDetector(cfg.Tesseract, logger.Named("ocr")))
	}

	if len(secondaries) == 0 {
		return primary
	}
	return perception.NewMultiDetector(logger.Named("detect"), primary, secondaries...)
}
