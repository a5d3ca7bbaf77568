package preview

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/fetcher"
	"github.com/JakeFAU/hnreader/internal/storage"
	"github.com/JakeFAU/hnreader/internal/telemetry"
)

// Service sequences the preview pipeline: cache lookup, partial fetch, extraction,
// sanitization, and a best-effort cache write. It holds no locks; concurrent misses for
// the same URL are reconciled by the cache's unique key.
type Service struct {
	hasher    Hasher
	cache     Cache
	fetcher   Fetcher
	extractor Extractor
	sanitizer Sanitizer
	limiter   Limiter
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService wires the pipeline collaborators. The limiter may be nil.
func NewService(
	hasher Hasher,
	cache Cache,
	fetch Fetcher,
	extractor Extractor,
	sanitizer Sanitizer,
	limiter Limiter,
	logger *zap.Logger,
) (*Service, error) {
	if hasher == nil || cache == nil || fetch == nil || extractor == nil || sanitizer == nil {
		return nil, errors.New("preview service requires hasher, cache, fetcher, extractor, and sanitizer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		hasher:    hasher,
		cache:     cache,
		fetcher:   fetch,
		extractor: extractor,
		sanitizer: sanitizer,
		limiter:   limiter,
		logger:    logger.Named("preview"),
		tracer:    telemetry.Tracer(),
	}, nil
}

// PreviewFromURL returns the preview for rawURL and whether one could be produced.
// Cached rows are returned without touching the network. Every failure collapses to
// (Preview{}, false); cache write failures are logged and do not affect the result.
func (s *Service) PreviewFromURL(ctx context.Context, rawURL string) (Preview, bool) {
	ctx, span := s.tracer.Start(ctx, "preview.FromURL", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	urlHash := s.hasher.Hash(rawURL)
	logger := s.logger.With(zap.String("url", rawURL), zap.String("url_hash", urlHash))

	if cached, ok := s.lookup(ctx, logger, urlHash); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cached, true
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	p, err := s.scrape(ctx, rawURL)
	if err != nil {
		logger.Debug("preview unavailable", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Preview{}, false
	}
	if p.IsEmpty() {
		logger.Debug("no preview metadata in document head")
		telemetry.ObservePreviewStore(telemetry.StoreSkipped)
		return Preview{}, false
	}

	s.store(ctx, logger, urlHash, p)
	return p, true
}

func (s *Service) lookup(ctx context.Context, logger *zap.Logger, urlHash string) (Preview, bool) {
	entry, err := s.cache.Find(ctx, urlHash)
	switch {
	case err != nil:
		logger.Warn("preview lookup failed; scraping instead", zap.Error(err))
		telemetry.ObservePreviewLookup(telemetry.LookupError)
		return Preview{}, false
	case entry == nil:
		telemetry.ObservePreviewLookup(telemetry.LookupMiss)
		return Preview{}, false
	default:
		telemetry.ObservePreviewLookup(telemetry.LookupHit)
		return entry.Preview(), true
	}
}

func (s *Service) scrape(ctx context.Context, rawURL string) (Preview, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rawURL); err != nil {
			return Preview{}, fmt.Errorf("wait for rate limit: %w", err)
		}
	}

	ctx, span := s.tracer.Start(ctx, "preview.FetchPartial")
	fragment, err := s.fetcher.FetchPartial(ctx, rawURL)
	span.SetAttributes(attribute.Int("bytes", len(fragment)))
	if err != nil {
		span.SetAttributes(attribute.String("fetch_error_kind", string(fetcher.KindOf(err))))
		span.End()
		return Preview{}, fmt.Errorf("fetch partial html: %w", err)
	}
	span.End()

	p := s.extractor.Extract(fragment)
	if p.Description != nil {
		p.Description = String(s.sanitizer.StripTags(*p.Description))
	}
	return p, nil
}

func (s *Service) store(ctx context.Context, logger *zap.Logger, urlHash string, p Preview) {
	_, err := s.cache.Store(ctx, urlHash, p)
	switch {
	case err == nil:
		telemetry.ObservePreviewStore(telemetry.StoreOK)
	case storage.IsConflict(err):
		logger.Debug("preview already cached by a concurrent request", zap.Error(err))
		telemetry.ObservePreviewStore(telemetry.StoreConflict)
	default:
		logger.Warn("failed to cache preview", zap.Error(err))
		telemetry.ObservePreviewStore(telemetry.StoreError)
	}
}
