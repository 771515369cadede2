package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/utils"
)

const (
	defaultCacheSize = 512
	// Bounds a shared lookup once it no longer follows any caller's context
	defaultLookupTimeout = 15 * time.Second
)

// Service tries each resolver in order, caches successful lookups by
// canonical reference and collapses concurrent lookups of the same link.
type Service struct {
	resolvers []Resolver
	cache     *lru.Cache[string, models.Metadata]
	group     singleflight.Group

	// HTTPClient fetches thumbnails for colour extraction. Nil disables it.
	HTTPClient *http.Client
	// NewBackOff builds the retry policy for a single resolver call.
	NewBackOff func() backoff.BackOff
	// LookupTimeout bounds a lookup shared by concurrent callers.
	LookupTimeout time.Duration
}

func NewService(resolvers ...Resolver) *Service {
	cache, err := lru.New[string, models.Metadata](defaultCacheSize)
	if err != nil {
		// Only fails for a non-positive size
		panic(err)
	}
	return &Service{
		resolvers:  resolvers,
		cache:      cache,
		HTTPClient: utils.NewHTTPClient(),
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
		},
		LookupTimeout: defaultLookupTimeout,
	}
}

func (s *Service) Resolve(ctx context.Context, ref Ref) (models.Metadata, error) {
	if meta, ok := s.cache.Get(ref.Canonical); ok {
		return meta, nil
	}

	// The lookup is shared, so it must outlive whichever caller started it.
	// Each caller still stops waiting when its own context ends.
	ch := s.group.DoChan(ref.Canonical, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.LookupTimeout)
		defer cancel()
		meta, err := s.resolve(lookupCtx, ref)
		if err != nil {
			return meta, err
		}
		s.cache.Add(ref.Canonical, meta)
		return meta, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return models.Metadata{}, res.Err
		}
		return res.Val.(models.Metadata), nil
	case <-ctx.Done():
		return models.Metadata{}, ctx.Err()
	}
}

func (s *Service) resolve(ctx context.Context, ref Ref) (models.Metadata, error) {
	var errs []error
	for _, r := range s.resolvers {
		var meta models.Metadata
		op := func() error {
			var err error
			meta, err = r.Resolve(ctx, ref)
			if err != nil && !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		err := backoff.Retry(op, backoff.WithContext(s.NewBackOff(), ctx))
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if meta.Thumbnail == "" {
			meta.Thumbnail = ref.Thumbnail()
		}
		s.attachColours(ctx, &meta)
		return meta, nil
	}
	if len(errs) == 0 {
		return models.Metadata{}, fmt.Errorf("%w: no resolver for %s", ErrResolverUnavailable, ref.Canonical)
	}
	return models.Metadata{}, fmt.Errorf("%w: %w", ErrResolverUnavailable, errors.Join(errs...))
}

func (s *Service) attachColours(ctx context.Context, meta *models.Metadata) {
	if s.HTTPClient == nil || meta.Thumbnail == "" {
		return
	}
	colours, err := utils.ExtractDominantColours(ctx, s.HTTPClient, meta.Thumbnail)
	if err != nil {
		slog.Debug("Failed to extract thumbnail colours",
			slog.String("error", err.Error()),
			slog.String("image_url", meta.Thumbnail),
		)
		return
	}
	meta.DominantColours = colours
}
