package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/metrics"
)

// Stats summarizes how vectors were produced during a run
type Stats struct {
	CacheHits        int64
	PrimarySuccesses int64
	Fallbacks        int64
	PrimaryDegraded  bool
}

// Service combines a primary provider, the offline fallback and a per-run cache.
//
// Once the primary fails the Service degrades to the fallback for the rest of
// its lifetime and Model changes to the fallback's name. Callers holding
// vectors across calls compare Model before and after to detect the switch;
// EmbedBatch does this itself and never mixes the two spaces.
type Service struct {
	primary  Provider
	fallback *HashedProvider
	cache    *Cache
	limiter  *rate.Limiter
	cfg      Config

	degraded         atomic.Bool
	cacheHits        atomic.Int64
	primarySuccesses atomic.Int64
	fallbacks        atomic.Int64
}

var _ Provider = (*Service)(nil)

// NewService creates an embedding service. primary may be nil for offline operation.
func NewService(primary Provider, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding config: %w", err)
	}
	limit := rate.Inf
	if cfg.ChunkDelay > 0 {
		limit = rate.Every(cfg.ChunkDelay)
	}
	return &Service{
		primary:  primary,
		fallback: NewHashedProvider(cfg.Dimensions),
		cache:    NewCache(cfg.CachePrefixLen),
		limiter:  rate.NewLimiter(limit, 1),
		cfg:      cfg,
	}, nil
}

// NewServiceFromConfig wires the HTTP primary when cfg.BaseURL is set
func NewServiceFromConfig(cfg Config) (*Service, error) {
	var primary Provider
	if cfg.BaseURL != "" {
		p, err := NewHTTPProvider(cfg)
		if err != nil {
			return nil, err
		}
		primary = p
	}
	return NewService(primary, cfg)
}

// Model returns the model currently producing vectors
func (s *Service) Model() string {
	if s.usePrimary() {
		return s.primary.Model()
	}
	return s.fallback.Model()
}

func (s *Service) usePrimary() bool {
	return s.primary != nil && !s.degraded.Load()
}

// Embed returns the vector for text. It never fails because of the primary
// provider; errors are logged and the offline vector is returned instead.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	model := s.Model()
	key := s.cache.Key(model, text)
	if v, ok := s.cache.Get(key); ok {
		s.cacheHits.Add(1)
		metrics.EmbeddingRequests.WithLabelValues("cache").Inc()
		return v, nil
	}

	if s.usePrimary() {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		vec, err := s.primary.Embed(reqCtx, text)
		cancel()
		if err == nil && len(vec) != s.cfg.Dimensions {
			err = fmt.Errorf("%s returned %d dims, expected %d", s.primary.Model(), len(vec), s.cfg.Dimensions)
		}
		if err == nil {
			s.primarySuccesses.Add(1)
			metrics.EmbeddingRequests.WithLabelValues("primary").Inc()
			s.cache.Put(key, vec)
			return vec, nil
		}
		if s.degraded.CompareAndSwap(false, true) {
			logging.Warnf("[EMBED] Primary provider %s failed, using %s for the rest of the run: %v",
				s.primary.Model(), s.fallback.Model(), err)
		}
		key = s.cache.Key(s.fallback.Model(), text)
		if v, ok := s.cache.Get(key); ok {
			s.cacheHits.Add(1)
			return v, nil
		}
	}

	vec, _ := s.fallback.Embed(ctx, text)
	s.fallbacks.Add(1)
	metrics.EmbeddingRequests.WithLabelValues("fallback").Inc()
	s.cache.Put(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts in fixed-size chunks. Items inside a chunk are
// embedded concurrently; chunks sent to the primary are paced by ChunkDelay.
// If the primary fails partway, the whole batch is redone with the fallback
// so every returned vector comes from the same model.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	primary := s.usePrimary()
	out, err := s.embedChunks(ctx, texts)
	if err != nil {
		return nil, err
	}
	if primary && !s.usePrimary() {
		logging.Warnf("[EMBED] Primary degraded during a batch of %d, re-embedding with %s",
			len(texts), s.fallback.Model())
		return s.embedChunks(ctx, texts)
	}
	return out, nil
}

func (s *Service) embedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	size := s.cfg.BatchSize

	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}

		if s.usePrimary() {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("embedding batch interrupted: %w", err)
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(size)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				vec, err := s.Embed(gctx, texts[i])
				if err != nil {
					return err
				}
				out[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Stats returns counters for the current run
func (s *Service) Stats() Stats {
	return Stats{
		CacheHits:        s.cacheHits.Load(),
		PrimarySuccesses: s.primarySuccesses.Load(),
		Fallbacks:        s.fallbacks.Load(),
		PrimaryDegraded:  s.degraded.Load(),
	}
}
