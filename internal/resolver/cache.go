package resolver

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const (
	DefaultMinTTL      = 10 * time.Second
	DefaultMaxTTL      = 5 * time.Minute
	DefaultNegativeTTL = 30 * time.Second
)

// CacheOptions bounds the CNAME answer cache.
type CacheOptions struct {
	MaxEntries  int64
	MinTTL      time.Duration // always cache answers for at least this long
	MaxTTL      time.Duration // never cache answers for longer than this
	NegativeTTL time.Duration // cache empty answer sets for this long
}

// CachedResolver caches successful lookups of another CNAMEResolver, keyed by the
// canonical name. Failed lookups are never cached.
type CachedResolver struct {
	next        CNAMEResolver
	cache       *ristretto.Cache
	minTTL      time.Duration
	maxTTL      time.Duration
	negativeTTL time.Duration
	count       atomic.Uint64
	hits        atomic.Uint64
	log         *zap.Logger
}

// NewCachedResolver wraps next with a bounded TTL cache.
func NewCachedResolver(next CNAMEResolver, opts CacheOptions, logger *zap.Logger) (*CachedResolver, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 10000
	}
	if opts.MinTTL <= 0 {
		opts.MinTTL = DefaultMinTTL
	}
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = DefaultMaxTTL
	}
	if opts.MaxTTL < opts.MinTTL {
		opts.MaxTTL = opts.MinTTL
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.MaxEntries * 10,
		MaxCost:     opts.MaxEntries,
		BufferItems: 64,
		// cost is one per name, so MaxCost is an entry count
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}

	return &CachedResolver{
		next:        next,
		cache:       cache,
		minTTL:      opts.MinTTL,
		maxTTL:      opts.MaxTTL,
		negativeTTL: opts.NegativeTTL,
		log:         logger.Named("cache"),
	}, nil
}

// ResolveCNAME returns cached answers for name when present, and otherwise
// delegates to the wrapped resolver and caches its result.
func (c *CachedResolver) ResolveCNAME(ctx context.Context, name string) ([]Answer, error) {
	key := dns.CanonicalName(name)
	c.count.Add(1)

	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return v.([]Answer), nil
	}

	answers, err := c.next.ResolveCNAME(ctx, name)
	if err != nil {
		return nil, err
	}

	ttl := c.ttlFor(answers)
	c.cache.SetWithTTL(key, answers, 1, ttl)
	c.log.Debug("cached CNAME answers", zap.String("name", key), zap.Duration("ttl", ttl))
	return answers, nil
}

// HitRatio returns the hit ratio as a percentage.
func (c *CachedResolver) HitRatio() (n float64) {
	if count := c.count.Load(); count > 0 {
		n = float64(c.hits.Load()*100) / float64(count)
	}
	return
}

// Close stops the cache's background goroutines.
func (c *CachedResolver) Close() {
	c.cache.Close()
}

func (c *CachedResolver) ttlFor(answers []Answer) time.Duration {
	if len(answers) == 0 {
		return c.negativeTTL
	}
	minTTL := uint32(math.MaxUint32)
	for _, a := range answers {
		minTTL = min(minTTL, a.TTL)
	}
	ttl := time.Duration(minTTL) * time.Second
	return min(c.maxTTL, max(c.minTTL, ttl))
}
