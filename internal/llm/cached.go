package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/broadlistening/internal/cache"
	"github.com/ppiankov/broadlistening/internal/metrics"
)

// CachedClient serves repeated requests from a response cache.
// Only successful responses are stored.
type CachedClient struct {
	next    Client
	cache   cache.Cache
	ttl     time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewCachedClient wraps next with a response cache
func NewCachedClient(next Client, c cache.Cache, ttl time.Duration, log zerolog.Logger, m *metrics.Metrics) *CachedClient {
	return &CachedClient{
		next:    next,
		cache:   c,
		ttl:     ttl,
		log:     log,
		metrics: m,
	}
}

// Name returns the wrapped provider name
func (c *CachedClient) Name() string {
	return c.next.Name()
}

// Send returns a cached response when one exists, otherwise forwards the request
func (c *CachedClient) Send(ctx context.Context, req Request) (*Response, error) {
	key := requestKey(c.next.Name(), req)

	if data, ok := c.cache.Get(key); ok {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			c.metrics.RecordCacheHit()
			c.log.Debug().Str("model", req.Model).Msg("response served from cache")
			return &resp, nil
		}
		c.log.Warn().Msg("discarding unreadable cache entry")
		_ = c.cache.Delete(key)
	}

	resp, err := c.next.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to encode response for cache")
		return resp, nil
	}
	if err := c.cache.Set(key, data, c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("failed to store response in cache")
	}

	return resp, nil
}

// requestKey identifies a request by everything that affects the reply
func requestKey(provider string, req Request) string {
	parts := []string{
		provider,
		req.Model,
		strconv.FormatBool(req.JSON),
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(float64(req.Temperature), 'g', -1, 32),
	}
	for _, m := range req.Messages {
		parts = append(parts, m.Role, m.Content)
	}
	return cache.Key(parts...)
}
