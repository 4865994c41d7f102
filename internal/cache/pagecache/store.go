// Package pagecache is an optional Redis-backed cache of registry result
// pages. Comp analysis reruns the same area repeatedly; caching pages under
// a TTL spares the rate-limit budget. Cache trouble never fails a search —
// every error path degrades to a backend fetch.
package pagecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catastropr/gridsearch/internal/arcgis"
	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/core/observability"
	"github.com/catastropr/gridsearch/internal/fetch"
)

type Store struct {
	rdb       *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

func NewStore(ctx context.Context, addr string, ttl, opTimeout time.Duration) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Store{rdb: rdb, ttl: ttl, opTimeout: opTimeout}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	b, err := s.rdb.Get(opCtx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return b, true, nil
}

func (s *Store) put(ctx context.Context, key string, body []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.rdb.Set(opCtx, key, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

// Wrap decorates a PageClient with the page cache.
func Wrap(logger *slog.Logger, inner fetch.PageClient, store *Store) fetch.PageClient {
	return &cachingClient{logger: logger, inner: inner, store: store}
}

type cachingClient struct {
	logger *slog.Logger
	inner  fetch.PageClient
	store  *Store
}

var _ fetch.PageClient = (*cachingClient)(nil)

func (c *cachingClient) FetchPage(ctx context.Context, d arcgis.Descriptor, offset, count int) (*arcgis.Page, error) {
	key := Key(d, offset, count)

	if body, ok, err := c.store.get(ctx, key); err != nil {
		observability.IncCacheError()
		c.logger.Warn("page cache read failed", "err", err)
	} else if ok {
		var feats []model.PropertyRecord
		if uerr := json.Unmarshal(body, &feats); uerr == nil {
			observability.IncCacheHit()
			return &arcgis.Page{Features: feats}, nil
		}
		// Unreadable entry: treat as miss and let the fresh fetch overwrite it.
		observability.IncCacheError()
	}

	observability.IncCacheMiss()
	page, err := c.inner.FetchPage(ctx, d, offset, count)
	if err != nil {
		return nil, err
	}

	if body, merr := json.Marshal(page.Features); merr == nil {
		if perr := c.store.put(ctx, key, body); perr != nil {
			observability.IncCacheError()
			c.logger.Warn("page cache write failed", "err", perr)
		}
	}
	return page, nil
}
