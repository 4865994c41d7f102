// Package fetch drains one query's result pages from the registry.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/catastropr/gridsearch/internal/arcgis"
	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/core/observability"
)

// PageClient performs one request/response exchange against the registry.
type PageClient interface {
	FetchPage(ctx context.Context, d arcgis.Descriptor, offset, count int) (*arcgis.Page, error)
}

// Waiter blocks until the caller may issue one more outbound call.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Progress receives per-page progress: the 1-based page number and the
// records accumulated so far. Purely observational.
type Progress func(page, total int)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 10
)

// Fetcher pages through one query with increasing offsets until a short page
// signals the end of data, or MaxPages caps the fetch. The cap bounds
// resource use per query; it is also the source of incompleteness that grid
// partitioning exists to compensate for.
type Fetcher struct {
	Logger   *slog.Logger
	PageSize int
	MaxPages int

	// PageDelay is a cooperative inter-page pause, not a hard rate limit.
	PageDelay time.Duration
	Sleep     func(ctx context.Context, d time.Duration) error
	Progress  Progress
}

func New(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		Logger:    logger,
		PageSize:  DefaultPageSize,
		MaxPages:  DefaultMaxPages,
		PageDelay: time.Second,
	}
}

// FetchAll accumulates every page of one query. capped reports whether the
// fetch ended by hitting MaxPages with a full final page, meaning the
// backend may hold more records than were retrieved. On error the records
// fetched before the failure are returned alongside it.
func (f *Fetcher) FetchAll(ctx context.Context, c PageClient, d arcgis.Descriptor) (records []model.PropertyRecord, capped bool, err error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := f.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	sleep := f.Sleep
	if sleep == nil {
		sleep = ctxSleep
	}

	for page := 0; page < maxPages; page++ {
		if page > 0 && f.PageDelay > 0 {
			if serr := sleep(ctx, f.PageDelay); serr != nil {
				return records, false, serr
			}
		}

		offset := page * pageSize
		p, perr := c.FetchPage(ctx, d, offset, pageSize)
		if perr != nil {
			f.Logger.Warn("page fetch failed",
				"page", page+1,
				"offset", offset,
				"err", perr)
			return records, false, perr
		}

		observability.IncPageFetched()
		records = append(records, p.Features...)

		if f.Progress != nil {
			f.Progress(page+1, len(records))
		}
		f.Logger.Debug("page retrieved",
			"page", page+1,
			"records", len(p.Features),
			"total", len(records))

		if len(p.Features) < pageSize {
			return records, false, nil
		}
	}

	// Every allowed page came back full; the backend may have been cut off.
	return records, true, nil
}

// Limited decorates a PageClient so every outbound page fetch first takes a
// slot from the shared rate limiter.
func Limited(c PageClient, w Waiter) PageClient {
	return &limitedClient{inner: c, waiter: w}
}

type limitedClient struct {
	inner  PageClient
	waiter Waiter
}

func (l *limitedClient) FetchPage(ctx context.Context, d arcgis.Descriptor, offset, count int) (*arcgis.Page, error) {
	if err := l.waiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.FetchPage(ctx, d, offset, count)
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
