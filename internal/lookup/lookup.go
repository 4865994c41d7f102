// Package lookup resolves catastro numbers against the registry.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/catastropr/gridsearch/internal/arcgis"
	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/fetch"
)

const DefaultCacheSize = 128

// Resolver looks up parcels by catastro number. Resolved coordinates are
// kept in an LRU cache because batch comp runs revisit the same center
// parcels over and over.
type Resolver struct {
	logger *slog.Logger
	client fetch.PageClient
	coords *lru.Cache[string, model.Coordinate]
}

func New(logger *slog.Logger, client fetch.PageClient, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, model.Coordinate](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("lookup cache: %w", err)
	}
	return &Resolver{logger: logger, client: client, coords: cache}, nil
}

// Parcel fetches the full attribute record for one catastro number.
func (r *Resolver) Parcel(ctx context.Context, catastro string) (model.PropertyRecord, error) {
	catastro = strings.TrimSpace(catastro)
	if catastro == "" {
		return nil, model.InvalidArgumentf("catastro number is empty")
	}

	page, err := r.client.FetchPage(ctx, arcgis.BuildParcelQuery(catastro), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: catastro %s: %v", model.ErrLookupFailed, catastro, err)
	}
	if len(page.Features) == 0 {
		return nil, fmt.Errorf("%w: catastro %s: no parcel found", model.ErrLookupFailed, catastro)
	}
	return page.Features[0], nil
}

// Coordinates resolves a catastro number to its parcel centroid.
func (r *Resolver) Coordinates(ctx context.Context, catastro string) (model.Coordinate, error) {
	key := strings.ToLower(strings.TrimSpace(catastro))
	if c, ok := r.coords.Get(key); ok {
		return c, nil
	}

	rec, err := r.Parcel(ctx, catastro)
	if err != nil {
		return model.Coordinate{}, err
	}

	loc, ok := rec.Location()
	if !ok {
		return model.Coordinate{}, fmt.Errorf("%w: catastro %s: parcel has no coordinates", model.ErrLookupFailed, catastro)
	}

	r.coords.Add(key, loc)
	r.logger.Debug("catastro resolved",
		"catastro", catastro,
		"lat", loc.Lat,
		"lon", loc.Lon)
	return loc, nil
}
