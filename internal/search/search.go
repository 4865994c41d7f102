// Package search orchestrates exhaustive grid-based radius searches:
// partition, per-cell rate-limited paginated fetch, cross-cell merge and
// radius refinement, then enrichment and client-side date filtering.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/catastropr/gridsearch/internal/arcgis"
	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/core/observability"
	"github.com/catastropr/gridsearch/internal/enrich"
	"github.com/catastropr/gridsearch/internal/fetch"
	"github.com/catastropr/gridsearch/internal/grid"
	"github.com/catastropr/gridsearch/internal/lookup"
	"github.com/catastropr/gridsearch/internal/refine"
)

const DefaultGridSize = 3

// Center is either explicit coordinates or a catastro number to resolve.
type Center struct {
	Coord    *model.Coordinate
	Catastro string
}

// Result is what every search returns: the final record sequence plus any
// completeness advisories. A failed center lookup yields an empty result
// with Cause set rather than an error, so batch callers keep going.
type Result struct {
	Records    []model.PropertyRecord `json:"records"`
	Advisories []model.Advisory       `json:"advisories,omitempty"`
	Cause      string                 `json:"cause,omitempty"`
}

// Searcher owns one search pipeline. The injected client is expected to be
// rate-limited (fetch.Limited) and optionally cached; the searcher itself
// only adds the cooperative inter-cell jitter on top.
type Searcher struct {
	logger   *slog.Logger
	client   fetch.PageClient
	fetcher  *fetch.Fetcher
	resolver *lookup.Resolver

	gridSize int

	// jitter returns the randomized pause inserted between cell queries.
	jitter func() time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(logger *slog.Logger, client fetch.PageClient, fetcher *fetch.Fetcher, resolver *lookup.Resolver, gridSize int) *Searcher {
	if gridSize < 1 {
		gridSize = DefaultGridSize
	}
	return &Searcher{
		logger:   logger,
		client:   client,
		fetcher:  fetcher,
		resolver: resolver,
		gridSize: gridSize,
		jitter:   defaultJitter,
		sleep:    ctxSleep,
	}
}

// defaultJitter spreads cell queries over 0.5–1.5s pauses to avoid request
// bursts against the registry.
func defaultJitter() time.Duration {
	return 500*time.Millisecond + time.Duration(rand.Float64()*float64(time.Second))
}

// GridRadius runs the exhaustive radius search around center. A cell whose
// fetch fails contributes whatever was retrieved before the failure and
// never aborts the remaining cells; context cancellation does.
func (s *Searcher) GridRadius(ctx context.Context, center Center, radiusMiles float64, filters model.FilterSet) (*Result, error) {
	c, res, err := s.resolveCenter(ctx, center)
	if err != nil || res != nil {
		return res, err
	}

	cells, err := grid.Build(c, radiusMiles, s.gridSize)
	if err != nil {
		return nil, err
	}
	s.logger.Info("grid built",
		"cells", len(cells),
		"grid", s.gridSize,
		"radius_miles", radiusMiles)

	capThreshold := s.fetcher.PageSize * s.fetcher.MaxPages
	cellResults := make([][]model.PropertyRecord, 0, len(cells))
	var advisories []model.Advisory
	var dates model.DateRange

	for i, cell := range cells {
		if i > 0 {
			if serr := s.sleep(ctx, s.jitter()); serr != nil {
				return nil, serr
			}
		}

		desc, cellDates, berr := arcgis.BuildCellQuery(cell, filters)
		if berr != nil {
			return nil, berr
		}
		dates = cellDates

		records, capped, ferr := s.fetcher.FetchAll(ctx, s.client, desc)
		if ferr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Contained at the cell boundary: keep the partial page run.
			s.logger.Warn("cell fetch failed, continuing with remaining cells",
				"cell", i+1,
				"records_kept", len(records),
				"err", ferr)
		}
		if capped {
			observability.IncCellAtCap()
			advisories = append(advisories, model.Advisory{
				Cell:    i + 1,
				Records: len(records),
				Message: fmt.Sprintf(
					"cell %d hit the %d-record fetch cap; results may be incomplete, retry with a %dx%d grid",
					i+1, capThreshold, s.gridSize+2, s.gridSize+2),
			})
		}

		cellResults = append(cellResults, records)
		s.logger.Debug("cell queried",
			"cell", i+1,
			"records", len(records),
			"capped", capped)
	}

	records := refine.MergeAndFilter(cellResults, c, radiusMiles)
	enrich.Apply(records, &c)
	records = enrich.FilterBySaleDate(records, dates)

	s.logger.Info("search complete",
		"within_radius", len(records),
		"advisories", len(advisories))
	return &Result{Records: records, Advisories: advisories}, nil
}

// Municipio searches a whole municipality by attribute predicate alone.
func (s *Searcher) Municipio(ctx context.Context, municipio string, filters model.FilterSet) (*Result, error) {
	if municipio == "" {
		return nil, model.InvalidArgumentf("municipio is empty")
	}

	withMunicipio := filters
	withMunicipio.Exact = append([]model.ExactMatch{{Field: model.FieldMunicipio, Value: municipio}}, filters.Exact...)

	desc, dates := arcgis.BuildAttributeQuery(withMunicipio)
	records, capped, err := s.fetcher.FetchAll(ctx, s.client, desc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("municipio fetch failed, returning partial results",
			"municipio", municipio,
			"records_kept", len(records),
			"err", err)
	}

	var advisories []model.Advisory
	if capped {
		observability.IncCellAtCap()
		advisories = append(advisories, model.Advisory{
			Records: len(records),
			Message: fmt.Sprintf("municipio query hit the %d-record fetch cap; narrow the filters",
				s.fetcher.PageSize*s.fetcher.MaxPages),
		})
	}

	enrich.Apply(records, nil)
	records = enrich.FilterBySaleDate(records, dates)
	return &Result{Records: records, Advisories: advisories}, nil
}

// Catastro fetches and enriches a single parcel.
func (s *Searcher) Catastro(ctx context.Context, number string) (*Result, error) {
	rec, err := s.resolver.Parcel(ctx, number)
	if err != nil {
		if errors.Is(err, model.ErrLookupFailed) {
			return &Result{Cause: err.Error()}, nil
		}
		return nil, err
	}
	records := []model.PropertyRecord{rec}
	enrich.Apply(records, nil)
	return &Result{Records: records}, nil
}

func (s *Searcher) resolveCenter(ctx context.Context, center Center) (model.Coordinate, *Result, error) {
	if center.Coord != nil {
		if !center.Coord.Valid() {
			return model.Coordinate{}, nil, model.InvalidArgumentf("center out of range: %s", center.Coord)
		}
		return *center.Coord, nil, nil
	}
	if center.Catastro == "" {
		return model.Coordinate{}, nil, model.InvalidArgumentf("center requires coordinates or a catastro number")
	}

	c, err := s.resolver.Coordinates(ctx, center.Catastro)
	if err != nil {
		if errors.Is(err, model.ErrLookupFailed) {
			s.logger.Warn("center lookup failed", "catastro", center.Catastro, "err", err)
			return model.Coordinate{}, &Result{Cause: err.Error()}, nil
		}
		return model.Coordinate{}, nil, err
	}
	return c, nil, nil
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
