package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/core/observability"
	"github.com/catastropr/gridsearch/internal/search"
)

// RadiusSearcher serves validated radius search requests.
type RadiusSearcher interface {
	GridRadius(ctx context.Context, center search.Center, radiusMiles float64, filters model.FilterSet) (*search.Result, error)
}

// HandleSearch validates request parameters and runs one blocking search.
func HandleSearch(logger *slog.Logger, s RadiusSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		center, radius, filters, err := ParseSearchRequest(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/search", sw.code, time.Since(start).Seconds())
			return
		}

		res, err := s.GridRadius(r.Context(), center, radius, filters)
		switch {
		case errors.Is(err, model.ErrInvalidArgument):
			http.Error(sw, err.Error(), http.StatusBadRequest)
		case err != nil:
			logger.Error("search failed", "err", err)
			http.Error(sw, "search failed: "+err.Error(), http.StatusBadGateway)
		default:
			sw.Header().Set("Content-Type", "application/json")
			if res.Records == nil {
				res.Records = []model.PropertyRecord{}
			}
			_ = json.NewEncoder(sw).Encode(res)
		}
		observability.ObserveHTTP(r.Method, "/search", sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseSearchRequest converts the flat query string into the typed search
// inputs. Suffix-keyed filter parameters only exist at this boundary.
func ParseSearchRequest(r *http.Request) (search.Center, float64, model.FilterSet, error) {
	q := r.URL.Query()

	var center search.Center
	latStr := strings.TrimSpace(q.Get("lat"))
	lonStr := strings.TrimSpace(q.Get("lon"))
	catastro := strings.TrimSpace(q.Get("catastro"))

	switch {
	case latStr != "" && lonStr != "":
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return center, 0, model.FilterSet{}, model.InvalidArgumentf("lat: %v", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return center, 0, model.FilterSet{}, model.InvalidArgumentf("lon: %v", err)
		}
		c := model.Coordinate{Lat: lat, Lon: lon}
		if !c.Valid() {
			return center, 0, model.FilterSet{}, model.InvalidArgumentf("center out of range: %s", c)
		}
		center.Coord = &c
	case catastro != "":
		center.Catastro = catastro
	default:
		return center, 0, model.FilterSet{}, model.InvalidArgumentf("provide lat+lon or catastro")
	}

	radiusStr := strings.TrimSpace(q.Get("radius"))
	if radiusStr == "" {
		return center, 0, model.FilterSet{}, model.InvalidArgumentf("radius is required")
	}
	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil || radius <= 0 {
		return center, 0, model.FilterSet{}, model.InvalidArgumentf("radius must be a positive number of miles")
	}

	params := map[string]any{}
	if v := strings.TrimSpace(q.Get("municipio")); v != "" {
		params[model.FieldMunicipio] = v
	}
	for qk, field := range map[string]string{
		"min_price":  model.FieldSaleAmt + "_MIN",
		"max_price":  model.FieldSaleAmt + "_MAX",
		"min_cabida": model.FieldCabida + "_MIN",
		"max_cabida": model.FieldCabida + "_MAX",
	} {
		if v := strings.TrimSpace(q.Get(qk)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return center, 0, model.FilterSet{}, model.InvalidArgumentf("%s: %v", qk, err)
			}
			params[field] = f
		}
	}
	if v := strings.TrimSpace(q.Get("min_date")); v != "" {
		params[model.FieldSaleDate+"_MIN"] = v
	}
	if v := strings.TrimSpace(q.Get("max_date")); v != "" {
		params[model.FieldSaleDate+"_MAX"] = v
	}

	return center, radius, model.FiltersFromParams(params), nil
}
