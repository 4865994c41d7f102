// Package arcgis builds query descriptors for the CRIM parcel registry and
// executes single page fetches against it.
package arcgis

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/catastropr/gridsearch/internal/core/model"
)

const (
	// outSRWebMercator asks the backend to reproject output geometry; the
	// registry serves de-facto Web Mercator to its own viewer.
	outSRWebMercator = "102100"

	geometryTypePolygon = "esriGeometryPolygon"
	spatialRelIntersect = "esriSpatialRelIntersects"

	wkidWGS84 = 4326
)

// Descriptor is one backend-specific query payload: geometry, WHERE-style
// predicate and output flags. Built per cell, used once.
type Descriptor struct {
	Geometry       string
	GeometryType   string
	SpatialRel     string
	Where          string
	OutSR          string
	ReturnGeometry bool
}

// Values renders the descriptor as request parameters, with pagination
// bounds when count > 0.
func (d Descriptor) Values(offset, count int) url.Values {
	params := url.Values{}
	params.Set("f", "json")
	if d.Geometry != "" {
		params.Set("geometry", d.Geometry)
		params.Set("geometryType", d.GeometryType)
	}
	params.Set("spatialRel", d.SpatialRel)
	if d.Where != "" {
		params.Set("where", d.Where)
	}
	params.Set("returnGeometry", strconv.FormatBool(d.ReturnGeometry))
	params.Set("outFields", "*")
	params.Set("outSR", d.OutSR)
	if count > 0 {
		params.Set("resultOffset", strconv.Itoa(offset))
		params.Set("resultRecordCount", strconv.Itoa(count))
	}
	return params
}

type spatialReference struct {
	WKID int `json:"wkid"`
}

type polygonGeometry struct {
	Rings            [][][2]float64   `json:"rings"`
	SpatialReference spatialReference `json:"spatialReference"`
}

// BuildCellQuery translates one grid cell plus the attribute filters into a
// query descriptor. The sale-date range never enters the WHERE predicate:
// the registry's date semantics are unreliable, so it is returned separately
// for client-side filtering after fetch.
func BuildCellQuery(cell model.BBox, filters model.FilterSet) (Descriptor, model.DateRange, error) {
	if !cell.Valid() {
		return Descriptor{}, model.DateRange{}, model.InvalidArgumentf(
			"cell box inverted: lon [%g,%g] lat [%g,%g]", cell.MinLon, cell.MaxLon, cell.MinLat, cell.MaxLat)
	}

	// Closed ring over the four corners, first vertex repeated last.
	ring := [][2]float64{
		{cell.MinLon, cell.MinLat},
		{cell.MinLon, cell.MaxLat},
		{cell.MaxLon, cell.MaxLat},
		{cell.MaxLon, cell.MinLat},
		{cell.MinLon, cell.MinLat},
	}
	geom, err := json.Marshal(polygonGeometry{
		Rings:            [][][2]float64{ring},
		SpatialReference: spatialReference{WKID: wkidWGS84},
	})
	if err != nil {
		return Descriptor{}, model.DateRange{}, fmt.Errorf("marshal cell geometry: %w", err)
	}

	return Descriptor{
		Geometry:       string(geom),
		GeometryType:   geometryTypePolygon,
		SpatialRel:     spatialRelIntersect,
		Where:          buildWhere(filters),
		OutSR:          outSRWebMercator,
		ReturnGeometry: true,
	}, filters.SaleDate, nil
}

// BuildAttributeQuery builds a geometry-less descriptor for pure attribute
// searches such as a whole municipality.
func BuildAttributeQuery(filters model.FilterSet) (Descriptor, model.DateRange) {
	return Descriptor{
		Where:          buildWhere(filters),
		SpatialRel:     spatialRelIntersect,
		OutSR:          outSRWebMercator,
		ReturnGeometry: true,
	}, filters.SaleDate
}

// BuildParcelQuery builds a descriptor fetching a single parcel by its
// catastro number.
func BuildParcelQuery(catastro string) Descriptor {
	return Descriptor{
		Where:          fmt.Sprintf("LOWER(CATASTRO) = %s", quote(strings.ToLower(catastro))),
		SpatialRel:     spatialRelIntersect,
		OutSR:          outSRWebMercator,
		ReturnGeometry: true,
	}
}

// buildWhere joins exact-match and range predicates with AND. An empty
// filter set yields no predicate, so the query returns everything that
// intersects the geometry.
func buildWhere(filters model.FilterSet) string {
	var conds []string

	for _, e := range filters.Exact {
		conds = append(conds, fmt.Sprintf("%s = %s", e.Field, literal(e.Value)))
	}
	for _, r := range filters.Ranges {
		if r.Min != nil {
			conds = append(conds, fmt.Sprintf("%s >= %s", r.Field, formatNumber(*r.Min)))
		}
		if r.Max != nil {
			conds = append(conds, fmt.Sprintf("%s <= %s", r.Field, formatNumber(*r.Max)))
		}
	}

	return strings.Join(conds, " AND ")
}

func literal(v any) string {
	switch t := v.(type) {
	case string:
		return quote(t)
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return quote(fmt.Sprint(t))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
