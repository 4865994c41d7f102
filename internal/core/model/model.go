// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for argument validation and lookups.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLookupFailed    = errors.New("lookup failed")
)

// InvalidArgumentf wraps ErrInvalidArgument with context.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// BBox is an axis-aligned box in decimal degrees, min <= max on each axis.
type BBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

func (b BBox) Valid() bool {
	return b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat
}

func (b BBox) Contains(c Coordinate) bool {
	return c.Lon >= b.MinLon && c.Lon <= b.MaxLon && c.Lat >= b.MinLat && c.Lat <= b.MaxLat
}

// Well-known attribute fields of the parcel registry.
const (
	FieldObjectID  = "OBJECTID"
	FieldCatastro  = "CATASTRO"
	FieldMunicipio = "MUNICIPIO"
	FieldSaleAmt   = "SALESAMT"
	FieldCabida    = "CABIDA"
	FieldSaleDate  = "SALESDTTM"
	FieldLat       = "INSIDE_Y"
	FieldLon       = "INSIDE_X"

	// Derived fields attached during enrichment.
	FieldDistanceKM    = "DISTANCE_KM"
	FieldDistanceMiles = "DISTANCE_MILES"
	FieldSaleDateFmt   = "SALESDTTM_FORMATTED"
	FieldMapLink       = "google_maps_satellite_link"
)

// PropertyRecord is one backend attribute record. The registry returns
// free-form attribute maps, so the record stays schemaless and typed access
// goes through the helpers below.
type PropertyRecord map[string]any

// Float reads a numeric attribute. Backend JSON numbers decode as float64,
// but values set in-process may be ints.
func (r PropertyRecord) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String reads a textual attribute.
func (r PropertyRecord) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ObjectID returns the record's unique integer key.
func (r PropertyRecord) ObjectID() (int64, bool) {
	f, ok := r.Float(FieldObjectID)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Location returns the record's point coordinate, if present.
func (r PropertyRecord) Location() (Coordinate, bool) {
	lat, okLat := r.Float(FieldLat)
	lon, okLon := r.Float(FieldLon)
	if !okLat || !okLon || (lat == 0 && lon == 0) {
		return Coordinate{}, false
	}
	return Coordinate{Lat: lat, Lon: lon}, true
}

// Clone returns a shallow copy so enrichment never mutates fetched pages.
func (r PropertyRecord) Clone() PropertyRecord {
	cp := make(PropertyRecord, len(r)+4)
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// ExactMatch constrains a field to one value, server-side.
type ExactMatch struct {
	Field string
	Value any
}

// RangeMatch constrains a numeric field to [Min, Max], server-side.
// A nil bound is open.
type RangeMatch struct {
	Field string
	Min   *float64
	Max   *float64
}

// DateRange is a sale-date constraint in YYYY-MM-DD form. Date ranges are
// always applied client-side after fetch; the backend's date predicate
// semantics proved unreliable against this registry.
type DateRange struct {
	Min string
	Max string
}

func (d DateRange) Empty() bool { return d.Min == "" && d.Max == "" }

// FilterSet is the typed attribute-filter union consumed by the query
// builder. Callers construct it directly or via FiltersFromParams at the
// CLI/HTTP boundary.
type FilterSet struct {
	Exact    []ExactMatch
	Ranges   []RangeMatch
	SaleDate DateRange
}

func (f FilterSet) Empty() bool {
	return len(f.Exact) == 0 && len(f.Ranges) == 0 && f.SaleDate.Empty()
}

// Advisory is a non-fatal completeness warning attached to a search result.
type Advisory struct {
	Cell    int    `json:"cell"`
	Records int    `json:"records"`
	Message string `json:"message"`
}
