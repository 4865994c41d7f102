package model

import (
	"testing"
)

func TestFiltersFromParams_Empty(t *testing.T) {
	if fs := FiltersFromParams(nil); !fs.Empty() {
		t.Fatalf("nil params should yield empty filter set: %+v", fs)
	}
	if fs := FiltersFromParams(map[string]any{}); !fs.Empty() {
		t.Fatalf("empty params should yield empty filter set: %+v", fs)
	}
}

func TestFiltersFromParams_SplitsRangesExactsAndDates(t *testing.T) {
	fs := FiltersFromParams(map[string]any{
		"MUNICIPIO":     "SAN JUAN",
		"SALESAMT_MIN":  50000.0,
		"SALESAMT_MAX":  250000.0,
		"CABIDA_MIN":    300.0,
		"SALESDTTM_MIN": "2020-01-01",
		"SALESDTTM_MAX": "2023-12-31",
		"ZONING":        "R-1",
	})

	if len(fs.Exact) != 2 {
		t.Fatalf("exact matches = %d, want 2 (%+v)", len(fs.Exact), fs.Exact)
	}
	// Deterministic ordering: keys are processed sorted.
	if fs.Exact[0].Field != "MUNICIPIO" || fs.Exact[1].Field != "ZONING" {
		t.Fatalf("unexpected exact order: %+v", fs.Exact)
	}

	if len(fs.Ranges) != 2 {
		t.Fatalf("ranges = %d, want 2 (%+v)", len(fs.Ranges), fs.Ranges)
	}
	cabida, sales := fs.Ranges[0], fs.Ranges[1]
	if cabida.Field != "CABIDA" || cabida.Min == nil || *cabida.Min != 300 || cabida.Max != nil {
		t.Fatalf("bad CABIDA range: %+v", cabida)
	}
	if sales.Field != "SALESAMT" || sales.Min == nil || *sales.Min != 50000 || sales.Max == nil || *sales.Max != 250000 {
		t.Fatalf("bad SALESAMT range: %+v", sales)
	}

	if fs.SaleDate.Min != "2020-01-01" || fs.SaleDate.Max != "2023-12-31" {
		t.Fatalf("bad date range: %+v", fs.SaleDate)
	}
}

func TestFiltersFromParams_NonNumericRangeKeyFallsBackToExact(t *testing.T) {
	fs := FiltersFromParams(map[string]any{
		"GRADE_MIN": "A", // not numeric, not a range bound
	})
	if len(fs.Ranges) != 0 {
		t.Fatalf("unexpected ranges: %+v", fs.Ranges)
	}
	if len(fs.Exact) != 1 || fs.Exact[0].Field != "GRADE_MIN" {
		t.Fatalf("want GRADE_MIN as exact match, got %+v", fs.Exact)
	}
}

func TestPropertyRecord_Accessors(t *testing.T) {
	rec := PropertyRecord{
		"OBJECTID": 42.0, // backend numbers decode as float64
		"INSIDE_Y": 18.4655,
		"INSIDE_X": -66.1057,
		"CATASTRO": "042-011-009-05",
	}

	id, ok := rec.ObjectID()
	if !ok || id != 42 {
		t.Fatalf("ObjectID = %d, %v", id, ok)
	}
	loc, ok := rec.Location()
	if !ok || loc.Lat != 18.4655 || loc.Lon != -66.1057 {
		t.Fatalf("Location = %+v, %v", loc, ok)
	}
	if s, ok := rec.String("CATASTRO"); !ok || s != "042-011-009-05" {
		t.Fatalf("String(CATASTRO) = %q, %v", s, ok)
	}
}

func TestPropertyRecord_MissingCoordinates(t *testing.T) {
	for _, rec := range []PropertyRecord{
		{},
		{"INSIDE_Y": 18.4, "INSIDE_X": nil},
		{"INSIDE_Y": 0.0, "INSIDE_X": 0.0}, // null island means no fix
	} {
		if _, ok := rec.Location(); ok {
			t.Fatalf("record %v should have no location", rec)
		}
	}
}
