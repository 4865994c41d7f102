package arcgis

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/catastropr/gridsearch/internal/core/model"
)

var testCell = model.BBox{MinLon: -66.12, MinLat: 18.45, MaxLon: -66.10, MaxLat: 18.47}

func fptr(f float64) *float64 { return &f }

func TestBuildCellQuery_ClosedPolygonInWGS84(t *testing.T) {
	desc, _, err := BuildCellQuery(testCell, model.FilterSet{})
	if err != nil {
		t.Fatalf("BuildCellQuery: %v", err)
	}

	var geom struct {
		Rings            [][][2]float64 `json:"rings"`
		SpatialReference struct {
			WKID int `json:"wkid"`
		} `json:"spatialReference"`
	}
	if err := json.Unmarshal([]byte(desc.Geometry), &geom); err != nil {
		t.Fatalf("geometry is not valid JSON: %v", err)
	}
	if geom.SpatialReference.WKID != 4326 {
		t.Fatalf("wkid = %d, want 4326", geom.SpatialReference.WKID)
	}
	if len(geom.Rings) != 1 {
		t.Fatalf("rings = %d, want 1", len(geom.Rings))
	}
	ring := geom.Rings[0]
	if len(ring) != 5 {
		t.Fatalf("ring has %d vertices, want 5 (closed)", len(ring))
	}
	if ring[0] != ring[4] {
		t.Fatalf("ring not closed: first %v last %v", ring[0], ring[4])
	}

	if desc.GeometryType != "esriGeometryPolygon" {
		t.Fatalf("geometryType = %q", desc.GeometryType)
	}
	if desc.SpatialRel != "esriSpatialRelIntersects" {
		t.Fatalf("spatialRel = %q", desc.SpatialRel)
	}
	if desc.OutSR != "102100" {
		t.Fatalf("outSR = %q, want Web Mercator", desc.OutSR)
	}
	if desc.Where != "" {
		t.Fatalf("empty filters must emit no predicate, got %q", desc.Where)
	}
}

func TestBuildCellQuery_ExtractsDateRangeFromPredicate(t *testing.T) {
	filters := model.FilterSet{
		Ranges:   []model.RangeMatch{{Field: "SALESAMT", Min: fptr(50000)}},
		SaleDate: model.DateRange{Min: "2020-01-01"},
	}

	desc, dates, err := BuildCellQuery(testCell, filters)
	if err != nil {
		t.Fatalf("BuildCellQuery: %v", err)
	}
	if !strings.Contains(desc.Where, "SALESAMT >= 50000") {
		t.Fatalf("predicate missing price clause: %q", desc.Where)
	}
	if strings.Contains(desc.Where, "SALESDTTM") {
		t.Fatalf("date clause must stay out of the predicate: %q", desc.Where)
	}
	if dates.Min != "2020-01-01" || dates.Max != "" {
		t.Fatalf("dates = %+v", dates)
	}
}

func TestBuildCellQuery_JoinsPredicatesWithAND(t *testing.T) {
	filters := model.FilterSet{
		Exact: []model.ExactMatch{{Field: "MUNICIPIO", Value: "SAN JUAN"}},
		Ranges: []model.RangeMatch{
			{Field: "SALESAMT", Min: fptr(50000), Max: fptr(250000)},
			{Field: "CABIDA", Max: fptr(900)},
		},
	}

	desc, _, err := BuildCellQuery(testCell, filters)
	if err != nil {
		t.Fatalf("BuildCellQuery: %v", err)
	}
	want := "MUNICIPIO = 'SAN JUAN' AND SALESAMT >= 50000 AND SALESAMT <= 250000 AND CABIDA <= 900"
	if desc.Where != want {
		t.Fatalf("predicate = %q, want %q", desc.Where, want)
	}
}

func TestBuildCellQuery_QuotesAndEscapesStrings(t *testing.T) {
	filters := model.FilterSet{
		Exact: []model.ExactMatch{{Field: "OWNER", Value: "O'NEILL"}},
	}
	desc, _, err := BuildCellQuery(testCell, filters)
	if err != nil {
		t.Fatalf("BuildCellQuery: %v", err)
	}
	if desc.Where != "OWNER = 'O''NEILL'" {
		t.Fatalf("predicate = %q", desc.Where)
	}
}

func TestBuildCellQuery_RejectsInvertedCell(t *testing.T) {
	bad := model.BBox{MinLon: -66.10, MinLat: 18.47, MaxLon: -66.12, MaxLat: 18.45}
	_, _, err := BuildCellQuery(bad, model.FilterSet{})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestDescriptorValues_Pagination(t *testing.T) {
	desc, _, err := BuildCellQuery(testCell, model.FilterSet{})
	if err != nil {
		t.Fatalf("BuildCellQuery: %v", err)
	}

	v := desc.Values(200, 100)
	if v.Get("resultOffset") != "200" || v.Get("resultRecordCount") != "100" {
		t.Fatalf("pagination params wrong: %v", v)
	}
	if v.Get("f") != "json" || v.Get("outFields") != "*" || v.Get("returnGeometry") != "true" {
		t.Fatalf("base params wrong: %v", v)
	}

	unpaged := desc.Values(0, 0)
	if unpaged.Has("resultOffset") || unpaged.Has("resultRecordCount") {
		t.Fatalf("count=0 must omit pagination params: %v", unpaged)
	}
}

func TestBuildParcelQuery_LowercasesCatastro(t *testing.T) {
	d := BuildParcelQuery("042-A11-009-05")
	if d.Where != "LOWER(CATASTRO) = '042-a11-009-05'" {
		t.Fatalf("predicate = %q", d.Where)
	}
}

func TestBuildAttributeQuery_NoGeometry(t *testing.T) {
	filters := model.FilterSet{
		Exact:    []model.ExactMatch{{Field: "MUNICIPIO", Value: "PONCE"}},
		SaleDate: model.DateRange{Max: "2024-01-01"},
	}
	desc, dates := BuildAttributeQuery(filters)
	if desc.Geometry != "" {
		t.Fatalf("attribute query must carry no geometry")
	}
	if desc.Where != "MUNICIPIO = 'PONCE'" {
		t.Fatalf("predicate = %q", desc.Where)
	}
	if dates.Max != "2024-01-01" {
		t.Fatalf("dates = %+v", dates)
	}
}
