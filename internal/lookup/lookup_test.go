package lookup

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/catastropr/gridsearch/internal/arcgis"
	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/fetch"
)

// fakeRegistry answers parcel queries from a catastro-keyed map.
type fakeRegistry struct {
	parcels map[string]model.PropertyRecord
	calls   int
	err     error
}

var _ fetch.PageClient = (*fakeRegistry)(nil)

func (f *fakeRegistry) FetchPage(_ context.Context, d arcgis.Descriptor, _, _ int) (*arcgis.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, rec := range f.parcels {
		// The predicate carries the lowercased catastro.
		if id, ok := rec.String("CATASTRO"); ok && d.Where == "LOWER(CATASTRO) = '"+id+"'" {
			return &arcgis.Page{Features: []model.PropertyRecord{rec}}, nil
		}
	}
	return &arcgis.Page{Features: []model.PropertyRecord{}}, nil
}

func newTestResolver(t *testing.T, reg *fakeRegistry) *Resolver {
	t.Helper()
	r, err := New(slog.New(slog.DiscardHandler), reg, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestParcel_ReturnsAttributeRecord(t *testing.T) {
	reg := &fakeRegistry{parcels: map[string]model.PropertyRecord{
		"042-000-001-01": {
			"OBJECTID": 7.0,
			"CATASTRO": "042-000-001-01",
			"INSIDE_Y": 18.4655,
			"INSIDE_X": -66.1057,
		},
	}}
	r := newTestResolver(t, reg)

	rec, err := r.Parcel(context.Background(), "042-000-001-01")
	if err != nil {
		t.Fatalf("Parcel: %v", err)
	}
	if id, _ := rec.ObjectID(); id != 7 {
		t.Fatalf("OBJECTID = %d, want 7", id)
	}
}

func TestParcel_NotFound(t *testing.T) {
	r := newTestResolver(t, &fakeRegistry{})

	_, err := r.Parcel(context.Background(), "999-999-999-99")
	if !errors.Is(err, model.ErrLookupFailed) {
		t.Fatalf("want ErrLookupFailed, got %v", err)
	}
}

func TestParcel_EmptyCatastro(t *testing.T) {
	r := newTestResolver(t, &fakeRegistry{})

	_, err := r.Parcel(context.Background(), "   ")
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestParcel_FetchErrorWrapsLookupFailure(t *testing.T) {
	r := newTestResolver(t, &fakeRegistry{err: errors.New("registry error 500")})

	_, err := r.Parcel(context.Background(), "042-000-001-01")
	if !errors.Is(err, model.ErrLookupFailed) {
		t.Fatalf("want ErrLookupFailed, got %v", err)
	}
}

func TestCoordinates_ResolvesAndCaches(t *testing.T) {
	reg := &fakeRegistry{parcels: map[string]model.PropertyRecord{
		"042-000-001-01": {
			"CATASTRO": "042-000-001-01",
			"INSIDE_Y": 18.4655,
			"INSIDE_X": -66.1057,
		},
	}}
	r := newTestResolver(t, reg)

	first, err := r.Coordinates(context.Background(), "042-000-001-01")
	if err != nil {
		t.Fatalf("Coordinates: %v", err)
	}
	if first.Lat != 18.4655 || first.Lon != -66.1057 {
		t.Fatalf("resolved = %+v", first)
	}

	// Second resolution, different case, must come from the cache.
	second, err := r.Coordinates(context.Background(), "042-000-001-01")
	if err != nil {
		t.Fatalf("cached Coordinates: %v", err)
	}
	if second != first {
		t.Fatalf("cached coordinates differ: %+v vs %+v", second, first)
	}
	if reg.calls != 1 {
		t.Fatalf("registry calls = %d, want 1 (second hit cached)", reg.calls)
	}
}

func TestCoordinates_ParcelWithoutCoordinates(t *testing.T) {
	reg := &fakeRegistry{parcels: map[string]model.PropertyRecord{
		"042-000-001-01": {"CATASTRO": "042-000-001-01"},
	}}
	r := newTestResolver(t, reg)

	_, err := r.Coordinates(context.Background(), "042-000-001-01")
	if !errors.Is(err, model.ErrLookupFailed) {
		t.Fatalf("want ErrLookupFailed, got %v", err)
	}
}
