// Package refine merges per-cell result sets and reduces them to the exact
// search radius. Cells are disjoint by construction, but the backend treats
// boundary-touching parcels as intersecting both sides, so the same record
// can come back from adjacent cells; dedup by OBJECTID absorbs that.
package refine

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/geo"
)

// pointTol is the degenerate rectangle size used to index point records.
const pointTol = 1e-9

// Merge flattens per-cell result sets, admitting each OBJECTID once. First
// occurrence wins; later duplicates are identical records from boundary
// overlap and are dropped silently. Records without an OBJECTID are skipped.
func Merge(cellResults [][]model.PropertyRecord) []model.PropertyRecord {
	seen := make(map[int64]struct{})
	var out []model.PropertyRecord
	for _, cell := range cellResults {
		for _, rec := range cell {
			id, ok := rec.ObjectID()
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

type indexed struct {
	rect rtreego.Rect
	rec  model.PropertyRecord
	loc  model.Coordinate
	ord  int
}

func (i *indexed) Bounds() rtreego.Rect { return i.rect }

// FilterByRadius reduces records to those within radiusMiles of center,
// annotates each with 3-decimal DISTANCE_KM/DISTANCE_MILES fields and sorts
// ascending by distance, insertion order on ties. Records without valid
// coordinates cannot be placed and are dropped.
//
// An R-tree over the record points prunes candidates to the circumscribing
// bounding box before any haversine is computed, so the exact-distance pass
// touches O(log n + k) records instead of all n.
func FilterByRadius(records []model.PropertyRecord, center model.Coordinate, radiusMiles float64) []model.PropertyRecord {
	if len(records) == 0 {
		return nil
	}

	rt := rtreego.NewTree(2, 25, 50)
	indexedCount := 0
	for i, rec := range records {
		loc, ok := rec.Location()
		if !ok {
			continue
		}
		rt.Insert(&indexed{
			rect: rtreego.Point{loc.Lon, loc.Lat}.ToRect(pointTol),
			rec:  rec,
			loc:  loc,
			ord:  i,
		})
		indexedCount++
	}
	if indexedCount == 0 {
		return nil
	}

	radiusKM := radiusMiles * geo.MilesToKM
	box := geo.BoundingBox(center, radiusKM)
	query, err := rtreego.NewRect(
		rtreego.Point{box.MinLon, box.MinLat},
		[]float64{box.MaxLon - box.MinLon, box.MaxLat - box.MinLat},
	)
	if err != nil {
		return nil
	}

	var admitted []*indexed
	for _, sp := range rt.SearchIntersect(query) {
		it := sp.(*indexed)
		distKM := geo.Haversine(center, it.loc)
		distMiles := distKM / geo.MilesToKM
		if geo.Round3(distMiles) > radiusMiles {
			continue
		}
		it.rec[model.FieldDistanceKM] = geo.Round3(distKM)
		it.rec[model.FieldDistanceMiles] = geo.Round3(distMiles)
		admitted = append(admitted, it)
	}

	sort.Slice(admitted, func(a, b int) bool {
		da := admitted[a].rec[model.FieldDistanceMiles].(float64)
		db := admitted[b].rec[model.FieldDistanceMiles].(float64)
		if da != db {
			return da < db
		}
		return admitted[a].ord < admitted[b].ord
	})

	out := make([]model.PropertyRecord, len(admitted))
	for i, it := range admitted {
		out[i] = it.rec
	}
	return out
}

// MergeAndFilter is the cross-cell merge followed by exact radius reduction.
func MergeAndFilter(cellResults [][]model.PropertyRecord, center model.Coordinate, radiusMiles float64) []model.PropertyRecord {
	return FilterByRadius(Merge(cellResults), center, radiusMiles)
}
