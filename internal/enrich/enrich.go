// Package enrich annotates fetched records with derived fields: a formatted
// sale date, a satellite map link and distance-from-center fields.
package enrich

import (
	"fmt"
	"net/url"
	"time"

	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/geo"
)

// maxUnixSeconds bounds accepted sale timestamps to the signed 32-bit Unix
// range; the registry holds garbage epochs well outside it.
const maxUnixSeconds = 2147483647

// defaultZoomMeters matches the registry viewer's parcel-level zoom.
const defaultZoomMeters = 1146

// Apply enriches every record in place. A center, when given, yields
// DISTANCE_KM/DISTANCE_MILES via the same haversine used for radius
// filtering. Invalid sale timestamps null the formatted field rather than
// fail the batch.
func Apply(records []model.PropertyRecord, center *model.Coordinate) {
	for _, rec := range records {
		if _, present := rec[model.FieldSaleDate]; present {
			if ms, ok := rec.Float(model.FieldSaleDate); ok {
				if s, valid := FormatSaleDate(ms); valid {
					rec[model.FieldSaleDateFmt] = s
				} else {
					rec[model.FieldSaleDateFmt] = nil
				}
			}
		}

		loc, ok := rec.Location()
		if !ok {
			continue
		}
		rec[model.FieldMapLink] = SatelliteLink(loc.Lat, loc.Lon)

		if center != nil {
			distKM := geo.Haversine(*center, loc)
			rec[model.FieldDistanceKM] = geo.Round3(distKM)
			rec[model.FieldDistanceMiles] = geo.Round3(distKM / geo.MilesToKM)
		}
	}
}

// FormatSaleDate converts a millisecond epoch into a YYYY-MM-DD string.
// Timestamps outside the valid Unix second range report ok=false.
func FormatSaleDate(ms float64) (string, bool) {
	sec := ms / 1000
	if sec < 0 || sec > maxUnixSeconds {
		return "", false
	}
	return time.Unix(int64(sec), 0).UTC().Format("2006-01-02"), true
}

// SatelliteLink builds a Google Maps satellite-view pin URL from decimal
// degrees, rendered in DMS notation the way hand-shared registry links are.
func SatelliteLink(lat, lon float64) string {
	dms := geo.DMS(lat, true) + " " + geo.DMS(lon, false)

	// The viewer centers slightly west of the pin; offset copied from
	// working registry links.
	viewLon := lon - 0.0025803

	return fmt.Sprintf(
		"https://www.google.com/maps/place/%s/@%v,%v,%dm/data=!3m2!1e3!4b1!4m4!3m3!8m2!3d%v!4d%v?entry=ttu",
		url.QueryEscape(dms), lat, viewLon, defaultZoomMeters, lat, lon,
	)
}

// FilterBySaleDate applies the client-side date range over the formatted
// sale date. Records with no formatted date are excluded when a bound is
// set, matching string-comparable YYYY-MM-DD semantics.
func FilterBySaleDate(records []model.PropertyRecord, dr model.DateRange) []model.PropertyRecord {
	if dr.Empty() {
		return records
	}
	out := records[:0]
	for _, rec := range records {
		s, ok := rec.String(model.FieldSaleDateFmt)
		if !ok || s == "" {
			continue
		}
		if dr.Min != "" && s < dr.Min {
			continue
		}
		if dr.Max != "" && s > dr.Max {
			continue
		}
		out = append(out, rec)
	}
	return out
}
