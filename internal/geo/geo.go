// Package geo holds the spherical-earth math shared by grid partitioning,
// radius filtering and record enrichment.
package geo

import (
	"fmt"
	"math"

	"github.com/catastropr/gridsearch/internal/core/model"
)

const (
	// EarthRadiusKM is the mean earth radius used by the haversine formula.
	EarthRadiusKM = 6371.0

	// MilesToKM converts statute miles to kilometers.
	MilesToKM = 1.60934

	// KMPerDegreeLat approximates one degree of latitude.
	KMPerDegreeLat = 111.0

	// cosEpsilon guards the longitude-degree conversion near the poles,
	// where cos(lat) collapses to zero.
	cosEpsilon = 1e-9
)

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(a, b model.Coordinate) float64 {
	lat1 := radians(a.Lat)
	lon1 := radians(a.Lon)
	lat2 := radians(b.Lat)
	lon2 := radians(b.Lon)

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(h))

	return EarthRadiusKM * c
}

// HaversineMiles returns the great-circle distance in statute miles.
func HaversineMiles(a, b model.Coordinate) float64 {
	return Haversine(a, b) / MilesToKM
}

// DegreeOffsets converts a kilometer radius at a given latitude into
// latitude/longitude degree deltas. One degree of longitude shrinks with
// cos(lat); the cosine is clamped so polar centers cannot divide by zero.
func DegreeOffsets(lat, radiusKM float64) (dLat, dLon float64) {
	dLat = radiusKM / KMPerDegreeLat

	cos := math.Abs(math.Cos(radians(lat)))
	if cos < cosEpsilon {
		cos = cosEpsilon
	}
	dLon = radiusKM / (KMPerDegreeLat * cos)
	return dLat, dLon
}

// BoundingBox returns the square box of side 2×offset centered on c, fully
// containing the circle of the given radius.
func BoundingBox(c model.Coordinate, radiusKM float64) model.BBox {
	dLat, dLon := DegreeOffsets(c.Lat, radiusKM)
	return model.BBox{
		MinLon: c.Lon - dLon,
		MinLat: c.Lat - dLat,
		MaxLon: c.Lon + dLon,
		MaxLat: c.Lat + dLat,
	}
}

// DMS renders a decimal-degree coordinate in degrees/minutes/seconds
// notation, e.g. 18°21'05.8"N.
func DMS(deg float64, isLat bool) string {
	var hemisphere string
	if isLat {
		hemisphere = "N"
		if deg < 0 {
			hemisphere = "S"
		}
	} else {
		hemisphere = "E"
		if deg < 0 {
			hemisphere = "W"
		}
	}

	deg = math.Abs(deg)
	d := int(deg)
	minFull := (deg - float64(d)) * 60
	m := int(minFull)
	s := (minFull - float64(m)) * 60

	return fmt.Sprintf("%d°%02d'%04.1f\"%s", d, m, s, hemisphere)
}

// Round3 rounds to three decimal places, the precision distance fields carry.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
