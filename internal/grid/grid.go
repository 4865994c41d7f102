// Package grid partitions a radius search area into query cells. Tiling the
// circumscribing square of the circle lets each cell be queried independently,
// which is what bypasses the backend's per-query record cap.
package grid

import (
	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/geo"
)

// Build returns gridSize×gridSize cells covering the square that
// circumscribes the circle of radiusMiles around center. Cells are emitted
// lon-major (west to east, then south to north) so cell order, and with it
// dedup bookkeeping and progress output, is reproducible.
func Build(center model.Coordinate, radiusMiles float64, gridSize int) ([]model.BBox, error) {
	if !center.Valid() {
		return nil, model.InvalidArgumentf("center out of range: %s", center)
	}
	if radiusMiles <= 0 {
		return nil, model.InvalidArgumentf("radius must be positive, got %g", radiusMiles)
	}
	if gridSize < 1 {
		return nil, model.InvalidArgumentf("grid size must be >= 1, got %d", gridSize)
	}

	box := geo.BoundingBox(center, radiusMiles*geo.MilesToKM)

	cellWidth := (box.MaxLon - box.MinLon) / float64(gridSize)
	cellHeight := (box.MaxLat - box.MinLat) / float64(gridSize)

	cells := make([]model.BBox, 0, gridSize*gridSize)
	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			cells = append(cells, model.BBox{
				MinLon: box.MinLon + float64(i)*cellWidth,
				MaxLon: box.MinLon + float64(i+1)*cellWidth,
				MinLat: box.MinLat + float64(j)*cellHeight,
				MaxLat: box.MinLat + float64(j+1)*cellHeight,
			})
		}
	}
	return cells, nil
}
