package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"ridequick/internal/types"
)

const (
	kmPerDegree  = 111.32
	maxPrecision = 9
)

// Cell returns the geohash of p at the given precision.
func Cell(p types.Point, precision uint) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, precision)
}

// CoveringCells returns the cell containing p plus its eight neighbours, at the
// finest precision whose cells are at least radiusKm on each side. Every point
// within radiusKm of p then falls inside one of the returned cells. A nil
// result means no precision is coarse enough and callers must scan everything.
func CoveringCells(p types.Point, radiusKm float64) ([]string, uint) {
	if radiusKm <= 0 || Validate(p) != nil {
		return nil, 0
	}
	for prec := uint(maxPrecision); prec >= 1; prec-- {
		heightKm, widthDeg := cellSize(prec)
		// Width shrinks towards the poles; measure it at the worst latitude a
		// neighbouring cell can reach.
		worstLat := math.Min(90, math.Abs(p.Lat)+2*heightKm/kmPerDegree)
		widthKm := widthDeg * kmPerDegree * math.Cos(degreesToRadians(worstLat))
		if heightKm >= radiusKm && widthKm >= radiusKm {
			center := Cell(p, prec)
			return append([]string{center}, geohash.Neighbors(center)...), prec
		}
	}
	return nil, 0
}

// cellSize returns the cell height in km and width in degrees for a precision.
func cellSize(precision uint) (float64, float64) {
	bits := 5 * precision
	lngBits := (bits + 1) / 2
	latBits := bits / 2
	heightDeg := 180 / math.Pow(2, float64(latBits))
	widthDeg := 360 / math.Pow(2, float64(lngBits))
	return heightDeg * kmPerDegree, widthDeg
}
