// README: Money rounding helpers used by pricing and trip distance.
package types

import "math"

// Round2 rounds half-up to two decimal places.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
