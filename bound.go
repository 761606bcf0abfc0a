/*
Copyright © 2026 the SurfOM authors.
This file is part of SurfOM.

SurfOM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SurfOM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SurfOM.  If not, see <http://www.gnu.org/licenses/>.
*/

package surfom

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Divide returns num/den, or dflt if den is zero or the
// result is not a finite number.
func Divide(num, den, dflt float64) float64 {
	if den == 0 {
		return dflt
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return dflt
	}
	return v
}

// Bound constrains v to the interval [lo, hi].
func Bound(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// LayerIndex returns the index of the soil layer that contains
// the given depth, where thickness holds the thickness of each layer
// from the surface down. Depths below the bottom of the profile
// return the index of the bottom layer.
func LayerIndex(depth float64, thickness []float64) int {
	if len(thickness) == 0 {
		return -1
	}
	cum := make([]float64, len(thickness))
	floats.CumSum(cum, thickness)
	i := sort.Search(len(cum), func(i int) bool { return cum[i] >= depth })
	if i == len(cum) {
		return len(cum) - 1
	}
	return i
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// checkNonNegative returns an error if v is negative after rounding
// to 8 decimal places, which removes floating point noise.
func checkNonNegative(name string, v float64) error {
	if roundTo(v, 8) < 0 {
		return imbalanceErrorf("%s is negative (%g)", name, v)
	}
	return nil
}
