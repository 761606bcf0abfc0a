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

import "math"

// MaxCover is the largest fractional ground cover the residue can
// provide.
const MaxCover = 0.999999999

// AddCover combines two independent fractional covers.
func AddCover(a, b float64) float64 {
	return 1 - (1-a)*(1-b)
}

// cover returns the fractional ground cover of p. Standing residue
// covers less area per unit mass than lying residue.
func (p *Pool) cover(standingExtinct float64) float64 {
	lyingArea := p.lyingSum().Amount * p.Type.SpecificArea
	standingArea := p.standingSum().Amount * p.Type.SpecificArea * standingExtinct
	return AddCover(1-math.Exp(-lyingArea), 1-math.Exp(-standingArea))
}

// CoverTotal returns the fractional ground cover of all residue.
func (m *Model) CoverTotal() float64 {
	var c float64
	for _, p := range m.pools.pools {
		c = AddCover(c, p.cover(m.Params.StandingExtinctCoeff))
	}
	return Bound(c, 0, MaxCover)
}

// CoverOf returns the fractional ground cover of the named pool.
func (m *Model) CoverOf(name string) (float64, error) {
	p := m.pools.get(name)
	if p == nil {
		return 0, &NotFoundError{Kind: "pool", Name: name}
	}
	return Bound(p.cover(m.Params.StandingExtinctCoeff), 0, MaxCover), nil
}
