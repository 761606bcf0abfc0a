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

// Factors holds the environmental limitations on decomposition for
// the current day. Each is in the range [0, 1].
type Factors struct {
	Temperature float64
	Moisture    float64
	Contact     float64
}

// TemperatureFactor returns the temperature limitation on
// decomposition given the daily maximum and minimum air temperatures
// [°C] and the optimum temperature.
func TemperatureFactor(maxT, minT, optT float64) float64 {
	avgT := (maxT + minT) / 2
	if avgT <= 0 {
		return 0
	}
	return Bound(math.Pow(avgT/optT, 2), 0, 1)
}

// MoistureFactor returns the moisture limitation on decomposition
// given the soil evaporation accumulated since the last rain [mm]
// and the accumulated evaporation at which decomposition stops.
// A ponded surface gives 0.5.
func MoistureFactor(cumEos, cumEosMax float64, pond bool) float64 {
	if pond {
		return 0.5
	}
	return Bound(1-Divide(cumEos, cumEosMax, 0), 0, 1)
}

// ContactFactor returns the limitation on decomposition caused by
// poor contact between residue and the soil, given the effective
// lying residue mass [kg/ha] and the mass above which contact is
// limiting.
func ContactFactor(effectiveWt, critWt float64) float64 {
	if effectiveWt <= critWt {
		return 1
	}
	return Bound(Divide(critWt, effectiveWt, 0), 0, 1)
}

// CNRatioFactor returns the nitrogen limitation on decomposition of
// pool p. The C:N ratio is that of the lying residue including the
// mineral nitrogen carried on the pool.
func CNRatioFactor(p *Pool, coeff, optCN float64) float64 {
	if optCN == 0 {
		return 1
	}
	l := p.lyingSum()
	cn := Divide(l.C, l.N+p.NO3+p.NH4, 0)
	return Bound(math.Exp(-coeff*(cn-optCN)/optCN), 0, 1)
}

// effectiveLyingWt returns the total lying residue mass of the pools
// whose type contributes to soil contact.
func (m *Model) effectiveLyingWt() float64 {
	var wt float64
	for _, p := range m.pools.pools {
		if p.Type.ContactContrib {
			wt += p.lyingSum().Amount
		}
	}
	return wt
}

// Factors returns the environmental factors for the current day.
// It returns an error if no weather has been supplied.
func (m *Model) Factors() (Factors, error) {
	if m.Met == nil {
		return Factors{}, inputErrorf("no weather data for day %d", m.day)
	}
	return Factors{
		Temperature: TemperatureFactor(m.Met.MaxT, m.Met.MinT, m.Params.OptTemp),
		Moisture:    MoistureFactor(m.cumEos, m.Params.CumEosMax, m.Met.PondActive),
		Contact:     ContactFactor(m.effectiveLyingWt(), m.Params.CritResidueWt),
	}, nil
}

// CumulativeEvaporation returns the soil evaporation accumulated since
// the last day when water input exceeded evaporation [mm].
func (m *Model) CumulativeEvaporation() float64 { return m.cumEos }

// updateCumEos updates the accumulated soil evaporation with today's
// weather.
func (m *Model) updateCumEos() {
	water := m.Met.Rain + m.Met.Irrigation
	if water > m.Met.Eos {
		m.cumEos = 0
		return
	}
	m.cumEos = math.Max(0, m.cumEos+m.Met.Eos-water)
}
