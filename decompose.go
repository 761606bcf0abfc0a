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

import "github.com/sirupsen/logrus"

const (
	// Lying carbon below this amount [kg/ha] is decomposed completely
	// to avoid numerical problems with very small pools.
	noiseGuardC = 1.e-4

	// Actual decomposition may exceed potential decomposition by
	// at most this amount [kg/ha].
	decompTolerance = 1.e-4
)

// PoolDecomposition holds the amount of carbon, nitrogen, and
// phosphorus [kg/ha] decomposed from the lying residue in one pool.
type PoolDecomposition struct {
	Name    string
	Type    string
	C, N, P float64
}

// PotentialDecomposition is the decomposition that would occur in
// each pool if it were not limited by the soil nutrient model.
type PotentialDecomposition struct {
	Day   int
	Pools []PoolDecomposition
}

// Total returns the sum of the decomposition over all pools.
func (p *PotentialDecomposition) Total() (c, n, phos float64) {
	for _, pd := range p.Pools {
		c += pd.C
		n += pd.N
		phos += pd.P
	}
	return
}

// ActualDecomposition is the carbon and nitrogen [kg/ha] that the soil
// nutrient model has accepted from the named pool.
type ActualDecomposition struct {
	Name string
	C, N float64
}

// decompFraction returns the fraction of the lying residue in p that
// can decompose today.
func (m *Model) decompFraction(p *Pool, f Factors) float64 {
	if p.lyingSum().C < noiseGuardC {
		return 1
	}
	cnrf := CNRatioFactor(p, m.Params.CNRFCoeff, m.Params.CNRFOptCN)
	return Bound(p.PotDecompRate*f.Moisture*f.Temperature*cnrf*f.Contact, 0, 1)
}

// PotentialDecomposition calculates the potential decomposition of each
// pool given the environmental factors and publishes it. It does not
// change the pools.
func (m *Model) PotentialDecomposition(f Factors) *PotentialDecomposition {
	pot := &PotentialDecomposition{
		Day:   m.day,
		Pools: make([]PoolDecomposition, m.pools.len()),
	}
	for i, p := range m.pools.pools {
		frac := m.decompFraction(p, f)
		l := p.lyingSum()
		pot.Pools[i] = PoolDecomposition{
			Name: p.Name,
			Type: p.Type.Name,
			C:    l.C * frac,
			N:    l.N * frac,
			P:    l.P * frac,
		}
	}
	m.pot = pot
	m.publish(&PotentialDecompositionPublished{Potential: pot})
	return pot
}

// ApplyActualDecomposition removes the actual decomposition from the
// lying residue of each pool. Pools missing from actual do not
// decompose. Actual phosphorus decomposition is in the same proportion
// to potential as carbon. Actual decomposition that is negative or
// that exceeds the potential decomposition in pot is a mass imbalance
// error, in which case no pool is changed.
func (m *Model) ApplyActualDecomposition(pot *PotentialDecomposition, actual []ActualDecomposition) error {
	if pot == nil {
		return inputErrorf("actual decomposition given without potential decomposition")
	}
	potential := make(map[string]PoolDecomposition, len(pot.Pools))
	for _, pd := range pot.Pools {
		potential[pd.Name] = pd
	}
	type change struct {
		pool       *Pool
		c, n, phos float64
	}
	changes := make([]change, 0, len(actual))
	seen := make(map[string]bool, len(actual))
	for _, a := range actual {
		pd, ok := potential[a.Name]
		if !ok {
			return &NotFoundError{Kind: "pool", Name: a.Name}
		}
		if seen[a.Name] {
			return inputErrorf("actual decomposition given more than once for pool '%s'", a.Name)
		}
		seen[a.Name] = true
		if err := checkNonNegative("actual C decomposition of pool '"+a.Name+"'", a.C); err != nil {
			return err
		}
		if err := checkNonNegative("actual N decomposition of pool '"+a.Name+"'", a.N); err != nil {
			return err
		}
		if a.C > pd.C+decompTolerance {
			return imbalanceErrorf("pool '%s': actual C decomposition %g exceeds potential %g", a.Name, a.C, pd.C)
		}
		if a.N > pd.N+decompTolerance {
			return imbalanceErrorf("pool '%s': actual N decomposition %g exceeds potential %g", a.Name, a.N, pd.N)
		}
		p := m.pools.get(a.Name)
		if p == nil {
			return &NotFoundError{Kind: "pool", Name: a.Name}
		}
		changes = append(changes, change{
			pool: p,
			c:    a.C,
			n:    a.N,
			phos: Divide(a.C*pd.P, pd.C, 0),
		})
	}
	for _, ch := range changes {
		ch.pool.decompose(ch.c, ch.n, ch.phos)
	}
	m.record(Operation{
		Kind:      OpDecompose,
		Potential: pot,
		Actual:    append([]ActualDecomposition(nil), actual...),
	})
	if len(changes) > 0 {
		m.Log.WithFields(logrus.Fields{
			"day":   m.day,
			"pools": len(changes),
		}).Debug("applied actual decomposition")
	}
	return nil
}

// decompose removes the given amounts of carbon, nitrogen, and
// phosphorus from the lying residue. Dry matter and ash alkalinity
// decline in proportion to carbon.
func (p *Pool) decompose(c, n, phos float64) {
	l := p.lyingSum()
	fc := Bound(Divide(c, l.C, 0), 0, 1)
	fn := Bound(Divide(n, l.N, 0), 0, 1)
	fp := Bound(Divide(phos, l.P, 0), 0, 1)
	for i := range p.Lying {
		p.Lying[i].Amount *= 1 - fc
		p.Lying[i].C *= 1 - fc
		p.Lying[i].AshAlk *= 1 - fc
	}
	for i := range p.Lying {
		p.Lying[i].N *= 1 - fn
	}
	for i := range p.Lying {
		p.Lying[i].P *= 1 - fp
	}
}

// Decompose calculates the potential decomposition for the current
// day, asks n how much of it to realize, and applies the result.
// If n is nil, the potential decomposition is published but nothing
// decomposes.
func (m *Model) Decompose(n SoilNutrients) error {
	f, err := m.Factors()
	if err != nil {
		return err
	}
	pot := m.PotentialDecomposition(f)
	if n == nil {
		return nil
	}
	actual, err := n.ActualDecomposition(pot)
	if err != nil {
		return err
	}
	return m.ApplyActualDecomposition(pot, actual)
}
