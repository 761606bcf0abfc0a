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

import "fmt"

// OMFraction holds an amount of surface organic matter and its
// constituents. All quantities are in kg/ha.
type OMFraction struct {
	Amount float64 // dry matter
	C      float64
	N      float64
	P      float64
	AshAlk float64 // ash alkalinity
}

func (f *OMFraction) add(o OMFraction) {
	f.Amount += o.Amount
	f.C += o.C
	f.N += o.N
	f.P += o.P
	f.AshAlk += o.AshAlk
}

func (f *OMFraction) sub(o OMFraction) {
	f.Amount -= o.Amount
	f.C -= o.C
	f.N -= o.N
	f.P -= o.P
	f.AshAlk -= o.AshAlk
}

func (f *OMFraction) scale(v float64) {
	f.Amount *= v
	f.C *= v
	f.N *= v
	f.P *= v
	f.AshAlk *= v
}

// scaled returns a copy of f multiplied by v.
func (f OMFraction) scaled(v float64) OMFraction {
	f.scale(v)
	return f
}

// Pool is a named pool of surface residue of a single type.
type Pool struct {
	Name string
	Type *ResidueType

	PotDecompRate float64 // [1/day]

	// Mineral nutrients carried by the residue [kg/ha].
	NO3, NH4, LabileP float64

	// Standing residue is elevated above the soil surface and does
	// not decompose; lying residue is in contact with the soil.
	Standing, Lying [NumClasses]OMFraction
}

// Standing and lying sums.
func (p *Pool) standingSum() OMFraction { return sumClasses(&p.Standing) }
func (p *Pool) lyingSum() OMFraction    { return sumClasses(&p.Lying) }

// Total returns the sum of the standing and lying residue in the pool.
func (p *Pool) Total() OMFraction {
	o := p.standingSum()
	o.add(p.lyingSum())
	return o
}

// LyingTotal returns the sum of lying residue in the pool.
func (p *Pool) LyingTotal() OMFraction { return p.lyingSum() }

// StandingTotal returns the sum of standing residue in the pool.
func (p *Pool) StandingTotal() OMFraction { return p.standingSum() }

func sumClasses(a *[NumClasses]OMFraction) OMFraction {
	var o OMFraction
	for i := range a {
		o.add(a[i])
	}
	return o
}

// scale multiplies all residue and mineral content of the pool by v.
func (p *Pool) scale(v float64) {
	for i := 0; i < NumClasses; i++ {
		p.Standing[i].scale(v)
		p.Lying[i].scale(v)
	}
	p.NO3 *= v
	p.NH4 *= v
	p.LabileP *= v
}

// copy returns a deep copy of the pool. Type is shared because
// residue types are immutable.
func (p *Pool) copy() *Pool {
	p2 := *p
	return &p2
}

func (p *Pool) String() string {
	t := p.Total()
	return fmt.Sprintf("%s (%s): %.4g kg/ha DM, %.4g kg/ha C, %.4g kg/ha N", p.Name, p.Type.Name, t.Amount, t.C, t.N)
}

// poolList is an ordered collection of pools keyed by name. Handles
// (indices) are stable because pools are never removed.
type poolList struct {
	pools []*Pool
	index map[string]int
}

func newPoolList() *poolList {
	return &poolList{index: make(map[string]int)}
}

func (l *poolList) len() int { return len(l.pools) }

// handle returns the handle of the pool with the given name and
// whether it exists.
func (l *poolList) handle(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// get returns the pool with the given name, or nil.
func (l *poolList) get(name string) *Pool {
	i, ok := l.index[name]
	if !ok {
		return nil
	}
	return l.pools[i]
}

// at returns the pool with the given handle.
func (l *poolList) at(h int) *Pool { return l.pools[h] }

// add appends a new empty pool and returns it. It panics if a pool
// with the same name already exists.
func (l *poolList) add(name string, t *ResidueType) *Pool {
	if _, ok := l.index[name]; ok {
		panic(fmt.Errorf("surfom: pool '%s' already exists", name))
	}
	p := &Pool{Name: name, Type: t, PotDecompRate: t.PotDecompRate}
	l.index[name] = len(l.pools)
	l.pools = append(l.pools, p)
	return p
}

// getOrAdd returns the pool with the given name, creating it with
// residue type t if it does not exist yet.
func (l *poolList) getOrAdd(name string, t *ResidueType) *Pool {
	if p := l.get(name); p != nil {
		return p
	}
	return l.add(name, t)
}

// array returns the pools in handle order.
func (l *poolList) array() []*Pool {
	return append([]*Pool(nil), l.pools...)
}
