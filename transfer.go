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

	"github.com/sirupsen/logrus"
)

// Requests to remove more than is available by less than this amount
// [kg/ha] are not errors.
const massTolerance = 1.e-6

// leachSender identifies this model in nutrient changes.
const leachSender = "SurfaceOrganicMatter"

// AddRequest specifies residue to be added to a pool.
type AddRequest struct {
	// Type is the name of the residue type.
	Type string

	// Name is the name of the pool to add to. If it is empty, the
	// type name is used.
	Name string

	// Mass is the dry matter to add [kg/ha]. A negative mass removes
	// residue from all parts of the pool in proportion to their
	// current mass.
	Mass float64

	// N, P, and AshAlk are the amounts of nitrogen, phosphorus, and
	// ash alkalinity in the added residue [kg/ha]. If N is zero it is
	// calculated from CNRatio. If P is zero it is calculated from
	// CPRatio, or from the default C:P ratio if CPRatio is zero.
	N, P, AshAlk float64

	CNRatio, CPRatio float64

	// StandingFraction is the fraction of the addition that is
	// standing rather than lying [0-1].
	StandingFraction float64
}

// Add adds residue to a pool, creating the pool if it does not exist.
func (m *Model) Add(r AddRequest) error {
	if err := m.audit("add", func() error { return m.add(r) }); err != nil {
		return err
	}
	m.record(Operation{Kind: OpAdd, Add: &r})
	return nil
}

func (m *Model) add(r AddRequest) error {
	t, err := m.Types.Resolve(r.Type)
	if err != nil {
		return err
	}
	name := r.Name
	if name == "" {
		name = t.Name
	}
	if p := m.pools.get(name); p != nil && p.Type != t {
		m.Log.WithFields(logrus.Fields{
			"pool":      name,
			"pool_type": p.Type.Name,
			"add_type":  t.Name,
		}).Warn("adding residue to a pool of a different type; using the pool's type")
		t = p.Type
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"mass", r.Mass}, {"N", r.N}, {"P", r.P}, {"C:N ratio", r.CNRatio},
		{"C:P ratio", r.CPRatio}, {"ash alkalinity", r.AshAlk},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return inputErrorf("%s %g for pool '%s' is not a finite number", v.name, v.val, name)
		}
	}
	if r.Mass < 0 {
		return m.removeMass(name, -r.Mass)
	}
	if r.StandingFraction < 0 || r.StandingFraction > 1 {
		return inputErrorf("standing fraction %g for pool '%s' must be between 0 and 1", r.StandingFraction, name)
	}
	if r.Mass == 0 {
		m.pools.getOrAdd(name, t)
		return nil
	}
	c := r.Mass * t.FractionC
	n := r.N
	if n <= 0 {
		if r.CNRatio <= 0 {
			return inputErrorf("addition of %g kg/ha to pool '%s' has neither an N amount nor a C:N ratio", r.Mass, name)
		}
		n = c / r.CNRatio
	}
	phos := r.P
	if phos <= 0 {
		if r.CPRatio > 0 {
			phos = c / r.CPRatio
		} else {
			phos = Divide(c, m.Params.DefaultCPRatio, 0)
			m.Log.WithFields(logrus.Fields{
				"pool":     name,
				"cp_ratio": m.Params.DefaultCPRatio,
			}).Warn("no P amount or C:P ratio given for residue addition; using the default C:P ratio")
		}
	}

	p := m.pools.getOrAdd(name, t)
	sf := r.StandingFraction
	var added OMFraction
	for i := 0; i < NumClasses; i++ {
		class := OMFraction{
			Amount: r.Mass * t.FrPoolC[i],
			C:      c * t.FrPoolC[i],
			N:      n * t.FrPoolN[i],
			P:      phos * t.FrPoolP[i],
			AshAlk: r.AshAlk * t.FrPoolC[i],
		}
		p.Standing[i].add(class.scaled(sf))
		p.Lying[i].add(class.scaled(1 - sf))
		added.add(class)
	}
	e := &ResidueAdded{
		Pool:    name,
		Type:    t.Name,
		Added:   added,
		NO3:     t.NO3ppm * r.Mass / 1.e6,
		NH4:     t.NH4ppm * r.Mass / 1.e6,
		LabileP: t.PO4ppm * r.Mass / 1.e6,
	}
	p.NO3 += e.NO3
	p.NH4 += e.NH4
	p.LabileP += e.LabileP
	m.publish(e)
	return nil
}

// removeMass removes the given dry matter [kg/ha] from the named pool,
// reducing every part of the pool by the same fraction.
func (m *Model) removeMass(name string, mass float64) error {
	p := m.pools.get(name)
	var have float64
	if p != nil {
		have = p.Total().Amount
	}
	if mass > have+massTolerance {
		return imbalanceErrorf("cannot remove %g kg/ha from pool '%s': only %g kg/ha available", mass, name, have)
	}
	if p == nil {
		return nil
	}
	frac := Bound(Divide(mass, have, 0), 0, 1)
	e := &ResidueAdded{
		Pool:    name,
		Type:    p.Type.Name,
		Added:   p.Total().scaled(-frac),
		NO3:     -p.NO3 * frac,
		NH4:     -p.NH4 * frac,
		LabileP: -p.LabileP * frac,
	}
	p.scale(1 - frac)
	m.publish(e)
	return nil
}

// Remove removes the residue and mineral nutrients in s from the pool
// with the same name. Removing more lying residue or mineral nutrient
// than the pool holds is a mass imbalance error and leaves the pool
// unchanged. A shortfall of standing residue is logged and the standing
// quantity is set to zero.
func (m *Model) Remove(s Pool) error {
	if err := m.audit("remove", func() error { return m.remove(&s) }); err != nil {
		return err
	}
	m.record(Operation{Kind: OpRemove, Remove: s.copy()})
	return nil
}

func (m *Model) remove(s *Pool) error {
	p := m.pools.get(s.Name)
	if p == nil {
		return &NotFoundError{Kind: "pool", Name: s.Name}
	}
	for i := range s.Lying {
		want, have := s.Lying[i].fields(), p.Lying[i].fields()
		for j, name := range omFieldNames {
			if err := checkNonNegative("removal of lying "+name+" from pool '"+s.Name+"'", want[j]); err != nil {
				return err
			}
			if want[j] > have[j]+massTolerance {
				return imbalanceErrorf("pool '%s': cannot remove %g kg/ha of lying %s from class %d; only %g kg/ha available",
					s.Name, want[j], name, i, have[j])
			}
		}
	}
	for i := range s.Standing {
		for j, v := range s.Standing[i].fields() {
			if err := checkNonNegative("removal of standing "+omFieldNames[j]+" from pool '"+s.Name+"'", v); err != nil {
				return err
			}
		}
	}
	for _, v := range []struct {
		name       string
		want, have float64
	}{
		{"NO3", s.NO3, p.NO3},
		{"NH4", s.NH4, p.NH4},
		{"labile P", s.LabileP, p.LabileP},
	} {
		if err := checkNonNegative("removal of "+v.name+" from pool '"+s.Name+"'", v.want); err != nil {
			return err
		}
		if v.want > v.have+massTolerance {
			return imbalanceErrorf("pool '%s': cannot remove %g kg/ha of %s; only %g kg/ha available",
				s.Name, v.want, v.name, v.have)
		}
	}

	before := p.Total()
	for i := range s.Standing {
		want, have := s.Standing[i].fields(), p.Standing[i].fields()
		for j, name := range omFieldNames {
			if want[j] > have[j]+massTolerance {
				m.Log.WithFields(logrus.Fields{
					"pool":      s.Name,
					"class":     i,
					"quantity":  name,
					"requested": want[j],
					"available": have[j],
				}).Warn("removing more standing residue than is available")
			}
		}
		p.Standing[i].sub(s.Standing[i])
		p.Standing[i].floorZero()
		p.Lying[i].sub(s.Lying[i])
		p.Lying[i].floorZero()
	}
	p.NO3 = math.Max(0, p.NO3-s.NO3)
	p.NH4 = math.Max(0, p.NH4-s.NH4)
	p.LabileP = math.Max(0, p.LabileP-s.LabileP)
	removed := before
	removed.sub(p.Total())
	m.publish(&ResidueRemoved{Pool: s.Name, Removed: removed})
	return nil
}

// omFieldNames are the names of the quantities returned by
// OMFraction.fields.
var omFieldNames = [5]string{"dry matter", "C", "N", "P", "ash alkalinity"}

func (f *OMFraction) fields() [5]float64 {
	return [5]float64{f.Amount, f.C, f.N, f.P, f.AshAlk}
}

// floorZero sets negative quantities to zero.
func (f *OMFraction) floorZero() {
	f.Amount = math.Max(0, f.Amount)
	f.C = math.Max(0, f.C)
	f.N = math.Max(0, f.N)
	f.P = math.Max(0, f.P)
	f.AshAlk = math.Max(0, f.AshAlk)
}

// TillageRequest specifies a tillage operation. A negative Fraction or
// Depth is replaced by the value in the parameter table entry named by
// Type; so are both when both are zero and Type is in the table.
type TillageRequest struct {
	Type     string
	Fraction float64 // fraction of residue incorporated [0-1]
	Depth    float64 // incorporation depth [mm]
}

// resolveTillage fills in unspecified values of t from the tillage
// type table.
func (m *Model) resolveTillage(t TillageRequest) (TillageRequest, error) {
	tt, ok := m.Params.TillageTypes[t.Type]
	if ok && t.Fraction == 0 && t.Depth == 0 {
		t.Fraction, t.Depth = tt.Fraction, tt.Depth
	}
	if t.Fraction < 0 || t.Depth < 0 {
		if !ok {
			return t, &NotFoundError{Kind: "tillage type", Name: t.Type}
		}
		if t.Fraction < 0 {
			t.Fraction = tt.Fraction
		}
		if t.Depth < 0 {
			t.Depth = tt.Depth
		}
	}
	if t.Fraction > 1 {
		return t, inputErrorf("tillage fraction %g must be between 0 and 1", t.Fraction)
	}
	return t, nil
}

// Tillage incorporates a fraction of the residue and mineral nutrients
// in every pool into the soil down to the tillage depth. If the depth
// is not positive, the residue is lost from the system instead, for
// example by burning.
func (m *Model) Tillage(t TillageRequest) error {
	t, err := m.resolveTillage(t)
	if err != nil {
		return err
	}
	process := "incorporation"
	if t.Depth <= 0 {
		process = "burn"
	}
	if err := m.audit(process, func() error { return m.tillage(t) }); err != nil {
		return err
	}
	m.record(Operation{Kind: OpTillage, Tillage: &t})
	return nil
}

// Incorporate incorporates the given fraction of residue to the given
// depth [mm].
func (m *Model) Incorporate(fraction, depth float64) error {
	return m.Tillage(TillageRequest{Fraction: fraction, Depth: depth})
}

func (m *Model) tillage(t TillageRequest) error {
	var fom *LayeredFOM
	if t.Depth > 0 {
		if len(m.Layers) == 0 {
			return configErrorf("tillage to %g mm requires soil layers", t.Depth)
		}
		fom = m.layeredFOM(t.Fraction, t.Depth)
		if m.Nutrients != nil {
			if err := m.Nutrients.IncorporateFOM(fom); err != nil {
				return err
			}
		}
	}
	for _, p := range m.pools.pools {
		p.scale(1 - t.Fraction)
	}
	m.Log.WithFields(logrus.Fields{
		"type":     t.Type,
		"fraction": t.Fraction,
		"depth":    t.Depth,
	}).Info("residue incorporated")
	m.publish(&Incorporated{Type: t.Type, Fraction: t.Fraction, Depth: t.Depth, FOM: fom})
	return nil
}

// FOMPool is fresh organic matter from one residue pool.
type FOMPool struct {
	Name, Type string
	OM         OMFraction
}

// FOMLayer is the fresh organic matter and mineral nutrients
// incorporated into one soil layer [kg/ha].
type FOMLayer struct {
	Pools             []FOMPool
	NO3, NH4, LabileP float64
}

// LayeredFOM is residue incorporated into the soil, by layer.
type LayeredFOM struct {
	Layers []FOMLayer
}

// Total returns the organic matter in all layers.
func (l *LayeredFOM) Total() OMFraction {
	var o OMFraction
	for _, ly := range l.Layers {
		for _, p := range ly.Pools {
			o.add(p.OM)
		}
	}
	return o
}

// tillageLayerFractions returns the fraction of the tillage depth that
// falls in each soil layer. The deepest layer reached gets the
// remainder, so the fractions sum to one.
func tillageLayerFractions(depth float64, thickness []float64) []float64 {
	deepest := LayerIndex(depth, thickness)
	f := make([]float64, deepest+1)
	var cum float64
	for i := 0; i <= deepest; i++ {
		d := math.Min(thickness[i], depth-cum)
		if i == deepest {
			d = depth - cum
		}
		f[i] = Divide(d, depth, 0)
		cum += thickness[i]
	}
	return f
}

// layeredFOM returns the given fraction of all residue distributed
// over the soil layers down to depth.
func (m *Model) layeredFOM(fraction, depth float64) *LayeredFOM {
	lf := tillageLayerFractions(depth, m.Layers)
	fom := &LayeredFOM{Layers: make([]FOMLayer, len(m.Layers))}
	for i, f := range lf {
		ly := &fom.Layers[i]
		ly.Pools = make([]FOMPool, m.pools.len())
		for j, p := range m.pools.pools {
			ly.Pools[j] = FOMPool{Name: p.Name, Type: p.Type.Name, OM: p.Total().scaled(fraction * f)}
			ly.NO3 += p.NO3 * fraction * f
			ly.NH4 += p.NH4 * fraction * f
			ly.LabileP += p.LabileP * fraction * f
		}
	}
	return fom
}

// Leach moves a fraction of the mineral nutrients carried by every pool
// into the top soil layer. The fraction is rain divided by the rain
// needed to leach all mineral nutrients, up to one.
func (m *Model) Leach(rain float64) (NutrientChange, error) {
	if rain < 0 {
		return NutrientChange{}, inputErrorf("rainfall %g mm is negative", rain)
	}
	n := len(m.Layers)
	if n == 0 {
		n = 1
	}
	c := NutrientChange{
		Sender:  leachSender,
		NO3:     make([]float64, n),
		NH4:     make([]float64, n),
		LabileP: make([]float64, n),
	}
	f := Bound(Divide(rain, m.Params.TotalLeachRain, 0), 0, 1)
	if f == 0 {
		return c, nil
	}
	for _, p := range m.pools.pools {
		c.NO3[0] += p.NO3 * f
		c.NH4[0] += p.NH4 * f
		c.LabileP[0] += p.LabileP * f
	}
	if m.Nutrients != nil {
		if err := m.Nutrients.NitrogenChanged(c); err != nil {
			return c, err
		}
	}
	for _, p := range m.pools.pools {
		p.NO3 *= 1 - f
		p.NH4 *= 1 - f
		p.LabileP *= 1 - f
	}
	m.publish(&Leached{Change: c})
	m.record(Operation{Kind: OpLeach, Rain: rain})
	return c, nil
}

// CropResidue is plant material returned to the surface, for example
// at harvest. Amount, N, and P hold the mass [kg/ha] of each plant part
// and FractionToResidue the fraction of each part that becomes residue.
type CropResidue struct {
	Type, Name        string
	Amount, N, P      []float64
	FractionToResidue []float64
}

// AddCropResidue adds crop residue to the pool named after the crop.
func (m *Model) AddCropResidue(r CropResidue) error {
	req, err := r.request()
	if err != nil {
		return err
	}
	if req.Mass <= 0 {
		return nil
	}
	if err := m.audit("crop residue", func() error { return m.add(req) }); err != nil {
		return err
	}
	m.record(Operation{Kind: OpCropResidue, CropResidue: &r})
	return nil
}

func (r CropResidue) request() (AddRequest, error) {
	n := len(r.Amount)
	if len(r.N) != n || len(r.P) != n || len(r.FractionToResidue) != n {
		return AddRequest{}, inputErrorf("crop residue '%s': amount, N, P and fraction to residue must have the same number of plant parts", r.Type)
	}
	req := AddRequest{Type: r.Type, Name: r.Name}
	for i, f := range r.FractionToResidue {
		if f < 0 || f > 1 {
			return AddRequest{}, inputErrorf("crop residue '%s': fraction to residue %g must be between 0 and 1", r.Type, f)
		}
		req.Mass += r.Amount[i] * f
		req.N += r.N[i] * f
		req.P += r.P[i] * f
	}
	return req, nil
}

// manureType is the residue type and pool that excreta are added to.
const manureType = "manure"

// Faeces is excreta deposited by animals [kg/ha].
type Faeces struct {
	Weight, N, P, S, AshAlk float64
}

// AddFaeces adds the surface fraction of excreta to the manure pool.
func (m *Model) AddFaeces(f Faeces) error {
	if f.Weight <= 0 {
		return nil
	}
	frac := m.Params.FractionFaecesAdded
	req := AddRequest{
		Type:   manureType,
		Name:   manureType,
		Mass:   f.Weight * frac,
		N:      f.N * frac,
		P:      f.P * frac,
		AshAlk: f.AshAlk * frac,
	}
	if f.S > 0 {
		m.Log.WithField("S", f.S*frac).Debug("sulphur in faeces is not tracked")
	}
	if err := m.audit("faeces", func() error { return m.add(req) }); err != nil {
		return err
	}
	m.record(Operation{Kind: OpFaeces, Faeces: &f})
	return nil
}
