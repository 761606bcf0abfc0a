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

// Package surfom is a model of the decomposition of surface organic
// matter (crop residues, manure, and other litter) in agricultural
// systems. It tracks carbon, nitrogen, and phosphorus in a set of named
// residue pools, decomposes them daily as a function of temperature,
// moisture, residue C:N ratio and soil contact, and transfers material
// to a soil nutrient model through decomposition, leaching of mineral
// nutrients, and tillage.
package surfom

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/surfom/met"
)

// Version gives the version number.
const Version = "1.0.0"

// TillageType specifies the fraction of surface residue that a tillage
// operation incorporates and the depth it is incorporated to.
type TillageType struct {
	Fraction float64 // [0-1]
	Depth    float64 // [mm]
}

// Params holds the parameters of the surface organic matter model.
type Params struct {
	OptTemp       float64 `desc:"Temperature at which decomposition is not temperature limited" units:"°C"`
	CumEosMax     float64 `desc:"Cumulative soil evaporation at which decomposition stops" units:"mm"`
	CritResidueWt float64 `desc:"Lying residue mass above which soil contact limits decomposition" units:"kg/ha"`
	CNRFCoeff     float64 `desc:"Coefficient of the C:N ratio factor" units:"-"`
	CNRFOptCN     float64 `desc:"C:N ratio below which decomposition is not nitrogen limited" units:"-"`

	TotalLeachRain float64 `desc:"Rainfall required to leach all mineral nutrients from residue" units:"mm"`

	StandingExtinctCoeff float64 `desc:"Relative cover contribution of standing residue" units:"-"`

	DefaultCPRatio      float64 `desc:"C:P ratio used when neither P nor a C:P ratio is given" units:"-"`
	FractionFaecesAdded float64 `desc:"Fraction of excreta that is added to the surface" units:"-"`

	// TillageTypes holds the fraction and depth of named tillage
	// operations.
	TillageTypes map[string]TillageType
}

// DefaultParams returns the default model parameters.
func DefaultParams() *Params {
	return &Params{
		OptTemp:              20,
		CumEosMax:            20,
		CritResidueWt:        2000,
		CNRFCoeff:            0.277,
		CNRFOptCN:            25,
		TotalLeachRain:       25,
		StandingExtinctCoeff: 0.5,
		DefaultCPRatio:       200,
		FractionFaecesAdded:  0.5,
		TillageTypes: map[string]TillageType{
			"planter":   {Fraction: 0.1, Depth: 50},
			"scarifier": {Fraction: 0.3, Depth: 100},
			"chisel":    {Fraction: 0.2, Depth: 100},
			"disc":      {Fraction: 0.5, Depth: 100},
			"rip":       {Fraction: 0.3, Depth: 300},
			"burn":      {Fraction: 0.9, Depth: 0},
			"burn_90":   {Fraction: 0.9, Depth: 0},
			"burn_95":   {Fraction: 0.95, Depth: 0},
		},
	}
}

// check returns an error if any of the parameters are invalid.
func (p *Params) check() error {
	for _, v := range []struct {
		name string
		v    float64
	}{
		{"OptTemp", p.OptTemp},
		{"CumEosMax", p.CumEosMax},
		{"CritResidueWt", p.CritResidueWt},
		{"TotalLeachRain", p.TotalLeachRain},
	} {
		if !(v.v > 0) {
			return configErrorf("parameter %s=%g must be > 0", v.name, v.v)
		}
	}
	for _, v := range []struct {
		name string
		v    float64
	}{
		{"CNRFCoeff", p.CNRFCoeff},
		{"CNRFOptCN", p.CNRFOptCN},
		{"DefaultCPRatio", p.DefaultCPRatio},
	} {
		if v.v < 0 {
			return configErrorf("parameter %s=%g must not be negative", v.name, v.v)
		}
	}
	if p.FractionFaecesAdded < 0 || p.FractionFaecesAdded > 1 {
		return configErrorf("parameter FractionFaecesAdded=%g must be between 0 and 1", p.FractionFaecesAdded)
	}
	if p.StandingExtinctCoeff < 0 || p.StandingExtinctCoeff > 1 {
		return configErrorf("parameter StandingExtinctCoeff=%g must be between 0 and 1", p.StandingExtinctCoeff)
	}
	for name, t := range p.TillageTypes {
		if t.Fraction < 0 || t.Fraction > 1 {
			return configErrorf("tillage type '%s': fraction %g must be between 0 and 1", name, t.Fraction)
		}
	}
	return nil
}

// SoilNutrients is the interface for soil nutrient models that
// receive material from the surface residue.
type SoilNutrients interface {
	// ActualDecomposition returns the amount of the potential decomposition
	// in each pool that should actually be realized. Actual decomposition
	// must not exceed potential decomposition.
	ActualDecomposition(pot *PotentialDecomposition) ([]ActualDecomposition, error)

	// NitrogenChanged adds the given mineral nutrients to the soil.
	NitrogenChanged(c NutrientChange) error

	// IncorporateFOM adds fresh organic matter to the soil layers.
	IncorporateFOM(f *LayeredFOM) error
}

// NutrientChange is a change in soil mineral nutrients in each
// soil layer [kg/ha].
type NutrientChange struct {
	Sender            string
	NO3, NH4, LabileP []float64
}

// Manipulator is a function that operates on a model.
type Manipulator func(m *Model) error

// Model holds the state of the surface organic matter.
type Model struct {
	Params *Params
	Types  *Registry

	// Log receives warnings and debugging information.
	Log logrus.FieldLogger

	// Layers holds the thickness of each soil layer [mm], from the
	// surface downward.
	Layers []float64

	// Nutrients is the soil nutrient model that decomposition products,
	// leached nutrients and incorporated residue are sent to. If it is
	// nil, no decomposition occurs.
	Nutrients SoilNutrients

	// InitFuncs are run once when the simulation starts.
	InitFuncs []Manipulator

	// DailyFuncs are run once per simulated day until Done is true.
	DailyFuncs []Manipulator

	// CleanupFuncs are run once when the simulation ends.
	CleanupFuncs []Manipulator

	// Done specifies whether the simulation is finished.
	Done bool

	// Met holds the weather for the current day.
	Met *met.Met

	pools    *poolList
	handlers []EventHandler

	day         int       // number of days simulated
	resumeAfter time.Time // weather through this date was simulated before a restart
	cumEos      float64   // cumulative soil evaporation since the last rain [mm]
	pot         *PotentialDecomposition
	dayStart    Totals

	ops []Operation
	seq int
}

// Option configures a new model.
type Option func(*Model) error

// WithLogger sets the logger that the model writes to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Model) error {
		m.Log = l
		return nil
	}
}

// WithSoil sets the soil layer thicknesses [mm] and the soil nutrient
// model.
func WithSoil(layers []float64, n SoilNutrients) Option {
	return func(m *Model) error {
		for i, l := range layers {
			if !(l > 0) {
				return configErrorf("soil layer %d has thickness %g; it must be > 0", i, l)
			}
		}
		m.Layers = append([]float64(nil), layers...)
		m.Nutrients = n
		return nil
	}
}

// WithHandlers adds event handlers to the model.
func WithHandlers(h ...EventHandler) Option {
	return func(m *Model) error {
		m.handlers = append(m.handlers, h...)
		return nil
	}
}

// NewModel creates a new model using the given residue types and
// parameters. If params is nil, DefaultParams is used.
func NewModel(types *Registry, params *Params, opts ...Option) (*Model, error) {
	if types == nil {
		return nil, configErrorf("no residue types")
	}
	if params == nil {
		params = DefaultParams()
	}
	if err := params.check(); err != nil {
		return nil, err
	}
	m := &Model{
		Params: params,
		Types:  types,
		Log:    logrus.StandardLogger(),
		pools:  newPoolList(),
	}
	for _, o := range opts {
		if err := o(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Init runs the initialization functions.
func (m *Model) Init() error {
	for _, f := range m.InitFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the daily functions until the simulation is done and then
// runs the cleanup functions. A day stops being processed as soon as
// one of its functions sets Done.
func (m *Model) Run() error {
	for !m.Done {
		for _, f := range m.DailyFuncs {
			if err := f(m); err != nil {
				return err
			}
			if m.Done {
				break
			}
		}
	}
	for _, f := range m.CleanupFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

// Day returns the number of days that have been started.
func (m *Model) Day() int { return m.day }

// Pools returns copies of the residue pools in the order they were
// created.
func (m *Model) Pools() []*Pool {
	o := make([]*Pool, m.pools.len())
	for i, p := range m.pools.array() {
		o[i] = p.copy()
	}
	return o
}

// Pool returns a copy of the pool with the given name.
func (m *Model) Pool(name string) (*Pool, error) {
	p := m.pools.get(name)
	if p == nil {
		return nil, &NotFoundError{Kind: "pool", Name: name}
	}
	return p.copy(), nil
}

// NumPools returns the number of residue pools.
func (m *Model) NumPools() int { return m.pools.len() }

// Potential returns the most recently calculated potential
// decomposition, or nil if it has not been calculated today.
func (m *Model) Potential() *PotentialDecomposition { return m.pot }
