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
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/floats"
)

// NumClasses is the number of decomposability classes that each
// standing and lying residue fraction is divided into.
const NumClasses = 3

// Default values for residue type fields that are neither set
// explicitly nor inherited.
var (
	defaultFractionC      = 0.4
	defaultSpecificArea   = 0.0005 // ha/kg
	defaultPotDecompRate  = 0.1    // 1/day
	defaultContactContrib = true
	defaultPoolSplit      = []float64{0.2, 0.7, 0.1}
)

// ResidueTypeDef is a residue type definition as it appears in a
// configuration file. Fields that are nil are unset and are filled in
// from the type named by DerivedFrom, or from default values.
type ResidueTypeDef struct {
	Name        string
	DerivedFrom string

	FractionC      *float64 // carbon fraction of dry matter
	NO3ppm         *float64 // nitrate concentration [ppm]
	NH4ppm         *float64 // ammonium concentration [ppm]
	PO4ppm         *float64 // labile phosphorus concentration [ppm]
	SpecificArea   *float64 // [ha/kg]
	PotDecompRate  *float64 // [1/day]
	ContactContrib *bool    // whether lying residue counts toward the contact factor

	// Fractions of C, N, and P in each decomposability class.
	FrPoolC, FrPoolN, FrPoolP []float64
}

// ResidueType holds the decomposition parameters for a type of
// residue. ResidueTypes are read-only once a Registry is created.
type ResidueType struct {
	Name           string
	FractionC      float64
	NO3ppm         float64
	NH4ppm         float64
	PO4ppm         float64
	SpecificArea   float64
	PotDecompRate  float64
	ContactContrib bool

	FrPoolC, FrPoolN, FrPoolP [NumClasses]float64
}

// Registry holds the residue types available to a simulation.
type Registry struct {
	types map[string]*ResidueType
}

// NewRegistry creates a registry from the given definitions,
// resolving template inheritance between them.
func NewRegistry(defs ...ResidueTypeDef) (*Registry, error) {
	byName := make(map[string]*ResidueTypeDef, len(defs))
	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, configErrorf("residue type %d has no name", i)
		}
		if _, ok := byName[d.Name]; ok {
			return nil, configErrorf("residue type '%s' is defined more than once", d.Name)
		}
		byName[d.Name] = &d
	}
	if err := fillDerived(byName); err != nil {
		return nil, err
	}
	r := &Registry{types: make(map[string]*ResidueType, len(byName))}
	for name, d := range byName {
		t, err := d.resolved()
		if err != nil {
			return nil, err
		}
		r.types[name] = t
	}
	return r, nil
}

// fillDerived fills unset fields of each definition from its parent,
// resolving parents first. A definition that is encountered again
// while it is still being resolved (a cycle) is left as-is, so that
// it falls back to the defaults for any fields it does not set.
func fillDerived(defs map[string]*ResidueTypeDef) error {
	done := make(map[string]bool)
	visiting := make(map[string]bool)
	var resolve func(name string) error
	resolve = func(name string) error {
		if done[name] || visiting[name] {
			return nil
		}
		d := defs[name]
		if d.DerivedFrom == "" {
			done[name] = true
			return nil
		}
		parent, ok := defs[d.DerivedFrom]
		if !ok {
			return configErrorf("residue type '%s' is derived from unknown type '%s'", name, d.DerivedFrom)
		}
		visiting[name] = true
		if err := resolve(parent.Name); err != nil {
			return err
		}
		delete(visiting, name)
		d.inherit(parent)
		done[name] = true
		return nil
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// inherit copies into d any field that is unset in d but set in p.
func (d *ResidueTypeDef) inherit(p *ResidueTypeDef) {
	inheritFloat := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			v := *src
			*dst = &v
		}
	}
	inheritFloat(&d.FractionC, p.FractionC)
	inheritFloat(&d.NO3ppm, p.NO3ppm)
	inheritFloat(&d.NH4ppm, p.NH4ppm)
	inheritFloat(&d.PO4ppm, p.PO4ppm)
	inheritFloat(&d.SpecificArea, p.SpecificArea)
	inheritFloat(&d.PotDecompRate, p.PotDecompRate)
	if d.ContactContrib == nil && p.ContactContrib != nil {
		v := *p.ContactContrib
		d.ContactContrib = &v
	}
	inheritSlice := func(dst *[]float64, src []float64) {
		if *dst == nil && src != nil {
			*dst = append([]float64(nil), src...)
		}
	}
	inheritSlice(&d.FrPoolC, p.FrPoolC)
	inheritSlice(&d.FrPoolN, p.FrPoolN)
	inheritSlice(&d.FrPoolP, p.FrPoolP)
}

// resolved returns a ResidueType with defaults substituted for any
// fields that remain unset, after checking that the values are valid.
func (d *ResidueTypeDef) resolved() (*ResidueType, error) {
	orDefault := func(v *float64, dflt float64) float64 {
		if v == nil {
			return dflt
		}
		return *v
	}
	t := &ResidueType{
		Name:           d.Name,
		FractionC:      orDefault(d.FractionC, defaultFractionC),
		NO3ppm:         orDefault(d.NO3ppm, 0),
		NH4ppm:         orDefault(d.NH4ppm, 0),
		PO4ppm:         orDefault(d.PO4ppm, 0),
		SpecificArea:   orDefault(d.SpecificArea, defaultSpecificArea),
		PotDecompRate:  orDefault(d.PotDecompRate, defaultPotDecompRate),
		ContactContrib: defaultContactContrib,
	}
	if d.ContactContrib != nil {
		t.ContactContrib = *d.ContactContrib
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"FractionC", t.FractionC},
		{"PotDecompRate", t.PotDecompRate},
	} {
		if f.v < 0 || f.v > 1 {
			return nil, configErrorf("residue type '%s': %s=%g must be between 0 and 1", d.Name, f.name, f.v)
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"NO3ppm", t.NO3ppm},
		{"NH4ppm", t.NH4ppm},
		{"PO4ppm", t.PO4ppm},
		{"SpecificArea", t.SpecificArea},
	} {
		if f.v < 0 {
			return nil, configErrorf("residue type '%s': %s=%g must not be negative", d.Name, f.name, f.v)
		}
	}
	for _, s := range []struct {
		name string
		src  []float64
		dst  *[NumClasses]float64
	}{
		{"FrPoolC", d.FrPoolC, &t.FrPoolC},
		{"FrPoolN", d.FrPoolN, &t.FrPoolN},
		{"FrPoolP", d.FrPoolP, &t.FrPoolP},
	} {
		src := s.src
		if src == nil {
			src = defaultPoolSplit
		}
		if len(src) != NumClasses {
			return nil, configErrorf("residue type '%s': %s has %d values but needs %d", d.Name, s.name, len(src), NumClasses)
		}
		if sum := floats.Sum(src); math.Abs(sum-1) > 1.e-6 {
			return nil, configErrorf("residue type '%s': %s sums to %g but should sum to 1", d.Name, s.name, sum)
		}
		copy(s.dst[:], src)
	}
	return t, nil
}

// Resolve returns the residue type with the given name.
func (r *Registry) Resolve(name string) (*ResidueType, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, &NotFoundError{Kind: "residue type", Name: name}
	}
	return t, nil
}

// Names returns the sorted names of the residue types in the registry.
func (r *Registry) Names() []string {
	o := make([]string, 0, len(r.types))
	for n := range r.types {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// Len returns the number of residue types in the registry.
func (r *Registry) Len() int { return len(r.types) }

// residueTypeFile is the layout of a residue type TOML file.
type residueTypeFile struct {
	ResidueType []ResidueTypeDef
}

// LoadRegistryTOML reads residue type definitions in TOML format
// from r, where each type is a [[ResidueType]] table, and returns
// the resulting registry. If includeDefaults is true, the built-in
// types are included as well, and types in r with the same name
// replace them.
func LoadRegistryTOML(r io.Reader, includeDefaults bool) (*Registry, error) {
	var f residueTypeFile
	if _, err := toml.DecodeReader(r, &f); err != nil {
		return nil, fmt.Errorf("surfom: reading residue types: %v", err)
	}
	if !includeDefaults {
		return NewRegistry(f.ResidueType...)
	}
	defs := make(map[string]ResidueTypeDef)
	for _, d := range DefaultResidueTypes() {
		defs[d.Name] = d
	}
	for _, d := range f.ResidueType {
		defs[d.Name] = d
	}
	all := make([]ResidueTypeDef, 0, len(defs))
	for _, d := range defs {
		all = append(all, d)
	}
	return NewRegistry(all...)
}

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

// DefaultResidueTypes returns the built-in residue type definitions.
func DefaultResidueTypes() []ResidueTypeDef {
	return []ResidueTypeDef{
		{
			Name:           "base",
			FractionC:      fp(0.4),
			SpecificArea:   fp(0.0005),
			PotDecompRate:  fp(0.1),
			ContactContrib: bp(true),
			FrPoolC:        []float64{0.2, 0.7, 0.1},
			FrPoolN:        []float64{0.2, 0.7, 0.1},
			FrPoolP:        []float64{0.2, 0.7, 0.1},
		},
		{Name: "wheat", DerivedFrom: "base", SpecificArea: fp(0.0005)},
		{Name: "barley", DerivedFrom: "wheat"},
		{Name: "maize", DerivedFrom: "base", SpecificArea: fp(0.0004)},
		{Name: "sorghum", DerivedFrom: "maize"},
		{Name: "canola", DerivedFrom: "base", SpecificArea: fp(0.0004), PotDecompRate: fp(0.05)},
		{Name: "chickpea", DerivedFrom: "base", SpecificArea: fp(0.0005), PotDecompRate: fp(0.12)},
		{Name: "lucerne", DerivedFrom: "base", SpecificArea: fp(0.0005)},
		{Name: "grass", DerivedFrom: "base", SpecificArea: fp(0.0007)},
		{
			Name:          "manure",
			DerivedFrom:   "base",
			FractionC:     fp(0.08),
			NO3ppm:        fp(10),
			NH4ppm:        fp(200),
			PO4ppm:        fp(50),
			SpecificArea:  fp(0.0001),
			PotDecompRate: fp(0.1),
			FrPoolC:       []float64{0.3, 0.6, 0.1},
			FrPoolN:       []float64{0.3, 0.6, 0.1},
			FrPoolP:       []float64{0.3, 0.6, 0.1},
		},
		{
			Name:           "inert",
			DerivedFrom:    "base",
			PotDecompRate:  fp(0),
			ContactContrib: bp(false),
		},
	}
}
