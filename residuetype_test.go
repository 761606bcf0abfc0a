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
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRegistry_defaults(t *testing.T) {
	r, err := NewRegistry(ResidueTypeDef{Name: "plain"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.Resolve("plain")
	if err != nil {
		t.Fatal(err)
	}
	want := &ResidueType{
		Name:           "plain",
		FractionC:      0.4,
		SpecificArea:   0.0005,
		PotDecompRate:  0.1,
		ContactContrib: true,
		FrPoolC:        [NumClasses]float64{0.2, 0.7, 0.1},
		FrPoolN:        [NumClasses]float64{0.2, 0.7, 0.1},
		FrPoolP:        [NumClasses]float64{0.2, 0.7, 0.1},
	}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("have %+v\nwant %+v", p, want)
	}
}

func TestRegistry_derivation(t *testing.T) {
	// a <- b <- c, given in every order.
	defs := []ResidueTypeDef{
		{Name: "a", FractionC: fp(0.45), NO3ppm: fp(20), FrPoolC: []float64{0.1, 0.8, 0.1}},
		{Name: "b", DerivedFrom: "a", FractionC: fp(0.3)},
		{Name: "c", DerivedFrom: "b", SpecificArea: fp(0.001)},
	}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}, {2, 0, 1}}
	var first *ResidueType
	for _, o := range orders {
		r, err := NewRegistry(defs[o[0]], defs[o[1]], defs[o[2]])
		if err != nil {
			t.Fatal(err)
		}
		c, err := r.Resolve("c")
		if err != nil {
			t.Fatal(err)
		}
		if c.FractionC != 0.3 || c.NO3ppm != 20 || c.SpecificArea != 0.001 {
			t.Errorf("order %v: c = %+v", o, c)
		}
		if c.FrPoolC != [NumClasses]float64{0.1, 0.8, 0.1} {
			t.Errorf("order %v: FrPoolC = %v", o, c.FrPoolC)
		}
		if c.FrPoolN != [NumClasses]float64{0.2, 0.7, 0.1} {
			t.Errorf("order %v: FrPoolN = %v", o, c.FrPoolN)
		}
		c2, _ := r.Resolve("c")
		if c2 != c {
			t.Error("resolving twice gave different types")
		}
		if first == nil {
			first = c
		} else if !reflect.DeepEqual(first, c) {
			t.Errorf("order %v gives %+v, want %+v", o, c, first)
		}
	}
	// Explicit values are never overwritten.
	if defs[1].FractionC == nil || *defs[1].FractionC != 0.3 {
		t.Error("definitions were modified")
	}
}

func TestRegistry_cycle(t *testing.T) {
	r, err := NewRegistry(
		ResidueTypeDef{Name: "x", DerivedFrom: "y", FractionC: fp(0.2)},
		ResidueTypeDef{Name: "y", DerivedFrom: "x", NO3ppm: fp(5)},
	)
	if err != nil {
		t.Fatal(err)
	}
	x, _ := r.Resolve("x")
	y, _ := r.Resolve("y")
	if x.FractionC != 0.2 || y.NO3ppm != 5 {
		t.Errorf("explicit values lost: x=%+v y=%+v", x, y)
	}
}

func TestRegistry_errors(t *testing.T) {
	for _, test := range []struct {
		name string
		defs []ResidueTypeDef
	}{
		{name: "no name", defs: []ResidueTypeDef{{}}},
		{name: "duplicate", defs: []ResidueTypeDef{{Name: "a"}, {Name: "a"}}},
		{name: "unknown parent", defs: []ResidueTypeDef{{Name: "a", DerivedFrom: "zz"}}},
		{name: "split length", defs: []ResidueTypeDef{{Name: "a", FrPoolC: []float64{0.5, 0.5}}}},
		{name: "split sum", defs: []ResidueTypeDef{{Name: "a", FrPoolN: []float64{0.5, 0.5, 0.5}}}},
		{name: "fraction C", defs: []ResidueTypeDef{{Name: "a", FractionC: fp(1.2)}}},
		{name: "negative ppm", defs: []ResidueTypeDef{{Name: "a", NH4ppm: fp(-1)}}},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewRegistry(test.defs...); !errors.Is(err, ErrConfiguration) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewRegistry(DefaultResidueTypes()...)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != len(DefaultResidueTypes()) {
		t.Errorf("len = %d", r.Len())
	}
	_, err = r.Resolve("unobtainium")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Name != "unobtainium" {
		t.Errorf("err = %v", err)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("not found should be a configuration error")
	}
	barley, _ := r.Resolve("barley")
	if barley.SpecificArea != 0.0005 || barley.FractionC != 0.4 {
		t.Errorf("barley = %+v", barley)
	}
	if names := r.Names(); names[0] != "barley" {
		t.Errorf("names not sorted: %v", names)
	}
}

const testTypes = `
[[ResidueType]]
Name = "oats"
DerivedFrom = "wheat"
PotDecompRate = 0.08

[[ResidueType]]
Name = "wheat"
SpecificArea = 0.0006
`

func TestLoadRegistryTOML(t *testing.T) {
	r, err := LoadRegistryTOML(strings.NewReader(testTypes), true)
	if err != nil {
		t.Fatal(err)
	}
	oats, err := r.Resolve("oats")
	if err != nil {
		t.Fatal(err)
	}
	if oats.PotDecompRate != 0.08 || oats.SpecificArea != 0.0006 {
		t.Errorf("oats = %+v", oats)
	}
	if _, err := r.Resolve("maize"); err != nil {
		t.Errorf("defaults not included: %v", err)
	}

	r2, err := LoadRegistryTOML(strings.NewReader(testTypes), false)
	if err != nil {
		t.Fatal(err)
	}
	if r2.Len() != 2 {
		t.Errorf("len = %d, want 2", r2.Len())
	}
	if _, err := LoadRegistryTOML(strings.NewReader("[[ResidueType]\n"), false); err == nil {
		t.Error("expected a parse error")
	}
}
