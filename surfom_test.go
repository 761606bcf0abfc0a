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
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/surfom/met"
)

const testTolerance = 1.e-8

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b float64) bool {
	return math.Abs(a-b) > 1.e-6 || math.IsNaN(a) || math.IsNaN(b)
}

// testModel returns a model with the default residue types, two 50 mm
// soil layers and no soil nutrient model. Warnings are captured by the
// returned hook.
func testModel(t *testing.T, opts ...Option) (*Model, *test.Hook) {
	reg, err := NewRegistry(DefaultResidueTypes()...)
	if err != nil {
		t.Fatal(err)
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithLogger(logger), WithSoil([]float64{50, 50}, nil)}, opts...)
	m, err := NewModel(reg, nil, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return m, hook
}

// recorder is an EventHandler that keeps the events it receives.
type recorder struct {
	events []Event
}

func (r *recorder) HandleEvent(e Event) { r.events = append(r.events, e) }

func (r *recorder) massFlows() []*MassFlow {
	var o []*MassFlow
	for _, e := range r.events {
		if mf, ok := e.(*MassFlow); ok {
			o = append(o, mf)
		}
	}
	return o
}

// fakeSoil is a SoilNutrients that records what it receives and
// returns a fixed fraction of the potential decomposition.
type fakeSoil struct {
	fraction float64
	changes  []NutrientChange
	fom      []*LayeredFOM
}

func (s *fakeSoil) ActualDecomposition(pot *PotentialDecomposition) ([]ActualDecomposition, error) {
	o := make([]ActualDecomposition, len(pot.Pools))
	for i, pd := range pot.Pools {
		o[i] = ActualDecomposition{Name: pd.Name, C: pd.C * s.fraction, N: pd.N * s.fraction}
	}
	return o, nil
}

func (s *fakeSoil) NitrogenChanged(c NutrientChange) error {
	s.changes = append(s.changes, c)
	return nil
}

func (s *fakeSoil) IncorporateFOM(f *LayeredFOM) error {
	s.fom = append(s.fom, f)
	return nil
}

func warmDay() *met.Met {
	return &met.Met{Year: 2000, DOY: 100, MaxT: 30, MinT: 20, Rain: 0, Eos: 2}
}

func TestNewModel(t *testing.T) {
	reg, err := NewRegistry(DefaultResidueTypes()...)
	if err != nil {
		t.Fatal(err)
	}
	t.Run("nil registry", func(t *testing.T) {
		if _, err := NewModel(nil, nil); !errors.Is(err, ErrConfiguration) {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("bad params", func(t *testing.T) {
		p := DefaultParams()
		p.CumEosMax = 0
		if _, err := NewModel(reg, p); !errors.Is(err, ErrConfiguration) {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("bad layers", func(t *testing.T) {
		if _, err := NewModel(reg, nil, WithSoil([]float64{50, 0}, nil)); !errors.Is(err, ErrConfiguration) {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("default", func(t *testing.T) {
		m, err := NewModel(reg, nil)
		if err != nil {
			t.Fatal(err)
		}
		if m.NumPools() != 0 {
			t.Errorf("new model has %d pools", m.NumPools())
		}
		if _, err := m.Pool("wheat"); !errors.Is(err, ErrConfiguration) {
			t.Errorf("missing pool err = %v", err)
		}
	})
}

func TestRun(t *testing.T) {
	m, _ := testModel(t)
	recs := []*met.Met{warmDay(), warmDay(), warmDay(), warmDay()}
	var ends int
	m.DailyFuncs = []Manipulator{
		ReadWeather(&met.SliceSource{Records: recs}),
		StartOfDay(),
		func(m *Model) error { ends++; return nil },
		NumDays(2),
	}
	m.CleanupFuncs = []Manipulator{func(m *Model) error { ends += 10; return nil }}
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if m.Day() != 2 {
		t.Errorf("day = %d, want 2", m.Day())
	}
	if ends != 12 {
		t.Errorf("ends = %d, want 12", ends)
	}
}

func TestCumulativeEvaporation(t *testing.T) {
	m, _ := testModel(t)
	days := []*met.Met{
		{Year: 2000, DOY: 1, Eos: 4},
		{Year: 2000, DOY: 2, Eos: 4, Rain: 1},
		{Year: 2000, DOY: 3, Eos: 4, Irrigation: 5},
		{Year: 2000, DOY: 4, Eos: 3},
	}
	want := []float64{4, 7, 0, 3}
	src := &met.SliceSource{Records: days}
	read, start := ReadWeather(src), StartOfDay()
	for i, w := range want {
		if err := read(m); err != nil {
			t.Fatal(err)
		}
		if err := start(m); err != nil {
			t.Fatal(err)
		}
		if m.CumulativeEvaporation() != w {
			t.Errorf("day %d: cumEos = %g, want %g", i+1, m.CumulativeEvaporation(), w)
		}
	}
}

func TestDailyMassBalance(t *testing.T) {
	r := new(recorder)
	soil := &fakeSoil{fraction: 1}
	m, _ := testModel(t, WithHandlers(r), WithSoil([]float64{50, 50}, soil))
	m.InitFuncs = []Manipulator{InitialResidues(InitialResidue{Type: "wheat", Mass: 2000, CNRatio: 50})}
	m.DailyFuncs = []Manipulator{
		ReadWeather(&met.SliceSource{Records: []*met.Met{warmDay()}}),
		StartOfDay(),
		LeachStep(),
		DecomposeStep(),
		EndOfDay(),
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	before := m.SnapshotTotals()
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	mfs := r.massFlows()
	daily := mfs[len(mfs)-1]
	if daily.Process != "daily" || daily.Kind != "loss" {
		t.Fatalf("last mass flow = %+v", daily)
	}
	pc, _, _ := m.Potential().Total()
	if different(daily.Delta.C, pc, testTolerance) {
		t.Errorf("daily C loss %g != potential decomposition %g", daily.Delta.C, pc)
	}
	if absDifferent(before.C-daily.Delta.C, m.SnapshotTotals().C) {
		t.Errorf("daily delta does not match totals")
	}
}
