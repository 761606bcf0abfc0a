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
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/surfom/met"
	"github.com/tealeg/xlsx"
)

func TestOutputter_checkForDerivatives(t *testing.T) {
	o, err := NewOutputter("out.csv", map[string]string{
		"WtTonnes": "SurfaceOMWt / 1000",
		"Tonnes2":  "WtTonnes * 2",
		"CN":       "ratio(SurfaceOMC, SurfaceOMN)",
		"Nested":   "Tonnes2 + CN",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"SurfaceOMC", "SurfaceOMN", "SurfaceOMWt"}
	if !reflect.DeepEqual(o.modelVariables, want) {
		t.Errorf("model variables = %v, want %v", o.modelVariables, want)
	}
	if want := "((SurfaceOMWt / 1000) * 2) + (ratio(SurfaceOMC, SurfaceOMN))"; o.outputVariables["Nested"] != want {
		t.Errorf("Nested = %q, want %q", o.outputVariables["Nested"], want)
	}
}

func TestOutputter_errors(t *testing.T) {
	if _, err := NewOutputter("out.csv", map[string]string{"bad name": "Day"}, nil); err == nil {
		t.Error("expected an error for a bad name")
	}
	if _, err := NewOutputter("out.csv", map[string]string{"X": "Day +"}, nil); err == nil {
		t.Error("expected an error for a bad expression")
	}
	o, err := NewOutputter("out.csv", map[string]string{"X": "Nonsense * 2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := testModel(t)
	if err := o.CheckOutputVars()(m); err == nil {
		t.Error("expected an error for an undefined variable")
	}
}

func outputModel(t *testing.T, o *Outputter) *Model {
	m, _ := testModel(t, WithSoil([]float64{50, 50}, &fakeSoil{fraction: 1}))
	m.InitFuncs = []Manipulator{
		o.CheckOutputVars(),
		InitialResidues(InitialResidue{Type: "wheat", Mass: 2000, CNRatio: 50, CPRatio: 200}),
	}
	recs := []*met.Met{
		{Year: 2001, DOY: 32, MaxT: 25, MinT: 15, Rain: 5, Eos: 3},
		{Year: 2001, DOY: 33, MaxT: 25, MinT: 15, Rain: 0, Eos: 3},
	}
	m.DailyFuncs = []Manipulator{
		ReadWeather(&met.SliceSource{Records: recs}),
		StartOfDay(),
		LeachStep(),
		DecomposeStep(),
		EndOfDay(),
		o.Output(),
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestOutputter_csv(t *testing.T) {
	o, err := NewOutputter("out.csv", map[string]string{
		"Wt":    "SurfaceOMWt",
		"Cover": "CoverTotal",
		"TF":    "TemperatureFactor",
		"Decay": "PotDecompC",
		"Rain":  "Rain",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	outputModel(t, o)
	if len(o.Rows()) != 2 {
		t.Fatalf("have %d rows", len(o.Rows()))
	}
	buf := new(bytes.Buffer)
	if err := o.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Date", "Cover", "Decay", "Rain", "TF", "Wt"}; !reflect.DeepEqual(recs[0], want) {
		t.Errorf("header = %v, want %v", recs[0], want)
	}
	if recs[1][0] != "2001-02-01" || recs[1][3] != "5" || recs[1][4] != "1" {
		t.Errorf("row 1 = %v", recs[1])
	}
	row := o.Rows()[1]
	if row[4] >= 2000 {
		t.Errorf("residue did not decompose: %g", row[4])
	}
}

func TestOutputter_xlsx(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "out.xlsx")
	o, err := NewOutputter(fileName, map[string]string{"Wt": "SurfaceOMWt", "Day": "Day"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := outputModel(t, o)
	if err := o.Write()(m); err != nil {
		t.Fatal(err)
	}
	f, err := xlsx.OpenFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) != 3 {
		t.Fatalf("have %d rows", len(sheet.Rows))
	}
	if v, err := sheet.Rows[2].Cells[1].Float(); err != nil || v != 2 {
		t.Errorf("day = %g (%v)", v, err)
	}
}

func TestUnits(t *testing.T) {
	if Units("SurfaceOMWt") != kgPerHa.String() {
		t.Errorf("units = %q", Units("SurfaceOMWt"))
	}
	if Units("nothing") != "" {
		t.Error("unknown variable should have no units")
	}
	names, desc, units := OutputOptions()
	if len(names) != len(modelVariables) || len(desc) != len(names) || len(units) != len(names) {
		t.Error("output options have different lengths")
	}
	m, _ := testModel(t)
	if err := m.Add(AddRequest{Type: "wheat", Mass: 1000, CNRatio: 50, CPRatio: 200}); err != nil {
		t.Fatal(err)
	}
	u, err := m.SI("SurfaceOMWt")
	if err != nil {
		t.Fatal(err)
	}
	if err := u.Check(kgPerHa); err != nil {
		t.Error(err)
	}
	if different(u.Value(), 0.1, testTolerance) {
		t.Errorf("SI value = %g kg/m², want 0.1", u.Value())
	}
	if _, err := m.SI("nothing"); err == nil {
		t.Error("expected an error")
	}
}

// This example adds wheat stubble, decomposes it for three warm days,
// and reports the remaining residue.
func Example() {
	types, err := NewRegistry(DefaultResidueTypes()...)
	if err != nil {
		panic(err)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	m, err := NewModel(types, nil, WithLogger(logger), WithSoil([]float64{100, 200}, nil))
	if err != nil {
		panic(err)
	}
	days := make([]*met.Met, 3)
	for i := range days {
		days[i] = &met.Met{Year: 2010, DOY: 100 + i, MaxT: 30, MinT: 15, Rain: 10, Eos: 5}
	}
	m.InitFuncs = []Manipulator{
		InitialResidues(InitialResidue{Type: "wheat", Mass: 1000, CNRatio: 25, CPRatio: 200}),
	}
	m.DailyFuncs = []Manipulator{
		ReadWeather(&met.SliceSource{Records: days}),
		StartOfDay(),
		func(m *Model) error {
			// Realize all of the potential decomposition.
			f, err := m.Factors()
			if err != nil {
				return err
			}
			pot := m.PotentialDecomposition(f)
			actual := make([]ActualDecomposition, len(pot.Pools))
			for i, p := range pot.Pools {
				actual[i] = ActualDecomposition{Name: p.Name, C: p.C, N: p.N}
			}
			return m.ApplyActualDecomposition(pot, actual)
		},
	}
	if err := m.Init(); err != nil {
		panic(err)
	}
	if err := m.Run(); err != nil {
		panic(err)
	}
	t := m.SnapshotTotals()
	fmt.Printf("days: %d\n", m.Day())
	fmt.Printf("residue: %.1f kg/ha\n", t.Amount)
	fmt.Printf("carbon: %.1f kg/ha\n", t.C)
	// Output:
	// days: 3
	// residue: 729.0 kg/ha
	// carbon: 291.6 kg/ha
}
