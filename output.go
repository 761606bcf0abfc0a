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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/unit"
	"github.com/tealeg/xlsx"
)

// kgPerHa is the dimension of residue quantities.
var kgPerHa = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2}

// modelVariable is a quantity that can be used in output expressions.
type modelVariable struct {
	desc string
	dims unit.Dimensions
	toSI float64 // multiply by this to convert to SI units
	get  func(m *Model) float64
}

func totalOf(f func(p *Pool) float64) func(m *Model) float64 {
	return func(m *Model) float64 {
		var v float64
		for _, p := range m.pools.pools {
			v += f(p)
		}
		return v
	}
}

func potentialOf(f func(pd PoolDecomposition) float64) func(m *Model) float64 {
	return func(m *Model) float64 {
		if m.pot == nil {
			return 0
		}
		var v float64
		for _, pd := range m.pot.Pools {
			v += f(pd)
		}
		return v
	}
}

func factorOf(f func(Factors) float64) func(m *Model) float64 {
	return func(m *Model) float64 {
		fs, err := m.Factors()
		if err != nil {
			return 0
		}
		return f(fs)
	}
}

func weatherOf(f func(m *Model) float64) func(m *Model) float64 {
	return func(m *Model) float64 {
		if m.Met == nil {
			return 0
		}
		return f(m)
	}
}

// modelVariables are the variables available for output.
var modelVariables = map[string]modelVariable{
	"SurfaceOMWt":     {"Total residue dry matter", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.Total().Amount })},
	"SurfaceOMC":      {"Total residue carbon", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.Total().C })},
	"SurfaceOMN":      {"Total residue organic nitrogen", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.Total().N })},
	"SurfaceOMP":      {"Total residue organic phosphorus", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.Total().P })},
	"SurfaceOMAshAlk": {"Total residue ash alkalinity", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.Total().AshAlk })},
	"SurfaceOMNO3":    {"Nitrate carried by residue", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.NO3 })},
	"SurfaceOMNH4":    {"Ammonium carried by residue", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.NH4 })},
	"SurfaceOMLabileP": {"Labile phosphorus carried by residue", kgPerHa, 1.e-4,
		totalOf(func(p *Pool) float64 { return p.LabileP })},
	"StandingWt": {"Standing residue dry matter", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.standingSum().Amount })},
	"LyingWt":    {"Lying residue dry matter", kgPerHa, 1.e-4, totalOf(func(p *Pool) float64 { return p.lyingSum().Amount })},
	"CoverTotal": {"Fractional ground cover", unit.Dimless, 1, func(m *Model) float64 { return m.CoverTotal() }},
	"PotDecompC": {"Potential carbon decomposition", kgPerHa, 1.e-4, potentialOf(func(pd PoolDecomposition) float64 { return pd.C })},
	"PotDecompN": {"Potential nitrogen decomposition", kgPerHa, 1.e-4, potentialOf(func(pd PoolDecomposition) float64 { return pd.N })},
	"PotDecompP": {"Potential phosphorus decomposition", kgPerHa, 1.e-4, potentialOf(func(pd PoolDecomposition) float64 { return pd.P })},
	"TemperatureFactor": {"Temperature limitation on decomposition", unit.Dimless, 1,
		factorOf(func(f Factors) float64 { return f.Temperature })},
	"MoistureFactor": {"Moisture limitation on decomposition", unit.Dimless, 1,
		factorOf(func(f Factors) float64 { return f.Moisture })},
	"ContactFactor": {"Soil contact limitation on decomposition", unit.Dimless, 1,
		factorOf(func(f Factors) float64 { return f.Contact })},
	"Rain": {"Rainfall", unit.Meter, 1.e-3, weatherOf(func(m *Model) float64 { return m.Met.Rain })},
	"Day":  {"Simulation day", unit.Dimless, 1, func(m *Model) float64 { return float64(m.day) }},
}

// OutputOptions returns the names of the variables available for
// output with their descriptions and units.
func OutputOptions() (names, descriptions, units []string) {
	for n := range modelVariables {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v := modelVariables[n]
		descriptions = append(descriptions, v.desc)
		units = append(units, Units(n))
	}
	return
}

// Units returns the SI units of the named model variable, or an empty
// string if the variable does not exist.
func Units(name string) string {
	v, ok := modelVariables[name]
	if !ok {
		return ""
	}
	return v.dims.String()
}

// SI returns the value of the named model variable in SI units.
func (m *Model) SI(name string) (*unit.Unit, error) {
	v, ok := modelVariables[name]
	if !ok {
		return nil, fmt.Errorf("surfom: undefined variable name '%s'", name)
	}
	return unit.New(v.get(m)*v.toSI, v.dims), nil
}

// Outputter is a holder for output parameters.
//
// fileName is the path where the output will be saved. Output is
// written in Excel format if fileName ends in ".xlsx", and in CSV
// format otherwise.
//
// outputVariables maps the names of the output columns to expressions
// that define how they should be calculated. The expressions can use
// the model variables listed by OutputOptions, other output variables,
// and functions.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction

	names       []string
	expressions []*govaluate.EvaluableExpression
	dates       []string
	rows        [][]float64
}

func floatArgs(name string, n int, args []interface{}) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("surfom: got %d arguments for function '%s', but needs %d", len(args), name, n)
	}
	o := make([]float64, n)
	for i, a := range args {
		v, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("surfom: argument %d of function '%s' is not a number", i, name)
		}
		o[i] = v
	}
	return o, nil
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions:
//
// 'exp(x)' and 'log(x)', the exponential and natural logarithm;
//
// 'min(x, y)' and 'max(x, y)';
//
// 'ratio(x, y)', which is x/y, or zero when y is zero.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"exp": func(args ...interface{}) (interface{}, error) {
			a, err := floatArgs("exp", 1, args)
			if err != nil {
				return nil, err
			}
			return math.Exp(a[0]), nil
		},
		"log": func(args ...interface{}) (interface{}, error) {
			a, err := floatArgs("log", 1, args)
			if err != nil {
				return nil, err
			}
			return math.Log(a[0]), nil
		},
		"min": func(args ...interface{}) (interface{}, error) {
			a, err := floatArgs("min", 2, args)
			if err != nil {
				return nil, err
			}
			return math.Min(a[0], a[1]), nil
		},
		"max": func(args ...interface{}) (interface{}, error) {
			a, err := floatArgs("max", 2, args)
			if err != nil {
				return nil, err
			}
			return math.Max(a[0], a[1]), nil
		},
		"ratio": func(args ...interface{}) (interface{}, error) {
			a, err := floatArgs("ratio", 2, args)
			if err != nil {
				return nil, err
			}
			return Divide(a[0], a[1], 0), nil
		},
	}
	for k, f := range outputFunctions {
		funcs[k] = f
	}
	o := &Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: funcs,
	}
	for k, v := range outputVariables {
		if err := checkOutputName(k); err != nil {
			return nil, err
		}
		o.outputVariables[k] = v
		o.names = append(o.names, k)
	}
	sort.Strings(o.names)
	if err := o.checkForDerivatives(); err != nil {
		return nil, err
	}
	o.expressions = make([]*govaluate.EvaluableExpression, len(o.names))
	for i, n := range o.names {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(o.outputVariables[n], o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("surfom: output variable '%s': %v", n, err)
		}
		o.expressions[i] = e
	}
	return o, nil
}

var outputNameRegexp = regexp.MustCompile(`^[A-Za-z]\w*$`)

// checkOutputName checks whether name can be used as an output
// variable name.
func checkOutputName(name string) error {
	if !outputNameRegexp.MatchString(name) {
		return fmt.Errorf("surfom: output variable name '%s' includes unsupported characters", name)
	}
	return nil
}

// removeDuplicates removes all duplicated strings from a slice.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]bool)
	for _, v := range s {
		if !seen[v] {
			result = append(result, v)
			seen[v] = true
		}
	}
	return result
}

// checkForDerivatives replaces every output variable that is used in
// another output variable's expression with the expression that
// defines it, and collects the model variables that are required to
// calculate the output.
func (o *Outputter) checkForDerivatives() error {
	for iter := 0; ; iter++ {
		if iter > len(o.outputVariables) {
			return fmt.Errorf("surfom: output variables are defined in terms of each other in a loop")
		}
		o.modelVariables = o.modelVariables[:0]
		changed := false
		for _, key := range o.names {
			expr := o.outputVariables[key]
			e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
			if err != nil {
				return fmt.Errorf("surfom: output variable '%s': %v", key, err)
			}
			for _, v := range removeDuplicates(e.Vars()) {
				def, ok := o.outputVariables[v]
				if !ok || v == key || def == v {
					o.modelVariables = append(o.modelVariables, v)
					continue
				}
				// Whole-word matches only: 'C' must not match inside 'SurfaceOMC'.
				r := regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
				expr = r.ReplaceAllLiteralString(expr, "("+def+")")
				changed = true
			}
			o.outputVariables[key] = expr
		}
		if !changed {
			break
		}
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	sort.Strings(o.modelVariables)
	return nil
}

// CheckOutputVars returns a function that checks whether the output
// variables can be calculated.
func (o *Outputter) CheckOutputVars() Manipulator {
	return func(m *Model) error {
		for _, v := range o.modelVariables {
			if _, ok := modelVariables[v]; !ok {
				return fmt.Errorf("surfom: undefined variable name '%s'", v)
			}
		}
		return nil
	}
}

// Output returns a function that calculates the output variables for
// the current day and stores them.
func (o *Outputter) Output() Manipulator {
	return func(m *Model) error {
		params := make(map[string]interface{}, len(o.modelVariables))
		for _, v := range o.modelVariables {
			mv, ok := modelVariables[v]
			if !ok {
				return fmt.Errorf("surfom: undefined variable name '%s'", v)
			}
			params[v] = mv.get(m)
		}
		row := make([]float64, len(o.names))
		for i, e := range o.expressions {
			r, err := e.Evaluate(params)
			if err != nil {
				return fmt.Errorf("surfom: calculating output variable '%s': %v", o.names[i], err)
			}
			switch v := r.(type) {
			case float64:
				row[i] = v
			case bool:
				if v {
					row[i] = 1
				}
			default:
				return fmt.Errorf("surfom: output variable '%s' has non-numeric value %v", o.names[i], r)
			}
		}
		date := strconv.Itoa(m.day)
		if m.Met != nil {
			date = m.Met.Date().Format(DateFormat)
		}
		o.dates = append(o.dates, date)
		o.rows = append(o.rows, row)
		return nil
	}
}

// Names returns the names of the output variables in column order.
func (o *Outputter) Names() []string { return append([]string(nil), o.names...) }

// Rows returns the stored output, one row per day.
func (o *Outputter) Rows() [][]float64 { return o.rows }

// FileName returns the path that the output is written to.
func (o *Outputter) FileName() string { return o.fileName }

// WriteTo writes the stored output to w in the format given by the
// output file name.
func (o *Outputter) WriteTo(w io.Writer) error {
	if strings.ToLower(filepath.Ext(o.fileName)) == ".xlsx" {
		return o.writeXLSX(w)
	}
	return o.writeCSV(w)
}

func (o *Outputter) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Date"}, o.names...)); err != nil {
		return fmt.Errorf("surfom: writing output: %v", err)
	}
	rec := make([]string, len(o.names)+1)
	for i, row := range o.rows {
		rec[0] = o.dates[i]
		for j, v := range row {
			rec[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("surfom: writing output: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (o *Outputter) writeXLSX(w io.Writer) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("SurfaceOM")
	if err != nil {
		return fmt.Errorf("surfom: writing output: %v", err)
	}
	header := sheet.AddRow()
	header.AddCell().SetString("Date")
	for _, n := range o.names {
		header.AddCell().SetString(n)
	}
	for i, row := range o.rows {
		r := sheet.AddRow()
		r.AddCell().SetString(o.dates[i])
		for _, v := range row {
			r.AddCell().SetFloat(v)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("surfom: writing output: %v", err)
	}
	return nil
}

// Write returns a function that writes the stored output to the
// output file.
func (o *Outputter) Write() Manipulator {
	return func(m *Model) error {
		f, err := os.Create(o.fileName)
		if err != nil {
			return fmt.Errorf("surfom: creating output file: %v", err)
		}
		if err := o.WriteTo(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}
