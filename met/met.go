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

// Package met reads daily weather records.
package met

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Met holds the weather for one day.
type Met struct {
	Year, DOY int

	MaxT, MinT float64 // [°C]
	Rain       float64 // [mm]
	Radn       float64 // [MJ/m²]

	// Eos is the potential soil evaporation [mm].
	Eos float64

	// Irrigation is water applied to the surface [mm].
	Irrigation float64

	// PondActive is true when water is ponded on the soil surface.
	PondActive bool
}

// Date returns the date of the record.
func (m *Met) Date() time.Time {
	return time.Date(m.Year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, m.DOY-1)
}

func (m *Met) String() string {
	return fmt.Sprintf("%d-%03d maxt=%.1f mint=%.1f rain=%.1f", m.Year, m.DOY, m.MaxT, m.MinT, m.Rain)
}

// EstimateEos returns a rough estimate of potential soil evaporation
// [mm] from solar radiation [MJ/m²] for records without it.
func EstimateEos(radn float64) float64 {
	return 0.3 * radn * 0.4
}

// File is the contents of a weather file.
type File struct {
	// Constants holds the "name = value" lines of the file header,
	// with any units removed from the values.
	Constants map[string]string

	Records []*Met
}

// Source is a source of daily weather.
type Source interface {
	// Next returns the next day's weather, or io.EOF when there is
	// none left.
	Next() (*Met, error)
}

// SliceSource is a Source that returns records from a slice.
type SliceSource struct {
	Records []*Met
	i       int
}

// Next returns the next record.
func (s *SliceSource) Next() (*Met, error) {
	if s.i >= len(s.Records) {
		return nil, io.EOF
	}
	m := s.Records[s.i]
	s.i++
	return m, nil
}

// Source returns a Source for the records in f.
func (f *File) Source() *SliceSource {
	return &SliceSource{Records: f.Records}
}

// columns that must be present in a weather file.
var required = []string{"year", "day", "radn", "maxt", "mint", "rain"}

// ReadMet reads weather in APSIM .met format: optional "[section]"
// lines, "!" comments, "name = value" constants, a row of column
// names, an optional row of units in parentheses, and one row of
// whitespace-separated values per day. The year, day, radn, maxt,
// mint and rain columns are required; eos, irrig, and pond are
// optional. Missing eos values are estimated from radiation.
func ReadMet(r io.Reader) (*File, error) {
	f := &File{Constants: make(map[string]string)}
	s := bufio.NewScanner(r)
	var cols map[string]int
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := s.Text()
		if i := strings.Index(line, "!"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "["):
			continue
		case cols == nil && strings.Contains(line, "="):
			kv := strings.SplitN(line, "=", 2)
			v := strings.TrimSpace(kv[1])
			if i := strings.Index(v, "("); i >= 0 {
				v = strings.TrimSpace(v[:i])
			}
			f.Constants[strings.ToLower(strings.TrimSpace(kv[0]))] = v
			continue
		case cols == nil:
			cols = make(map[string]int)
			for i, c := range strings.Fields(line) {
				cols[strings.ToLower(c)] = i
			}
			for _, c := range required {
				if _, ok := cols[c]; !ok {
					return nil, fmt.Errorf("met: line %d: missing required column '%s'", lineNo, c)
				}
			}
			continue
		case strings.HasPrefix(line, "("):
			continue
		}
		rec, err := parseRecord(strings.Fields(line), cols)
		if err != nil {
			return nil, fmt.Errorf("met: line %d: %v", lineNo, err)
		}
		f.Records = append(f.Records, rec)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("met: %v", err)
	}
	if cols == nil {
		return nil, fmt.Errorf("met: no column header")
	}
	return f, nil
}

func parseRecord(fields []string, cols map[string]int) (*Met, error) {
	get := func(name string) (float64, bool, error) {
		i, ok := cols[name]
		if !ok {
			return 0, false, nil
		}
		if i >= len(fields) {
			return 0, false, fmt.Errorf("missing value for column '%s'", name)
		}
		v, err := cast.ToFloat64E(fields[i])
		if err != nil {
			return 0, false, fmt.Errorf("column '%s': %v", name, err)
		}
		return v, true, nil
	}
	m := new(Met)
	var year, doy, pond float64
	var hasEos bool
	for _, v := range []struct {
		name string
		dst  *float64
		ok   *bool
	}{
		{"year", &year, nil},
		{"day", &doy, nil},
		{"radn", &m.Radn, nil},
		{"maxt", &m.MaxT, nil},
		{"mint", &m.MinT, nil},
		{"rain", &m.Rain, nil},
		{"eos", &m.Eos, &hasEos},
		{"irrig", &m.Irrigation, nil},
		{"pond", &pond, nil},
	} {
		val, ok, err := get(v.name)
		if err != nil {
			return nil, err
		}
		*v.dst = val
		if v.ok != nil {
			*v.ok = ok
		}
	}
	m.Year, m.DOY = int(year), int(doy)
	if m.DOY < 1 || m.DOY > 366 {
		return nil, fmt.Errorf("day of year %d out of range", m.DOY)
	}
	if m.Rain < 0 || m.Irrigation < 0 {
		return nil, fmt.Errorf("negative rain or irrigation")
	}
	if !hasEos {
		m.Eos = EstimateEos(m.Radn)
	}
	m.PondActive = pond > 0
	return m, nil
}
