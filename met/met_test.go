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

package met

import (
	"io"
	"strings"
	"testing"
)

const testMet = `[weather.met.weather]
!station: test
latitude = -27.11 (DECIMAL DEGREES)
tav = 19.57 (oC) ! annual average
year day radn maxt mint rain eos
 ()   () (MJ/m^2) (oC) (oC) (mm) (mm)
1990 1 24.0 32.5 19.0 0.0 6.0
1990 2 20.0 30.0 18.0 12.5 5.0
1990 3 10.0 25.0 15.0 3.0 2.0
`

func TestReadMet(t *testing.T) {
	f, err := ReadMet(strings.NewReader(testMet))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Records) != 3 {
		t.Fatalf("have %d records, want 3", len(f.Records))
	}
	if f.Constants["latitude"] != "-27.11" {
		t.Errorf("latitude = %q", f.Constants["latitude"])
	}
	if f.Constants["tav"] != "19.57" {
		t.Errorf("tav = %q", f.Constants["tav"])
	}
	r := f.Records[1]
	if r.Year != 1990 || r.DOY != 2 || r.Rain != 12.5 || r.MaxT != 30 || r.Eos != 5 {
		t.Errorf("record 2 = %+v", r)
	}
	if d := r.Date(); d.Month() != 1 || d.Day() != 2 {
		t.Errorf("date = %v", d)
	}
}

func TestReadMet_estimateEos(t *testing.T) {
	f, err := ReadMet(strings.NewReader("year day radn maxt mint rain\n2000 60 20 25 10 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := EstimateEos(20); f.Records[0].Eos != want {
		t.Errorf("eos = %g, want %g", f.Records[0].Eos, want)
	}
	if d := f.Records[0].Date(); d.Month() != 2 || d.Day() != 29 {
		t.Errorf("date = %v", d)
	}
}

func TestReadMet_errors(t *testing.T) {
	for _, test := range []struct {
		name, in string
	}{
		{name: "no header", in: "latitude = 1\n"},
		{name: "missing column", in: "year day radn maxt mint\n2000 1 1 1 1\n"},
		{name: "bad value", in: "year day radn maxt mint rain\n2000 1 x 1 1 0\n"},
		{name: "short row", in: "year day radn maxt mint rain\n2000 1 1 1\n"},
		{name: "bad day", in: "year day radn maxt mint rain\n2000 400 1 1 1 0\n"},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ReadMet(strings.NewReader(test.in)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSliceSource(t *testing.T) {
	s := &SliceSource{Records: []*Met{{Year: 2000, DOY: 1}, {Year: 2000, DOY: 2}}}
	for i := 1; i <= 2; i++ {
		m, err := s.Next()
		if err != nil {
			t.Fatal(err)
		}
		if m.DOY != i {
			t.Errorf("day %d: have %d", i, m.DOY)
		}
	}
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
