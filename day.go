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
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/surfom/met"
)

// InitialResidue is residue present at the start of a simulation.
type InitialResidue struct {
	Name, Type       string
	Mass             float64 // [kg/ha]
	CNRatio, CPRatio float64
	StandingFraction float64
}

// InitialResidues returns a function that adds the given residues to
// the model.
func InitialResidues(r ...InitialResidue) Manipulator {
	return func(m *Model) error {
		for _, ir := range r {
			if err := m.Add(AddRequest{
				Type:             ir.Type,
				Name:             ir.Name,
				Mass:             ir.Mass,
				CNRatio:          ir.CNRatio,
				CPRatio:          ir.CPRatio,
				StandingFraction: ir.StandingFraction,
			}); err != nil {
				return err
			}
		}
		return nil
	}
}

// ReadWeather returns a function that sets the model's weather to the
// next record from s. When s has no more records the simulation is done.
// After a restart from a checkpoint, records up to and including the
// last simulated date are skipped.
func ReadWeather(s met.Source) Manipulator {
	return func(m *Model) error {
		for {
			w, err := s.Next()
			if err == io.EOF {
				m.Done = true
				return nil
			} else if err != nil {
				return err
			}
			if !m.resumeAfter.IsZero() && !w.Date().After(m.resumeAfter) {
				continue
			}
			m.Met = w
			return nil
		}
	}
}

// lastDate returns the date of the current day, or the zero time if no
// weather has been read.
func (m *Model) lastDate() time.Time {
	if m.Met == nil {
		return m.resumeAfter
	}
	return m.Met.Date()
}

// StartOfDay returns a function that starts a new day: it clears the
// operation log and the potential decomposition, updates the
// accumulated soil evaporation, and records the totals that the day's
// mass balance is checked against.
func StartOfDay() Manipulator {
	return func(m *Model) error {
		if m.Met == nil {
			return inputErrorf("no weather data for day %d", m.day+1)
		}
		m.day++
		m.clearOperations()
		m.pot = nil
		m.updateCumEos()
		m.dayStart = m.SnapshotTotals()
		return nil
	}
}

// LeachStep returns a function that leaches mineral nutrients from the
// residue with the day's rain.
func LeachStep() Manipulator {
	return func(m *Model) error {
		_, err := m.Leach(m.Met.Rain)
		return err
	}
}

// DecomposeStep returns a function that decomposes the residue using
// the model's soil nutrient model.
func DecomposeStep() Manipulator {
	return func(m *Model) error {
		return m.Decompose(m.Nutrients)
	}
}

// DateFormat is the format of the dates in tillage schedules.
const DateFormat = "2006-01-02"

// ScheduledTillage returns a function that carries out the tillage
// operations in schedule, which is keyed by date in DateFormat.
func ScheduledTillage(schedule map[string]TillageRequest) Manipulator {
	return func(m *Model) error {
		t, ok := schedule[m.Met.Date().Format(DateFormat)]
		if !ok {
			return nil
		}
		return m.Tillage(t)
	}
}

// EndOfDay returns a function that publishes the change in totals
// over the day.
func EndOfDay() Manipulator {
	return func(m *Model) error {
		mf := m.EmitDelta(m.dayStart, m.SnapshotTotals(), "daily")
		m.Log.WithFields(logrus.Fields{
			"day":  m.day,
			"kind": mf.Kind,
			"DM":   mf.Delta.Amount,
			"C":    mf.Delta.C,
			"N":    mf.Delta.N,
		}).Debug("daily mass balance")
		return nil
	}
}

// NumDays returns a function that ends the simulation after n days.
func NumDays(n int) Manipulator {
	return func(m *Model) error {
		if m.day >= n {
			m.Done = true
		}
		return nil
	}
}

// Log writes simulation status messages to w.
func Log(w io.Writer) Manipulator {
	startTime := time.Now()
	return func(m *Model) error {
		t := m.SnapshotTotals()
		_, err := fmt.Fprintf(w, "Day %-5d %s  walltime=%6.3gs  DM=%-8.4g C=%-8.4g N=%-7.3g cover=%.3f\n",
			m.day, m.Met.Date().Format(DateFormat), time.Since(startTime).Seconds(),
			t.Amount, t.C, t.N, m.CoverTotal())
		return err
	}
}
