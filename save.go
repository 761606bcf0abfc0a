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
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/spatialmodel/surfom/internal/hash"
)

// poolState is the saved form of a Pool.
type poolState struct {
	Name, Type        string
	PotDecompRate     float64
	NO3, NH4, LabileP float64
	Standing, Lying   [NumClasses]OMFraction
}

// checkpoint is the saved state of a model.
type checkpoint struct {
	Version  string
	Registry string // fingerprint of the residue types
	Day      int
	Date     time.Time // date of the last simulated day
	CumEos   float64
	Pools    []poolState
}

// Fingerprint returns a string that identifies the contents of the
// registry.
func (r *Registry) Fingerprint() string {
	types := make([]ResidueType, 0, len(r.types))
	for _, name := range r.Names() {
		types = append(types, *r.types[name])
	}
	return hash.Hash(types)
}

// Report returns copies of all pools, for checkpointing or output.
func (m *Model) Report() []*Pool { return m.Pools() }

// Save returns a function that saves the state of the model to w
// in gob format (format description at https://golang.org/pkg/encoding/gob/).
func Save(w io.Writer) Manipulator {
	return func(m *Model) error {
		c := checkpoint{
			Version:  Version,
			Registry: m.Types.Fingerprint(),
			Day:      m.day,
			Date:     m.lastDate(),
			CumEos:   m.cumEos,
			Pools:    make([]poolState, m.pools.len()),
		}
		for i, p := range m.pools.pools {
			c.Pools[i] = poolState{
				Name:          p.Name,
				Type:          p.Type.Name,
				PotDecompRate: p.PotDecompRate,
				NO3:           p.NO3,
				NH4:           p.NH4,
				LabileP:       p.LabileP,
				Standing:      p.Standing,
				Lying:         p.Lying,
			}
		}
		if err := gob.NewEncoder(w).Encode(c); err != nil {
			return fmt.Errorf("surfom: saving model: %v", err)
		}
		return nil
	}
}

// Load returns a function that replaces the state of the model with
// state previously written by Save. The model must use the same
// residue types as the saved model.
func Load(r io.Reader) Manipulator {
	return func(m *Model) error {
		var c checkpoint
		if err := gob.NewDecoder(r).Decode(&c); err != nil {
			return fmt.Errorf("surfom: loading model: %v", err)
		}
		if fp := m.Types.Fingerprint(); c.Registry != fp {
			return configErrorf("saved model used different residue types (fingerprint %s, want %s)", c.Registry, fp)
		}
		pools := newPoolList()
		for _, ps := range c.Pools {
			t, err := m.Types.Resolve(ps.Type)
			if err != nil {
				return err
			}
			if _, ok := pools.handle(ps.Name); ok {
				return configErrorf("saved model has more than one pool named '%s'", ps.Name)
			}
			p := pools.add(ps.Name, t)
			p.PotDecompRate = ps.PotDecompRate
			p.NO3, p.NH4, p.LabileP = ps.NO3, ps.NH4, ps.LabileP
			p.Standing, p.Lying = ps.Standing, ps.Lying
		}
		m.pools = pools
		m.day = c.Day
		m.resumeAfter = c.Date
		m.cumEos = c.CumEos
		m.clearOperations()
		m.pot = nil
		return nil
	}
}

