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

// Package simplesoiln contains a simple layered soil nutrient model
// that receives decomposing surface residue.
package simplesoiln

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/surfom"
	"gonum.org/v1/gonum/floats"
)

// Default parameters.
const (
	// DefaultBiomassCN is the C:N ratio of soil microbial biomass.
	DefaultBiomassCN = 8.

	// DefaultEfficiency is the fraction of decomposed carbon that is
	// retained in the soil; the rest is respired.
	DefaultEfficiency = 0.4
)

// Soil fulfils the github.com/spatialmodel/surfom.SoilNutrients
// interface. All quantities are per layer in [kg/ha].
type Soil struct {
	NO3, NH4, LabileP []float64

	// Organic matter received from the surface.
	OrgC, OrgN, OrgP []float64

	// Respired is the carbon lost as CO2.
	Respired float64

	BiomassCN  float64
	Efficiency float64

	Log logrus.FieldLogger
}

// New returns a soil with the given number of layers and no
// nutrients.
func New(layers int) *Soil {
	return &Soil{
		NO3:        make([]float64, layers),
		NH4:        make([]float64, layers),
		LabileP:    make([]float64, layers),
		OrgC:       make([]float64, layers),
		OrgN:       make([]float64, layers),
		OrgP:       make([]float64, layers),
		BiomassCN:  DefaultBiomassCN,
		Efficiency: DefaultEfficiency,
		Log:        logrus.StandardLogger(),
	}
}

// Layers returns the number of soil layers.
func (s *Soil) Layers() int { return len(s.NO3) }

// ActualDecomposition realizes the potential decomposition unless
// the nitrogen needed to build microbial biomass from the decomposed
// carbon is more than the residue and the mineral nitrogen in the top
// layer can supply, in which case decomposition of every pool is
// reduced by the same fraction. The decomposed material is added to
// the top layer.
func (s *Soil) ActualDecomposition(pot *surfom.PotentialDecomposition) ([]surfom.ActualDecomposition, error) {
	if s.Layers() == 0 {
		return nil, fmt.Errorf("simplesoiln: soil has no layers")
	}
	c, n, _ := pot.Total()
	nReq := c * s.Efficiency / s.BiomassCN
	avail := s.NO3[0] + s.NH4[0]
	scale := 1.
	if nReq-n > avail {
		scale = surfom.Bound(surfom.Divide(n+avail, nReq, 1), 0, 1)
		s.Log.WithFields(logrus.Fields{
			"day":   pot.Day,
			"scale": scale,
		}).Debug("decomposition limited by mineral nitrogen")
	}
	actual := make([]surfom.ActualDecomposition, len(pot.Pools))
	var p float64
	for i, pd := range pot.Pools {
		actual[i] = surfom.ActualDecomposition{Name: pd.Name, C: pd.C * scale, N: pd.N * scale}
		p += surfom.Divide(actual[i].C*pd.P, pd.C, 0)
	}
	s.receive(c*scale, n*scale, p)
	return actual, nil
}

// receive adds decomposed residue to the top layer, immobilizing or
// mineralizing nitrogen so that the retained organic matter has the
// biomass C:N ratio.
func (s *Soil) receive(c, n, p float64) {
	retained := c * s.Efficiency
	s.Respired += c - retained
	s.OrgC[0] += retained
	s.OrgP[0] += p
	nReq := retained / s.BiomassCN
	if n >= nReq {
		s.OrgN[0] += nReq
		s.NH4[0] += n - nReq
		return
	}
	short := nReq - n
	fromNH4 := math.Min(short, s.NH4[0])
	s.NH4[0] -= fromNH4
	fromNO3 := math.Min(short-fromNH4, s.NO3[0])
	s.NO3[0] -= fromNO3
	s.OrgN[0] += n + fromNH4 + fromNO3
}

// NitrogenChanged adds the given mineral nutrients to the soil.
func (s *Soil) NitrogenChanged(c surfom.NutrientChange) error {
	for _, v := range [][]float64{c.NO3, c.NH4, c.LabileP} {
		if len(v) > s.Layers() {
			return fmt.Errorf("simplesoiln: nutrient change from %s has %d layers but the soil has %d", c.Sender, len(v), s.Layers())
		}
	}
	floats.Add(s.NO3[:len(c.NO3)], c.NO3)
	floats.Add(s.NH4[:len(c.NH4)], c.NH4)
	floats.Add(s.LabileP[:len(c.LabileP)], c.LabileP)
	return nil
}

// IncorporateFOM adds incorporated residue to the soil layers.
func (s *Soil) IncorporateFOM(f *surfom.LayeredFOM) error {
	if len(f.Layers) > s.Layers() {
		return fmt.Errorf("simplesoiln: incorporated residue has %d layers but the soil has %d", len(f.Layers), s.Layers())
	}
	for i, l := range f.Layers {
		for _, p := range l.Pools {
			s.OrgC[i] += p.OM.C
			s.OrgN[i] += p.OM.N
			s.OrgP[i] += p.OM.P
		}
		s.NO3[i] += l.NO3
		s.NH4[i] += l.NH4
		s.LabileP[i] += l.LabileP
	}
	return nil
}

// TotalC returns the carbon in the soil plus the carbon respired.
func (s *Soil) TotalC() float64 { return floats.Sum(s.OrgC) + s.Respired }

// TotalN returns the organic and mineral nitrogen in the soil.
func (s *Soil) TotalN() float64 {
	return floats.Sum(s.OrgN) + floats.Sum(s.NO3) + floats.Sum(s.NH4)
}

// TotalP returns the organic and labile phosphorus in the soil.
func (s *Soil) TotalP() float64 { return floats.Sum(s.OrgP) + floats.Sum(s.LabileP) }
