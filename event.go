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

import "github.com/sirupsen/logrus"

// Event is a notification published by the model.
type Event interface {
	EventName() string
}

// EventHandler receives events from the model.
type EventHandler interface {
	HandleEvent(e Event)
}

// HandlerFunc is an adapter to allow the use of ordinary functions
// as event handlers.
type HandlerFunc func(e Event)

// HandleEvent calls f(e).
func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// MassFlow reports a net gain or loss of surface organic matter
// across the boundary of the model [kg/ha].
type MassFlow struct {
	Process string // the operation that caused the flow
	Kind    string // "gain" or "loss"
	Delta   Totals
}

// EventName returns the name of the event.
func (*MassFlow) EventName() string { return "MassFlow" }

// ResidueAdded reports residue added to or removed by a negative
// addition from a pool [kg/ha].
type ResidueAdded struct {
	Pool, Type        string
	Added             OMFraction
	NO3, NH4, LabileP float64
}

// EventName returns the name of the event.
func (*ResidueAdded) EventName() string { return "ResidueAdded" }

// ResidueRemoved reports residue removed from a pool [kg/ha].
type ResidueRemoved struct {
	Pool    string
	Removed OMFraction
}

// EventName returns the name of the event.
func (*ResidueRemoved) EventName() string { return "ResidueRemoved" }

// PotentialDecompositionPublished reports the potential decomposition
// calculated for the current day.
type PotentialDecompositionPublished struct {
	Potential *PotentialDecomposition
}

// EventName returns the name of the event.
func (*PotentialDecompositionPublished) EventName() string {
	return "PotentialDecompositionPublished"
}

// Incorporated reports a tillage operation. FOM is nil when the
// incorporated residue is lost from the system rather than moved to
// the soil.
type Incorporated struct {
	Type     string
	Fraction float64
	Depth    float64 // [mm]
	FOM      *LayeredFOM
}

// EventName returns the name of the event.
func (*Incorporated) EventName() string { return "Incorporated" }

// Leached reports mineral nutrients washed from residue into the soil.
type Leached struct {
	Change NutrientChange
}

// EventName returns the name of the event.
func (*Leached) EventName() string { return "Leached" }

// publish sends e to all of the model's handlers.
func (m *Model) publish(e Event) {
	m.Log.WithFields(logrus.Fields{
		"day":   m.day,
		"event": e.EventName(),
	}).Debug("publishing event")
	for _, h := range m.handlers {
		h.HandleEvent(e)
	}
}

// AddHandler adds an event handler to the model.
func (m *Model) AddHandler(h EventHandler) {
	m.handlers = append(m.handlers, h)
}
