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

import "fmt"

// Totals holds the total surface organic matter in the model [kg/ha].
// N includes mineral nitrate and ammonium, and P includes labile
// phosphorus.
type Totals struct {
	Amount, C, N, P, AshAlk float64
}

// Sub returns t - o.
func (t Totals) Sub(o Totals) Totals {
	return Totals{
		Amount: t.Amount - o.Amount,
		C:      t.C - o.C,
		N:      t.N - o.N,
		P:      t.P - o.P,
		AshAlk: t.AshAlk - o.AshAlk,
	}
}

func (t Totals) String() string {
	return fmt.Sprintf("DM=%.6g C=%.6g N=%.6g P=%.6g AshAlk=%.6g", t.Amount, t.C, t.N, t.P, t.AshAlk)
}

// SnapshotTotals returns the sum of all residue and mineral nutrients
// in all pools.
func (m *Model) SnapshotTotals() Totals {
	var t Totals
	for _, p := range m.pools.pools {
		s := p.Total()
		t.Amount += s.Amount
		t.C += s.C
		t.N += s.N + p.NO3 + p.NH4
		t.P += s.P + p.LabileP
		t.AshAlk += s.AshAlk
	}
	return t
}

// EmitDelta publishes a MassFlow event with the difference between
// after and before. It is a gain if dry matter did not decrease and a
// loss otherwise. A loss is reported with positive quantities.
func (m *Model) EmitDelta(before, after Totals, process string) *MassFlow {
	d := after.Sub(before)
	mf := &MassFlow{Process: process, Kind: "gain", Delta: d}
	if d.Amount < 0 {
		mf.Kind = "loss"
		mf.Delta = before.Sub(after)
	}
	m.publish(mf)
	return mf
}

// audit runs f and emits the change in totals that it causes.
func (m *Model) audit(process string, f func() error) error {
	before := m.SnapshotTotals()
	if err := f(); err != nil {
		return err
	}
	m.EmitDelta(before, m.SnapshotTotals(), process)
	return nil
}
