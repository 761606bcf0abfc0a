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

// OpKind is the kind of a logged operation.
type OpKind string

// Kinds of operations that change the pools.
const (
	OpAdd         OpKind = "add"
	OpRemove      OpKind = "remove"
	OpTillage     OpKind = "tillage"
	OpLeach       OpKind = "leach"
	OpCropResidue OpKind = "crop residue"
	OpFaeces      OpKind = "faeces"
	OpDecompose   OpKind = "decompose"
)

// Operation is an entry in the log of operations that changed the
// pools during one day. Only the field matching Kind is set.
type Operation struct {
	Day  int
	Seq  int // order within the day
	Kind OpKind

	Add         *AddRequest
	Remove      *Pool
	Tillage     *TillageRequest
	Rain        float64
	CropResidue *CropResidue
	Faeces      *Faeces

	Potential *PotentialDecomposition
	Actual    []ActualDecomposition
}

func (o Operation) String() string {
	return fmt.Sprintf("day %d #%d: %s", o.Day, o.Seq, o.Kind)
}

// record appends o to the current day's operation log.
func (m *Model) record(o Operation) {
	o.Day = m.day
	o.Seq = m.seq
	m.seq++
	m.ops = append(m.ops, o)
}

// Operations returns the operations that have changed the pools since
// the start of the current day, in the order they happened.
func (m *Model) Operations() []Operation {
	return append([]Operation(nil), m.ops...)
}

// clearOperations starts a new operation log.
func (m *Model) clearOperations() {
	m.ops = m.ops[:0]
	m.seq = 0
}

// Replay applies ops to m in order. Applying the operations logged by
// one model to another model in the same starting state gives the same
// final state. Tillage operations are stored with their fraction and
// depth already resolved.
func Replay(m *Model, ops []Operation) error {
	for _, o := range ops {
		var err error
		switch o.Kind {
		case OpAdd:
			err = m.Add(*o.Add)
		case OpRemove:
			err = m.Remove(*o.Remove)
		case OpTillage:
			err = m.Tillage(*o.Tillage)
		case OpLeach:
			_, err = m.Leach(o.Rain)
		case OpCropResidue:
			err = m.AddCropResidue(*o.CropResidue)
		case OpFaeces:
			err = m.AddFaeces(*o.Faeces)
		case OpDecompose:
			err = m.ApplyActualDecomposition(o.Potential, o.Actual)
		default:
			err = inputErrorf("unknown operation kind '%s'", o.Kind)
		}
		if err != nil {
			return fmt.Errorf("surfom: replaying %v: %w", o, err)
		}
	}
	return nil
}
