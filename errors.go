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
	"errors"
	"fmt"
)

// Error kinds. All of them are fatal to a simulation run; callers
// distinguish them with errors.Is.
var (
	// ErrConfiguration indicates an invalid or incomplete residue
	// type definition or model parameterization.
	ErrConfiguration = errors.New("configuration error")

	// ErrMassImbalance indicates that an operation would violate
	// conservation of mass, for example by decomposing more than
	// the potential decomposition or removing more residue than exists.
	ErrMassImbalance = errors.New("mass imbalance")

	// ErrInput indicates a request that cannot be satisfied with the
	// information given, such as an addition with neither a nitrogen
	// amount nor a C:N ratio.
	ErrInput = errors.New("input error")
)

// NotFoundError is returned when a residue type or pool name is
// not known. It is a configuration error.
type NotFoundError struct {
	Kind string // "residue type" or "pool"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("surfom: %s '%s' not found", e.Kind, e.Name)
}

// Is reports whether target is ErrConfiguration.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(format string, a ...interface{}) error {
	return fmt.Errorf("surfom: %s: %w", fmt.Sprintf(format, a...), ErrConfiguration)
}

func imbalanceErrorf(format string, a ...interface{}) error {
	return fmt.Errorf("surfom: %s: %w", fmt.Sprintf(format, a...), ErrMassImbalance)
}

func inputErrorf(format string, a ...interface{}) error {
	return fmt.Errorf("surfom: %s: %w", fmt.Sprintf(format, a...), ErrInput)
}
