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

// Package hash calculates content fingerprints of Go values.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// printer writes values deterministically: map keys are sorted and
// pointer addresses are left out.
var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Hash returns a fingerprint of the contents of object. Values that
// gob cannot encode (for example, ones that contain NaN or maps) are
// printed with spew instead.
func Hash(object interface{}) string {
	h := fnv.New128a()
	if _, isMap := object.(map[string]interface{}); !isMap {
		if err := gob.NewEncoder(h).Encode(object); err == nil {
			return fmt.Sprintf("%x", h.Sum(nil))
		}
		h.Reset()
	}
	printer.Fprintf(h, "%#v", object)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Equal returns whether a and b have the same fingerprint.
func Equal(a, b interface{}) bool {
	return Hash(a) == Hash(b)
}
