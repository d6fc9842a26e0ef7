/*
   FlashMasta - flash cartridge programmer suite
   Copyright (c) 2026, 7400 Circuits

   This file is part of FlashMasta.

   FlashMasta is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   FlashMasta is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with FlashMasta. If not, see <http://www.gnu.org/licenses/>.
*/

package device

import (
	"github.com/davel/flashmasta/pkg/cartridge"
)

/*
	Info describes one physically present programmer during an enumeration
	cycle. Key is a stable native identity (stable at least while the
	device stays plugged in), used by the registry to match topology scans
	against existing entries.

	Infos the registry does not turn into new entries are discarded via
	Discard.
*/
type Info interface {
	Key() string
	VendorID() uint16
	ProductID() uint16
	Open() (Transport, error)
	Discard()
}

// Enumerator scans the live topology for supported programmers.
type Enumerator interface {
	Enumerate() ([]Info, error)
	Close() error
}

// the fixed table of programmer hardware this system understands
var supported = []struct {
	vendor, product uint16
	system          cartridge.System
	chips           uint32
}{
	{0x20a0, 0x4178, cartridge.SystemNGP, 2}, // NGP LinkMasta
	{0x20a0, 0x4256, cartridge.SystemNGP, 2}, // NGP FlashMasta
	{0x20a0, 0x4252, cartridge.SystemWS, 1},  // WS LinkMasta
}

// Supported reports whether a vendor/product id pair identifies a
// programmer this system understands.
func Supported(vendor, product uint16) bool {
	for _, s := range supported {
		if s.vendor == vendor && s.product == product {
			return true
		}
	}
	return false
}

//
func systemFor(vendor, product uint16) (cartridge.System, uint32) {
	for _, s := range supported {
		if s.vendor == vendor && s.product == product {
			return s.system, s.chips
		}
	}
	return cartridge.SystemUnknown, 0
}
