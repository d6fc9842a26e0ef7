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

// Package cartridge models the physical memory map of a flash cartridge
// and implements descriptor construction plus the backup, restore, verify
// and erase operations over it.
package cartridge

// System is the cartridge family tag.
type System int

//
const (
	SystemUnknown System = iota
	SystemNGP
	SystemWS
)

//
func (s System) String() string {
	switch s {
	case SystemNGP:
		return "Neo Geo Pocket"
	case SystemWS:
		return "WonderSwan"
	}
	return "unknown"
}

// GetSystem maps a system name, as used by CLI flags and API arguments,
// to its tag.
func GetSystem(name string) System {
	switch name {
	case "ngp":
		return SystemNGP
	case "ws":
		return SystemWS
	}
	return SystemUnknown
}

// Sector is one erase sector in a layout table.
type Sector struct {
	Base uint32
	Size uint32
}

// ChipLayout is the fixed, ordered sector list of one chip. Downstream
// backup and restore code indexes sectors by position, so the order here
// is the order on the wire and in image files.
//
// SaveSectors is the number of sectors at the top of the chip that hold
// save data, 0 when the chip carries none.
type ChipLayout struct {
	Sectors     []Sector
	SaveSectors int
}

// Layout is the fixed physical layout table of a cartridge family.
type Layout struct {
	System System
	Chips  []ChipLayout
}

// Size returns the total byte size of all chips in the layout.
func (l *Layout) Size() uint32 {
	var n uint32
	for _, c := range l.Chips {
		for _, s := range c.Sectors {
			n += s.Size
		}
	}
	return n
}

// LayoutFor returns the layout table of the given cartridge family, or
// nil when the family is unknown.
func LayoutFor(sys System) *Layout {
	switch sys {
	case SystemNGP:
		return ngpLayout
	case SystemWS:
		return wsLayout
	}
	return nil
}

/*
	Official NGP flash cartridges carry up to two 16 MBit chips with a
	boot block split at the top: 31 64 KiB sectors followed by 32, 8, 8
	and 16 KiB. Save data lives in the split sectors of the last chip.
*/
var ngpLayout = &Layout{
	System: SystemNGP,
	Chips: []ChipLayout{
		{Sectors: ngpChipSectors()},
		{Sectors: ngpChipSectors(), SaveSectors: 4},
	},
}

// WS cartridges use a single 32 MBit chip with uniform 64 KiB sectors,
// the topmost one reserved for save data.
var wsLayout = &Layout{
	System: SystemWS,
	Chips: []ChipLayout{
		{Sectors: uniformSectors(64, 0x10000), SaveSectors: 1},
	},
}

//
func ngpChipSectors() []Sector {

	ret := uniformSectors(31, 0x10000)
	base := ret[len(ret)-1].Base + 0x10000

	for _, size := range []uint32{0x8000, 0x2000, 0x2000, 0x4000} {
		ret = append(ret, Sector{Base: base, Size: size})
		base += size
	}
	return ret
}

//
func uniformSectors(count int, size uint32) []Sector {
	ret := make([]Sector, count)
	for i := range ret {
		ret[i] = Sector{Base: uint32(i) * size, Size: size}
	}
	return ret
}
