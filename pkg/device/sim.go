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
	"github.com/davel/flashmasta/pkg/flash/flashsim"
)

// SimEnumerator reports a single simulated programmer, for development
// and testing without hardware (serve --sim).
type SimEnumerator struct {
	system cartridge.System
	dev    *flashsim.Device
}

// NewSimEnumerator creates an enumerator over a simulated cartridge built
// from the given family's layout table.
func NewSimEnumerator(sys cartridge.System) *SimEnumerator {

	layout := cartridge.LayoutFor(sys)
	if layout == nil {
		layout = cartridge.LayoutFor(cartridge.SystemNGP)
		sys = cartridge.SystemNGP
	}

	chips := make([]*flashsim.Chip, len(layout.Chips))
	for ix, cl := range layout.Chips {
		sectors := make([]flashsim.Sector, len(cl.Sectors))
		for i, s := range cl.Sectors {
			sectors[i] = flashsim.Sector{Base: s.Base, Size: s.Size}
		}
		chips[ix] = flashsim.NewChip(sectors)
	}

	return &SimEnumerator{system: sys, dev: flashsim.NewDevice(chips...)}
}

// Device exposes the simulated hardware, so callers can inspect or
// preload its memory.
func (s *SimEnumerator) Device() *flashsim.Device {
	return s.dev
}

//
func (s *SimEnumerator) Enumerate() ([]Info, error) {
	return []Info{&simInfo{enum: s}}, nil
}

//
func (s *SimEnumerator) Close() error {
	return nil
}

//
type simInfo struct {
	enum *SimEnumerator
}

//
func (i *simInfo) Key() string {
	return "sim:0"
}

//
func (i *simInfo) VendorID() uint16 {
	return 0x20a0
}

//
func (i *simInfo) ProductID() uint16 {
	if i.enum.system == cartridge.SystemWS {
		return 0x4252
	}
	return 0x4178
}

//
func (i *simInfo) Open() (Transport, error) {
	return &simTransport{dev: i.enum.dev}, nil
}

//
func (i *simInfo) Discard() {}

//
type simTransport struct {
	dev *flashsim.Device
}

//
func (t *simTransport) ReadByte(chip, addr uint32) (byte, error) {
	return t.dev.ReadByte(chip, addr)
}

//
func (t *simTransport) WriteByte(chip, addr uint32, data byte) error {
	return t.dev.WriteByte(chip, addr, data)
}

//
func (t *simTransport) Manufacturer() string {
	return "7400 Circuits"
}

//
func (t *simTransport) Product() string {
	return "Simulated FlashMasta"
}

//
func (t *simTransport) Serial() string {
	return "SIM0001"
}

//
func (t *simTransport) Close() error {
	return nil
}
