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

package flashsim

import "fmt"

// Device bundles one or more simulated chips behind the byte transport
// contract of a programmer.
type Device struct {
	chips []*Chip
}

//
func NewDevice(chips ...*Chip) *Device {
	return &Device{chips: chips}
}

//
func (d *Device) Chips() int {
	return len(d.chips)
}

//
func (d *Device) Chip(ix int) *Chip {
	return d.chips[ix]
}

//
func (d *Device) ReadByte(chip, addr uint32) (byte, error) {
	if int(chip) >= len(d.chips) {
		return 0, fmt.Errorf("no chip at index %d", chip)
	}
	return d.chips[chip].Read(addr), nil
}

//
func (d *Device) WriteByte(chip, addr uint32, data byte) error {
	if int(chip) >= len(d.chips) {
		return fmt.Errorf("no chip at index %d", chip)
	}
	d.chips[chip].Write(addr, data)
	return nil
}
