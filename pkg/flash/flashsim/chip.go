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

// Package flashsim provides a behavioral model of a JEDEC style flash
// chip: command decoding, autoselect metadata, AND programming semantics,
// and toggle bit erase status. It backs the package tests across the
// repository and the daemon's --sim mode.
package flashsim

// Sector describes one erase sector of a simulated chip.
type Sector struct {
	Base      uint32
	Size      uint32
	Protected bool
}

//
const (
	addrUnlock1 = 0x5555
	addrUnlock2 = 0x2aaa
)

/*
	Chip simulates a single flash chip. The exported fields configure the
	simulated hardware and should be set before first use.

	ErasePolls is the number of status reads an erase stays busy for; the
	toggle bit flips on each of them, then the erase completes.
*/
type Chip struct {
	//
	ManufacturerID byte
	DeviceID       byte
	BypassCapable  bool
	ErasePolls     int
	//
	sectors []Sector
	mem     []byte
	//
	seq            int
	eraseArmed     bool
	programPending bool
	autoselect     bool
	bypass         bool
	bypassExiting  bool
	//
	erasing    bool
	pollsLeft  int
	toggle     byte
	eraseAll   bool
	eraseBase  uint32
	eraseValid bool
}

// NewChip creates a simulated chip with the given sector layout, filled
// with erased bits and reporting an identity that supports bypass mode.
func NewChip(sectors []Sector) *Chip {

	var size uint32
	for _, s := range sectors {
		if s.Base+s.Size > size {
			size = s.Base + s.Size
		}
	}

	c := &Chip{
		ManufacturerID: 0x01,
		DeviceID:       0x49,
		BypassCapable:  true,
		ErasePolls:     4,
		sectors:        sectors,
		mem:            make([]byte, size),
	}
	for i := range c.mem {
		c.mem[i] = 0xff
	}
	return c
}

// Mem exposes the simulated storage for test setup and assertions.
func (c *Chip) Mem() []byte {
	return c.mem
}

// InAutoselect reports whether the chip currently serves metadata reads.
func (c *Chip) InAutoselect() bool {
	return c.autoselect
}

// InBypass reports whether the chip currently is in bypass mode.
func (c *Chip) InBypass() bool {
	return c.bypass
}

// Busy reports whether an erase is still pending completion.
func (c *Chip) Busy() bool {
	return c.erasing
}

//
func (c *Chip) Read(addr uint32) byte {

	if c.erasing {
		if !c.eraseValid || c.pollsLeft > 0 {
			if c.pollsLeft > 0 {
				c.pollsLeft--
			}
			c.toggle ^= 0x40
			return c.toggle
		}
		c.completeErase()
	}

	if c.autoselect {
		switch addr {
		case 0x0000:
			return c.ManufacturerID
		case 0x0001:
			return c.DeviceID
		}
		for _, s := range c.sectors {
			if addr == s.Base|0x0002 {
				if s.Protected {
					return 0x01
				}
				return 0x00
			}
		}
		return 0x90
	}

	if int(addr) < len(c.mem) {
		return c.mem[addr]
	}
	return 0xff
}

//
func (c *Chip) Write(addr uint32, data byte) {

	if c.programPending {
		c.programPending = false
		c.seq = 0
		if int(addr) < len(c.mem) {
			// flash can only clear bits
			c.mem[addr] &= data
		}
		return
	}

	if c.bypass {
		switch {
		case c.bypassExiting:
			if data == 0x00 {
				c.bypass = false
			}
			c.bypassExiting = false
		case data == 0xa0:
			c.programPending = true
		case data == 0x90:
			c.bypassExiting = true
		}
		return
	}

	switch c.seq {

	case 0:
		if addr == addrUnlock1 && data == 0xaa {
			c.seq = 1
		}

	case 1:
		if addr == addrUnlock2 && data == 0x55 {
			c.seq = 2
		} else {
			c.seq = 0
		}

	case 2:
		c.seq = 0

		if c.eraseArmed {
			c.eraseArmed = false
			if addr == addrUnlock1 && data == 0x10 {
				c.startErase(true, 0)
			} else if data == 0x30 {
				c.startErase(false, addr)
			}
			return
		}

		if addr != addrUnlock1 {
			return
		}

		switch data {
		case 0xf0:
			c.autoselect = false
		case 0x90:
			c.autoselect = true
		case 0xa0:
			c.programPending = true
		case 0x20:
			if c.BypassCapable {
				c.bypass = true
			}
		case 0x80:
			c.eraseArmed = true
		}
	}
}

//
func (c *Chip) startErase(all bool, base uint32) {

	c.erasing = true
	c.pollsLeft = c.ErasePolls
	c.eraseAll = all
	c.eraseBase = base
	c.eraseValid = all

	if !all {
		for _, s := range c.sectors {
			if s.Base == base {
				c.eraseValid = true
				break
			}
		}
	}
}

//
func (c *Chip) completeErase() {

	c.erasing = false

	for _, s := range c.sectors {
		if s.Protected {
			continue
		}
		if c.eraseAll || s.Base == c.eraseBase {
			for a := s.Base; a < s.Base+s.Size; a++ {
				c.mem[a] = 0xff
			}
		}
	}
}
