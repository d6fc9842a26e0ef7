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

package cartridge

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/davel/flashmasta/pkg/flash"
)

// Block is one discovered erase sector: its location, the protection
// state the hardware reported at discovery time, and whether the layout
// table assigns it to the save data region.
type Block struct {
	Base      uint32 `json:"base"`
	Size      uint32 `json:"size"`
	Protected bool   `json:"protected"`
	Save      bool   `json:"save"`
}

// ChipDescriptor is the discovered identity and sector map of one chip.
type ChipDescriptor struct {
	Index          uint32  `json:"index"`
	ManufacturerID uint32  `json:"manufacturerId"`
	DeviceID       uint32  `json:"deviceId"`
	SupportsBypass bool    `json:"supportsBypass"`
	Blocks         []Block `json:"blocks"`
}

// Size returns the chip's total byte size.
func (c *ChipDescriptor) Size() uint32 {
	var n uint32
	for _, b := range c.Blocks {
		n += b.Size
	}
	return n
}

/*
	Descriptor is the full physical memory map of a cartridge at the time
	it was built. It is immutable after construction; if a chip is reset
	outside the builder's control, protection state may be stale and the
	descriptor must be rebuilt.
*/
type Descriptor struct {
	System System           `json:"-"`
	Name   string           `json:"system"`
	Chips  []ChipDescriptor `json:"chips"`
}

// Size returns the cartridge's total byte size.
func (d *Descriptor) Size() uint32 {
	var n uint32
	for i := range d.Chips {
		n += d.Chips[i].Size()
	}
	return n
}

/*
	SaveView returns a reduced descriptor covering only the save data
	sectors. Chip positions are preserved, so the view drives the same
	chip stack as the full descriptor; chips without save sectors keep an
	empty block list. Save images conventionally hold exactly these
	sectors, in descriptor order.
*/
func (d *Descriptor) SaveView() *Descriptor {

	view := &Descriptor{System: d.System, Name: d.Name}

	for i := range d.Chips {
		c := &d.Chips[i]
		cd := ChipDescriptor{
			Index:          c.Index,
			ManufacturerID: c.ManufacturerID,
			DeviceID:       c.DeviceID,
			SupportsBypass: c.SupportsBypass,
		}
		for _, b := range c.Blocks {
			if b.Save {
				cd.Blocks = append(cd.Blocks, b)
			}
		}
		view.Chips = append(view.Chips, cd)
	}

	return view
}

/*
	BuildDescriptor walks every chip of the cartridge in the order fixed by
	the family's layout table and assembles a descriptor: identity words,
	bypass capability, and per sector protection, with sectors in layout
	order regardless of what the hardware reports.

	Identity words are recorded as read, even when they match no known
	chip; rejecting unsupported identities is the caller's call. Building
	leaves every chip visited in read mode.
*/
func BuildDescriptor(sys System, chips []*flash.Chip) (*Descriptor, error) {

	layout := LayoutFor(sys)
	if layout == nil {
		return nil, fmt.Errorf("no layout table for system '%s'", sys)
	}
	return BuildDescriptorWithLayout(layout, chips)
}

// BuildDescriptorWithLayout is BuildDescriptor for an explicit layout
// table.
func BuildDescriptorWithLayout(layout *Layout,
	chips []*flash.Chip) (*Descriptor, error) {

	if len(chips) < len(layout.Chips) {
		return nil, fmt.Errorf(
			"cartridge layout expects %d chips, stack has %d",
			len(layout.Chips), len(chips))
	}

	desc := &Descriptor{System: layout.System, Name: layout.System.String()}

	for ix, cl := range layout.Chips {

		chip := chips[ix]

		if err := chip.Reset(); err != nil {
			return nil, err
		}

		cd := ChipDescriptor{Index: chip.Index()}

		var err error
		if cd.ManufacturerID, err = chip.GetManufacturerID(); err != nil {
			return nil, err
		}
		if cd.DeviceID, err = chip.GetDeviceID(); err != nil {
			return nil, err
		}
		if cd.SupportsBypass, err = chip.TestBypassSupport(); err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"chip":         ix,
			"manufacturer": fmt.Sprintf("0x%02x", cd.ManufacturerID),
			"device":       fmt.Sprintf("0x%02x", cd.DeviceID),
			"bypass":       cd.SupportsBypass,
		}).Debug("chip identity")

		for i, s := range cl.Sectors {
			prot, err := chip.GetBlockProtection(s.Base)
			if err != nil {
				return nil, err
			}
			cd.Blocks = append(cd.Blocks, Block{
				Base:      s.Base,
				Size:      s.Size,
				Protected: prot,
				Save:      i >= len(cl.Sectors)-cl.SaveSectors,
			})
		}

		if err := chip.Reset(); err != nil {
			return nil, err
		}

		desc.Chips = append(desc.Chips, cd)
	}

	return desc, nil
}
