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
	"testing"
	"time"

	"github.com/davel/flashmasta/pkg/flash"
	"github.com/davel/flashmasta/pkg/flash/flashsim"
)

// two chips, four 256 byte sectors each, third sector of the second chip
// write protected, its last sector holding save data
func testCartridge(t *testing.T) ([]*flashsim.Chip, []*flash.Chip, *Layout) {

	t.Helper()

	sectors := func(protected int) []flashsim.Sector {
		ss := make([]flashsim.Sector, 4)
		for i := range ss {
			ss[i] = flashsim.Sector{
				Base:      uint32(i) * 0x100,
				Size:      0x100,
				Protected: i == protected,
			}
		}
		return ss
	}

	sims := []*flashsim.Chip{
		flashsim.NewChip(sectors(-1)),
		flashsim.NewChip(sectors(2)),
	}
	dev := flashsim.NewDevice(sims...)

	chips := make([]*flash.Chip, len(sims))
	for i := range chips {
		chips[i] = flash.NewChip(dev, uint32(i))
		chips[i].Poll = flash.PollPolicy{
			Attempts: 200,
			Sleep:    func(time.Duration) {},
		}
	}

	layout := &Layout{System: SystemNGP}
	for ix := range sims {
		cl := ChipLayout{}
		if ix == 1 {
			cl.SaveSectors = 1
		}
		for i := 0; i < 4; i++ {
			cl.Sectors = append(cl.Sectors,
				Sector{Base: uint32(i) * 0x100, Size: 0x100})
		}
		layout.Chips = append(layout.Chips, cl)
	}

	return sims, chips, layout
}

//
func TestBuildDescriptor(t *testing.T) {

	sims, chips, layout := testCartridge(t)

	desc, err := BuildDescriptorWithLayout(layout, chips)
	if err != nil {
		t.Fatalf("build descriptor: %v", err)
	}

	if desc.System != SystemNGP || desc.Name != "Neo Geo Pocket" {
		t.Errorf("system %s/%q", desc.System, desc.Name)
	}
	if len(desc.Chips) != 2 {
		t.Fatalf("%d chips, want 2", len(desc.Chips))
	}
	if desc.Size() != 2048 {
		t.Errorf("size %d, want 2048", desc.Size())
	}

	for ix, cd := range desc.Chips {

		if cd.Index != uint32(ix) {
			t.Errorf("chip %d has index %d", ix, cd.Index)
		}
		if cd.ManufacturerID != 0x01 || cd.DeviceID != 0x49 {
			t.Errorf("chip %d identity 0x%02x/0x%02x, want 0x01/0x49",
				ix, cd.ManufacturerID, cd.DeviceID)
		}
		if !cd.SupportsBypass {
			t.Errorf("chip %d bypass capability not detected", ix)
		}

		// sectors come out in layout order, not hardware order
		if len(cd.Blocks) != len(layout.Chips[ix].Sectors) {
			t.Fatalf("chip %d has %d blocks, want %d",
				ix, len(cd.Blocks), len(layout.Chips[ix].Sectors))
		}
		for i, b := range cd.Blocks {
			s := layout.Chips[ix].Sectors[i]
			if b.Base != s.Base || b.Size != s.Size {
				t.Errorf("chip %d block %d is 0x%04x+0x%x, want 0x%04x+0x%x",
					ix, i, b.Base, b.Size, s.Base, s.Size)
			}
		}
	}

	if desc.Chips[0].Blocks[2].Protected {
		t.Error("unprotected sector reported protected")
	}
	if !desc.Chips[1].Blocks[2].Protected {
		t.Error("protected sector not reported")
	}

	// only the layout's designated save sectors carry the save tag
	for ix, cd := range desc.Chips {
		for i, b := range cd.Blocks {
			want := ix == 1 && i == 3
			if b.Save != want {
				t.Errorf("chip %d block %d save flag %v, want %v",
					ix, i, b.Save, want)
			}
		}
	}

	// building leaves the chips in read mode
	for ix, sim := range sims {
		if sim.InAutoselect() {
			t.Errorf("chip %d left in autoselect", ix)
		}
		if chips[ix].CurrentMode() != flash.ModeRead {
			t.Errorf("chip %d controller in mode %s",
				ix, chips[ix].CurrentMode())
		}
	}
}

//
func TestSaveView(t *testing.T) {

	_, chips, layout := testCartridge(t)

	desc, err := BuildDescriptorWithLayout(layout, chips)
	if err != nil {
		t.Fatalf("build descriptor: %v", err)
	}

	view := desc.SaveView()

	// chip positions stay aligned with the full descriptor
	if len(view.Chips) != len(desc.Chips) {
		t.Fatalf("view has %d chips, want %d", len(view.Chips), len(desc.Chips))
	}
	if len(view.Chips[0].Blocks) != 0 {
		t.Errorf("chip without save sectors has %d blocks in view",
			len(view.Chips[0].Blocks))
	}
	if len(view.Chips[1].Blocks) != 1 {
		t.Fatalf("save chip has %d blocks in view, want 1",
			len(view.Chips[1].Blocks))
	}

	b := view.Chips[1].Blocks[0]
	if b.Base != 0x300 || b.Size != 0x100 || !b.Save {
		t.Errorf("save block 0x%04x+0x%x save=%v", b.Base, b.Size, b.Save)
	}
	if view.Size() != 0x100 {
		t.Errorf("view size %d, want 256", view.Size())
	}

	// identity carries over so the view stands on its own
	if view.Chips[1].ManufacturerID != desc.Chips[1].ManufacturerID ||
		view.Chips[1].SupportsBypass != desc.Chips[1].SupportsBypass {
		t.Error("chip identity lost in save view")
	}
}

//
func TestBuildDescriptorTooFewChips(t *testing.T) {

	_, chips, layout := testCartridge(t)

	if _, err := BuildDescriptorWithLayout(layout, chips[:1]); err == nil {
		t.Error("layout with more chips than the stack did not fail")
	}
}

//
func TestBuildDescriptorUnknownSystem(t *testing.T) {

	if _, err := BuildDescriptor(SystemUnknown, nil); err == nil {
		t.Error("unknown system did not fail")
	}
}

//
func TestLayoutTables(t *testing.T) {

	ngp := LayoutFor(SystemNGP)
	if ngp == nil {
		t.Fatal("no NGP layout")
	}
	if len(ngp.Chips) != 2 {
		t.Errorf("NGP layout has %d chips, want 2", len(ngp.Chips))
	}
	if ngp.Size() != 0x400000 {
		t.Errorf("NGP layout size 0x%x, want 0x400000", ngp.Size())
	}
	// 31 uniform sectors plus the split boot block
	if n := len(ngp.Chips[0].Sectors); n != 35 {
		t.Errorf("NGP chip has %d sectors, want 35", n)
	}

	ws := LayoutFor(SystemWS)
	if ws == nil {
		t.Fatal("no WS layout")
	}
	if len(ws.Chips) != 1 || len(ws.Chips[0].Sectors) != 64 {
		t.Error("unexpected WS layout shape")
	}
	if ws.Size() != 0x400000 {
		t.Errorf("WS layout size 0x%x, want 0x400000", ws.Size())
	}

	// save data sits in the top sectors of the last chip
	if ngp.Chips[0].SaveSectors != 0 || ngp.Chips[1].SaveSectors != 4 {
		t.Errorf("NGP save sectors %d/%d, want 0/4",
			ngp.Chips[0].SaveSectors, ngp.Chips[1].SaveSectors)
	}
	if ws.Chips[0].SaveSectors != 1 {
		t.Errorf("WS save sectors %d, want 1", ws.Chips[0].SaveSectors)
	}

	// sectors tile each chip contiguously from address zero
	for _, l := range []*Layout{ngp, ws} {
		for ix, c := range l.Chips {
			var next uint32
			for i, s := range c.Sectors {
				if s.Base != next {
					t.Errorf("%s chip %d sector %d at 0x%06x, want 0x%06x",
						l.System, ix, i, s.Base, next)
				}
				next += s.Size
			}
		}
	}

	if LayoutFor(SystemUnknown) != nil {
		t.Error("layout for unknown system")
	}
}

//
func TestGetSystem(t *testing.T) {

	for _, c := range []struct {
		name string
		want System
	}{
		{"ngp", SystemNGP}, {"ws", SystemWS}, {"", SystemUnknown},
		{"NGP", SystemUnknown},
	} {
		if got := GetSystem(c.name); got != c.want {
			t.Errorf("GetSystem(%q) = %s, want %s", c.name, got, c.want)
		}
	}
}
