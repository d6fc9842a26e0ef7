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

package control

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/davel/flashmasta/pkg/cartridge"
)

//
type Device struct {
	ID           uint32 `json:"id"`
	VendorID     string `json:"vendorId"`
	ProductID    string `json:"productId"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	Serial       string `json:"serial"`
	System       string `json:"system"`
	Claimed      bool   `json:"claimed"`
}

//
func (d *Device) String() string {

	use := " "
	if d.Claimed {
		use = "*"
	}
	return fmt.Sprintf("%3d %s %-16s %-24s %s",
		d.ID, use, d.System, d.Product, d.Serial)
}

//
type DeviceList struct {
	Devices []*Device `json:"devices"`
}

//
func (l *DeviceList) Add(d *Device) {
	l.Devices = append(l.Devices, d)
}

//
func (l *DeviceList) String() string {

	if len(l.Devices) == 0 {
		return "no programmers connected"
	}

	ret := " ID   SYSTEM           PRODUCT                  SERIAL"
	for _, d := range l.Devices {
		ret += "\n" + d.String()
	}
	return ret
}

//
type VerifyResult struct {
	Match bool `json:"match"`
}

//
func describe(desc *cartridge.Descriptor) string {

	ret := fmt.Sprintf("system: %s, %d chip(s), %d bytes",
		desc.Name, len(desc.Chips), desc.Size())

	for i := range desc.Chips {
		c := &desc.Chips[i]
		protected := 0
		for _, b := range c.Blocks {
			if b.Protected {
				protected++
			}
		}
		ret += fmt.Sprintf(
			"\nchip %d: manufacturer 0x%02x, device 0x%02x, bypass %v, "+
				"%d sectors (%d protected)",
			c.Index, c.ManufacturerID, c.DeviceID, c.SupportsBypass,
			len(c.Blocks), protected)
	}
	return ret
}

/*
	tracker adapts a request context to the progress/cancel collaborator
	of the bulk cartridge operations: the operation is cancelled when the
	client goes away, progress goes to the trace log.
*/
type tracker struct {
	ctx  context.Context
	name string
	last int
}

//
func newTracker(ctx context.Context, name string) *tracker {
	return &tracker{ctx: ctx, name: name, last: -1}
}

//
func (t *tracker) Progress(done, total int) {
	if total == 0 {
		return
	}
	if pct := done * 100 / total; pct/10 != t.last/10 || t.last < 0 {
		t.last = pct
		log.Tracef("%s: %d%%", t.name, pct)
	}
}

//
func (t *tracker) Cancelled() bool {
	return t.ctx.Err() != nil
}
