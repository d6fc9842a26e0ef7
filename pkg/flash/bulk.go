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

package flash

/*
	Tracker is the progress and cancellation collaborator for the bulk
	transfer operations. Both methods are polled on the calling thread
	between byte transfers, never mid-transfer and never from another
	goroutine.
*/
type Tracker interface {
	Progress(done, total int)
	Cancelled() bool
}

// ReadBytes reads len(buf) consecutive bytes starting at addr. It reports
// progress and checks cancellation between bytes, and returns the number
// of bytes actually read: a short count signals cancellation, not an
// error.
func (c *Chip) ReadBytes(addr uint32, buf []byte, t Tracker) (int, error) {

	total := len(buf)

	for i := 0; i < total; i++ {
		if t != nil && t.Cancelled() {
			return i, nil
		}
		b, err := c.Read(addr + uint32(i))
		if err != nil {
			return i, err
		}
		buf[i] = b
		if t != nil {
			t.Progress(i+1, total)
		}
	}

	return total, nil
}

// ProgramBytes programs len(data) consecutive bytes starting at addr,
// switching to bypass mode first when the chip supports it. The erased-
// destination contract of ProgramByte applies to the whole range. Returns
// the number of bytes actually programmed; a short count signals
// cancellation.
func (c *Chip) ProgramBytes(addr uint32, data []byte, t Tracker) (int, error) {

	total := len(data)

	if c.bypass && c.mode != ModeBypass {
		if err := c.UnlockBypass(); err != nil {
			return 0, err
		}
	}

	for i := 0; i < total; i++ {
		if t != nil && t.Cancelled() {
			return i, nil
		}
		if err := c.ProgramByte(addr+uint32(i), data[i]); err != nil {
			return i, err
		}
		if t != nil {
			t.Progress(i+1, total)
		}
	}

	return total, nil
}
