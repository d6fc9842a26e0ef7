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
	"bytes"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/davel/flashmasta/pkg/flash"
)

/*
	Backup reads the full cartridge content, chip by chip and sector by
	sector in descriptor order, into w. It returns the number of bytes
	written; a short count against the descriptor size signals
	cancellation, not an error. An aborted backup leaves the cartridge
	untouched.
*/
func Backup(chips []*flash.Chip, desc *Descriptor, w io.Writer,
	t flash.Tracker) (int, error) {

	total := int(desc.Size())
	written := 0

	for ix := range desc.Chips {

		chip := chips[ix]
		if err := chip.Reset(); err != nil {
			return written, err
		}

		for _, b := range desc.Chips[ix].Blocks {

			buf := make([]byte, b.Size)
			n, err := chip.ReadBytes(b.Base, buf,
				&span{t: t, offset: written, total: total})
			if err != nil {
				return written, err
			}

			if _, err := w.Write(buf[:n]); err != nil {
				return written, err
			}
			written += n

			if n < len(buf) { // cancelled
				return written, nil
			}
		}
	}

	return written, nil
}

/*
	Restore flashes a cartridge image from r: per chip, every unprotected
	sector is erased and its erase polled to completion, then the image
	data is programmed sector by sector. Protected sectors are skipped but
	their bytes are still consumed from r, so images always cover the full
	layout.

	Returns the number of image bytes programmed or skipped. A short count
	signals cancellation; the cartridge content is undefined in that case.
*/
func Restore(chips []*flash.Chip, desc *Descriptor, r io.Reader,
	t flash.Tracker) (int, error) {

	total := int(desc.Size())
	done := 0

	for ix := range desc.Chips {

		chip := chips[ix]
		if err := chip.Reset(); err != nil {
			return done, err
		}

		for _, b := range desc.Chips[ix].Blocks {
			if b.Protected {
				continue
			}
			if err := chip.EraseBlock(b.Base); err != nil {
				return done, err
			}
			if err := waitEraseDone(chip); err != nil {
				return done, fmt.Errorf(
					"erase of sector 0x%06x on chip %d did not complete: %v",
					b.Base, ix, err)
			}
			if err := chip.Reset(); err != nil {
				return done, err
			}
		}

		for _, b := range desc.Chips[ix].Blocks {

			if t != nil && t.Cancelled() {
				return done, nil
			}

			buf := make([]byte, b.Size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return done, fmt.Errorf("image too short: %v", err)
			}

			if b.Protected {
				log.Debugf("skipping protected sector 0x%06x", b.Base)
				done += len(buf)
				continue
			}

			n, err := chip.ProgramBytes(b.Base, buf,
				&span{t: t, offset: done, total: total})
			if err != nil {
				return done, err
			}
			done += n

			if n < len(buf) { // cancelled
				return done, nil
			}
		}

		if err := chip.Reset(); err != nil {
			return done, err
		}
	}

	return done, nil
}

// Verify compares the cartridge content byte for byte against the image
// in r. It reports false on the first differing sector, and also false
// when cancelled before completion.
func Verify(chips []*flash.Chip, desc *Descriptor, r io.Reader,
	t flash.Tracker) (bool, error) {

	total := int(desc.Size())
	done := 0

	for ix := range desc.Chips {

		chip := chips[ix]
		if err := chip.Reset(); err != nil {
			return false, err
		}

		for _, b := range desc.Chips[ix].Blocks {

			want := make([]byte, b.Size)
			if _, err := io.ReadFull(r, want); err != nil {
				return false, fmt.Errorf("image too short: %v", err)
			}

			got := make([]byte, b.Size)
			n, err := chip.ReadBytes(b.Base, got,
				&span{t: t, offset: done, total: total})
			if err != nil {
				return false, err
			}
			done += n

			if n < len(got) { // cancelled
				log.Debug("verify cancelled")
				return false, nil
			}

			if !bytes.Equal(want, got) {
				log.Infof("mismatch in sector 0x%06x of chip %d", b.Base, ix)
				return false, nil
			}
		}
	}

	return true, nil
}

// Erase erases every unprotected sector of the cartridge, polling each
// erase to completion.
func Erase(chips []*flash.Chip, desc *Descriptor, t flash.Tracker) error {

	blocks := 0
	for ix := range desc.Chips {
		blocks += len(desc.Chips[ix].Blocks)
	}
	done := 0

	for ix := range desc.Chips {

		chip := chips[ix]
		if err := chip.Reset(); err != nil {
			return err
		}

		for _, b := range desc.Chips[ix].Blocks {

			done++
			if b.Protected {
				continue
			}
			if t != nil && t.Cancelled() {
				return nil
			}

			if err := chip.EraseBlock(b.Base); err != nil {
				return err
			}
			if err := waitEraseDone(chip); err != nil {
				return fmt.Errorf(
					"erase of sector 0x%06x on chip %d did not complete: %v",
					b.Base, ix, err)
			}
			if err := chip.Reset(); err != nil {
				return err
			}
			if t != nil {
				t.Progress(done, blocks)
			}
		}
	}

	return nil
}

//
func waitEraseDone(chip *flash.Chip) error {
	return chip.Poll.Wait(func() (bool, error) {
		busy, err := chip.TestErasing()
		return !busy, err
	})
}

// span rescales the per sector progress of a bulk operation to the whole
// cartridge.
type span struct {
	t      flash.Tracker
	offset int
	total  int
}

//
func (s *span) Progress(done, _ int) {
	if s.t != nil {
		s.t.Progress(s.offset+done, s.total)
	}
}

//
func (s *span) Cancelled() bool {
	return s.t != nil && s.t.Cancelled()
}
