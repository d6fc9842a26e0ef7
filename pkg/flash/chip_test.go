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

import (
	"errors"
	"testing"
	"time"

	"github.com/davel/flashmasta/pkg/flash/flashsim"
)

//
func fastPoll() PollPolicy {
	return PollPolicy{Interval: 0, Attempts: 100, Sleep: func(time.Duration) {}}
}

//
func simChip(t *testing.T) (*flashsim.Chip, *Chip) {

	t.Helper()

	sc := flashsim.NewChip([]flashsim.Sector{
		{Base: 0x0000, Size: 0x100},
		{Base: 0x0100, Size: 0x100},
		{Base: 0x0200, Size: 0x100, Protected: true},
		{Base: 0x0300, Size: 0x100},
	})

	chip := NewChip(flashsim.NewDevice(sc), 0)
	chip.Poll = fastPoll()
	return sc, chip
}

//
func TestIdentity(t *testing.T) {

	sc, chip := simChip(t)
	sc.ManufacturerID = 0x98
	sc.DeviceID = 0x2f

	man, err := chip.GetManufacturerID()
	if err != nil {
		t.Fatalf("manufacturer id: %v", err)
	}
	if man != 0x98 {
		t.Errorf("manufacturer id 0x%02x, want 0x98", man)
	}

	dev, err := chip.GetDeviceID()
	if err != nil {
		t.Fatalf("device id: %v", err)
	}
	if dev != 0x2f {
		t.Errorf("device id 0x%02x, want 0x2f", dev)
	}

	if chip.CurrentMode() != ModeAutoselect {
		t.Errorf("mode %s after identity reads, want autoselect",
			chip.CurrentMode())
	}

	if err := chip.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if chip.CurrentMode() != ModeRead {
		t.Errorf("mode %s after reset, want read", chip.CurrentMode())
	}
	if sc.InAutoselect() {
		t.Error("simulated chip still in autoselect after reset")
	}
}

//
func TestBlockProtection(t *testing.T) {

	_, chip := simChip(t)

	for _, c := range []struct {
		base uint32
		want bool
	}{
		{0x0000, false}, {0x0100, false}, {0x0200, true}, {0x0300, false},
	} {
		got, err := chip.GetBlockProtection(c.base)
		if err != nil {
			t.Fatalf("protection of 0x%04x: %v", c.base, err)
		}
		if got != c.want {
			t.Errorf("protection of 0x%04x = %v, want %v", c.base, got, c.want)
		}
	}
}

//
func TestProgramByte(t *testing.T) {

	sc, chip := simChip(t)

	if err := chip.ProgramByte(0x42, 0xa5); err != nil {
		t.Fatalf("program onto erased byte: %v", err)
	}
	if sc.Mem()[0x42] != 0xa5 {
		t.Errorf("memory 0x%02x, want 0xa5", sc.Mem()[0x42])
	}

	b, err := chip.Read(0x42)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if b != 0xa5 {
		t.Errorf("read back 0x%02x, want 0xa5", b)
	}
}

// Programming over unerased data must come out as the AND of old and new
// value, and the controller must not mask the resulting completion poll
// failure.
func TestProgramByteUnerasedIsANDed(t *testing.T) {

	sc, chip := simChip(t)

	if err := chip.ProgramByte(0x10, 0xcc); err != nil {
		t.Fatalf("first program: %v", err)
	}

	err := chip.ProgramByte(0x10, 0xa6)
	if !errors.Is(err, ErrPollExhausted) {
		t.Errorf("second program returned %v, want ErrPollExhausted", err)
	}
	if got := sc.Mem()[0x10]; got != 0xcc&0xa6 {
		t.Errorf("memory 0x%02x, want AND result 0x%02x", got, 0xcc&0xa6)
	}
}

//
func TestEraseBlockCompletion(t *testing.T) {

	sc, chip := simChip(t)
	sc.ErasePolls = 6

	if err := chip.ProgramByte(0x05, 0x00); err != nil {
		t.Fatalf("program: %v", err)
	}

	if err := chip.EraseBlock(0x0000); err != nil {
		t.Fatalf("erase block: %v", err)
	}
	if chip.CurrentMode() != ModeErase {
		t.Errorf("mode %s after erase, want erase", chip.CurrentMode())
	}

	// the cached status must not change without a hardware poll
	for i := 0; i < 5; i++ {
		if !chip.IsErasing() {
			t.Fatal("IsErasing flipped without TestErasing call")
		}
	}

	polls := 0
	for {
		busy, err := chip.TestErasing()
		if err != nil {
			t.Fatalf("test erasing: %v", err)
		}
		if !busy {
			break
		}
		polls++
		if polls > 100 {
			t.Fatal("erase never completed")
		}
	}

	if polls == 0 {
		t.Error("erase completed without any busy poll")
	}
	if chip.IsErasing() {
		t.Error("cached erase status not cleared after completion")
	}
	if sc.Mem()[0x05] != 0xff {
		t.Errorf("erased byte 0x%02x, want 0xff", sc.Mem()[0x05])
	}

	// erase mode is only left by an explicit call
	if chip.CurrentMode() != ModeErase {
		t.Errorf("mode %s after completion, want erase until reset",
			chip.CurrentMode())
	}
	if err := chip.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if chip.CurrentMode() != ModeRead {
		t.Errorf("mode %s after reset, want read", chip.CurrentMode())
	}
}

//
func TestEraseChip(t *testing.T) {

	sc, chip := simChip(t)

	if err := chip.ProgramByte(0x0000, 0x11); err != nil {
		t.Fatalf("program: %v", err)
	}
	if err := chip.ProgramByte(0x0210, 0x00); err != nil {
		t.Fatalf("program protected sector: %v", err)
	}

	if err := chip.EraseChip(); err != nil {
		t.Fatalf("erase chip: %v", err)
	}
	if err := chip.Poll.Wait(func() (bool, error) {
		busy, err := chip.TestErasing()
		return !busy, err
	}); err != nil {
		t.Fatalf("waiting for erase: %v", err)
	}

	if sc.Mem()[0x0000] != 0xff {
		t.Errorf("chip erase left 0x%02x at 0x0000", sc.Mem()[0x0000])
	}
	if sc.Mem()[0x0210] != 0x00 {
		t.Error("chip erase cleared a protected sector")
	}
}

//
func TestBypassSupport(t *testing.T) {

	sc, chip := simChip(t)

	ok, err := chip.TestBypassSupport()
	if err != nil {
		t.Fatalf("bypass probe: %v", err)
	}
	if !ok || !chip.SupportsBypass() {
		t.Error("bypass capable identity not detected")
	}

	if err := chip.UnlockBypass(); err != nil {
		t.Fatalf("unlock bypass: %v", err)
	}
	if chip.CurrentMode() != ModeBypass || !sc.InBypass() {
		t.Error("chip not in bypass mode after unlock")
	}

	if err := chip.ProgramByte(0x33, 0x3c); err != nil {
		t.Fatalf("program in bypass: %v", err)
	}
	if sc.Mem()[0x33] != 0x3c {
		t.Errorf("bypass program wrote 0x%02x, want 0x3c", sc.Mem()[0x33])
	}

	if err := chip.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if sc.InBypass() {
		t.Error("simulated chip still in bypass after reset")
	}
}

//
func TestBypassUnsupportedIdentity(t *testing.T) {

	sc, chip := simChip(t)
	sc.ManufacturerID = 0x98
	sc.DeviceID = 0x2f
	sc.BypassCapable = false

	ok, err := chip.TestBypassSupport()
	if err != nil {
		t.Fatalf("bypass probe: %v", err)
	}
	if ok {
		t.Error("bypass detected on incapable identity")
	}

	// unlock must be a no-op now
	if err := chip.UnlockBypass(); err != nil {
		t.Fatalf("unlock bypass: %v", err)
	}
	if chip.CurrentMode() == ModeBypass || sc.InBypass() {
		t.Error("unlock bypass was not a no-op")
	}
}

//
type countingTracker struct {
	cancelAfter int
	progressed  int
	lastDone    int
	lastTotal   int
}

//
func (c *countingTracker) Progress(done, total int) {
	c.progressed++
	c.lastDone = done
	c.lastTotal = total
}

//
func (c *countingTracker) Cancelled() bool {
	return c.cancelAfter > 0 && c.progressed >= c.cancelAfter
}

//
func TestReadBytes(t *testing.T) {

	sc, chip := simChip(t)
	for i := 0; i < 16; i++ {
		sc.Mem()[0x20+i] = byte(i)
	}

	buf := make([]byte, 16)
	tr := &countingTracker{}

	n, err := chip.ReadBytes(0x20, buf, tr)
	if err != nil {
		t.Fatalf("read bytes: %v", err)
	}
	if n != 16 {
		t.Fatalf("read %d bytes, want 16", n)
	}
	for i := 0; i < 16; i++ {
		if buf[i] != byte(i) {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", i, buf[i], i)
		}
	}
	if tr.progressed != 16 || tr.lastDone != 16 || tr.lastTotal != 16 {
		t.Errorf("progress calls %d, last %d/%d, want 16, 16/16",
			tr.progressed, tr.lastDone, tr.lastTotal)
	}
}

// a cancelled bulk transfer returns a short count, not an error
func TestReadBytesCancelled(t *testing.T) {

	_, chip := simChip(t)

	buf := make([]byte, 16)
	n, err := chip.ReadBytes(0x00, buf, &countingTracker{cancelAfter: 4})
	if err != nil {
		t.Fatalf("read bytes: %v", err)
	}
	if n != 4 {
		t.Errorf("short count %d, want 4", n)
	}
}

//
func TestProgramBytes(t *testing.T) {

	sc, chip := simChip(t)

	data := []byte{0xde, 0xad, 0xbe, 0xef}
	n, err := chip.ProgramBytes(0x40, data, nil)
	if err != nil {
		t.Fatalf("program bytes: %v", err)
	}
	if n != len(data) {
		t.Fatalf("programmed %d bytes, want %d", n, len(data))
	}
	for i, b := range data {
		if sc.Mem()[0x40+i] != b {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", i, sc.Mem()[0x40+i], b)
		}
	}

	// bypass capable chip gets switched to bypass for bulk programming
	if _, err := chip.TestBypassSupport(); err != nil {
		t.Fatalf("bypass probe: %v", err)
	}
	if _, err := chip.ProgramBytes(0x50, data, nil); err != nil {
		t.Fatalf("program bytes: %v", err)
	}
	if chip.CurrentMode() != ModeBypass {
		t.Errorf("mode %s after bulk program, want bypass", chip.CurrentMode())
	}
}

//
func TestProgramBytesCancelled(t *testing.T) {

	_, chip := simChip(t)

	data := make([]byte, 8)
	for i := range data {
		data[i] = 0x55
	}

	n, err := chip.ProgramBytes(0x60, data, &countingTracker{cancelAfter: 3})
	if err != nil {
		t.Fatalf("program bytes: %v", err)
	}
	if n != 3 {
		t.Errorf("short count %d, want 3", n)
	}
}

//
func TestPollPolicyExhaustion(t *testing.T) {

	slept := 0
	p := PollPolicy{
		Interval: time.Millisecond,
		Attempts: 7,
		Sleep:    func(time.Duration) { slept++ },
	}

	err := p.Wait(func() (bool, error) { return false, nil })
	if !errors.Is(err, ErrPollExhausted) {
		t.Errorf("got %v, want ErrPollExhausted", err)
	}
	if slept != 7 {
		t.Errorf("slept %d times, want 7", slept)
	}

	probes := 0
	if err := p.Wait(func() (bool, error) {
		probes++
		return probes == 3, nil
	}); err != nil {
		t.Errorf("got %v, want success", err)
	}
	if probes != 3 {
		t.Errorf("probed %d times, want 3", probes)
	}
}
