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

// Mode is the assumed state of a flash chip. It is tracked, not verified;
// the hardware gives no acknowledgment for mode transitions.
type Mode int

//
const (
	ModeRead Mode = iota
	ModeAutoselect
	ModeBypass
	ModeErase
)

//
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeAutoselect:
		return "autoselect"
	case ModeBypass:
		return "bypass"
	case ModeErase:
		return "erase"
	}
	return "unknown"
}

// Transport is the byte channel to the chips of one programmer. A chip
// only ever addresses its own index.
type Transport interface {
	ReadByte(chip, addr uint32) (byte, error)
	WriteByte(chip, addr uint32, data byte) error
}

// unlock cycle addresses of the JEDEC command protocol
const (
	addrUnlock1 = 0x5555
	addrUnlock2 = 0x2aaa
)

// identity pairs that accept the unlock bypass sequence
var bypassIdentities = [][2]uint32{
	{0x01, 0x49},
}

/*
	Chip drives the command protocol of a single flash chip on a cartridge.
	It keeps very little state about the chip it represents: the assumed
	mode, the cached erase status, and the cached bypass capability.

	A Chip is not safe for concurrent use. Callers serialize access via the
	device registry's claim/release protocol.
*/
type Chip struct {
	//
	transport Transport
	index     uint32
	//
	mode       Mode
	lastErased uint32
	erasing    bool
	//
	bypass       bool
	bypassTested bool
	//
	Poll PollPolicy
}

// NewChip creates a controller for the chip at the given index on the
// cartridge. The chip is assumed to be in read mode; call Reset before any
// mode-sensitive operation when the actual state is unknown.
func NewChip(t Transport, index uint32) *Chip {
	return &Chip{
		transport: t,
		index:     index,
		mode:      ModeRead,
		Poll:      DefaultPollPolicy(),
	}
}

//
func (c *Chip) Index() uint32 {
	return c.index
}

// CurrentMode reports the assumed chip mode. It must not be used to detect
// erase completion; see TestErasing.
func (c *Chip) CurrentMode() Mode {
	return c.mode
}

// Read reads a single word. What comes back depends on the current mode:
// stored data in read mode, identity and protection metadata in autoselect.
// The result is undefined while an erase is in progress.
func (c *Chip) Read(addr uint32) (byte, error) {
	return c.transport.ReadByte(c.index, addr)
}

// Write sends a raw command word to the chip. It is the primitive from
// which the command sequences are composed and guarantees no mode
// transition by itself.
func (c *Chip) Write(addr uint32, data byte) error {
	return c.transport.WriteByte(c.index, addr, data)
}

// Reset sends the reset command sequence and moves the assumed mode to
// read, regardless of prior mode. Whether the hardware actually complied
// cannot be verified by the protocol.
func (c *Chip) Reset() error {

	if c.mode == ModeBypass {
		// leave bypass first, the plain reset is ignored in bypass
		if err := c.Write(0x00, 0x90); err != nil {
			return err
		}
		if err := c.Write(0x00, 0x00); err != nil {
			return err
		}
	}

	if err := c.unlock(0xf0); err != nil {
		return err
	}

	c.mode = ModeRead
	return nil
}

// GetManufacturerID enters autoselect mode if necessary and reads the
// manufacturer id word. The result is undefined if the chip rejected the
// autoselect sequence.
func (c *Chip) GetManufacturerID() (uint32, error) {
	if err := c.enterAutoselect(); err != nil {
		return 0, err
	}
	b, err := c.Read(0x0000)
	return uint32(b), err
}

// GetDeviceID enters autoselect mode if necessary and reads the device id
// word.
func (c *Chip) GetDeviceID() (uint32, error) {
	if err := c.enterAutoselect(); err != nil {
		return 0, err
	}
	b, err := c.Read(0x0001)
	return uint32(b), err
}

// GetBlockProtection reports whether the sector starting at sectorAddr is
// write protected. sectorAddr must be a true sector base address; the chip
// does not validate it, a wrong address yields garbage rather than an
// error.
func (c *Chip) GetBlockProtection(sectorAddr uint32) (bool, error) {
	if err := c.enterAutoselect(); err != nil {
		return false, err
	}
	b, err := c.Read(sectorAddr | 0x0002)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

/*
	ProgramByte programs a single data word at the given address and polls
	the chip until it reports completion.

	Flash hardware can only clear bits. The caller must ensure the
	destination is erased (all ones); programming over unerased data gives
	the AND of old and new values, and the chip will not flag it.
*/
func (c *Chip) ProgramByte(addr uint32, data byte) error {

	if c.mode == ModeBypass {
		if err := c.Write(0x00, 0xa0); err != nil {
			return err
		}
	} else {
		if c.mode != ModeRead {
			if err := c.Reset(); err != nil {
				return err
			}
		}
		if err := c.unlock(0xa0); err != nil {
			return err
		}
	}

	if err := c.Write(addr, data); err != nil {
		return err
	}

	// poll until the written value reads back
	return c.Poll.Wait(func() (bool, error) {
		b, err := c.Read(addr)
		if err != nil {
			return false, err
		}
		return b == data, nil
	})
}

// UnlockBypass puts the chip into bypass mode for faster programming. On
// chips without bypass support (see TestBypassSupport) this is a no-op.
func (c *Chip) UnlockBypass() error {

	if !c.bypass {
		return nil
	}

	if c.mode != ModeRead {
		if err := c.Reset(); err != nil {
			return err
		}
	}

	if err := c.unlock(0x20); err != nil {
		return err
	}

	c.mode = ModeBypass
	return nil
}

/*
	EraseChip sends the full chip erase sequence and returns immediately;
	erasing continues in hardware. The only valid way to detect completion
	is polling TestErasing. IsErasing and CurrentMode cannot see the
	hardware and will not change on their own.
*/
func (c *Chip) EraseChip() error {

	if c.mode != ModeRead {
		if err := c.Reset(); err != nil {
			return err
		}
	}

	if err := c.unlock(0x80); err != nil {
		return err
	}
	if err := c.unlock(0x10); err != nil {
		return err
	}

	c.mode = ModeErase
	c.lastErased = 0
	c.erasing = true
	return nil
}

// EraseBlock sends the erase sequence for the sector starting at blockAddr
// and returns immediately. Completion detection works as for EraseChip. If
// blockAddr is not an exact sector base, the erase will likely never start
// or never complete.
func (c *Chip) EraseBlock(blockAddr uint32) error {

	if c.mode != ModeRead {
		if err := c.Reset(); err != nil {
			return err
		}
	}

	if err := c.Write(addrUnlock1, 0xaa); err != nil {
		return err
	}
	if err := c.Write(addrUnlock2, 0x55); err != nil {
		return err
	}
	if err := c.Write(addrUnlock1, 0x80); err != nil {
		return err
	}
	if err := c.Write(addrUnlock1, 0xaa); err != nil {
		return err
	}
	if err := c.Write(addrUnlock2, 0x55); err != nil {
		return err
	}
	if err := c.Write(blockAddr, 0x30); err != nil {
		return err
	}

	c.mode = ModeErase
	c.lastErased = blockAddr
	c.erasing = true
	return nil
}

// IsErasing reports the cached erase status from the last TestErasing
// call. It performs no hardware query.
func (c *Chip) IsErasing() bool {
	return c.erasing
}

// TestErasing performs the actual toggle bit poll: while an erase is in
// progress, a status bit flips on successive reads. The cached status is
// updated and returned.
func (c *Chip) TestErasing() (bool, error) {

	if !c.erasing {
		return false, nil
	}

	r1, err := c.Read(c.lastErased)
	if err != nil {
		return false, err
	}
	r2, err := c.Read(c.lastErased)
	if err != nil {
		return false, err
	}

	c.erasing = r1 != r2
	return c.erasing, nil
}

// SupportsBypass reports the cached bypass capability. It is only
// meaningful after TestBypassSupport has run.
func (c *Chip) SupportsBypass() bool {
	return c.bypass
}

// TestBypassSupport probes the chip's identity to determine whether it
// accepts the bypass unlock sequence, retrying a bounded number of times
// while the chip still answers with the probe command itself. The result
// is cached for SupportsBypass and UnlockBypass.
func (c *Chip) TestBypassSupport() (bool, error) {

	if c.bypassTested {
		return c.bypass, nil
	}

	if err := c.Reset(); err != nil {
		return false, err
	}

	var man, dev uint32

	err := c.Poll.Wait(func() (bool, error) {
		var err error
		if man, err = c.GetManufacturerID(); err != nil {
			return false, err
		}
		if dev, err = c.GetDeviceID(); err != nil {
			return false, err
		}
		if man == 0x90 && dev == 0x90 {
			// chip echoed the autoselect command, not settled yet
			if err = c.Reset(); err != nil {
				return false, err
			}
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}

	for _, id := range bypassIdentities {
		if man == id[0] && dev == id[1] {
			c.bypass = true
			break
		}
	}
	c.bypassTested = true

	return c.bypass, nil
}

//
func (c *Chip) enterAutoselect() error {
	if c.mode == ModeAutoselect {
		return nil
	}
	if err := c.unlock(0x90); err != nil {
		return err
	}
	c.mode = ModeAutoselect
	return nil
}

// unlock sends the two cycle unlock prefix followed by cmd
func (c *Chip) unlock(cmd byte) error {
	if err := c.Write(addrUnlock1, 0xaa); err != nil {
		return err
	}
	if err := c.Write(addrUnlock2, 0x55); err != nil {
		return err
	}
	return c.Write(addrUnlock1, cmd)
}
