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

// Package device discovers USB attached cartridge programmers, tracks
// them in a process wide registry, and arbitrates exclusive access to
// them via a claim/release protocol.
package device

import (
	"errors"
	"sync/atomic"
)

// ErrDeviceGone is returned by transport operations against a programmer
// whose hardware has been removed while its registry entry was claimed.
var ErrDeviceGone = errors.New("device gone")

/*
	Transport is the byte channel to one physical programmer. Read and
	write address a chip index on the cartridge; the packet framing below
	this contract is up to the implementation.
*/
type Transport interface {
	ReadByte(chip, addr uint32) (byte, error)
	WriteByte(chip, addr uint32, data byte) error
	Manufacturer() string
	Product() string
	Serial() string
	Close() error
}

/*
	guardedTransport wraps the native transport of a registry entry. The
	refresh loop flips gone when the underlying hardware vanishes while
	the entry is claimed; from then on every operation fails fast with
	ErrDeviceGone instead of running into a dead native handle.
*/
type guardedTransport struct {
	native Transport
	gone   atomic.Bool
}

//
func newGuardedTransport(t Transport) *guardedTransport {
	return &guardedTransport{native: t}
}

//
func (g *guardedTransport) markGone() {
	g.gone.Store(true)
}

//
func (g *guardedTransport) ReadByte(chip, addr uint32) (byte, error) {
	if g.gone.Load() {
		return 0, ErrDeviceGone
	}
	return g.native.ReadByte(chip, addr)
}

//
func (g *guardedTransport) WriteByte(chip, addr uint32, data byte) error {
	if g.gone.Load() {
		return ErrDeviceGone
	}
	return g.native.WriteByte(chip, addr, data)
}

//
func (g *guardedTransport) Manufacturer() string {
	return g.native.Manufacturer()
}

//
func (g *guardedTransport) Product() string {
	return g.native.Product()
}

//
func (g *guardedTransport) Serial() string {
	return g.native.Serial()
}

//
func (g *guardedTransport) Close() error {
	if g.gone.Load() {
		return nil
	}
	return g.native.Close()
}
