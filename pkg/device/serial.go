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

package device

import (
	"fmt"
	"io"
	"os"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/davel/flashmasta/pkg/cartridge"
)

/*
	SerialEnumerator reports a single programmer attached through a serial
	port, for prototype boards that expose the programmer protocol over
	USB CDC instead of vendor control transfers. The board presents
	itself with the vendor/product ids of the equivalent USB programmer
	so the rest of the registry treats it the same.
*/
type SerialEnumerator struct {
	port   string
	system cartridge.System
}

//
func NewSerialEnumerator(port string, sys cartridge.System) *SerialEnumerator {
	return &SerialEnumerator{port: port, system: sys}
}

//
func (s *SerialEnumerator) Enumerate() ([]Info, error) {

	if _, err := os.Stat(s.port); err != nil {
		// port node absent, device unplugged
		return nil, nil
	}

	return []Info{&serialInfo{port: s.port, system: s.system}}, nil
}

//
func (s *SerialEnumerator) Close() error {
	return nil
}

//
type serialInfo struct {
	port   string
	system cartridge.System
}

//
func (i *serialInfo) Key() string {
	return "serial:" + i.port
}

//
func (i *serialInfo) VendorID() uint16 {
	return 0x20a0
}

//
func (i *serialInfo) ProductID() uint16 {
	if i.system == cartridge.SystemWS {
		return 0x4252
	}
	return 0x4178
}

//
func (i *serialInfo) Open() (Transport, error) {

	log.Infof("opening serial port %s", i.port)

	options := serial.OpenOptions{
		PortName:              i.port,
		BaudRate:              115200,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		InterCharacterTimeout: 100,
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("cannot open serial port: %v", err)
	}

	return &serialTransport{port: port, name: i.port}, nil
}

//
func (i *serialInfo) Discard() {}

// serialTransport frames one command per transfer: a request byte, the
// chip index, three address bytes big endian, and for writes the data
// byte; reads answer with a single byte.
type serialTransport struct {
	port io.ReadWriteCloser
	name string
}

//
func (t *serialTransport) ReadByte(chip, addr uint32) (byte, error) {

	req := []byte{
		usbReqReadByte, byte(chip),
		byte(addr >> 16), byte(addr >> 8), byte(addr),
	}
	if _, err := t.port.Write(req); err != nil {
		return 0, fmt.Errorf("serial read failed: %v", err)
	}

	buf := make([]byte, 1)
	if _, err := io.ReadFull(t.port, buf); err != nil {
		return 0, fmt.Errorf("serial read failed: %v", err)
	}
	return buf[0], nil
}

//
func (t *serialTransport) WriteByte(chip, addr uint32, data byte) error {

	req := []byte{
		usbReqWriteByte, byte(chip),
		byte(addr >> 16), byte(addr >> 8), byte(addr), data,
	}
	if _, err := t.port.Write(req); err != nil {
		return fmt.Errorf("serial write failed: %v", err)
	}
	return nil
}

//
func (t *serialTransport) Manufacturer() string {
	return "7400 Circuits"
}

//
func (t *serialTransport) Product() string {
	return "LinkMasta (serial)"
}

//
func (t *serialTransport) Serial() string {
	return t.name
}

//
func (t *serialTransport) Close() error {
	return t.port.Close()
}
