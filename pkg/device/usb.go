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

	"github.com/google/gousb"
	log "github.com/sirupsen/logrus"
)

// vendor requests of the programmer firmware
const (
	usbReqReadByte  = 0x01
	usbReqWriteByte = 0x02
)

// USBEnumerator scans the USB topology for supported programmers via
// libusb.
type USBEnumerator struct {
	ctx *gousb.Context
}

//
func NewUSBEnumerator() *USBEnumerator {
	return &USBEnumerator{ctx: gousb.NewContext()}
}

//
func (u *USBEnumerator) Enumerate() ([]Info, error) {

	devs, err := u.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return Supported(uint16(desc.Vendor), uint16(desc.Product))
	})

	// OpenDevices hands over whatever it could open even on error; keep
	// those and let the failed ones show up on a later cycle
	if err != nil && len(devs) == 0 {
		return nil, err
	}
	if err != nil {
		log.Warnf("partial USB enumeration: %v", err)
	}

	ret := make([]Info, 0, len(devs))
	for _, d := range devs {
		ret = append(ret, &usbInfo{dev: d})
	}
	return ret, nil
}

//
func (u *USBEnumerator) Close() error {
	return u.ctx.Close()
}

//
type usbInfo struct {
	dev *gousb.Device
}

// Key identifies the physical device by its position on the bus, which
// stays stable while it remains plugged in.
func (i *usbInfo) Key() string {
	return fmt.Sprintf("usb:%d:%d", i.dev.Desc.Bus, i.dev.Desc.Address)
}

//
func (i *usbInfo) VendorID() uint16 {
	return uint16(i.dev.Desc.Vendor)
}

//
func (i *usbInfo) ProductID() uint16 {
	return uint16(i.dev.Desc.Product)
}

//
func (i *usbInfo) Open() (Transport, error) {

	t := &usbTransport{dev: i.dev}

	// string descriptor reads are best effort, a device with a flaky
	// descriptor table is still usable
	var err error
	if t.manufacturer, err = i.dev.Manufacturer(); err != nil {
		log.Debugf("no manufacturer string for %s: %v", i.Key(), err)
	}
	if t.product, err = i.dev.Product(); err != nil {
		log.Debugf("no product string for %s: %v", i.Key(), err)
	}
	if t.serial, err = i.dev.SerialNumber(); err != nil {
		log.Debugf("no serial number for %s: %v", i.Key(), err)
	}

	return t, nil
}

//
func (i *usbInfo) Discard() {
	if err := i.dev.Close(); err != nil {
		log.Debugf("discarding USB device %s: %v", i.Key(), err)
	}
}

/*
	usbTransport speaks the programmer's vendor control protocol: a single
	byte read or write per request, with the low address half in wValue
	and the chip index plus high address bits in wIndex.
*/
type usbTransport struct {
	dev          *gousb.Device
	manufacturer string
	product      string
	serial       string
}

//
func (t *usbTransport) ReadByte(chip, addr uint32) (byte, error) {

	buf := make([]byte, 1)
	_, err := t.dev.Control(
		gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
		usbReqReadByte, uint16(addr), index(chip, addr), buf)
	if err != nil {
		return 0, fmt.Errorf("USB read failed: %w", err)
	}
	return buf[0], nil
}

//
func (t *usbTransport) WriteByte(chip, addr uint32, data byte) error {

	_, err := t.dev.Control(
		gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		usbReqWriteByte, uint16(addr), index(chip, addr), []byte{data})
	if err != nil {
		return fmt.Errorf("USB write failed: %w", err)
	}
	return nil
}

//
func (t *usbTransport) Manufacturer() string {
	return t.manufacturer
}

//
func (t *usbTransport) Product() string {
	return t.product
}

//
func (t *usbTransport) Serial() string {
	return t.serial
}

//
func (t *usbTransport) Close() error {
	return t.dev.Close()
}

// chip index in the high byte, address bits 16..23 in the low byte
func index(chip, addr uint32) uint16 {
	return uint16(chip)<<8 | uint16((addr>>16)&0xff)
}
