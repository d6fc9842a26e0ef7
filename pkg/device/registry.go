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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/davel/flashmasta/pkg/cartridge"
	"github.com/davel/flashmasta/pkg/flash"
)

// one tracked programmer
type entry struct {
	//
	id  uint32
	key string
	//
	vendorID     uint16
	productID    uint16
	manufacturer string
	product      string
	serial       string
	//
	claimed bool
	gone    bool
	//
	transport *guardedTransport
	chips     []*flash.Chip
	system    cartridge.System
}

/*
	Stack is the per device view handed to whoever holds the claim on a
	device id: the transport and the chip controllers built over it. None
	of it is internally locked; the claim is the lock.
*/
type Stack struct {
	ID        uint32
	System    cartridge.System
	Transport Transport
	Chips     []*flash.Chip
}

/*
	Registry owns the single process wide table of connected programmers.
	Enumeration, metadata lookup and claim/release are safe for concurrent
	use from any number of goroutines; a background refresh loop keeps the
	table in sync with the live topology.

	Construct with NewRegistry, call Start, and Stop before discarding;
	Stop drains the refresh loop and closes all device transports.
*/
type Registry struct {
	//
	enum     Enumerator
	interval time.Duration
	//
	mu      sync.Mutex
	devices map[uint32]*entry
	nextID  uint32
	//
	stop chan struct{}
	done chan struct{}
}

//
func NewRegistry(enum Enumerator, interval time.Duration) *Registry {
	return &Registry{
		enum:     enum,
		interval: interval,
		devices:  make(map[uint32]*entry),
		nextID:   1,
	}
}

// Start runs an immediate refresh and then launches the background
// refresh loop.
func (r *Registry) Start() {

	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		r.refresh()
		tick := time.NewTicker(r.interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				r.refresh()
			case <-r.stop:
				return
			}
		}
	}()

	log.Infof("device registry started, refresh interval %v", r.interval)
}

// Stop drains the refresh loop, drops all entries and closes their
// transports and the enumerator.
func (r *Registry) Stop() {

	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.stop = nil

	r.mu.Lock()
	for id, e := range r.devices {
		if err := e.transport.Close(); err != nil {
			log.Errorf("closing transport of programmer %d: %v", id, err)
		}
		delete(r.devices, id)
	}
	r.mu.Unlock()

	if err := r.enum.Close(); err != nil {
		log.Errorf("closing enumerator: %v", err)
	}

	log.Info("device registry stopped")
}

// GetConnectedDevices returns a snapshot of the currently tracked device
// ids. It blocks while a refresh cycle is mutating the table.
func (r *Registry) GetConnectedDevices() []uint32 {

	r.mu.Lock()
	defer r.mu.Unlock()

	ret := make([]uint32, 0, len(r.devices))
	for id := range r.devices {
		ret = append(ret, id)
	}
	return ret
}

// TryGetConnectedDevices is the non-blocking variant: when the table lock
// is currently held, typically by a refresh cycle, it returns false and
// leaves out untouched.
func (r *Registry) TryGetConnectedDevices(out *[]uint32) bool {

	if !r.mu.TryLock() {
		return false
	}
	defer r.mu.Unlock()

	*out = (*out)[:0]
	for id := range r.devices {
		*out = append(*out, id)
	}
	return true
}

//
func (r *Registry) IsConnected(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[id]
	return ok
}

//
func (r *Registry) GetVendorID(id uint32) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.vendorID, nil
}

//
func (r *Registry) GetProductID(id uint32) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.productID, nil
}

//
func (r *Registry) GetManufacturerString(id uint32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return e.manufacturer, nil
}

//
func (r *Registry) GetProductString(id uint32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return e.product, nil
}

//
func (r *Registry) GetSerialNumber(id uint32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return e.serial, nil
}

//
func (r *Registry) IsDeviceClaimed(id uint32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return e.claimed, nil
}

// TryClaimDevice atomically test-and-sets the claimed flag of the given
// device. It returns true iff this call took the claim; false means
// someone else holds it. The claim grants exclusive use of the device's
// stack until ReleaseDevice.
func (r *Registry) TryClaimDevice(id uint32) (bool, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}

	was := e.claimed
	e.claimed = true
	return !was, nil
}

// ReleaseDevice clears the claimed flag. Releasing an unclaimed device is
// not an error, so release cannot serve as double-release detection. A
// released entry whose hardware is gone becomes eligible for removal on
// the next refresh cycle.
func (r *Registry) ReleaseDevice(id uint32) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.claimed = false
	return nil
}

// GetStack returns the transport and chip controller stack of the given
// device. Callers must hold the claim on the id while using it.
func (r *Registry) GetStack(id uint32) (*Stack, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	return &Stack{
		ID:        e.id,
		System:    e.system,
		Transport: e.transport,
		Chips:     e.chips,
	}, nil
}

// callers hold r.mu
func (r *Registry) lookup(id uint32) (*entry, error) {
	if e, ok := r.devices[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("unknown connected device ID %d", id)
}

/*
	refresh reconciles the table against one topology scan. The table lock
	is held only while diffing and mutating; opening new devices and
	reading their string descriptors happens unlocked, so a slow probe of
	a freshly plugged device does not stall queries against known ones.
*/
func (r *Registry) refresh() {

	infos, err := r.enum.Enumerate()
	if err != nil {
		log.Errorf("device enumeration failed: %v", err)
		return
	}

	r.mu.Lock()
	found := make(map[uint32]bool, len(r.devices))
	for id := range r.devices {
		found[id] = false
	}
	var fresh, matched []Info
	for _, info := range infos {
		hit := false
		for id, e := range r.devices {
			// a gone entry never matches again; hardware reappearing
			// under its key is a new connection and gets a fresh entry
			if e.key == info.Key() && !e.gone {
				found[id] = true
				hit = true
				break
			}
		}
		if hit {
			matched = append(matched, info)
		} else {
			fresh = append(fresh, info)
		}
	}
	r.mu.Unlock()

	// discarding can be USB I/O, keep it outside the table lock
	for _, info := range matched {
		info.Discard()
	}

	var added []*entry
	for _, info := range fresh {
		e, err := openEntry(info)
		if err != nil {
			// tolerate and skip, the device may be mid-unplug or not
			// settled yet; next cycle gets another chance
			log.Warnf("skipping device %s: %v", info.Key(), err)
			info.Discard()
			continue
		}
		added = append(added, e)
	}

	r.mu.Lock()
	for _, e := range added {
		e.id = r.nextID
		r.nextID++
		r.devices[e.id] = e
		log.WithFields(log.Fields{
			"id":      e.id,
			"vendor":  fmt.Sprintf("0x%04x", e.vendorID),
			"product": fmt.Sprintf("0x%04x", e.productID),
			"serial":  e.serial,
		}).Info("programmer connected")
	}
	for id, ok := range found {
		if ok {
			continue
		}
		e := r.devices[id]
		if e.claimed {
			if !e.gone {
				e.gone = true
				e.transport.markGone()
				log.Warnf(
					"claimed programmer %d vanished, retaining until release",
					id)
			}
			continue
		}
		// cleanup failure is tolerated here: log it, drop the entry anyway
		if err := e.transport.Close(); err != nil {
			log.Errorf("closing transport of removed programmer %d: %v",
				id, err)
		}
		delete(r.devices, id)
		log.Infof("programmer %d removed", id)
	}
	r.mu.Unlock()
}

// openEntry opens a newly observed device, reads its metadata, and builds
// its transport + chip controller stack.
func openEntry(info Info) (*entry, error) {

	t, err := info.Open()
	if err != nil {
		return nil, err
	}

	sys, chips := systemFor(info.VendorID(), info.ProductID())
	g := newGuardedTransport(t)

	e := &entry{
		key:          info.Key(),
		vendorID:     info.VendorID(),
		productID:    info.ProductID(),
		manufacturer: t.Manufacturer(),
		product:      t.Product(),
		serial:       t.Serial(),
		transport:    g,
		system:       sys,
	}
	for i := uint32(0); i < chips; i++ {
		e.chips = append(e.chips, flash.NewChip(g, i))
	}
	return e, nil
}
