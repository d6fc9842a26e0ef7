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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/davel/flashmasta/pkg/cartridge"
	"github.com/davel/flashmasta/pkg/device"
)

//
type APIServer interface {
	Serve() error
	Stop() error
}

//
func NewAPIServer(addr string, reg *device.Registry) APIServer {
	return &api{address: addr, registry: reg}
}

//
type api struct {
	address  string
	registry *device.Registry
	server   *http.Server
}

//
func (a *api) Serve() error {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "ls", "GET", "/devices", a.list)
	addRoute(router, "device", "GET", "/device/{id:[0-9]+}", a.device)
	addRoute(router, "info", "GET", "/device/{id:[0-9]+}/info", a.info)
	addRoute(router, "backup", "GET", "/device/{id:[0-9]+}/backup", a.backup)
	addRoute(router, "restore", "PUT", "/device/{id:[0-9]+}/restore", a.restore)
	addRoute(router, "verify", "PUT", "/device/{id:[0-9]+}/verify", a.verify)
	addRoute(router, "erase", "PUT", "/device/{id:[0-9]+}/erase", a.erase)
	addRoute(router, "backup-save", "GET",
		"/device/{id:[0-9]+}/save/backup", a.backupSave)
	addRoute(router, "restore-save", "PUT",
		"/device/{id:[0-9]+}/save/restore", a.restoreSave)
	addRoute(router, "verify-save", "PUT",
		"/device/{id:[0-9]+}/save/verify", a.verifySave)

	addr := a.address
	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:8888", a.address)
	}

	log.Infof("FlashMasta API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: router}

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {
	if a.server != nil {
		log.Info("API server stopping...")
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

//
func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

//
func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

//
func (a *api) list(w http.ResponseWriter, req *http.Request) {

	list := &DeviceList{}
	for _, id := range a.registry.GetConnectedDevices() {
		// a device vanishing between snapshot and lookup is not an error
		if d, err := a.getDevice(id); err == nil {
			list.Add(d)
		}
	}

	if wantsJSON(req) {
		sendJSONReply(list, http.StatusOK, w)
	} else {
		sendReply([]byte(list.String()), http.StatusOK, w)
	}
}

//
func (a *api) device(w http.ResponseWriter, req *http.Request) {

	id, ok := getID(w, req)
	if !ok {
		return
	}

	d, err := a.getDevice(id)
	if handleError(err, http.StatusNotFound, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(d, http.StatusOK, w)
	} else {
		sendReply([]byte(d.String()), http.StatusOK, w)
	}
}

//
func (a *api) getDevice(id uint32) (*Device, error) {

	d := &Device{ID: id}

	vendor, err := a.registry.GetVendorID(id)
	if err != nil {
		return nil, err
	}
	product, err := a.registry.GetProductID(id)
	if err != nil {
		return nil, err
	}
	d.VendorID = fmt.Sprintf("0x%04x", vendor)
	d.ProductID = fmt.Sprintf("0x%04x", product)

	if d.Manufacturer, err = a.registry.GetManufacturerString(id); err != nil {
		return nil, err
	}
	if d.Product, err = a.registry.GetProductString(id); err != nil {
		return nil, err
	}
	if d.Serial, err = a.registry.GetSerialNumber(id); err != nil {
		return nil, err
	}
	if d.Claimed, err = a.registry.IsDeviceClaimed(id); err != nil {
		return nil, err
	}

	stack, err := a.registry.GetStack(id)
	if err != nil {
		return nil, err
	}
	d.System = stack.System.String()

	return d, nil
}

//
func (a *api) info(w http.ResponseWriter, req *http.Request) {

	stack, release, ok := a.claim(w, req)
	if !ok {
		return
	}
	defer release()

	desc, err := cartridge.BuildDescriptor(stack.System, stack.Chips)
	if handleDeviceError(err, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(desc, http.StatusOK, w)
	} else {
		sendReply([]byte(describe(desc)), http.StatusOK, w)
	}
}

//
func (a *api) backup(w http.ResponseWriter, req *http.Request) {
	a.doBackup(w, req, false)
}

// backupSave is backup restricted to the save data sectors.
func (a *api) backupSave(w http.ResponseWriter, req *http.Request) {
	a.doBackup(w, req, true)
}

//
func (a *api) doBackup(w http.ResponseWriter, req *http.Request, save bool) {

	stack, release, ok := a.claim(w, req)
	if !ok {
		return
	}
	defer release()

	desc, err := a.describeCartridge(stack, save)
	if handleDeviceError(err, w) {
		return
	}

	var out bytes.Buffer
	n, err := cartridge.Backup(stack.Chips, desc, &out,
		newTracker(req.Context(), opName("backup", save)))
	if handleDeviceError(err, w) {
		return
	}
	if n < int(desc.Size()) {
		log.Infof("backup cancelled after %d of %d bytes", n, desc.Size())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Bytes()); err != nil {
		log.Errorf("problem sending backup image: %v", err)
	}
}

//
func (a *api) restore(w http.ResponseWriter, req *http.Request) {
	a.doRestore(w, req, false)
}

// restoreSave is restore restricted to the save data sectors; the game
// data area is left untouched.
func (a *api) restoreSave(w http.ResponseWriter, req *http.Request) {
	a.doRestore(w, req, true)
}

//
func (a *api) doRestore(w http.ResponseWriter, req *http.Request, save bool) {

	stack, release, ok := a.claim(w, req)
	if !ok {
		return
	}
	defer release()

	desc, err := a.describeCartridge(stack, save)
	if handleDeviceError(err, w) {
		return
	}

	defer req.Body.Close()
	n, err := cartridge.Restore(stack.Chips, desc,
		io.LimitReader(req.Body, int64(desc.Size())),
		newTracker(req.Context(), opName("restore", save)))
	if handleDeviceError(err, w) {
		return
	}

	if n < int(desc.Size()) {
		sendReply([]byte(fmt.Sprintf(
			"restore aborted after %d of %d bytes, "+
				"cartridge may be left in an unplayable state",
			n, desc.Size())), http.StatusOK, w)
		return
	}

	sendReply([]byte(fmt.Sprintf("restored %d bytes", n)), http.StatusOK, w)
}

//
func (a *api) verify(w http.ResponseWriter, req *http.Request) {
	a.doVerify(w, req, false)
}

// verifySave is verify restricted to the save data sectors.
func (a *api) verifySave(w http.ResponseWriter, req *http.Request) {
	a.doVerify(w, req, true)
}

//
func (a *api) doVerify(w http.ResponseWriter, req *http.Request, save bool) {

	stack, release, ok := a.claim(w, req)
	if !ok {
		return
	}
	defer release()

	desc, err := a.describeCartridge(stack, save)
	if handleDeviceError(err, w) {
		return
	}

	defer req.Body.Close()
	match, err := cartridge.Verify(stack.Chips, desc,
		io.LimitReader(req.Body, int64(desc.Size())),
		newTracker(req.Context(), opName("verify", save)))
	if handleDeviceError(err, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(&VerifyResult{Match: match}, http.StatusOK, w)
	} else if match {
		sendReply([]byte("cartridge matches image"), http.StatusOK, w)
	} else {
		sendReply([]byte("cartridge differs from image"), http.StatusOK, w)
	}
}

//
func (a *api) erase(w http.ResponseWriter, req *http.Request) {

	stack, release, ok := a.claim(w, req)
	if !ok {
		return
	}
	defer release()

	desc, err := cartridge.BuildDescriptor(stack.System, stack.Chips)
	if handleDeviceError(err, w) {
		return
	}

	if handleDeviceError(cartridge.Erase(stack.Chips, desc,
		newTracker(req.Context(), "erase")), w) {
		return
	}

	sendReply([]byte("cartridge erased"), http.StatusOK, w)
}

// describeCartridge builds the cartridge descriptor for the claimed
// stack, reduced to the save data sectors when save is set.
func (a *api) describeCartridge(stack *device.Stack,
	save bool) (*cartridge.Descriptor, error) {

	desc, err := cartridge.BuildDescriptor(stack.System, stack.Chips)
	if err != nil {
		return nil, err
	}
	if save {
		return desc.SaveView(), nil
	}
	return desc, nil
}

//
func opName(op string, save bool) string {
	if save {
		return "save " + op
	}
	return op
}

/*
	claim parses the device id, takes the claim on it and returns the
	device stack plus the matching release func. When it returns ok=false,
	the reply has already been written: 404 for unknown ids, 423 when the
	device is claimed by someone else.
*/
func (a *api) claim(w http.ResponseWriter,
	req *http.Request) (*device.Stack, func(), bool) {

	id, ok := getID(w, req)
	if !ok {
		return nil, nil, false
	}

	claimed, err := a.registry.TryClaimDevice(id)
	if handleError(err, http.StatusNotFound, w) {
		return nil, nil, false
	}
	if !claimed {
		handleError(fmt.Errorf("device %d is in use", id),
			http.StatusLocked, w)
		return nil, nil, false
	}

	stack, err := a.registry.GetStack(id)
	if err != nil {
		if e := a.registry.ReleaseDevice(id); e != nil {
			log.Errorf("releasing device %d: %v", id, e)
		}
		handleError(err, http.StatusNotFound, w)
		return nil, nil, false
	}

	release := func() {
		if err := a.registry.ReleaseDevice(id); err != nil {
			log.Errorf("releasing device %d: %v", id, err)
		}
	}
	return stack, release, true
}

//
func getID(w http.ResponseWriter, req *http.Request) (uint32, bool) {
	vars := mux.Vars(req)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return 0, false
	}
	return uint32(id), true
}

// handleDeviceError maps a vanished device to 502, anything else to 500
func handleDeviceError(e error, w http.ResponseWriter) bool {
	if e != nil && strings.Contains(e.Error(), device.ErrDeviceGone.Error()) {
		return handleError(e, http.StatusBadGateway, w)
	}
	return handleError(e, http.StatusInternalServerError, w)
}

//
func setHeaders(h http.Header, json bool) {
	if json {
		h.Set("Content-Type", "application/json; charset=UTF-8")
	} else {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
	}
}

//
func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), true)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing error: %v", err)
	}
}

//
func wantsJSON(req *http.Request) bool {
	return req.Header.Get("Content-Type") == "application/json"
}
