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

package run

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/davel/flashmasta/pkg/cartridge"
	"github.com/davel/flashmasta/pkg/control"
	"github.com/davel/flashmasta/pkg/device"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve [-a|--address {address}] [-d|--device {serial port}]
      [-s|--system {ngp|ws}] [-i|--interval {seconds}] [--sim]`,
		"daemon & API server command",
		`Use the serve command for running the device registry daemon and API server.
By default, programmers are discovered on the USB bus. With --device, a single
serial-attached programmer is used instead; --system selects its cartridge
family. With --sim, a simulated programmer is used, for development without
hardware.`,
		"", `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.Address, "address", "a", "FLASHMASTA_ADDRESS", "",
		"listen address for the API server", false)
	s.AddSetting(&s.Device, "device", "d", "FLASHMASTA_DEVICE", nil,
		"serial port device of a serial-attached programmer", false)
	s.AddSetting(&s.System, "system", "s", "", "ngp",
		"cartridge family for serial & simulated programmers, 'ngp' or 'ws'",
		false)
	s.AddSetting(&s.Interval, "interval", "i", "", 2,
		"refresh interval for device discovery, in seconds", false)
	s.AddSetting(&s.Sim, "sim", "", "", false,
		"use a simulated programmer instead of real hardware", false)

	return s
}

//
type Serve struct {
	//
	Runner
	//
	Address  string
	Device   string
	System   string
	Interval int
	Sim      bool
}

//
func (s *Serve) Run() error {

	s.ParseSettings()

	sys := cartridge.GetSystem(s.System)
	if sys == cartridge.SystemUnknown {
		return fmt.Errorf("unknown system type: %s", s.System)
	}

	var enum device.Enumerator
	switch {
	case s.Sim:
		enum = device.NewSimEnumerator(sys)
	case s.Device != "":
		enum = device.NewSerialEnumerator(s.Device, sys)
	default:
		enum = device.NewUSBEnumerator()
	}

	registry := device.NewRegistry(
		enum, time.Duration(s.Interval)*time.Second)
	registry.Start()

	wg := &sync.WaitGroup{}
	wg.Add(1)

	api := control.NewAPIServer(s.Address, registry)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("API server closed with error: %v", err)
		} else {
			log.Info("API server stopped")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sigCount := 0
	done := make(chan bool)

	for {

		select {

		case sig := <-sigs: // interrupt signal
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					api.Stop()
					registry.Stop()
					wg.Wait()
					log.Info("FlashMasta stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing daemon to stop immediately")
				os.Exit(1)
			}

		case <-done: // shutdown sequence complete
			return nil
		}
	}
}
