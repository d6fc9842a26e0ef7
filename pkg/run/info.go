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
	"io"
	"os"
)

//
func NewInfo() *Info {

	i := &Info{}
	i.Runner = *NewRunner(
		"info -d|--device {id} [-p|--port {port}]",
		"show cartridge info",
		`
Use the info command to inspect the cartridge currently inserted into the given
programmer: chip identities, bypass capability, and the sector map with
protection state. The programmer is claimed for the duration of the probe.`,
		"", runnerHelpEpilogue, i.Run)

	i.AddBaseSettings()
	i.AddSetting(&i.Device, "device", "d", "", nil, "programmer device id", true)

	return i
}

//
type Info struct {
	//
	Runner
	//
	Device int
}

//
func (i *Info) Run() error {

	i.ParseSettings()

	resp, err := i.apiCall("GET",
		fmt.Sprintf("/device/%d/info", i.Device), false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	if _, err := io.Copy(os.Stdout, resp); err != nil {
		return err
	}
	fmt.Println()
	return nil
}
