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
func NewErase() *Erase {

	e := &Erase{}
	e.Runner = *NewRunner(
		"erase -d|--device {id} [-y|--yes] [-p|--port {port}]",
		"erase cartridge",
		`
Use the erase command to erase every unprotected sector of the cartridge in
the given programmer.`,
		"", runnerHelpEpilogue, e.Run)

	e.AddBaseSettings()
	e.AddSetting(&e.Device, "device", "d", "", nil, "programmer device id", true)
	e.AddSetting(&e.Yes, "yes", "y", "", false,
		"skip confirmation prompt", false)

	return e
}

//
type Erase struct {
	//
	Runner
	//
	Device int
	Yes    bool
}

//
func (e *Erase) Run() error {

	e.ParseSettings()

	if !e.Yes && !GetUserConfirmation(
		"This erases the cartridge content. Continue?") {
		return nil
	}

	resp, err := e.apiCall("PUT",
		fmt.Sprintf("/device/%d/erase", e.Device), false, nil)
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
