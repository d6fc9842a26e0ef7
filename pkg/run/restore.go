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
func NewRestore() *Restore {

	r := &Restore{}
	r.Runner = *NewRunner(
		`restore -d|--device {id} -i|--input {file} [-S|--save] [-y|--yes]
      [-p|--port {port}]`,
		"flash image file to cartridge",
		`
Use the restore command to erase the cartridge in the given programmer and
flash an image file onto it. Write protected sectors are skipped. With --save,
only the save data sectors are erased and flashed, the game data stays
untouched. Aborting a running restore can leave the cartridge in an
inconsistent, unplayable state.`,
		"", runnerHelpEpilogue, r.Run)

	r.AddBaseSettings()
	r.AddSetting(&r.Device, "device", "d", "", nil, "programmer device id", true)
	r.AddSetting(&r.File, "input", "i", "", nil, "image input file", true)
	r.AddSetting(&r.Save, "save", "S", "", false,
		"restore save data instead of game data", false)
	r.AddSetting(&r.Yes, "yes", "y", "", false,
		"skip confirmation prompt", false)

	return r
}

//
type Restore struct {
	//
	Runner
	//
	Device int
	File   string
	Save   bool
	Yes    bool
}

//
func (r *Restore) Run() error {

	r.ParseSettings()

	if !r.Yes && !GetUserConfirmation(
		"This overwrites the cartridge content. Continue?") {
		return nil
	}

	f, err := os.Open(r.File)
	if err != nil {
		return err
	}
	defer f.Close()

	resp, err := r.apiCall("PUT",
		fmt.Sprintf("/device/%d%s/restore", r.Device, savePath(r.Save)),
		false, f)
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
