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
	"bufio"
	"fmt"
	"io"
	"os"
)

//
func NewBackup() *Backup {

	b := &Backup{}
	b.Runner = *NewRunner(
		`backup -d|--device {id} -o|--output {file} [-S|--save] [-f|--force]
      [-p|--port {port}]`,
		"back up cartridge to image file",
		`
Use the backup command to read the full content of the cartridge in the given
programmer and save it to an image file. With --save, only the save data
sectors are read.`,
		"", runnerHelpEpilogue, b.Run)

	b.AddBaseSettings()
	b.AddSetting(&b.Device, "device", "d", "", nil, "programmer device id", true)
	b.AddSetting(&b.File, "output", "o", "", nil, "image output file", true)
	b.AddSetting(&b.Save, "save", "S", "", false,
		"back up save data instead of game data", false)
	b.AddSetting(&b.Force, "force", "f", "", false,
		"force overwriting output file", false)

	return b
}

//
type Backup struct {
	//
	Runner
	//
	Device int
	File   string
	Save   bool
	Force  bool
}

//
func (b *Backup) Run() error {

	b.ParseSettings()

	if !b.Force {
		if _, err := os.Stat(b.File); err == nil &&
			!GetUserConfirmation("File exists, overwrite?") {
			return nil
		}
	}

	resp, err := b.apiCall("GET",
		fmt.Sprintf("/device/%d%s/backup", b.Device, savePath(b.Save)),
		false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	f, err := os.Create(b.File)
	if err != nil {
		return err
	}
	defer f.Close()

	out := bufio.NewWriter(f)
	defer out.Flush()

	n, err := io.Copy(out, resp)
	if err != nil {
		return err
	}

	fmt.Printf("backed up %d bytes\n", n)
	return nil
}
