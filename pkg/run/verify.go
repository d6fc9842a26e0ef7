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
func NewVerify() *Verify {

	v := &Verify{}
	v.Runner = *NewRunner(
		"verify -d|--device {id} -i|--input {file} [-S|--save] [-p|--port {port}]",
		"compare cartridge against image file",
		`
Use the verify command to compare the content of the cartridge in the given
programmer byte for byte against an image file. With --save, only the save
data sectors are compared.`,
		"", runnerHelpEpilogue, v.Run)

	v.AddBaseSettings()
	v.AddSetting(&v.Device, "device", "d", "", nil, "programmer device id", true)
	v.AddSetting(&v.File, "input", "i", "", nil, "image input file", true)
	v.AddSetting(&v.Save, "save", "S", "", false,
		"verify save data instead of game data", false)

	return v
}

//
type Verify struct {
	//
	Runner
	//
	Device int
	File   string
	Save   bool
}

//
func (v *Verify) Run() error {

	v.ParseSettings()

	f, err := os.Open(v.File)
	if err != nil {
		return err
	}
	defer f.Close()

	resp, err := v.apiCall("PUT",
		fmt.Sprintf("/device/%d%s/verify", v.Device, savePath(v.Save)),
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
