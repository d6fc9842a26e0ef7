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
func NewList() *List {

	l := &List{}
	l.Runner = *NewRunner(
		"ls [-p|--port {port}]",
		"list connected programmers",
		"\nUse the ls command to list the programmers the daemon currently sees.",
		"", runnerHelpEpilogue, l.Run)

	l.AddBaseSettings()

	return l
}

//
type List struct {
	Runner
}

//
func (l *List) Run() error {

	l.ParseSettings()

	resp, err := l.apiCall("GET", "/devices", false, nil)
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
