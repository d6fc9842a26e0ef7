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

package main

import (
	"fmt"
	"os"

	"github.com/davel/flashmasta/pkg/run"
)

//
var FlashMastaVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: fmctl {serve|ls|info|backup|restore|verify|erase|version} ...

run 'fmctl {action} -h|--help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\nFlashMasta %s\n\n", FlashMastaVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "ls":
		run.DieOnError(run.NewList().Execute(args))

	case "info":
		run.DieOnError(run.NewInfo().Execute(args))

	case "backup":
		run.DieOnError(run.NewBackup().Execute(args))

	case "restore":
		run.DieOnError(run.NewRestore().Execute(args))

	case "verify":
		run.DieOnError(run.NewVerify().Execute(args))

	case "erase":
		run.DieOnError(run.NewErase().Execute(args))

	case "version":
		version()

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}
