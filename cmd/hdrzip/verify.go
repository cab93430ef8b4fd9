// Copyright (C) 2023 The hdrzip Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/hdrzip/hdrzip/hdr/packfmt"
)

type errorWriter struct {
	any bool
}

func (e *errorWriter) Write(p []byte) (int, error) {
	e.any = true
	return os.Stderr.Write(p)
}

func verify(args []string) {
	e := errorWriter{}
	for i := range args {
		if dashv {
			fmt.Printf("checking %s\n", args[i])
		}
		f, err := os.Open(args[i])
		if err != nil {
			exitf("opening %s: %s", args[i], err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			exitf("stat %s: %s", args[i], err)
		}
		errs := packfmt.Validate(f, info.Size(), &e)
		f.Close()
		if dashv && errs == 0 {
			fmt.Printf("%s: ok\n", args[i])
		}
	}
	if e.any {
		os.Exit(1)
	}
}

func init() {
	addApplet(applet{
		name: "verify",
		help: "<file> ...",
		desc: `verify the integrity of packfiles
The command
  $ hdrzip verify <file> ...
decodes every header in each of the listed packfiles and
checks the chain linkage and the trailer checksums. Errors
are printed to stderr, and a non-zero exit status is
returned if any file fails verification.
`,
		run: func(args []string) bool {
			if len(args) < 2 {
				return false
			}
			verify(args[1:])
			return true
		},
	})
}
