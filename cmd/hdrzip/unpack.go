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
	"flag"
	"io"
	"os"

	"github.com/hdrzip/hdrzip/hdr/packfmt"
)

func unpack(args []string) {
	var out io.WriteCloser
	var dasho string

	flags := flag.NewFlagSet(args[0], flag.ExitOnError)
	flags.StringVar(&dasho, "o", "-", "output file (\"-\" means stdout)")
	flags.Parse(args[1:])
	args = flags.Args()

	var err error
	if dasho == "-" {
		out = os.Stdout
	} else {
		out, err = os.Create(dasho)
		if err != nil {
			exitf("creating output: %s", err)
		}
	}
	defer out.Close()
	for i := range args {
		src, trailer, size := openarg(args[i])
		d := packfmt.Decoder{Trailer: trailer}
		_, err := d.Copy(out, io.NewSectionReader(src, 0, size-packfmt.TrailerLen))
		src.Close()
		if err != nil {
			exitf("unpacking %s: %s", args[i], err)
		}
	}
}

func init() {
	addApplet(applet{
		name: "unpack",
		help: "[-o output] <file> ...",
		desc: `unpack 1 or more packfiles into raw headers
The command
  $ hdrzip unpack [-o output] <file> ...
unpacks each of the listed packfiles and outputs the
decoded raw 80-byte headers, anchor included.

If the -o <output> flag is set, then the output of this
command will be directed to that file.
Otherwise, the output is written to stdout.
`,
		run: func(args []string) bool {
			if len(args) < 2 {
				return false
			}
			unpack(args)
			return true
		},
	})
}
