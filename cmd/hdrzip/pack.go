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
	"fmt"
	"os"
	"strings"

	"github.com/hdrzip/hdrzip/compr"
	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/hdr/packfmt"
)

func readHeaders(name string) []hdr.Header {
	buf, err := os.ReadFile(name)
	if err != nil {
		exitf("%s", err)
	}
	if len(buf) == 0 || len(buf)%hdr.HeaderLen != 0 {
		exitf("%s: size %d is not a multiple of %d bytes", name, len(buf), hdr.HeaderLen)
	}
	hs := make([]hdr.Header, 0, len(buf)/hdr.HeaderLen)
	for off := 0; off < len(buf); off += hdr.HeaderLen {
		h, err := hdr.Parse(buf[off : off+hdr.HeaderLen])
		if err != nil {
			exitf("%s: header %d: %s", name, off/hdr.HeaderLen, err)
		}
		hs = append(hs, h)
	}
	return hs
}

func pack(args []string) {
	var (
		dasho string
		dashc string
	)
	flags := flag.NewFlagSet(args[0], flag.ExitOnError)
	flags.StringVar(&dasho, "o", "", "output file")
	flags.StringVar(&dashc, "c", "zstd", "frame compression (none, "+strings.Join(compr.Names(), ", ")+")")
	flags.Parse(args[1:])
	args = flags.Args()
	if dasho == "" {
		exitf("pack requires the -o argument to be present")
	}
	var comp compr.Compressor
	if dashc != "none" {
		comp = compr.Compression(dashc)
		if comp == nil {
			exitf("no such compression %q (try one of: none, %s)", dashc, strings.Join(compr.Names(), ", "))
		}
	}
	out, err := os.Create(dasho)
	if err != nil {
		exitf("creating %s: %s", dasho, err)
	}
	w := &packfmt.Writer{Out: out, Comp: comp}
	if dashv {
		w.Logf = logf
	}
	var raw int64
	n := 0
	for i := range args {
		hs := readHeaders(args[i])
		raw += int64(len(hs) * hdr.HeaderLen)
		for j := range hs {
			err := w.WriteHeader(hs[j])
			if err != nil {
				exitf("%s: header %d: %s", args[i], j, err)
			}
			n++
		}
	}
	err = w.Close()
	if err != nil {
		exitf("closing %s: %s", dasho, err)
	}
	info, err := out.Stat()
	if err != nil {
		exitf("stat %s: %s", dasho, err)
	}
	err = out.Close()
	if err != nil {
		exitf("closing %s: %s", dasho, err)
	}
	fmt.Printf("%s: %d headers, %s -> %s (%.2fx)\n",
		dasho, n, human(raw), human(info.Size()), float64(raw)/float64(info.Size()))
}

func init() {
	addApplet(applet{
		name: "pack",
		help: "[-o output] [-c compression] <file> ...",
		desc: `pack raw headers into a compressed packfile
The command
  $ hdrzip pack -o headers.zhdr <file> ...
reads consecutive raw 80-byte headers from the input files
and writes them delta-encoded and compressed to the output.
The inputs must form one contiguous chain: the first header
becomes the pack's anchor, and every following header must
link to the one before it.

See the "unpack" command for recovering the raw headers.
`,
		run: func(args []string) bool {
			if len(args) < 2 {
				return false
			}
			pack(args)
			return true
		},
	})
}
