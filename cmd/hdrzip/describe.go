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

	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/hdr/packfmt"
)

var hsizes = []byte{'K', 'M', 'G', 'T', 'P', 'E'}

func human(size int64) string {
	dec := int64(0)
	trail := -1
	for size >= 1024 {
		trail++
		// decimal component needs to be
		// converted from parts-per-1024
		dec = ((size%1024)*1000 + 512) / 1024
		size /= 1024
	}
	if trail < 0 {
		return fmt.Sprintf("%d", size)
	}
	return fmt.Sprintf("%d.%03d %ciB", size, dec, hsizes[trail])
}

func describeTrailer(t *packfmt.Trailer, compsize int64) {
	algo := t.Algo
	if algo == "" {
		algo = "none"
	}
	headers := t.RawSize / hdr.HeaderLen
	fmt.Printf("\ttrailer: %d headers, %d bytes raw (%.2fx compression, %s)\n",
		headers, t.RawSize, float64(t.RawSize)/float64(compsize), algo)
	fmt.Printf("\tcontent %x\n", t.Content[:])
}

func describeFiles(files []string) {
	totalComp := int64(0)
	totalRaw := int64(0)
	headers := int64(0)
	for i := range files {
		src, t, size := openarg(files[i])
		src.Close()
		fmt.Printf("%s %s %s\n", files[i], t.ID, human(size))
		describeTrailer(t, size)
		totalComp += size
		totalRaw += t.RawSize
		headers += t.RawSize / hdr.HeaderLen
	}
	fmt.Printf("total headers: %d\n", headers)
	fmt.Printf("total packed:  %s\n", human(totalComp))
	fmt.Printf("total raw:     %s (%.2fx)\n", human(totalRaw), float64(totalRaw)/float64(totalComp))
}

func init() {
	addApplet(applet{
		name: "describe",
		help: "<file> ...",
		desc: `describe a packfile
The command
  $ hdrzip describe <file> ...
will output a textual description of the trailer of
each of the packfile(s) specified by the arguments.
`,
		run: func(args []string) bool {
			if len(args) < 2 {
				return false
			}
			describeFiles(args[1:])
			return true
		},
	})
}
