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
	"context"
	"errors"
	"flag"
	"os"

	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/rest"
)

// digest of the mainnet genesis header; fetch starts
// here when no other starting point is given
const mainnetGenesis = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"

var errFetchLimit = errors.New("fetch limit reached")

func fetch(args []string) {
	var (
		dashdef  string
		dashfrom string
		dashn    int
		dasho    string
	)
	flags := flag.NewFlagSet(args[0], flag.ExitOnError)
	flags.StringVar(&dashdef, "def", "", "source definition file (*.json, *.yaml)")
	flags.StringVar(&dashfrom, "from", "", "digest of the first header to fetch (default: the mainnet genesis header)")
	flags.IntVar(&dashn, "n", 0, "maximum number of headers to fetch (0 means unlimited)")
	flags.StringVar(&dasho, "o", "", "output file")
	flags.Parse(args[1:])
	args = flags.Args()
	if dasho == "" {
		exitf("fetch requires the -o argument to be present")
	}
	def := &rest.Definition{}
	if dashdef != "" {
		f, err := os.Open(dashdef)
		if err != nil {
			exitf("%s", err)
		}
		def, err = rest.DecodeDefinition(f, dashdef)
		f.Close()
		if err != nil {
			exitf("reading definition %s: %s", dashdef, err)
		}
	}
	if len(args) > 0 {
		def.URL = args[0]
	}
	if def.URL == "" {
		exitf("fetch requires a source url (positional argument or -def)")
	}
	if dashfrom != "" {
		def.Start = dashfrom
	}
	if def.Start == "" {
		def.Start = mainnetGenesis
	}
	start, err := hdr.ParseDigest(def.Start)
	if err != nil {
		exitf("bad starting digest: %s", err)
	}
	c := &rest.Client{URL: def.URL, PageSize: def.PageSize}
	if dashv {
		c.Logf = logf
	}
	out, err := os.Create(dasho)
	if err != nil {
		exitf("creating %s: %s", dasho, err)
	}
	n := 0
	err = c.Walk(context.Background(), start, func(h hdr.Header) error {
		if dashn > 0 && n >= dashn {
			return errFetchLimit
		}
		_, err := out.Write(h.Bytes())
		n++
		return err
	})
	if err != nil && err != errFetchLimit {
		out.Close()
		os.Remove(dasho)
		exitf("fetching headers: %s", err)
	}
	err = out.Close()
	if err != nil {
		exitf("closing %s: %s", dasho, err)
	}
	if dashv {
		logf("fetched %d headers into %s", n, dasho)
	}
}

func init() {
	addApplet(applet{
		name: "fetch",
		help: "[-def definition] [-from digest] [-n max] -o <file> [url]",
		desc: `fetch raw headers from a REST source
The command
  $ hdrzip fetch -o headers.bin http://127.0.0.1:8332
walks the header chain served by the node's REST interface,
beginning at the mainnet genesis header, and stores the raw
80-byte headers in the output file.

The -from flag selects a different starting header; it names
the digest of the first header written to the output. The -n
flag bounds how many headers are fetched.

A definition file (see -def) may carry the source url, the
starting digest, and the request page size; flags and the
positional url override its fields.

See the "pack" command for compressing the fetched headers.
`,
		run: func(args []string) bool {
			fetch(args)
			return true
		},
	})
}
