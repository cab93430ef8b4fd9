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
	"io"
	"os"
	"sort"

	"github.com/hdrzip/hdrzip/hdr/packfmt"
)

var dashv bool

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
}

type applet struct {
	name string // applet name, i.e. "pack"
	help string // command-line usage, i.e. "[-o output] <file> ..."
	desc string // long description

	// run the applet; returning false
	// prints the applet usage text
	run func(args []string) bool
}

var applets []applet

func addApplet(a applet) {
	applets = append(applets, a)
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(os.Stderr, f, args...)
}

// packfiles opened as command-line arguments
// must implement these; *os.File does
type packed interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

func openarg(name string) (packed, *packfmt.Trailer, int64) {
	f, err := os.Open(name)
	if err != nil {
		exitf("opening arg: %s", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		exitf("%s", err)
	}
	trailer, err := packfmt.ReadTrailer(f, info.Size())
	if err != nil {
		f.Close()
		exitf("reading trailer from %s: %s", name, err)
	}
	return f, trailer, info.Size()
}

func usage() {
	sort.Slice(applets, func(i, j int) bool {
		return applets[i].name < applets[j].name
	})
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <command> args...\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "commands:")
	for i := range applets {
		fmt.Fprintf(os.Stderr, "  %s %s\n", applets[i].name, applets[i].help)
	}
	fmt.Fprintln(os.Stderr, "flags:")
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}
	for i := range applets {
		a := &applets[i]
		if a.name != args[0] {
			continue
		}
		if !a.run(args) {
			fmt.Fprintf(os.Stderr, "usage: %s %s %s\n", os.Args[0], a.name, a.help)
			if a.desc != "" {
				fmt.Fprint(os.Stderr, a.desc)
			}
			os.Exit(1)
		}
		return
	}
	exitf("no such command %q; try %s -h\n", args[0], os.Args[0])
}
