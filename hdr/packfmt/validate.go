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

package packfmt

import (
	"fmt"
	"io"

	"github.com/hdrzip/hdrzip/hdr"
)

// Validate validates the pack file in src. Any errors
// encountered are written as distinct lines to diag, and the
// number of errors is returned; the caller can presume that
// no content written to diag means that the pack had no
// errors. Beyond the checksums verified by Decoder.Copy,
// Validate checks that each decoded header links to the
// digest of its predecessor, which the codec itself does not
// enforce.
func Validate(src io.ReaderAt, size int64, diag io.Writer) int {
	t, err := ReadTrailer(src, size)
	if err != nil {
		fmt.Fprintf(diag, "reading trailer: %s\n", err)
		return 1
	}
	d := Decoder{Trailer: t}
	w := checkWriter{dst: diag}
	_, err = d.Copy(&w, io.NewSectionReader(src, 0, size-TrailerLen))
	if err != nil {
		w.errorf("%s", err)
	}
	return w.errs
}

type checkWriter struct {
	dst  io.Writer
	prev hdr.Header
	n    int
	errs int
}

func (c *checkWriter) errorf(f string, args ...interface{}) {
	if len(f) > 0 && f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(c.dst, f, args...)
	c.errs++
}

// Write accepts one decoded header per call.
func (c *checkWriter) Write(p []byte) (int, error) {
	h, err := hdr.Parse(p)
	if err != nil {
		c.errorf("header %d: %s", c.n, err)
		return len(p), nil
	}
	if c.n > 0 {
		if want := c.prev.Digest(); h.Prev != want {
			c.errorf("header %d: prev %s, expected %s", c.n, h.Prev, want)
		}
	}
	c.prev = h
	c.n++
	return len(p), nil
}
