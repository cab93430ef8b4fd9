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

// Package tests provides common functions used in tests.
package tests

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"

	"github.com/hdrzip/hdrzip/hdr"
)

var sepdash = []byte("---")

// ParseTestcase reads parts of a textfile separated by `---`.
//
// Each part is a list of lines.
// The procedure skips empty lines and lines starting with `#`.
func ParseTestcase(fname string) ([][]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rd := bufio.NewScanner(f)

	partID := 0
	var parts [][]string
	parts = append(parts, []string{})

	for rd.Scan() {
		line := rd.Bytes()
		if bytes.HasPrefix(line, sepdash) {
			partID += 1
			parts = append(parts, []string{})
			continue
		}

		// allow # line comments iff they begin the line
		if len(line) > 0 && line[0] == '#' {
			continue
		}

		if len(line) == 0 {
			continue
		}

		parts[partID] = append(parts[partID], string(line))
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}

// HexHeaders decodes one 80-byte hex-encoded header per line.
func HexHeaders(lines []string) ([]hdr.Header, error) {
	hs := make([]hdr.Header, len(lines))
	for i, line := range lines {
		raw, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", i+1, err)
		}
		h, err := hdr.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", i+1, err)
		}
		hs[i] = h
	}
	return hs, nil
}

// Link rewrites each header's Prev to the digest of its
// predecessor, leaving hs[0] untouched.
func Link(hs []hdr.Header) {
	for i := 1; i < len(hs); i++ {
		hs[i].Prev = hs[i-1].Digest()
	}
}

// Chain returns a linked run of n synthetic headers with
// plausible field movement: steady 600-second timestamps,
// constant version and difficulty, random roots and nonces.
// mutate, if non-nil, is applied to each header before its
// successor links to it; it must not touch Prev.
//
// The result is deterministic for a given n.
func Chain(n int, mutate func(i int, h *hdr.Header)) []hdr.Header {
	rng := rand.New(rand.NewSource(int64(n)))
	hs := make([]hdr.Header, n)
	for i := range hs {
		h := &hs[i]
		if i == 0 {
			h.Version = 1
			h.Time = 1231006505
			h.Bits = 0x1d00ffff
		} else {
			*h = hs[i-1]
			h.Prev = hs[i-1].Digest()
			h.Time += 600
		}
		rng.Read(h.Root[:])
		h.Nonce = rng.Uint32()
		if mutate != nil {
			mutate(i, h)
		}
	}
	return hs
}
