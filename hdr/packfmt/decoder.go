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
	"bytes"
	"fmt"
	"io"

	"github.com/hdrzip/hdrzip/compr"
	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/hdr/zhdr"

	"golang.org/x/crypto/blake2b"
)

// Decoder is used to decode the headers in a pack
// from a Trailer and an associated data stream.
type Decoder struct {
	// Trailer describes the pack being decoded.
	// It is typically filled in by ReadTrailer.
	Trailer *Trailer

	frame [6]byte
	tmp   []byte // compressed frame scratch
	raw   []byte // decompressed frame scratch
}

// Copy incrementally decodes the pack in src and writes the
// decoded headers to dst, anchor first, one 80-byte header
// per call to dst.Write. It returns the number of bytes
// written to dst and the first error encountered, if any.
//
// src must read the pack from its first byte and end where
// the trailer begins; a caller holding a complete pack file
// typically passes an io.SectionReader that stops at
// size - TrailerLen. After the final record, Copy verifies
// the record count, decoded size, and both checksums against
// d.Trailer and reports any mismatch as an error.
func (d *Decoder) Copy(dst io.Writer, src io.Reader) (int64, error) {
	t := d.Trailer
	if t == nil {
		return 0, fmt.Errorf("packfmt: Decoder has no trailer")
	}
	var dec compr.Decompressor
	if t.Algo != "" {
		dec = compr.Decompression(t.Algo)
		if dec == nil {
			return 0, fmt.Errorf("packfmt: decompression %q not supported", t.Algo)
		}
	}
	var head [4 + hdr.HeaderLen]byte
	if _, err := io.ReadFull(src, head[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	if !IsMagic(head[:4]) {
		return 0, fmt.Errorf("packfmt: bad magic bytes %x", head[:4])
	}
	anchor, err := hdr.Parse(head[4:])
	if err != nil {
		return 0, err
	}
	body := bodyHasher()
	content, _ := blake2b.New256(nil)
	nn := int64(0)
	emit := func(h *hdr.Header) error {
		buf := h.Bytes()
		content.Write(buf)
		n, err := dst.Write(buf)
		nn += int64(n)
		return err
	}
	if err := emit(&anchor); err != nil {
		return nn, err
	}
	var zdec zhdr.Decoder
	zdec.Begin(anchor)
	records := 0
	for fno := 0; !zdec.End(); fno++ {
		_, err := io.ReadFull(src, d.frame[:])
		if err == io.EOF {
			return nn, fmt.Errorf("packfmt: body ends after %d of %d records", records, t.Records)
		}
		if err != nil {
			return nn, err
		}
		clen := le24(d.frame[0:])
		rlen := le24(d.frame[3:])
		if clen == 0 || rlen < zhdr.MinRecordLen || rlen > maxFrameSize {
			return nn, fmt.Errorf("packfmt: frame %d: unexpected frame size %d -> %d", fno, clen, rlen)
		}
		if cap(d.tmp) < clen {
			d.tmp = make([]byte, clen)
		}
		d.tmp = d.tmp[:clen]
		n, err := io.ReadFull(src, d.tmp)
		if n != len(d.tmp) && err == nil {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nn, err
		}
		body.Write(d.frame[:])
		body.Write(d.tmp)
		var raw []byte
		if dec == nil {
			if clen != rlen {
				return nn, fmt.Errorf("packfmt: frame %d: stored frame of %d bytes, advertised %d", fno, clen, rlen)
			}
			raw = d.tmp
		} else {
			if cap(d.raw) < rlen {
				d.raw = make([]byte, rlen)
			}
			d.raw = d.raw[:rlen]
			if err := dec.Decompress(d.tmp, d.raw); err != nil {
				return nn, fmt.Errorf("packfmt: frame %d: %w", fno, err)
			}
			raw = d.raw
		}
		for len(raw) > 0 {
			h, rest, err := zdec.Decode(raw)
			if err != nil {
				return nn, fmt.Errorf("packfmt: frame %d: %w", fno, err)
			}
			records++
			if err := emit(&h); err != nil {
				return nn, err
			}
			raw = rest
		}
	}
	if records != t.Records {
		return nn, fmt.Errorf("packfmt: pack holds %d records, trailer says %d", records, t.Records)
	}
	if nn != t.RawSize {
		return nn, fmt.Errorf("packfmt: pack decodes to %d bytes, trailer says %d", nn, t.RawSize)
	}
	if got := body.Sum64(); got != t.BodyHash {
		return nn, fmt.Errorf("packfmt: body hash %#x, trailer says %#x", got, t.BodyHash)
	}
	if !bytes.Equal(content.Sum(nil), t.Content[:]) {
		return nn, fmt.Errorf("packfmt: content hash mismatch")
	}
	var one [1]byte
	if _, err := io.ReadFull(src, one[:]); err == nil {
		return nn, fmt.Errorf("packfmt: trailing data after the final record")
	} else if err != io.EOF {
		return nn, err
	}
	return nn, nil
}
