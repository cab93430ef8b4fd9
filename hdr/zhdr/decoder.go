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

package zhdr

import (
	"encoding/binary"
	"fmt"

	"github.com/hdrzip/hdrzip/hdr"
)

// Decoder reconstructs the run of headers produced by an
// Encoder. Begin installs the anchor the encoder's run began
// with; each Decode call consumes exactly one record and
// yields the next header. Once the record carrying the run-end
// bit has been decoded, End reports true and the run is over.
//
// A Decoder may not be used from multiple goroutines
// simultaneously.
type Decoder struct {
	vers  VersionCache
	prev  hdr.Header
	begun bool
	end   bool
}

// Begin starts decoding a run anchored at anchor, which must be
// byte-identical to the anchor the encoding side used.
func (d *Decoder) Begin(anchor hdr.Header) {
	d.vers.Seed(anchor.Version)
	d.prev = anchor
	d.begun = true
	d.end = false
}

// Decode consumes one record from the front of src and returns
// the reconstructed header along with the remaining bytes.
// Corrupt input wraps ErrCorrupt and is not recoverable within
// the run: every record depends on the correctly reconstructed
// predecessor, so the caller must restart from an anchor.
func (d *Decoder) Decode(src []byte) (hdr.Header, []byte, error) {
	var h hdr.Header
	if !d.begun {
		return h, src, fmt.Errorf("%w: Decode without Begin", ErrEncode)
	}
	if d.end {
		return h, src, fmt.Errorf("%w: record past the end of the run", ErrCorrupt)
	}
	if len(src) == 0 {
		return h, src, fmt.Errorf("%w: empty input", ErrCorrupt)
	}
	ctrl := src[0]
	if ctrl&flagNoPrev == 0 || ctrl&flagReserved != 0 {
		return h, src, fmt.Errorf("%w: control byte %#02x", ErrCorrupt, ctrl)
	}
	size := RecordLen(ctrl)
	if len(src) < size {
		return h, src, fmt.Errorf("%w: record truncated (%d of %d bytes)", ErrCorrupt, len(src), size)
	}
	rec := src[1:size]
	if code := int(ctrl >> verShift); code == verLiteral {
		h.Version = binary.LittleEndian.Uint32(rec)
		rec = rec[4:]
		d.vers.Push(h.Version)
	} else if code < d.vers.Len() {
		h.Version = d.vers.At(code)
	} else {
		return h, src, fmt.Errorf("%w: version code %d, cache holds %d", ErrCorrupt, code, d.vers.Len())
	}
	h.Prev = d.prev.Digest()
	copy(h.Root[:], rec)
	rec = rec[32:]
	if ctrl&flagDelta != 0 {
		delta := int16(binary.LittleEndian.Uint16(rec))
		rec = rec[2:]
		// wraps mod 2^32, matching the encoder's arithmetic
		h.Time = uint32(int64(d.prev.Time) + int64(delta))
	} else {
		h.Time = binary.LittleEndian.Uint32(rec)
		rec = rec[4:]
	}
	if ctrl&flagSameBits != 0 {
		h.Bits = d.prev.Bits
	} else {
		h.Bits = binary.LittleEndian.Uint32(rec)
		rec = rec[4:]
	}
	h.Nonce = binary.LittleEndian.Uint32(rec)
	d.prev = h
	d.end = ctrl&flagEnd != 0
	return h, src[size:], nil
}

// End reports whether the most recently decoded record was
// marked as the final record of the run.
func (d *Decoder) End() bool { return d.end }
