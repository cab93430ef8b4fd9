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
	"fmt"

	"github.com/hdrzip/hdrzip/hdr"
)

// Encoder compresses one ordered run of chain headers.
// Begin installs the run's anchor, each subsequent header is
// passed to Encode in chain order, and Flush terminates the
// run. Records surface one behind the caller: the record for a
// header is withheld until its successor arrives, because only
// then is it known whether the record must carry the run-end
// bit. See Decoder for the receiving side.
//
// An Encoder may not be used from multiple goroutines
// simultaneously.
type Encoder struct {
	vers    VersionCache
	prev    hdr.Header
	pending []byte // encoded record awaiting a successor or Flush
	begun   bool
}

// Begin starts a run anchored at anchor. The anchor itself is
// never encoded; the decoder must receive it out of band.
func (e *Encoder) Begin(anchor hdr.Header) {
	e.vers.Seed(anchor.Version)
	e.prev = anchor
	e.pending = e.pending[:0]
	e.begun = true
}

// Encode appends to dst and returns the extended slice. The
// appended bytes are the record for the header passed to the
// previous Encode call, if any; the record for h itself stays
// buffered until the next Encode or Flush. Headers must arrive
// in chain order; the encoder does not verify linkage, and a
// gap in the input run decodes to different headers than went
// in, with no error on either side.
func (e *Encoder) Encode(h hdr.Header, dst []byte) ([]byte, error) {
	if !e.begun {
		return dst, fmt.Errorf("%w: Encode without Begin", ErrEncode)
	}
	dst = append(dst, e.pending...)
	e.pending = e.appendRecord(e.pending[:0], &h)
	e.prev = h
	return dst, nil
}

// Flush marks the buffered record as the final record of the
// run, appends it to dst, and ends the run. The Encoder may be
// reused afterwards by calling Begin again.
func (e *Encoder) Flush(dst []byte) ([]byte, error) {
	if !e.begun {
		return dst, fmt.Errorf("%w: Flush without Begin", ErrEncode)
	}
	if len(e.pending) == 0 {
		return dst, fmt.Errorf("%w: Flush on a run with no records", ErrEncode)
	}
	e.pending[0] |= flagEnd
	dst = append(dst, e.pending...)
	e.pending = e.pending[:0]
	e.begun = false
	return dst, nil
}

func (e *Encoder) appendRecord(dst []byte, h *hdr.Header) []byte {
	base := len(dst)
	dst = append(dst, flagNoPrev) // control byte; flags OR'd in below
	if i := e.vers.Index(h.Version); i >= 0 {
		dst[base] |= byte(i) << verShift
	} else {
		dst[base] |= verLiteral << verShift
		dst = appendUint32(dst, h.Version)
		e.vers.Push(h.Version)
	}
	dst = append(dst, h.Root[:]...)
	if delta := int64(h.Time) - int64(e.prev.Time); -32768 < delta && delta < 32767 {
		dst[base] |= flagDelta
		dst = append(dst, byte(delta), byte(delta>>8))
	} else {
		dst = appendUint32(dst, h.Time)
	}
	if h.Bits == e.prev.Bits {
		dst[base] |= flagSameBits
	} else {
		dst = appendUint32(dst, h.Bits)
	}
	return appendUint32(dst, h.Nonce)
}
