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
	"errors"
	"fmt"

	"github.com/hdrzip/hdrzip/hdr"
)

// control byte layout; see the package documentation
const (
	verShift   = 5 // version code occupies the top 3 bits
	verLiteral = 7 // code 7: 4-byte version literal follows

	flagNoPrev   = 1 << 4 // previous digest omitted (always set)
	flagDelta    = 1 << 3 // time is a 2-byte signed delta
	flagSameBits = 1 << 2 // difficulty identical to predecessor
	flagEnd      = 1 << 1 // final record of the run
	flagReserved = 1 << 0 // must be zero
)

// MinRecordLen and MaxRecordLen bound the encoded size of one
// record, control byte included.
const (
	MinRecordLen = 1 + 32 + 2 + 4
	MaxRecordLen = 1 + 4 + 32 + 4 + 4 + 4
)

var (
	// ErrCorrupt is returned by Decoder.Decode when its input
	// could not have been produced by an Encoder: the record is
	// truncated, a version code references a cache slot that is
	// not yet populated, or the control byte is malformed.
	ErrCorrupt = errors.New("corrupt zhdr stream")

	// ErrEncode indicates misuse of the codec rather than a
	// problem with the data: calling Encode, Flush, or Decode
	// before Begin, or flushing a run with no records. It does
	// not occur on well-formed use, no matter the header
	// contents.
	ErrEncode = errors.New("zhdr codec misuse")
)

// RecordLen returns the total encoded size, control byte
// included, of a record that begins with ctrl. The result is
// meaningful only for control bytes written by an Encoder;
// Decode remains the authority on record validity.
func RecordLen(ctrl byte) int {
	n := 1 + 32 + 4 // control, payload root, nonce
	if ctrl>>verShift == verLiteral {
		n += 4
	}
	if ctrl&flagDelta != 0 {
		n += 2
	} else {
		n += 4
	}
	if ctrl&flagSameBits == 0 {
		n += 4
	}
	return n
}

// Compress appends the compressed form of headers[1:] to dst
// and returns the extended slice. headers[0] is the run's
// anchor: it is not itself encoded, and Decompress must be
// given the same header to reverse the transformation.
func Compress(headers []hdr.Header, dst []byte) ([]byte, error) {
	if len(headers) < 2 {
		return dst, fmt.Errorf("%w: run of %d headers (need 2 or more)", ErrEncode, len(headers))
	}
	var e Encoder
	e.Begin(headers[0])
	var err error
	for i := 1; i < len(headers); i++ {
		dst, err = e.Encode(headers[i], dst)
		if err != nil {
			return dst, err
		}
	}
	return e.Flush(dst)
}

// Decompress decodes an entire compressed run produced by
// Compress (or by an Encoder ending in Flush) and returns the
// reconstructed headers, anchor excluded. The run must end at
// the record carrying the run-end bit; missing it, or bytes
// past it, fail with ErrCorrupt.
func Decompress(src []byte, anchor hdr.Header) ([]hdr.Header, error) {
	var d Decoder
	d.Begin(anchor)
	var out []hdr.Header
	for {
		h, rest, err := d.Decode(src)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
		src = rest
		if d.End() {
			break
		}
		if len(src) == 0 {
			return nil, fmt.Errorf("%w: run does not end", ErrCorrupt)
		}
	}
	if len(src) != 0 {
		return nil, fmt.Errorf("%w: %d bytes past the end of the run", ErrCorrupt, len(src))
	}
	return out, nil
}

func appendUint32(dst []byte, u uint32) []byte {
	return append(dst, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}
