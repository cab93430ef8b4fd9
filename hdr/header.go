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

// Package hdr implements the fixed 80-byte chain header
// and its canonical serialization and digest.
package hdr

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
)

// HeaderLen is the serialized size of a Header.
const HeaderLen = 80

// ErrMalformedHeader is returned when bytes presented
// as a serialized header do not have length HeaderLen.
var ErrMalformedHeader = errors.New("malformed header")

// Digest is the double-SHA-256 digest of a serialized header.
type Digest [32]byte

// String returns the conventional display form of d,
// which is the byte-reversed hexadecimal encoding.
func (d Digest) String() string {
	var rev [32]byte
	for i := range rev {
		rev[i] = d[31-i]
	}
	return hex.EncodeToString(rev[:])
}

// ParseDigest decodes the display form produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*len(d) {
		return d, fmt.Errorf("digest %q: not %d hex digits", s, 2*len(d))
	}
	var rev [32]byte
	if _, err := hex.Decode(rev[:], []byte(s)); err != nil {
		return d, fmt.Errorf("digest %q: %w", s, err)
	}
	for i := range d {
		d[i] = rev[31-i]
	}
	return d, nil
}

// Header is one fixed-size chain header.
// The integer fields are little-endian on the wire;
// Prev and Root are copied verbatim.
type Header struct {
	Version uint32 // serialization rules signal
	Prev    Digest // digest of the preceding header
	Root    Digest // payload commitment root
	Time    uint32 // claimed creation time, unix seconds
	Bits    uint32 // compact difficulty target
	Nonce   uint32 // search counter
}

// Parse decodes the 80-byte serialized form of a header.
// Any other input length fails with ErrMalformedHeader;
// field contents are not validated.
func Parse(buf []byte) (Header, error) {
	var h Header
	if len(buf) != HeaderLen {
		return h, fmt.Errorf("%w: length %d", ErrMalformedHeader, len(buf))
	}
	h.Version = binary.LittleEndian.Uint32(buf)
	copy(h.Prev[:], buf[4:36])
	copy(h.Root[:], buf[36:68])
	h.Time = binary.LittleEndian.Uint32(buf[68:])
	h.Bits = binary.LittleEndian.Uint32(buf[72:])
	h.Nonce = binary.LittleEndian.Uint32(buf[76:])
	return h, nil
}

// Append appends the 80-byte serialization of h to dst
// and returns the extended slice.
func (h *Header) Append(dst []byte) []byte {
	dst = appendUint32(dst, h.Version)
	dst = append(dst, h.Prev[:]...)
	dst = append(dst, h.Root[:]...)
	dst = appendUint32(dst, h.Time)
	dst = appendUint32(dst, h.Bits)
	return appendUint32(dst, h.Nonce)
}

// Bytes returns the 80-byte serialization of h.
func (h *Header) Bytes() []byte {
	return h.Append(make([]byte, 0, HeaderLen))
}

// Digest returns the double-SHA-256 digest
// of the serialized form of h.
func (h *Header) Digest() Digest {
	var buf [HeaderLen]byte
	inner := sha256.Sum256(h.Append(buf[:0]))
	return Digest(sha256.Sum256(inner[:]))
}

func appendUint32(dst []byte, u uint32) []byte {
	return append(dst, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}
