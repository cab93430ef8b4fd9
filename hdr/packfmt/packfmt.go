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

// Package packfmt implements the on-disk container for
// compressed header runs.
//
// A pack file is laid out as
//
//	magic    4 bytes
//	anchor   80 bytes, the run's first header, stored raw
//	frames   zero or more compressed frames
//	trailer  76 bytes
//
// Each frame is a 3-byte little-endian compressed length,
// a 3-byte little-endian decompressed length, and the
// compressed bytes themselves. A frame decompresses to a
// whole number of records; a record never spans two frames,
// so frames can be decoded independently of one another
// given the decoder state at the frame boundary.
//
// The trailer is fixed-size and sits at the end of the file
// so that a pack can be produced by a single forward pass
// and described without reading its body. It records the
// compression algorithm, the record count, the decoded size,
// and two checksums: a fast hash of the frame bytes as
// stored, and a cryptographic hash of the decoded header
// stream, anchor included. The final 4 bytes hold the
// trailer's own length so readers can locate its start from
// the end of the file.
package packfmt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/hdr/zhdr"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
)

// magic is the 4-byte magic number that begins a pack file.
var magic = []byte{0x8a, 'z', 'h', 'd'}

// IsMagic returns true if x begins with the 4-byte magic
// number for pack files, or false otherwise.
func IsMagic(x []byte) bool {
	return len(x) >= 4 &&
		bytes.Equal(x[:4], magic)
}

const (
	// TrailerLen is the encoded size of a Trailer,
	// including the 4-byte length suffix.
	TrailerLen = 76

	// DefaultTargetFrameSize is the frame size used by a
	// Writer when Writer.TargetFrameSize is zero.
	DefaultTargetFrameSize = 1 << 20

	// maxFrameSize bounds the decompressed size of one
	// frame; a decoder rejects frames that advertise more.
	maxFrameSize = 1 << 23
)

// algos maps the algo byte in the trailer to a compr
// algorithm name; the empty name means frames are stored
// without compression.
var algos = []string{"", "zstd", "s2"}

func algoID(name string) int {
	for i := range algos {
		if algos[i] == name {
			return i
		}
	}
	return -1
}

// key for the trailer's frame-bytes hash; the siphash of the
// frame area is cheap enough to compute while streaming and
// catches storage or transport corruption before the body is
// decompressed.
const (
	bodyKey0 = 0xc8e36b2a1f440d97
	bodyKey1 = 0x5dd1a0863e29fcb4
)

func bodyHasher() hash.Hash64 {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], bodyKey0)
	binary.LittleEndian.PutUint64(key[8:], bodyKey1)
	return siphash.New(key[:])
}

func le24(x []byte) int {
	return int(x[0]) + (int(x[1]) << 8) + (int(x[2]) << 16)
}

func put24(i int, dst []byte) {
	dst[0] = byte(i)
	dst[1] = byte(i >> 8)
	dst[2] = byte(i >> 16)
}

// Trailer is the summary metadata stored
// at the end of a pack file.
type Trailer struct {
	// Version is the trailer layout version.
	Version int
	// Algo is the compression algorithm
	// used to compress the frames.
	Algo string
	// Records is the number of records in the body,
	// which is one less than the number of headers
	// in the pack (the anchor is stored raw).
	Records int
	// RawSize is the decoded size of the pack,
	// anchor included.
	RawSize int64
	// BodyHash is a hash of the frame area exactly
	// as it appears in the file.
	BodyHash uint64
	// ID identifies this pack; it is assigned
	// when the pack is written.
	ID uuid.UUID
	// Content is a blake2b-256 hash of the decoded
	// header stream, anchor included.
	Content [32]byte
}

// Append appends the encoded trailer to dst
// and returns the extended slice.
func (t *Trailer) Append(dst []byte) ([]byte, error) {
	id := algoID(t.Algo)
	if id < 0 {
		return nil, fmt.Errorf("packfmt: unknown compression %q", t.Algo)
	}
	dst = append(dst, uint8(t.Version), uint8(id), 0, 0)
	dst = appendUint32(dst, uint32(t.Records))
	dst = appendUint64(dst, uint64(t.RawSize))
	dst = appendUint64(dst, t.BodyHash)
	dst = append(dst, t.ID[:]...)
	dst = append(dst, t.Content[:]...)
	return appendUint32(dst, TrailerLen), nil
}

// Decode decodes a trailer from the last TrailerLen
// bytes of a pack file.
func (t *Trailer) Decode(buf []byte) error {
	if len(buf) != TrailerLen {
		return fmt.Errorf("packfmt: trailer of %d bytes, expected %d", len(buf), TrailerLen)
	}
	if size := binary.LittleEndian.Uint32(buf[72:]); size != TrailerLen {
		return fmt.Errorf("packfmt: unexpected trailer length %d", size)
	}
	t.Version = int(buf[0])
	if t.Version != 1 {
		return fmt.Errorf("packfmt: unsupported trailer version %d", t.Version)
	}
	if id := int(buf[1]); id < len(algos) {
		t.Algo = algos[id]
	} else {
		return fmt.Errorf("packfmt: unknown algo id %d", buf[1])
	}
	if buf[2] != 0 || buf[3] != 0 {
		return fmt.Errorf("packfmt: reserved trailer bytes %x are not zero", buf[2:4])
	}
	t.Records = int(binary.LittleEndian.Uint32(buf[4:]))
	t.RawSize = int64(binary.LittleEndian.Uint64(buf[8:]))
	t.BodyHash = binary.LittleEndian.Uint64(buf[16:])
	copy(t.ID[:], buf[24:])
	copy(t.Content[:], buf[40:])
	if want := int64(t.Records+1) * hdr.HeaderLen; t.RawSize != want {
		return fmt.Errorf("packfmt: raw size %d does not match %d records", t.RawSize, t.Records)
	}
	return nil
}

// ReadTrailer reads a trailer from an io.ReaderAt
// that has a backing size of 'size'.
func ReadTrailer(src io.ReaderAt, size int64) (*Trailer, error) {
	t := new(Trailer)
	err := t.ReadFrom(src, size)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trailer) ReadFrom(src io.ReaderAt, size int64) error {
	if size < int64(len(magic)+hdr.HeaderLen+TrailerLen) {
		return fmt.Errorf("packfmt: size %d too small to possibly be valid", size)
	}
	var head [4]byte
	n, err := src.ReadAt(head[:], 0)
	if n == len(head) {
		err = nil
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if !IsMagic(head[:]) {
		return fmt.Errorf("packfmt: bad magic bytes %x", head[:])
	}
	var buf [TrailerLen]byte
	n, err = src.ReadAt(buf[:], size-TrailerLen)
	if n == len(buf) {
		err = nil
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	return t.Decode(buf[:])
}

func appendUint32(dst []byte, u uint32) []byte {
	return append(dst, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}

func appendUint64(dst []byte, u uint64) []byte {
	dst = appendUint32(dst, uint32(u))
	return appendUint32(dst, uint32(u>>32))
}
