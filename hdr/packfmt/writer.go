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
	"hash"
	"io"

	"github.com/hdrzip/hdrzip/compr"
	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/hdr/zhdr"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Writer is a single-stream pack writer. Headers are passed
// to WriteHeader in chain order and compressed records are
// accumulated into frames that are flushed to Out around
// TargetFrameSize; Close flushes the final frame and writes
// the trailer.
type Writer struct {
	// Out is the destination to which
	// the pack should be written.
	Out io.Writer
	// Comp compresses each frame. If Comp is nil,
	// frames are stored without compression.
	Comp compr.Compressor
	// TargetFrameSize is the decoded frame size at
	// which a frame flush is triggered. If it is zero,
	// DefaultTargetFrameSize is used.
	TargetFrameSize int
	// Logf, if non-nil, is a hook for debug logging.
	Logf func(f string, args ...interface{})

	// Trailer is the trailer being built by the writer;
	// it is complete once Close has returned.
	Trailer

	enc     zhdr.Encoder
	last    hdr.Header
	buf     []byte // records awaiting a frame flush
	alt     []byte // compressed frame scratch
	body    hash.Hash64
	content hash.Hash
	nframes int
	began   bool
	done    bool
}

func (w *Writer) target() int {
	if w.TargetFrameSize <= 0 {
		w.TargetFrameSize = DefaultTargetFrameSize
	}
	if max := maxFrameSize - zhdr.MaxRecordLen; w.TargetFrameSize > max {
		w.TargetFrameSize = max
	}
	return w.TargetFrameSize
}

// WriteHeader adds h to the pack. The first header written
// becomes the run's anchor and is stored raw; each following
// header must be the successor of the previous one in chain
// order. The record codec itself does not check linkage, so
// the writer does: a header whose prev digest does not match
// its predecessor is rejected before anything is written.
func (w *Writer) WriteHeader(h hdr.Header) error {
	if w.done {
		return fmt.Errorf("packfmt: WriteHeader after Close")
	}
	if !w.began {
		return w.begin(h)
	}
	if want := w.last.Digest(); h.Prev != want {
		return fmt.Errorf("packfmt: header %d: prev %s, expected %s", w.Records+1, h.Prev, want)
	}
	var err error
	w.buf, err = w.enc.Encode(h, w.buf)
	if err != nil {
		return err
	}
	w.content.Write(h.Bytes())
	w.last = h
	w.Records++
	w.RawSize += hdr.HeaderLen
	if len(w.buf) >= w.target() {
		return w.flushFrame()
	}
	return nil
}

func (w *Writer) begin(anchor hdr.Header) error {
	name := ""
	if w.Comp != nil {
		name = w.Comp.Name()
	}
	if algoID(name) < 0 {
		return fmt.Errorf("packfmt: unknown compression %q", name)
	}
	w.Version = 1
	w.Algo = name
	w.ID = uuid.New()
	w.body = bodyHasher()
	w.content, _ = blake2b.New256(nil)
	if _, err := w.Out.Write(magic); err != nil {
		return err
	}
	buf := anchor.Bytes()
	if _, err := w.Out.Write(buf); err != nil {
		return err
	}
	w.content.Write(buf)
	w.RawSize = hdr.HeaderLen
	w.enc.Begin(anchor)
	w.last = anchor
	w.began = true
	return nil
}

// flush w.buf as one frame; swap w.alt and w.buf scratch
func (w *Writer) flushFrame() error {
	if len(w.buf) == 0 {
		return nil
	}
	rlen := len(w.buf)
	payload := w.buf
	if w.Comp != nil {
		w.alt = w.Comp.Compress(w.buf, w.alt[:0])
		payload = w.alt
	}
	if len(payload) > 1<<24-1 {
		return fmt.Errorf("packfmt: frame of %d bytes overflows its length prefix", len(payload))
	}
	var pre [6]byte
	put24(len(payload), pre[0:])
	put24(rlen, pre[3:])
	if _, err := w.Out.Write(pre[:]); err != nil {
		return err
	}
	if _, err := w.Out.Write(payload); err != nil {
		return err
	}
	w.body.Write(pre[:])
	w.body.Write(payload)
	if w.Logf != nil {
		w.Logf("frame %d: %d -> %d bytes", w.nframes, rlen, len(payload))
	}
	w.nframes++
	w.buf = w.buf[:0]
	return nil
}

// Close terminates the record run, flushes the final frame,
// and writes the trailer. A pack must contain at least two
// headers; Close fails without writing a trailer otherwise.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	if !w.began {
		return fmt.Errorf("packfmt: Close with no headers written")
	}
	if w.Records == 0 {
		return fmt.Errorf("packfmt: pack holds only an anchor")
	}
	var err error
	w.buf, err = w.enc.Flush(w.buf)
	if err != nil {
		return err
	}
	if err := w.flushFrame(); err != nil {
		return err
	}
	w.BodyHash = w.body.Sum64()
	w.content.Sum(w.Content[:0])
	tail, err := w.Trailer.Append(nil)
	if err != nil {
		return err
	}
	if _, err := w.Out.Write(tail); err != nil {
		return err
	}
	w.done = true
	if w.Logf != nil {
		w.Logf("pack %s: %d headers in %d frames", w.ID, w.Records+1, w.nframes)
	}
	return nil
}
