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
	"io"
	"strings"
	"testing"

	"github.com/hdrzip/hdrzip/compr"
	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/hdr/zhdr"
	"github.com/hdrzip/hdrzip/tests"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

func packChain(t testing.TB, hs []hdr.Header, comp compr.Compressor, target int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := Writer{Out: &buf, Comp: comp, TargetFrameSize: target, Logf: t.Logf}
	for i := range hs {
		if err := w.WriteHeader(hs[i]); err != nil {
			t.Fatalf("header %d: %s", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func unpack(pack []byte) (*Trailer, []byte, error) {
	rd := bytes.NewReader(pack)
	t, err := ReadTrailer(rd, rd.Size())
	if err != nil {
		return nil, nil, err
	}
	var out bytes.Buffer
	d := Decoder{Trailer: t}
	_, err = d.Copy(&out, io.NewSectionReader(rd, 0, rd.Size()-TrailerLen))
	return t, out.Bytes(), err
}

func TestPackRoundTrip(t *testing.T) {
	hs := tests.Chain(1000, func(i int, h *hdr.Header) {
		switch {
		case i%257 == 0:
			h.Version = uint32(1 + i/257)
		case i%101 == 0:
			h.Bits--
		}
	})
	var want []byte
	for i := range hs {
		want = hs[i].Append(want)
	}
	for _, name := range []string{"", "zstd", "zstd-better", "s2"} {
		label := name
		if label == "" {
			label = "stored"
		}
		t.Run(label, func(t *testing.T) {
			pack := packChain(t, hs, compr.Compression(name), 1<<14)
			if len(pack) >= len(want) {
				t.Errorf("pack of %d bytes for %d raw", len(pack), len(want))
			}
			tr, got, err := unpack(pack)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, want) {
				t.Fatal("decoded stream differs from the input headers")
			}
			if tr.Records != len(hs)-1 {
				t.Errorf("trailer records %d, expected %d", tr.Records, len(hs)-1)
			}
			if tr.RawSize != int64(len(want)) {
				t.Errorf("trailer raw size %d, expected %d", tr.RawSize, len(want))
			}
			wantAlgo := name
			if name == "zstd-better" {
				wantAlgo = "zstd"
			}
			if tr.Algo != wantAlgo {
				t.Errorf("trailer algo %q, expected %q", tr.Algo, wantAlgo)
			}
			if tr.ID == (uuid.UUID{}) {
				t.Error("zero pack id")
			}
			var diag bytes.Buffer
			if n := Validate(bytes.NewReader(pack), int64(len(pack)), &diag); n != 0 {
				t.Errorf("%d validation errors:\n%s", n, diag.String())
			}
		})
	}
}

// TestFrameBoundaries forces a flush after every record and
// checks that frames stay record-aligned.
func TestFrameBoundaries(t *testing.T) {
	hs := tests.Chain(64, nil)
	pack := packChain(t, hs, nil, 1)
	_, got, err := unpack(pack)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(hs)*hdr.HeaderLen {
		t.Fatalf("decoded %d bytes, expected %d", len(got), len(hs)*hdr.HeaderLen)
	}
	frames := 0
	off := len(magic) + hdr.HeaderLen
	end := len(pack) - TrailerLen
	for off < end {
		if end-off < 6 {
			t.Fatalf("%d stray bytes before the trailer", end-off)
		}
		clen := le24(pack[off:])
		rlen := le24(pack[off+3:])
		if clen != rlen {
			t.Fatalf("frame %d: stored frame %d -> %d", frames, clen, rlen)
		}
		if rlen < zhdr.MinRecordLen || rlen > zhdr.MaxRecordLen {
			t.Fatalf("frame %d: %d bytes is not a single record", frames, rlen)
		}
		off += 6 + clen
		frames++
	}
	if frames != len(hs)-1 {
		t.Errorf("%d frames, expected one per record (%d)", frames, len(hs)-1)
	}
}

func TestWriterMisuse(t *testing.T) {
	hs := tests.Chain(3, nil)
	var buf bytes.Buffer

	w := &Writer{Out: &buf}
	if err := w.Close(); err == nil {
		t.Error("Close with no headers succeeded")
	}

	w = &Writer{Out: &buf}
	if err := w.WriteHeader(hs[0]); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err == nil {
		t.Error("Close with only an anchor succeeded")
	}

	w = &Writer{Out: &buf}
	if err := w.WriteHeader(hs[0]); err != nil {
		t.Fatal(err)
	}
	unlinked := hs[2] // skips hs[1]
	if err := w.WriteHeader(unlinked); err == nil {
		t.Error("unlinked header accepted")
	} else if !strings.Contains(err.Error(), "prev") {
		t.Errorf("unexpected error %q", err)
	}

	buf.Reset()
	w = &Writer{Out: &buf}
	for i := range hs {
		if err := w.WriteHeader(hs[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteHeader(hs[0]); err == nil {
		t.Error("WriteHeader after Close succeeded")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %s", err)
	}

	w = &Writer{Out: &buf, Comp: nopComp{}}
	if err := w.WriteHeader(hs[0]); err == nil {
		t.Error("unregistered compression accepted")
	}
}

type nopComp struct{}

func (nopComp) Name() string { return "lzjb" }

func (nopComp) Compress(src, dst []byte) []byte { return append(dst, src...) }

// TestPackCorrupt flips every byte of a pack in turn and
// checks that Validate catches each one. The only bytes
// allowed to go undetected are the pack id, which is
// identity rather than checksum.
func TestPackCorrupt(t *testing.T) {
	hs := tests.Chain(12, nil)
	pack := packChain(t, hs, nil, 256)
	idOff := len(pack) - TrailerLen + 24
	for i := range pack {
		if i >= idOff && i < idOff+16 {
			continue
		}
		b := slices.Clone(pack)
		b[i] ^= 0xff
		var diag bytes.Buffer
		if n := Validate(bytes.NewReader(b), int64(len(b)), &diag); n == 0 {
			t.Errorf("flipping byte %d went undetected", i)
		}
	}
	b := slices.Clone(pack)
	b[idOff] ^= 0xff
	var diag bytes.Buffer
	if n := Validate(bytes.NewReader(b), int64(len(b)), &diag); n != 0 {
		t.Errorf("flipped pack id failed validation:\n%s", diag.String())
	}

	for _, cut := range []int{1, 6, TrailerLen, TrailerLen + 1, len(pack) - 85} {
		b := pack[:len(pack)-cut]
		if n := Validate(bytes.NewReader(b), int64(len(b)), io.Discard); n == 0 {
			t.Errorf("truncating %d bytes went undetected", cut)
		}
	}
}

func TestCheckWriter(t *testing.T) {
	hs := tests.Chain(3, nil)
	var diag bytes.Buffer
	c := checkWriter{dst: &diag}
	c.Write(hs[0].Bytes())
	c.Write(hs[2].Bytes()) // does not link to hs[0]
	if c.errs != 1 {
		t.Errorf("%d errors, expected 1:\n%s", c.errs, diag.String())
	}
	c.Write(make([]byte, hdr.HeaderLen-1))
	if c.errs != 2 {
		t.Errorf("%d errors, expected 2:\n%s", c.errs, diag.String())
	}
}

// Two packs of the same run differ only in their id.
func TestPackIDs(t *testing.T) {
	hs := tests.Chain(10, nil)
	t1, _, err := unpack(packChain(t, hs, nil, 0))
	if err != nil {
		t.Fatal(err)
	}
	t2, _, err := unpack(packChain(t, hs, nil, 0))
	if err != nil {
		t.Fatal(err)
	}
	if t1.ID == t2.ID {
		t.Errorf("packs share id %s", t1.ID)
	}
	t2.ID = t1.ID
	if *t1 != *t2 {
		t.Errorf("trailers differ beyond their ids: %+v vs %+v", t1, t2)
	}
}

func BenchmarkWriter(b *testing.B) {
	hs := tests.Chain(10000, nil)
	comp := compr.Compression("zstd")
	b.SetBytes(int64(len(hs) * hdr.HeaderLen))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := Writer{Out: io.Discard, Comp: comp}
		for j := range hs {
			if err := w.WriteHeader(hs[j]); err != nil {
				b.Fatal(err)
			}
		}
		if err := w.Close(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCopy(b *testing.B) {
	hs := tests.Chain(10000, nil)
	var buf bytes.Buffer
	w := Writer{Out: &buf, Comp: compr.Compression("zstd")}
	for i := range hs {
		if err := w.WriteHeader(hs[i]); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		b.Fatal(err)
	}
	rd := bytes.NewReader(buf.Bytes())
	tr, err := ReadTrailer(rd, rd.Size())
	if err != nil {
		b.Fatal(err)
	}
	d := Decoder{Trailer: tr}
	b.SetBytes(tr.RawSize)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := d.Copy(io.Discard, io.NewSectionReader(rd, 0, rd.Size()-TrailerLen))
		if err != nil {
			b.Fatal(err)
		}
	}
}
