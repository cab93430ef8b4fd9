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

package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/hdrzip/hdrzip/hdr"
	"github.com/hdrzip/hdrzip/tests"
)

// serveChain serves hs the way a node's REST interface does:
// GET /rest/headers/{count}/{hash}.bin returns up to count
// raw headers beginning with the one whose digest is {hash}.
func serveChain(t *testing.T, hs []hdr.Header) *Client {
	index := make(map[hdr.Digest]int, len(hs))
	for i := range hs {
		index[hs[i].Digest()] = i
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		part := strings.Split(r.URL.Path, "/")
		if len(part) != 5 || part[1] != "rest" || part[2] != "headers" ||
			!strings.HasSuffix(part[4], ".bin") {
			http.NotFound(w, r)
			return
		}
		count, err := strconv.Atoi(part[3])
		if err != nil || count < 1 {
			http.NotFound(w, r)
			return
		}
		d, err := hdr.ParseDigest(strings.TrimSuffix(part[4], ".bin"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		i, ok := index[d]
		if !ok {
			http.NotFound(w, r)
			return
		}
		end := i + count
		if end > len(hs) {
			end = len(hs)
		}
		var buf []byte
		for ; i < end; i++ {
			buf = hs[i].Append(buf)
		}
		w.Write(buf)
	}))
	t.Cleanup(srv.Close)
	return &Client{URL: srv.URL, Logf: t.Logf}
}

func TestHeaders(t *testing.T) {
	hs := tests.Chain(50, nil)
	c := serveChain(t, hs)
	ctx := context.Background()

	page, err := c.Headers(ctx, hs[10].Digest(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 20 {
		t.Fatalf("got %d headers, expected 20", len(page))
	}
	for i := range page {
		if page[i] != hs[10+i] {
			t.Fatalf("header %d: got %+v, expected %+v", i, page[i], hs[10+i])
		}
	}

	// a page that runs past the tip comes back short
	page, err = c.Headers(ctx, hs[45].Digest(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 5 {
		t.Fatalf("got %d headers past the tip, expected 5", len(page))
	}

	// unknown digest
	var unknown hdr.Digest
	unknown[0] = 0xfe
	if _, err := c.Headers(ctx, unknown, 10); err == nil {
		t.Error("unknown digest succeeded")
	} else if !strings.Contains(err.Error(), "404") {
		t.Errorf("unexpected error %q", err)
	}

	// count bounds
	for _, n := range []int{0, -1, MaxPageHeaders + 1} {
		if _, err := c.Headers(ctx, hs[0].Digest(), n); err == nil {
			t.Errorf("count %d succeeded", n)
		}
	}
}

func TestWalk(t *testing.T) {
	hs := tests.Chain(40, nil)
	c := serveChain(t, hs)
	c.PageSize = 7
	ctx := context.Background()

	var got []hdr.Header
	err := c.Walk(ctx, hs[0].Digest(), func(h hdr.Header) error {
		got = append(got, h)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(hs) {
		t.Fatalf("walked %d headers, expected %d", len(got), len(hs))
	}
	for i := range hs {
		if got[i] != hs[i] {
			t.Fatalf("header %d out of order", i)
		}
	}

	// starting mid-chain
	got = got[:0]
	err = c.Walk(ctx, hs[33].Digest(), func(h hdr.Header) error {
		got = append(got, h)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(hs)-33 {
		t.Fatalf("walked %d headers from the middle, expected %d", len(got), len(hs)-33)
	}

	// starting at the tip visits exactly the tip
	got = got[:0]
	err = c.Walk(ctx, hs[len(hs)-1].Digest(), func(h hdr.Header) error {
		got = append(got, h)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != hs[len(hs)-1] {
		t.Fatalf("walk from the tip visited %d headers", len(got))
	}

	// fn errors stop the walk
	calls := 0
	stop := errors.New("stop")
	err = c.Walk(ctx, hs[0].Digest(), func(h hdr.Header) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Errorf("walk returned %v, expected the fn error", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times after erroring on call 3", calls)
	}
}

// a client must reject pages that do not start where asked or
// do not link internally
func TestBadPages(t *testing.T) {
	hs := tests.Chain(10, nil)
	bad := map[string]http.HandlerFunc{
		"wrong-start": func(w http.ResponseWriter, r *http.Request) {
			var buf []byte
			for i := 1; i < len(hs); i++ {
				buf = hs[i].Append(buf)
			}
			w.Write(buf)
		},
		"unlinked": func(w http.ResponseWriter, r *http.Request) {
			buf := hs[0].Append(nil)
			buf = hs[2].Append(buf) // skips hs[1]
			w.Write(buf)
		},
		"ragged": func(w http.ResponseWriter, r *http.Request) {
			w.Write(hs[0].Bytes()[:50])
		},
		"oversize": func(w http.ResponseWriter, r *http.Request) {
			var buf []byte
			for i := range hs {
				buf = hs[i].Append(buf)
			}
			w.Write(buf) // more than the count asked for
		},
	}
	for name, handler := range bad {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			c := &Client{URL: srv.URL}
			if _, err := c.Headers(context.Background(), hs[0].Digest(), 5); err == nil {
				t.Error("bad page accepted")
			} else {
				t.Log(err)
			}
		})
	}
}

func TestContextCancel(t *testing.T) {
	hs := tests.Chain(5, nil)
	c := serveChain(t, hs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Headers(ctx, hs[0].Digest(), 5); err == nil {
		t.Error("canceled fetch succeeded")
	}
}

func TestDecodeDefinition(t *testing.T) {
	digest := tests.Chain(2, nil)[1].Digest()
	run := func(body, fname string) (*Definition, error) {
		return DecodeDefinition(strings.NewReader(body), fname)
	}

	d, err := run(`{"url": "http://localhost:8332", "page_size": 500}`, "source.json")
	if err != nil {
		t.Fatal(err)
	}
	if d.URL != "http://localhost:8332" || d.PageSize != 500 || d.Start != "" {
		t.Errorf("bad definition %+v", d)
	}

	d, err = run("url: http://localhost:8332\nstart: "+digest.String()+"\n", "source.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if d.Start != digest.String() {
		t.Errorf("start %q, expected %s", d.Start, digest)
	}

	// yaml decodes json definitions too
	if _, err := run(`{"url": "http://x"}`, "source.yml"); err != nil {
		t.Errorf("json body in a .yml file: %s", err)
	}

	for name, tc := range map[string][2]string{
		"no-url":    {`{"start": "` + digest.String() + `"}`, "a.json"},
		"bad-start": {`{"url": "http://x", "start": "xyz"}`, "a.json"},
		"bad-ext":   {`{"url": "http://x"}`, "a.toml"},
		"bad-yaml":  {"url: [\n", "a.yaml"},
		"bad-page":  {`{"url": "http://x", "page_size": 9999}`, "a.json"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := run(tc[0], tc[1]); err == nil {
				t.Error("bad definition accepted")
			}
		})
	}
}
