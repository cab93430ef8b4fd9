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

// Package rest acquires chain headers from a node's REST
// interface. A node serves pages of raw 80-byte headers at
//
//	{URL}/rest/headers/{count}/{hash}.bin
//
// where each page begins with the header whose digest is
// {hash} and continues toward the tip of the chain.
package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hdrzip/hdrzip/hdr"
)

// MaxPageHeaders is the most headers a node
// returns in a single page.
const MaxPageHeaders = 2000

// Client fetches headers from one node.
type Client struct {
	// URL is the base URL of the node serving the REST
	// interface, without the /rest prefix, for example
	// "http://127.0.0.1:8332".
	URL string
	// PageSize, if non-zero, is the number of headers
	// Walk requests per page. Pages are capped at
	// MaxPageHeaders and floored at 2, since consecutive
	// pages overlap by one header and a page of 1 could
	// never make progress.
	PageSize int
	// HTTP, if non-nil, will be used for requests
	// in place of http.DefaultClient.
	HTTP *http.Client
	// Logf, if non-nil, is a hook for debug logging.
	Logf func(f string, args ...interface{})
}

func (c *Client) client() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

// Headers fetches up to count headers beginning with the one
// whose digest is from, which is returned as the first
// element. A page shorter than count means the chain tip was
// reached. The page is checked before it is returned: each
// header must link to the digest of its predecessor, and the
// first must be the one that was asked for.
func (c *Client) Headers(ctx context.Context, from hdr.Digest, count int) ([]hdr.Header, error) {
	if count < 1 || count > MaxPageHeaders {
		return nil, fmt.Errorf("rest: count %d out of range [1, %d]", count, MaxPageHeaders)
	}
	u := fmt.Sprintf("%s/rest/headers/%d/%s.bin", strings.TrimSuffix(c.URL, "/"), count, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rest: %s: unexpected HTTP response status %d", u, res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, int64(count)*hdr.HeaderLen+1))
	if err != nil {
		return nil, err
	}
	if len(body) > count*hdr.HeaderLen {
		return nil, fmt.Errorf("rest: response longer than %d headers", count)
	}
	if len(body)%hdr.HeaderLen != 0 {
		return nil, fmt.Errorf("rest: response of %d bytes is not a whole number of headers", len(body))
	}
	hs := make([]hdr.Header, 0, len(body)/hdr.HeaderLen)
	for off := 0; off < len(body); off += hdr.HeaderLen {
		h, err := hdr.Parse(body[off : off+hdr.HeaderLen])
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}
	if len(hs) > 0 {
		if got := hs[0].Digest(); got != from {
			return nil, fmt.Errorf("rest: page begins at %s, requested %s", got, from)
		}
		for i := 1; i < len(hs); i++ {
			if want := hs[i-1].Digest(); hs[i].Prev != want {
				return nil, fmt.Errorf("rest: header %d of page does not link to its predecessor", i)
			}
		}
	}
	if c.Logf != nil {
		c.Logf("GET %s: %d headers", u, len(hs))
	}
	return hs, nil
}

// Walk calls fn for every header from the one whose digest is
// from, inclusive, up to the tip of the chain, paging through
// the REST interface as it goes. Walk stops at the first
// error returned by fn.
func (c *Client) Walk(ctx context.Context, from hdr.Digest, fn func(hdr.Header) error) error {
	count := c.PageSize
	if count <= 0 || count > MaxPageHeaders {
		count = MaxPageHeaders
	}
	if count < 2 {
		count = 2
	}
	cur := from
	first := true
	for {
		page, err := c.Headers(ctx, cur, count)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return fmt.Errorf("rest: empty page for %s", cur)
		}
		start := 0
		if !first {
			// the first header of every page after the
			// first repeats the previous page's last
			start = 1
		}
		for i := start; i < len(page); i++ {
			if err := fn(page[i]); err != nil {
				return err
			}
		}
		if len(page) < count {
			return nil
		}
		cur = page[len(page)-1].Digest()
		first = false
	}
}
