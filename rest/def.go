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
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/hdrzip/hdrzip/hdr"

	"sigs.k8s.io/yaml"
)

// Definition describes a header source.
type Definition struct {
	// URL is the base URL of the node serving the REST
	// interface, without the /rest prefix.
	URL string `json:"url"`
	// Start, if non-empty, is the digest of the first header
	// to fetch, in the usual reversed-hex notation. If Start
	// is empty, fetching begins at the genesis header.
	Start string `json:"start,omitempty"`
	// PageSize, if non-zero, overrides the number of headers
	// requested per page.
	PageSize int `json:"page_size,omitempty"`
}

// just pick an upper limit to prevent DoS
const maxDefSize = 1024 * 1024

// DecodeDefinition decodes a source definition from src.
// fname decides the encoding: .json definitions are decoded
// as JSON, and .yaml or .yml definitions as YAML.
func DecodeDefinition(src io.Reader, fname string) (*Definition, error) {
	buf, err := io.ReadAll(io.LimitReader(src, maxDefSize+1))
	if err != nil {
		return nil, err
	}
	if len(buf) > maxDefSize {
		return nil, fmt.Errorf("rest: definition beyond size limit %d", maxDefSize)
	}
	d := new(Definition)
	switch ext := path.Ext(fname); ext {
	case ".json":
		err = json.Unmarshal(buf, d)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, d)
	default:
		err = fmt.Errorf("rest: unsupported definition extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if d.URL == "" {
		return nil, fmt.Errorf("rest: definition has no url")
	}
	if d.Start != "" {
		if _, err := hdr.ParseDigest(d.Start); err != nil {
			return nil, fmt.Errorf("rest: definition start: %w", err)
		}
	}
	if d.PageSize < 0 || d.PageSize > MaxPageHeaders {
		return nil, fmt.Errorf("rest: page size %d out of range [1, %d]", d.PageSize, MaxPageHeaders)
	}
	return d, nil
}
