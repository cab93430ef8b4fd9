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
	"golang.org/x/exp/slices"
)

// NumVersions is the capacity of a VersionCache.
const NumVersions = 7

// A VersionCache is a bounded, ordered list of the distinct
// header version words seen most recently, used to reference
// repeated versions by a 3-bit slot index instead of a 4-byte
// literal. The encoder and decoder each own one cache and must
// apply identical operations in record order; no cache state is
// ever transmitted, so any divergence silently garbles every
// later version lookup.
//
// The zero value is an empty cache.
type VersionCache struct {
	slots [NumVersions]uint32
	n     int
}

// Len returns the number of populated slots.
func (c *VersionCache) Len() int { return c.n }

// Index returns the slot currently holding v, or -1.
func (c *VersionCache) Index(v uint32) int {
	return slices.Index(c.slots[:c.n], v)
}

// At returns the version in slot i.
// It panics unless 0 <= i < Len().
func (c *VersionCache) At(i int) uint32 {
	return c.slots[:c.n][i]
}

// Push inserts v at the front, shifting the remaining entries
// back one slot and evicting the oldest once NumVersions are
// held. Callers must push only values for which Index returned
// -1: pushing an already-cached value duplicates it and shifts
// every slot index relative to a peer cache that did not.
func (c *VersionCache) Push(v uint32) {
	if c.n < NumVersions {
		c.n++
	}
	copy(c.slots[1:c.n], c.slots[:])
	c.slots[0] = v
}

// Seed resets c so that it holds only v.
func (c *VersionCache) Seed(v uint32) {
	c.n = 0
	c.Push(v)
}

// Reset restores c to the empty state.
func (c *VersionCache) Reset() { c.n = 0 }

// Equal reports whether c and o hold the same versions
// in the same order.
func (c *VersionCache) Equal(o *VersionCache) bool {
	return slices.Equal(c.slots[:c.n], o.slots[:o.n])
}
