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

import "testing"

func TestVersionCacheOrder(t *testing.T) {
	var c VersionCache
	if c.Len() != 0 {
		t.Fatalf("zero value has %d entries", c.Len())
	}
	c.Push(10)
	c.Push(20)
	c.Push(30)
	// most recent first
	for i, want := range []uint32{30, 20, 10} {
		if got := c.At(i); got != want {
			t.Errorf("slot %d: got %d, expected %d", i, got, want)
		}
	}
	if i := c.Index(20); i != 1 {
		t.Errorf("Index(20) = %d, expected 1", i)
	}
	if i := c.Index(99); i != -1 {
		t.Errorf("Index(99) = %d, expected -1", i)
	}
}

func TestVersionCacheEviction(t *testing.T) {
	var c VersionCache
	for v := uint32(1); v <= NumVersions+1; v++ {
		c.Push(v)
	}
	if c.Len() != NumVersions {
		t.Fatalf("%d entries, expected %d", c.Len(), NumVersions)
	}
	// 8 pushes: version 1 fell off the tail
	if i := c.Index(1); i != -1 {
		t.Errorf("oldest version still cached at slot %d", i)
	}
	if i := c.Index(2); i != NumVersions-1 {
		t.Errorf("Index(2) = %d, expected %d", i, NumVersions-1)
	}
	if i := c.Index(8); i != 0 {
		t.Errorf("Index(8) = %d, expected 0", i)
	}
}

func TestVersionCacheSeed(t *testing.T) {
	var c VersionCache
	for v := uint32(1); v <= 5; v++ {
		c.Push(v)
	}
	c.Seed(42)
	if c.Len() != 1 || c.At(0) != 42 {
		t.Errorf("after Seed: len %d, front %d", c.Len(), c.At(0))
	}
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("after Reset: len %d", c.Len())
	}
}

func TestVersionCacheEqual(t *testing.T) {
	var a, b VersionCache
	if !a.Equal(&b) {
		t.Error("empty caches not equal")
	}
	a.Push(1)
	a.Push(2)
	b.Push(1)
	if a.Equal(&b) {
		t.Error("caches of different length compare equal")
	}
	b.Push(2)
	if !a.Equal(&b) {
		t.Error("identical push sequences compare unequal")
	}
	b.Seed(2)
	b.Push(1)
	// same contents, different order
	if a.Equal(&b) {
		t.Error("reordered caches compare equal")
	}
}
