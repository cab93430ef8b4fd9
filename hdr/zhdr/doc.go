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

// Package zhdr implements a lossless delta encoding for runs
// of consecutive chain headers.
//
// Neighboring headers are highly redundant: the version and
// difficulty words rarely change, the timestamp usually moves
// by a small step, and the previous-header digest is fully
// determined by the header before it. The encoding elides or
// shrinks those fields and transmits only the incompressible
// ones (payload root, nonce) in full, so a typical 80-byte
// header becomes a 39-byte record.
//
// ## Record Format
//
// One record is a control byte followed by a variable payload:
//
//	[1]      control byte
//	[0 or 4] version literal
//	[32]     payload root
//	[2 or 4] time: signed 16-bit delta, or 32-bit literal
//	[0 or 4] difficulty target
//	[4]      nonce
//
// All multi-byte integers are little-endian. The control byte,
// most-significant bits first:
//
//	bits 0-2  version code: 0-6 select a recency-cache slot,
//	          7 means a 4-byte literal follows
//	bit  3    previous digest omitted; always set, since the
//	          digest is recomputed from the preceding header
//	bit  4    time transmitted as a 2-byte signed delta
//	bit  5    difficulty target identical to the predecessor
//	bit  6    final record of the run
//	bit  7    reserved, always zero
//
// A time delta d is transmitted in 2 bytes only when
// -32768 < d < 32767. The bound is deliberately asymmetric:
// deployed decoders expect both extremes as 4-byte literals,
// so "fixing" it to the full int16 range would break them.
//
// ## Version Recency Cache
//
// Both ends keep an ordered list of up to 7 distinct version
// words, most recently seen first, seeded with the anchor
// header's version. A record whose version is cached refers to
// it by slot index and costs no payload bytes; otherwise the
// literal is transmitted and pushed to the front on both ends,
// evicting the oldest entry once 7 are held. Nothing on the
// wire re-synchronizes the caches: they stay consistent only
// because both sides apply identical updates in record order.
//
// ## Runs and Anchors
//
// A compressed stream carries records 2..N of an N-header run.
// Record 1, the anchor, travels out of band as a raw 80-byte
// header and seeds the codec state on both sides. The encoder
// cannot know a header is the last one until no successor
// arrives, so it holds each encoded record until the next
// Encode call; Flush stamps the run-end bit on the held record
// and releases it. This keeps the output append-only, which
// suits sinks that cannot seek.
//
// Decoding is strict: a truncated record, a version code
// referencing an unpopulated cache slot, or a control byte no
// encoder produces fails with ErrCorrupt, and the run cannot
// continue past the failure, because every later record
// depends on the reconstructed predecessor.
package zhdr
