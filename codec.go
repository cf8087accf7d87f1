// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shmheap

// Little-endian machine-word codec for the region's byte layout. Hand
// rolled rather than routed through encoding/binary: every value here
// is a raw signed/unsigned offset or word, never a length-prefixed
// stream, so a binary.ByteOrder indirection buys nothing.

func putWord(b []byte, v int64) {
	_ = b[7]
	u := uint64(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
	b[4] = byte(u >> 32)
	b[5] = byte(u >> 40)
	b[6] = byte(u >> 48)
	b[7] = byte(u >> 56)
}

func getWord(b []byte) int64 {
	_ = b[7]
	u := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
	return int64(u)
}

func putWordU(b []byte, v uint64) { putWord(b, int64(v)) }
func getWordU(b []byte) uint64    { return uint64(getWord(b)) }

// putUintN and getUintN encode/decode an unsigned value in exactly n
// little-endian bytes, for primitive-array element widths narrower
// than a full word (1, 2 or 4 bytes).
func putUintN(b []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func getUintN(b []byte, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

// roundUpWord rounds n up to a multiple of wordSize.
func roundUpWord(n int64) int64 {
	return (n + wordSize - 1) &^ (wordSize - 1)
}

// roundUp rounds n up to a multiple of m (m a power of two).
func roundUp(n, m int64) int64 {
	return (n + m - 1) &^ (m - 1)
}
