// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The block allocator: best-fit search over a single circular doubly
// linked free list, boundary-tag coalescing on free, and snapshot-copy
// growth on realloc.

package shmheap

import "github.com/cznic/mathutil"

// requiredSize returns the block size, in bytes, needed to hold n bytes
// of payload: header + n, rounded up to a word, clamped to the 4-word
// minimum a free block needs for its header, linkage and footer.
func requiredSize(n int64) int64 {
	sz := roundUpWord(wordSize + n)
	return mathutil.MaxInt64(sz, minBlockBytes)
}

// linkFree inserts the free block at off at the head of the circular
// doubly linked free list.
func (r *Region) linkFree(off int64) {
	head := r.FreeListHead()
	if head == NPTR {
		writeFwd(r, off, 0)
		writeBck(r, off, 0)
		r.setFreeListHead(off)
		return
	}

	bckOff := head + readBck(r, head)
	writeFwd(r, off, head-off)
	writeBck(r, off, bckOff-off)
	writeBck(r, head, off-head)
	writeFwd(r, bckOff, off-bckOff)
	r.setFreeListHead(off)
}

// unlinkFree removes the free block at off from the free list.
func (r *Region) unlinkFree(off int64) {
	fwdRel, bckRel := readFwd(r, off), readBck(r, off)
	if fwdRel == 0 && bckRel == 0 {
		r.setFreeListHead(NPTR)
		return
	}

	fwdOff, bckOff := off+fwdRel, off+bckRel
	writeFwd(r, bckOff, fwdOff-bckOff)
	writeBck(r, fwdOff, bckOff-fwdOff)
	if r.FreeListHead() == off {
		r.setFreeListHead(fwdOff)
	}
}

// findBestFit walks the free list circularly, tracking the smallest
// block whose size >= required, stopping early on an exact match.
func (r *Region) findBestFit(required int64) (int64, bool) {
	head := r.FreeListHead()
	if head == NPTR {
		return 0, false
	}

	bestOff := int64(-1)
	var bestSize int64
	off := head
	for {
		hdr := readHeader(r, off)
		if hdr.size == required {
			return off, true
		}
		if hdr.size > required && (bestOff == -1 || hdr.size < bestSize) {
			bestOff, bestSize = off, hdr.size
		}
		next := off + readFwd(r, off)
		if next == off || next == head {
			break
		}
		off = next
	}
	if bestOff == -1 {
		return 0, false
	}
	return bestOff, true
}

// Alloc allocates a block able to hold n bytes of payload and returns
// the payload offset, or 0 if no block is available. Plain exhaustion
// is a sentinel result, never an error.
func (r *Region) Alloc(n int64) (int64, error) {
	var payload int64
	err := r.WithWriteLock(-1, nil, func() error {
		off, err := r.allocLocked(n)
		if err != nil {
			return err
		}
		payload = off
		return nil
	})
	return payload, err
}

func (r *Region) allocLocked(n int64) (int64, error) {
	required := requiredSize(n)

	candidate, ok := r.findBestFit(required)
	if !ok {
		r.logOOM(n)
		return 0, nil
	}

	if err := waitBusy(r, candidate, -1, r.cfg.BusyWaitInterval); err != nil {
		r.logBusyTimeout(candidate)
		return 0, err
	}
	setBusy(r, candidate, true)

	hdr := readHeader(r, candidate)
	hdr.busy = false
	r.unlinkFree(candidate)

	remaining := hdr.size - required
	if remaining < minBlockBytes {
		required = hdr.size // no split
		remaining = 0
	}

	if remaining > 0 {
		splitOff := candidate + required
		splitHdr := blockHeader{size: remaining, prevAlloc: true, busy: true}
		writeHeader(r, splitOff, splitHdr)
		writeFwd(r, splitOff, 0)
		writeBck(r, splitOff, 0)
		writeFooter(r, splitOff, remaining)
		r.linkFree(splitOff)
		setBusy(r, splitOff, false)
	}

	newHdr := blockHeader{size: required, prevAlloc: hdr.prevAlloc, allocated: true}
	writeHeader(r, candidate, newHdr)

	nextOff := candidate + required
	if nextOff < r.heapSize() {
		nextHdr := readHeader(r, nextOff)
		nextHdr.prevAlloc = true
		writeHeader(r, nextOff, nextHdr)
	}

	return candidate + wordSize, nil
}

// Free deallocates the block at payload offset off.
func (r *Region) Free(off int64) error {
	return r.WithWriteLock(-1, nil, func() error {
		return r.freeLocked(off)
	})
}

func (r *Region) freeLocked(payload int64) error {
	if payload == 0 || payload == NPTR || payload%wordSize != 0 || payload < wordSize || payload >= r.heapSize() {
		return errInvalidPointer("invalid offset passed to Free", payload)
	}

	blockOff := payload - wordSize
	hdr := readHeader(r, blockOff)
	if !hdr.allocated {
		return errInvalidPointer("Free of an already-free block", blockOff)
	}

	hdr.busy = true
	hdr.allocated = false
	writeHeader(r, blockOff, hdr)
	r.linkFree(blockOff)
	writeFooter(r, blockOff, hdr.size)

	nextOff := blockOff + hdr.size
	if nextOff < r.heapSize() {
		nextHdr := readHeader(r, nextOff)
		nextHdr.prevAlloc = false
		writeHeader(r, nextOff, nextHdr)
	}

	r.coalesce(blockOff)
	return nil
}

// coalesce merges the free block at off with its free neighbours,
// left first then right, so no two free blocks are ever adjacent.
func (r *Region) coalesce(off int64) {
	var hdr blockHeader
	for {
		hdr = readHeader(r, off)
		if hdr.prevAlloc || off == 0 {
			break
		}
		prevSize := r.readWord(off - wordSize) // footer of previous block == its size
		prevOff := off - prevSize
		prevHdr := readHeader(r, prevOff)
		if prevHdr.allocated {
			break
		}

		r.unlinkFree(prevOff)
		merged := blockHeader{size: prevHdr.size + hdr.size, prevAlloc: prevHdr.prevAlloc, busy: true}
		writeHeader(r, prevOff, merged)
		writeFooter(r, prevOff, merged.size)
		r.unlinkFree(off)
		r.linkFree(prevOff)
		off = prevOff
	}

	for {
		hdr = readHeader(r, off)
		nextOff := off + hdr.size
		if nextOff >= r.heapSize() {
			break
		}
		nextHdr := readHeader(r, nextOff)
		if nextHdr.allocated {
			break
		}

		r.unlinkFree(nextOff)
		r.unlinkFree(off)
		merged := blockHeader{size: hdr.size + nextHdr.size, prevAlloc: hdr.prevAlloc, busy: true}
		writeHeader(r, off, merged)
		writeFooter(r, off, merged.size)
		r.linkFree(off)
	}

	setBusy(r, off, false)
}

// Realloc changes the size of the block at payload offset off to n
// bytes, preserving existing content up to min(old,new) length. n == 0
// is equivalent to Free; off == 0 is equivalent to Alloc.
func (r *Region) Realloc(off, n int64) (int64, error) {
	var result int64
	err := r.WithWriteLock(-1, nil, func() error {
		out, err := r.reallocLocked(off, n)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	return result, err
}

func (r *Region) reallocLocked(payload, n int64) (int64, error) {
	if n == 0 {
		if payload == 0 {
			return 0, nil
		}
		return 0, r.freeLocked(payload)
	}
	if payload == 0 {
		return r.allocLocked(n)
	}

	blockOff := payload - wordSize
	hdr := readHeader(r, blockOff)
	if !hdr.allocated {
		return 0, errInvalidPointer("Realloc of a free block", blockOff)
	}

	required := requiredSize(n)
	switch {
	case required == hdr.size:
		return payload, nil
	case required < hdr.size:
		gap := hdr.size - required
		if gap < minBlockBytes {
			// TODO: the gap is too small to carve into a standalone
			// free block; a fuller implementation could try to merge
			// it into a free right neighbour instead of wasting it.
			return payload, nil
		}

		shrunk := hdr
		shrunk.size = required
		writeHeader(r, blockOff, shrunk)

		tailOff := blockOff + required
		tailHdr := blockHeader{size: gap, prevAlloc: true, allocated: false}
		writeHeader(r, tailOff, tailHdr)
		writeFwd(r, tailOff, 0)
		writeBck(r, tailOff, 0)
		writeFooter(r, tailOff, gap)
		r.linkFree(tailOff)

		nextOff := tailOff + gap
		if nextOff < r.heapSize() {
			nextHdr := readHeader(r, nextOff)
			nextHdr.prevAlloc = false
			writeHeader(r, nextOff, nextHdr)
		}
		// TODO: the following block may be a free block; we could merge
		// the carved tail's bytes into it.
		return payload, nil
	default: // required > hdr.size: snapshot, free, alloc, copy back; no in-place growth
		old := r.readBytes(payload, hdr.size-wordSize)
		if err := r.freeLocked(payload); err != nil {
			return 0, err
		}
		newOff, err := r.allocLocked(n)
		if err != nil {
			return 0, err
		}
		if newOff == 0 {
			return 0, nil
		}
		cp := old
		if int64(len(cp)) > n {
			cp = cp[:n]
		}
		r.writeBytes(newOff, cp)
		return newOff, nil
	}
}
