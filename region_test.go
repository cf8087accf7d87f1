// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shmheap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCreateInitialState(t *testing.T) {
	r := newTestRegion(t, 4096)

	if got := r.staticCapacity(); got != headerBytes {
		t.Fatalf("static capacity %d, want %d", got, headerBytes)
	}
	if got := r.heapCapacity(); got != 4096 {
		t.Fatalf("heap capacity %d, want 4096", got)
	}
	if got := r.EntranceOffset(); got != NPTR {
		t.Fatalf("entrance %#x, want NPTR", got)
	}
	if got := r.FreeListHead(); got != 0 {
		t.Fatalf("free list head %#x, want 0", got)
	}
	if got := r.DumpLayout(); got != "4088E" {
		t.Fatalf("initial layout: %s", got)
	}
	verifyHeap(t, r)
}

func TestCapacityClamping(t *testing.T) {
	name := fmt.Sprintf("test_%d", atomic.AddInt64(&testRegionSeq, 1))
	r, err := Create(name, RegionConfig{StaticCapacity: 80, HeapCapacity: 1024}.WithMemBackend())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.staticCapacity(); got != 80 {
		t.Fatalf("static capacity %d, want 80", got)
	}
	if got := r.heapCapacity(); got != 4096 {
		t.Fatalf("heap capacity %d, want page-padded 4096", got)
	}
}

func TestResizePreservesContent(t *testing.T) {
	r := newTestRegion(t, 4096)

	r.writeBytes(900, []byte{1, 2, 3, 4})
	v0 := r.cachedVersion

	if err := r.Resize(KeepCapacity, 8192); err != nil {
		t.Fatal(err)
	}
	if got := r.heapCapacity(); got != 8192 {
		t.Fatalf("heap capacity %d, want 8192", got)
	}
	if got := r.readBytes(900, 4); !bytesEqual(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("content at 900 after resize: %v", got)
	}
	if r.cachedVersion != v0+1 {
		t.Fatalf("version %d, want %d", r.cachedVersion, v0+1)
	}

	// The last block was free: the tail extension merges into it.
	if got := r.DumpLayout(); got != "8184E" {
		t.Fatalf("layout after resize: %s", got)
	}
	verifyHeap(t, r)
}

func TestResizeExtendsAllocatedTail(t *testing.T) {
	r := newTestRegion(t, 4096)

	// Fill the heap completely so the last block is allocated.
	var offs []int64
	for {
		off, err := r.Alloc(4000)
		if err != nil {
			t.Fatal(err)
		}
		if off == 0 {
			break
		}
		offs = append(offs, off)
	}
	for {
		off, err := r.Alloc(1)
		if err != nil {
			t.Fatal(err)
		}
		if off == 0 {
			break
		}
		offs = append(offs, off)
	}

	if err := r.Resize(KeepCapacity, 8192); err != nil {
		t.Fatal(err)
	}
	// The extension becomes a standalone free block.
	if got := r.DumpLayout(); got[len(got)-5:] != "4088E" {
		t.Fatalf("layout after resize: %s", got)
	}
	verifyHeap(t, r)

	for _, off := range offs {
		if err := r.Free(off); err != nil {
			t.Fatal(err)
		}
	}
	if got := r.DumpLayout(); got != "8184E" {
		t.Fatalf("layout after freeing all: %s", got)
	}
}

func TestResizeGrowsStatic(t *testing.T) {
	r := newTestRegion(t, 4096)

	off, err := r.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	r.writeBytes(off, []byte("static move"))

	if err := r.Resize(128, KeepCapacity); err != nil {
		t.Fatal(err)
	}
	if got := r.staticCapacity(); got != 128 {
		t.Fatalf("static capacity %d, want 128", got)
	}
	if got := string(r.readBytes(off, 11)); got != "static move" {
		t.Fatalf("heap content after static grow: %q", got)
	}
	verifyHeap(t, r)
}

func TestResizeRejectsShrink(t *testing.T) {
	r := newTestRegion(t, 8192)

	if err := r.Resize(KeepCapacity, 4096); !errors.Is(err, &Error{Kind: ErrInvalidResize}) {
		t.Fatalf("heap shrink: err %v, want InvalidResize", err)
	}
	if got := r.heapCapacity(); got != 8192 {
		t.Fatalf("failed resize changed heap capacity to %d", got)
	}
	verifyHeap(t, r)
}

func TestConnectSharesBytes(t *testing.T) {
	name := fmt.Sprintf("test_%d", atomic.AddInt64(&testRegionSeq, 1))
	cfg := RegionConfig{HeapCapacity: 4096}.WithMemBackend()

	r1, err := Create(name, cfg)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Connect(name, cfg)
	if err != nil {
		t.Fatal(err)
	}

	off, err := r1.Alloc(32)
	if err != nil {
		t.Fatal(err)
	}
	r1.writeBytes(off, []byte("shared"))

	if got := string(r2.readBytes(off, 6)); got != "shared" {
		t.Fatalf("peer handle reads %q", got)
	}
	verifyHeap(t, r2)
}

func TestConnectMissingRegion(t *testing.T) {
	_, err := Connect("test_never_created", RegionConfig{}.WithMemBackend())
	if !errors.Is(err, &Error{Kind: ErrNotConnected}) {
		t.Fatalf("err %v, want NotConnected", err)
	}
}

func TestPeerRemapsAfterResize(t *testing.T) {
	name := fmt.Sprintf("test_%d", atomic.AddInt64(&testRegionSeq, 1))
	cfg := RegionConfig{HeapCapacity: 4096}.WithMemBackend()

	r1, err := Create(name, cfg)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Connect(name, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := r1.Resize(KeepCapacity, 8192); err != nil {
		t.Fatal(err)
	}

	if err := r2.checkVersion(); !errors.Is(err, &Error{Kind: ErrVersionChanged}) {
		t.Fatalf("peer checkVersion: err %v, want VersionChanged", err)
	}
	if err := r2.Reopen(); err != nil {
		t.Fatal(err)
	}
	if err := r2.checkVersion(); err != nil {
		t.Fatalf("after remap: %v", err)
	}
	if got := r2.heapCapacity(); got != 8192 {
		t.Fatalf("peer heap capacity %d, want 8192", got)
	}

	// A locked mutation on the peer remaps transparently.
	if err := r2.WithWriteLock(-1, nil, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	verifyHeap(t, r2)
}

func TestWriteCounterIncrements(t *testing.T) {
	r := newTestRegion(t, 4096)

	v0, err := r.counterS.Value()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Alloc(16); err != nil {
		t.Fatal(err)
	}
	v1, err := r.counterS.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v0+1 {
		t.Fatalf("write counter %d -> %d, want one increment", v0, v1)
	}
}

func TestWriteLockSerializesGoroutines(t *testing.T) {
	r := newTestRegion(t, 65536)

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				off, err := r.Alloc(24)
				if err != nil {
					errs <- err
					return
				}
				if off == 0 {
					errs <- errOOM("concurrent alloc", 24)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	allocated := 0
	for _, hdr := range blockHeaders(r) {
		if hdr.allocated {
			allocated++
		}
	}
	if allocated != workers*perWorker {
		t.Fatalf("%d allocated blocks, want %d", allocated, workers*perWorker)
	}
	verifyHeap(t, r)
}

func blockHeaders(r *Region) []blockHeader {
	var out []blockHeader
	heapCap := r.heapCapacity()
	var off int64
	for off < heapCap {
		hdr := readHeader(r, off)
		out = append(out, hdr)
		off += hdr.size
	}
	return out
}

func TestUnlinkNonOwnerRejected(t *testing.T) {
	name := fmt.Sprintf("test_%d", atomic.AddInt64(&testRegionSeq, 1))
	cfg := RegionConfig{HeapCapacity: 4096}.WithMemBackend()

	if _, err := Create(name, cfg); err != nil {
		t.Fatal(err)
	}
	r2, err := Connect(name, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := r2.Unlink(); err == nil {
		t.Fatal("non-owner Unlink succeeded")
	}
}
