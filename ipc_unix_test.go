// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package shmheap

import (
	"errors"
	"testing"
)

func TestUnixMapperGrow(t *testing.T) {
	b := unixBackend{dir: t.TempDir()}

	m, err := b.openMapper("region", true, 8192)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if got := m.Size(); got != 8192 {
		t.Fatalf("size %d, want 8192", got)
	}
	copy(m.Bytes()[100:], "persistent")

	if err := m.Grow(16384); err != nil {
		t.Fatal(err)
	}
	if got := m.Size(); got != 16384 {
		t.Fatalf("size after grow %d, want 16384", got)
	}
	if got := string(m.Bytes()[100:110]); got != "persistent" {
		t.Fatalf("content after grow: %q", got)
	}
	if err := m.Grow(8192); !errors.Is(err, &Error{Kind: ErrInvalidResize}) {
		t.Fatalf("shrink: err %v, want InvalidResize", err)
	}

	// A second handle maps the same backing file.
	m2, err := b.openMapper("region", false, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer m2.Close()
	if got := string(m2.Bytes()[100:110]); got != "persistent" {
		t.Fatalf("peer mapping reads %q", got)
	}
}

func TestUnixCounter(t *testing.T) {
	b := unixBackend{dir: t.TempDir()}

	c, err := b.openCounter("region_version_sem", true)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if v, err := c.Value(); err != nil || v != 0 {
		t.Fatalf("initial value %d err %v", v, err)
	}
	if v, err := c.Increment(); err != nil || v != 1 {
		t.Fatalf("increment: %d err %v", v, err)
	}

	c2, err := b.openCounter("region_version_sem", false)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	if v, err := c2.Value(); err != nil || v != 1 {
		t.Fatalf("peer value %d err %v", v, err)
	}
}

func TestUnixLock(t *testing.T) {
	b := unixBackend{dir: t.TempDir()}

	l1, err := b.openLock("region_write_sem", true)
	if err != nil {
		t.Fatal(err)
	}
	l2, err := b.openLock("region_write_sem", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := l1.Lock(-1, nil); err != nil {
		t.Fatal(err)
	}
	if err := l2.Lock(0, nil); !errors.Is(err, &Error{Kind: ErrBusy}) {
		t.Fatalf("contended trylock: err %v, want Busy", err)
	}

	interrupted := l2.Lock(-1, func() bool { return true })
	if interrupted != ErrInterrupted {
		t.Fatalf("interrupted lock: err %v, want ErrInterrupted", interrupted)
	}

	if err := l1.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := l2.Lock(0, nil); err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	if err := l2.Unlock(); err != nil {
		t.Fatal(err)
	}
}

func TestUnixRegionEndToEnd(t *testing.T) {
	t.Setenv("SHMHEAP_DIR", t.TempDir())

	r, err := Create("e2e", RegionConfig{HeapCapacity: 4096})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Unlink()

	if err := r.Write([]DictEntry{{StringKey("k"), int64(7)}}); err != nil {
		t.Fatal(err)
	}

	r2, err := Connect("e2e", RegionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()

	v, err := r2.Fetch(StringKey("k"))
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(7) {
		t.Fatalf(`peer fetch("k") = %v`, v)
	}

	if err := r.Resize(KeepCapacity, 8192); err != nil {
		t.Fatal(err)
	}
	if err := r2.Write(int64(9), StringKey("k")); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Fetch(StringKey("k")); v != int64(9) {
		t.Fatalf(`fetch("k") after peer write = %v`, v)
	}
	verifyHeap(t, r2)
}
