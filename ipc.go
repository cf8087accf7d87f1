// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The named OS primitives a Region is built on: a byte-mapped region
// and three named semaphores. This file pins down the Go-side
// interface the rest of the package consumes: a small capability
// interface with one production implementation (ipc_unix.go) and one
// in-memory double (ipc_mem.go).

package shmheap

import "time"

// Mapper is a named, byte-addressed, growable memory mapping: the
// region's backing store. Bytes returns the current mapping; it is
// invalidated by a call to Grow.
type Mapper interface {
	// Bytes returns the live mapped buffer. The slice is only valid
	// until the next call to Grow or Close.
	Bytes() []byte

	// Size returns len(Bytes()).
	Size() int64

	// Grow resizes the mapping to newSize bytes, preserving the
	// existing prefix and zero-filling the new tail. newSize must be
	// >= Size(); shrinking is not supported.
	Grow(newSize int64) error

	// Close releases local resources (unmaps, closes file
	// descriptors) without destroying the named resource.
	Close() error

	// Unlink destroys the named resource. Only the owning process
	// should call this.
	Unlink() error
}

// NamedLock is a named, binary (counting-semaphore-of-one) mutex: the
// region's write lock.
type NamedLock interface {
	// Lock blocks until the lock is acquired or timeout elapses.
	// timeout < 0 waits indefinitely, timeout == 0 is non-blocking.
	// interrupt, if non-nil, is polled once per wait interval; if it
	// returns true, Lock aborts and returns ErrInterrupted.
	Lock(timeout time.Duration, interrupt func() bool) error
	Unlock() error
	Close() error
	Unlink() error
}

// NamedCounter is a named, monotonically-incrementing integer counter:
// the version and write-counter semaphores. Unlike a
// classical semaphore, nothing ever blocks on it — mutators Increment
// it and readers peek Value() to detect a change.
type NamedCounter interface {
	Value() (int64, error)
	Increment() (int64, error)
	Close() error
	Unlink() error
}

// ipcBackend bundles the three named primitives a region name resolves
// to, so Create/Connect can open all of them uniformly regardless of
// which concrete backend (OS-backed or in-memory) is in use.
type ipcBackend interface {
	openMapper(name string, create bool, initialSize int64) (Mapper, error)
	openLock(name string, create bool) (NamedLock, error)
	openCounter(name string, create bool) (NamedCounter, error)
}
