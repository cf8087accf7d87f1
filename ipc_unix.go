// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

// The production named-OS-primitive backend. A named region is backed
// by a regular file under a shared directory, memory mapped with
// unix.Mmap/unix.Munmap and grown by Munmap, Truncate, Mmap. The write
// lock is a lock file whose advisory flock(2) is held for the whole
// critical section. The version and counter semaphores are 8-byte
// counter files, each read-modify-written under a flock(2) on a
// sidecar "<file>.lock".

package shmheap

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

type unixBackend struct {
	dir string // directory holding the named backing files
}

func defaultUnixBackend() unixBackend {
	dir := os.Getenv("SHMHEAP_DIR")
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "shmheap")
	}
	return unixBackend{dir: dir}
}

func (b unixBackend) path(name string) string {
	return filepath.Join(b.dir, name)
}

func (b unixBackend) openMapper(name string, create bool, initialSize int64) (Mapper, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, errOS("mkdir region dir", err)
	}

	path := b.path(name)
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, errOS("open region file "+path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errOS("stat region file", err)
	}

	size := fi.Size()
	if create && size == 0 {
		if err := f.Truncate(initialSize); err != nil {
			f.Close()
			return nil, errOS("truncate region file", err)
		}
		size = initialSize
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errOS("mmap region", err)
	}

	return &unixMapper{f: f, data: data, path: path}, nil
}

func (b unixBackend) openLock(name string, create bool) (NamedLock, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, errOS("mkdir region dir", err)
	}
	path := b.path(name)
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, errOS("open lock file "+path, err)
	}
	f.Close() // flock reopens the path itself

	return &unixLock{fl: flock.New(path)}, nil
}

func (b unixBackend) openCounter(name string, create bool) (NamedCounter, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, errOS("mkdir region dir", err)
	}
	path := b.path(name)
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, errOS("open counter file "+path, err)
	}
	if fi, err := f.Stat(); err == nil && fi.Size() < 8 {
		if err := f.Truncate(8); err != nil {
			f.Close()
			return nil, errOS("truncate counter file", err)
		}
	}

	return &unixCounter{f: f, fl: flock.New(path + ".lock")}, nil
}

// unixMapper is a Mapper backed by a memory-mapped regular file.
type unixMapper struct {
	f    *os.File
	data []byte
	path string
}

func (m *unixMapper) Bytes() []byte { return m.data }
func (m *unixMapper) Size() int64   { return int64(len(m.data)) }

func (m *unixMapper) Grow(newSize int64) error {
	old := int64(len(m.data))
	if newSize < old {
		return errInvalidResize("shrink not supported")
	}
	if newSize == old {
		return nil
	}

	if err := unix.Munmap(m.data); err != nil {
		return errOS("munmap", err)
	}
	if err := m.f.Truncate(newSize); err != nil {
		return errOS("truncate region file", err)
	}
	data, err := unix.Mmap(int(m.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errOS("remap region", err)
	}
	m.data = data
	return nil
}

func (m *unixMapper) Close() error {
	if m.data != nil {
		unix.Munmap(m.data)
		m.data = nil
	}
	return m.f.Close()
}

func (m *unixMapper) Unlink() error {
	m.Close()
	return os.Remove(m.path)
}

// unixLock is a NamedLock backed by flock(2) via gofrs/flock, with
// software-polled timeout/interrupt semantics layered on top since
// flock itself only offers blocking/non-blocking tries.
type unixLock struct {
	fl *flock.Flock
}

func (l *unixLock) Lock(timeout time.Duration, interrupt func() bool) error {
	if timeout == 0 {
		ok, err := l.fl.TryLock()
		if err != nil {
			return errOS("flock trylock", err)
		}
		if !ok {
			return errBusy(0)
		}
		return nil
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return errOS("flock trylock", err)
		}
		if ok {
			return nil
		}
		if interrupt != nil && interrupt() {
			return ErrInterrupted
		}
		if timeout > 0 && time.Now().After(deadline) {
			return errBusy(0)
		}
		time.Sleep(time.Millisecond)
	}
}

func (l *unixLock) Unlock() error { return l.fl.Unlock() }
func (l *unixLock) Close() error  { return l.fl.Unlock() }
func (l *unixLock) Unlink() error { return os.Remove(l.fl.Path()) }

// unixCounter is a NamedCounter backed by an 8-byte little-endian
// counter in a regular file, read-modify-written under flock.
type unixCounter struct {
	f  *os.File
	fl *flock.Flock
}

func (c *unixCounter) Value() (int64, error) {
	if err := c.fl.Lock(); err != nil {
		return 0, errOS("flock lock", err)
	}
	defer c.fl.Unlock()

	var b [8]byte
	if _, err := c.f.ReadAt(b[:], 0); err != nil {
		return 0, errOS("read counter", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (c *unixCounter) Increment() (int64, error) {
	if err := c.fl.Lock(); err != nil {
		return 0, errOS("flock lock", err)
	}
	defer c.fl.Unlock()

	var b [8]byte
	if _, err := c.f.ReadAt(b[:], 0); err != nil {
		return 0, errOS("read counter", err)
	}
	v := binary.LittleEndian.Uint64(b[:]) + 1
	binary.LittleEndian.PutUint64(b[:], v)
	if _, err := c.f.WriteAt(b[:], 0); err != nil {
		return 0, errOS("write counter", err)
	}
	return int64(v), nil
}

func (c *unixCounter) Close() error {
	c.fl.Unlock()
	return c.f.Close()
}

func (c *unixCounter) Unlink() error {
	c.Close()
	os.Remove(c.fl.Path())
	return os.Remove(c.f.Name())
}
