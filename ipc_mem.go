// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// An in-process, allocation-light stand-in for the named OS primitives,
// registered in a small process-wide name table so multiple Region
// handles opened with the same name observe the same bytes, exactly
// like two processes mapping the same shared-memory name would.

package shmheap

import (
	"sync"
	"time"
)

type memBackend struct{}

var memRegistry = struct {
	sync.Mutex
	mappers  map[string]*memMapper
	locks    map[string]*memLock
	counters map[string]*memCounter
}{
	mappers:  map[string]*memMapper{},
	locks:    map[string]*memLock{},
	counters: map[string]*memCounter{},
}

func (memBackend) openMapper(name string, create bool, initialSize int64) (Mapper, error) {
	memRegistry.Lock()
	defer memRegistry.Unlock()

	m, ok := memRegistry.mappers[name]
	if !ok {
		if !create {
			return nil, errOS("no such in-memory region "+name, nil)
		}
		m = &memMapper{buf: make([]byte, initialSize)}
		memRegistry.mappers[name] = m
	}
	return m, nil
}

func (memBackend) openLock(name string, create bool) (NamedLock, error) {
	memRegistry.Lock()
	defer memRegistry.Unlock()

	l, ok := memRegistry.locks[name]
	if !ok {
		if !create {
			return nil, errOS("no such in-memory lock "+name, nil)
		}
		l = &memLock{}
		memRegistry.locks[name] = l
	}
	return l, nil
}

func (memBackend) openCounter(name string, create bool) (NamedCounter, error) {
	memRegistry.Lock()
	defer memRegistry.Unlock()

	c, ok := memRegistry.counters[name]
	if !ok {
		if !create {
			return nil, errOS("no such in-memory counter "+name, nil)
		}
		c = &memCounter{}
		memRegistry.counters[name] = c
	}
	return c, nil
}

// memMapper is a Mapper backed by a plain Go byte slice shared by
// reference across every handle that opened the same name.
type memMapper struct {
	mu  sync.RWMutex
	buf []byte
}

func (m *memMapper) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buf
}

func (m *memMapper) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.buf))
}

func (m *memMapper) Grow(newSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if newSize < int64(len(m.buf)) {
		return errInvalidResize("shrink not supported")
	}
	grown := make([]byte, newSize)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

// Close and Unlink are no-ops: the registry keeps the name and its bytes
// for the life of the process.
func (m *memMapper) Close() error  { return nil }
func (m *memMapper) Unlink() error { return nil }

// memLock is a NamedLock backed by a buffered channel of capacity 1,
// acting as a binary semaphore with pollable, interruptible acquire,
// the in-process analog of a counting semaphore initialized to 1.
type memLock struct {
	once sync.Once
	ch   chan struct{}
}

func (l *memLock) init() {
	l.once.Do(func() {
		l.ch = make(chan struct{}, 1)
		l.ch <- struct{}{}
	})
}

func (l *memLock) Lock(timeout time.Duration, interrupt func() bool) error {
	l.init()
	if timeout == 0 {
		select {
		case <-l.ch:
			return nil
		default:
			return errBusy(0)
		}
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		select {
		case <-l.ch:
			return nil
		default:
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

func (l *memLock) Unlock() error {
	l.init()
	select {
	case l.ch <- struct{}{}:
		return nil
	default:
		return errOS("unlock of unlocked memLock", nil)
	}
}

func (l *memLock) Close() error  { return nil }
func (l *memLock) Unlink() error { return nil }

// memCounter is a NamedCounter backed by an int64 guarded by a mutex.
type memCounter struct {
	mu sync.Mutex
	v  int64
}

func (c *memCounter) Value() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v, nil
}

func (c *memCounter) Increment() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v++
	return c.v, nil
}

func (c *memCounter) Close() error  { return nil }
func (c *memCounter) Unlink() error { return nil }
