// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The region manager: create/connect/resize/close/unlink over a named
// mapped region, plus the version counter peers consult to notice a
// remap.

package shmheap

import (
	"strconv"
	"sync"
	"time"

	"github.com/cznic/mathutil"
	"github.com/sirupsen/logrus"
)

// KeepCapacity tells Resize to leave the corresponding capacity
// unchanged.
const KeepCapacity int64 = -1

const (
	minStaticCapacity = headerBytes
	defaultPageSize   = 4096
)

// RegionConfig amends Create/Connect: a plain, checked-once struct
// rather than a flag/env configuration loader, since this package has
// no CLI surface.
type RegionConfig struct {
	// StaticCapacity is the minimum static header size in bytes.
	// Padded up to a word multiple and clamped to at least 4 words.
	StaticCapacity int64

	// HeapCapacity is the minimum heap size in bytes. Padded up to a
	// multiple of defaultPageSize (4096 bytes); the host's actual page
	// size is not consulted.
	HeapCapacity int64

	// BusyWaitInterval overrides the 1ms busy-bit poll interval (0
	// keeps the default).
	BusyWaitInterval time.Duration

	// Logger, if non-nil, receives structured events for resizes,
	// busy-wait timeouts and failed allocations. Ambient only; the core
	// never requires a logger.
	Logger *logrus.Logger

	// backend overrides the named-primitive backend; nil selects the
	// OS-backed implementation. Exposed only to tests in this package
	// (lower-case, unexported) via WithMemBackend.
	backend ipcBackend
}

// WithMemBackend returns cfg configured to use the in-memory,
// same-process backend (ipc_mem.go) instead of real OS shared
// memory.
func (cfg RegionConfig) WithMemBackend() RegionConfig {
	cfg.backend = memBackend{}
	return cfg
}

// Region is a handle on a mapped shared-memory region plus its three
// named semaphores. Safe for concurrent use by multiple goroutines
// within one process: bkl serializes this handle's mutators around the
// cross-process write lock (whose flock-backed implementation is not
// goroutine safe on its own), and that write lock plus the busy bit
// are what make mutation safe across processes too.
type Region struct {
	bkl sync.Mutex // serializes this handle's mutators

	name   string
	cfg    RegionConfig
	owner  bool
	mapper Mapper

	writeLock NamedLock
	versionS  NamedCounter
	counterS  NamedCounter

	cachedVersion int64
	entrance      int64 // not read or written; EntranceOffset and setEntranceOffset use slot 3 directly
}

func (r *Region) logger() *logrus.Logger { return r.cfg.Logger }

func backendFor(cfg RegionConfig) ipcBackend {
	if cfg.backend != nil {
		return cfg.backend
	}
	b := defaultUnixBackend()
	return b
}

func clampStaticCapacity(n int64) int64 {
	return mathutil.MaxInt64(roundUpWord(n), minStaticCapacity)
}

func clampHeapCapacity(n int64) int64 {
	return mathutil.MaxInt64(roundUp(n, defaultPageSize), defaultPageSize)
}

// Create creates a brand-new named region. It fails if the name is
// already in use.
func Create(name string, cfg RegionConfig) (*Region, error) {
	staticCap := clampStaticCapacity(cfg.StaticCapacity)
	heapCap := clampHeapCapacity(cfg.HeapCapacity)

	backend := backendFor(cfg)
	if existing, err := backend.openMapper(name, false, 0); err == nil {
		existing.Close()
		return nil, errOS("region "+name+" already exists", nil)
	}
	mapper, err := backend.openMapper(name, true, staticCap+heapCap)
	if err != nil {
		return nil, err
	}
	writeLock, err := backend.openLock(name+"_write_sem", true)
	if err != nil {
		mapper.Close()
		return nil, err
	}
	versionS, err := backend.openCounter(name+"_version_sem", true)
	if err != nil {
		mapper.Close()
		writeLock.Close()
		return nil, err
	}
	counterS, err := backend.openCounter(name+"_counter_sem", true)
	if err != nil {
		mapper.Close()
		writeLock.Close()
		versionS.Close()
		return nil, err
	}

	r := &Region{
		name:      name,
		cfg:       cfg,
		owner:     true,
		mapper:    mapper,
		writeLock: writeLock,
		versionS:  versionS,
		counterS:  counterS,
	}

	r.putSlot(slotStaticCapacity, staticCap)
	r.putSlot(slotHeapCapacity, heapCap)
	r.putSlot(slotFreeListHead, 0)
	r.putSlot(slotEntranceOffset, NPTR)

	// One free block spanning the entire heap, self-linked.
	hdr := blockHeader{size: heapCap, prevAlloc: true, allocated: false}
	writeHeader(r, 0, hdr)
	writeFwd(r, 0, 0)
	writeBck(r, 0, 0)
	writeFooter(r, 0, heapCap)

	v, err := versionS.Value()
	if err != nil {
		return nil, err
	}
	r.cachedVersion = v
	return r, nil
}

// Connect attaches to an existing named region.
func Connect(name string, cfg RegionConfig) (*Region, error) {
	backend := backendFor(cfg)
	mapper, err := backend.openMapper(name, false, 0)
	if err != nil {
		return nil, errNotConnected(err.Error())
	}
	if mapper.Size() < minStaticCapacity {
		mapper.Close()
		return nil, errNotConnected("region too small to hold a header")
	}
	writeLock, err := backend.openLock(name+"_write_sem", false)
	if err != nil {
		mapper.Close()
		return nil, errNotConnected(err.Error())
	}
	versionS, err := backend.openCounter(name+"_version_sem", false)
	if err != nil {
		mapper.Close()
		writeLock.Close()
		return nil, errNotConnected(err.Error())
	}
	counterS, err := backend.openCounter(name+"_counter_sem", false)
	if err != nil {
		mapper.Close()
		writeLock.Close()
		versionS.Close()
		return nil, errNotConnected(err.Error())
	}

	r := &Region{
		name:      name,
		cfg:       cfg,
		owner:     false,
		mapper:    mapper,
		writeLock: writeLock,
		versionS:  versionS,
		counterS:  counterS,
	}
	v, err := versionS.Value()
	if err != nil {
		return nil, err
	}
	r.cachedVersion = v
	return r, nil
}

// Close releases this handle's local resources. It does not destroy
// the named region.
func (r *Region) Close() error {
	r.writeLock.Close()
	r.versionS.Close()
	r.counterS.Close()
	return r.mapper.Close()
}

// Unlink destroys the named region. Only the owning process (the one
// that called Create) should call this.
func (r *Region) Unlink() error {
	if !r.owner {
		return errOS("Unlink called by a non-owner handle", nil)
	}
	r.writeLock.Unlink()
	r.versionS.Unlink()
	r.counterS.Unlink()
	return r.mapper.Unlink()
}

// ---- static header slots ----

func (r *Region) slot(i int) int64 {
	b := r.mapper.Bytes()
	return getWord(b[i*wordSize : i*wordSize+wordSize])
}

func (r *Region) putSlot(i int, v int64) {
	b := r.mapper.Bytes()
	putWord(b[i*wordSize:i*wordSize+wordSize], v)
}

func (r *Region) staticCapacity() int64 { return r.slot(slotStaticCapacity) }
func (r *Region) heapCapacity() int64   { return r.slot(slotHeapCapacity) }

// FreeListHead returns the offset, relative to heap start, of one
// member of the free list, or NPTR if empty.
func (r *Region) FreeListHead() int64     { return r.slot(slotFreeListHead) }
func (r *Region) setFreeListHead(v int64) { r.putSlot(slotFreeListHead, v) }

// EntranceOffset returns the root user object's offset, or NPTR.
func (r *Region) EntranceOffset() int64     { return r.slot(slotEntranceOffset) }
func (r *Region) setEntranceOffset(v int64) { r.putSlot(slotEntranceOffset, v) }

// ---- heapView: byte access relative to heap start ----

func (r *Region) heapSize() int64 { return r.heapCapacity() }

func (r *Region) readWord(off int64) int64 {
	base := r.staticCapacity()
	b := r.mapper.Bytes()
	return getWord(b[base+off : base+off+wordSize])
}

func (r *Region) writeWord(off int64, v int64) {
	base := r.staticCapacity()
	b := r.mapper.Bytes()
	putWord(b[base+off:base+off+wordSize], v)
}

func (r *Region) readBytes(off, n int64) []byte {
	base := r.staticCapacity()
	b := r.mapper.Bytes()
	out := make([]byte, n)
	copy(out, b[base+off:base+off+n])
	return out
}

func (r *Region) writeBytes(off int64, p []byte) {
	base := r.staticCapacity()
	b := r.mapper.Bytes()
	copy(b[base+off:base+off+int64(len(p))], p)
}

// ---- version / remap protocol ----

// checkVersion compares the cached version to the semaphore and, if
// they differ, is a signal to the caller's caller that a remap is due.
// A Region itself has nothing to "remap" beyond re-reading Bytes() from
// its Mapper (the Mapper already tracks the live mapping); for an
// OS-backed region that mapping is only replaced by a local resize
// (see Resize) or by Reopen below, used by a process that wasn't the
// one performing the resize.
func (r *Region) checkVersion() error {
	v, err := r.versionS.Value()
	if err != nil {
		return err
	}
	if v != r.cachedVersion {
		return errVersionChanged()
	}
	return nil
}

// Reopen re-attaches the mapping after a VersionChanged error from a
// peer process's resize: close the stale mapping, open a fresh one
// (possibly at a new size/address) and refresh the cached version.
func (r *Region) Reopen() error {
	if err := r.mapper.Close(); err != nil {
		return err
	}
	backend := backendFor(r.cfg)
	mapper, err := backend.openMapper(r.name, false, 0)
	if err != nil {
		return errNotConnected(err.Error())
	}
	r.mapper = mapper
	v, err := r.versionS.Value()
	if err != nil {
		return err
	}
	r.cachedVersion = v
	return nil
}

// WithWriteLock acquires the in-process mutex and then the
// cross-process write lock, runs f, and releases both unconditionally.
// A version change observed while the lock is held triggers a remap
// before f runs, so f always sees the current mapping.
func (r *Region) WithWriteLock(timeout time.Duration, interrupt func() bool, f func() error) error {
	r.bkl.Lock()
	defer r.bkl.Unlock()

	if err := r.writeLock.Lock(timeout, interrupt); err != nil {
		return err
	}
	defer r.writeLock.Unlock()

	if err := r.checkVersion(); err != nil {
		if err := r.Reopen(); err != nil {
			return err
		}
	}

	err := f()
	if err == nil {
		r.counterS.Increment()
	}
	return err
}

// ---- resize ----

// Resize grows the region's static and/or heap capacity. Pass
// KeepCapacity to leave one of them unchanged. Shrinking either is
// rejected with InvalidResize.
func (r *Region) Resize(newStaticCap, newHeapCap int64) error {
	return r.WithWriteLock(-1, nil, func() error {
		return r.resizeLocked(newStaticCap, newHeapCap)
	})
}

func (r *Region) resizeLocked(newStaticCap, newHeapCap int64) error {
	oldStatic := r.staticCapacity()
	oldHeap := r.heapCapacity()

	if newStaticCap == KeepCapacity {
		newStaticCap = oldStatic
	} else {
		newStaticCap = clampStaticCapacity(newStaticCap)
		if newStaticCap < oldStatic {
			return errInvalidResize("static capacity shrink rejected")
		}
	}
	if newHeapCap == KeepCapacity {
		newHeapCap = oldHeap
	} else {
		newHeapCap = clampHeapCapacity(newHeapCap)
		if newHeapCap < oldHeap {
			return errInvalidResize("heap capacity shrink rejected")
		}
	}
	if newStaticCap == oldStatic && newHeapCap == oldHeap {
		return nil
	}

	// 2. locate the last block (by address) before touching anything.
	lastOff, lastHdr, err := r.lastBlock()
	if err != nil {
		return err
	}

	// 3. signal other processes that a remap is coming.
	if _, err := r.versionS.Increment(); err != nil {
		return err
	}

	// 4. snapshot+grow+restore.
	oldHeapBytes := r.readBytes(0, oldHeap)
	newTotal := newStaticCap + newHeapCap
	if err := r.mapper.Grow(newTotal); err != nil {
		return err
	}
	if newStaticCap != oldStatic {
		// heap moved: write it back at its new base, then the static
		// slots (which always live at absolute offset 0..headerBytes).
		b := r.mapper.Bytes()
		copy(b[newStaticCap:newStaticCap+oldHeap], oldHeapBytes)
	}
	r.putSlot(slotStaticCapacity, newStaticCap)
	r.putSlot(slotHeapCapacity, newHeapCap)

	// 5. extend the last block into the new tail space.
	extra := newHeapCap - oldHeap
	if extra > 0 {
		if extra >= minBlockBytes && lastHdr.allocated {
			hdr := blockHeader{size: extra, prevAlloc: true, allocated: false}
			writeHeader(r, lastOff+lastHdr.size, hdr)
			writeFwd(r, lastOff+lastHdr.size, 0)
			writeBck(r, lastOff+lastHdr.size, 0)
			writeFooter(r, lastOff+lastHdr.size, extra)
			r.linkFree(lastOff + lastHdr.size)
		} else {
			grown := lastHdr
			grown.size += extra
			writeHeader(r, lastOff, grown)
			if !grown.allocated {
				writeFooter(r, lastOff, grown.size)
			}
		}
	}

	if logger := r.logger(); logger != nil {
		logger.WithFields(logrus.Fields{
			"region":    r.name,
			"staticCap": newStaticCap,
			"heapCap":   newHeapCap,
		}).Info("shmheap: region resized")
	}

	v, err := r.versionS.Value()
	if err != nil {
		return err
	}
	r.cachedVersion = v
	return nil
}

// lastBlock walks the block chain from heap start to find the last
// block's offset and header.
func (r *Region) lastBlock() (int64, blockHeader, error) {
	heapCap := r.heapCapacity()
	var off int64
	var hdr blockHeader
	for off < heapCap {
		hdr = readHeader(r, off)
		if hdr.size < minBlockBytes {
			return 0, blockHeader{}, &Error{Kind: ErrOS, Msg: "corrupt block chain", Off: off}
		}
		if off+hdr.size >= heapCap {
			return off, hdr, nil
		}
		off += hdr.size
	}
	return 0, blockHeader{}, &Error{Kind: ErrOS, Msg: "empty heap"}
}

// BriefLayout walks the block chain and returns each block's size less
// the header word, in address order.
func (r *Region) BriefLayout() []int64 {
	heapCap := r.heapCapacity()
	var out []int64
	var off int64
	for off < heapCap {
		hdr := readHeader(r, off)
		if hdr.size < minBlockBytes {
			break
		}
		out = append(out, hdr.size-wordSize)
		off += hdr.size
	}
	return out
}

// DumpLayout renders the block chain as a compact string like
// "256A, 3824E": BriefLayout's figures tagged A for allocated blocks
// and E for free ones.
func (r *Region) DumpLayout() string {
	heapCap := r.heapCapacity()
	var out string
	var off int64
	first := true
	for off < heapCap {
		hdr := readHeader(r, off)
		if hdr.size < minBlockBytes {
			break
		}
		tag := "E"
		if hdr.allocated {
			tag = "A"
		}
		if !first {
			out += ", "
		}
		first = false
		out += itoa(hdr.size-wordSize) + tag
		off += hdr.size
	}
	return out
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
