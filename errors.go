// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shmheap

import "fmt"

// ErrKind discriminates the package's error kinds.
type ErrKind int

const (
	ErrNotConnected ErrKind = iota
	ErrInvalidResize
	ErrOutOfMemory
	ErrInvalidPointer
	ErrIndex
	ErrKey
	ErrType
	ErrBusy
	ErrVersionChanged
	ErrOS
)

func (k ErrKind) String() string {
	switch k {
	case ErrNotConnected:
		return "NotConnected"
	case ErrInvalidResize:
		return "InvalidResize"
	case ErrOutOfMemory:
		return "OutOfMemory"
	case ErrInvalidPointer:
		return "InvalidPointer"
	case ErrIndex:
		return "IndexError"
	case ErrKey:
		return "KeyError"
	case ErrType:
		return "TypeError"
	case ErrBusy:
		return "Busy"
	case ErrVersionChanged:
		return "VersionChanged"
	case ErrOS:
		return "OSError"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned across the package's API
// boundary: a small struct carrying a message plus whatever
// offset/argument context is useful.
type Error struct {
	Kind ErrKind
	Msg  string
	Off  int64 // offset in the region, when applicable, else 0
	Arg  int64 // secondary integer context (index, handle, etc.)
}

func (e *Error) Error() string {
	if e.Off != 0 || e.Arg != 0 {
		return fmt.Sprintf("shmheap: %s: %s (off=%#x arg=%d)", e.Kind, e.Msg, e.Off, e.Arg)
	}
	return fmt.Sprintf("shmheap: %s: %s", e.Kind, e.Msg)
}

// Is supports errors.Is comparisons against a bare ErrKind-tagged
// sentinel created with &Error{Kind: k}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func errNotConnected(msg string) error  { return &Error{Kind: ErrNotConnected, Msg: msg} }
func errInvalidResize(msg string) error { return &Error{Kind: ErrInvalidResize, Msg: msg} }
func errOOM(msg string, n int64) error  { return &Error{Kind: ErrOutOfMemory, Msg: msg, Arg: n} }
func errInvalidPointer(msg string, off int64) error {
	return &Error{Kind: ErrInvalidPointer, Msg: msg, Off: off}
}
func errIndex(msg string, idx int64) error { return &Error{Kind: ErrIndex, Msg: msg, Arg: idx} }
func errKey(msg string) error              { return &Error{Kind: ErrKey, Msg: msg} }
func errType(msg string) error             { return &Error{Kind: ErrType, Msg: msg} }
func errBusy(off int64) error {
	return &Error{Kind: ErrBusy, Msg: "busy-bit wait timed out", Off: off}
}
func errVersionChanged() error { return &Error{Kind: ErrVersionChanged, Msg: "region version changed"} }
func errOS(msg string, err error) error {
	m := msg
	if err != nil {
		m = msg + ": " + err.Error()
	}
	return &Error{Kind: ErrOS, Msg: m}
}

// ErrInterrupted is returned by a semaphore wait whose interrupt
// callback returned true.
var ErrInterrupted = fmt.Errorf("shmheap: wait interrupted")
