// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shmheap

import (
	"errors"
	"testing"
)

func TestPrimitiveConstructAndAccess(t *testing.T) {
	r := newTestRegion(t, 4096)

	off, err := r.ConstructPrimitive(TypeInt, 5)
	if err != nil || off == 0 {
		t.Fatalf("construct: off %#x err %v", off, err)
	}
	if got := r.objType(off); got != TypeInt {
		t.Fatalf("type_id %d, want %d", got, TypeInt)
	}
	if got := r.LenPrimitive(off); got != 5 {
		t.Fatalf("len %d, want 5", got)
	}

	for i := int64(0); i < 5; i++ {
		v, err := r.GetPrimitive(off, i)
		if err != nil {
			t.Fatal(err)
		}
		if v != int32(0) {
			t.Fatalf("element %d not zeroed: %v", i, v)
		}
	}

	for i := int64(0); i < 5; i++ {
		if err := r.SetPrimitive(off, i, int32(10*i)); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := r.GetPrimitive(off, 2); v != int32(20) {
		t.Fatalf("get(2) = %v", v)
	}

	// Negative index counts from the end.
	if v, _ := r.GetPrimitive(off, -1); v != int32(40) {
		t.Fatalf("get(-1) = %v", v)
	}
	if err := r.SetPrimitive(off, -2, int32(7)); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.GetPrimitive(off, 3); v != int32(7) {
		t.Fatalf("get(3) after set(-2) = %v", v)
	}

	if _, err := r.GetPrimitive(off, 5); !errors.Is(err, &Error{Kind: ErrIndex}) {
		t.Fatalf("get(5): err %v, want IndexError", err)
	}
	if _, err := r.GetPrimitive(off, -6); !errors.Is(err, &Error{Kind: ErrIndex}) {
		t.Fatalf("get(-6): err %v, want IndexError", err)
	}

	if got := r.FindPrimitive(off, int32(7)); got != 3 {
		t.Fatalf("find(7) = %d", got)
	}
	if got := r.FindPrimitive(off, int32(999)); got != -1 {
		t.Fatalf("find(999) = %d", got)
	}
	if !r.ContainsPrimitive(off, int32(20)) || r.ContainsPrimitive(off, int32(999)) {
		t.Fatal("contains misreports")
	}

	if err := r.DeconstructPrimitive(off); err != nil {
		t.Fatal(err)
	}
	if got := r.DumpLayout(); got != "4088E" {
		t.Fatalf("layout after deconstruct: %s", got)
	}
}

func TestPrimitiveElementKinds(t *testing.T) {
	r := newTestRegion(t, 4096)

	tab := []struct {
		typ int64
		in  interface{}
		out interface{}
	}{
		{TypeBool, true, true},
		{TypeChar, int8('x'), int8('x')},
		{TypeUChar, uint8(200), uint8(200)},
		{TypeShort, int16(-12345), int16(-12345)},
		{TypeUShort, uint16(54321), uint16(54321)},
		{TypeInt, int32(-7), int32(-7)},
		{TypeUInt, uint32(1 << 31), uint32(1 << 31)},
		{TypeLong, int64(-1 << 40), int64(-1 << 40)},
		{TypeULong, uint64(1 << 63), uint64(1 << 63)},
		{TypeFloat, float32(1.5), float32(1.5)},
		{TypeDouble, 2.25, 2.25},
	}
	for _, tc := range tab {
		off, err := r.ConstructPrimitive(tc.typ, 1)
		if err != nil || off == 0 {
			t.Fatalf("%s: construct: %v", typeName(tc.typ), err)
		}
		if err := r.SetPrimitive(off, 0, tc.in); err != nil {
			t.Fatalf("%s: set: %v", typeName(tc.typ), err)
		}
		got, err := r.GetPrimitive(off, 0)
		if err != nil {
			t.Fatalf("%s: get: %v", typeName(tc.typ), err)
		}
		if got != tc.out {
			t.Fatalf("%s: round trip %v -> %v", typeName(tc.typ), tc.in, got)
		}
		if err := r.DeconstructPrimitive(off); err != nil {
			t.Fatal(err)
		}
	}

	if got := r.DumpLayout(); got != "4088E" {
		t.Fatalf("layout: %s", got)
	}
}

func TestPrimitiveString(t *testing.T) {
	r := newTestRegion(t, 4096)

	off, err := r.ConstructString("hello")
	if err != nil || off == 0 {
		t.Fatalf("construct: off %#x err %v", off, err)
	}
	if got := r.objType(off); got != TypeChar {
		t.Fatalf("type_id %d, want TypeChar", got)
	}
	// Length counts the NUL terminator.
	if got := r.LenPrimitive(off); got != 6 {
		t.Fatalf("len %d, want 6", got)
	}
	if got := r.readGoString(off); got != "hello" {
		t.Fatalf("read back %q", got)
	}
	if got := r.ToStringPrimitive(off, -1); got != `"hello"` {
		t.Fatalf("to_string: %s", got)
	}
}

func TestPrimitiveSetRejectsNonNumeric(t *testing.T) {
	r := newTestRegion(t, 4096)

	off, err := r.ConstructPrimitive(TypeInt, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetPrimitive(off, 0, "nope"); !errors.Is(err, &Error{Kind: ErrType}) {
		t.Fatalf("set string into int: err %v, want TypeError", err)
	}
}

func TestPrimitiveToStringTruncation(t *testing.T) {
	r := newTestRegion(t, 4096)

	off, err := r.ConstructPrimitive(TypeLong, 6)
	if err != nil {
		t.Fatal(err)
	}
	for i := int64(0); i < 6; i++ {
		if err := r.SetPrimitive(off, i, i); err != nil {
			t.Fatal(err)
		}
	}

	if got := r.ToStringPrimitive(off, -1); got != "(P:long:6)[0, 1, 2, 3, 4, 5]" {
		t.Fatalf("full: %s", got)
	}
	if got := r.ToStringPrimitive(off, 3); got != "(P:long:6)[0, 1, 2, ...]" {
		t.Fatalf("truncated: %s", got)
	}
}
