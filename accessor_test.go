// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shmheap

import (
	"errors"
	"strings"
	"testing"
)

func TestAccessorPathAccess(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]DictEntry{
		{StringKey("a"), []interface{}{int64(10), int64(20), int64(30)}},
	}); err != nil {
		t.Fatal(err)
	}

	if err := r.Write(int64(99), StringKey("a"), IntKey(1)); err != nil {
		t.Fatal(err)
	}
	v, err := r.Fetch(StringKey("a"))
	if err != nil {
		t.Fatal(err)
	}
	got, ok := v.([]interface{})
	if !ok || len(got) != 3 || got[0] != int64(10) || got[1] != int64(99) || got[2] != int64(30) {
		t.Fatalf(`fetch("a") = %v`, v)
	}

	if err := r.Write(int64(1), StringKey("a"), IntKey(5)); !errors.Is(err, &Error{Kind: ErrIndex}) {
		t.Fatalf(`["a",5]: err %v, want IndexError`, err)
	}
	if _, err := r.Fetch(StringKey("b")); !errors.Is(err, &Error{Kind: ErrKey}) {
		t.Fatalf(`["b"]: err %v, want KeyError`, err)
	}
	if _, err := r.Fetch(StringKey("a"), StringKey("x")); !errors.Is(err, &Error{Kind: ErrType}) {
		t.Fatalf(`["a","x"]: err %v, want TypeError`, err)
	}
}

func TestAccessorPrimitiveElementPaths(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]DictEntry{
		{StringKey("v"), []int32{5, 6, 7}},
	}); err != nil {
		t.Fatal(err)
	}

	// One trailing int against a primitive array is an element access.
	v, err := r.Fetch(StringKey("v"), IntKey(2))
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(7) {
		t.Fatalf(`["v",2] = %v`, v)
	}
	if err := r.Write(int32(42), StringKey("v"), IntKey(0)); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Fetch(StringKey("v"), IntKey(0)); v != int32(42) {
		t.Fatalf(`["v",0] after write = %v`, v)
	}

	// Deeper resolution through a primitive is refused.
	if _, err := r.Fetch(StringKey("v"), IntKey(0), IntKey(0)); !errors.Is(err, &Error{Kind: ErrIndex}) {
		t.Fatalf("two ints into primitive: err %v, want IndexError", err)
	}
	if _, err := r.Fetch(StringKey("v"), StringKey("x")); !errors.Is(err, &Error{Kind: ErrType}) {
		t.Fatalf("string into primitive: err %v, want TypeError", err)
	}
}

func TestAccessorRootReplace(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write("first"); err != nil {
		t.Fatal(err)
	}
	v, err := r.Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if v != "first" {
		t.Fatalf("entrance = %v", v)
	}

	// Replacing the root tears the old object down first; the heap
	// holds only the new object afterwards.
	if err := r.Write([]interface{}{int64(1), int64(2)}); err != nil {
		t.Fatal(err)
	}
	v, err = r.Fetch()
	if err != nil {
		t.Fatal(err)
	}
	lst, ok := v.([]interface{})
	if !ok || len(lst) != 2 || lst[1] != int64(2) {
		t.Fatalf("entrance after replace = %v", v)
	}
	verifyHeap(t, r)

	if err := r.Write(nil); err == nil {
		t.Fatal("writing an unbuildable value succeeded")
	}
}

func TestAccessorContains(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]DictEntry{
		{StringKey("k"), []interface{}{int64(1)}},
	}); err != nil {
		t.Fatal(err)
	}

	if !r.Contains(StringKey("k")) {
		t.Fatal(`contains("k") = false`)
	}
	if !r.Contains(StringKey("k"), IntKey(0)) {
		t.Fatal(`contains("k", 0) = false`)
	}
	if r.Contains(StringKey("missing")) {
		t.Fatal(`contains("missing") = true`)
	}
	if r.Contains(StringKey("k"), IntKey(3)) {
		t.Fatal(`contains("k", 3) = true`)
	}
}

func TestAccessorDeleteOnList(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]interface{}{int64(1), int64(2), int64(3)}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(IntKey(1)); err != nil {
		t.Fatal(err)
	}
	v, err := r.Fetch()
	if err != nil {
		t.Fatal(err)
	}
	lst := v.([]interface{})
	if len(lst) != 2 || lst[0] != int64(1) || lst[1] != int64(3) {
		t.Fatalf("after delete: %v", v)
	}
	if err := r.Delete(IntKey(5)); !errors.Is(err, &Error{Kind: ErrIndex}) {
		t.Fatalf("delete(5): err %v, want IndexError", err)
	}
	if err := r.Delete(); err == nil {
		t.Fatal("deleting the entrance itself succeeded")
	}
	verifyHeap(t, r)
}

func TestAccessorIterateList(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]interface{}{int64(5), int64(6), int64(7)}); err != nil {
		t.Fatal(err)
	}

	cur, err := r.BeginIterate()
	if err != nil {
		t.Fatal(err)
	}
	lst := r.EntranceOffset()
	var seen []int64
	for cur != -1 {
		seen = append(seen, cur)
		cur = r.NextIterate(lst, cur)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Fatalf("list iteration indices: %v", seen)
	}
}

func TestAccessorIterateDictKeys(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]DictEntry{
		{IntKey(30), "c"},
		{IntKey(10), "a"},
		{IntKey(20), "b"},
	}); err != nil {
		t.Fatal(err)
	}

	d := r.EntranceOffset()
	cur, err := r.BeginIterate()
	if err != nil {
		t.Fatal(err)
	}
	var keys []int64
	for cur != -1 {
		k := r.readStoredKey(cur)
		if k.isString {
			t.Fatalf("iteration returned string key %q", k.s)
		}
		keys = append(keys, k.i)
		cur = r.NextIterate(d, cur)
	}
	// In-order traversal: int keys come back sorted.
	if len(keys) != 3 || keys[0] != 10 || keys[1] != 20 || keys[2] != 30 {
		t.Fatalf("dict iteration keys: %v", keys)
	}
}

func TestAccessorIterateEmpty(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]interface{}{}); err != nil {
		t.Fatal(err)
	}
	cur, err := r.BeginIterate()
	if err != nil {
		t.Fatal(err)
	}
	if cur != -1 {
		t.Fatalf("begin on empty list = %d", cur)
	}
}

func TestAccessorToString(t *testing.T) {
	r := newTestRegion(t, 4096)

	if err := r.Write([]DictEntry{
		{StringKey("xs"), []int32{1, 2, 3}},
	}); err != nil {
		t.Fatal(err)
	}

	s, err := r.ToString(-1, StringKey("xs"))
	if err != nil {
		t.Fatal(err)
	}
	if s != "(P:int:3)[1, 2, 3]" {
		t.Fatalf("primitive display: %s", s)
	}

	s, err = r.ToString(-1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, "xs") {
		t.Fatalf("dict display: %s", s)
	}

	if err := r.Write([]interface{}{"one", int64(2)}); err != nil {
		t.Fatal(err)
	}
	s, err = r.ToString(-1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(s, "[") || !strings.Contains(s, `"one"`) {
		t.Fatalf("list display: %s", s)
	}
}

func TestAccessorWriteAfterPeerResize(t *testing.T) {
	name := "test_accessor_remap"
	cfg := RegionConfig{HeapCapacity: 4096}.WithMemBackend()

	r1, err := Create(name, cfg)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Connect(name, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := r1.Write(int64(1)); err != nil {
		t.Fatal(err)
	}
	if err := r1.Resize(KeepCapacity, 8192); err != nil {
		t.Fatal(err)
	}

	// The peer's next write notices the version change and remaps
	// inside the lock before mutating.
	if err := r2.Write(int64(2)); err != nil {
		t.Fatal(err)
	}
	v, err := r1.Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(2) {
		t.Fatalf("entrance after peer write = %v", v)
	}
}
