// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The accessor / path resolver: a stateless cursor over (region, path)
// that walks keys/indices from the entrance object, materializing
// nothing until an operation runs.

package shmheap

import "fmt"

// walkPath descends from start following path, stopping either when
// path is exhausted (consumed == len(path), err == nil), when it
// reaches a primitive array with path remaining (a "soft stop": err ==
// nil, consumed < len(path), cur is the primitive), when a dict key
// lookup misses (also a soft stop, cur is the dict that missed), or
// when the list path rules are violated outright (a "hard stop": err
// is IndexError or TypeError, reported immediately).
//
// prev is always the container one level above cur — exactly what a
// write at the fully-resolved depth needs to mutate.
func (r *Region) walkPath(start int64, path []DictKey) (prev, cur int64, consumed int, err error) {
	cur = start
	prev = NPTR
	for i, elem := range path {
		if cur == 0 || cur == NPTR {
			return prev, cur, i, errKey("path references no object")
		}
		typ := r.objType(cur)
		switch {
		case isPrimitiveType(typ):
			return prev, cur, i, nil

		case typ == TypeList:
			if elem.isString {
				return prev, cur, i, errType("string key applied to a list")
			}
			length := r.ListLen(cur)
			idx := elem.i
			if idx < 0 {
				idx += length
			}
			if idx < 0 || idx >= length {
				return prev, cur, i, errIndex(fmt.Sprintf("index %d out of range for length %d", elem.i, length), elem.i)
			}
			child, gerr := r.GetList(cur, idx)
			if gerr != nil {
				return prev, cur, i, gerr
			}
			prev, cur = cur, child

		case typ == TypeDict:
			node := r.SearchDict(cur, elem)
			if node == 0 {
				return prev, cur, i, nil // soft stop: key miss
			}
			prev, cur = cur, r.nodeDataOff(node)

		default:
			return prev, cur, i, errType(fmt.Sprintf("unrecognized type_id %d in path", typ))
		}
	}
	return prev, cur, len(path), nil
}

// Fetch resolves path from the region's entrance object and converts
// the result to a host Go value.
func (r *Region) Fetch(path ...DictKey) (interface{}, error) {
	_, cur, consumed, err := r.walkPath(r.EntranceOffset(), path)
	if err != nil {
		return nil, err
	}
	if consumed == len(path) {
		return r.ConvertValue(cur)
	}

	typ := r.objType(cur)
	elem := path[consumed]
	switch {
	case typ == TypeDict:
		return nil, errKey(fmt.Sprintf("key not found: %s", elem))
	case isPrimitiveType(typ) && consumed == len(path)-1 && !elem.isString:
		return r.GetPrimitive(cur, elem.i)
	case isPrimitiveType(typ) && elem.isString:
		return nil, errType("string index applied to a primitive array")
	case isPrimitiveType(typ):
		return nil, errIndex("primitive array has no further elements to index", elem.i)
	default:
		return nil, errType("path has an unresolved remainder")
	}
}

// Write resolves path and stores value there, building whatever
// intermediate object the value requires.
// Mutating operations run under the region's write lock.
func (r *Region) Write(value interface{}, path ...DictKey) error {
	return r.WithWriteLock(-1, nil, func() error {
		return r.writeLocked(value, path)
	})
}

func (r *Region) writeLocked(value interface{}, path []DictKey) error {
	prev, cur, consumed, err := r.walkPath(r.EntranceOffset(), path)
	if err != nil {
		return err
	}

	if consumed == len(path) {
		if prev == NPTR {
			// Root replacement: tear the old entrance down first so the
			// new object graph reuses its space.
			if cur != 0 && cur != NPTR {
				if err := r.DeconstructAny(cur); err != nil {
					return err
				}
				r.setEntranceOffset(NPTR)
			}
			newOff, err := r.BuildValue(value)
			if err != nil {
				return err
			}
			r.setEntranceOffset(newOff)
			return nil
		}
		newOff, err := r.BuildValue(value)
		if err != nil {
			return err
		}
		switch {
		case r.objType(prev) == TypeList:
			return r.SetList(prev, path[len(path)-1].i, newOff)
		case r.objType(prev) == TypeDict:
			return r.InsertDict(prev, path[len(path)-1], newOff)
		default:
			return errType("cannot write through this path")
		}
	}

	typ := r.objType(cur)
	elem := path[consumed]

	if consumed == len(path)-1 {
		switch {
		case isPrimitiveType(typ) && !elem.isString:
			return r.SetPrimitive(cur, elem.i, value)
		case typ == TypeDict:
			newOff, err := r.BuildValue(value)
			if err != nil {
				return err
			}
			return r.InsertDict(cur, elem, newOff)
		case isPrimitiveType(typ) && elem.isString:
			return errType("string index applied to a primitive array")
		default:
			return errType("cannot write through this path")
		}
	}

	if typ == TypeDict {
		return errKey(fmt.Sprintf("key not found: %s", elem))
	}
	return errType("path has an unresolved remainder")
}

// Delete removes the value at a fully-resolved path: a list element by
// index, or a dict entry by key.
func (r *Region) Delete(path ...DictKey) error {
	return r.WithWriteLock(-1, nil, func() error {
		return r.deleteLocked(path)
	})
}

func (r *Region) deleteLocked(path []DictKey) error {
	if len(path) == 0 {
		return errIndex("cannot delete the entrance itself", 0)
	}
	prev, _, consumed, err := r.walkPath(r.EntranceOffset(), path)
	if err != nil {
		return err
	}
	if consumed != len(path) {
		return errKey(fmt.Sprintf("key not found: %s", path[consumed]))
	}
	last := path[len(path)-1]
	if prev == NPTR {
		return errType("cannot delete the entrance itself")
	}
	switch r.objType(prev) {
	case TypeList:
		return r.RemoveList(prev, last.i)
	case TypeDict:
		return r.DeleteDict(prev, last)
	default:
		return errType("cannot delete through this path")
	}
}

// Contains reports whether path resolves to a live object.
func (r *Region) Contains(path ...DictKey) bool {
	_, _, consumed, err := r.walkPath(r.EntranceOffset(), path)
	return err == nil && consumed == len(path)
}

// ToString dispatches display formatting on the resolved object's
// type_id.
func (r *Region) ToString(maxElements int64, path ...DictKey) (string, error) {
	_, cur, consumed, err := r.walkPath(r.EntranceOffset(), path)
	if err != nil {
		return "", err
	}
	if consumed != len(path) {
		return "", errKey("path does not resolve to a live object")
	}
	if cur == 0 || cur == NPTR {
		return "(empty)", nil
	}
	switch typ := r.objType(cur); {
	case isPrimitiveType(typ):
		return r.ToStringPrimitive(cur, maxElements), nil
	case typ == TypeList:
		return r.toStringList(cur, maxElements), nil
	case typ == TypeDict:
		return r.ToStringDict(cur, maxElements), nil
	default:
		return "", errType("unrecognized object kind")
	}
}

func (r *Region) toStringList(off int64, maxElements int64) string {
	length := r.ListLen(off)
	shown := length
	if maxElements >= 0 && shown > maxElements {
		shown = maxElements
	}
	out := "[\n"
	for i := int64(0); i < shown; i++ {
		child, err := r.GetList(off, i)
		var s string
		if err != nil {
			s = fmt.Sprintf("<error: %s>", err)
		} else if child == 0 {
			s = "nil"
		} else if isPrimitiveType(r.objType(child)) {
			s = r.ToStringPrimitive(child, maxElements)
		} else if r.objType(child) == TypeList {
			s = r.toStringList(child, maxElements)
		} else {
			s = r.ToStringDict(child, maxElements)
		}
		out += "  " + s + ",\n"
	}
	if shown < length {
		out += "  ...\n"
	}
	out += "]"
	return out
}

// BeginIterate and NextIterate expose in-order iteration over a
// resolved list/dict/primitive without materializing it. For lists and
// primitives the cursor is an element index; for dicts it is the offset
// of the DictNode holding the current key, visited in key order. The
// key itself is not returned.
func (r *Region) BeginIterate(path ...DictKey) (int64, error) {
	_, cur, consumed, err := r.walkPath(r.EntranceOffset(), path)
	if err != nil {
		return 0, err
	}
	if consumed != len(path) {
		return 0, errKey("path does not resolve to a live object")
	}
	typ := r.objType(cur)
	if isPrimitiveType(typ) || typ == TypeList {
		if r.objectLen(cur) == 0 {
			return -1, nil
		}
		return 0, nil
	}
	if typ == TypeDict {
		nilOff := r.dictNil(cur)
		nd := r.treeMinimum(cur, r.dictRoot(cur))
		if nd == nilOff {
			return -1, nil
		}
		return nd, nil
	}
	return -1, errType("object is not iterable")
}

func (r *Region) objectLen(off int64) int64 {
	if r.objType(off) == TypeList {
		return r.ListLen(off)
	}
	return r.primitiveLength(off)
}

// NextIterate advances a cursor returned by BeginIterate, returning -1
// once iteration is exhausted.
func (r *Region) NextIterate(containerOff int64, cursor int64) int64 {
	switch r.objType(containerOff) {
	case TypeList:
		if cursor+1 >= r.ListLen(containerOff) {
			return -1
		}
		return cursor + 1
	case TypeDict:
		return r.dictSuccessor(containerOff, cursor)
	default:
		if cursor+1 >= r.primitiveLength(containerOff) {
			return -1
		}
		return cursor + 1
	}
}

// dictSuccessor returns the in-order successor of node nd in dict d, or
// -1 once nd is the last key.
func (r *Region) dictSuccessor(d, nd int64) int64 {
	nilOff := r.dictNil(d)
	if right := r.nodeRight(nd); right != nilOff {
		return r.treeMinimum(d, right)
	}
	parent := r.nodeParent(nd)
	for parent != NPTR && nd == r.nodeRight(parent) {
		nd = parent
		parent = r.nodeParent(nd)
	}
	if parent == NPTR {
		return -1
	}
	return parent
}
