// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The map object: a red-black tree keyed by hashed int-or-string keys,
// values stored as child object offsets. Insert fixup follows CLRS
// chapter 13 directly; search explicitly returns "not found" on
// reaching the sentinel rather than falling through. Deletion with a
// full rebalance is included so the accessor's path-delete works on
// maps.

package shmheap

import (
	"fmt"
	"strings"
)

// Dict header payload layout: word 0 is the packed {type_id, length}
// header, word 1 the root offset and word 2 the NIL offset, both
// relative to the header itself.
const (
	dhRoot  = 1
	dhNil   = 2
	dhWords = 3
)

func (r *Region) dictLen(d int64) int64     { return r.objSize(d) }
func (r *Region) setDictLen(d, n int64)     { r.setObjSize(d, n) }
func (r *Region) dictRoot(d int64) int64    { return d + r.readWord(d+dhRoot*wordSize) }
func (r *Region) setDictRoot(d, root int64) { r.writeWord(d+dhRoot*wordSize, root-d) }
func (r *Region) dictNil(d int64) int64     { return d + r.readWord(d+dhNil*wordSize) }

// ConstructDict allocates an empty map: the dict header, then the
// shared sentinel NIL node (black, self-referential) with its reserved
// key string.
func (r *Region) ConstructDict() (int64, error) {
	d, err := r.allocLocked(int64(dhWords) * wordSize)
	if err != nil || d == 0 {
		return 0, err
	}
	nilOff, err := r.allocLocked(int64(dnWords) * wordSize)
	if err != nil || nilOff == 0 {
		r.freeLocked(d)
		return 0, err
	}
	nilKeyOff, err := r.ConstructString(nilKeySentinel)
	if err != nil || nilKeyOff == 0 {
		r.freeLocked(nilOff)
		r.freeLocked(d)
		return 0, err
	}

	r.setObjHeader(nilOff, TypeDictNode, dictNodeSizeMarker)
	r.setNodeLeft(nilOff, nilOff)
	r.setNodeRight(nilOff, nilOff)
	r.setNodeParent(nilOff, NPTR)
	r.setNodeKey(nilOff, nilKeyOff)
	r.setNodeWord(nilOff, dnData, NPTR)
	r.setNodeColor(nilOff, colorBlack)

	r.setObjHeader(d, TypeDict, 0)
	r.writeWord(d+dhNil*wordSize, nilOff-d)
	r.setDictRoot(d, nilOff)
	return d, nil
}

func (r *Region) buildKeyObject(key DictKey) (int64, error) {
	if key.isString {
		return r.ConstructString(key.s)
	}
	off, err := r.ConstructPrimitive(TypeLong, 1)
	if err != nil || off == 0 {
		return off, err
	}
	if err := r.SetPrimitive(off, 0, key.i); err != nil {
		r.freeLocked(off)
		return 0, err
	}
	return off, nil
}

// SearchDict descends by hashed key and returns the matching node's
// offset, or 0 if not found; the NIL sentinel is never handed out.
func (r *Region) SearchDict(d int64, key DictKey) int64 {
	h := key.hash()
	nd := r.dictRoot(d)
	nilOff := r.dictNil(d)
	for nd != nilOff {
		nk := r.readStoredKey(nd)
		switch nh := nk.hash(); {
		case h == nh:
			return nd
		case h < nh:
			nd = r.nodeLeft(nd)
		default:
			nd = r.nodeRight(nd)
		}
	}
	return 0
}

func (r *Region) readStoredKey(nd int64) DictKey {
	keyOff := r.nodeKeyOff(nd)
	typ := r.objType(keyOff)
	if typ == TypeChar {
		return StringKey(r.readGoString(keyOff))
	}
	v, _ := r.GetPrimitive(keyOff, 0)
	return IntKey(toInt64(v))
}

func toInt64(v interface{}) int64 {
	if i, ok := v.(int64); ok {
		return i
	}
	f, _ := toFloat(v)
	return int64(f)
}

// GetDict looks up key and reports KeyError if absent.
func (r *Region) GetDict(d int64, key DictKey) (int64, error) {
	nd := r.SearchDict(d, key)
	if nd == 0 {
		return 0, errKey(fmt.Sprintf("key not found: %s", key))
	}
	return r.nodeDataOff(nd), nil
}

// InsertDict inserts key with the given value offset, or, if a key
// with the same hash is already present, frees the old value object
// and overwrites the slot in place.
func (r *Region) InsertDict(d int64, key DictKey, valueOff int64) error {
	if existing := r.SearchDict(d, key); existing != 0 {
		old := r.nodeDataOff(existing)
		if old != 0 {
			if err := r.DeconstructAny(old); err != nil {
				return err
			}
		}
		r.setNodeData(existing, valueOff)
		return nil
	}

	nilOff := r.dictNil(d)
	h := key.hash()

	var parent int64 = NPTR
	cur := r.dictRoot(d)
	goLeft := false
	for cur != nilOff {
		parent = cur
		nk := r.readStoredKey(cur)
		if h < nk.hash() {
			cur = r.nodeLeft(cur)
			goLeft = true
		} else {
			cur = r.nodeRight(cur)
			goLeft = false
		}
	}

	nd, err := r.allocNode(nilOff)
	if err != nil || nd == 0 {
		return err
	}
	keyOff, err := r.buildKeyObject(key)
	if err != nil || keyOff == 0 {
		r.freeLocked(nd)
		return err
	}
	r.setNodeKey(nd, keyOff)
	r.setNodeData(nd, valueOff)
	r.setNodeParent(nd, parent)

	switch {
	case parent == NPTR:
		r.setDictRoot(d, nd)
	case goLeft:
		r.setNodeLeft(parent, nd)
	default:
		r.setNodeRight(parent, nd)
	}

	r.setDictLen(d, r.dictLen(d)+1)
	r.insertFixup(d, nd)
	return nil
}

// insertFixup restores red-black properties after a red-leaf insert,
// the textbook CLRS loop (cases 1-3 and their mirror image).
func (r *Region) insertFixup(d, z int64) {
	for r.nodeParent(z) != NPTR && r.nodeColor(r.nodeParent(z)) == colorRed {
		parent := r.nodeParent(z)
		grandparent := r.nodeParent(parent)
		if grandparent == NPTR {
			break
		}
		if parent == r.nodeLeft(grandparent) {
			uncle := r.nodeRight(grandparent)
			if r.nodeColor(uncle) == colorRed {
				r.setNodeColor(parent, colorBlack)
				r.setNodeColor(uncle, colorBlack)
				r.setNodeColor(grandparent, colorRed)
				z = grandparent
				continue
			}
			if z == r.nodeRight(parent) {
				z = parent
				r.leftRotate(d, z)
				parent = r.nodeParent(z)
				grandparent = r.nodeParent(parent)
			}
			r.setNodeColor(parent, colorBlack)
			r.setNodeColor(grandparent, colorRed)
			r.rightRotate(d, grandparent)
		} else {
			uncle := r.nodeLeft(grandparent)
			if r.nodeColor(uncle) == colorRed {
				r.setNodeColor(parent, colorBlack)
				r.setNodeColor(uncle, colorBlack)
				r.setNodeColor(grandparent, colorRed)
				z = grandparent
				continue
			}
			if z == r.nodeLeft(parent) {
				z = parent
				r.rightRotate(d, z)
				parent = r.nodeParent(z)
				grandparent = r.nodeParent(parent)
			}
			r.setNodeColor(parent, colorBlack)
			r.setNodeColor(grandparent, colorRed)
			r.leftRotate(d, grandparent)
		}
	}
	r.setNodeColor(r.dictRoot(d), colorBlack)
}

// treeMinimum returns the leftmost node of the subtree rooted at nd.
func (r *Region) treeMinimum(d, nd int64) int64 {
	nilOff := r.dictNil(d)
	for r.nodeLeft(nd) != nilOff {
		nd = r.nodeLeft(nd)
	}
	return nd
}

func (r *Region) transplant(d, u, v int64) {
	parent := r.nodeParent(u)
	switch {
	case parent == NPTR:
		r.setDictRoot(d, v)
	case u == r.nodeLeft(parent):
		r.setNodeLeft(parent, v)
	default:
		r.setNodeRight(parent, v)
	}
	r.setNodeParent(v, parent)
}

// DeleteDict removes key, rebalancing the tree (CLRS transplant plus
// delete fixup).
func (r *Region) DeleteDict(d int64, key DictKey) error {
	z := r.SearchDict(d, key)
	if z == 0 {
		return errKey(fmt.Sprintf("key not found: %s", key))
	}
	nilOff := r.dictNil(d)

	if data := r.nodeDataOff(z); data != 0 {
		if err := r.DeconstructAny(data); err != nil {
			return err
		}
	}
	if err := r.DeconstructPrimitive(r.nodeKeyOff(z)); err != nil {
		return err
	}

	y := z
	yOriginalColor := r.nodeColor(y)
	var x int64

	switch {
	case r.nodeLeft(z) == nilOff:
		x = r.nodeRight(z)
		r.transplant(d, z, x)
	case r.nodeRight(z) == nilOff:
		x = r.nodeLeft(z)
		r.transplant(d, z, x)
	default:
		y = r.treeMinimum(d, r.nodeRight(z))
		yOriginalColor = r.nodeColor(y)
		x = r.nodeRight(y)
		if r.nodeParent(y) == z {
			r.setNodeParent(x, y)
		} else {
			r.transplant(d, y, r.nodeRight(y))
			r.setNodeRight(y, r.nodeRight(z))
			r.setNodeParent(r.nodeRight(y), y)
		}
		r.transplant(d, z, y)
		r.setNodeLeft(y, r.nodeLeft(z))
		r.setNodeParent(r.nodeLeft(y), y)
		r.setNodeColor(y, r.nodeColor(z))
	}

	if err := r.freeLocked(z); err != nil {
		return err
	}
	r.setDictLen(d, r.dictLen(d)-1)

	if yOriginalColor == colorBlack {
		r.deleteFixup(d, x)
	}
	return nil
}

// deleteFixup restores red-black properties after DeleteDict's
// transplant, the textbook CLRS loop. x may be the shared NIL node,
// which momentarily plays a "doubly black" stand-in, same as CLRS.
func (r *Region) deleteFixup(d, x int64) {
	nilOff := r.dictNil(d)
	for x != r.dictRoot(d) && r.nodeColor(x) == colorBlack {
		parent := r.nodeParent(x)
		if x == r.nodeLeft(parent) {
			w := r.nodeRight(parent)
			if r.nodeColor(w) == colorRed {
				r.setNodeColor(w, colorBlack)
				r.setNodeColor(parent, colorRed)
				r.leftRotate(d, parent)
				parent = r.nodeParent(x)
				w = r.nodeRight(parent)
			}
			if r.nodeColor(r.nodeLeft(w)) == colorBlack && r.nodeColor(r.nodeRight(w)) == colorBlack {
				r.setNodeColor(w, colorRed)
				x = parent
				continue
			}
			if r.nodeColor(r.nodeRight(w)) == colorBlack {
				r.setNodeColor(r.nodeLeft(w), colorBlack)
				r.setNodeColor(w, colorRed)
				r.rightRotate(d, w)
				parent = r.nodeParent(x)
				w = r.nodeRight(parent)
			}
			r.setNodeColor(w, r.nodeColor(parent))
			r.setNodeColor(parent, colorBlack)
			r.setNodeColor(r.nodeRight(w), colorBlack)
			r.leftRotate(d, parent)
			x = r.dictRoot(d)
		} else {
			w := r.nodeLeft(parent)
			if r.nodeColor(w) == colorRed {
				r.setNodeColor(w, colorBlack)
				r.setNodeColor(parent, colorRed)
				r.rightRotate(d, parent)
				parent = r.nodeParent(x)
				w = r.nodeLeft(parent)
			}
			if r.nodeColor(r.nodeRight(w)) == colorBlack && r.nodeColor(r.nodeLeft(w)) == colorBlack {
				r.setNodeColor(w, colorRed)
				x = parent
				continue
			}
			if r.nodeColor(r.nodeLeft(w)) == colorBlack {
				r.setNodeColor(r.nodeRight(w), colorBlack)
				r.setNodeColor(w, colorRed)
				r.leftRotate(d, w)
				parent = r.nodeParent(x)
				w = r.nodeLeft(parent)
			}
			r.setNodeColor(w, r.nodeColor(parent))
			r.setNodeColor(parent, colorBlack)
			r.setNodeColor(r.nodeLeft(w), colorBlack)
			r.rightRotate(d, parent)
			x = r.dictRoot(d)
		}
	}
	if x != nilOff {
		r.setNodeColor(x, colorBlack)
	}
}

// DeconstructDict frees every node's key and value post-order, then
// the NIL node, then the dict header itself.
func (r *Region) DeconstructDict(d int64) error {
	nilOff := r.dictNil(d)
	var walk func(nd int64) error
	walk = func(nd int64) error {
		if nd == nilOff {
			return nil
		}
		if err := walk(r.nodeLeft(nd)); err != nil {
			return err
		}
		if err := walk(r.nodeRight(nd)); err != nil {
			return err
		}
		if data := r.nodeDataOff(nd); data != 0 {
			if err := r.DeconstructAny(data); err != nil {
				return err
			}
		}
		if err := r.DeconstructPrimitive(r.nodeKeyOff(nd)); err != nil {
			return err
		}
		return r.freeLocked(nd)
	}
	if err := walk(r.dictRoot(d)); err != nil {
		return err
	}
	if err := r.DeconstructPrimitive(r.nodeKeyOff(nilOff)); err != nil {
		return err
	}
	if err := r.freeLocked(nilOff); err != nil {
		return err
	}
	return r.freeLocked(d)
}

// dictToMap converts a Dict to its canonical host representation, a
// []DictEntry in key order, so that BuildValue(ConvertValue(d)) round
// trips.
func (r *Region) dictToMap(d int64) ([]DictEntry, error) {
	nilOff := r.dictNil(d)
	var out []DictEntry
	var walkErr error
	var walk func(nd int64)
	walk = func(nd int64) {
		if nd == nilOff || walkErr != nil {
			return
		}
		walk(r.nodeLeft(nd))
		if walkErr != nil {
			return
		}
		v, err := r.ConvertValue(r.nodeDataOff(nd))
		if err != nil {
			walkErr = err
			return
		}
		out = append(out, DictEntry{Key: r.readStoredKey(nd), Val: v})
		walk(r.nodeRight(nd))
	}
	walk(r.dictRoot(d))
	return out, walkErr
}

// ToStringDict renders the map in-order, inline for small maps and one
// key per line once the inline form would exceed maxInlineWidth.
const maxInlineWidth = 64

func (r *Region) ToStringDict(d int64, maxElements int64) string {
	nilOff := r.dictNil(d)
	var keys []string
	var count int64
	var walk func(nd int64)
	walk = func(nd int64) {
		if nd == nilOff || (maxElements >= 0 && count >= maxElements) {
			return
		}
		walk(r.nodeLeft(nd))
		if maxElements >= 0 && count >= maxElements {
			return
		}
		k := r.readStoredKey(nd)
		v, err := r.ConvertValue(r.nodeDataOff(nd))
		if err != nil {
			v = fmt.Sprintf("<error: %s>", err)
		}
		keys = append(keys, fmt.Sprintf("%s: %v", k, v))
		count++
		walk(r.nodeRight(nd))
	}
	walk(r.dictRoot(d))
	if count < r.dictLen(d) {
		keys = append(keys, "...")
	}

	inline := "{" + strings.Join(keys, ", ") + "}"
	if len(inline) <= maxInlineWidth {
		return inline
	}
	return "{\n  " + strings.Join(keys, ",\n  ") + "\n}"
}
