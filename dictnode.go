// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// DictNode: one red-black tree node. Every link (left/right/parent) is
// a signed offset relative to the node itself, so the whole tree stays
// valid when the region is remapped at a different base address. The
// rotations are the textbook CLRS versions.

package shmheap

const (
	colorRed   = 0
	colorBlack = 1
)

// DictNode payload layout, word-indexed from the node's own offset.
// Word 0 is the packed {type_id, size} header with size fixed at -1
// (a node has no element count to record).
const (
	dnLeft   = 1
	dnRight  = 2
	dnParent = 3
	dnKey    = 4
	dnData   = 5
	dnColor  = 6
	dnWords  = 7
)

const dictNodeSizeMarker = -1

func (r *Region) nodeWord(nd int64, slot int) int64       { return r.readWord(nd + int64(slot)*wordSize) }
func (r *Region) setNodeWord(nd int64, slot int, v int64) { r.writeWord(nd+int64(slot)*wordSize, v) }

func (r *Region) nodeLeft(nd int64) int64   { return nd + r.nodeWord(nd, dnLeft) }
func (r *Region) nodeRight(nd int64) int64  { return nd + r.nodeWord(nd, dnRight) }
func (r *Region) nodeColor(nd int64) int    { return int(r.nodeWord(nd, dnColor)) }
func (r *Region) nodeKeyOff(nd int64) int64 { return nd + r.nodeWord(nd, dnKey) }

func (r *Region) setNodeLeft(nd, child int64)  { r.setNodeWord(nd, dnLeft, child-nd) }
func (r *Region) setNodeRight(nd, child int64) { r.setNodeWord(nd, dnRight, child-nd) }
func (r *Region) setNodeColor(nd int64, c int) { r.setNodeWord(nd, dnColor, int64(c)) }

// nodeParent returns the node's parent offset, or NPTR if nd is the
// tree root.
func (r *Region) nodeParent(nd int64) int64 {
	rel := r.nodeWord(nd, dnParent)
	if rel == NPTR {
		return NPTR
	}
	return nd + rel
}

func (r *Region) setNodeParent(nd, parent int64) {
	if parent == NPTR {
		r.setNodeWord(nd, dnParent, NPTR)
		return
	}
	r.setNodeWord(nd, dnParent, parent-nd)
}

// nodeDataOff returns the node's value offset, or 0 when no value is
// attached (the NIL sentinel, or a node mid-construction).
func (r *Region) nodeDataOff(nd int64) int64 {
	rel := r.nodeWord(nd, dnData)
	if rel == NPTR {
		return 0
	}
	return nd + rel
}

func (r *Region) setNodeData(nd, data int64) {
	if data == 0 {
		r.setNodeWord(nd, dnData, NPTR)
		return
	}
	r.setNodeWord(nd, dnData, data-nd)
}

// allocNode allocates a raw DictNode block: left/right point to the
// shared NIL sentinel, parent and data are empty, color defaults to RED
// (CLRS: new nodes start red). The caller allocates and attaches the
// key afterwards, so on a heap without holes the node block precedes
// its key block.
func (r *Region) allocNode(nilOff int64) (int64, error) {
	nd, err := r.allocLocked(int64(dnWords) * wordSize)
	if err != nil || nd == 0 {
		return nd, err
	}
	r.setObjHeader(nd, TypeDictNode, dictNodeSizeMarker)
	r.setNodeLeft(nd, nilOff)
	r.setNodeRight(nd, nilOff)
	r.setNodeParent(nd, NPTR)
	r.setNodeWord(nd, dnKey, NPTR)
	r.setNodeWord(nd, dnData, NPTR)
	r.setNodeColor(nd, colorRed)
	return nd, nil
}

func (r *Region) setNodeKey(nd, keyOff int64) { r.setNodeWord(nd, dnKey, keyOff-nd) }

// leftRotate performs the textbook CLRS left rotation around x,
// updating root_off in the dict header at dict if x was the root.
func (r *Region) leftRotate(dict, x int64) {
	y := r.nodeRight(x)
	r.setNodeRight(x, r.nodeLeft(y))
	if r.nodeLeft(y) != r.dictNil(dict) {
		r.setNodeParent(r.nodeLeft(y), x)
	}
	r.setNodeParent(y, r.nodeParent(x))
	switch {
	case r.nodeParent(x) == NPTR:
		r.setDictRoot(dict, y)
	case x == r.nodeLeft(r.nodeParent(x)):
		r.setNodeLeft(r.nodeParent(x), y)
	default:
		r.setNodeRight(r.nodeParent(x), y)
	}
	r.setNodeLeft(y, x)
	r.setNodeParent(x, y)
}

// rightRotate is leftRotate's mirror image.
func (r *Region) rightRotate(dict, x int64) {
	y := r.nodeLeft(x)
	r.setNodeLeft(x, r.nodeRight(y))
	if r.nodeRight(y) != r.dictNil(dict) {
		r.setNodeParent(r.nodeRight(y), x)
	}
	r.setNodeParent(y, r.nodeParent(x))
	switch {
	case r.nodeParent(x) == NPTR:
		r.setDictRoot(dict, y)
	case x == r.nodeRight(r.nodeParent(x)):
		r.setNodeRight(r.nodeParent(x), y)
	default:
		r.setNodeLeft(r.nodeParent(x), y)
	}
	r.setNodeRight(y, x)
	r.setNodeParent(x, y)
}
