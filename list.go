// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The list object: a variable-length array of signed,
// list-header-relative offsets to child objects. A list is two blocks:
// the header {type|capacity, length, space_off} and a separately
// allocated slot-space block holding the offset words, so growth only
// moves the slot space while every parent-held reference to the header
// stays put.

package shmheap

const (
	listLengthSlot  = 1 // word 1: current element count
	listSpaceSlot   = 2 // word 2: slot-space offset, relative to the header
	listHeaderWords = 3
)

// ConstructList allocates a list with room for capacity children, all
// slots initially empty.
func (r *Region) ConstructList(capacity int64) (int64, error) {
	off, err := r.allocLocked(int64(listHeaderWords) * wordSize)
	if err != nil || off == 0 {
		return off, err
	}
	space, err := r.allocLocked(capacity * wordSize)
	if err != nil || space == 0 {
		r.freeLocked(off)
		return 0, err
	}
	r.setObjHeader(off, TypeList, capacity)
	r.writeWord(off+listLengthSlot*wordSize, 0)
	r.writeWord(off+listSpaceSlot*wordSize, space-off)
	r.writeBytes(space, make([]byte, capacity*wordSize))
	return off, nil
}

// ListLen returns the current element count.
func (r *Region) ListLen(off int64) int64 { return r.readWord(off + listLengthSlot*wordSize) }

func (r *Region) setListLen(off, n int64) { r.writeWord(off+listLengthSlot*wordSize, n) }

// ListCapacity returns the number of slots the list's space block holds.
func (r *Region) ListCapacity(off int64) int64 { return r.objSize(off) }

func (r *Region) listSpace(off int64) int64 {
	return off + r.readWord(off+listSpaceSlot*wordSize)
}

func (r *Region) listSlotAddr(off, i int64) int64 {
	return r.listSpace(off) + i*wordSize
}

// GetList returns the absolute heap offset of child i, or 0 if the
// slot is empty.
func (r *Region) GetList(off, i int64) (int64, error) {
	length := r.ListLen(off)
	idx, err := resolveIndex(i, length)
	if err != nil {
		return 0, err
	}
	rel := r.readWord(r.listSlotAddr(off, idx))
	if rel == 0 {
		return 0, nil
	}
	return off + rel, nil
}

// SetList stores childOff (an absolute heap offset, or 0 to clear) at
// slot i, freeing whatever child previously occupied that slot.
func (r *Region) SetList(off, i, childOff int64) error {
	length := r.ListLen(off)
	idx, err := resolveIndex(i, length)
	if err != nil {
		return err
	}
	if err := r.freeListChild(off, idx); err != nil {
		return err
	}
	if childOff == 0 {
		r.writeWord(r.listSlotAddr(off, idx), 0)
	} else {
		r.writeWord(r.listSlotAddr(off, idx), childOff-off)
	}
	return nil
}

func (r *Region) freeListChild(off, idx int64) error {
	rel := r.readWord(r.listSlotAddr(off, idx))
	if rel == 0 {
		return nil
	}
	return r.DeconstructAny(off + rel)
}

// AppendList appends childOff, growing the slot space to
// max(4, 2*capacity) when the list is full.
func (r *Region) AppendList(off, childOff int64) error {
	length := r.ListLen(off)
	capacity := r.ListCapacity(off)
	if length == capacity {
		newCap := 2 * capacity
		if newCap < 4 {
			newCap = 4
		}
		if err := r.growList(off, newCap); err != nil {
			return err
		}
	}
	r.writeWord(r.listSlotAddr(off, length), childOff-off)
	r.setListLen(off, length+1)
	return nil
}

// growList reallocs the slot-space block to hold newCap slots. Only the
// space block moves; the header — the offset every parent reference
// holds — stays where it is.
func (r *Region) growList(off, newCap int64) error {
	newSpace, err := r.reallocLocked(r.listSpace(off), newCap*wordSize)
	if err != nil {
		return err
	}
	if newSpace == 0 {
		return errOOM("list growth", newCap*wordSize)
	}
	r.writeWord(off+listSpaceSlot*wordSize, newSpace-off)
	r.setObjSize(off, newCap)
	for i := r.ListLen(off); i < newCap; i++ {
		r.writeWord(r.listSlotAddr(off, i), 0)
	}
	return nil
}

// InsertList inserts childOff at index i, shifting later elements
// right by one.
func (r *Region) InsertList(off, i, childOff int64) error {
	length := r.ListLen(off)
	if i < 0 || i > length {
		return errIndex("insert index out of range", i)
	}
	if length == r.ListCapacity(off) {
		newCap := 2 * length
		if newCap < 4 {
			newCap = 4
		}
		if err := r.growList(off, newCap); err != nil {
			return err
		}
	}
	for j := length; j > i; j-- {
		rel := r.readWord(r.listSlotAddr(off, j-1))
		r.writeWord(r.listSlotAddr(off, j), rel)
	}
	r.writeWord(r.listSlotAddr(off, i), childOff-off)
	r.setListLen(off, length+1)
	return nil
}

// RemoveList frees the child at index i and shifts later elements left.
func (r *Region) RemoveList(off, i int64) error {
	length := r.ListLen(off)
	idx, err := resolveIndex(i, length)
	if err != nil {
		return err
	}
	if err := r.freeListChild(off, idx); err != nil {
		return err
	}
	for j := idx; j < length-1; j++ {
		rel := r.readWord(r.listSlotAddr(off, j+1))
		r.writeWord(r.listSlotAddr(off, j), rel)
	}
	r.writeWord(r.listSlotAddr(off, length-1), 0)
	r.setListLen(off, length-1)
	return nil
}

// PopList removes and returns the last element's offset without
// freeing it.
func (r *Region) PopList(off int64) (int64, error) {
	length := r.ListLen(off)
	if length == 0 {
		return 0, errIndex("pop of empty list", -1)
	}
	child, err := r.GetList(off, length-1)
	if err != nil {
		return 0, err
	}
	r.writeWord(r.listSlotAddr(off, length-1), 0)
	r.setListLen(off, length-1)
	return child, nil
}

// ClearList frees every child and resets length to 0.
func (r *Region) ClearList(off int64) error {
	length := r.ListLen(off)
	for i := int64(0); i < length; i++ {
		if err := r.freeListChild(off, i); err != nil {
			return err
		}
		r.writeWord(r.listSlotAddr(off, i), 0)
	}
	r.setListLen(off, 0)
	return nil
}

// DeconstructList recursively deconstructs every child, then frees the
// slot space and the header.
func (r *Region) DeconstructList(off int64) error {
	length := r.ListLen(off)
	for i := int64(0); i < length; i++ {
		rel := r.readWord(r.listSlotAddr(off, i))
		if rel != 0 {
			if err := r.DeconstructAny(off + rel); err != nil {
				return err
			}
		}
	}
	if err := r.freeLocked(r.listSpace(off)); err != nil {
		return err
	}
	return r.freeLocked(off)
}
