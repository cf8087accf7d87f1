// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shmheap

// Word size of the region. All header words, offsets and capacities are
// multiples of this.
const wordSize = 8

// NPTR is the reserved sentinel offset denoting "no block"/"no entrance".
// It is impossible as a real offset because every real offset is a
// multiple of wordSize.
const NPTR int64 = 1

// Static header slot indices (each slot is one machine word).
const (
	slotStaticCapacity = 0
	slotHeapCapacity   = 1
	slotFreeListHead   = 2
	slotEntranceOffset = 3

	headerSlots = 4
	headerBytes = headerSlots * wordSize
)

// Type tag values. Stable small integers; type_id < primitiveThreshold
// means "primitive array of this element kind".
const (
	TypeBool      = 1
	TypeChar      = 2
	TypeUChar     = 3
	TypeShort     = 4
	TypeUShort    = 5
	TypeInt       = 6
	TypeUInt      = 7
	TypeLong      = 8
	TypeULong     = 9
	TypeLongLong  = 10
	TypeULongLong = 11

	TypeFloat  = 21
	TypeDouble = 22

	primitiveThreshold = 100

	TypeString   = 101 // encoding-only tag; on-disk storage is TypeChar
	TypeList     = 102
	TypeDictNode = 103
	TypeDict     = 104
)

// nilKeySentinel is the fixed string identifying the shared NIL dict
// sentinel node.
const nilKeySentinel = "NILKey:js82nfd-"

// Every object's first payload word packs two 32-bit fields: the
// type_id in the low half and the object's size field in the high half
// (element count for primitive arrays, capacity for lists, entry count
// for dicts, -1 for dict nodes). Offsets and links occupy whole words;
// only this header word is split.
func packObjHeader(typ, size int64) int64 {
	return int64(uint64(uint32(typ)) | uint64(uint32(size))<<32)
}

func unpackObjType(w int64) int64 { return int64(int32(uint64(w))) }
func unpackObjSize(w int64) int64 { return int64(int32(uint64(w) >> 32)) }

// elemSize returns the on-disk size, in bytes, of one element of the
// given primitive type tag, or 0 if typ is not a primitive type.
func elemSize(typ int64) int {
	switch typ {
	case TypeBool, TypeChar, TypeUChar:
		return 1
	case TypeShort, TypeUShort:
		return 2
	case TypeInt, TypeUInt, TypeFloat:
		return 4
	case TypeLong, TypeULong, TypeLongLong, TypeULongLong, TypeDouble:
		return 8
	default:
		return 0
	}
}

func isPrimitiveType(typ int64) bool {
	return typ >= 1 && typ < primitiveThreshold
}

var typeNames = map[int64]string{
	TypeBool:      "bool",
	TypeChar:      "char",
	TypeUChar:     "uchar",
	TypeShort:     "short",
	TypeUShort:    "ushort",
	TypeInt:       "int",
	TypeUInt:      "uint",
	TypeLong:      "long",
	TypeULong:     "ulong",
	TypeLongLong:  "longlong",
	TypeULongLong: "ulonglong",
	TypeFloat:     "float",
	TypeDouble:    "double",
	TypeString:    "string",
	TypeList:      "list",
	TypeDictNode:  "dictnode",
	TypeDict:      "dict",
}

func typeName(typ int64) string {
	if n, ok := typeNames[typ]; ok {
		return n
	}
	return "unknown"
}

// objType and objSize read the packed header word of the object at heap
// offset off; setObjHeader and setObjSize write it.
func (r *Region) objType(off int64) int64 { return unpackObjType(r.readWord(off)) }
func (r *Region) objSize(off int64) int64 { return unpackObjSize(r.readWord(off)) }

func (r *Region) setObjHeader(off, typ, size int64) {
	r.writeWord(off, packObjHeader(typ, size))
}

func (r *Region) setObjSize(off, size int64) {
	r.setObjHeader(off, r.objType(off), size)
}
