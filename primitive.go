// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The primitive array object: a typed, variable-length array header
// plus inline payload. One set of functions dispatches on the stored
// type_id rather than one implementation per element kind.

package shmheap

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConstructPrimitive allocates a primitive array of n elements of the
// given type tag and returns its offset. The payload is zero-filled.
func (r *Region) ConstructPrimitive(typ int64, n int64) (int64, error) {
	if !isPrimitiveType(typ) {
		return 0, errType(fmt.Sprintf("not a primitive type tag: %d", typ))
	}
	sz := elemSize(typ)
	payload := wordSize + n*int64(sz)
	off, err := r.allocLocked(payload)
	if err != nil || off == 0 {
		return off, err
	}
	r.setObjHeader(off, typ, n)
	r.writeBytes(primitiveElemBase(off), make([]byte, n*int64(sz)))
	return off, nil
}

// ConstructString allocates a char array holding s plus a trailing
// NUL.
func (r *Region) ConstructString(s string) (int64, error) {
	n := int64(len(s)) + 1
	off, err := r.ConstructPrimitive(TypeChar, n)
	if err != nil || off == 0 {
		return off, err
	}
	buf := make([]byte, n)
	copy(buf, s)
	buf[n-1] = 0
	r.writeBytes(primitiveElemBase(off), buf)
	return off, nil
}

func (r *Region) primitiveType(off int64) int64   { return r.objType(off) }
func (r *Region) primitiveLength(off int64) int64 { return r.objSize(off) }

func primitiveElemBase(off int64) int64 { return off + wordSize }

// resolveIndex normalizes i (negative counts from the end) against
// length, reporting IndexError on overflow.
func resolveIndex(i, length int64) (int64, error) {
	idx := i
	if idx < 0 {
		idx += length
	}
	if idx < 0 || idx >= length {
		return 0, errIndex(fmt.Sprintf("index %d out of range for length %d", i, length), i)
	}
	return idx, nil
}

// GetPrimitive reads element i (negative indices count from the end)
// as a host Go value.
func (r *Region) GetPrimitive(off, i int64) (interface{}, error) {
	typ := r.primitiveType(off)
	length := r.primitiveLength(off)
	idx, err := resolveIndex(i, length)
	if err != nil {
		return nil, err
	}
	base := primitiveElemBase(off) + idx*int64(elemSize(typ))
	return r.decodeElem(typ, base), nil
}

// SetPrimitive writes host value v into element i.
func (r *Region) SetPrimitive(off, i int64, v interface{}) error {
	typ := r.primitiveType(off)
	length := r.primitiveLength(off)
	idx, err := resolveIndex(i, length)
	if err != nil {
		return err
	}
	base := primitiveElemBase(off) + idx*int64(elemSize(typ))
	return r.encodeElem(typ, base, v)
}

// FindPrimitive returns the first index holding v, or -1.
func (r *Region) FindPrimitive(off int64, v interface{}) int64 {
	length := r.primitiveLength(off)
	typ := r.primitiveType(off)
	for i := int64(0); i < length; i++ {
		base := primitiveElemBase(off) + i*int64(elemSize(typ))
		if valuesEqual(r.decodeElem(typ, base), v) {
			return i
		}
	}
	return -1
}

// LenPrimitive returns the element count.
func (r *Region) LenPrimitive(off int64) int64 { return r.primitiveLength(off) }

// ContainsPrimitive reports whether v occurs in the array.
func (r *Region) ContainsPrimitive(off int64, v interface{}) bool {
	return r.FindPrimitive(off, v) >= 0
}

// DeconstructPrimitive frees the array's block.
func (r *Region) DeconstructPrimitive(off int64) error {
	return r.freeLocked(off)
}

// ToStringPrimitive renders "(P:<typename>:<len>)[e0, e1, ...]", or
// the quoted string for a char array.
func (r *Region) ToStringPrimitive(off int64, maxElements int64) string {
	typ := r.primitiveType(off)
	length := r.primitiveLength(off)

	if typ == TypeChar {
		return strconv.Quote(r.readGoString(off))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(P:%s:%d)[", typeName(typ), length)
	shown := length
	truncated := false
	if maxElements >= 0 && shown > maxElements {
		shown = maxElements
		truncated = true
	}
	for i := int64(0); i < shown; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		base := primitiveElemBase(off) + i*int64(elemSize(typ))
		fmt.Fprintf(&b, "%v", r.decodeElem(typ, base))
	}
	if truncated {
		b.WriteString(", ...")
	}
	b.WriteString("]")
	return b.String()
}

// readGoString reads a TypeChar array's payload as a Go string, up to
// the first NUL or the end of the array.
func (r *Region) readGoString(off int64) string {
	length := r.primitiveLength(off)
	buf := r.readBytes(primitiveElemBase(off), length)
	if n := strings_IndexByte(buf, 0); n >= 0 {
		buf = buf[:n]
	}
	return string(buf)
}

func strings_IndexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func (r *Region) decodeElem(typ int64, base int64) interface{} {
	switch typ {
	case TypeBool:
		return r.readBytes(base, 1)[0] != 0
	case TypeChar:
		return int8(r.readBytes(base, 1)[0])
	case TypeUChar:
		return r.readBytes(base, 1)[0]
	case TypeShort:
		return int16(getUintN(r.readBytes(base, 2), 2))
	case TypeUShort:
		return uint16(getUintN(r.readBytes(base, 2), 2))
	case TypeInt:
		return int32(getUintN(r.readBytes(base, 4), 4))
	case TypeUInt:
		return uint32(getUintN(r.readBytes(base, 4), 4))
	case TypeLong, TypeLongLong:
		return getWord(r.readBytes(base, 8))
	case TypeULong, TypeULongLong:
		return getWordU(r.readBytes(base, 8))
	case TypeFloat:
		return math.Float32frombits(uint32(getUintN(r.readBytes(base, 4), 4)))
	case TypeDouble:
		return math.Float64frombits(getWordU(r.readBytes(base, 8)))
	default:
		return nil
	}
}

func (r *Region) encodeElem(typ int64, base int64, v interface{}) error {
	i64, f64, isFloat, err := coerceNumeric(v, typ)
	if err != nil {
		return err
	}
	switch typ {
	case TypeBool:
		b := byte(0)
		if truthy(v) {
			b = 1
		}
		r.writeBytes(base, []byte{b})
	case TypeChar, TypeUChar:
		r.writeBytes(base, []byte{byte(i64)})
	case TypeShort, TypeUShort:
		buf := make([]byte, 2)
		putUintN(buf, uint64(i64), 2)
		r.writeBytes(base, buf)
	case TypeInt, TypeUInt:
		buf := make([]byte, 4)
		putUintN(buf, uint64(i64), 4)
		r.writeBytes(base, buf)
	case TypeLong, TypeULong, TypeLongLong, TypeULongLong:
		buf := make([]byte, 8)
		putWordU(buf, uint64(i64))
		r.writeBytes(base, buf)
	case TypeFloat:
		buf := make([]byte, 4)
		putUintN(buf, uint64(math.Float32bits(float32(f64))), 4)
		r.writeBytes(base, buf)
	case TypeDouble:
		buf := make([]byte, 8)
		bits := math.Float64bits(f64)
		if !isFloat {
			bits = math.Float64bits(float64(i64))
		}
		putWordU(buf, bits)
		r.writeBytes(base, buf)
	default:
		return errType(fmt.Sprintf("unsupported primitive type tag %d", typ))
	}
	return nil
}
