// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Host-value conversion: the glue between a Go value passed in at the
// accessor's API boundary and the on-heap object it becomes.

package shmheap

import (
	"fmt"
	"reflect"
)

// DictEntry pairs a key with the value to store under it, used when
// building a Dict from a Go map-like literal via BuildValue.
type DictEntry struct {
	Key DictKey
	Val interface{}
}

// BuildValue constructs heap objects from a host Go value and returns
// the offset of the resulting object's header:
//
//   - bool, the signed/unsigned integer kinds and float32/float64 become
//     a length-1 primitive array of the matching type_id;
//   - a typed scalar slice ([]int32, []float64, ...) becomes a primitive
//     array of the matching type_id;
//   - string becomes a NUL-terminated char array;
//   - []interface{} becomes a List, each element built recursively;
//   - []DictEntry becomes a Dict, each value built recursively.
func (r *Region) BuildValue(v interface{}) (int64, error) {
	switch x := v.(type) {
	case string:
		return r.ConstructString(x)
	case []interface{}:
		return r.buildList(x)
	case []DictEntry:
		return r.buildDict(x)
	default:
		if typ, length, ok := primitiveSliceFor(v); ok {
			return r.buildPrimitiveSlice(typ, length, v)
		}
		typ, ok := primitiveTagFor(v)
		if !ok {
			return 0, errType(fmt.Sprintf("cannot build a heap object from %T", v))
		}
		off, err := r.ConstructPrimitive(typ, 1)
		if err != nil || off == 0 {
			return off, err
		}
		if err := r.SetPrimitive(off, 0, v); err != nil {
			r.freeLocked(off)
			return 0, err
		}
		return off, nil
	}
}

// primitiveSliceFor reports the primitive type_id and length for a
// typed scalar slice, or ok == false for anything else.
func primitiveSliceFor(v interface{}) (int64, int64, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return 0, 0, false
	}
	var probe interface{}
	switch rv.Type().Elem().Kind() {
	case reflect.Bool:
		probe = false
	case reflect.Int8:
		probe = int8(0)
	case reflect.Uint8:
		probe = uint8(0)
	case reflect.Int16:
		probe = int16(0)
	case reflect.Uint16:
		probe = uint16(0)
	case reflect.Int32:
		probe = int32(0)
	case reflect.Uint32:
		probe = uint32(0)
	case reflect.Int, reflect.Int64:
		probe = int64(0)
	case reflect.Uint, reflect.Uint64:
		probe = uint64(0)
	case reflect.Float32:
		probe = float32(0)
	case reflect.Float64:
		probe = float64(0)
	default:
		return 0, 0, false
	}
	typ, _ := primitiveTagFor(probe)
	return typ, int64(rv.Len()), true
}

func (r *Region) buildPrimitiveSlice(typ, length int64, v interface{}) (int64, error) {
	off, err := r.ConstructPrimitive(typ, length)
	if err != nil || off == 0 {
		return off, err
	}
	rv := reflect.ValueOf(v)
	for i := int64(0); i < length; i++ {
		if err := r.SetPrimitive(off, i, rv.Index(int(i)).Interface()); err != nil {
			r.freeLocked(off)
			return 0, err
		}
	}
	return off, nil
}

func (r *Region) buildList(items []interface{}) (int64, error) {
	off, err := r.ConstructList(int64(len(items)))
	if err != nil || off == 0 {
		return off, err
	}
	for _, item := range items {
		child, err := r.BuildValue(item)
		if err != nil {
			r.DeconstructList(off)
			return 0, err
		}
		if err := r.AppendList(off, child); err != nil {
			r.DeconstructList(off)
			return 0, err
		}
	}
	return off, nil
}

func (r *Region) buildDict(entries []DictEntry) (int64, error) {
	off, err := r.ConstructDict()
	if err != nil || off == 0 {
		return off, err
	}
	for _, e := range entries {
		child, err := r.BuildValue(e.Val)
		if err != nil {
			r.DeconstructDict(off)
			return 0, err
		}
		if err := r.InsertDict(off, e.Key, child); err != nil {
			r.DeconstructDict(off)
			return 0, err
		}
	}
	return off, nil
}

// ConvertValue reads the object at off back into a host Go value,
// recursively for lists and dicts.
func (r *Region) ConvertValue(off int64) (interface{}, error) {
	if off == 0 || off == NPTR {
		return nil, nil
	}
	typ := r.objType(off)
	switch {
	case isPrimitiveType(typ):
		length := r.primitiveLength(off)
		if typ == TypeChar {
			return r.readGoString(off), nil
		}
		if length == 1 {
			return r.decodeElem(typ, primitiveElemBase(off)), nil
		}
		out := make([]interface{}, length)
		for i := int64(0); i < length; i++ {
			base := primitiveElemBase(off) + i*int64(elemSize(typ))
			out[i] = r.decodeElem(typ, base)
		}
		return out, nil
	case typ == TypeList:
		length := r.ListLen(off)
		out := make([]interface{}, length)
		for i := int64(0); i < length; i++ {
			child, err := r.GetList(off, i)
			if err != nil {
				return nil, err
			}
			v, err := r.ConvertValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case typ == TypeDict:
		return r.dictToMap(off)
	default:
		return nil, errType(fmt.Sprintf("unrecognized type_id %d at offset %#x", typ, off))
	}
}

// DeconstructAny frees the object at off, recursing into its children
// first if it is a List or Dict.
func (r *Region) DeconstructAny(off int64) error {
	if off == 0 || off == NPTR {
		return nil
	}
	switch r.objType(off) {
	case TypeList:
		return r.DeconstructList(off)
	case TypeDict:
		return r.DeconstructDict(off)
	default:
		return r.DeconstructPrimitive(off)
	}
}

// primitiveTagFor reports the primitive type_id matching v's Go kind,
// used by BuildValue for scalar inputs.
func primitiveTagFor(v interface{}) (int64, bool) {
	switch v.(type) {
	case bool:
		return TypeBool, true
	case int8:
		return TypeChar, true
	case uint8:
		return TypeUChar, true
	case int16:
		return TypeShort, true
	case uint16:
		return TypeUShort, true
	case int32:
		return TypeInt, true
	case uint32:
		return TypeUInt, true
	case int64, int:
		return TypeLong, true
	case uint64, uint:
		return TypeULong, true
	case float32:
		return TypeFloat, true
	case float64:
		return TypeDouble, true
	default:
		return 0, false
	}
}

// coerceNumeric extracts an integer and/or float reading of v suitable
// for storing into type_id typ, reporting TypeError on a value Go kind
// that the target primitive type cannot hold.
func coerceNumeric(v interface{}, typ int64) (i64 int64, f64 float64, isFloat bool, err error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			i64 = 1
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i64 = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i64 = int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f64 = rv.Float()
		isFloat = true
		i64 = int64(f64)
	default:
		err = errType(fmt.Sprintf("value of type %T cannot be stored as %s", v, typeName(typ)))
	}
	return
}

func truthy(v interface{}) bool {
	i, f, isFloat, _ := coerceNumeric(v, TypeBool)
	if isFloat {
		return f != 0
	}
	return i != 0
}

// valuesEqual compares two decoded element values for FindPrimitive /
// ContainsPrimitive, coercing through float64 so e.g. int32(3) ==
// float64(3) compares equal the way a dynamically typed comparison
// would.
func valuesEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
