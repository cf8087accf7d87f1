// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Key hashing for the map: integer and string keys share one key-domain
// by sorting on their hash rather than their raw value.

package shmheap

import "github.com/cespare/xxhash/v2"

// DictKey is a map or path key: either an integer or a string.
type DictKey struct {
	isString bool
	i        int64
	s        string
}

// IntKey builds an integer DictKey.
func IntKey(v int64) DictKey { return DictKey{i: v} }

// StringKey builds a string DictKey.
func StringKey(v string) DictKey { return DictKey{isString: true, s: v} }

func (k DictKey) String() string {
	if k.isString {
		return k.s
	}
	return itoa(k.i)
}

// hash returns the key's sort key: the stable string hash for string
// keys, the integer's own value for integer keys, so both key kinds
// order within one signed key-domain. Two distinct keys that hash
// alike are treated as equal; callers must not create such collisions
// deliberately.
func (k DictKey) hash() int64 {
	if k.isString {
		return int64(xxhash.Sum64String(k.s))
	}
	return k.i
}