// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package shmheap implements a shared-memory heap with typed, structured
containers whose entire representation lives inside a single OS-backed
shared-memory region and is addressed by byte offsets, so that multiple
independent processes mapping the same region observe and mutate the
same live object graph.

Region

A region is

	[ static header | heap payload ]

The static header holds four machine words: the region's static and
heap capacities, the offset of the head of the allocator's free list,
and the "entrance" offset — the root user object, set and read through
the accessor methods on Region.

Heap blocks

Every block, free or allocated, begins with a one word header

	size_BPA = size | B<<2 | P<<1 | A

where size is the block size in bytes (word aligned, >= 4 words), A is
set when the block is allocated, P mirrors the A bit of the physically
preceding block (so a free can decide whether to coalesce left without
reading a footer that might not exist), and B is a transient busy bit:
set while some routine is mid-update of the block's free-list linkage
or footer. Free blocks additionally carry a footer (== size, no flag
bits) and two offsets, fwd/bck, linking them into a single circular
doubly linked free list.

Objects

On top of the allocator, every object is identified purely by its
offset from the start of the heap and begins with one packed header word
holding a 32-bit type_id and a 32-bit size field:

  - PrimitiveArray: a typed, fixed-stride, variable-length array.
    Strings are NUL-terminated char arrays.
  - List: a header block plus a separately allocated slot-space block
    of relative offsets to child objects; growth moves only the slot
    space, never the header other objects point at.
  - Dict: a red-black tree keyed by a hashed int-or-string key, values
    are offsets; nodes (DictNode) are separately allocated blocks.

The accessor methods on Region (Fetch, Write, Delete, Contains,
BeginIterate/NextIterate, ToString) walk a path of keys/indices from the
entrance object, performing read, write, delete, membership, iteration
and display.

Concurrency

A single named write lock serializes all mutations. Every locked
operation compares the cached version to the version counter and
remaps first if a peer resized the region. Readers never take the lock,
and the read methods (Fetch, Contains, ToString, BeginIterate) do not
check the version counter; a handle picks up a peer's resize at its
next locked operation or an explicit Reopen. A per-block busy bit
guards transient metadata inconsistency inside a single mutator's
critical section; it is not a substitute for the write lock.

*/
package shmheap
