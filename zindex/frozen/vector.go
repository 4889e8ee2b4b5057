// Copyright 2023 The Z2K Plus+ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package frozen holds the read-only, mmap-addressed container types that
// make up the bulk of a built index: a fixed-width element vector, a
// sorted-unique set built on top of it, a sorted key/value map, and the
// deduplicated string pool. Every type here is a thin view over bytes
// already resident in an arena.Reader; none of them copy on read.
package frozen

import (
	"encoding/binary"
	"sort"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
)

// FixedCodec describes how a fixed-width element of type T is encoded
// into and decoded out of a byte slice of exactly Size() bytes. Callers
// supply one FixedCodec per element type; FrozenVector itself is agnostic
// to what T is.
type FixedCodec[T any] interface {
	Size() int
	Encode(buf []byte, v T)
	Decode(buf []byte) T
}

// Uint32Codec is the FixedCodec for a bare uint32, used for offset
// arrays (FrozenStringPool's endOffsets, trie child tables, and so on).
type Uint32Codec struct{}

func (Uint32Codec) Size() int                     { return 4 }
func (Uint32Codec) Encode(buf []byte, v uint32)    { binary.LittleEndian.PutUint32(buf, v) }
func (Uint32Codec) Decode(buf []byte) uint32       { return binary.LittleEndian.Uint32(buf) }

// Uint64Codec is the FixedCodec for a bare uint64.
type Uint64Codec struct{}

func (Uint64Codec) Size() int                  { return 8 }
func (Uint64Codec) Encode(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }
func (Uint64Codec) Decode(buf []byte) uint64    { return binary.LittleEndian.Uint64(buf) }

// FrozenVector is a contiguous run of count fixed-width elements living at
// offset in an arena. It performs no bounds caching beyond the count
// recorded at construction; every access recomputes its byte range, which
// keeps the type trivially copyable.
type FrozenVector[T any] struct {
	reader *arena.Reader
	codec  FixedCodec[T]
	offset int64
	count  int
}

// NewFrozenVector wraps an already-written run of count elements at
// offset. It does no I/O itself.
func NewFrozenVector[T any](reader *arena.Reader, codec FixedCodec[T], offset int64, count int) FrozenVector[T] {
	return FrozenVector[T]{reader: reader, codec: codec, offset: offset, count: count}
}

// Len reports the element count.
func (v FrozenVector[T]) Len() int { return v.count }

// Get decodes the i'th element.
func (v FrozenVector[T]) Get(i int) T {
	sz := v.codec.Size()
	buf := v.reader.Bytes(v.offset+int64(i*sz), sz)
	return v.codec.Decode(buf)
}

// Slice materializes the whole vector into a Go slice. Callers on a hot
// path should prefer Get/Len to avoid the allocation; Slice exists for
// call sites (trie freezing, diff iteration) that need random re-reads
// anyway.
func (v FrozenVector[T]) Slice() []T {
	out := make([]T, v.count)
	for i := range out {
		out[i] = v.Get(i)
	}
	return out
}

// VectorWriter appends fixed-width elements to an arena.Writer and
// remembers where the run started, for later wrapping in a FrozenVector.
type VectorWriter[T any] struct {
	w      *arena.Writer
	codec  FixedCodec[T]
	offset int64
	count  int
	began  bool
}

// NewVectorWriter prepares to append elements to w using codec.
func NewVectorWriter[T any](w *arena.Writer, codec FixedCodec[T]) *VectorWriter[T] {
	return &VectorWriter[T]{w: w, codec: codec}
}

// Append writes one more element. The first call fixes the vector's base
// offset.
func (vw *VectorWriter[T]) Append(v T) error {
	off, buf, err := vw.w.Alloc(vw.codec.Size())
	if err != nil {
		return err
	}
	if !vw.began {
		vw.offset = off
		vw.began = true
	}
	vw.codec.Encode(buf, v)
	vw.count++
	return nil
}

// Offset returns the base offset of the run (valid only after at least
// one Append).
func (vw *VectorWriter[T]) Offset() int64 { return vw.offset }

// Count returns the number of elements appended so far.
func (vw *VectorWriter[T]) Count() int { return vw.count }

// SearchVector does a binary search over v, which must be sorted
// according to cmp (cmp(v.Get(i)) < 0 for elements before the target, 0
// at the target, > 0 after). It returns the index of a match and true, or
// the insertion point and false.
func SearchVector[T any](v FrozenVector[T], cmp func(T) int) (index int, found bool) {
	i := sort.Search(v.Len(), func(i int) bool { return cmp(v.Get(i)) >= 0 })
	if i < v.Len() && cmp(v.Get(i)) == 0 {
		return i, true
	}
	return i, false
}
