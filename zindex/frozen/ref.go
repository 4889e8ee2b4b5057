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

package frozen

import "encoding/binary"

// Uint32Like is a FixedCodec for any type whose underlying representation
// is a uint32 (StringRef, a raw FileKey, and so on), so callers don't
// need to hand-write a codec for every such newtype.
type Uint32Like[T ~uint32] struct{}

func (Uint32Like[T]) Size() int              { return 4 }
func (Uint32Like[T]) Encode(buf []byte, v T) { binary.LittleEndian.PutUint32(buf, uint32(v)) }
func (Uint32Like[T]) Decode(buf []byte) T    { return T(binary.LittleEndian.Uint32(buf)) }

// Uint64Like is the uint64 analogue of Uint32Like (ZgramId and similar).
type Uint64Like[T ~uint64] struct{}

func (Uint64Like[T]) Size() int             { return 8 }
func (Uint64Like[T]) Encode(buf []byte, v T) { binary.LittleEndian.PutUint64(buf, uint64(v)) }
func (Uint64Like[T]) Decode(buf []byte) T    { return T(binary.LittleEndian.Uint64(buf)) }

// VecRef addresses a previously written run of elements — the base offset
// and count that NewFrozenVector/NewFrozenSet/NewFrozenMap need to wrap a
// view over it. Containers that nest another container as a value (a
// FrozenMap whose values are themselves a FrozenSet, say) store a VecRef
// rather than the nested container's element type directly, since the
// nested container doesn't have one: its identity on the wire is its
// (offset, count) pair.
type VecRef struct {
	Offset int64
	Count  uint32
}

type VecRefCodec struct{}

const VecRefWireLen = 8 + 4

func (VecRefCodec) Size() int { return VecRefWireLen }

func (VecRefCodec) Encode(buf []byte, v VecRef) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v.Offset))
	binary.LittleEndian.PutUint32(buf[8:12], v.Count)
}

func (VecRefCodec) Decode(buf []byte) VecRef {
	return VecRef{
		Offset: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Count:  binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// offsetCounter is satisfied by every writer in this package
// (VectorWriter, SetWriter, MapWriter); it lets a caller that just
// finished writing some nested container capture its VecRef without
// caring which of the three it was.
type offsetCounter interface {
	Offset() int64
	Count() int
}

// RefOf captures w's (offset, count) as a VecRef, for storing as the
// value half of an outer container's KV pair.
func RefOf(w offsetCounter) VecRef {
	return VecRef{Offset: w.Offset(), Count: uint32(w.Count())}
}
