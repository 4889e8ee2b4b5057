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

import "github.com/kosak/z2kplus-sub002/zindex/arena"

// KV is a key/value pair, encoded as one fixed-width element so it can
// ride in a FrozenVector.
type KV[K, V any] struct {
	Key   K
	Value V
}

// kvCodec composes a key codec and a value codec into a KV codec. Key and
// value are encoded back to back, key first, so that a FrozenMap's
// key-only comparisons (used by Find's binary search) can decode just the
// key prefix if ever needed without decoding the value.
type kvCodec[K, V any] struct {
	kc FixedCodec[K]
	vc FixedCodec[V]
}

func NewKVCodec[K, V any](kc FixedCodec[K], vc FixedCodec[V]) FixedCodec[KV[K, V]] {
	return kvCodec[K, V]{kc: kc, vc: vc}
}

func (c kvCodec[K, V]) Size() int { return c.kc.Size() + c.vc.Size() }

func (c kvCodec[K, V]) Encode(buf []byte, v KV[K, V]) {
	c.kc.Encode(buf[:c.kc.Size()], v.Key)
	c.vc.Encode(buf[c.kc.Size():], v.Value)
}

func (c kvCodec[K, V]) Decode(buf []byte) KV[K, V] {
	return KV[K, V]{
		Key:   c.kc.Decode(buf[:c.kc.Size()]),
		Value: c.vc.Decode(buf[c.kc.Size():]),
	}
}

// FrozenMap is a FrozenVector[KV[K,V]] known to be sorted, distinct-key,
// by key.
type FrozenMap[K, V any] struct {
	vec    FrozenVector[KV[K, V]]
	cmpKey func(a, b K) int
}

// NewFrozenMap wraps vec, which the caller guarantees is sorted by Key
// per cmpKey with no duplicate keys.
func NewFrozenMap[K, V any](vec FrozenVector[KV[K, V]], cmpKey func(a, b K) int) FrozenMap[K, V] {
	return FrozenMap[K, V]{vec: vec, cmpKey: cmpKey}
}

func (m FrozenMap[K, V]) Len() int { return m.vec.Len() }

func (m FrozenMap[K, V]) GetAt(i int) KV[K, V] { return m.vec.Get(i) }

// Find looks up key and returns its value and true, or the zero value and
// false.
func (m FrozenMap[K, V]) Find(key K) (V, bool) {
	i, found := SearchVector(m.vec, func(kv KV[K, V]) int { return m.cmpKey(kv.Key, key) })
	if !found {
		var zero V
		return zero, false
	}
	return m.vec.Get(i).Value, true
}

// MapWriter builds a FrozenMap from already key-sorted, distinct-key
// KV pairs.
type MapWriter[K, V any] struct {
	vw *VectorWriter[KV[K, V]]
}

func NewMapWriter[K, V any](w *arena.Writer, codec FixedCodec[KV[K, V]]) *MapWriter[K, V] {
	return &MapWriter[K, V]{vw: NewVectorWriter(w, codec)}
}

func (mw *MapWriter[K, V]) Append(key K, value V) error {
	return mw.vw.Append(KV[K, V]{Key: key, Value: value})
}
func (mw *MapWriter[K, V]) Offset() int64 { return mw.vw.Offset() }
func (mw *MapWriter[K, V]) Count() int    { return mw.vw.Count() }
