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

// FrozenSet is a FrozenVector known to hold distinct, sorted elements, so
// membership is a binary search rather than a scan.
type FrozenSet[T any] struct {
	vec FrozenVector[T]
	cmp func(a, b T) int
}

// NewFrozenSet wraps vec, which the caller guarantees is sorted and
// deduplicated per cmp.
func NewFrozenSet[T any](vec FrozenVector[T], cmp func(a, b T) int) FrozenSet[T] {
	return FrozenSet[T]{vec: vec, cmp: cmp}
}

// Len reports the element count.
func (s FrozenSet[T]) Len() int { return s.vec.Len() }

// Get returns the i'th element in sorted order.
func (s FrozenSet[T]) Get(i int) T { return s.vec.Get(i) }

// Contains reports whether target is a member.
func (s FrozenSet[T]) Contains(target T) bool {
	_, found := SearchVector(s.vec, func(v T) int { return s.cmp(v, target) })
	return found
}

// IndexOf returns the position of target in sorted order, or -1 if not
// present.
func (s FrozenSet[T]) IndexOf(target T) int {
	i, found := SearchVector(s.vec, func(v T) int { return s.cmp(v, target) })
	if !found {
		return -1
	}
	return i
}

// SetWriter builds a FrozenSet by appending already-sorted, already-
// deduplicated elements; it is the caller's job (typically a tuple
// iterator combinator upstream) to guarantee that ordering, since the
// writer does not re-sort.
type SetWriter[T any] struct {
	vw *VectorWriter[T]
}

func NewSetWriter[T any](w *arena.Writer, codec FixedCodec[T]) *SetWriter[T] {
	return &SetWriter[T]{vw: NewVectorWriter(w, codec)}
}

func (sw *SetWriter[T]) Append(v T) error { return sw.vw.Append(v) }
func (sw *SetWriter[T]) Offset() int64    { return sw.vw.Offset() }
func (sw *SetWriter[T]) Count() int       { return sw.vw.Count() }
