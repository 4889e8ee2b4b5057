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

import (
	"sort"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
)

// StringRef is an index into a FrozenStringPool's sorted, deduplicated
// string table. It is the frozen-side equivalent of interning: every
// occurrence of a given distinct string across the whole corpus collapses
// to one StringRef.
type StringRef uint32

// FrozenStringPool holds one contiguous blob of concatenated string bytes
// plus a parallel array of cumulative end offsets, mirroring the
// original's text_/endOffsets_ pair: string i occupies
// text[endOffsets[i-1]:endOffsets[i]] (with an implicit 0 lower bound for
// i==0). Because the pool is built from already sorted, already distinct
// input (CanonicalStringProcessor's external-sort --unique pass), lookups
// are a binary search directly over decoded substrings — no separate
// index structure is needed.
type FrozenStringPool struct {
	reader     *arena.Reader
	textOffset int64
	textLen    int64
	endOffsets FrozenVector[uint32]
}

// NewFrozenStringPool wraps an already-written pool.
func NewFrozenStringPool(reader *arena.Reader, textOffset, textLen int64, endOffsets FrozenVector[uint32]) FrozenStringPool {
	return FrozenStringPool{reader: reader, textOffset: textOffset, textLen: textLen, endOffsets: endOffsets}
}

// Size reports the number of distinct strings in the pool.
func (p FrozenStringPool) Size() int { return p.endOffsets.Len() }

// ToString resolves a StringRef back to its text. Panics if ref is out of
// range, matching the original's unchecked raw()-indexed access.
func (p FrozenStringPool) ToString(ref StringRef) string {
	raw := int(ref)
	var begin uint32
	if raw > 0 {
		begin = p.endOffsets.Get(raw - 1)
	}
	end := p.endOffsets.Get(raw)
	return string(p.reader.Bytes(p.textOffset+int64(begin), int(end-begin)))
}

// TryFind binary-searches for s among the pool's sorted strings.
func (p FrozenStringPool) TryFind(s string) (StringRef, bool) {
	n := p.Size()
	idx := sort.Search(n, func(i int) bool {
		return p.ToString(StringRef(i)) >= s
	})
	if idx < n && p.ToString(StringRef(idx)) == s {
		return StringRef(idx), true
	}
	return 0, false
}

// StringPoolWriter builds a FrozenStringPool from a stream of strings that
// the caller guarantees arrive already sorted and already distinct (the
// output of extsort's --unique pass over CanonicalStringProcessor's
// gathered strings). It writes the text blob first, tracking one
// cumulative end offset per string, then Finish writes the offsets array
// and returns the offsets and text ranges NewFrozenStringPool takes.
type StringPoolWriter struct {
	w          *arena.Writer
	textOffset int64
	cursor     uint32
	began      bool
	endOffsets []uint32
}

func NewStringPoolWriter(w *arena.Writer) *StringPoolWriter {
	return &StringPoolWriter{w: w}
}

// Append adds the next string in sort order and returns the StringRef it
// will resolve to.
func (sw *StringPoolWriter) Append(s string) (StringRef, error) {
	off, buf, err := sw.w.Alloc(len(s))
	if err != nil {
		return 0, err
	}
	if !sw.began {
		sw.textOffset = off
		sw.began = true
	}
	copy(buf, s)
	sw.cursor += uint32(len(s))
	sw.endOffsets = append(sw.endOffsets, sw.cursor)
	return StringRef(len(sw.endOffsets) - 1), nil
}

// Finish writes the accumulated end-offsets array and returns where it
// lives (offsetsOffset, count) and where the text blob lives (textOffset,
// textLen). It builds no FrozenStringPool itself; a caller wraps these
// with NewFrozenVector and NewFrozenStringPool over an arena.Reader.
func (sw *StringPoolWriter) Finish() (offsetsOffset int64, count int, textOffset int64, textLen int64, err error) {
	vw := NewVectorWriter[uint32](sw.w, Uint32Codec{})
	for _, eo := range sw.endOffsets {
		if err := vw.Append(eo); err != nil {
			return 0, 0, 0, 0, err
		}
	}
	return vw.Offset(), vw.Count(), sw.textOffset, int64(sw.cursor), nil
}
