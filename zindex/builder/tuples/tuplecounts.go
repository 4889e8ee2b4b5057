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

package tuples

// DiffIterator walks src and, for each row after the first, reports the
// index of the first column (within the first arity columns) where it
// differs from the previous row. The first row reports 0 (everything is
// "new"). For a hierarchically-nested container (e.g. reaction ->
// zgramId -> creator) this says how many levels of the hierarchy just
// changed; MetadataBuilder's pipelines do not use it, since Inflate
// compares key prefixes directly.
type DiffIterator struct {
	src   Iterator
	arity int
	prev  Row
	first bool
}

func NewDiffIterator(src Iterator, arity int) *DiffIterator {
	return &DiffIterator{src: src, arity: arity, first: true}
}

// Next returns the diff depth, or (0, false, nil) at end of stream;
// ok is false only once src is exhausted.
func (d *DiffIterator) Next() (depth int, ok bool, err error) {
	row, nerr := d.src.Next()
	if nerr != nil {
		return 0, false, nerr
	}
	if row == nil {
		return 0, false, nil
	}
	if d.first {
		d.first = false
		d.prev = row
		return 0, true, nil
	}
	depth = firstDifference(d.prev, row, d.arity)
	d.prev = row
	return depth, true, nil
}

// TupleCounts is a materialized array of diff depths, one per row
// transition, that a caller can walk more than once (via Reset) to re-read
// the same depth sequence; MetadataBuilder does not use it (see Inflate's
// doc in inflate.go). The original backs this with a
// memory-mapped scratch file so that an arbitrarily long diff sequence
// doesn't have to live in RAM; this builder instead keeps it as a plain
// in-memory slice; a corpus the size this index targets (a group chat's
// archive, not a search engine's web index) comfortably fits the full
// depth sequence in memory, so the complexity of a second scratch file
// isn't justified here.
type TupleCounts struct {
	depths []uint64
	cursor int
}

// NewTupleCounts drains src entirely via a DiffIterator of the given
// arity and materializes the resulting depth sequence.
func NewTupleCounts(src Iterator, arity int) (*TupleCounts, error) {
	di := NewDiffIterator(src, arity)
	var depths []uint64
	for {
		depth, ok, err := di.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		depths = append(depths, uint64(depth))
	}
	return &TupleCounts{depths: depths}, nil
}

// Next returns the next depth value, or (0, false) at end of stream.
func (tc *TupleCounts) Next() (uint64, bool) {
	if tc.cursor >= len(tc.depths) {
		return 0, false
	}
	v := tc.depths[tc.cursor]
	tc.cursor++
	return v, true
}

// Reset rewinds to the beginning, matching TupleCounts::reset().
func (tc *TupleCounts) Reset() { tc.cursor = 0 }

// Len reports the number of materialized depth values.
func (tc *TupleCounts) Len() int { return len(tc.depths) }
