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

// Package tuples implements the combinator pipeline that sits between
// /usr/bin/sort's output and the inflator: small streaming transforms over
// schemas.FieldSep-separated rows, each consuming one sorted stream and producing
// another. Every combinator here assumes its input already arrives in the
// sort order its own key size implies; none of them buffer or re-sort.
//
// A C++ tuple_t is std::tuple<Args...>, with field-by-field typed
// accessors. Go has no variadic-tuple generics, so a Row here is plain
// []string — one element per FieldSep-separated column — and "key size" is
// just how many leading columns a combinator compares. This mirrors the
// schemas package's own rendering choice (see zindex/builder/schemas).
package tuples

// Row is one tuple, one element per column.
type Row []string

// Iterator is the Go rendering of TupleIterator<Tuple>: pull one Row at a
// time, with io.EOF-like "no more rows" signaled by (nil, nil) rather
// than a sentinel error, since running out of input is an expected,
// non-exceptional outcome of any of these iterators.
type Iterator interface {
	// Next returns the next row, or (nil, nil) at end of stream.
	Next() (Row, error)
}

// equalPrefix reports whether a and b agree on their first n columns.
func equalPrefix(a, b Row, n int) bool {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// firstDifference returns the index of the first column where a and b
// disagree, scanning only the first n columns; it returns n if they agree
// throughout.
func firstDifference(a, b Row, n int) int {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}
