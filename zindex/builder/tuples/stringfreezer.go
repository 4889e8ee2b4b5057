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

import (
	"fmt"
	"strconv"
)

// StringResolver looks up a canonicalized string and returns its
// FrozenStringPool reference. It is satisfied by
// zindex/frozen.FrozenStringPool.TryFind wrapped to return the reference
// as a uint32; StringFreezer turns a false found into an error naming the
// value and column that failed.
type StringResolver func(s string) (ref uint32, found bool)

// StringFreezer rewrites the columns named by stringCols from raw text to
// their decimal zindex/frozen.StringRef value, the Go equivalent of the
// original's tryFreezeTupleRecurse: every std::string_view field becomes
// a frozenStringRef_t, every other field passes through unchanged.
type StringFreezer struct {
	src        Iterator
	stringCols []int
	resolve    StringResolver
}

func NewStringFreezer(src Iterator, stringCols []int, resolve StringResolver) *StringFreezer {
	return &StringFreezer{src: src, stringCols: stringCols, resolve: resolve}
}

func (sf *StringFreezer) Next() (Row, error) {
	row, err := sf.src.Next()
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	out := cloneRow(row)
	for _, col := range sf.stringCols {
		ref, found := sf.resolve(row[col])
		if !found {
			return nil, fmt.Errorf("tuples: StringFreezer: no pool entry for %q (column %d)", row[col], col)
		}
		out[col] = strconv.FormatUint(uint64(ref), 10)
	}
	return out, nil
}
