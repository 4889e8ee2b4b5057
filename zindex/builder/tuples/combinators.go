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
	"strconv"

	"github.com/pkg/errors"
)

// LastKeeper collapses runs of rows sharing the first keySize columns
// down to the last row of each run — the row that arrived latest in
// whatever upstream ordering produced ties (e.g. the most recent reaction
// add/remove for a given (zgramId, reaction, creator)).
type LastKeeper struct {
	src     Iterator
	keySize int
	prev    Row
	primed  bool
}

func NewLastKeeper(src Iterator, keySize int) *LastKeeper {
	return &LastKeeper{src: src, keySize: keySize}
}

func (lk *LastKeeper) Next() (Row, error) {
	if !lk.primed {
		row, err := lk.src.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		lk.prev = row
		lk.primed = true
	}
	for {
		current := lk.prev
		next, err := lk.src.Next()
		if err != nil {
			return nil, err
		}
		if next == nil {
			lk.prev = nil
			return current, nil
		}
		if firstDifference(current, next, lk.keySize) < lk.keySize {
			lk.prev = next
			return current, nil
		}
		lk.prev = next
	}
}

// TrueKeeper drops every row whose column at flagPosition is not "1"
// (schemas.formatBool's true encoding).
type TrueKeeper struct {
	src          Iterator
	flagPosition int
}

func NewTrueKeeper(src Iterator, flagPosition int) *TrueKeeper {
	return &TrueKeeper{src: src, flagPosition: flagPosition}
}

func (tk *TrueKeeper) Next() (Row, error) {
	for {
		row, err := tk.src.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		if row[tk.flagPosition] == "1" {
			return row, nil
		}
	}
}

// Accumulator sums the numeric column at keySize (the first column past
// the key) across every row sharing the first keySize columns, emitting
// one row per distinct key with that column replaced by the running sum.
// This is the Go rendering of the original's in-place "merge the value"
// step; since Go strings are immutable, the merge happens by rewriting
// the numeric column rather than mutating a std::get<KeySize> reference.
type Accumulator struct {
	src     Iterator
	keySize int
	prev    Row
	primed  bool
}

func NewAccumulator(src Iterator, keySize int) *Accumulator {
	return &Accumulator{src: src, keySize: keySize}
}

func (a *Accumulator) Next() (Row, error) {
	for {
		result := a.prev
		next, err := a.src.Next()
		if err != nil {
			return nil, err
		}
		a.primed = a.primed || next != nil
		if next == nil {
			a.prev = nil
			return result, nil
		}
		if result == nil {
			a.prev = next
			continue
		}
		if firstDifference(result, next, a.keySize) != a.keySize {
			a.prev = next
			return result, nil
		}
		merged, err := addColumn(next, result, a.keySize)
		if err != nil {
			return nil, errors.Wrap(err, "tuples: Accumulator")
		}
		a.prev = merged
	}
}

func addColumn(into, from Row, col int) (Row, error) {
	a, err := strconv.ParseUint(into[col], 10, 64)
	if err != nil {
		return nil, err
	}
	b, err := strconv.ParseUint(from[col], 10, 64)
	if err != nil {
		return nil, err
	}
	out := cloneRow(into)
	out[col] = strconv.FormatUint(a+b, 10)
	return out, nil
}

// RunningSum is like Accumulator except every input row is still emitted
// individually; a row's numeric column at valueCol only carries forward
// into the *next* row sharing its key, producing a cumulative prefix sum
// per key group rather than one collapsed total.
type RunningSum struct {
	src      Iterator
	keySize  int
	valueCol int
	prev     Row
	primed   bool
}

func NewRunningSum(src Iterator, keySize, valueCol int) *RunningSum {
	return &RunningSum{src: src, keySize: keySize, valueCol: valueCol}
}

func (rs *RunningSum) Next() (Row, error) {
	if !rs.primed {
		row, err := rs.src.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		rs.prev = row
		rs.primed = true
	}
	result := rs.prev
	next, err := rs.src.Next()
	if err != nil {
		return nil, err
	}
	if next == nil {
		rs.prev = nil
		return result, nil
	}
	if firstDifference(result, next, rs.keySize) == rs.keySize {
		merged, err := addColumn(next, result, rs.valueCol)
		if err != nil {
			return nil, errors.Wrap(err, "tuples: RunningSum")
		}
		next = merged
	}
	rs.prev = next
	return result, nil
}

// TupleCounter collapses runs sharing the first keySize columns into one
// row: the key prefix plus one trailing count column holding the run
// length.
type TupleCounter struct {
	src     Iterator
	keySize int
	prev    Row
	primed  bool
}

func NewTupleCounter(src Iterator, keySize int) *TupleCounter {
	return &TupleCounter{src: src, keySize: keySize}
}

func (tc *TupleCounter) Next() (Row, error) {
	if !tc.primed {
		row, err := tc.src.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		tc.prev = row
		tc.primed = true
	}
	if tc.prev == nil {
		return nil, nil
	}
	key := tc.prev[:tc.keySize]
	count := 1
	for {
		next, err := tc.src.Next()
		if err != nil {
			return nil, err
		}
		if next == nil {
			tc.prev = nil
			return appendCount(key, count), nil
		}
		if firstDifference(tc.prev, next, tc.keySize) != tc.keySize {
			tc.prev = next
			return appendCount(key, count), nil
		}
		count++
	}
}

func appendCount(key Row, count int) Row {
	out := make(Row, len(key)+1)
	copy(out, key)
	out[len(key)] = strconv.Itoa(count)
	return out
}

// PrefixGrabber truncates every row to its first size columns.
type PrefixGrabber struct {
	src  Iterator
	size int
}

func NewPrefixGrabber(src Iterator, size int) *PrefixGrabber {
	return &PrefixGrabber{src: src, size: size}
}

func (pg *PrefixGrabber) Next() (Row, error) {
	row, err := pg.src.Next()
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return cloneRow(row[:pg.size]), nil
}
