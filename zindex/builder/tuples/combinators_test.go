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
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceIterator replays a fixed slice of rows, the simplest possible
// Iterator for feeding a combinator under test.
type sliceIterator struct {
	rows []Row
	pos  int
}

func newSliceIterator(rows ...Row) *sliceIterator { return &sliceIterator{rows: rows} }

func (s *sliceIterator) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func drain(t *testing.T, it Iterator) []Row {
	t.Helper()
	var out []Row
	for {
		row, err := it.Next()
		require.NoError(t, err)
		if row == nil {
			return out
		}
		out = append(out, row)
	}
}

func TestLastKeeperKeepsLastOfEachRun(t *testing.T) {
	src := newSliceIterator(
		Row{"a", "1"}, Row{"a", "2"}, Row{"b", "3"}, Row{"b", "4"}, Row{"b", "5"},
	)
	got := drain(t, NewLastKeeper(src, 1))
	require.Equal(t, []Row{{"a", "2"}, {"b", "5"}}, got)
}

func TestTrueKeeperDropsFalseRows(t *testing.T) {
	src := newSliceIterator(Row{"a", "1"}, Row{"b", "0"}, Row{"c", "1"})
	got := drain(t, NewTrueKeeper(src, 1))
	require.Equal(t, []Row{{"a", "1"}, {"c", "1"}}, got)
}

func TestPrefixGrabberTruncates(t *testing.T) {
	src := newSliceIterator(Row{"a", "b", "c"}, Row{"d", "e", "f"})
	got := drain(t, NewPrefixGrabber(src, 2))
	require.Equal(t, []Row{{"a", "b"}, {"d", "e"}}, got)
}

func TestTupleCounterCountsRuns(t *testing.T) {
	src := newSliceIterator(Row{"a", "x"}, Row{"a", "y"}, Row{"b", "z"})
	got := drain(t, NewTupleCounter(src, 1))
	require.Equal(t, []Row{{"a", "2"}, {"b", "1"}}, got)
}

func TestAccumulatorSumsEachKeyGroup(t *testing.T) {
	src := newSliceIterator(
		Row{"a", "3"}, Row{"a", "4"}, Row{"b", "10"},
	)
	got := drain(t, NewAccumulator(src, 1))
	require.Equal(t, []Row{{"a", "7"}, {"b", "10"}}, got)
}

func TestRunningSumIsACumulativePrefix(t *testing.T) {
	src := newSliceIterator(Row{"a", "1"}, Row{"a", "2"}, Row{"a", "3"})
	got := drain(t, NewRunningSum(src, 1, 1))
	require.Equal(t, []Row{{"a", "1"}, {"a", "3"}, {"a", "6"}}, got)
}

// naiveAccumulate is a map-based reference reducer: sum the value column
// per key, preserving first-seen key order. TestAccumulatorMatchesNaiveReducer
// checks Accumulator agrees with it across random inputs, guarding against
// the single shared prev-field reset (rather than a separate swap/reset
// split) silently dropping or double-counting a group boundary.
func naiveAccumulate(rows []Row, keySize int) []Row {
	var order []string
	sums := make(map[string]uint64)
	for _, r := range rows {
		key := ""
		for _, c := range r[:keySize] {
			key += c + "\x00"
		}
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		v, _ := strconv.ParseUint(r[keySize], 10, 64)
		sums[key] += v
	}
	out := make([]Row, 0, len(order))
	for _, key := range order {
		var row Row
		for _, part := range splitKey(key) {
			row = append(row, part)
		}
		row = append(row, strconv.FormatUint(sums[key], 10))
		out = append(out, row)
	}
	return out
}

func splitKey(key string) []string {
	var parts []string
	cur := ""
	for _, r := range key {
		if r == 0 {
			parts = append(parts, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	return parts
}

func TestAccumulatorMatchesNaiveReducer(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	keys := []string{"a", "b", "c"}
	for trial := 0; trial < 20; trial++ {
		n := rnd.Intn(30)
		var rows []Row
		for i := 0; i < n; i++ {
			key := keys[rnd.Intn(len(keys))]
			rows = append(rows, Row{key, strconv.Itoa(rnd.Intn(100))})
		}
		sortRowsByKey(rows, 1)
		got := drain(t, NewAccumulator(newSliceIterator(rows...), 1))
		want := naiveAccumulate(rows, 1)
		require.ElementsMatch(t, want, got, "trial %d: rows=%v", trial, rows)
	}
}

// sortRowsByKey stably groups rows so runs sharing the first keySize
// columns are contiguous, the invariant every combinator here assumes its
// input already satisfies.
func sortRowsByKey(rows []Row, keySize int) {
	groups := make(map[string][]Row)
	var order []string
	for _, r := range rows {
		key := ""
		for _, c := range r[:keySize] {
			key += c + "\x00"
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	i := 0
	for _, key := range order {
		for _, r := range groups[key] {
			rows[i] = r
			i++
		}
	}
}
