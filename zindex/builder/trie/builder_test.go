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

package trie

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
	readtrie "github.com/kosak/z2kplus-sub002/zindex/trie"
)

func toRunes(s string) []rune { return []rune(s) }

func TestBuilderInsertThenLookupRoundTrips(t *testing.T) {
	w, err := arena.NewWriter(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)

	words := map[string][]uint64{
		"coffee":  {1},
		"coffees": {2},
		"cold":    {3},
		"dog":     {4},
	}
	keys := make([]string, 0, len(words))
	for k := range words {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := NewBuilder(w)
	for _, k := range keys {
		require.NoError(t, b.Insert(toRunes(k), words[k]))
	}
	rootOffset, err := b.Finish()
	require.NoError(t, err)

	reader := w.Snapshot()
	root := readtrie.Root(reader, rootOffset)

	for k, want := range words {
		got, found := readtrie.Lookup(root, toRunes(k))
		require.True(t, found, "word %q should be found", k)
		require.Equal(t, want, got)
	}

	_, found := readtrie.Lookup(root, toRunes("cof"))
	require.False(t, found)
	_, found = readtrie.Lookup(root, toRunes("nonexistent"))
	require.False(t, found)
}

func TestBuilderCollectPrefixGathersWholeSubtree(t *testing.T) {
	w, err := arena.NewWriter(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)

	words := []struct {
		word    string
		offsets []uint64
	}{
		{"coffee", []uint64{1}},
		{"coffees", []uint64{2}},
		{"cold", []uint64{3}},
	}

	b := NewBuilder(w)
	for _, e := range words {
		require.NoError(t, b.Insert(toRunes(e.word), e.offsets))
	}
	rootOffset, err := b.Finish()
	require.NoError(t, err)

	reader := w.Snapshot()
	root := readtrie.Root(reader, rootOffset)

	got := readtrie.CollectPrefix(root, toRunes("cof"))
	require.ElementsMatch(t, []uint64{1, 2}, got)

	got = readtrie.CollectPrefix(root, toRunes("c"))
	require.ElementsMatch(t, []uint64{1, 2, 3}, got)

	got = readtrie.CollectPrefix(root, toRunes("z"))
	require.Empty(t, got)
}

func TestBuilderSplitsPrefixOnDivergence(t *testing.T) {
	w, err := arena.NewWriter(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)

	b := NewBuilder(w)
	// "team" then "test" forces a split after the shared "te" prefix.
	require.NoError(t, b.Insert(toRunes("team"), []uint64{1}))
	require.NoError(t, b.Insert(toRunes("test"), []uint64{2}))
	rootOffset, err := b.Finish()
	require.NoError(t, err)

	reader := w.Snapshot()
	root := readtrie.Root(reader, rootOffset)

	got, found := readtrie.Lookup(root, toRunes("team"))
	require.True(t, found)
	require.Equal(t, []uint64{1}, got)

	got, found = readtrie.Lookup(root, toRunes("test"))
	require.True(t, found)
	require.Equal(t, []uint64{2}, got)
}
