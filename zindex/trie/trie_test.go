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
	triebuilder "github.com/kosak/z2kplus-sub002/zindex/builder/trie"
)

func buildTestTrie(t *testing.T, words map[string][]uint64) Node {
	t.Helper()
	w, err := arena.NewWriter(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)

	keys := make([]string, 0, len(words))
	for k := range words {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := triebuilder.NewBuilder(w)
	for _, word := range keys {
		require.NoError(t, b.Insert([]rune(word), words[word]))
	}
	rootOffset, err := b.Finish()
	require.NoError(t, err)

	return Root(w.Snapshot(), rootOffset)
}

func TestRootNodeExposesItsPrefixAndTransitions(t *testing.T) {
	root := buildTestTrie(t, map[string][]uint64{
		"coffee": {1},
		"cold":   {2},
	})
	// Both words start with 'c', so the root's own prefix is empty and it
	// has a single transition on 'c'; the two words split below it, on
	// the third rune.
	require.Empty(t, root.Prefix())
	require.Empty(t, root.WordsHere())
	require.Equal(t, 1, root.NumTransitions())
}

func TestFindTransitionLocatesAndRejectsCodepoints(t *testing.T) {
	root := buildTestTrie(t, map[string][]uint64{
		"cat": {1},
		"dog": {2},
	})
	idx, found := root.FindTransition('c')
	require.True(t, found)
	require.Equal(t, []rune("at"), root.Child(idx).Prefix())

	idx, found = root.FindTransition('d')
	require.True(t, found)
	require.Equal(t, []rune("og"), root.Child(idx).Prefix())

	_, found = root.FindTransition('z')
	require.False(t, found)
}

func TestWordsHereReportsOffsetsTerminatingAtANode(t *testing.T) {
	root := buildTestTrie(t, map[string][]uint64{
		"cat": {1, 2},
	})
	leaf := root.Child(0)
	require.Equal(t, []uint64{1, 2}, leaf.WordsHere())
	require.Equal(t, 0, leaf.NumTransitions())
}

func TestLookupOnASingleWordTrie(t *testing.T) {
	root := buildTestTrie(t, map[string][]uint64{"hello": {9}})
	got, found := Lookup(root, []rune("hello"))
	require.True(t, found)
	require.Equal(t, []uint64{9}, got)

	_, found = Lookup(root, []rune("hell"))
	require.False(t, found)
	_, found = Lookup(root, []rune("helloo"))
	require.False(t, found)
}

func TestCollectPrefixOnAnEmptyPrefixReturnsEveryWord(t *testing.T) {
	root := buildTestTrie(t, map[string][]uint64{
		"ant":  {1},
		"bee":  {2},
		"crow": {3},
	})
	got := CollectPrefix(root, nil)
	require.ElementsMatch(t, []uint64{1, 2, 3}, got)
}
