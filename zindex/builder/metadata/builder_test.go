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

package metadata

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/arena"
	"github.com/kosak/z2kplus-sub002/zindex/builder/digest"
	"github.com/kosak/z2kplus-sub002/zindex/builder/logsplit"
	"github.com/kosak/z2kplus-sub002/zindex/builder/schemas"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
)

func writeRows(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var contents string
	for _, row := range rows {
		contents += schemas.JoinRow(row) + string(schemas.RecordSep)
	}
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o640))
	return path
}

func buildPool(t *testing.T, w *arena.Writer, strs []string) frozen.FrozenStringPool {
	t.Helper()
	sorted := append([]string(nil), strs...)
	sort.Strings(sorted)
	pw := frozen.NewStringPoolWriter(w)
	for _, s := range sorted {
		_, err := pw.Append(s)
		require.NoError(t, err)
	}
	offsetsOffset, count, textOffset, textLen, err := pw.Finish()
	require.NoError(t, err)
	reader := w.Snapshot()
	endOffsets := frozen.NewFrozenVector[uint32](reader, frozen.Uint32Codec{}, offsetsOffset, count)
	return frozen.NewFrozenStringPool(reader, textOffset, textLen, endOffsets)
}

func TestBuildAssemblesAllEightMetadataFamilies(t *testing.T) {
	dir := t.TempDir()
	w, err := arena.NewWriter(filepath.Join(dir, "scratch"))
	require.NoError(t, err)

	pool := buildPool(t, w, []string{"heart", "kosak", "zoey", "control", "coffee is great", "coffee is better", "coffee"})

	split := &logsplit.Result{
		ReactionsByZgramId: writeRows(t, dir, "rxz", [][]string{
			{"7", "heart", "kosak", "1"},
			{"7", "heart", "zoey", "1"},
		}),
		ReactionsByReaction: writeRows(t, dir, "rxr", [][]string{
			{"heart", "7", "kosak", "1"},
			{"heart", "7", "zoey", "1"},
		}),
		ZgramRevisions: writeRows(t, dir, "rev", [][]string{
			{"7", "control", "coffee is great", "0"},
			{"7", "control", "coffee is better", "1"},
		}),
		ZgramRefersTo: writeRows(t, dir, "refersto", [][]string{
			{"7", "3", "1"},
		}),
		Zmojis: writeRows(t, dir, "zmojis", [][]string{
			{"kosak", "coffee is great"},
		}),
	}
	digested := &digest.Result{
		PlusPlusEntriesPath:   writeRows(t, dir, "pp", [][]string{{"coffee", "7"}, {"coffee", "7"}}),
		MinusMinusEntriesPath: writeRows(t, dir, "mm", nil),
		PlusPlusKeysPath:      writeRows(t, dir, "ppk", [][]string{{"7", "coffee"}}),
	}

	rootOffset, err := Build(context.Background(), w, pool, split, digested)
	require.NoError(t, err)
	require.NoError(t, w.Finish())

	reader, err := arena.Open(filepath.Join(dir, "scratch"))
	require.NoError(t, err)
	defer reader.Close()

	md := zindex.NewFrozenMetadata(reader, rootOffset)

	heartRef, ok := pool.TryFind("heart")
	require.True(t, ok)
	kosakRef, ok := pool.TryFind("kosak")
	require.True(t, ok)
	zoeyRef, ok := pool.TryFind("zoey")
	require.True(t, ok)
	coffeeRef, ok := pool.TryFind("coffee is great")
	require.True(t, ok)

	reactions, ok := md.ReactionsFor(7)
	require.True(t, ok)
	creatorsRef, ok := reactions.Find(heartRef)
	require.True(t, ok)
	creators := md.CreatorsOf(creatorsRef)
	require.Equal(t, 2, creators.Len())
	require.True(t, creators.Contains(kosakRef))
	require.True(t, creators.Contains(zoeyRef))

	counts, ok := md.ReactionCountsFor(heartRef)
	require.True(t, ok)
	count, ok := counts.Find(7)
	require.True(t, ok)
	require.Equal(t, uint32(2), count)

	revisions, ok := md.RevisionsFor(7)
	require.True(t, ok)
	require.Equal(t, 2, revisions.Len())
	require.Equal(t, coffeeRef, revisions.Get(0).Body)

	refersTo, ok := md.RefersToFor(7)
	require.True(t, ok)
	require.True(t, refersTo.Contains(3))

	zmojisRef, ok := md.ZmojisFor(kosakRef)
	require.True(t, ok)
	require.Equal(t, coffeeRef, zmojisRef)

	coffeeKeyRef, ok := pool.TryFind("coffee")
	require.True(t, ok)

	pps, ok := md.PlusPlusesFor(coffeeKeyRef)
	require.True(t, ok)
	require.Equal(t, 2, pps.Len())

	_, ok = md.MinusMinusesFor(coffeeKeyRef)
	require.False(t, ok)

	keys, ok := md.PlusPlusKeysFor(7)
	require.True(t, ok)
	require.Equal(t, 1, keys.Len())
}
