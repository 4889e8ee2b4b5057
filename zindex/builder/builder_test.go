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

package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/pathmaster"
)

func writeLogLine(t *testing.T, rec zindex.LogRecord) string {
	t.Helper()
	line, err := zindex.MarshalLogLine(rec)
	require.NoError(t, err)
	return string(line)
}

// TestBuildProducesAnIndexReflectingATinyCorpus exercises the whole
// pipeline: one logged plaintext file holding a zgram, a reaction, and a
// revision, split and digested into a single shard, frozen into an
// index, and published. It then opens the published index and checks
// the zgram, its reaction, and its latest revision all come back.
func TestBuildProducesAnIndexReflectingATinyCorpus(t *testing.T) {
	root := t.TempDir()
	pm, err := pathmaster.Create(root)
	require.NoError(t, err)

	key := zindex.NewEitherKey(2024, 3, 17, true)
	path := pm.PlaintextPath(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	zgram := writeLogLine(t, zindex.LogRecord{
		Kind: zindex.RecordZephyrgram,
		Zephyrgram: &zindex.Zgram{
			Id: 7, TimeSecs: 1000, Sender: "kosak", Instance: "control",
			IsLogged: true, Body: "coffee is great",
		},
	})
	reaction := writeLogLine(t, zindex.LogRecord{
		Kind: zindex.RecordMetadata,
		Metadata: &zindex.MetadataRecord{
			Kind:     zindex.MetadataReaction,
			Reaction: &zindex.Reaction{ZgramId: 7, Reaction: "heart", Creator: "zoey", WantAdd: true},
		},
	})
	revision := writeLogLine(t, zindex.LogRecord{
		Kind: zindex.RecordMetadata,
		Metadata: &zindex.MetadataRecord{
			Kind: zindex.MetadataZgramRevision,
			ZgramRevision: &zindex.ZgramRevision{
				ZgramId: 7, Instance: "control", Body: "coffee is better",
			},
		},
	})
	contents := zgram + "\n" + reaction + "\n" + revision + "\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o640))

	opts := Options{
		LoggedRange:   zindex.EverythingLogged(),
		UnloggedRange: zindex.EverythingUnlogged(),
		NumShards:     1,
	}
	require.NoError(t, Build(context.Background(), pm, opts))

	fi, err := zindex.Open(pm.IndexPath())
	require.NoError(t, err)
	defer fi.Close()

	require.Equal(t, 1, fi.NumZgrams())
	zi := fi.ZgramInfo(0)
	require.Equal(t, zindex.ZgramId(7), zi.ZgramId)

	md := fi.Metadata()
	reactions, ok := md.ReactionsFor(zindex.ZgramId(7))
	require.True(t, ok)

	heartRef, ok := fi.Strings().TryFind("heart")
	require.True(t, ok)
	creatorsRef, ok := reactions.Find(heartRef)
	require.True(t, ok)
	creators := md.CreatorsOf(creatorsRef)
	require.Equal(t, 1, creators.Len())

	zoeyRef, ok := fi.Strings().TryFind("zoey")
	require.True(t, ok)
	require.True(t, creators.Contains(zoeyRef))

	revisions, ok := md.RevisionsFor(zindex.ZgramId(7))
	require.True(t, ok)
	require.Equal(t, 1, revisions.Len())
	betterRef, ok := fi.Strings().TryFind("coffee is better")
	require.True(t, ok)
	require.Equal(t, betterRef, revisions.Get(0).Body)
}

// TestBuildRejectsACorpusWithAnInvariantViolation confirms a build-time
// invariant failure (here, a logged-file zgram marked IsLogged=false)
// surfaces as an error and leaves no published index behind.
func TestBuildRejectsACorpusWithAnInvariantViolation(t *testing.T) {
	root := t.TempDir()
	pm, err := pathmaster.Create(root)
	require.NoError(t, err)

	key := zindex.NewEitherKey(2024, 3, 17, true)
	path := pm.PlaintextPath(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	zgram := writeLogLine(t, zindex.LogRecord{
		Kind: zindex.RecordZephyrgram,
		Zephyrgram: &zindex.Zgram{
			Id: 1, TimeSecs: 1000, Sender: "kosak", Instance: "control",
			IsLogged: false, Body: "oops",
		},
	})
	require.NoError(t, os.WriteFile(path, []byte(zgram+"\n"), 0o640))

	opts := Options{
		LoggedRange:   zindex.EverythingLogged(),
		UnloggedRange: zindex.EverythingUnlogged(),
		NumShards:     1,
	}
	require.Error(t, Build(context.Background(), pm, opts))

	_, err = os.Stat(pm.IndexPath())
	require.True(t, os.IsNotExist(err))
}
