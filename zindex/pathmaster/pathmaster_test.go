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

package pathmaster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosak/z2kplus-sub002/zindex"
)

func TestCreateMakesAllFiveSubdirectories(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	for _, dir := range []string{"logged", "unlogged", "index", "scratch", "media"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
	_ = pm
}

func TestPlaintextPathShapesLoggedAndUnlogged(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	logged := zindex.NewEitherKey(2024, 3, 17, true)
	want := filepath.Join(root, "logged", "2024", "03", "20240317.logged")
	require.Equal(t, want, pm.PlaintextPath(logged))

	unlogged := zindex.NewEitherKey(2024, 3, 17, false)
	want = filepath.Join(root, "unlogged", "2024", "03", "20240317.unlogged")
	require.Equal(t, want, pm.PlaintextPath(unlogged))
}

func TestIndexAndScratchPaths(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(root, "index", "z2k.index"), pm.IndexPath())
	require.Equal(t, filepath.Join(root, "scratch", "z2k.index"), pm.ScratchIndexPath())
	require.Equal(t, filepath.Join(root, "scratch", "foo.tmp"), pm.ScratchPathFor("foo.tmp"))
	require.Equal(t, filepath.Join(root, "scratch"), pm.ScratchRoot())
}

func TestPublishBuildRenamesScratchIndexIntoPlace(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(pm.ScratchIndexPath(), []byte("index bytes"), 0o640))
	require.NoError(t, pm.PublishBuild())

	got, err := os.ReadFile(pm.IndexPath())
	require.NoError(t, err)
	require.Equal(t, "index bytes", string(got))

	_, err = os.Stat(pm.ScratchIndexPath())
	require.True(t, os.IsNotExist(err))
}

func writePlaintext(t *testing.T, pm *PathMaster, key zindex.EitherKey, contents string) {
	t.Helper()
	path := pm.PlaintextPath(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o640))
}

func TestWalkPlaintextsVisitsLoggedThenUnloggedAndSkipsExcluded(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	logged := zindex.NewEitherKey(2024, 3, 17, true)
	unlogged := zindex.NewEitherKey(2024, 3, 18, false)
	writePlaintext(t, pm, logged, "logged contents")
	writePlaintext(t, pm, unlogged, "unlogged contents")

	// A stray editor swapfile under the same tree must be skipped, not
	// mistaken for a malformed plaintext file.
	require.NoError(t, os.WriteFile(filepath.Join(root, "logged", "2024", "03", ".foo.swp"), []byte("x"), 0o640))

	var visited []zindex.EitherKey
	err = pm.WalkPlaintexts(func(key zindex.EitherKey, path string) error {
		visited = append(visited, key)
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []zindex.EitherKey{logged, unlogged}, visited)
}

func TestWalkPlaintextsRejectsMismatchedDirectoryPrefix(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	// Write a file whose embedded date disagrees with its yyyy/mm directory.
	badPath := filepath.Join(root, "logged", "2024", "03", "20240417.logged")
	require.NoError(t, os.MkdirAll(filepath.Dir(badPath), 0o750))
	require.NoError(t, os.WriteFile(badPath, []byte("x"), 0o640))

	err = pm.WalkPlaintexts(func(key zindex.EitherKey, path string) error { return nil })
	require.Error(t, err)
}

func TestWalkPlaintextsRejectsWrongSideRoot(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	// A file under logged/ whose suffix says .unlogged disagrees with the
	// side it was found on.
	badPath := filepath.Join(root, "logged", "2024", "03", "20240317.unlogged")
	require.NoError(t, os.MkdirAll(filepath.Dir(badPath), 0o750))
	require.NoError(t, os.WriteFile(badPath, []byte("x"), 0o640))

	err = pm.WalkPlaintexts(func(key zindex.EitherKey, path string) error { return nil })
	require.Error(t, err)
}
