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

package strings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
)

func TestBuildPoolAppendsEveryNulTerminatedRecord(t *testing.T) {
	dir := t.TempDir()
	sortedPath := filepath.Join(dir, "canonical_strings")
	contents := "alpha\x00beta\x00gamma\x00"
	require.NoError(t, os.WriteFile(sortedPath, []byte(contents), 0o640))

	w, err := arena.NewWriter(filepath.Join(dir, "scratch"))
	require.NoError(t, err)
	spw := frozen.NewStringPoolWriter(w)

	require.NoError(t, BuildPool(sortedPath, spw))

	offsetsOffset, count, textOffset, textLen, err := spw.Finish()
	require.NoError(t, err)
	require.Equal(t, 3, count)

	reader := w.Snapshot()
	endOffsets := frozen.NewFrozenVector[uint32](reader, frozen.Uint32Codec{}, offsetsOffset, count)
	pool := frozen.NewFrozenStringPool(reader, textOffset, textLen, endOffsets)

	require.Equal(t, "alpha", pool.ToString(0))
	require.Equal(t, "beta", pool.ToString(1))
	require.Equal(t, "gamma", pool.ToString(2))
}

func TestBuildPoolHandlesRecordWithNoTrailingNul(t *testing.T) {
	dir := t.TempDir()
	sortedPath := filepath.Join(dir, "canonical_strings")
	require.NoError(t, os.WriteFile(sortedPath, []byte("onlyone"), 0o640))

	w, err := arena.NewWriter(filepath.Join(dir, "scratch"))
	require.NoError(t, err)
	spw := frozen.NewStringPoolWriter(w)

	require.NoError(t, BuildPool(sortedPath, spw))
	_, count, _, _, err := spw.Finish()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
