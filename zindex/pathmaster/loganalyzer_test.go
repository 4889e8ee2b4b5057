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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosak/z2kplus-sub002/zindex"
)

func TestAnalyzeIncludesWholeFilesWithinAnUnrestrictedRange(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	logged := zindex.NewEitherKey(2024, 3, 17, true)
	unlogged := zindex.NewEitherKey(2024, 3, 18, false)
	writePlaintext(t, pm, logged, "0123456789")
	writePlaintext(t, pm, unlogged, "abcde")

	la, err := Analyze(pm, zindex.EverythingLogged(), zindex.EverythingUnlogged())
	require.NoError(t, err)
	require.Len(t, la.IncludedRanges, 2)

	byKey := map[zindex.EitherKey]IntraFileRange{}
	for _, r := range la.IncludedRanges {
		byKey[r.Key] = r
	}
	require.Equal(t, IntraFileRange{Key: logged, Begin: 0, End: 10}, byKey[logged])
	require.Equal(t, IntraFileRange{Key: unlogged, Begin: 0, End: 5}, byKey[unlogged])
}

func TestAnalyzeExcludesFilesOutsideRequestedRange(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	early := zindex.NewEitherKey(2024, 1, 1, true)
	late := zindex.NewEitherKey(2024, 6, 1, true)
	writePlaintext(t, pm, early, "aaaa")
	writePlaintext(t, pm, late, "bbbb")

	loggedRange := zindex.InterFileRange[zindex.LoggedKey]{
		Begin: zindex.FilePosition[zindex.LoggedKey]{Key: zindex.NewLoggedKey(2024, 5, 1)},
		End:   zindex.FilePosition[zindex.LoggedKey]{Key: zindex.LoggedKeyInfinity},
	}
	la, err := Analyze(pm, loggedRange, zindex.EverythingUnlogged())
	require.NoError(t, err)
	require.Len(t, la.IncludedRanges, 1)
	require.Equal(t, late, la.IncludedRanges[0].Key)
}

func TestAnalyzeReturnsEmptyWhenNothingOnDisk(t *testing.T) {
	root := t.TempDir()
	pm, err := Create(root)
	require.NoError(t, err)

	la, err := Analyze(pm, zindex.EverythingLogged(), zindex.EverythingUnlogged())
	require.NoError(t, err)
	require.Empty(t, la.IncludedRanges)
}
