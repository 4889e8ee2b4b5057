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

package zindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggedKeyExpandRoundTrips(t *testing.T) {
	k := NewLoggedKey(2023, 4, 17)
	y, m, d := k.Expand()
	require.Equal(t, uint32(2023), y)
	require.Equal(t, uint32(4), m)
	require.Equal(t, uint32(17), d)
	require.True(t, k.IsLogged())
}

func TestUnloggedKeyExpandRoundTrips(t *testing.T) {
	k := NewUnloggedKey(2023, 4, 17)
	y, m, d := k.Expand()
	require.Equal(t, uint32(2023), y)
	require.Equal(t, uint32(4), m)
	require.Equal(t, uint32(17), d)
	require.False(t, k.IsLogged())
}

func TestEitherKeyOrderingMatchesChronologyThenLoggedTieBreak(t *testing.T) {
	earlier := NewEitherKey(2023, 4, 17, false)
	later := NewEitherKey(2023, 4, 18, false)
	require.Less(t, earlier.Raw(), later.Raw())

	unlogged := NewEitherKey(2023, 4, 17, false)
	logged := NewEitherKey(2023, 4, 17, true)
	require.Less(t, unlogged.Raw(), logged.Raw())
}

func TestLoggedKeyFromRawRejectsEvenValues(t *testing.T) {
	even := NewUnloggedKey(2023, 1, 1).Raw()
	_, err := LoggedKeyFromRaw(even)
	require.Error(t, err)

	odd := NewLoggedKey(2023, 1, 1).Raw()
	k, err := LoggedKeyFromRaw(odd)
	require.NoError(t, err)
	require.True(t, k.IsLogged())
}

func TestUnloggedKeyFromRawRejectsOddValues(t *testing.T) {
	odd := NewLoggedKey(2023, 1, 1).Raw()
	_, err := UnloggedKeyFromRaw(odd)
	require.Error(t, err)
}

func TestEitherKeyAsLoggedAsUnloggedRoundTrip(t *testing.T) {
	logged := NewLoggedKey(2023, 4, 17)
	either := logged.AsEither()
	back, ok := either.AsLogged()
	require.True(t, ok)
	require.Equal(t, logged, back)
	_, ok = either.AsUnlogged()
	require.False(t, ok)

	unlogged := NewUnloggedKey(2023, 4, 17)
	either = unlogged.AsEither()
	_, ok = either.AsLogged()
	require.False(t, ok)
	backU, ok := either.AsUnlogged()
	require.True(t, ok)
	require.Equal(t, unlogged, backU)
}

func TestFileKeyStringFormats(t *testing.T) {
	require.Equal(t, "20230417.logged", NewLoggedKey(2023, 4, 17).String())
	require.Equal(t, "20230417.unlogged", NewUnloggedKey(2023, 4, 17).String())
	require.Equal(t, "20230417.logged", NewEitherKey(2023, 4, 17, true).String())
}

func TestFilePositionLessOrdersByKeyThenPosition(t *testing.T) {
	a := FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 4, 17), Position: 10}
	b := FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 4, 17), Position: 20}
	c := FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 4, 18), Position: 0}
	require.True(t, a.Less(b))
	require.True(t, b.Less(c))
	require.False(t, b.Less(a))
}

func TestInterFileRangeIntersectWithOverlap(t *testing.T) {
	r1 := InterFileRange[LoggedKey]{
		Begin: FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 1, 1)},
		End:   FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 12, 31)},
	}
	r2 := InterFileRange[LoggedKey]{
		Begin: FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 6, 1)},
		End:   FilePosition[LoggedKey]{Key: LoggedKeyInfinity},
	}
	got := r1.IntersectWith(r2)
	require.Equal(t, NewLoggedKey(2023, 6, 1), got.Begin.Key)
	require.Equal(t, NewLoggedKey(2023, 12, 31), got.End.Key)
	require.False(t, got.Empty())
}

func TestInterFileRangeIntersectWithNoOverlapIsEmpty(t *testing.T) {
	r1 := InterFileRange[LoggedKey]{
		Begin: FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 1, 1)},
		End:   FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 2, 1)},
	}
	r2 := InterFileRange[LoggedKey]{
		Begin: FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 6, 1)},
		End:   FilePosition[LoggedKey]{Key: NewLoggedKey(2023, 7, 1)},
	}
	got := r1.IntersectWith(r2)
	require.True(t, got.Empty())
}

func TestEverythingLoggedAndUnloggedSpanTheFullRange(t *testing.T) {
	require.True(t, EverythingLogged().Begin.Less(EverythingLogged().End))
	require.True(t, EverythingUnlogged().Begin.Less(EverythingUnlogged().End))
}
