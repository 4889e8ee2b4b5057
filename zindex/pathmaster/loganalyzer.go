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
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex"
)

// ExcludeGlobs lists path patterns (matched against the basename, via
// doublestar) that should never be treated as plaintext log files even
// though they live under logged/ or unlogged/ — editor swap files,
// .DS_Store, stray temp files left by a crashed build. WalkPlaintexts
// filters these out before attempting to parse a filename's date
// grammar, so an excluded file is never a parse error.
var ExcludeGlobs = []string{"*.swp", "*.swo", ".DS_Store", "*~", "*.tmp"}

// IntraFileRange is one plaintext file's included byte span, as found by
// Analyze: either the whole file (an unrestricted build) or the overlap
// with the caller's requested InterFileRange.
type IntraFileRange struct {
	Key   zindex.EitherKey
	Begin uint32
	End   uint32
}

// LogAnalyzer is the result of walking the corpus and intersecting every
// discovered file's full extent against the caller's requested logged and
// unlogged ranges: the concrete list of byte spans a build should read.
type LogAnalyzer struct {
	IncludedRanges []IntraFileRange
}

// Analyze walks pm's logged and unlogged trees, skipping files matching
// ExcludeGlobs, and intersects each discovered file's [0, size) extent
// against loggedRange/unloggedRange. A RoaringBitmap of included raw
// FileKey values backs the membership test the original expresses as a
// sorted-vector std::set_intersection; here that's roaring.And against a
// bitmap built straight off the directory walk, then a second bitmap
// built from the two InterFileRanges' span of keys.
func Analyze(pm *PathMaster, loggedRange zindex.InterFileRange[zindex.LoggedKey], unloggedRange zindex.InterFileRange[zindex.UnloggedKey]) (*LogAnalyzer, error) {
	onDisk := roaring.New()
	sizes := map[uint32]int64{}

	err := pm.WalkPlaintexts(func(key zindex.EitherKey, path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrapf(err, "pathmaster: Analyze: stat %s", path)
		}
		onDisk.Add(key.Raw())
		sizes[key.Raw()] = info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}

	requested := roaring.New()
	requested.AddRange(uint64(loggedRange.Begin.Key.Raw()), uint64(loggedRange.End.Key.Raw())+1)
	requested.AddRange(uint64(unloggedRange.Begin.Key.Raw()), uint64(unloggedRange.End.Key.Raw())+1)

	included := roaring.And(onDisk, requested)

	var ranges []IntraFileRange
	it := included.Iterator()
	for it.HasNext() {
		raw := it.Next()
		key := zindex.EitherKeyFromRaw(raw)
		size := uint32(sizes[raw])

		whole := zindex.InterFileRange[zindex.EitherKey]{
			Begin: zindex.FilePosition[zindex.EitherKey]{Key: key, Position: 0},
			End:   zindex.FilePosition[zindex.EitherKey]{Key: key, Position: size},
		}
		requestedForKey := wholeRequestedRangeFor(key, loggedRange, unloggedRange)
		overlap := whole.IntersectWith(requestedForKey)
		if overlap.Empty() {
			continue
		}
		ranges = append(ranges, IntraFileRange{Key: key, Begin: overlap.Begin.Position, End: overlap.End.Position})
	}

	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Key.Raw() != ranges[j].Key.Raw() {
			return ranges[i].Key.Raw() < ranges[j].Key.Raw()
		}
		return ranges[i].Begin < ranges[j].Begin
	})
	return &LogAnalyzer{IncludedRanges: ranges}, nil
}

func wholeRequestedRangeFor(key zindex.EitherKey, loggedRange zindex.InterFileRange[zindex.LoggedKey], unloggedRange zindex.InterFileRange[zindex.UnloggedKey]) zindex.InterFileRange[zindex.EitherKey] {
	if key.IsLogged() {
		return zindex.InterFileRange[zindex.EitherKey]{
			Begin: zindex.FilePosition[zindex.EitherKey]{Key: loggedRange.Begin.Key.AsEither(), Position: loggedRange.Begin.Position},
			End:   zindex.FilePosition[zindex.EitherKey]{Key: loggedRange.End.Key.AsEither(), Position: loggedRange.End.Position},
		}
	}
	return zindex.InterFileRange[zindex.EitherKey]{
		Begin: zindex.FilePosition[zindex.EitherKey]{Key: unloggedRange.Begin.Key.AsEither(), Position: unloggedRange.Begin.Position},
		End:   zindex.FilePosition[zindex.EitherKey]{Key: unloggedRange.End.Key.AsEither(), Position: unloggedRange.End.Position},
	}
}
