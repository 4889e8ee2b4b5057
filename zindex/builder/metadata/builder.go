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

// Package metadata implements MetadataBuilder: the stage that turns
// LogSplitter's and ZgramDigestor's sorted scratch files into the eight
// nested frozen containers that make up a FrozenMetadata. Every family
// follows the same recipe: open the sorted file as a tuples.Iterator,
// run it through a short combinator pipeline (collapse add/remove pairs,
// keep only "present" rows, freeze strings, count repetitions), inflate
// the result into a tuples.Group tree, and walk that tree bottom-up
// writing the matching frozen.MapWriter/SetWriter/VectorWriter.
//
// tuples.Inflate groups by column at every level up to the depth it's
// given, which is exactly what a FrozenMap-of-FrozenMap-of-FrozenSet
// destination wants. But some families bottom out in a FrozenVector
// instead (every revision of a zgram, every zgram that ++'d a key, and so on),
// and a vector level isn't "group by the next column" at all — it's
// "take every remaining row in this run as one element, in order,
// duplicates included". So each builder below passes Inflate a depth
// equal to the number of Map/Set levels only, and builds
// its trailing Vector level directly from the deepest Group's Leaves
// rather than asking Inflate to recurse one level further.
package metadata

import (
	"context"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/arena"
	"github.com/kosak/z2kplus-sub002/zindex/builder/digest"
	"github.com/kosak/z2kplus-sub002/zindex/builder/logsplit"
	"github.com/kosak/z2kplus-sub002/zindex/builder/schemas"
	"github.com/kosak/z2kplus-sub002/zindex/builder/tuples"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
)

// Build reads every metadata-bearing scratch file split and digested
// produced, resolves their string columns against pool, and writes the
// eight resulting families into w. It returns the offset of the metadata
// root record, for the caller to file away in the top-level TOC.
func Build(ctx context.Context, w *arena.Writer, pool frozen.FrozenStringPool, split *logsplit.Result, digested *digest.Result) (int64, error) {
	var refs [8]frozen.VecRef
	var err error

	families := []struct {
		name  string
		build func() (frozen.VecRef, error)
	}{
		{"reactions", func() (frozen.VecRef, error) { return buildReactions(w, pool, split.ReactionsByZgramId) }},
		{"reaction counts", func() (frozen.VecRef, error) { return buildReactionCounts(w, pool, split.ReactionsByReaction) }},
		{"zgram revisions", func() (frozen.VecRef, error) { return buildZgramRevisions(w, pool, split.ZgramRevisions) }},
		{"zgram refers-to", func() (frozen.VecRef, error) { return buildZgramRefersTo(w, split.ZgramRefersTo) }},
		{"zmojis", func() (frozen.VecRef, error) { return buildZmojis(w, pool, split.Zmojis) }},
		{"plus-pluses", func() (frozen.VecRef, error) { return buildPlusMinus(w, pool, digested.PlusPlusEntriesPath) }},
		{"minus-minuses", func() (frozen.VecRef, error) { return buildPlusMinus(w, pool, digested.MinusMinusEntriesPath) }},
		{"plus-plus keys", func() (frozen.VecRef, error) { return buildPlusPlusKeys(w, pool, digested.PlusPlusKeysPath) }},
	}
	for i, family := range families {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrapf(err, "metadata: Build: cancelled before %s", family.name)
		}
		if refs[i], err = family.build(); err != nil {
			return 0, errors.Wrapf(err, "metadata: Build: %s", family.name)
		}
	}

	return zindex.WriteMetadataRoot(w, refs)
}

func openRows(path string) (*os.File, tuples.Iterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "metadata: openRows: open %s", path)
	}
	return f, tuples.NewRowIterator(f), nil
}

func resolverFor(pool frozen.FrozenStringPool) tuples.StringResolver {
	return func(s string) (uint32, bool) {
		ref, ok := pool.TryFind(s)
		return uint32(ref), ok
	}
}

func parseZgramId(s string) zindex.ZgramId {
	v, _ := strconv.ParseUint(s, 10, 64)
	return zindex.ZgramId(v)
}

func parseStringRef(s string) frozen.StringRef {
	v, _ := strconv.ParseUint(s, 10, 32)
	return frozen.StringRef(v)
}

func parseUint32(s string) uint32 {
	v, _ := strconv.ParseUint(s, 10, 32)
	return uint32(v)
}

// buildReactions walks ReactionsByZgramId (deduplicated to the latest
// add/remove per (zgramId, reaction, creator), then restricted to rows
// still "added") into Map<ZgramId, Map<Reaction, Set<Creator>>>.
func buildReactions(w *arena.Writer, pool frozen.FrozenStringPool, path string) (frozen.VecRef, error) {
	f, it, err := openRows(path)
	if err != nil {
		return frozen.VecRef{}, err
	}
	defer f.Close()

	it = tuples.NewLastKeeper(it, schemas.ReactionsByZgramIdKeySize)
	it = tuples.NewTrueKeeper(it, 3)
	it = tuples.NewPrefixGrabber(it, 3)
	it = tuples.NewStringFreezer(it, []int{1, 2}, resolverFor(pool))

	root, err := tuples.Inflate(it, 3)
	if err != nil {
		return frozen.VecRef{}, err
	}

	outer := frozen.NewMapWriter[zindex.ZgramId, frozen.VecRef](w, frozen.NewKVCodec[zindex.ZgramId, frozen.VecRef](zindex.ZgramIdCodec{}, frozen.VecRefCodec{}))
	for _, zgramGroup := range root.Children {
		inner := frozen.NewMapWriter[frozen.StringRef, frozen.VecRef](w, frozen.NewKVCodec[frozen.StringRef, frozen.VecRef](zindex.StringRefCodec{}, frozen.VecRefCodec{}))
		for _, reactionGroup := range zgramGroup.Children {
			set := frozen.NewSetWriter[frozen.StringRef](w, zindex.StringRefCodec{})
			for _, creatorGroup := range reactionGroup.Children {
				if err := set.Append(parseStringRef(creatorGroup.Key)); err != nil {
					return frozen.VecRef{}, err
				}
			}
			if err := inner.Append(parseStringRef(reactionGroup.Key), frozen.RefOf(set)); err != nil {
				return frozen.VecRef{}, err
			}
		}
		if err := outer.Append(parseZgramId(zgramGroup.Key), frozen.RefOf(inner)); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(outer), nil
}

// buildReactionCounts walks ReactionsByReaction the same way buildReactions
// does, but counts surviving creators per (reaction, zgramId) instead of
// keeping them individually, into Map<Reaction, Map<ZgramId, count>>.
func buildReactionCounts(w *arena.Writer, pool frozen.FrozenStringPool, path string) (frozen.VecRef, error) {
	f, it, err := openRows(path)
	if err != nil {
		return frozen.VecRef{}, err
	}
	defer f.Close()

	it = tuples.NewLastKeeper(it, schemas.ReactionsByReactionKeySize)
	it = tuples.NewTrueKeeper(it, 3)
	it = tuples.NewTupleCounter(it, 2)
	it = tuples.NewStringFreezer(it, []int{0}, resolverFor(pool))

	root, err := tuples.Inflate(it, 2)
	if err != nil {
		return frozen.VecRef{}, err
	}

	outer := frozen.NewMapWriter[frozen.StringRef, frozen.VecRef](w, frozen.NewKVCodec[frozen.StringRef, frozen.VecRef](zindex.StringRefCodec{}, frozen.VecRefCodec{}))
	for _, reactionGroup := range root.Children {
		inner := frozen.NewMapWriter[zindex.ZgramId, uint32](w, frozen.NewKVCodec[zindex.ZgramId, uint32](zindex.ZgramIdCodec{}, frozen.Uint32Codec{}))
		for _, zgramGroup := range reactionGroup.Children {
			count := parseUint32(zgramGroup.Leaves[0][2])
			if err := inner.Append(parseZgramId(zgramGroup.Key), count); err != nil {
				return frozen.VecRef{}, err
			}
		}
		if err := outer.Append(parseStringRef(reactionGroup.Key), frozen.RefOf(inner)); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(outer), nil
}

// buildZgramRevisions walks ZgramRevisions, keeping every revision (no
// LastKeeper: a zgram's whole edit history survives, oldest first, since
// logsplit's sort is stable and only orders by zgramId), into
// Map<ZgramId, Vector<Revision>>.
func buildZgramRevisions(w *arena.Writer, pool frozen.FrozenStringPool, path string) (frozen.VecRef, error) {
	f, it, err := openRows(path)
	if err != nil {
		return frozen.VecRef{}, err
	}
	defer f.Close()

	it = tuples.NewStringFreezer(it, []int{1, 2}, resolverFor(pool))

	root, err := tuples.Inflate(it, 1)
	if err != nil {
		return frozen.VecRef{}, err
	}

	outer := frozen.NewMapWriter[zindex.ZgramId, frozen.VecRef](w, frozen.NewKVCodec[zindex.ZgramId, frozen.VecRef](zindex.ZgramIdCodec{}, frozen.VecRefCodec{}))
	for _, zgramGroup := range root.Children {
		vec := frozen.NewVectorWriter[zindex.Revision](w, zindex.RevisionCodec{})
		for _, row := range zgramGroup.Leaves {
			rev := zindex.Revision{
				Instance:    parseStringRef(row[1]),
				Body:        parseStringRef(row[2]),
				RenderStyle: parseUint32(row[3]),
			}
			if err := vec.Append(rev); err != nil {
				return frozen.VecRef{}, err
			}
		}
		if err := outer.Append(parseZgramId(zgramGroup.Key), frozen.RefOf(vec)); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(outer), nil
}

// buildZgramRefersTo walks ZgramRefersTos (deduplicated to the latest
// valid/invalid per (zgramId, refersTo), then restricted to rows still
// valid) into Map<ZgramId, Set<ZgramId>>.
func buildZgramRefersTo(w *arena.Writer, path string) (frozen.VecRef, error) {
	f, it, err := openRows(path)
	if err != nil {
		return frozen.VecRef{}, err
	}
	defer f.Close()

	it = tuples.NewLastKeeper(it, schemas.ZgramRefersTosKeySize)
	it = tuples.NewTrueKeeper(it, 2)
	it = tuples.NewPrefixGrabber(it, 2)

	root, err := tuples.Inflate(it, 2)
	if err != nil {
		return frozen.VecRef{}, err
	}

	outer := frozen.NewMapWriter[zindex.ZgramId, frozen.VecRef](w, frozen.NewKVCodec[zindex.ZgramId, frozen.VecRef](zindex.ZgramIdCodec{}, frozen.VecRefCodec{}))
	for _, zgramGroup := range root.Children {
		set := frozen.NewSetWriter[zindex.ZgramId](w, zindex.ZgramIdCodec{})
		for _, refersToGroup := range zgramGroup.Children {
			if err := set.Append(parseZgramId(refersToGroup.Key)); err != nil {
				return frozen.VecRef{}, err
			}
		}
		if err := outer.Append(parseZgramId(zgramGroup.Key), frozen.RefOf(set)); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(outer), nil
}

// buildZmojis walks ZmojisRevisions (deduplicated to each userId's latest
// zmojis) into Map<StringRef userId, StringRef zmojis>.
func buildZmojis(w *arena.Writer, pool frozen.FrozenStringPool, path string) (frozen.VecRef, error) {
	f, it, err := openRows(path)
	if err != nil {
		return frozen.VecRef{}, err
	}
	defer f.Close()

	it = tuples.NewLastKeeper(it, schemas.ZmojisRevisionsKeySize)
	it = tuples.NewStringFreezer(it, []int{0, 1}, resolverFor(pool))

	root, err := tuples.Inflate(it, 1)
	if err != nil {
		return frozen.VecRef{}, err
	}

	outer := frozen.NewMapWriter[frozen.StringRef, frozen.StringRef](w, frozen.NewKVCodec[frozen.StringRef, frozen.StringRef](zindex.StringRefCodec{}, zindex.StringRefCodec{}))
	for _, userGroup := range root.Children {
		zmojisRef := parseStringRef(userGroup.Leaves[0][1])
		if err := outer.Append(parseStringRef(userGroup.Key), zmojisRef); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(outer), nil
}

// buildPlusMinus walks a plus-plus or minus-minus entries file (key,
// zgramId pairs, one row per occurrence, repeats intentionally preserved
// since no combinator here collapses them) into Map<StringRef key,
// Vector<ZgramId>>. The same shape serves both plusPluses and
// minusMinuses; only the source path differs.
func buildPlusMinus(w *arena.Writer, pool frozen.FrozenStringPool, path string) (frozen.VecRef, error) {
	f, it, err := openRows(path)
	if err != nil {
		return frozen.VecRef{}, err
	}
	defer f.Close()

	it = tuples.NewStringFreezer(it, []int{0}, resolverFor(pool))

	root, err := tuples.Inflate(it, 1)
	if err != nil {
		return frozen.VecRef{}, err
	}

	outer := frozen.NewMapWriter[frozen.StringRef, frozen.VecRef](w, frozen.NewKVCodec[frozen.StringRef, frozen.VecRef](zindex.StringRefCodec{}, frozen.VecRefCodec{}))
	for _, keyGroup := range root.Children {
		vec := frozen.NewVectorWriter[zindex.ZgramId](w, zindex.ZgramIdCodec{})
		for _, row := range keyGroup.Leaves {
			if err := vec.Append(parseZgramId(row[1])); err != nil {
				return frozen.VecRef{}, err
			}
		}
		if err := outer.Append(parseStringRef(keyGroup.Key), frozen.RefOf(vec)); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(outer), nil
}

// buildPlusPlusKeys walks PlusPlusKeys into Map<ZgramId, Vector<StringRef>>,
// the per-zgram inverse of buildPlusMinus: every key a given zgram
// incremented or decremented.
func buildPlusPlusKeys(w *arena.Writer, pool frozen.FrozenStringPool, path string) (frozen.VecRef, error) {
	f, it, err := openRows(path)
	if err != nil {
		return frozen.VecRef{}, err
	}
	defer f.Close()

	it = tuples.NewStringFreezer(it, []int{1}, resolverFor(pool))

	root, err := tuples.Inflate(it, 1)
	if err != nil {
		return frozen.VecRef{}, err
	}

	outer := frozen.NewMapWriter[zindex.ZgramId, frozen.VecRef](w, frozen.NewKVCodec[zindex.ZgramId, frozen.VecRef](zindex.ZgramIdCodec{}, frozen.VecRefCodec{}))
	for _, zgramGroup := range root.Children {
		vec := frozen.NewVectorWriter[frozen.StringRef](w, zindex.StringRefCodec{})
		for _, row := range zgramGroup.Leaves {
			if err := vec.Append(parseStringRef(row[1])); err != nil {
				return frozen.VecRef{}, err
			}
		}
		if err := outer.Append(parseZgramId(zgramGroup.Key), frozen.RefOf(vec)); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(outer), nil
}
