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

// Package digest implements ZgramDigestor: one worker per LogSplitter
// shard, each merging its shard's sorted logged/unlogged zgram streams by
// ZgramId, applying the latest revision (if any) from the global
// ZgramRevisions stream, word-splitting the four text fields into the
// trie, and scanning the effective body for plus-plus/minus-minus
// tokens. A gather step then concatenates every shard's ZgramInfo/
// WordInfo rows (translating shard-local offsets to global ones via a
// prefix sum) and externally sorts the per-shard plus-plus/minus-minus/
// plus-plus-keys/trie-entry scratch files into single, globally ordered
// files.
package digest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/builder/logsplit"
	"github.com/kosak/z2kplus-sub002/zindex/builder/schemas"
	"github.com/kosak/z2kplus-sub002/zindex/builder/trie"
	"github.com/kosak/z2kplus-sub002/zindex/builder/tuples"
	"github.com/kosak/z2kplus-sub002/zindex/extsort"
	"github.com/kosak/z2kplus-sub002/zindex/pathmaster"
)

const (
	trieEntriesName       = "trie_entries"
	plusPlusEntriesName   = "plus_plus_entries"
	minusMinusEntriesName = "minus_minus_entries"
	plusPlusKeysName      = "plus_plus_keys"
)

// Result is ZgramDigestor's output: the two global parallel vectors ready
// to blit into the final arena, the finished word trie's root offset, and
// the three globally-sorted plus-plus scratch files MetadataBuilder reads
// from later.
type Result struct {
	ZgramInfos []zindex.ZgramInfo
	WordInfos  []zindex.WordInfo
	TrieRoot   int64

	PlusPlusEntriesPath   string
	MinusMinusEntriesPath string
	PlusPlusKeysPath      string
}

// Digest runs one worker per shard of split, then gathers their output.
// trieBuilder must already be wired to the arena the caller intends to
// freeze the rest of the index into; Digest calls its Finish exactly
// once, after every shard's trie entries have been merged and replayed in
// sorted order.
func Digest(ctx context.Context, pm *pathmaster.PathMaster, split *logsplit.Result, trieBuilder *trie.Builder) (*Result, error) {
	numShards := len(split.LoggedZgramShards)
	if numShards != len(split.UnloggedZgramShards) {
		return nil, errors.New("digest: Digest: logged/unlogged shard counts disagree")
	}

	shardResults := make([]*shardResult, numShards)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numShards; i++ {
		i := i
		g.Go(func() error {
			out, err := digestShard(gctx, pm, i, split)
			if err != nil {
				return errors.Wrapf(err, "digest: Digest: shard %d", i)
			}
			shardResults[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zgramOffsetBase := make([]uint64, numShards)
	wordOffsetBase := make([]uint64, numShards)
	var zgramOff, wordOff uint64
	for i, sr := range shardResults {
		zgramOffsetBase[i] = zgramOff
		wordOffsetBase[i] = wordOff
		zgramOff += uint64(len(sr.zgInfos))
		wordOff += sr.numWords
	}

	var zgramInfos []zindex.ZgramInfo
	var wordInfos []zindex.WordInfo
	for i, sr := range shardResults {
		for _, zi := range sr.zgInfos {
			zi.FirstWordOff += wordOffsetBase[i]
			zgramInfos = append(zgramInfos, zi)
		}
		for _, wi := range sr.wordInfos {
			wi.ZgramOff += zgramOffsetBase[i]
			wordInfos = append(wordInfos, wi)
		}
	}
	for i := 1; i < len(zgramInfos); i++ {
		if zgramInfos[i].ZgramId <= zgramInfos[i-1].ZgramId {
			return nil, fmt.Errorf("%w: digest: Digest: zgram %d is out of order with respect to %d",
				zindex.ErrInvariant, zgramInfos[i].ZgramId, zgramInfos[i-1].ZgramId)
		}
	}

	result := &Result{
		ZgramInfos:            zgramInfos,
		WordInfos:             wordInfos,
		PlusPlusEntriesPath:   pm.ScratchPathFor(plusPlusEntriesName),
		MinusMinusEntriesPath: pm.ScratchPathFor(minusMinusEntriesName),
		PlusPlusKeysPath:      pm.ScratchPathFor(plusPlusKeysName),
	}

	sg, sgctx := errgroup.WithContext(ctx)
	trieEntriesSorted := pm.ScratchPathFor(trieEntriesName)
	sg.Go(func() error {
		inputs := collect(shardResults, func(sr *shardResult) string { return sr.trieEntriesPath })
		return extsort.Sort(sgctx, extsort.Options{Stable: true, FieldSeparator: schemas.FieldSep, LineSeparatorIsNul: true},
			[]extsort.KeyOptions{{OneBasedIndex: 1}, {OneBasedIndex: 2, Numeric: true}}, inputs, trieEntriesSorted)
	})
	sg.Go(func() error {
		inputs := collect(shardResults, func(sr *shardResult) string { return sr.plusPlusPath })
		return extsort.Sort(sgctx, extsort.Options{FieldSeparator: schemas.FieldSep, LineSeparatorIsNul: true},
			[]extsort.KeyOptions{{OneBasedIndex: 1}, {OneBasedIndex: 2, Numeric: true}}, inputs, result.PlusPlusEntriesPath)
	})
	sg.Go(func() error {
		inputs := collect(shardResults, func(sr *shardResult) string { return sr.minusMinusPath })
		return extsort.Sort(sgctx, extsort.Options{FieldSeparator: schemas.FieldSep, LineSeparatorIsNul: true},
			[]extsort.KeyOptions{{OneBasedIndex: 1}, {OneBasedIndex: 2, Numeric: true}}, inputs, result.MinusMinusEntriesPath)
	})
	sg.Go(func() error {
		inputs := collect(shardResults, func(sr *shardResult) string { return sr.plusPlusKeysPath })
		return extsort.Sort(sgctx, extsort.Options{Unique: true, FieldSeparator: schemas.FieldSep, LineSeparatorIsNul: true},
			[]extsort.KeyOptions{{OneBasedIndex: 1, Numeric: true}, {OneBasedIndex: 2}}, inputs, result.PlusPlusKeysPath)
	})
	if err := sg.Wait(); err != nil {
		return nil, errors.Wrap(err, "digest: Digest: external sort")
	}

	if err := gatherTrie(trieEntriesSorted, wordOffsetBase, trieBuilder); err != nil {
		return nil, errors.Wrap(err, "digest: Digest: gather trie")
	}
	trieRoot, err := trieBuilder.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "digest: Digest: trie Finish")
	}
	result.TrieRoot = trieRoot

	return result, nil
}

func collect(shardResults []*shardResult, pick func(*shardResult) string) []string {
	out := make([]string, len(shardResults))
	for i, sr := range shardResults {
		out[i] = pick(sr)
	}
	return out
}

// gatherTrie replays trieEntriesSorted (sorted by word, then shard) and,
// for every run of rows sharing a word, combines their relative word
// offsets — translated to absolute offsets via wordOffsetBase — into one
// Insert call. The merge relies on the sort having produced byte-
// lexicographic order on the word column, which for valid UTF-8 text
// coincides with the by-codepoint order Builder.Insert requires.
func gatherTrie(path string, wordOffsetBase []uint64, tb *trie.Builder) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "digest: gatherTrie: open %s", path)
	}
	defer f.Close()

	it := tuples.NewRowIterator(f)
	var pendingWord string
	var pendingOffsets []uint64
	hasPending := false

	flush := func() error {
		if !hasPending {
			return nil
		}
		if err := tb.Insert([]rune(pendingWord), pendingOffsets); err != nil {
			return errors.Wrapf(err, "digest: gatherTrie: insert %q", pendingWord)
		}
		pendingOffsets = nil
		return nil
	}

	for {
		row, err := it.Next()
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		word := row[0]
		shard, err := strconv.ParseUint(row[1], 10, 32)
		if err != nil {
			return errors.Wrapf(err, "digest: gatherTrie: malformed shard column %q", row[1])
		}
		offs, err := decodeOffsets(row[3], wordOffsetBase[shard])
		if err != nil {
			return err
		}
		if hasPending && word != pendingWord {
			if err := flush(); err != nil {
				return err
			}
		}
		pendingWord = word
		pendingOffsets = append(pendingOffsets, offs...)
		hasPending = true
	}
	return flush()
}

func decodeOffsets(field string, base uint64) ([]uint64, error) {
	parts := strings.Split(field, ",")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "digest: decodeOffsets: malformed offset %q", p)
		}
		out[i] = base + v
	}
	return out, nil
}

// shardResult is one DigesterThread's output: its gathered-in-memory
// ZgramInfo/WordInfo rows (shard-local offsets, adjusted to global by the
// caller) plus the paths of its four presorted scratch files.
type shardResult struct {
	zgInfos   []zindex.ZgramInfo
	wordInfos []zindex.WordInfo
	numWords  uint64

	trieEntriesPath  string
	plusPlusPath     string
	minusMinusPath   string
	plusPlusKeysPath string
}

func digestShard(ctx context.Context, pm *pathmaster.PathMaster, shard int, split *logsplit.Result) (*shardResult, error) {
	loggedF, err := os.Open(split.LoggedZgramShards[shard])
	if err != nil {
		return nil, errors.Wrapf(err, "digest: digestShard %d: open logged", shard)
	}
	defer loggedF.Close()
	unloggedF, err := os.Open(split.UnloggedZgramShards[shard])
	if err != nil {
		return nil, errors.Wrapf(err, "digest: digestShard %d: open unlogged", shard)
	}
	defer unloggedF.Close()
	revF, err := os.Open(split.ZgramRevisions)
	if err != nil {
		return nil, errors.Wrapf(err, "digest: digestShard %d: open revisions", shard)
	}
	defer revF.Close()

	loggedIter := tuples.NewRowIterator(loggedF)
	unloggedIter := tuples.NewRowIterator(unloggedF)
	revIter := tuples.NewRowIterator(revF)

	nextZephyrgram := func(it *tuples.RowIterator) (*schemas.Zephyrgram, error) {
		row, err := it.Next()
		if err != nil || row == nil {
			return nil, err
		}
		z := schemas.ZephyrgramFromRow(row)
		return &z, nil
	}

	var curRev *schemas.ZgramRevisions
	advanceRev := func() error {
		row, err := revIter.Next()
		if err != nil {
			return err
		}
		if row == nil {
			curRev = nil
			return nil
		}
		r := schemas.ZgramRevisionsFromRow(row)
		curRev = &r
		return nil
	}
	if err := advanceRev(); err != nil {
		return nil, errors.Wrapf(err, "digest: digestShard %d: revisions", shard)
	}

	sr := &shardResult{
		trieEntriesPath:  pm.ScratchPathFor(fmt.Sprintf("%s.presorted.%d", trieEntriesName, shard)),
		plusPlusPath:     pm.ScratchPathFor(fmt.Sprintf("%s.presorted.%d", plusPlusEntriesName, shard)),
		minusMinusPath:   pm.ScratchPathFor(fmt.Sprintf("%s.presorted.%d", minusMinusEntriesName, shard)),
		plusPlusKeysPath: pm.ScratchPathFor(fmt.Sprintf("%s.presorted.%d", plusPlusKeysName, shard)),
	}
	writers, err := newPlusPlusWriters(sr)
	if err != nil {
		return nil, err
	}
	defer writers.closeAll()

	trieWords := map[string][]uint64{}

	thisLogged, err := nextZephyrgram(loggedIter)
	if err != nil {
		return nil, errors.Wrapf(err, "digest: digestShard %d: logged", shard)
	}
	thisUnlogged, err := nextZephyrgram(unloggedIter)
	if err != nil {
		return nil, errors.Wrapf(err, "digest: digestShard %d: unlogged", shard)
	}

	var wordOff uint64
	for thisLogged != nil || thisUnlogged != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var useLogged bool
		switch {
		case thisLogged == nil:
			useLogged = false
		case thisUnlogged == nil:
			useLogged = true
		default:
			if thisLogged.ZgramID == thisUnlogged.ZgramID {
				return nil, fmt.Errorf("%w: digest: digestShard %d: logged and unlogged both have zgram %d",
					zindex.ErrInvariant, shard, thisLogged.ZgramID)
			}
			useLogged = thisLogged.ZgramID < thisUnlogged.ZgramID
		}
		z := thisUnlogged
		if useLogged {
			z = thisLogged
		}

		for curRev != nil && curRev.ZgramID < z.ZgramID {
			if err := advanceRev(); err != nil {
				return nil, err
			}
		}
		instanceToUse, bodyToUse := z.Instance, z.Body
		for curRev != nil && curRev.ZgramID == z.ZgramID {
			instanceToUse, bodyToUse = curRev.Instance, curRev.Body
			if err := advanceRev(); err != nil {
				return nil, err
			}
		}

		firstWordOff := wordOff
		zgramOff := uint64(len(sr.zgInfos))
		fieldsInOrder := [4]struct {
			tag  zindex.FieldTag
			text string
		}{
			{zindex.FieldSender, z.Sender},
			{zindex.FieldSignature, z.Signature},
			{zindex.FieldInstance, instanceToUse},
			{zindex.FieldBody, bodyToUse},
		}
		var lens [4]uint32
		for i, fld := range fieldsInOrder {
			tokens := splitWords(fld.text)
			lens[i] = uint32(len(tokens))
			for _, tok := range tokens {
				sr.wordInfos = append(sr.wordInfos, zindex.WordInfo{ZgramOff: zgramOff, Field: fld.tag})
				trieWords[tok] = append(trieWords[tok], wordOff)
				wordOff++
			}
		}
		sr.zgInfos = append(sr.zgInfos, zindex.ZgramInfo{
			TimeSecs:     z.TimeSecs,
			Location:     zindex.LogLocation{FileKey: zindex.EitherKeyFromRaw(z.FileKey), Offset: z.Offset, Size: z.Size},
			FirstWordOff: firstWordOff,
			ZgramId:      zindex.ZgramId(z.ZgramID),
			SenderLen:    lens[0],
			SignatureLen: lens[1],
			InstanceLen:  lens[2],
			BodyLen:      lens[3],
		})

		if err := writers.writePlusPluses(z.ZgramID, scanPlusPluses(bodyToUse)); err != nil {
			return nil, err
		}

		if useLogged {
			thisLogged, err = nextZephyrgram(loggedIter)
		} else {
			thisUnlogged, err = nextZephyrgram(unloggedIter)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "digest: digestShard %d", shard)
		}
	}

	if err := writers.writeTrieEntries(shard, trieWords); err != nil {
		return nil, err
	}
	if err := writers.finish(); err != nil {
		return nil, err
	}

	sr.numWords = wordOff
	return sr, nil
}

// plusPlusWriters owns the four per-shard scratch files a digest worker
// appends to: plus-pluses, minus-minuses, plus-plus-keys, and trie
// entries (one row per distinct word touched by this shard).
type plusPlusWriters struct {
	plusFile, minusFile, keysFile, trieFile *os.File
	plus, minus, keys, trie                 *bufio.Writer
}

func newPlusPlusWriters(sr *shardResult) (*plusPlusWriters, error) {
	open := func(path string) (*os.File, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "digest: create %s", path)
		}
		return f, nil
	}
	w := &plusPlusWriters{}
	var err error
	if w.plusFile, err = open(sr.plusPlusPath); err != nil {
		return nil, err
	}
	if w.minusFile, err = open(sr.minusMinusPath); err != nil {
		return nil, err
	}
	if w.keysFile, err = open(sr.plusPlusKeysPath); err != nil {
		return nil, err
	}
	if w.trieFile, err = open(sr.trieEntriesPath); err != nil {
		return nil, err
	}
	w.plus = bufio.NewWriter(w.plusFile)
	w.minus = bufio.NewWriter(w.minusFile)
	w.keys = bufio.NewWriter(w.keysFile)
	w.trie = bufio.NewWriter(w.trieFile)
	return w, nil
}

// writePlusPluses repeats each key's row as many times as its net
// (absolute) delta — a key incremented twice nets two identical rows, not
// a count column — so that PlusPluses' extsort stays non-unique and the
// final vec<ZgramId> a key maps to has the right multiplicity. Every key
// is additionally recorded once in plus-plus-keys regardless of its net
// delta, per spec.md §4.5.
func (w *plusPlusWriters) writePlusPluses(zgramID uint64, deltas map[string]int) error {
	id := strconv.FormatUint(zgramID, 10)
	for key, delta := range deltas {
		dest := w.plus
		count := delta
		if delta < 0 {
			dest = w.minus
			count = -delta
		}
		row := schemas.JoinRow([]string{key, id})
		for i := 0; i < count; i++ {
			if _, err := dest.WriteString(row); err != nil {
				return errors.Wrap(err, "digest: writePlusPluses")
			}
			if err := dest.WriteByte(schemas.RecordSep); err != nil {
				return errors.Wrap(err, "digest: writePlusPluses")
			}
		}
		if delta == 0 {
			// A key present with net-zero delta still needs dependency
			// tracking on both sides, matching the original's hack of
			// writing one balanced entry to plus-pluses and minus-minuses.
			for _, d := range []*bufio.Writer{w.plus, w.minus} {
				if _, err := d.WriteString(row); err != nil {
					return errors.Wrap(err, "digest: writePlusPluses")
				}
				if err := d.WriteByte(schemas.RecordSep); err != nil {
					return errors.Wrap(err, "digest: writePlusPluses")
				}
			}
		}
		keyRow := schemas.JoinRow([]string{id, key})
		if _, err := w.keys.WriteString(keyRow); err != nil {
			return errors.Wrap(err, "digest: writePlusPluses: keys")
		}
		if err := w.keys.WriteByte(schemas.RecordSep); err != nil {
			return errors.Wrap(err, "digest: writePlusPluses: keys")
		}
	}
	return nil
}

func (w *plusPlusWriters) writeTrieEntries(shard int, trieWords map[string][]uint64) error {
	for word, offs := range trieWords {
		parts := make([]string, len(offs))
		for i, off := range offs {
			parts[i] = strconv.FormatUint(off, 10)
		}
		row := schemas.JoinRow([]string{word, strconv.Itoa(shard), strconv.Itoa(len(offs)), strings.Join(parts, ",")})
		if _, err := w.trie.WriteString(row); err != nil {
			return errors.Wrap(err, "digest: writeTrieEntries")
		}
		if err := w.trie.WriteByte(schemas.RecordSep); err != nil {
			return errors.Wrap(err, "digest: writeTrieEntries")
		}
	}
	return nil
}

func (w *plusPlusWriters) finish() error {
	for _, bw := range []*bufio.Writer{w.plus, w.minus, w.keys, w.trie} {
		if err := bw.Flush(); err != nil {
			return errors.Wrap(err, "digest: flush")
		}
	}
	for _, f := range []*os.File{w.plusFile, w.minusFile, w.keysFile, w.trieFile} {
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "digest: close")
		}
	}
	return nil
}

func (w *plusPlusWriters) closeAll() {
	for _, f := range []*os.File{w.plusFile, w.minusFile, w.keysFile, w.trieFile} {
		if f != nil {
			_ = f.Close()
		}
	}
}
