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

// Package logsplit fans the corpus out across shard workers, each of
// which reads its assigned plaintext byte ranges and appends every
// record to the scratch file for its schema: two per-shard zgram files
// (kept separate, one per shard, for ZgramDigestor to merge) and five
// shared metadata schemas (reactions, revisions, refers-tos, zmojis)
// that get external-sorted back down to one file apiece once every shard
// has finished writing its slice.
package logsplit

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/builder/schemas"
	"github.com/kosak/z2kplus-sub002/zindex/extsort"
	"github.com/kosak/z2kplus-sub002/zindex/pathmaster"
)

const (
	loggedZgramsName     = "logged_zgrams"
	unloggedZgramsName   = "unlogged_zgrams"
	reactionsByZgramName = "reactions_by_zgram_id"
	reactionsByRxnName   = "reactions_by_reaction"
	zgramRevisionsName   = "zgram_revisions"
	zgramRefersToName    = "zgram_refers_to"
	zmojisName           = "zmojis"
)

// Result names the scratch files LogSplitter produced: one presorted,
// per-shard file apiece for logged and unlogged zgrams (ZgramDigestor
// merges these by ZgramId itself, so they don't need a global sort), and
// one fully sorted file apiece for the five metadata schemas.
type Result struct {
	LoggedZgramShards   []string
	UnloggedZgramShards []string
	ReactionsByZgramId  string
	ReactionsByReaction string
	ZgramRevisions      string
	ZgramRefersTo       string
	Zmojis              string
}

// Split partitions ranges into numShards contiguous blocks (earlier
// shards absorb the remainder, matching the original's shardSize+excess
// split) and runs one worker per shard via errgroup. Every worker reads
// its own plaintext byte ranges independently; nothing here touches the
// arena or any other shard's output, so the only synchronization needed
// is errgroup.Wait() before the post-shard external sorts begin.
func Split(ctx context.Context, pm *pathmaster.PathMaster, ranges []pathmaster.IntraFileRange, numShards int) (*Result, error) {
	if numShards < 1 {
		numShards = 1
	}
	shards := partition(ranges, numShards)

	shardResults := make([]*shardOutput, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			out, err := runShard(gctx, pm, i, shard)
			if err != nil {
				return errors.Wrapf(err, "logsplit: Split: shard %d", i)
			}
			shardResults[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	var rxByZInputs, rxByRInputs, zgRevInputs, zgRefersToInputs, zmojiInputs []string
	for _, out := range shardResults {
		result.LoggedZgramShards = append(result.LoggedZgramShards, out.loggedPath)
		result.UnloggedZgramShards = append(result.UnloggedZgramShards, out.unloggedPath)
		rxByZInputs = append(rxByZInputs, out.reactionsByZgramPath)
		rxByRInputs = append(rxByRInputs, out.reactionsByRxnPath)
		zgRevInputs = append(zgRevInputs, out.revisionsPath)
		zgRefersToInputs = append(zgRefersToInputs, out.refersToPath)
		zmojiInputs = append(zmojiInputs, out.zmojisPath)
	}

	result.ReactionsByZgramId = pm.ScratchPathFor(reactionsByZgramName)
	result.ReactionsByReaction = pm.ScratchPathFor(reactionsByRxnName)
	result.ZgramRevisions = pm.ScratchPathFor(zgramRevisionsName)
	result.ZgramRefersTo = pm.ScratchPathFor(zgramRefersToName)
	result.Zmojis = pm.ScratchPathFor(zmojisName)

	sg, sgctx := errgroup.WithContext(ctx)
	sg.Go(func() error {
		return sortSchema(sgctx, rxByZInputs, result.ReactionsByZgramId, schemas.ReactionsByZgramIdKeyOptions)
	})
	sg.Go(func() error {
		return sortSchema(sgctx, rxByRInputs, result.ReactionsByReaction, schemas.ReactionsByReactionKeyOptions)
	})
	sg.Go(func() error {
		return sortSchema(sgctx, zgRevInputs, result.ZgramRevisions, schemas.ZgramRevisionsKeyOptions)
	})
	sg.Go(func() error {
		return sortSchema(sgctx, zgRefersToInputs, result.ZgramRefersTo, schemas.ZgramRefersTosKeyOptions)
	})
	sg.Go(func() error {
		return sortSchema(sgctx, zmojiInputs, result.Zmojis, schemas.ZmojisRevisionsKeyOptions)
	})
	if err := sg.Wait(); err != nil {
		return nil, errors.Wrap(err, "logsplit: Split: external sort")
	}

	return result, nil
}

func sortSchema(ctx context.Context, inputs []string, output string, keyOptions []schemas.KeyOptions) error {
	extKeys := make([]extsort.KeyOptions, len(keyOptions))
	for i, ko := range keyOptions {
		extKeys[i] = extsort.KeyOptions{OneBasedIndex: i + 1, Numeric: ko.Numeric}
	}
	opts := extsort.Options{Stable: true, Unique: false, FieldSeparator: schemas.FieldSep, LineSeparatorIsNul: true}
	return extsort.Sort(ctx, opts, extKeys, inputs, output)
}

func partition(ranges []pathmaster.IntraFileRange, numShards int) [][]pathmaster.IntraFileRange {
	sorted := append([]pathmaster.IntraFileRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Key.Raw() != sorted[j].Key.Raw() {
			return sorted[i].Key.Raw() < sorted[j].Key.Raw()
		}
		return sorted[i].Begin < sorted[j].Begin
	})

	shards := make([][]pathmaster.IntraFileRange, numShards)
	shardSize := len(sorted) / numShards
	excess := len(sorted) % numShards
	pos := 0
	for i := 0; i < numShards; i++ {
		bonus := 0
		if excess > 0 {
			bonus = 1
			excess--
		}
		end := pos + shardSize + bonus
		shards[i] = sorted[pos:end]
		pos = end
	}
	return shards
}

type shardOutput struct {
	loggedPath           string
	unloggedPath         string
	reactionsByZgramPath string
	reactionsByRxnPath   string
	revisionsPath        string
	refersToPath         string
	zmojisPath           string
}

func runShard(ctx context.Context, pm *pathmaster.PathMaster, shard int, ranges []pathmaster.IntraFileRange) (*shardOutput, error) {
	suffix := fmt.Sprintf(".presorted.%d", shard)
	out := &shardOutput{
		loggedPath:           pm.ScratchPathFor(loggedZgramsName + suffix),
		unloggedPath:         pm.ScratchPathFor(unloggedZgramsName + suffix),
		reactionsByZgramPath: pm.ScratchPathFor(reactionsByZgramName + suffix),
		reactionsByRxnPath:   pm.ScratchPathFor(reactionsByRxnName + suffix),
		revisionsPath:        pm.ScratchPathFor(zgramRevisionsName + suffix),
		refersToPath:         pm.ScratchPathFor(zgramRefersToName + suffix),
		zmojisPath:           pm.ScratchPathFor(zmojisName + suffix),
	}

	w, err := newShardWriters(out)
	if err != nil {
		return nil, err
	}
	defer w.closeAll()

	cursor := &zgramCursor{}
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := scanRange(pm, r, w, cursor); err != nil {
			return nil, err
		}
	}
	if err := w.finish(); err != nil {
		return nil, err
	}
	return out, nil
}

// zgramCursor tracks the last-seen ZgramId on each side of the logged/
// unlogged split, so appendRecord can enforce the monotonically
// increasing arrival order the rest of the pipeline assumes.
type zgramCursor struct {
	logged, unlogged *zindex.ZgramId
}

type shardWriters struct {
	loggedFile, unloggedFile                                           *os.File
	rxByZFile, rxByRFile, revFile, refersToFile, zmojisFile             *os.File
	logged, unlogged, rxByZ, rxByR, rev, refersTo, zmojis               *bufio.Writer
}

func newShardWriters(out *shardOutput) (*shardWriters, error) {
	open := func(path string) (*os.File, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "logsplit: create %s", path)
		}
		return f, nil
	}
	var err error
	w := &shardWriters{}
	if w.loggedFile, err = open(out.loggedPath); err != nil {
		return nil, err
	}
	if w.unloggedFile, err = open(out.unloggedPath); err != nil {
		return nil, err
	}
	if w.rxByZFile, err = open(out.reactionsByZgramPath); err != nil {
		return nil, err
	}
	if w.rxByRFile, err = open(out.reactionsByRxnPath); err != nil {
		return nil, err
	}
	if w.revFile, err = open(out.revisionsPath); err != nil {
		return nil, err
	}
	if w.refersToFile, err = open(out.refersToPath); err != nil {
		return nil, err
	}
	if w.zmojisFile, err = open(out.zmojisPath); err != nil {
		return nil, err
	}
	w.logged = bufio.NewWriter(w.loggedFile)
	w.unlogged = bufio.NewWriter(w.unloggedFile)
	w.rxByZ = bufio.NewWriter(w.rxByZFile)
	w.rxByR = bufio.NewWriter(w.rxByRFile)
	w.rev = bufio.NewWriter(w.revFile)
	w.refersTo = bufio.NewWriter(w.refersToFile)
	w.zmojis = bufio.NewWriter(w.zmojisFile)
	return w, nil
}

func writeRow(bw *bufio.Writer, row []string) error {
	_, err := bw.WriteString(schemas.JoinRow(row))
	if err != nil {
		return err
	}
	return bw.WriteByte(schemas.RecordSep)
}

func (w *shardWriters) finish() error {
	for _, bw := range []*bufio.Writer{w.logged, w.unlogged, w.rxByZ, w.rxByR, w.rev, w.refersTo, w.zmojis} {
		if err := bw.Flush(); err != nil {
			return errors.Wrap(err, "logsplit: flush")
		}
	}
	for _, f := range []*os.File{w.loggedFile, w.unloggedFile, w.rxByZFile, w.rxByRFile, w.revFile, w.refersToFile, w.zmojisFile} {
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "logsplit: close")
		}
	}
	return nil
}

func (w *shardWriters) closeAll() {
	for _, f := range []*os.File{w.loggedFile, w.unloggedFile, w.rxByZFile, w.rxByRFile, w.revFile, w.refersToFile, w.zmojisFile} {
		if f != nil {
			_ = f.Close()
		}
	}
}

// scanRange reads plaintext file r.Key between [r.Begin, r.End), splits it
// on newline records, and appends each parsed record to the matching
// schema writer. Zgram records additionally enforce monotonically
// increasing ZgramId and logged/unlogged consistency with the file they
// were found in, exactly as the original's SplitterVisitor does.
func scanRange(pm *pathmaster.PathMaster, r pathmaster.IntraFileRange, w *shardWriters, cursor *zgramCursor) error {
	path := pm.PlaintextPath(r.Key)
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "logsplit: open %s", path)
	}
	defer f.Close()

	if _, err := f.Seek(int64(r.Begin), 0); err != nil {
		return errors.Wrapf(err, "logsplit: seek %s", path)
	}
	buf := make([]byte, r.End-r.Begin)
	if _, err := readFull(f, buf); err != nil {
		return errors.Wrapf(err, "logsplit: read %s", path)
	}

	offset := r.Begin
	for _, line := range strings.Split(string(buf), "\n") {
		trimmed := strings.TrimSpace(line)
		size := uint32(len(line)) + 1
		if trimmed == "" {
			offset += size
			continue
		}
		rec, err := zindex.ParseLogLine([]byte(trimmed))
		if err != nil {
			return errors.Wrapf(err, "logsplit: %s at offset %d", path, offset)
		}
		if err := appendRecord(rec, r.Key, offset, uint32(len(trimmed)), w, cursor); err != nil {
			return errors.Wrapf(err, "logsplit: %s at offset %d", path, offset)
		}
		offset += size
	}
	return nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

func appendRecord(rec zindex.LogRecord, key zindex.EitherKey, offset, size uint32, w *shardWriters, cursor *zgramCursor) error {
	switch rec.Kind {
	case zindex.RecordZephyrgram:
		z := rec.Zephyrgram
		expectedLogged := key.IsLogged()
		if z.IsLogged != expectedLogged {
			return fmt.Errorf("%w: zgram %d has IsLogged=%v but lives in a %v file", zindex.ErrInvariant, z.Id, z.IsLogged, expectedLogged)
		}
		whichPrev := &cursor.unlogged
		dest := w.unlogged
		if expectedLogged {
			whichPrev = &cursor.logged
			dest = w.logged
		}
		if *whichPrev != nil && **whichPrev >= z.Id {
			return fmt.Errorf("%w: zgrams arriving out of order: %d then %d", zindex.ErrInvariant, **whichPrev, z.Id)
		}
		id := z.Id
		*whichPrev = &id
		row := schemas.Zephyrgram{
			ZgramID: uint64(z.Id), TimeSecs: z.TimeSecs, Sender: z.Sender, Signature: z.Signature,
			IsLogged: z.IsLogged, Instance: z.Instance, Body: z.Body,
			FileKey: key.Raw(), Offset: offset, Size: size,
		}.ToRow()
		return writeRow(dest, row)
	case zindex.RecordMetadata:
		md := rec.Metadata
		switch md.Kind {
		case zindex.MetadataReaction:
			r := md.Reaction
			if err := writeRow(w.rxByZ, schemas.ReactionsByZgramId{ZgramID: uint64(r.ZgramId), Reaction: r.Reaction, Creator: r.Creator, WantAdd: r.WantAdd}.ToRow()); err != nil {
				return err
			}
			return writeRow(w.rxByR, schemas.ReactionsByReaction{Reaction: r.Reaction, ZgramID: uint64(r.ZgramId), Creator: r.Creator, WantAdd: r.WantAdd}.ToRow())
		case zindex.MetadataZgramRevision:
			r := md.ZgramRevision
			return writeRow(w.rev, schemas.ZgramRevisions{ZgramID: uint64(r.ZgramId), Instance: r.Instance, Body: r.Body, RenderStyle: r.RenderStyle}.ToRow())
		case zindex.MetadataZgramRefersTo:
			r := md.ZgramRefersTo
			return writeRow(w.refersTo, schemas.ZgramRefersTos{ZgramID: uint64(r.ZgramId), RefersTo: uint64(r.RefersTo), Valid: r.Valid}.ToRow())
		case zindex.MetadataZmojis:
			r := md.Zmojis
			return writeRow(w.zmojis, schemas.ZmojisRevisions{UserID: r.UserId, Zmojis: r.Emojis}.ToRow())
		}
	}
	return fmt.Errorf("%w: unrecognized log record", zindex.ErrInvariant)
}
