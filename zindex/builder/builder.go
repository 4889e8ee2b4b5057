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

// Package builder implements the Top-Level Builder: the entry point that
// turns a PathMaster's plaintext corpus into a new frozen index. It
// clears scratch, discovers the requested byte ranges, shards and splits
// them, digests zgrams and words, canonicalizes strings, builds metadata
// and the trie, and freezes everything into one arena before publishing
// it — the Go rendering of zoekt/build.Builder's "buffer, flush, repeat"
// loop, generalized here to a single-shot streaming build since an index
// build here is a batch job, not an incremental per-repository add.
package builder

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	sglog "github.com/sourcegraph/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/arena"
	"github.com/kosak/z2kplus-sub002/zindex/builder/digest"
	"github.com/kosak/z2kplus-sub002/zindex/builder/logsplit"
	"github.com/kosak/z2kplus-sub002/zindex/builder/metadata"
	"github.com/kosak/z2kplus-sub002/zindex/builder/strings"
	triebuilder "github.com/kosak/z2kplus-sub002/zindex/builder/trie"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
	"github.com/kosak/z2kplus-sub002/zindex/pathmaster"
)

const buildLogName = "zindex-build-log.tsv"

// Options controls what a build indexes and how it shards the work.
type Options struct {
	LoggedRange   zindex.InterFileRange[zindex.LoggedKey]
	UnloggedRange zindex.InterFileRange[zindex.UnloggedKey]

	// NumShards caps how many goroutines LogSplitter and ZgramDigestor
	// fan out to. Zero means use runtime.NumCPU().
	NumShards int

	// Logger receives the build's watermark line. Nil means discard it.
	Logger sglog.Logger
}

// Build runs the whole pipeline and publishes the result as pm's new
// index. On any error the scratch arena is abandoned and pm's previously
// published index (if any) is untouched.
func Build(ctx context.Context, pm *pathmaster.PathMaster, opts Options) error {
	if err := clearScratch(pm); err != nil {
		return errors.Wrap(err, "builder: Build: clear scratch")
	}

	analyzer, err := pathmaster.Analyze(pm, opts.LoggedRange, opts.UnloggedRange)
	if err != nil {
		return errors.Wrap(err, "builder: Build: analyze")
	}

	numShards := opts.NumShards
	if numShards < 1 {
		numShards = runtime.NumCPU()
	}

	split, err := logsplit.Split(ctx, pm, analyzer.IncludedRanges, numShards)
	if err != nil {
		return errors.Wrap(err, "builder: Build: split")
	}

	w, err := arena.NewWriter(pm.ScratchIndexPath())
	if err != nil {
		return errors.Wrap(err, "builder: Build: new arena")
	}
	finished := false
	defer func() {
		if !finished {
			_ = w.Abandon()
		}
	}()

	toc, err := zindex.ReserveTOC(w)
	if err != nil {
		return errors.Wrap(err, "builder: Build: reserve toc")
	}

	trie := triebuilder.NewBuilder(w)
	digested, err := digest.Digest(ctx, pm, split, trie)
	if err != nil {
		return errors.Wrap(err, "builder: Build: digest")
	}
	toc.SetEntry(zindex.TOCTrieRoot, digested.TrieRoot, 0)

	zgramInfosRef, err := writeVector[zindex.ZgramInfo](w, zindex.ZgramInfoCodec{}, digested.ZgramInfos)
	if err != nil {
		return errors.Wrap(err, "builder: Build: zgram infos")
	}
	toc.SetEntry(zindex.TOCZgramInfos, zgramInfosRef.Offset, zgramInfosRef.Count)

	wordInfosRef, err := writeVector[zindex.WordInfo](w, zindex.WordInfoCodec{}, digested.WordInfos)
	if err != nil {
		return errors.Wrap(err, "builder: Build: word infos")
	}
	toc.SetEntry(zindex.TOCWordInfos, wordInfosRef.Offset, wordInfosRef.Count)

	sortedStrings, err := strings.CollectAndSort(ctx, pm, split, digested)
	if err != nil {
		return errors.Wrap(err, "builder: Build: collect strings")
	}
	spw := frozen.NewStringPoolWriter(w)
	if err := strings.BuildPool(sortedStrings, spw); err != nil {
		return errors.Wrap(err, "builder: Build: build string pool")
	}
	offsetsOffset, offsetsCount, textOffset, textLen, err := spw.Finish()
	if err != nil {
		return errors.Wrap(err, "builder: Build: finish string pool")
	}
	toc.SetEntry(zindex.TOCStringEndOffsets, offsetsOffset, uint32(offsetsCount))
	toc.SetEntry(zindex.TOCStringText, textOffset, uint32(textLen))

	snapshot := w.Snapshot()
	endOffsets := frozen.NewFrozenVector[uint32](snapshot, frozen.Uint32Codec{}, offsetsOffset, offsetsCount)
	pool := frozen.NewFrozenStringPool(snapshot, textOffset, textLen, endOffsets)

	metaRootOff, err := metadata.Build(ctx, w, pool, split, digested)
	if err != nil {
		return errors.Wrap(err, "builder: Build: metadata")
	}
	toc.SetEntry(zindex.TOCMetaRoot, metaRootOff, 0)

	header := zindex.Header{
		FormatVersion:  zindex.IndexFormatVersion,
		FeatureVersion: zindex.FeatureVersion,
		BuildID:        xid.New().String(),
		InputHash:      hashInputs(opts),
		ArenaSize:      uint64(w.Len()),
	}
	if err := toc.Finish(header); err != nil {
		return errors.Wrap(err, "builder: Build: write header")
	}

	if err := w.Finish(); err != nil {
		return errors.Wrap(err, "builder: Build: finish arena")
	}
	finished = true

	if err := pm.PublishBuild(); err != nil {
		return errors.Wrap(err, "builder: Build: publish")
	}

	if opts.Logger != nil {
		opts.Logger.Info("build published",
			sglog.String("build_id", header.BuildID),
			sglog.String("arena_size", humanize.Bytes(header.ArenaSize)))
	}
	appendBuildLog(pm, header)
	return nil
}

// appendBuildLog appends one watermark line per published build to a
// rotated TSV file next to the published index, the same role
// zoekt/build.Builder's lumberjack-backed shardLogger plays for its
// per-shard write log — a plain append-only record a human can tail,
// independent of whatever sink opts.Logger is wired to. Rotation
// failures here are not worth failing a build over, so they're ignored.
func appendBuildLog(pm *pathmaster.PathMaster, header zindex.Header) {
	logger := &lumberjack.Logger{
		Filename:   filepath.Join(filepath.Dir(pm.IndexPath()), buildLogName),
		MaxSize:    10, // Megabyte
		MaxBackups: 5,
	}
	defer logger.Close()
	fmt.Fprintf(logger, "%d\t%s\t%s\n", time.Now().Unix(), header.BuildID, humanize.Bytes(header.ArenaSize))
}

// writeVector blits items into w as a single frozen.FrozenVector-shaped
// run and returns where to find it. Shared by the zgram-info and
// word-info arrays, the only two top-level sections that are plain
// vectors rather than one of MetadataBuilder's nested containers.
func writeVector[T any](w *arena.Writer, codec frozen.FixedCodec[T], items []T) (frozen.VecRef, error) {
	vw := frozen.NewVectorWriter[T](w, codec)
	for _, item := range items {
		if err := vw.Append(item); err != nil {
			return frozen.VecRef{}, err
		}
	}
	return frozen.RefOf(vw), nil
}

// hashInputs summarizes the parameters that determine a build's content,
// the same role zoekt/build.Options.HashOptions plays for its shard
// metadata: a reader can tell two builds apart, or confirm two builds
// covered the same requested range, without comparing every byte.
func hashInputs(opts Options) [32]byte {
	s := fmt.Sprintf("logged:[%d,%d) unlogged:[%d,%d)",
		opts.LoggedRange.Begin.Key.Raw(), opts.LoggedRange.End.Key.Raw(),
		opts.UnloggedRange.Begin.Key.Raw(), opts.UnloggedRange.End.Key.Raw())
	return sha256.Sum256([]byte(s))
}

func clearScratch(pm *pathmaster.PathMaster) error {
	entries, err := os.ReadDir(pm.ScratchRoot())
	if err != nil {
		return errors.Wrapf(err, "read dir %s", pm.ScratchRoot())
	}
	for _, e := range entries {
		path := filepath.Join(pm.ScratchRoot(), e.Name())
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrapf(err, "remove %s", path)
		}
	}
	return nil
}
