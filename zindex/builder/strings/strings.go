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

// Package strings implements CanonicalStringProcessor: a scan over every
// string-valued column LogSplitter and ZgramDigestor already produced
// (reaction names and creators, zgram instance/body revisions, zmojis,
// plus-plus keys), externally sorted and deduplicated into one pool so
// that everything downstream references a string by a small integer
// instead of repeating its bytes.
package strings

import (
	"bufio"
	"bytes"
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex/builder/digest"
	"github.com/kosak/z2kplus-sub002/zindex/builder/logsplit"
	"github.com/kosak/z2kplus-sub002/zindex/builder/schemas"
	"github.com/kosak/z2kplus-sub002/zindex/builder/tuples"
	"github.com/kosak/z2kplus-sub002/zindex/extsort"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
	"github.com/kosak/z2kplus-sub002/zindex/pathmaster"
)

const (
	presortedName = "canonical_strings.presorted"
	sortedName    = "canonical_strings"
)

// recordSep is NUL, not newline: a string value (a zgram body, say) can
// legitimately contain a newline, so records in this scratch file are
// NUL-terminated and the external sort runs with --zero-terminated.
const recordSep = 0

// CollectAndSort scans every string column reachable from split and
// digested, writes one NUL-terminated record per occurrence, and returns
// the path of the externally sorted, deduplicated result.
func CollectAndSort(ctx context.Context, pm *pathmaster.PathMaster, split *logsplit.Result, digested *digest.Result) (string, error) {
	presorted := pm.ScratchPathFor(presortedName)
	if err := scanAllStrings(split, digested, presorted); err != nil {
		return "", errors.Wrap(err, "strings: CollectAndSort")
	}

	sorted := pm.ScratchPathFor(sortedName)
	opts := extsort.Options{Unique: true, FieldSeparator: schemas.FieldSep, LineSeparatorIsNul: true}
	if err := extsort.Sort(ctx, opts, []extsort.KeyOptions{{OneBasedIndex: 1}}, []string{presorted}, sorted); err != nil {
		return "", errors.Wrap(err, "strings: CollectAndSort: sort")
	}
	return sorted, nil
}

func scanAllStrings(split *logsplit.Result, digested *digest.Result, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "strings: scanAllStrings: create %s", outPath)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	writeField := func(s string) error {
		if _, err := w.WriteString(s); err != nil {
			return err
		}
		return w.WriteByte(recordSep)
	}

	if err := scanReactions(split.ReactionsByZgramId, writeField); err != nil {
		return err
	}
	if err := scanRaw(split.ZgramRevisions, func(row tuples.Row) error {
		r := schemas.ZgramRevisionsFromRow(row)
		if err := writeField(r.Instance); err != nil {
			return err
		}
		return writeField(r.Body)
	}); err != nil {
		return err
	}
	if err := scanZmojis(split.Zmojis, writeField); err != nil {
		return err
	}
	if err := scanRaw(digested.PlusPlusKeysPath, func(row tuples.Row) error {
		r := schemas.PlusPlusKeysFromRow(row)
		return writeField(r.Key)
	}); err != nil {
		return err
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "strings: scanAllStrings: flush")
	}
	return nil
}

func scanReactions(path string, writeField func(string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "strings: scanReactions: open %s", path)
	}
	defer f.Close()

	var it tuples.Iterator = tuples.NewRowIterator(f)
	it = tuples.NewLastKeeper(it, schemas.ReactionsByZgramIdKeySize)
	it = tuples.NewTrueKeeper(it, 3)
	for {
		row, err := it.Next()
		if err != nil {
			return errors.Wrapf(err, "strings: scanReactions: %s", path)
		}
		if row == nil {
			return nil
		}
		r := schemas.ReactionsByZgramIdFromRow(row)
		if err := writeField(r.Reaction); err != nil {
			return err
		}
		if err := writeField(r.Creator); err != nil {
			return err
		}
	}
}

func scanZmojis(path string, writeField func(string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "strings: scanZmojis: open %s", path)
	}
	defer f.Close()

	var it tuples.Iterator = tuples.NewRowIterator(f)
	it = tuples.NewLastKeeper(it, schemas.ZmojisRevisionsKeySize)
	for {
		row, err := it.Next()
		if err != nil {
			return errors.Wrapf(err, "strings: scanZmojis: %s", path)
		}
		if row == nil {
			return nil
		}
		r := schemas.ZmojisRevisionsFromRow(row)
		if err := writeField(r.UserID); err != nil {
			return err
		}
		if err := writeField(r.Zmojis); err != nil {
			return err
		}
	}
}

func scanRaw(path string, visit func(tuples.Row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "strings: scanRaw: open %s", path)
	}
	defer f.Close()

	it := tuples.NewRowIterator(f)
	for {
		row, err := it.Next()
		if err != nil {
			return errors.Wrapf(err, "strings: scanRaw: %s", path)
		}
		if row == nil {
			return nil
		}
		if err := visit(row); err != nil {
			return err
		}
	}
}

// BuildPool replays sortedPath (already sorted and deduplicated by
// CollectAndSort) into w, one Append per record; the caller obtains the
// pool's offsets and text range from w.Finish.
func BuildPool(sortedPath string, w *frozen.StringPoolWriter) error {
	f, err := os.Open(sortedPath)
	if err != nil {
		return errors.Wrapf(err, "strings: BuildPool: open %s", sortedPath)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	scanner.Split(splitOnNul)
	for scanner.Scan() {
		if _, err := w.Append(scanner.Text()); err != nil {
			return errors.Wrap(err, "strings: BuildPool")
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "strings: BuildPool: %s", sortedPath)
	}
	return nil
}

func splitOnNul(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, recordSep); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
