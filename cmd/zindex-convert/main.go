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

// Command zindex-convert reads an old-format log corpus and writes a new-
// format plaintext corpus a PathMaster can build from.
//
// Usage: zindex-convert <srcDir> <destDir>
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	sglog "github.com/sourcegraph/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/kosak/z2kplus-sub002/zindex"
	"github.com/kosak/z2kplus-sub002/zindex/legacy"
	"github.com/kosak/z2kplus-sub002/zindex/pathmaster"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <srcDir> <destDir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	srcDir, destDir := flag.Arg(0), flag.Arg(1)

	liblog := sglog.Init(sglog.Resource{Name: "zindex-convert"})
	defer liblog.Sync()
	logger := sglog.Scoped("zindex-convert", "")

	_, _ = maxprocs.Set()

	if err := run(srcDir, destDir, logger); err != nil {
		logger.Error("conversion failed", sglog.Error(err))
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

type legacyFile struct {
	key  legacy.FileKey
	path string
}

func run(srcDir, destDir string, logger sglog.Logger) error {
	entries, err := discover(srcDir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key.Less(entries[j].key) })

	pm, err := pathmaster.Create(destDir)
	if err != nil {
		return err
	}

	conv := legacy.NewConverter(logger)

	// First pass: find every zgram that will be edited, across the whole
	// corpus, before caching any bodies.
	for _, e := range entries {
		records, err := readRecords(e.path)
		if err != nil {
			return err
		}
		conv.ScanForModifies(records)
	}

	// Second pass: convert each legacy file in chronological order,
	// appending into the current-format file its day maps to. Multiple
	// legacy parts for the same day and logged/unlogged side land in the
	// same destination file, in part order.
	destFiles := make(map[zindex.EitherKey]*os.File)
	defer func() {
		for _, f := range destFiles {
			f.Close()
		}
	}()
	for _, e := range entries {
		records, err := readRecords(e.path)
		if err != nil {
			return err
		}
		converted, err := conv.ConvertRecords(records)
		if err != nil {
			return fmt.Errorf("converting %s: %w", e.path, err)
		}
		destKey := e.key.EitherKey()
		f, ok := destFiles[destKey]
		if !ok {
			destPath := pm.PlaintextPath(destKey)
			if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
				return err
			}
			f, err = os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
			if err != nil {
				return err
			}
			destFiles[destKey] = f
		}
		for _, rec := range converted {
			line, err := zindex.MarshalLogLine(rec)
			if err != nil {
				return err
			}
			line = append(line, '\n')
			if _, err := f.Write(line); err != nil {
				return err
			}
		}
	}
	return nil
}

// discover walks srcDir collecting every file whose name matches the
// legacy plaintext grammar. Anything else (a .git directory, stray
// editor droppings) is skipped rather than treated as an error: a legacy
// export directory is not guaranteed to contain only plaintext files.
func discover(srcDir string) ([]legacyFile, error) {
	var out []legacyFile
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		key, parseErr := legacy.ParseFileName(filepath.Base(path))
		if parseErr != nil {
			return nil
		}
		out = append(out, legacyFile{key: key, path: path})
		return nil
	})
	return out, err
}

func readRecords(path string) ([]legacy.Record, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return legacy.ParseText(string(text))
}
