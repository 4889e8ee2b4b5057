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

// Package extsort shells out to /usr/bin/sort to sort-merge per-shard
// tuple files larger than comfortably fits in memory, exactly as the
// original's SortManager does: everything here is command-line flags, a
// child process, and a wait. There is no in-process merge-sort
// implementation to fall back to — sorting a corpus this size is
// /usr/bin/sort's job, not ours.
package extsort

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex"
)

// KeyOptions describes one --key column for /usr/bin/sort: a one-based
// column index and whether it sorts numerically.
type KeyOptions struct {
	OneBasedIndex int
	Numeric       bool
}

// KeyOptionsFromFlags builds a KeyOptions slice the way the original's
// KeyOptions::createVector does: one bool per leading column, in order,
// true meaning numeric.
func KeyOptionsFromFlags(numericFlags ...bool) []KeyOptions {
	out := make([]KeyOptions, len(numericFlags))
	for i, numeric := range numericFlags {
		out[i] = KeyOptions{OneBasedIndex: i + 1, Numeric: numeric}
	}
	return out
}

func (k KeyOptions) optionText() string {
	suffix := ""
	if k.Numeric {
		suffix = "n"
	}
	return fmt.Sprintf("%d%s,%d%s", k.OneBasedIndex, suffix, k.OneBasedIndex, suffix)
}

// Options mirrors SortOptions: the flags controlling /usr/bin/sort's
// behavior independent of which columns form the key.
type Options struct {
	Stable             bool
	Unique             bool
	FieldSeparator     byte
	LineSeparatorIsNul bool
}

// Sort runs /usr/bin/sort over inputPaths, writing the merged, sorted
// result to outputPath. It blocks until the subprocess exits.
func Sort(ctx context.Context, opts Options, keyOptions []KeyOptions, inputPaths []string, outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("%w: extsort.Sort: empty output path", zindex.ErrConfiguration)
	}

	args := []string{}
	if opts.Unique {
		args = append(args, "--unique")
	}
	if opts.Stable {
		args = append(args, "--stable")
	}
	// string(byte) UTF-8-encodes the value as a rune, which mangles
	// FieldSeparator values above ASCII (255 would become the two bytes
	// 0xC3 0xBF instead of a single 0xFF); /usr/bin/sort wants the raw
	// byte, so wrap it in a one-element []byte first.
	args = append(args, "--field-separator", string([]byte{opts.FieldSeparator}))
	if opts.LineSeparatorIsNul {
		args = append(args, "--zero-terminated")
	}
	for _, ko := range keyOptions {
		args = append(args, "--key", ko.optionText())
	}
	args = append(args, "--output", outputPath)
	args = append(args, inputPaths...)

	cmd := exec.CommandContext(ctx, "/usr/bin/sort", args...)
	cmd.Env = []string{"LC_ALL=C"}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(fmt.Errorf("%w: %s", zindex.ErrSubprocess, stderr.String()), "extsort: Sort: %v", err)
	}
	return nil
}

// NumericKey is a convenience for the common case of a single numeric
// leading key column (e.g. sorting Zephyrgram rows by zgramId).
func NumericKey() []KeyOptions { return KeyOptionsFromFlags(true) }
