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

import "errors"

// Sentinel error kinds. Callers match against these with errors.Is; the
// builder and extsort packages wrap them with github.com/pkg/errors so
// that a stack trace survives up to cmd/zindex-build's top-level handler.
var (
	// ErrIO names the file and mmap I/O failure kind. No code path in
	// this module returns it: I/O failures are wrapped with
	// github.com/pkg/errors around the underlying os or mmap error.
	ErrIO = errors.New("zindex: I/O error")

	// ErrParse covers malformed input: bad JSON records, filenames that
	// don't match the log-file grammar, corrupt header magic.
	ErrParse = errors.New("zindex: parse error")

	// ErrInvariant covers conditions the builder asserts must never
	// happen on well-formed input: zgrams arriving out of id order, a
	// zgram whose logged flag disagrees with its file, a build ID of the
	// wrong length, a legacy edit for a zgram with no cached body.
	ErrInvariant = errors.New("zindex: invariant violation")

	// ErrConfiguration covers bad options, such as an empty output path
	// passed to extsort.Sort.
	ErrConfiguration = errors.New("zindex: configuration error")

	// ErrSubprocess covers external /usr/bin/sort failures: nonzero
	// exit, missing binary, killed by signal.
	ErrSubprocess = errors.New("zindex: subprocess error")
)
