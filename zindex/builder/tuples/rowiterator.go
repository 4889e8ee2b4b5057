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

package tuples

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex/builder/schemas"
)

// RowIterator reads schemas.RecordSep-terminated rows from an underlying
// reader, splitting each on schemas.FieldSep — the Go analogue of the
// original's mmap'd RecordIterator. A real index build mmaps the sorted
// scratch file rather than buffering it, but since the caller of
// RowIterator here is always reading output that /usr/bin/sort already
// wrote to disk, a bufio.Scanner over an os.File gives the same
// single-pass, low-memory read pattern without hand-rolling an mmap walk
// twice in one module.
type RowIterator struct {
	scanner *bufio.Scanner
}

// NewRowIterator wraps r, splitting records on RecordSep and columns on
// FieldSep.
func NewRowIterator(r io.Reader) *RowIterator {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	s.Split(splitOnRecordSep)
	return &RowIterator{scanner: s}
}

func (it *RowIterator) Next() (Row, error) {
	if !it.scanner.Scan() {
		if err := it.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "tuples: RowIterator.Next")
		}
		return nil, nil
	}
	line := it.scanner.Text()
	return Row(strings.Split(line, string(schemas.FieldSep))), nil
}

func splitOnRecordSep(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, schemas.RecordSep); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
