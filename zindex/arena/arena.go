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

// Package arena implements the bump allocator that backs every frozen
// container in this module. A Writer grows an mmap'd scratch file and
// hands out byte ranges; a Reader mmaps a finished file read-only and
// exposes the same byte ranges by offset. Both sides agree on one
// invariant: an offset handed out by a Writer is stable for the lifetime
// of the file, so pointers recorded as "delta from here to there" keep
// working no matter where the file ends up mapped.
package arena

import (
	"fmt"
	"os"
	"runtime"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// growChunk is how much a Writer grows its backing file by each time it
// runs out of room; a single allocation larger than this grows the file
// by the allocation's own size instead.
const growChunk = 64 << 20 // 64 MiB

// Writer is an append-only bump allocator over a single sparse scratch
// file. It is not safe for concurrent use; zindex/builder drives its one
// Writer from a single goroutine, and shard workers never touch it.
type Writer struct {
	file     *os.File
	data     mmap.MMap
	capacity int64
	used     int64
}

// NewWriter creates (or truncates) path and preallocates an initial
// capacity with Fallocate, falling back to Ftruncate on filesystems that
// don't support fallocate (notably non-ext4/xfs mounts and non-Linux).
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "arena: NewWriter: open")
	}
	w := &Writer{file: f}
	if err := w.grow(growChunk); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) grow(extra int64) error {
	newCap := w.capacity + extra
	if runtime.GOOS == "linux" {
		if err := unix.Fallocate(int(w.file.Fd()), 0, 0, newCap); err != nil {
			// Fall through to Ftruncate; Fallocate can fail with
			// EOPNOTSUPP on tmpfs and some network filesystems.
			if ferr := w.file.Truncate(newCap); ferr != nil {
				return errors.Wrap(ferr, "arena: grow: truncate fallback")
			}
		}
	} else if err := w.file.Truncate(newCap); err != nil {
		return errors.Wrap(err, "arena: grow: truncate")
	}

	if w.data != nil {
		if err := w.data.Unmap(); err != nil {
			return errors.Wrap(err, "arena: grow: unmap")
		}
	}
	data, err := mmap.MapRegion(w.file, int(newCap), mmap.RDWR, 0, 0)
	if err != nil {
		return errors.Wrap(err, "arena: grow: mmap")
	}
	w.data = data
	w.capacity = newCap
	return nil
}

// Alloc reserves n bytes and returns their offset from the start of the
// arena. The returned slice aliases the mmap'd region directly; writes to
// it are writes to the file.
func (w *Writer) Alloc(n int) (offset int64, buf []byte, err error) {
	if n < 0 {
		return 0, nil, fmt.Errorf("arena: Alloc: negative size %d", n)
	}
	for w.used+int64(n) > w.capacity {
		need := growChunk
		if int64(n) > growChunk {
			need = int64(n)
		}
		if err := w.grow(need); err != nil {
			return 0, nil, err
		}
	}
	offset = w.used
	buf = w.data[offset : offset+int64(n)]
	w.used += int64(n)
	return offset, buf, nil
}

// Len reports the number of bytes allocated so far (not the backing
// file's full capacity, which may be larger due to over-allocation).
func (w *Writer) Len() int64 { return w.used }

// Finish truncates the backing file down to exactly Len() bytes, unmaps,
// and closes it. The Writer must not be used afterward.
func (w *Writer) Finish() error {
	if err := w.data.Unmap(); err != nil {
		return errors.Wrap(err, "arena: Finish: unmap")
	}
	if err := w.file.Truncate(w.used); err != nil {
		return errors.Wrap(err, "arena: Finish: truncate")
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, "arena: Finish: close")
	}
	return nil
}

// Snapshot wraps the bytes written so far in a read-only Reader view,
// aliasing the same mapped memory (no reopen, no copy). A later build
// stage uses this to look up something an earlier stage already wrote
// into this same arena — the string pool, say — before the arena as a
// whole is finished.
func (w *Writer) Snapshot() *Reader {
	return &Reader{name: w.file.Name(), data: w.data[:w.used]}
}

// Abandon discards the scratch file without truncating it to size;
// callers use this on an error path where the partial file is useless.
func (w *Writer) Abandon() error {
	if w.data != nil {
		_ = w.data.Unmap()
	}
	return w.file.Close()
}

// Reader is a read-only mmap over a finished arena file, indexed by the
// same byte offsets a Writer handed out.
type Reader struct {
	name string
	data mmap.MMap
}

// Open mmaps path read-only.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "arena: Open")
	}
	defer f.Close()
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "arena: Open: mmap")
	}
	return &Reader{name: path, data: data}, nil
}

// Bytes returns the n bytes at off. It panics on an out-of-range request,
// the same contract zoekt's own indexfile.go readers rely on: a
// well-formed frozen image never asks for a range outside its own arena.
func (r *Reader) Bytes(off int64, n int) []byte {
	return r.data[off : off+int64(n)]
}

// Len reports the total mapped size.
func (r *Reader) Len() int64 { return int64(len(r.data)) }

// Close unmaps the file.
func (r *Reader) Close() error {
	if err := r.data.Unmap(); err != nil {
		return errors.Wrap(err, "arena: Close")
	}
	return nil
}
