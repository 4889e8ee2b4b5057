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

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// IndexFormatVersion is bumped whenever the on-disk layout of FrozenIndex
// changes in a way existing readers can't cope with. FeatureVersion is
// bumped for additive changes that a reader written against an earlier
// FeatureVersion can still safely ignore.
const (
	IndexFormatVersion = 1
	FeatureVersion     = 1
)

// headerMagic is the first 8 bytes of every frozen image. Chosen to be
// unlikely to collide with any other file format a stray mmap might hit.
const headerMagic = uint64(0x7a326b2b696478ff) // "z2k+idx" + 0xff

// Header is the fixed-size prologue of a frozen index file. It is never
// mmap'd directly as a struct (field order/padding across Go versions and
// architectures isn't a promise); it is encoded/decoded explicitly with
// encoding/binary, little-endian, matching the arena's own byte order.
type Header struct {
	FormatVersion  uint32
	FeatureVersion uint32
	BuildID        string // rs/xid string form, fixed 20 bytes on the wire
	InputHash      [32]byte
	ArenaSize      uint64
}

const buildIDWireLen = 20

// headerWireLen is the fixed byte length of an encoded Header.
const headerWireLen = 8 + 4 + 4 + buildIDWireLen + 32 + 8

// WriteTo encodes the header in its fixed wire format.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	if len(h.BuildID) != buildIDWireLen {
		return 0, fmt.Errorf("%w: build id %q is not %d bytes", ErrInvariant, h.BuildID, buildIDWireLen)
	}
	buf := make([]byte, headerWireLen)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], headerMagic)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], h.FormatVersion)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.FeatureVersion)
	off += 4
	copy(buf[off:off+buildIDWireLen], h.BuildID)
	off += buildIDWireLen
	copy(buf[off:off+32], h.InputHash[:])
	off += 32
	binary.LittleEndian.PutUint64(buf[off:], h.ArenaSize)
	off += 8
	n, err := w.Write(buf)
	if err != nil {
		return int64(n), errors.Wrap(err, "zindex: Header.WriteTo")
	}
	return int64(n), nil
}

// ReadHeader decodes a Header from the front of r, validating the magic
// number and that FormatVersion is one this build knows how to read.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerWireLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Wrap(err, "zindex: ReadHeader: short read")
	}
	off := 0
	magic := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	if magic != headerMagic {
		return Header{}, fmt.Errorf("%w: bad magic %#x", ErrParse, magic)
	}
	var h Header
	h.FormatVersion = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if h.FormatVersion != IndexFormatVersion {
		return Header{}, fmt.Errorf("%w: index format version %d, reader supports %d",
			ErrParse, h.FormatVersion, IndexFormatVersion)
	}
	h.FeatureVersion = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.BuildID = string(buf[off : off+buildIDWireLen])
	off += buildIDWireLen
	copy(h.InputHash[:], buf[off:off+32])
	off += 32
	h.ArenaSize = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	return h, nil
}

// HeaderLen reports the fixed on-disk length of an encoded Header, so
// callers can seek past it without decoding.
func HeaderLen() int64 { return headerWireLen }
