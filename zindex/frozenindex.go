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
	"bytes"
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
	"github.com/kosak/z2kplus-sub002/zindex/trie"
)

// tocEntry is one slot of the fixed-size table of contents written right
// after the Header: one int64 offset + one uint32 count per top-level
// section, the trie root being one of those slots. Unlike the teacher's zoekt, which
// addresses every section from one absolute TOC, this index only needs a
// TOC to find the *roots* of each top-level container; everything nested
// beneath a root is addressed by RelativePtr from there.
type tocEntry struct {
	offset int64
	count  uint32
}

const tocEntryWireLen = 8 + 4

// tocEntryCount is the number of fixed TOC slots: zgramInfos, wordInfos,
// string pool end-offsets, string pool text blob, metadata root, trie
// root.
const tocEntryCount = 6

const (
	tocZgramInfos = iota
	tocWordInfos
	tocStringEndOffsets
	tocStringText
	tocMetaRoot
	tocTrieRoot
)

// Exported aliases of the slot constants above, for the Top-Level Builder
// (zindex/builder), which fills in every slot but has no reason to see
// the rest of this file's unexported decoding machinery.
const (
	TOCZgramInfos       = tocZgramInfos
	TOCWordInfos        = tocWordInfos
	TOCStringEndOffsets = tocStringEndOffsets
	TOCStringText       = tocStringText
	TOCMetaRoot         = tocMetaRoot
	TOCTrieRoot         = tocTrieRoot
	TOCEntryCount       = tocEntryCount
)

// TOCWriter reserves the header+TOC region at the front of a fresh arena
// and lets the Top-Level Builder fill in each slot as its section is
// written. Finish patches the header in last, once ArenaSize (== the
// arena's final Len()) and every TOC slot are known.
type TOCWriter struct {
	headerBuf []byte
	tocBuf    []byte
}

// ReserveTOC allocates the header+TOC region. It must be called first,
// before any other section is written to w: Open assumes the header
// starts at offset 0 and the TOC immediately follows it.
func ReserveTOC(w *arena.Writer) (*TOCWriter, error) {
	_, headerBuf, err := w.Alloc(int(HeaderLen()))
	if err != nil {
		return nil, errors.Wrap(err, "zindex: ReserveTOC: header")
	}
	_, tocBuf, err := w.Alloc(TOCEntryCount * tocEntryWireLen)
	if err != nil {
		return nil, errors.Wrap(err, "zindex: ReserveTOC: toc")
	}
	return &TOCWriter{headerBuf: headerBuf, tocBuf: tocBuf}, nil
}

// SetEntry fills in slot's (offset, count) once that section has been
// written into the same arena.
func (tw *TOCWriter) SetEntry(slot int, offset int64, count uint32) {
	b := tw.tocBuf[slot*tocEntryWireLen : (slot+1)*tocEntryWireLen]
	binary.LittleEndian.PutUint64(b[0:8], uint64(offset))
	binary.LittleEndian.PutUint32(b[8:12], count)
}

// Finish encodes header into the region ReserveTOC set aside. Call this
// last, after every SetEntry call and after header.ArenaSize reflects the
// arena's final size.
func (tw *TOCWriter) Finish(header Header) error {
	var buf bytes.Buffer
	if _, err := header.WriteTo(&buf); err != nil {
		return err
	}
	copy(tw.headerBuf, buf.Bytes())
	return nil
}

// FrozenIndex is the read side of a fully built index: one mmap'd file
// containing a Header, a small table of contents, and the frozen
// containers it points to. Every accessor is a cheap view; nothing is
// copied out of the mmap until the caller asks for a specific element.
type FrozenIndex struct {
	reader *arena.Reader

	header Header

	zgramInfos frozen.FrozenVector[ZgramInfo]
	wordInfos  frozen.FrozenVector[WordInfo]
	strings    frozen.FrozenStringPool
	metadata   FrozenMetadata
	trieRoot   int64
}

// ZgramInfoCodec/WordInfoCodec encode the fixed-width rows making up the
// two parallel top-level vectors. Field order matches the struct
// declarations in zgram.go; there is no padding to worry about since every
// field is written explicitly. Exported so builder/digest can use the same
// wire format for its per-shard scratch files as the final arena does.
type ZgramInfoCodec struct{}

const zgramInfoWireLen = 8 + (4 + 4 + 4) + 8 + 8 + 4*4

func (ZgramInfoCodec) Size() int { return zgramInfoWireLen }

func (ZgramInfoCodec) Encode(buf []byte, v ZgramInfo) {
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], v.TimeSecs)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], v.Location.FileKey.Raw())
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], v.Location.Offset)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], v.Location.Size)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], v.FirstWordOff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(v.ZgramId))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], v.SenderLen)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], v.SignatureLen)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], v.InstanceLen)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], v.BodyLen)
}

func (ZgramInfoCodec) Decode(buf []byte) ZgramInfo {
	off := 0
	timeSecs := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	fileKey := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	logOffset := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	logSize := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	firstWordOff := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	zgramID := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	senderLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	signatureLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	instanceLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	bodyLen := binary.LittleEndian.Uint32(buf[off:])
	return ZgramInfo{
		TimeSecs:     timeSecs,
		Location:     LogLocation{FileKey: EitherKeyFromRaw(fileKey), Offset: logOffset, Size: logSize},
		FirstWordOff: firstWordOff,
		ZgramId:      ZgramId(zgramID),
		SenderLen:    senderLen,
		SignatureLen: signatureLen,
		InstanceLen:  instanceLen,
		BodyLen:      bodyLen,
	}
}

type WordInfoCodec struct{}

const wordInfoWireLen = 8 + 1

func (WordInfoCodec) Size() int { return wordInfoWireLen }
func (WordInfoCodec) Encode(buf []byte, v WordInfo) {
	binary.LittleEndian.PutUint64(buf[0:8], v.ZgramOff)
	buf[8] = byte(v.Field)
}
func (WordInfoCodec) Decode(buf []byte) WordInfo {
	return WordInfo{ZgramOff: binary.LittleEndian.Uint64(buf[0:8]), Field: FieldTag(buf[8])}
}

// Open mmaps path, validates its header, and wraps its table of contents.
func Open(path string) (*FrozenIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "zindex: Open")
	}
	var hdr Header
	hdr, err = ReadHeader(bufReaderAt(f))
	f.Close()
	if err != nil {
		return nil, errors.Wrap(err, "zindex: Open: header")
	}

	reader, err := arena.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "zindex: Open: arena")
	}

	tocOff := HeaderLen()
	tocBuf := reader.Bytes(tocOff, tocEntryCount*tocEntryWireLen)
	entries := make([]tocEntry, tocEntryCount)
	for i := range entries {
		b := tocBuf[i*tocEntryWireLen : (i+1)*tocEntryWireLen]
		entries[i] = tocEntry{
			offset: int64(binary.LittleEndian.Uint64(b[0:8])),
			count:  binary.LittleEndian.Uint32(b[8:12]),
		}
	}

	zgramInfos := frozen.NewFrozenVector[ZgramInfo](reader, ZgramInfoCodec{}, entries[tocZgramInfos].offset, int(entries[tocZgramInfos].count))
	wordInfos := frozen.NewFrozenVector[WordInfo](reader, WordInfoCodec{}, entries[tocWordInfos].offset, int(entries[tocWordInfos].count))
	endOffsets := frozen.NewFrozenVector[uint32](reader, frozen.Uint32Codec{}, entries[tocStringEndOffsets].offset, int(entries[tocStringEndOffsets].count))
	stringsTextOffset := entries[tocStringText].offset
	stringsTextLen := int64(entries[tocStringText].count)
	strings := frozen.NewFrozenStringPool(reader, stringsTextOffset, stringsTextLen, endOffsets)

	metadata := NewFrozenMetadata(reader, entries[tocMetaRoot].offset)

	return &FrozenIndex{
		reader:     reader,
		header:     hdr,
		zgramInfos: zgramInfos,
		wordInfos:  wordInfos,
		strings:    strings,
		metadata:   metadata,
		trieRoot:   entries[tocTrieRoot].offset,
	}, nil
}

func bufReaderAt(f *os.File) *bytes.Reader {
	buf := make([]byte, HeaderLen())
	_, _ = f.ReadAt(buf, 0)
	return bytes.NewReader(buf)
}

// Close unmaps the underlying file.
func (fi *FrozenIndex) Close() error { return fi.reader.Close() }

// Header returns the parsed file header.
func (fi *FrozenIndex) Header() Header { return fi.header }

// NumZgrams reports the number of indexed zgrams.
func (fi *FrozenIndex) NumZgrams() int { return fi.zgramInfos.Len() }

// ZgramInfo returns the i'th zgram's frozen row.
func (fi *FrozenIndex) ZgramInfo(i int) ZgramInfo { return fi.zgramInfos.Get(i) }

// NumWords reports the size of the global word array.
func (fi *FrozenIndex) NumWords() int { return fi.wordInfos.Len() }

// WordInfo returns the i'th entry of the global word array.
func (fi *FrozenIndex) WordInfo(i int) WordInfo { return fi.wordInfos.Get(i) }

// Strings returns the frozen string pool backing every canonicalized
// metadata string (reaction names and creators, revised instances and
// bodies, zmoji users and strings, plus-plus keys; see
// CanonicalStringProcessor).
func (fi *FrozenIndex) Strings() frozen.FrozenStringPool { return fi.strings }

// Trie returns the root of the frozen word trie.
func (fi *FrozenIndex) Trie() trie.Node { return trie.Root(fi.reader, fi.trieRoot) }

// Metadata returns the reactions/revisions/refers-to/zmojis/plus-plus
// families MetadataBuilder assembled (see zindex/builder/metadata).
func (fi *FrozenIndex) Metadata() FrozenMetadata { return fi.metadata }
