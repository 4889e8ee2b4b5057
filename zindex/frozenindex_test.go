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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
	triebuilder "github.com/kosak/z2kplus-sub002/zindex/builder/trie"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
)

func TestOpenReadsBackAFreshlyBuiltIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "z2k.index")

	w, err := arena.NewWriter(path)
	require.NoError(t, err)

	toc, err := ReserveTOC(w)
	require.NoError(t, err)

	zgramInfosW := frozen.NewVectorWriter[ZgramInfo](w, ZgramInfoCodec{})
	zi := ZgramInfo{
		TimeSecs: 1000, ZgramId: 7,
		Location:     LogLocation{FileKey: NewEitherKey(2024, 3, 17, true), Offset: 0, Size: 10},
		FirstWordOff: 0, SenderLen: 1, SignatureLen: 0, InstanceLen: 1, BodyLen: 1,
	}
	require.NoError(t, zgramInfosW.Append(zi))
	toc.SetEntry(TOCZgramInfos, zgramInfosW.Offset(), uint32(zgramInfosW.Count()))

	wordInfosW := frozen.NewVectorWriter[WordInfo](w, WordInfoCodec{})
	require.NoError(t, wordInfosW.Append(WordInfo{ZgramOff: 0, Field: FieldBody}))
	toc.SetEntry(TOCWordInfos, wordInfosW.Offset(), uint32(wordInfosW.Count()))

	spw := frozen.NewStringPoolWriter(w)
	_, err = spw.Append("coffee")
	require.NoError(t, err)
	offsetsOffset, count, textOffset, textLen, err := spw.Finish()
	require.NoError(t, err)
	toc.SetEntry(TOCStringEndOffsets, offsetsOffset, uint32(count))
	toc.SetEntry(TOCStringText, textOffset, uint32(textLen))

	var refs [8]frozen.VecRef
	metaRootOff, err := WriteMetadataRoot(w, refs)
	require.NoError(t, err)
	toc.SetEntry(TOCMetaRoot, metaRootOff, 0)

	tb := triebuilder.NewBuilder(w)
	trieRoot, err := tb.Finish()
	require.NoError(t, err)
	toc.SetEntry(TOCTrieRoot, trieRoot, 0)

	require.NoError(t, toc.Finish(Header{
		FormatVersion:  IndexFormatVersion,
		FeatureVersion: FeatureVersion,
		BuildID:        "abcdefghijklmnopqrst",
		ArenaSize:      uint64(w.Len()),
	}))
	require.NoError(t, w.Finish())

	fi, err := Open(path)
	require.NoError(t, err)
	defer fi.Close()

	require.Equal(t, IndexFormatVersion, fi.Header().FormatVersion)
	require.Equal(t, 1, fi.NumZgrams())
	require.Equal(t, ZgramId(7), fi.ZgramInfo(0).ZgramId)
	require.Equal(t, 1, fi.NumWords())
	require.Equal(t, FieldBody, fi.WordInfo(0).Field)

	ref, ok := fi.Strings().TryFind("coffee")
	require.True(t, ok)
	require.Equal(t, "coffee", fi.Strings().ToString(ref))

	require.Equal(t, 0, fi.Trie().NumTransitions())
}
