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

	"github.com/kosak/z2kplus-sub002/zindex/arena"
	"github.com/kosak/z2kplus-sub002/zindex/frozen"
)

// Revision is one (instance, body, renderStyle) entry in a zgram's edit
// history; FrozenMetadata.ZgramRevisions keeps every revision in arrival
// order, newest last, distinct from ZgramDigestor's ZgramInfo which only
// ever reflects the latest one.
type Revision struct {
	Instance    frozen.StringRef
	Body        frozen.StringRef
	RenderStyle uint32
}

// RevisionCodec is the FixedCodec for Revision.
type RevisionCodec struct{}

const revisionWireLen = 4 + 4 + 4

func (RevisionCodec) Size() int { return revisionWireLen }

func (RevisionCodec) Encode(buf []byte, v Revision) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(v.Instance))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(v.Body))
	binary.LittleEndian.PutUint32(buf[8:12], v.RenderStyle)
}

func (RevisionCodec) Decode(buf []byte) Revision {
	return Revision{
		Instance:    frozen.StringRef(binary.LittleEndian.Uint32(buf[0:4])),
		Body:        frozen.StringRef(binary.LittleEndian.Uint32(buf[4:8])),
		RenderStyle: binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// ZgramIdCodec is the FixedCodec for ZgramId, shared by every frozen
// container keyed or valued by a zgram id.
type ZgramIdCodec = frozen.Uint64Like[ZgramId]

// StringRefCodec is the FixedCodec for frozen.StringRef, shared by every
// frozen container keyed or valued by a canonicalized string.
type StringRefCodec = frozen.Uint32Like[frozen.StringRef]

func cmpZgramId(a, b ZgramId) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpStringRef(a, b frozen.StringRef) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// metadataFamily indexes the eight fixed slots of the metadata root
// record; order here must match MetadataBuilder's write order.
const (
	metaReactions = iota
	metaReactionCounts
	metaZgramRevisions
	metaZgramRefersTo
	metaZmojis
	metaPlusPluses
	metaMinusMinuses
	metaPlusPlusKeys
	metadataFieldCount
)

const metadataRootWireLen = metadataFieldCount * frozen.VecRefWireLen

// WriteMetadataRoot allocates the small fixed root record a FrozenMetadata
// is addressed by, writing the eight (offset, count) pairs MetadataBuilder
// produced, and returns the record's own offset (what the top-level TOC's
// metadata slot points to).
func WriteMetadataRoot(w *arena.Writer, refs [metadataFieldCount]frozen.VecRef) (int64, error) {
	off, buf, err := w.Alloc(metadataRootWireLen)
	if err != nil {
		return 0, err
	}
	var codec frozen.VecRefCodec
	for i, ref := range refs {
		codec.Encode(buf[i*frozen.VecRefWireLen:], ref)
	}
	return off, nil
}

func readMetadataRoot(reader *arena.Reader, offset int64) [metadataFieldCount]frozen.VecRef {
	buf := reader.Bytes(offset, metadataRootWireLen)
	var codec frozen.VecRefCodec
	var refs [metadataFieldCount]frozen.VecRef
	for i := range refs {
		refs[i] = codec.Decode(buf[i*frozen.VecRefWireLen:])
	}
	return refs
}

// FrozenMetadata bundles the per-zgram and per-user metadata families
// derived from reactions, revisions, refers-to edges, zmojis, and
// plus-plus/minus-minus karma events (spec.md §3's "FrozenMetadata"). A
// nested container (a FrozenMap whose values are themselves a container)
// is addressed by frozen.VecRef rather than decoded eagerly, so every
// accessor below stays a cheap view, the same discipline FrozenIndex uses
// for its own top-level sections.
type FrozenMetadata struct {
	reader *arena.Reader

	reactions      frozen.FrozenMap[ZgramId, frozen.VecRef]
	reactionCounts frozen.FrozenMap[frozen.StringRef, frozen.VecRef]
	zgramRevisions frozen.FrozenMap[ZgramId, frozen.VecRef]
	zgramRefersTo  frozen.FrozenMap[ZgramId, frozen.VecRef]
	zmojis         frozen.FrozenMap[frozen.StringRef, frozen.StringRef]
	plusPluses     frozen.FrozenMap[frozen.StringRef, frozen.VecRef]
	minusMinuses   frozen.FrozenMap[frozen.StringRef, frozen.VecRef]
	plusPlusKeys   frozen.FrozenMap[ZgramId, frozen.VecRef]
}

func kvZgramIdVecRef() frozen.FixedCodec[frozen.KV[ZgramId, frozen.VecRef]] {
	return frozen.NewKVCodec[ZgramId, frozen.VecRef](ZgramIdCodec{}, frozen.VecRefCodec{})
}

func kvStringRefVecRef() frozen.FixedCodec[frozen.KV[frozen.StringRef, frozen.VecRef]] {
	return frozen.NewKVCodec[frozen.StringRef, frozen.VecRef](StringRefCodec{}, frozen.VecRefCodec{})
}

func kvZgramIdUint32() frozen.FixedCodec[frozen.KV[ZgramId, uint32]] {
	return frozen.NewKVCodec[ZgramId, uint32](ZgramIdCodec{}, frozen.Uint32Codec{})
}

func kvStringRefStringRef() frozen.FixedCodec[frozen.KV[frozen.StringRef, frozen.StringRef]] {
	return frozen.NewKVCodec[frozen.StringRef, frozen.StringRef](StringRefCodec{}, StringRefCodec{})
}

// NewFrozenMetadata wraps the root record at offset, previously written by
// MetadataBuilder.
func NewFrozenMetadata(reader *arena.Reader, offset int64) FrozenMetadata {
	refs := readMetadataRoot(reader, offset)
	mk := func(i int) frozen.FrozenVector[frozen.KV[ZgramId, frozen.VecRef]] {
		r := refs[i]
		return frozen.NewFrozenVector(reader, kvZgramIdVecRef(), r.Offset, int(r.Count))
	}
	mkStr := func(i int) frozen.FrozenVector[frozen.KV[frozen.StringRef, frozen.VecRef]] {
		r := refs[i]
		return frozen.NewFrozenVector(reader, kvStringRefVecRef(), r.Offset, int(r.Count))
	}
	zmojisRef := refs[metaZmojis]
	zmojisVec := frozen.NewFrozenVector(reader, kvStringRefStringRef(), zmojisRef.Offset, int(zmojisRef.Count))

	return FrozenMetadata{
		reader:         reader,
		reactions:      frozen.NewFrozenMap(mk(metaReactions), cmpZgramId),
		reactionCounts: frozen.NewFrozenMap(mkStr(metaReactionCounts), cmpStringRef),
		zgramRevisions: frozen.NewFrozenMap(mk(metaZgramRevisions), cmpZgramId),
		zgramRefersTo:  frozen.NewFrozenMap(mk(metaZgramRefersTo), cmpZgramId),
		zmojis:         frozen.NewFrozenMap(zmojisVec, cmpStringRef),
		plusPluses:     frozen.NewFrozenMap(mkStr(metaPlusPluses), cmpStringRef),
		minusMinuses:   frozen.NewFrozenMap(mkStr(metaMinusMinuses), cmpStringRef),
		plusPlusKeys:   frozen.NewFrozenMap(mk(metaPlusPlusKeys), cmpZgramId),
	}
}

func (m FrozenMetadata) vecOf(ref frozen.VecRef) frozen.FrozenVector[ZgramId] {
	return frozen.NewFrozenVector[ZgramId](m.reader, ZgramIdCodec{}, ref.Offset, int(ref.Count))
}

func (m FrozenMetadata) strVecOf(ref frozen.VecRef) frozen.FrozenVector[frozen.StringRef] {
	return frozen.NewFrozenVector[frozen.StringRef](m.reader, StringRefCodec{}, ref.Offset, int(ref.Count))
}

// ReactionsFor returns the reaction->creator-set map for zgramId.
func (m FrozenMetadata) ReactionsFor(id ZgramId) (frozen.FrozenMap[frozen.StringRef, frozen.VecRef], bool) {
	ref, ok := m.reactions.Find(id)
	if !ok {
		return frozen.FrozenMap[frozen.StringRef, frozen.VecRef]{}, false
	}
	vec := frozen.NewFrozenVector(m.reader, kvStringRefVecRef(), ref.Offset, int(ref.Count))
	return frozen.NewFrozenMap(vec, cmpStringRef), true
}

// CreatorsOf resolves a reaction's VecRef (from ReactionsFor's result) into
// the frozen set of creators who left it.
func (m FrozenMetadata) CreatorsOf(ref frozen.VecRef) frozen.FrozenSet[frozen.StringRef] {
	return frozen.NewFrozenSet(m.strVecOf(ref), cmpStringRef)
}

// ReactionCountsFor returns the zgramId->count map for a reaction.
func (m FrozenMetadata) ReactionCountsFor(reaction frozen.StringRef) (frozen.FrozenMap[ZgramId, uint32], bool) {
	ref, ok := m.reactionCounts.Find(reaction)
	if !ok {
		return frozen.FrozenMap[ZgramId, uint32]{}, false
	}
	vec := frozen.NewFrozenVector(m.reader, kvZgramIdUint32(), ref.Offset, int(ref.Count))
	return frozen.NewFrozenMap(vec, cmpZgramId), true
}

// RevisionsFor returns every revision recorded for zgramId, oldest first.
func (m FrozenMetadata) RevisionsFor(id ZgramId) (frozen.FrozenVector[Revision], bool) {
	ref, ok := m.zgramRevisions.Find(id)
	if !ok {
		return frozen.FrozenVector[Revision]{}, false
	}
	return frozen.NewFrozenVector(m.reader, RevisionCodec{}, ref.Offset, int(ref.Count)), true
}

// RefersToFor returns the set of zgrams that id refers to.
func (m FrozenMetadata) RefersToFor(id ZgramId) (frozen.FrozenSet[ZgramId], bool) {
	ref, ok := m.zgramRefersTo.Find(id)
	if !ok {
		return frozen.FrozenSet[ZgramId]{}, false
	}
	return frozen.NewFrozenSet(m.vecOf(ref), cmpZgramId), true
}

// ZmojisFor returns userId's current zmojis string reference.
func (m FrozenMetadata) ZmojisFor(userId frozen.StringRef) (frozen.StringRef, bool) {
	return m.zmojis.Find(userId)
}

// PlusPlusesFor returns the (repeats-preserving) vector of zgrams that
// incremented key.
func (m FrozenMetadata) PlusPlusesFor(key frozen.StringRef) (frozen.FrozenVector[ZgramId], bool) {
	ref, ok := m.plusPluses.Find(key)
	if !ok {
		return frozen.FrozenVector[ZgramId]{}, false
	}
	return m.vecOf(ref), true
}

// MinusMinusesFor is PlusPlusesFor's decrement-side counterpart.
func (m FrozenMetadata) MinusMinusesFor(key frozen.StringRef) (frozen.FrozenVector[ZgramId], bool) {
	ref, ok := m.minusMinuses.Find(key)
	if !ok {
		return frozen.FrozenVector[ZgramId]{}, false
	}
	return m.vecOf(ref), true
}

// PlusPlusKeysFor returns every key id incremented or decremented.
func (m FrozenMetadata) PlusPlusKeysFor(id ZgramId) (frozen.FrozenVector[frozen.StringRef], bool) {
	ref, ok := m.plusPlusKeys.Find(id)
	if !ok {
		return frozen.FrozenVector[frozen.StringRef]{}, false
	}
	return m.strVecOf(ref), true
}
