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

// Package schemas names the tuple shapes that flow through the external
// sort / tuple-iterator pipeline. Each schema is a record layout (field
// order matters: it's also sort-key order) plus two constants describing
// how extsort should treat it: KeyOptions (which leading columns are part
// of the sort key, and whether each such column needs a numeric rather
// than lexicographic comparison) and KeyIsUnique (whether the external sort's --unique flag collapses rows
// agreeing on the full key, or whether duplicates must survive for a
// downstream combinator like LastKeeper to resolve).
//
// A C++ tuple_t is a fixed-arity std::tuple<Args...>; Go generics have no
// equivalent variadic tuple, so every schema here is rendered as a plain
// Go struct with named fields instead, plus a ToRow/FromRow pair that
// (de)serializes it to the []string row format extsort and the tuple
// iterators operate on (one field per FieldSep-separated column, one
// record per RecordSep-terminated line, exactly what /usr/bin/sort's
// --field-separator/--zero-terminated expect).
package schemas

import (
	"strconv"
	"strings"
)

// KeyOptions describes one sort-key column: whether it participates in
// the key at all is implied by position (the first KeySize columns are
// always the key), and Numeric says whether /usr/bin/sort should compare
// it as a number (e.g. a decimal ZgramId, unpadded, where lexicographic
// order would put "10" before "9") rather than as raw text.
type KeyOptions struct {
	Numeric bool
}

func keyOpts(numeric ...bool) []KeyOptions {
	out := make([]KeyOptions, len(numeric))
	for i, n := range numeric {
		out[i] = KeyOptions{Numeric: n}
	}
	return out
}

// FieldSep and RecordSep frame every row below: byte 255 between columns,
// NUL terminating the row. Tab and newline are not usable separators here
// because zgram Body/Instance/Signature, reaction/creator strings, and
// zmojis are verbatim user text that may legitimately contain either;
// spec.md §6 reserves 255/NUL for exactly this reason, since neither can
// appear in valid zgram text.
const (
	FieldSep  byte = 0xff
	RecordSep byte = 0
)

const sep = string(FieldSep)

func formatZgramID(id uint64) string { return strconv.FormatUint(id, 10) }

func parseZgramID(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBool(s string) bool { return s == "1" }

func formatUint32(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
func parseUint32(s string) uint32 {
	v, _ := strconv.ParseUint(s, 10, 32)
	return uint32(v)
}

func formatUint64(v uint64) string { return strconv.FormatUint(v, 10) }
func parseUint64(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

// Zephyrgram: zgramId, timesecs, sender, signature, isLogged, instance,
// body, fileKey, offset, size. KeySize is 1 (zgramId); rows are unique
// per zgram.
type Zephyrgram struct {
	ZgramID   uint64
	TimeSecs  uint64
	Sender    string
	Signature string
	IsLogged  bool
	Instance  string
	Body      string
	FileKey   uint32
	Offset    uint32
	Size      uint32
}

const ZephyrgramKeySize = 1

var ZephyrgramKeyOptions = keyOpts(true)
const ZephyrgramKeyIsUnique = true

func (z Zephyrgram) ToRow() []string {
	return []string{
		formatZgramID(z.ZgramID), formatUint64(z.TimeSecs), z.Sender, z.Signature,
		formatBool(z.IsLogged), z.Instance, z.Body,
		formatUint32(z.FileKey), formatUint32(z.Offset), formatUint32(z.Size),
	}
}

func ZephyrgramFromRow(row []string) Zephyrgram {
	return Zephyrgram{
		ZgramID: parseZgramID(row[0]), TimeSecs: parseUint64(row[1]),
		Sender: row[2], Signature: row[3], IsLogged: parseBool(row[4]),
		Instance: row[5], Body: row[6],
		FileKey: parseUint32(row[7]), Offset: parseUint32(row[8]), Size: parseUint32(row[9]),
	}
}

// ReactionsByZgramId: zgramId, reaction, creator, wantAdd. keyIsUnique is
// false: a later "remove" row must be allowed to follow and cancel an
// earlier "add" row for the same (zgramId, reaction, creator) key, which
// LastKeeper (keyed on the first 3 columns) resolves downstream.
type ReactionsByZgramId struct {
	ZgramID  uint64
	Reaction string
	Creator  string
	WantAdd  bool
}

const ReactionsByZgramIdKeySize = 3

var ReactionsByZgramIdKeyOptions = keyOpts(true, false, false)
const ReactionsByZgramIdKeyIsUnique = false

func (r ReactionsByZgramId) ToRow() []string {
	return []string{formatZgramID(r.ZgramID), r.Reaction, r.Creator, formatBool(r.WantAdd)}
}

func ReactionsByZgramIdFromRow(row []string) ReactionsByZgramId {
	return ReactionsByZgramId{ZgramID: parseZgramID(row[0]), Reaction: row[1], Creator: row[2], WantAdd: parseBool(row[3])}
}

// ReactionsByReaction: reaction, zgramId, creator, wantAdd. Same data as
// ReactionsByZgramId, but keyed on the reaction string first, for the
// reaction-name index family.
type ReactionsByReaction struct {
	Reaction string
	ZgramID  uint64
	Creator  string
	WantAdd  bool
}

const ReactionsByReactionKeySize = 3

var ReactionsByReactionKeyOptions = keyOpts(false, true, false)
const ReactionsByReactionKeyIsUnique = false

func (r ReactionsByReaction) ToRow() []string {
	return []string{r.Reaction, formatZgramID(r.ZgramID), r.Creator, formatBool(r.WantAdd)}
}

func ReactionsByReactionFromRow(row []string) ReactionsByReaction {
	return ReactionsByReaction{Reaction: row[0], ZgramID: parseZgramID(row[1]), Creator: row[2], WantAdd: parseBool(row[3])}
}

// ReactionsCounts: reaction, zgramId, count. Produced by TupleCounter over
// ReactionsByReaction once WantAdd/remove pairs have collapsed.
type ReactionsCounts struct {
	Reaction string
	ZgramID  uint64
	Count    uint32
}

const ReactionsCountsKeySize = 2

var ReactionsCountsKeyOptions = keyOpts(false, true)
const ReactionsCountsKeyIsUnique = false

func (r ReactionsCounts) ToRow() []string {
	return []string{r.Reaction, formatZgramID(r.ZgramID), formatUint32(r.Count)}
}

func ReactionsCountsFromRow(row []string) ReactionsCounts {
	return ReactionsCounts{Reaction: row[0], ZgramID: parseZgramID(row[1]), Count: parseUint32(row[2])}
}

// ZgramRevisions: zgramId, instance, body, renderStyle. keyIsUnique is
// false so every revision for a zgramId survives the sort, in arrival
// order; MetadataBuilder keeps all of them and ZgramDigestor applies the
// last one.
type ZgramRevisions struct {
	ZgramID     uint64
	Instance    string
	Body        string
	RenderStyle uint32
}

const ZgramRevisionsKeySize = 1

var ZgramRevisionsKeyOptions = keyOpts(true)
const ZgramRevisionsKeyIsUnique = false

func (r ZgramRevisions) ToRow() []string {
	return []string{formatZgramID(r.ZgramID), r.Instance, r.Body, formatUint32(r.RenderStyle)}
}

func ZgramRevisionsFromRow(row []string) ZgramRevisions {
	return ZgramRevisions{ZgramID: parseZgramID(row[0]), Instance: row[1], Body: row[2], RenderStyle: parseUint32(row[3])}
}

// ZgramRefersTos: zgramId, refersTo, valid.
type ZgramRefersTos struct {
	ZgramID  uint64
	RefersTo uint64
	Valid    bool
}

const ZgramRefersTosKeySize = 2

var ZgramRefersTosKeyOptions = keyOpts(true, true)
const ZgramRefersTosKeyIsUnique = false

func (r ZgramRefersTos) ToRow() []string {
	return []string{formatZgramID(r.ZgramID), formatZgramID(r.RefersTo), formatBool(r.Valid)}
}

func ZgramRefersTosFromRow(row []string) ZgramRefersTos {
	return ZgramRefersTos{ZgramID: parseZgramID(row[0]), RefersTo: parseZgramID(row[1]), Valid: parseBool(row[2])}
}

// ZmojisRevisions: userId, zmojis. keyIsUnique is false: later zmojis
// override earlier ones for the same userId.
type ZmojisRevisions struct {
	UserID string
	Zmojis string
}

const ZmojisRevisionsKeySize = 1

var ZmojisRevisionsKeyOptions = keyOpts(false)
const ZmojisRevisionsKeyIsUnique = false

func (r ZmojisRevisions) ToRow() []string { return []string{r.UserID, r.Zmojis} }

func ZmojisRevisionsFromRow(row []string) ZmojisRevisions {
	return ZmojisRevisions{UserID: row[0], Zmojis: row[1]}
}

// PlusPluses: key, zgramId. One row per ++/-- token occurrence: a key
// incremented twice by the same zgram produces two identical rows, not
// one, since FrozenMetadata's plusPluses/minusMinuses map to a vector of
// ZgramIds (with repeats), not a count — so extsort must NOT collapse
// duplicates here the way it does for a genuinely unique key.
type PlusPluses struct {
	Key     string
	ZgramID uint64
}

const PlusPlusesKeySize = 2

var PlusPlusesKeyOptions = keyOpts(false, true)
const PlusPlusesKeyIsUnique = false

func (r PlusPluses) ToRow() []string { return []string{r.Key, formatZgramID(r.ZgramID)} }

func PlusPlusesFromRow(row []string) PlusPluses {
	return PlusPluses{Key: row[0], ZgramID: parseZgramID(row[1])}
}

// PlusPlusKeys: zgramId, key. The same pairs as PlusPluses, re-keyed with
// zgramId first so MetadataBuilder can group them by zgram and answer
// "what keys did this zgram increment" queries.
type PlusPlusKeys struct {
	ZgramID uint64
	Key     string
}

const PlusPlusKeysKeySize = 2

var PlusPlusKeysKeyOptions = keyOpts(true, false)
const PlusPlusKeysKeyIsUnique = true

func (r PlusPlusKeys) ToRow() []string { return []string{formatZgramID(r.ZgramID), r.Key} }

func PlusPlusKeysFromRow(row []string) PlusPlusKeys {
	return PlusPlusKeys{ZgramID: parseZgramID(row[0]), Key: row[1]}
}

// JoinRow/SplitRow implement the on-disk FieldSep-separated row framing
// shared by every schema above and by extsort's --field-separator
// contract.
func JoinRow(fields []string) string { return strings.Join(fields, sep) }

func SplitRow(line string) []string { return strings.Split(line, sep) }
