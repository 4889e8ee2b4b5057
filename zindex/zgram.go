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
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// ZgramId is a monotonically increasing 64-bit opaque identifier assigned
// at zgram creation time, upstream of this builder.
type ZgramId uint64

// Zgram is the in-memory decode of a Zephyrgram log line.
type Zgram struct {
	Id        ZgramId
	TimeSecs  uint64
	Sender    string
	Signature string
	IsLogged  bool
	Instance  string
	Body      string
}

// Reaction is one "I react to zgram X with emoji Y" event. WantAdd
// distinguishes an add from a remove of the same (zgramId, reaction,
// creator) triple; they are not deduplicated at parse time, only by the
// LastKeeper/TrueKeeper combinator pipeline downstream.
type Reaction struct {
	ZgramId  ZgramId
	Reaction string
	Creator  string
	WantAdd  bool
}

// ZgramRevision supersedes a zgram's (instance, body); the latest revision
// (by arrival order) wins.
type ZgramRevision struct {
	ZgramId     ZgramId
	Instance    string
	Body        string
	RenderStyle uint32
}

// ZgramRefersTo records a reply/reference edge between two zgrams.
type ZgramRefersTo struct {
	ZgramId   ZgramId
	RefersTo  ZgramId
	Valid     bool
}

// Zmojis associates a free-form emoji string with a user; later events for
// the same user override earlier ones.
type Zmojis struct {
	UserId string
	Emojis string
}

// MetadataKind discriminates the tagged union below.
type MetadataKind int

const (
	MetadataReaction MetadataKind = iota
	MetadataZgramRevision
	MetadataZgramRefersTo
	MetadataZmojis
)

// MetadataRecord is the tagged union over the four metadata record types.
// Exactly one of the pointer fields matching Kind is non-nil.
type MetadataRecord struct {
	Kind          MetadataKind
	Reaction      *Reaction
	ZgramRevision *ZgramRevision
	ZgramRefersTo *ZgramRefersTo
	Zmojis        *Zmojis
}

// LogRecordKind discriminates a LogRecord between a Zephyrgram and a
// metadata event.
type LogRecordKind int

const (
	RecordZephyrgram LogRecordKind = iota
	RecordMetadata
)

// LogRecord is the tagged union parsed from one line of an input log file:
// {Zephyrgram | MetadataRecord{Reaction | ZgramRevision | ZgramRefersTo | Zmojis}}.
type LogRecord struct {
	Kind       LogRecordKind
	Zephyrgram *Zgram
	Metadata   *MetadataRecord
}

// wireLogRecord is the on-disk JSON shape: a discriminator tag plus a
// payload object, matching the "one JSON record per line" framing in
// spec.md §6. This is deliberately a plain encoding/json struct (not a
// third-party decoder): the rest of the example corpus that does tagged-
// union JSON decoding (e.g. cloudresty/go-log's structured fields) uses
// the same idiom, and a discriminated envelope is exactly what
// encoding/json is for.
type wireLogRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	wireZephyrgram    = "zephyrgram"
	wireReaction      = "reaction"
	wireZgramRevision = "zgram_revision"
	wireZgramRefersTo = "zgram_refers_to"
	wireZmojis        = "zmojis"
)

// ParseLogLine decodes one JSON-serialized LogRecord. Blank lines should be
// filtered out by the caller before calling this (spec.md §6: "blank lines
// ignored"). Parse errors are wrapped with enough context for the caller
// to attach the offending byte offset.
func ParseLogLine(line []byte) (LogRecord, error) {
	var wire wireLogRecord
	if err := json.Unmarshal(line, &wire); err != nil {
		return LogRecord{}, errors.Wrap(err, "zindex: ParseLogLine: malformed envelope")
	}
	switch wire.Type {
	case wireZephyrgram:
		var z Zgram
		if err := json.Unmarshal(wire.Data, &z); err != nil {
			return LogRecord{}, errors.Wrap(err, "zindex: ParseLogLine: malformed zephyrgram")
		}
		return LogRecord{Kind: RecordZephyrgram, Zephyrgram: &z}, nil
	case wireReaction:
		var r Reaction
		if err := json.Unmarshal(wire.Data, &r); err != nil {
			return LogRecord{}, errors.Wrap(err, "zindex: ParseLogLine: malformed reaction")
		}
		return LogRecord{Kind: RecordMetadata, Metadata: &MetadataRecord{Kind: MetadataReaction, Reaction: &r}}, nil
	case wireZgramRevision:
		var r ZgramRevision
		if err := json.Unmarshal(wire.Data, &r); err != nil {
			return LogRecord{}, errors.Wrap(err, "zindex: ParseLogLine: malformed zgram revision")
		}
		return LogRecord{Kind: RecordMetadata, Metadata: &MetadataRecord{Kind: MetadataZgramRevision, ZgramRevision: &r}}, nil
	case wireZgramRefersTo:
		var r ZgramRefersTo
		if err := json.Unmarshal(wire.Data, &r); err != nil {
			return LogRecord{}, errors.Wrap(err, "zindex: ParseLogLine: malformed zgram refers-to")
		}
		return LogRecord{Kind: RecordMetadata, Metadata: &MetadataRecord{Kind: MetadataZgramRefersTo, ZgramRefersTo: &r}}, nil
	case wireZmojis:
		var r Zmojis
		if err := json.Unmarshal(wire.Data, &r); err != nil {
			return LogRecord{}, errors.Wrap(err, "zindex: ParseLogLine: malformed zmojis")
		}
		return LogRecord{Kind: RecordMetadata, Metadata: &MetadataRecord{Kind: MetadataZmojis, Zmojis: &r}}, nil
	default:
		return LogRecord{}, fmt.Errorf("%w: unknown log record type %q", ErrParse, wire.Type)
	}
}

// MarshalLogLine encodes r in the same envelope ParseLogLine decodes: a
// {"type": ..., "data": ...} object, with no trailing newline. Callers
// that write a log file append '\n' themselves, one record per line.
func MarshalLogLine(r LogRecord) ([]byte, error) {
	var wire wireLogRecord
	var payload any
	switch r.Kind {
	case RecordZephyrgram:
		wire.Type = wireZephyrgram
		payload = r.Zephyrgram
	case RecordMetadata:
		switch r.Metadata.Kind {
		case MetadataReaction:
			wire.Type = wireReaction
			payload = r.Metadata.Reaction
		case MetadataZgramRevision:
			wire.Type = wireZgramRevision
			payload = r.Metadata.ZgramRevision
		case MetadataZgramRefersTo:
			wire.Type = wireZgramRefersTo
			payload = r.Metadata.ZgramRefersTo
		case MetadataZmojis:
			wire.Type = wireZmojis
			payload = r.Metadata.Zmojis
		default:
			return nil, fmt.Errorf("%w: unknown metadata kind %d", ErrParse, r.Metadata.Kind)
		}
	default:
		return nil, fmt.Errorf("%w: unknown log record kind %d", ErrParse, r.Kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "zindex: MarshalLogLine: payload")
	}
	wire.Data = data
	return json.Marshal(wire)
}

// FieldTag identifies which of a zgram's four text fields a WordInfo token
// came from. The WordInfo array for a zgram is laid out in this order.
type FieldTag uint8

const (
	FieldSender FieldTag = iota
	FieldSignature
	FieldInstance
	FieldBody
)

func (t FieldTag) String() string {
	switch t {
	case FieldSender:
		return "sender"
	case FieldSignature:
		return "signature"
	case FieldInstance:
		return "instance"
	case FieldBody:
		return "body"
	default:
		return "unknown"
	}
}

// ZgramInfo is the frozen per-zgram row (spec.md §3). FirstWordOff is the
// absolute (post-gather) word offset of this zgram's first token; the four
// *Len fields partition its token run in (sender, signature, instance,
// body) order.
type ZgramInfo struct {
	TimeSecs      uint64
	Location      LogLocation
	FirstWordOff  uint64
	ZgramId       ZgramId
	SenderLen     uint32
	SignatureLen  uint32
	InstanceLen   uint32
	BodyLen       uint32
}

// TotalLen is the number of tokens this zgram contributes to the global
// word array.
func (z ZgramInfo) TotalLen() uint32 {
	return z.SenderLen + z.SignatureLen + z.InstanceLen + z.BodyLen
}

// WordInfo is the frozen per-token row, parallel to the trie's word-offset
// leaves.
type WordInfo struct {
	ZgramOff uint64
	Field    FieldTag
}
