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

// Package legacy converts the older line-oriented zgram log format into
// the current LogRecord JSON shape zindex.ParseLogLine understands. It is
// supplemental: the rest of this module never reads the legacy format
// directly, only cmd/zindex-convert does, once, ahead of a build.
package legacy

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kosak/z2kplus-sub002/zindex"
)

// RenderStyle mirrors the legacy three-way enum. Monospace never appears
// in a real corpus; Converter rejects it rather than silently mapping it
// to something.
type RenderStyle int

const (
	RenderDefault RenderStyle = iota
	RenderMarkDeepMathAjax
	RenderMonospace
)

// EmotionalReaction is the legacy like/dislike/none tri-state a creator
// recorded against a zgram, before the current format generalized
// reactions to arbitrary named tags.
type EmotionalReaction int

const (
	ReactionNone EmotionalReaction = iota
	ReactionLike
	ReactionDislike
)

// ZgramCore is the legacy (instance, body, render style) triple.
type ZgramCore struct {
	Instance    string      `json:"instance"`
	Body        string      `json:"body"`
	RenderStyle RenderStyle `json:"renderStyle"`
}

// Zephyrgram is one legacy zgram payload.
type Zephyrgram struct {
	ZgramId   uint64    `json:"zgramId"`
	TimeSecs  uint64    `json:"timesecs"`
	Sender    string    `json:"sender"`
	Signature string    `json:"signature"`
	IsLogged  bool      `json:"isLogged"`
	ZgramCore ZgramCore `json:"zgramCore"`
}

// Edit is one regex-based body rewrite, "src\x01dest" packed the way the
// legacy store packed it: src is a regex, dest is its replacement.
// Edits are stored as a list, not a map, precisely so arrival order
// survives JSON round-tripping; the conversion result depends on it.
type Edit struct {
	Id      string `json:"id"`
	SrcDest string `json:"edit"`
}

// split separates an Edit's packed "regex\x01replacement" form.
func (e Edit) split() (src, dest string, err error) {
	i := strings.IndexByte(e.SrcDest, '\x01')
	if i < 0 {
		return "", "", fmt.Errorf("%w: edit %q missing \\x01 separator", zindex.ErrParse, e.Id)
	}
	return e.SrcDest[:i], e.SrcDest[i+1:], nil
}

// ZmojiEntry is one (unit, zmoji) pair from a user's legacy zmoji history;
// Unit orders entries the way the legacy store's sequence numbers did, so
// Converter can replay them oldest-first regardless of what order this
// slice arrives in.
type ZmojiEntry struct {
	Unit  string `json:"unit"`
	Zmoji string `json:"zmoji"`
}

// PerZgramMetadata is the legacy metadata attached to a single zgram.
// Bookmarks, referredFrom, threads, plus-pluses and watches existed in
// the legacy store but convert to nothing in the current format and are
// not modeled here.
type PerZgramMetadata struct {
	Reactions map[string]EmotionalReaction `json:"reactions"`
	Hashtags  map[string]map[string]bool   `json:"hashtags"`
	RefersTo  map[string]bool              `json:"refersTo"`
	Edits     []Edit                       `json:"edits"`
}

// PerUserMetadata is the legacy metadata attached to a single user.
type PerUserMetadata struct {
	Zmojis []ZmojiEntry `json:"zmojis"`
}

// Metadata is the legacy metadata record: per-zgram and per-user metadata
// keyed by the zgram id / user id they describe.
type Metadata struct {
	PerZgram map[string]PerZgramMetadata `json:"perZgram"`
	PerUser  map[string]PerUserMetadata  `json:"perUser"`
}

// Record is one legacy log line: exactly one of Zephyrgram or Metadata is
// set, mirroring the legacy store's std::variant payload.
type Record struct {
	Zephyrgram *Zephyrgram `json:"zephyrgram,omitempty"`
	Metadata   *Metadata   `json:"metadata,omitempty"`
}

// SplitRecords breaks text into individual JSON record strings, one per
// line. Blank lines are skipped; a non-empty remainder with no trailing
// newline is an error, the same contract as the legacy store's
// LogParser::tryParseLogText/trySplitRecords.
func SplitRecords(text string) ([]string, error) {
	var records []string
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			return nil, fmt.Errorf("%w: legacy: trailing material without final newline", zindex.ErrParse)
		}
		line := text[:i]
		text = text[i+1:]
		if line == "" {
			continue
		}
		records = append(records, line)
	}
	return records, nil
}

// ParseRecord decodes one split-out record line, rejecting any trailing
// non-whitespace text after the JSON value the same way
// LogParser::tryParseLogRecord does.
func ParseRecord(line string) (Record, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return Record{}, errors.Wrap(err, "legacy: ParseRecord: malformed JSON")
	}
	if dec.More() {
		return Record{}, fmt.Errorf("%w: legacy: excess text in record %q", zindex.ErrParse, line)
	}
	return rec, nil
}

// ParseText splits and parses every record in text.
func ParseText(text string) ([]Record, error) {
	lines, err := SplitRecords(text)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// FileKey identifies one legacy plaintext file: a calendar date, a part
// number (legacy files were split within a day; the current format is
// not), and the logged/unlogged discriminant.
type FileKey struct {
	Year, Month, Day, Part uint32
	IsLogged               bool
}

var fileNameRe = regexp.MustCompile(`^plaintext\.(\d\d\d\d)(\d\d)(\d\d)p(\d\d\d\d)(P|T)$`)

// ParseFileName parses a legacy plaintext file's base name, e.g.
// "plaintext.20230417p0000P".
func ParseFileName(name string) (FileKey, error) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return FileKey{}, fmt.Errorf("%w: legacy: %q did not match the legacy filename grammar", zindex.ErrParse, name)
	}
	year, _ := strconv.ParseUint(m[1], 10, 32)
	month, _ := strconv.ParseUint(m[2], 10, 32)
	day, _ := strconv.ParseUint(m[3], 10, 32)
	part, _ := strconv.ParseUint(m[4], 10, 32)
	return FileKey{
		Year: uint32(year), Month: uint32(month), Day: uint32(day), Part: uint32(part),
		IsLogged: m[5] == "P",
	}, nil
}

// Less orders FileKeys chronologically, then by part, matching the order
// legacy parts must be replayed in.
func (k FileKey) Less(o FileKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Month != o.Month {
		return k.Month < o.Month
	}
	if k.Day != o.Day {
		return k.Day < o.Day
	}
	if k.Part != o.Part {
		return k.Part < o.Part
	}
	return !k.IsLogged && o.IsLogged
}

// EitherKey is the current-format destination key for this legacy file's
// date: every legacy part for the same day and logged/unlogged side
// converts into the same destination file.
func (k FileKey) EitherKey() zindex.EitherKey {
	return zindex.NewEitherKey(k.Year, k.Month, k.Day, k.IsLogged)
}
