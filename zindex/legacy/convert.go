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

package legacy

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	sglog "github.com/sourcegraph/log"

	"github.com/kosak/z2kplus-sub002/zindex"
)

const (
	likeReaction    = "\U0001F44D" // 👍
	dislikeReaction = "\U0001F44E" // 👎
)

// zgramCoreSnapshot is the cached (instance, body, render style) a later
// edit rewrites. Only zgrams that Converter already knows will be edited
// get cached, the same "scan first, cache only what's needed" discipline
// as the legacy converter's two-pass structure.
type zgramCoreSnapshot struct {
	instance    string
	body        string
	renderStyle uint32
}

// Converter turns legacy records into current-format LogRecords. A
// Converter instance holds exactly the cross-file state the legacy
// conversion needs: which zgrams will later be edited, and (once
// encountered) their original body text.
type Converter struct {
	logger         sglog.Logger
	modifiedZgrams map[zindex.ZgramId]bool
	zgramCache     map[zindex.ZgramId]zgramCoreSnapshot
}

// NewConverter returns a fresh Converter. logger receives one Error
// event per malformed edit regex encountered (spec.md's redesign note:
// the legacy tool silently dropped these, this one does not).
func NewConverter(logger sglog.Logger) *Converter {
	return &Converter{
		logger:         logger,
		modifiedZgrams: make(map[zindex.ZgramId]bool),
		zgramCache:     make(map[zindex.ZgramId]zgramCoreSnapshot),
	}
}

// ScanForModifies is Converter's first pass: find every zgram that will
// later receive at least one edit, so the second pass knows which
// zgramCores it needs to cache as it encounters them.
func (c *Converter) ScanForModifies(records []Record) {
	for _, rec := range records {
		if rec.Metadata == nil {
			continue
		}
		for zgIdStr, pzmd := range rec.Metadata.PerZgram {
			if len(pzmd.Edits) == 0 {
				continue
			}
			zgId, err := parseZgramId(zgIdStr)
			if err != nil {
				continue
			}
			c.modifiedZgrams[zgId] = true
		}
	}
}

// ConvertRecords is Converter's second pass: expand every legacy record
// into zero or more current-format LogRecords, in arrival order.
func (c *Converter) ConvertRecords(records []Record) ([]zindex.LogRecord, error) {
	var out []zindex.LogRecord
	for _, rec := range records {
		switch {
		case rec.Zephyrgram != nil:
			lr, err := c.convertZephyrgram(rec.Zephyrgram)
			if err != nil {
				return nil, err
			}
			out = append(out, lr)
		case rec.Metadata != nil:
			converted, err := c.convertMetadata(rec.Metadata)
			if err != nil {
				return nil, err
			}
			out = append(out, converted...)
		default:
			return nil, fmt.Errorf("%w: legacy: record has neither a zephyrgram nor metadata payload", zindex.ErrParse)
		}
	}
	return out, nil
}

func (c *Converter) convertZephyrgram(lz *Zephyrgram) (zindex.LogRecord, error) {
	instance, body, style, err := convertZgramCore(lz.ZgramCore)
	if err != nil {
		return zindex.LogRecord{}, err
	}
	zgId := zindex.ZgramId(lz.ZgramId)
	if c.modifiedZgrams[zgId] {
		c.zgramCache[zgId] = zgramCoreSnapshot{instance: instance, body: body, renderStyle: style}
	}
	return zindex.LogRecord{
		Kind: zindex.RecordZephyrgram,
		Zephyrgram: &zindex.Zgram{
			Id:        zgId,
			TimeSecs:  lz.TimeSecs,
			Sender:    lz.Sender,
			Signature: lz.Signature,
			IsLogged:  lz.IsLogged,
			Instance:  instance,
			Body:      body,
		},
	}, nil
}

func convertZgramCore(src ZgramCore) (instance, body string, renderStyle uint32, err error) {
	switch src.RenderStyle {
	case RenderDefault:
		renderStyle = 0
	case RenderMarkDeepMathAjax:
		renderStyle = 1
	default:
		return "", "", 0, fmt.Errorf("%w: legacy: unexpected render style %d (monospace should not appear in a real corpus)",
			zindex.ErrInvariant, src.RenderStyle)
	}
	return src.Instance, src.Body, renderStyle, nil
}

func (c *Converter) convertMetadata(md *Metadata) ([]zindex.LogRecord, error) {
	var out []zindex.LogRecord

	zgIds := make([]string, 0, len(md.PerZgram))
	for k := range md.PerZgram {
		zgIds = append(zgIds, k)
	}
	sort.Strings(zgIds)
	for _, zgIdStr := range zgIds {
		zgId, err := parseZgramId(zgIdStr)
		if err != nil {
			return nil, err
		}
		converted, err := c.convertPerZgramMetadata(zgId, md.PerZgram[zgIdStr])
		if err != nil {
			return nil, err
		}
		out = append(out, converted...)
	}

	users := make([]string, 0, len(md.PerUser))
	for k := range md.PerUser {
		users = append(users, k)
	}
	sort.Strings(users)
	for _, user := range users {
		out = append(out, convertPerUserMetadata(user, md.PerUser[user])...)
	}
	return out, nil
}

func (c *Converter) convertPerZgramMetadata(zgId zindex.ZgramId, pzmd PerZgramMetadata) ([]zindex.LogRecord, error) {
	var out []zindex.LogRecord
	out = append(out, convertEmotionalReactions(zgId, pzmd.Reactions)...)
	out = append(out, convertHashtags(zgId, pzmd.Hashtags)...)
	out = append(out, convertRefersTo(zgId, pzmd.RefersTo)...)
	edits, err := c.convertEdits(zgId, pzmd.Edits)
	if err != nil {
		return nil, err
	}
	return append(out, edits...), nil
	// Bookmarks, referredFrom, threads, plus-pluses and watches are not
	// converted: the current format has no equivalent for the first
	// three, and plus-pluses/watches are re-derived by the builder from
	// zgram bodies rather than carried as metadata.
}

func convertPerUserMetadata(user string, pumd PerUserMetadata) []zindex.LogRecord {
	return convertZmojis(user, pumd.Zmojis)
}

func reactionRecord(zgId zindex.ZgramId, reaction, creator string, wantAdd bool) zindex.LogRecord {
	return zindex.LogRecord{
		Kind: zindex.RecordMetadata,
		Metadata: &zindex.MetadataRecord{
			Kind: zindex.MetadataReaction,
			Reaction: &zindex.Reaction{
				ZgramId: zgId, Reaction: reaction, Creator: creator, WantAdd: wantAdd,
			},
		},
	}
}

// convertEmotionalReactions expands the legacy tri-state reaction into
// the current format's independent like/dislike toggle events, one
// record per state transition a creator's reaction implies.
func convertEmotionalReactions(zgId zindex.ZgramId, reactions map[string]EmotionalReaction) []zindex.LogRecord {
	creators := make([]string, 0, len(reactions))
	for creator := range reactions {
		creators = append(creators, creator)
	}
	sort.Strings(creators)

	var out []zindex.LogRecord
	for _, creator := range creators {
		r := reactions[creator]
		if r == ReactionLike || r == ReactionNone {
			out = append(out, reactionRecord(zgId, dislikeReaction, creator, false))
		}
		if r == ReactionDislike || r == ReactionNone {
			out = append(out, reactionRecord(zgId, likeReaction, creator, false))
		}
		if r == ReactionLike {
			out = append(out, reactionRecord(zgId, likeReaction, creator, true))
		}
		if r == ReactionDislike {
			out = append(out, reactionRecord(zgId, dislikeReaction, creator, true))
		}
	}
	return out
}

func convertHashtags(zgId zindex.ZgramId, hashtags map[string]map[string]bool) []zindex.LogRecord {
	tags := make([]string, 0, len(hashtags))
	for tag := range hashtags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var out []zindex.LogRecord
	for _, tag := range tags {
		inner := hashtags[tag]
		creators := make([]string, 0, len(inner))
		for creator := range inner {
			creators = append(creators, creator)
		}
		sort.Strings(creators)
		for _, creator := range creators {
			out = append(out, reactionRecord(zgId, tag, creator, inner[creator]))
		}
	}
	return out
}

func convertRefersTo(zgId zindex.ZgramId, refersTo map[string]bool) []zindex.LogRecord {
	targets := make([]string, 0, len(refersTo))
	for t := range refersTo {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	var out []zindex.LogRecord
	for _, targetStr := range targets {
		target, err := parseZgramId(targetStr)
		if err != nil {
			continue
		}
		out = append(out, zindex.LogRecord{
			Kind: zindex.RecordMetadata,
			Metadata: &zindex.MetadataRecord{
				Kind: zindex.MetadataZgramRefersTo,
				ZgramRefersTo: &zindex.ZgramRefersTo{
					ZgramId: zgId, RefersTo: target, Valid: refersTo[targetStr],
				},
			},
		})
	}
	return out
}

// convertEdits replays zgId's edits in order, regex-rewriting the cached
// body and emitting one ZgramRevision per successful edit. A regex that
// fails to compile is logged at error severity and its edit dropped; the
// legacy tool silently swallowed this case.
func (c *Converter) convertEdits(zgId zindex.ZgramId, edits []Edit) ([]zindex.LogRecord, error) {
	if len(edits) == 0 {
		return nil, nil
	}
	snapshot, ok := c.zgramCache[zgId]
	if !ok {
		return nil, fmt.Errorf("%w: legacy: zgram %d has edits but was never seen with a body to cache", zindex.ErrInvariant, zgId)
	}

	currentBody := snapshot.body
	var out []zindex.LogRecord
	for _, edit := range edits {
		src, dest, err := edit.split()
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(src)
		if err != nil {
			c.logger.Error("legacy: problematic edit regex, dropping edit",
				sglog.Int64("zgramId", int64(zgId)),
				sglog.String("regex", src),
				sglog.Error(err))
			continue
		}
		currentBody = re.ReplaceAllString(currentBody, dest)
		out = append(out, zindex.LogRecord{
			Kind: zindex.RecordMetadata,
			Metadata: &zindex.MetadataRecord{
				Kind: zindex.MetadataZgramRevision,
				ZgramRevision: &zindex.ZgramRevision{
					ZgramId:     zgId,
					Instance:    snapshot.instance,
					Body:        currentBody,
					RenderStyle: snapshot.renderStyle,
				},
			},
		})
	}
	return out, nil
}

func convertZmojis(user string, zmojis []ZmojiEntry) []zindex.LogRecord {
	entries := append([]ZmojiEntry(nil), zmojis...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Unit < entries[j].Unit })

	out := make([]zindex.LogRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, zindex.LogRecord{
			Kind: zindex.RecordMetadata,
			Metadata: &zindex.MetadataRecord{
				Kind:   zindex.MetadataZmojis,
				Zmojis: &zindex.Zmojis{UserId: user, Emojis: e.Zmoji},
			},
		})
	}
	return out
}

func parseZgramId(s string) (zindex.ZgramId, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: legacy: malformed zgram id %q", zindex.ErrParse, s)
	}
	return zindex.ZgramId(v), nil
}
