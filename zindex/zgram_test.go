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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLineZephyrgram(t *testing.T) {
	line := []byte(`{"type":"zephyrgram","data":{"Id":42,"TimeSecs":1000,"Sender":"kosak","Signature":"","IsLogged":true,"Instance":"control","Body":"hello"}}`)
	rec, err := ParseLogLine(line)
	require.NoError(t, err)
	require.Equal(t, RecordZephyrgram, rec.Kind)
	require.Equal(t, ZgramId(42), rec.Zephyrgram.Id)
	require.Equal(t, "hello", rec.Zephyrgram.Body)
}

func TestParseLogLineUnknownTypeIsAnError(t *testing.T) {
	_, err := ParseLogLine([]byte(`{"type":"bogus","data":{}}`))
	require.Error(t, err)
}

func TestParseLogLineMalformedEnvelopeIsAnError(t *testing.T) {
	_, err := ParseLogLine([]byte(`not json`))
	require.Error(t, err)
}

func TestMarshalThenParseLogLineRoundTripsEachRecordKind(t *testing.T) {
	records := []LogRecord{
		{
			Kind: RecordZephyrgram,
			Zephyrgram: &Zgram{
				Id: 7, TimeSecs: 500, Sender: "kosak", Signature: "sig",
				IsLogged: true, Instance: "control", Body: "coffee",
			},
		},
		{
			Kind: RecordMetadata,
			Metadata: &MetadataRecord{
				Kind:     MetadataReaction,
				Reaction: &Reaction{ZgramId: 7, Reaction: "\U0001F44D", Creator: "kosak", WantAdd: true},
			},
		},
		{
			Kind: RecordMetadata,
			Metadata: &MetadataRecord{
				Kind:          MetadataZgramRevision,
				ZgramRevision: &ZgramRevision{ZgramId: 7, Instance: "control", Body: "coffee2", RenderStyle: 1},
			},
		},
		{
			Kind: RecordMetadata,
			Metadata: &MetadataRecord{
				Kind:          MetadataZgramRefersTo,
				ZgramRefersTo: &ZgramRefersTo{ZgramId: 7, RefersTo: 3, Valid: true},
			},
		},
		{
			Kind: RecordMetadata,
			Metadata: &MetadataRecord{
				Kind:   MetadataZmojis,
				Zmojis: &Zmojis{UserId: "kosak", Emojis: ":coffee:"},
			},
		},
	}

	for _, want := range records {
		encoded, err := MarshalLogLine(want)
		require.NoError(t, err)
		got, err := ParseLogLine(encoded)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestMarshalLogLineRejectsUnknownKind(t *testing.T) {
	_, err := MarshalLogLine(LogRecord{Kind: LogRecordKind(99)})
	require.Error(t, err)
}

func TestMarshalLogLineRejectsUnknownMetadataKind(t *testing.T) {
	_, err := MarshalLogLine(LogRecord{Kind: RecordMetadata, Metadata: &MetadataRecord{Kind: MetadataKind(99)}})
	require.Error(t, err)
}

func TestFieldTagString(t *testing.T) {
	require.Equal(t, "sender", FieldSender.String())
	require.Equal(t, "signature", FieldSignature.String())
	require.Equal(t, "instance", FieldInstance.String())
	require.Equal(t, "body", FieldBody.String())
	require.Equal(t, "unknown", FieldTag(99).String())
}

func TestZgramInfoTotalLenSumsAllFourFields(t *testing.T) {
	z := ZgramInfo{SenderLen: 1, SignatureLen: 2, InstanceLen: 3, BodyLen: 4}
	require.Equal(t, uint32(10), z.TotalLen())
}
