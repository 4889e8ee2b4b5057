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

package schemas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZephyrgramRowRoundTrips(t *testing.T) {
	want := Zephyrgram{
		ZgramID: 42, TimeSecs: 1000, Sender: "kosak", Signature: "sig",
		IsLogged: true, Instance: "control", Body: "coffee is great",
		FileKey: 7, Offset: 100, Size: 20,
	}
	got := ZephyrgramFromRow(want.ToRow())
	require.Equal(t, want, got)
}

func TestReactionsByZgramIdRowRoundTrips(t *testing.T) {
	want := ReactionsByZgramId{ZgramID: 7, Reaction: "\U0001F44D", Creator: "kosak", WantAdd: true}
	require.Equal(t, want, ReactionsByZgramIdFromRow(want.ToRow()))
}

func TestReactionsByReactionRowRoundTrips(t *testing.T) {
	want := ReactionsByReaction{Reaction: "\U0001F44D", ZgramID: 7, Creator: "kosak", WantAdd: false}
	require.Equal(t, want, ReactionsByReactionFromRow(want.ToRow()))
}

func TestReactionsCountsRowRoundTrips(t *testing.T) {
	want := ReactionsCounts{Reaction: "\U0001F44D", ZgramID: 7, Count: 3}
	require.Equal(t, want, ReactionsCountsFromRow(want.ToRow()))
}

func TestZgramRevisionsRowRoundTrips(t *testing.T) {
	want := ZgramRevisions{ZgramID: 7, Instance: "control", Body: "edited", RenderStyle: 1}
	require.Equal(t, want, ZgramRevisionsFromRow(want.ToRow()))
}

func TestZgramRefersTosRowRoundTrips(t *testing.T) {
	want := ZgramRefersTos{ZgramID: 7, RefersTo: 3, Valid: true}
	require.Equal(t, want, ZgramRefersTosFromRow(want.ToRow()))
}

func TestZmojisRevisionsRowRoundTrips(t *testing.T) {
	want := ZmojisRevisions{UserID: "kosak", Zmojis: ":coffee:"}
	require.Equal(t, want, ZmojisRevisionsFromRow(want.ToRow()))
}

func TestPlusPlusesRowRoundTrips(t *testing.T) {
	want := PlusPluses{Key: "coffee", ZgramID: 9}
	require.Equal(t, want, PlusPlusesFromRow(want.ToRow()))
}

func TestPlusPlusKeysRowRoundTrips(t *testing.T) {
	want := PlusPlusKeys{ZgramID: 9, Key: "coffee"}
	require.Equal(t, want, PlusPlusKeysFromRow(want.ToRow()))
}

func TestJoinRowAndSplitRowAreInverses(t *testing.T) {
	fields := []string{"a", "b", "c"}
	require.Equal(t, fields, SplitRow(JoinRow(fields)))
}
