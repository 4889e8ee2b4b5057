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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderWriteToThenReadHeaderRoundTrips(t *testing.T) {
	h := Header{
		FormatVersion:  IndexFormatVersion,
		FeatureVersion: 7,
		BuildID:        "abcdefghijklmnopqrst",
		InputHash:      [32]byte{1, 2, 3},
		ArenaSize:      123456,
	}
	var buf bytes.Buffer
	n, err := h.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, HeaderLen(), n)

	got, err := ReadHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeaderWriteToRejectsWrongLengthBuildID(t *testing.T) {
	h := Header{BuildID: "too short"}
	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.Error(t, err)
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, HeaderLen()))
	_, err := ReadHeader(buf)
	require.Error(t, err)
}

func TestReadHeaderRejectsUnsupportedFormatVersion(t *testing.T) {
	h := Header{FormatVersion: IndexFormatVersion + 1, BuildID: "abcdefghijklmnopqrst"}
	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)

	_, err = ReadHeader(&buf)
	require.Error(t, err)
}

func TestReadHeaderRejectsShortInput(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
}
