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

package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitWordsLowercasesAndDropsPunctuation(t *testing.T) {
	got := splitWords("Coffee, is GREAT!")
	require.Equal(t, []string{"coffee", "is", "great"}, got)
}

func TestSplitWordsDropsPureWhitespaceAndPunctuationSegments(t *testing.T) {
	got := splitWords("   ...   ")
	require.Empty(t, got)
}

func TestSplitWordsKeepsDigits(t *testing.T) {
	got := splitWords("room 404")
	require.Equal(t, []string{"room", "404"}, got)
}

func TestDecodeOffsetsAddsBase(t *testing.T) {
	got, err := decodeOffsets("0,3,7", 100)
	require.NoError(t, err)
	require.Equal(t, []uint64{100, 103, 107}, got)
}

func TestDecodeOffsetsRejectsMalformedField(t *testing.T) {
	_, err := decodeOffsets("0,not-a-number", 0)
	require.Error(t, err)
}
