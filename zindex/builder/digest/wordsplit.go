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
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// splitWords breaks text into searchable tokens along Unicode UAX#29 word
// boundaries (github.com/rivo/uniseg), lowercases each one, and discards
// the boundary segments that are pure whitespace or punctuation — a
// word-break split yields one segment per run of letters/digits AND one
// per run of everything between them, and only the former are worth a
// trie entry.
func splitWords(text string) []string {
	var words []string
	remaining := text
	for len(remaining) > 0 {
		word, rest, _ := uniseg.FirstWordInString(remaining)
		remaining = rest
		if !hasWordRune(word) {
			continue
		}
		words = append(words, strings.ToLower(word))
	}
	return words
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
