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

// Package trie is the read side of the frozen word trie: a patricia trie
// over Unicode codepoints whose leaves are global word offsets into the
// zgram word array. The write side that produces this layout lives in
// zindex/builder/trie.
package trie

import (
	"encoding/binary"
	"sort"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
)

// nodeHeaderLen is the fixed prologue of an encoded Node: prefixSize,
// numWordsHere, numTransitions, each a uint32.
const nodeHeaderLen = 12

// Node is a lightweight view over one trie node's bytes. It holds no
// decoded state; every accessor recomputes its slice from the node's base
// offset, matching FrozenNode's own "just reinterpret the bytes" read
// discipline in the original.
type Node struct {
	reader *arena.Reader
	offset int64
}

// Root returns the trie's root node.
func Root(reader *arena.Reader, rootOffset int64) Node {
	return Node{reader: reader, offset: rootOffset}
}

func (n Node) header() (prefixSize, numWordsHere, numTransitions uint32) {
	buf := n.reader.Bytes(n.offset, nodeHeaderLen)
	return binary.LittleEndian.Uint32(buf[0:4]),
		binary.LittleEndian.Uint32(buf[4:8]),
		binary.LittleEndian.Uint32(buf[8:12])
}

// Prefix returns this node's compressed prefix as a rune slice.
func (n Node) Prefix() []rune {
	prefixSize, _, _ := n.header()
	base := n.offset + nodeHeaderLen
	out := make([]rune, prefixSize)
	for i := range out {
		buf := n.reader.Bytes(base+int64(i)*4, 4)
		out[i] = rune(binary.LittleEndian.Uint32(buf))
	}
	return out
}

// WordsHere returns the global word offsets terminating exactly at this
// node (i.e. words whose remaining suffix after the prefix is empty).
func (n Node) WordsHere() []uint64 {
	prefixSize, numWordsHere, _ := n.header()
	base := n.offset + nodeHeaderLen + int64(prefixSize)*4
	out := make([]uint64, numWordsHere)
	for i := range out {
		buf := n.reader.Bytes(base+int64(i)*8, 8)
		out[i] = binary.LittleEndian.Uint64(buf)
	}
	return out
}

// NumTransitions reports the number of outgoing child transitions.
func (n Node) NumTransitions() int {
	_, _, numTransitions := n.header()
	return int(numTransitions)
}

func (n Node) transitionKeysOffset() int64 {
	prefixSize, numWordsHere, _ := n.header()
	return n.offset + nodeHeaderLen + int64(prefixSize)*4 + int64(numWordsHere)*8
}

// TransitionKey returns the codepoint that transition i matches.
func (n Node) TransitionKey(i int) rune {
	buf := n.reader.Bytes(n.transitionKeysOffset()+int64(i)*4, 4)
	return rune(binary.LittleEndian.Uint32(buf))
}

func (n Node) transitionsOffset() int64 {
	_, _, numTransitions := n.header()
	return n.transitionKeysOffset() + int64(numTransitions)*4
}

// Child follows transition i and returns the child node.
func (n Node) Child(i int) Node {
	slotOffset := n.transitionsOffset() + int64(i)*arena.RelPtrSize
	buf := n.reader.Bytes(slotOffset, arena.RelPtrSize)
	target := arena.DecodeRelPtr(buf, slotOffset)
	return Node{reader: n.reader, offset: target}
}

// FindTransition binary-searches this node's sorted transition keys for
// r, returning its index and true, or false if there is no such
// transition.
func (n Node) FindTransition(r rune) (int, bool) {
	count := n.NumTransitions()
	idx := sort.Search(count, func(i int) bool { return n.TransitionKey(i) >= r })
	if idx < count && n.TransitionKey(idx) == r {
		return idx, true
	}
	return 0, false
}

// Lookup walks the trie following word's codepoints and returns the word
// offsets stored at the node exactly matching word, if any.
func Lookup(root Node, word []rune) ([]uint64, bool) {
	node := root
	pos := 0
	for {
		prefix := node.Prefix()
		for i, r := range prefix {
			if pos+i >= len(word) || word[pos+i] != r {
				return nil, false
			}
		}
		pos += len(prefix)
		if pos == len(word) {
			return node.WordsHere(), true
		}
		idx, found := node.FindTransition(word[pos])
		if !found {
			return nil, false
		}
		node = node.Child(idx)
		pos++
	}
}

// CollectPrefix walks the trie following prefix's codepoints, then
// gathers every word offset in the subtree rooted at the node where the
// prefix is exhausted — i.e. every indexed word that starts with prefix.
// This is the primitive a prefix-search query layer (out of scope here;
// see spec.md §1 Non-goals) would build on; it is exposed because
// spec.md §7 names trie prefix traversal as part of the frozen contract.
func CollectPrefix(root Node, prefix []rune) []uint64 {
	node := root
	pos := 0
	for pos < len(prefix) {
		pfx := node.Prefix()
		i := 0
		for ; i < len(pfx) && pos+i < len(prefix); i++ {
			if pfx[i] != prefix[pos+i] {
				return nil
			}
		}
		pos += i
		if i < len(pfx) {
			// prefix ends mid-node-prefix: every word under this node
			// qualifies as long as the matched portion covers all of prefix.
			if pos == len(prefix) {
				break
			}
			return nil
		}
		if pos == len(prefix) {
			break
		}
		idx, found := node.FindTransition(prefix[pos])
		if !found {
			return nil
		}
		node = node.Child(idx)
		pos++
	}
	var out []uint64
	collectSubtree(node, &out)
	return out
}

func collectSubtree(node Node, out *[]uint64) {
	*out = append(*out, node.WordsHere()...)
	for i := 0; i < node.NumTransitions(); i++ {
		collectSubtree(node.Child(i), out)
	}
}
