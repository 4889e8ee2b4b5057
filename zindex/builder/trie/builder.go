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

// Package trie builds a frozen word trie incrementally from a
// lexicographically sorted stream of (word, []wordOffset) insertions,
// freezing subtrees into an arena as soon as the sorted input proves they
// will never be touched again. This mirrors the original's streaming
// TrieBuilderNode: because input arrives sorted, at any moment at most one
// child per node is still "open" (the dynamic child); every sibling that
// sorts before the current insertion has already been frozen.
package trie

import (
	"fmt"

	"github.com/kosak/z2kplus-sub002/zindex/arena"
)

// frozenRef is the offset of an already-frozen node in the output arena.
type frozenRef = int64

// node is one in-progress trie node. At most one outgoing transition
// (dynChild) is still mutable; all others have already been frozen
// and are referenced by offset.
type node struct {
	prefix     []rune
	wordsHere  []uint64
	dynTrans   rune
	dynChild   *node
	hasDyn     bool
	frozenKeys []rune
	frozenRefs []frozenRef
}

// Builder accumulates a trie from a sorted insertion stream and freezes it
// into w on Finish.
type Builder struct {
	root *node
	w    *arena.Writer
}

// NewBuilder starts an empty trie that will freeze its nodes into w.
func NewBuilder(w *arena.Writer) *Builder {
	return &Builder{root: &node{}, w: w}
}

// Insert adds word -> wordOffsets. Callers MUST call Insert with word
// values in strictly increasing lexicographic (by-codepoint) order;
// violating this corrupts the freeze-on-divergence invariant silently; a
// higher layer (digest's gatherTrie, replaying an externally sorted
// file) is responsible for
// that ordering guarantee, since this type has no way to buffer and
// re-sort without defeating the point of streaming construction.
func (b *Builder) Insert(word []rune, wordOffsets []uint64) error {
	return b.root.tryInsert(word, wordOffsets, b.w)
}

func (n *node) tryInsert(probe []rune, offsets []uint64, w *arena.Writer) error {
	diffIndex := mismatch(n.prefix, probe)

	if diffIndex == len(n.prefix) {
		return n.insertHelper(probe[diffIndex:], offsets, w)
	}

	// Split: clone this node's existing state under a child keyed on the
	// prefix character at diffIndex, then continue from the hollowed-out
	// parent.
	cloneTransition := n.prefix[diffIndex]
	cloneRemainder := append([]rune(nil), n.prefix[diffIndex+1:]...)

	clone := &node{
		prefix:     cloneRemainder,
		wordsHere:  n.wordsHere,
		dynTrans:   n.dynTrans,
		dynChild:   n.dynChild,
		hasDyn:     n.hasDyn,
		frozenKeys: n.frozenKeys,
		frozenRefs: n.frozenRefs,
	}

	n.prefix = append([]rune(nil), n.prefix[:diffIndex]...)
	n.dynTrans = cloneTransition
	n.dynChild = clone
	n.hasDyn = true
	n.wordsHere = nil
	n.frozenKeys = nil
	n.frozenRefs = nil

	return n.insertHelper(probe[diffIndex:], offsets, w)
}

func (n *node) insertHelper(probe []rune, offsets []uint64, w *arena.Writer) error {
	if len(probe) == 0 {
		n.wordsHere = append(n.wordsHere, offsets...)
		return nil
	}
	transition := probe[0]
	remainder := probe[1:]

	if n.hasDyn && transition == n.dynTrans {
		return n.dynChild.tryInsert(remainder, offsets, w)
	}

	if n.hasDyn {
		ref, err := n.dynChild.freeze(w)
		if err != nil {
			return err
		}
		n.frozenKeys = append(n.frozenKeys, n.dynTrans)
		n.frozenRefs = append(n.frozenRefs, ref)
		n.dynChild = nil
		n.hasDyn = false
	}

	n.dynTrans = transition
	n.dynChild = &node{prefix: append([]rune(nil), remainder...), wordsHere: append([]uint64(nil), offsets...)}
	n.hasDyn = true
	return nil
}

// mismatch returns the length of the common prefix of a and b.
func mismatch(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Finish freezes the root and returns its offset in the arena. The
// Builder must not be used afterward.
func (b *Builder) Finish() (int64, error) {
	return b.root.freeze(b.w)
}

// freeze writes this node (after first freezing any still-open dynamic
// child) to w and returns its offset. Transitions are emitted in sorted
// key order since insertion order already guarantees the frozen prefix
// sorts before whatever dynamic transition is open at freeze time.
func (n *node) freeze(w *arena.Writer) (int64, error) {
	if n.hasDyn {
		ref, err := n.dynChild.freeze(w)
		if err != nil {
			return 0, err
		}
		n.frozenKeys = append(n.frozenKeys, n.dynTrans)
		n.frozenRefs = append(n.frozenRefs, ref)
		n.dynChild = nil
		n.hasDyn = false
	}

	headerOff, headerBuf, err := w.Alloc(12)
	if err != nil {
		return 0, err
	}
	putU32(headerBuf[0:4], uint32(len(n.prefix)))
	putU32(headerBuf[4:8], uint32(len(n.wordsHere)))
	putU32(headerBuf[8:12], uint32(len(n.frozenKeys)))

	for _, r := range n.prefix {
		_, buf, err := w.Alloc(4)
		if err != nil {
			return 0, err
		}
		putU32(buf, uint32(r))
	}
	for _, off := range n.wordsHere {
		_, buf, err := w.Alloc(8)
		if err != nil {
			return 0, err
		}
		putU64(buf, off)
	}
	for _, r := range n.frozenKeys {
		_, buf, err := w.Alloc(4)
		if err != nil {
			return 0, err
		}
		putU32(buf, uint32(r))
	}
	for _, ref := range n.frozenRefs {
		slotOff, buf, err := w.Alloc(arena.RelPtrSize)
		if err != nil {
			return 0, err
		}
		arena.EncodeRelPtr(buf, slotOff, ref)
	}

	if len(n.frozenKeys) != len(n.frozenRefs) {
		return 0, fmt.Errorf("trie: internal inconsistency: %d keys, %d refs", len(n.frozenKeys), len(n.frozenRefs))
	}

	return headerOff, nil
}

func putU32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func putU64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}
