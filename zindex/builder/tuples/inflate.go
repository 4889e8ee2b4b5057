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

package tuples

import "github.com/pkg/errors"

// Group is one level of an inflated tree: a run of rows from a sorted
// stream that agree on a growing key prefix, broken down recursively by
// column. At depth < treeHeight-1, Children holds one subgroup per
// distinct value of the next key column, in the order that value first
// appeared (which is sort order, since the source is sorted). At the
// deepest level, Leaves holds every row in the matching run, verbatim.
//
// This is the Go rendering of the original's tryInflateRecurse<Level>
// template recursion over FrozenMap<K, FrozenSet<V>>-shaped nested
// containers: rather than recursing over C++ template parameters picked
// at compile time per schema, Inflate recurses over a runtime
// treeHeight, producing a generic tree that each MetadataBuilder pipeline
// then walks to fill in its own concretely-typed FrozenMap/FrozenSet/
// FrozenVector via package frozen's writers. The original's TupleCounts
// precomputation (one pass to size destination arrays exactly before a
// second pass that fills them) has no equivalent here: frozen.VectorWriter
// et al. grow by simple append, so Inflate only needs one pass over the
// sorted stream.
type Group struct {
	Key      string
	Children []*Group
	Leaves   []Row
}

// Inflate consumes every row of it and groups them into a tree treeHeight
// levels deep. treeHeight must be <= the arity of every row; Inflate
// itself does not know or care how many trailing columns constitute the
// "value" at a leaf — that's for the caller's leaf-consumption code.
func Inflate(it Iterator, treeHeight int) (*Group, error) {
	cur := &lookahead{src: it}
	if err := cur.advance(); err != nil {
		return nil, err
	}
	children, err := inflateLevel(cur, 0, treeHeight, nil)
	if err != nil {
		return nil, errors.Wrap(err, "tuples: Inflate")
	}
	return &Group{Children: children}, nil
}

// lookahead gives Inflate one-row-of-peek over an Iterator.
type lookahead struct {
	src  Iterator
	row  Row
	done bool
}

func (l *lookahead) advance() error {
	row, err := l.src.Next()
	if err != nil {
		return err
	}
	if row == nil {
		l.done = true
		l.row = nil
		return nil
	}
	l.row = row
	return nil
}

func matchesPrefix(row, prefix Row) bool {
	for i, v := range prefix {
		if row[i] != v {
			return false
		}
	}
	return true
}

// inflateLevel groups every row still matching prefix into one Group per
// distinct value of column len(prefix), recursing until depth reaches
// treeHeight.
func inflateLevel(cur *lookahead, depth, treeHeight int, prefix Row) ([]*Group, error) {
	var children []*Group
	for !cur.done && matchesPrefix(cur.row, prefix) {
		key := cur.row[depth]
		childPrefix := append(append(Row{}, prefix...), key)
		child := &Group{Key: key}

		if depth+1 == treeHeight {
			for !cur.done && matchesPrefix(cur.row, childPrefix) {
				child.Leaves = append(child.Leaves, cur.row)
				if err := cur.advance(); err != nil {
					return nil, err
				}
			}
		} else {
			kids, err := inflateLevel(cur, depth+1, treeHeight, childPrefix)
			if err != nil {
				return nil, err
			}
			child.Children = kids
		}
		children = append(children, child)
	}
	return children, nil
}
