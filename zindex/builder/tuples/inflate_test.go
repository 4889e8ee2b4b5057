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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInflateBuildsATwoLevelTreeOverSortedRows(t *testing.T) {
	src := newSliceIterator(
		Row{"dislike", "1", "kosak"},
		Row{"like", "1", "kosak"},
		Row{"like", "1", "zoey"},
		Row{"like", "2", "kosak"},
	)
	root, err := Inflate(src, 2)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	dislike := root.Children[0]
	require.Equal(t, "dislike", dislike.Key)
	require.Len(t, dislike.Children, 1)
	require.Equal(t, "1", dislike.Children[0].Key)
	require.Equal(t, []Row{{"dislike", "1", "kosak"}}, dislike.Children[0].Leaves)

	like := root.Children[1]
	require.Equal(t, "like", like.Key)
	require.Len(t, like.Children, 2)
	require.Equal(t, "1", like.Children[0].Key)
	require.Equal(t, []Row{{"like", "1", "kosak"}, {"like", "1", "zoey"}}, like.Children[0].Leaves)
	require.Equal(t, "2", like.Children[1].Key)
}

func TestInflateAtTreeHeightOneProducesOneLevelOfLeaves(t *testing.T) {
	src := newSliceIterator(Row{"a", "1"}, Row{"a", "2"}, Row{"b", "3"})
	root, err := Inflate(src, 1)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	require.Equal(t, "a", root.Children[0].Key)
	require.Equal(t, []Row{{"a", "1"}, {"a", "2"}}, root.Children[0].Leaves)
	require.Equal(t, "b", root.Children[1].Key)
}

func TestInflateOnEmptyInputProducesNoChildren(t *testing.T) {
	src := newSliceIterator()
	root, err := Inflate(src, 2)
	require.NoError(t, err)
	require.Empty(t, root.Children)
}
