package fnal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *ThreadNode {
	return &ThreadNode{
		MessageID: "root",
		Children: []*ThreadNode{
			{MessageID: "child1", Children: []*ThreadNode{
				{MessageID: "grandchild1"},
			}},
			{MessageID: "child2"},
		},
	}
}

func TestPaginateSlice_ReturnsWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, info := paginateSlice(items, 2, 2)
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, 2, info.Page)
	assert.Equal(t, 3, info.Pages)
	assert.Equal(t, 5, info.Total)
}

func TestPaginateSlice_PastEndReturnsEmpty(t *testing.T) {
	items := []int{1, 2, 3}
	page, _ := paginateSlice(items, 10, 2)
	assert.Empty(t, page)
}

func TestPaginateSlice_InvalidPerPageReturnsNil(t *testing.T) {
	page, _ := paginateSlice([]int{1, 2}, 1, 0)
	assert.Nil(t, page)
}

func TestFlatten_DepthFirstOrderAndDepths(t *testing.T) {
	flat := flatten(sampleTree(), 100)
	require.Len(t, flat, 4)
	assert.Equal(t, "root", flat[0].MessageID)
	assert.Equal(t, 0, flat[0].Depth)
	assert.Equal(t, "child1", flat[1].MessageID)
	assert.Equal(t, 1, flat[1].Depth)
	assert.Equal(t, "grandchild1", flat[2].MessageID)
	assert.Equal(t, 2, flat[2].Depth)
	assert.Equal(t, "child2", flat[3].MessageID)
	assert.Equal(t, 1, flat[3].Depth)
}

func TestFlatten_DescendantCountAndCollapse(t *testing.T) {
	flat := flatten(sampleTree(), 1)
	assert.Equal(t, 3, flat[0].DescendantCount)
	assert.False(t, flat[0].StartsCollapsed, "root is below the collapse threshold")
	assert.True(t, flat[1].StartsCollapsed, "child1 is at/past the threshold and has children")
	assert.False(t, flat[3].StartsCollapsed, "child2 has no children, so it cannot start collapsed")
}

func TestCollectMessageIDs_FlattensWholeTree(t *testing.T) {
	ids := collectMessageIDs(sampleTree())
	assert.ElementsMatch(t, []string{"root", "child1", "grandchild1", "child2"}, ids)
}

func TestCloneTree_IsDeepCopy(t *testing.T) {
	orig := sampleTree()
	clone := cloneTree(orig)

	clone.Children[0].MessageID = "mutated"
	assert.Equal(t, "child1", orig.Children[0].MessageID, "mutating the clone must not affect the original")
}

func TestFindNode_LocatesByMessageID(t *testing.T) {
	root := sampleTree()
	n := findNode(root, "grandchild1")
	require.NotNil(t, n)
	assert.Equal(t, "grandchild1", n.MessageID)

	assert.Nil(t, findNode(root, "does-not-exist"))
}
