package fnal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-while/fnal/internal/models"
)

func TestToArticle_NilInputReturnsNil(t *testing.T) {
	assert.Nil(t, toArticle(nil))
}

func TestToArticle_StripsToViewFields(t *testing.T) {
	m := &models.Article{
		MessageID:   "a@b",
		Subject:     "hi",
		FromHeader:  "x@example.com",
		DateString:  "Mon, 01 Jan 2024 00:00:00 +0000",
		BodyText:    "body text",
		HeadersJSON: `{"X-Foo":"bar"}`,
	}
	a := toArticle(m)
	require.NotNil(t, a)
	assert.Equal(t, "a@b", a.MessageID)
	assert.Equal(t, "hi", a.Subject)
	assert.Equal(t, "body text", a.Body)
	assert.Equal(t, `{"X-Foo":"bar"}`, a.Headers)
}

func TestAssembleThreads_GroupsRepliesUnderRoot(t *testing.T) {
	entries := []OverviewEntry{
		{ArticleNumber: 2, MessageID: "reply@a", Subject: "Re: hi", Date: "Tue, 02 Jan 2024 00:00:00 +0000", References: []string{"root@a"}},
		{ArticleNumber: 1, MessageID: "root@a", Subject: "hi", Date: "Mon, 01 Jan 2024 00:00:00 +0000"},
	}

	threads := assembleThreads(entries)
	require.Len(t, threads, 1)
	assert.Equal(t, "root@a", threads[0].RootID)
	assert.Equal(t, 2, threads[0].ArticleCount)
	require.Len(t, threads[0].Root.Children, 1)
	assert.Equal(t, "reply@a", threads[0].Root.Children[0].MessageID)
}

func TestAssembleThreads_UnrelatedEntriesBecomeSeparateRoots(t *testing.T) {
	entries := []OverviewEntry{
		{ArticleNumber: 1, MessageID: "a@x", Subject: "first", Date: "Mon, 01 Jan 2024 00:00:00 +0000"},
		{ArticleNumber: 2, MessageID: "b@y", Subject: "second", Date: "Tue, 02 Jan 2024 00:00:00 +0000"},
	}

	threads := assembleThreads(entries)
	assert.Len(t, threads, 2)
}

func TestFindKnownAncestor_PrefersImmediateParent(t *testing.T) {
	nodes := map[string]*ThreadNode{
		"root@a": {MessageID: "root@a"},
		"mid@a":  {MessageID: "mid@a"},
	}
	got := findKnownAncestor([]string{"root@a", "mid@a"}, nodes)
	assert.Equal(t, "mid@a", got, "references are oldest-to-newest, so the last entry is the immediate parent")
}

func TestFindKnownAncestor_NoneKnownReturnsEmpty(t *testing.T) {
	nodes := map[string]*ThreadNode{"root@a": {MessageID: "root@a"}}
	assert.Equal(t, "", findKnownAncestor([]string{"unknown@z"}, nodes))
}

func TestDateAfter_UnparseableDatesLose(t *testing.T) {
	assert.False(t, dateAfter("not a date", "Mon, 01 Jan 2024 00:00:00 +0000"))
	assert.True(t, dateAfter("Mon, 01 Jan 2024 00:00:00 +0000", "not a date"))
}

func TestSortThreadsByDateDesc_NewestFirstBadDatesLast(t *testing.T) {
	threads := []*Thread{
		{RootID: "old", LastPostDate: "Mon, 01 Jan 2024 00:00:00 +0000"},
		{RootID: "bad", LastPostDate: "not a date"},
		{RootID: "new", LastPostDate: "Wed, 03 Jan 2024 00:00:00 +0000"},
	}
	sorted := sortThreadsByDateDesc(threads)
	require.Len(t, sorted, 3)
	assert.Equal(t, "new", sorted[0].RootID)
	assert.Equal(t, "old", sorted[1].RootID)
	assert.Equal(t, "bad", sorted[2].RootID)
}
