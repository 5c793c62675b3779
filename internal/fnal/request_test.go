package fnal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_PriorityOf(t *testing.T) {
	assert.Equal(t, PriorityHigh, KindGetArticle.PriorityOf())
	assert.Equal(t, PriorityHigh, KindPostArticle.PriorityOf())
	assert.Equal(t, PriorityHigh, KindCheckArticleExists.PriorityOf())
	assert.Equal(t, PriorityNormal, KindGetThreads.PriorityOf())
	assert.Equal(t, PriorityNormal, KindGetGroups.PriorityOf())
	assert.Equal(t, PriorityNormal, KindGetThread.PriorityOf())
	assert.Equal(t, PriorityLow, KindGetGroupStats.PriorityOf())
	assert.Equal(t, PriorityLow, KindGetNewArticles.PriorityOf())
}

func TestRequest_AwaitReturnsRespondedResult(t *testing.T) {
	req := newRequest(context.Background(), KindGetArticle)
	req.respond(result{article: &Article{MessageID: "a@b"}})

	res, err := req.await()
	require.NoError(t, err)
	require.NotNil(t, res.article)
	assert.Equal(t, "a@b", res.article.MessageID)
}

func TestRequest_AwaitUnblocksOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req := newRequest(ctx, KindGetArticle)

	_, err := req.await()
	assert.Error(t, err)
}

func TestRequest_RespondIsNonBlockingWhenNobodyAwaits(t *testing.T) {
	req := newRequest(context.Background(), KindGetArticle)
	req.respond(result{})
	done := make(chan struct{})
	go func() {
		req.respond(result{}) // second send must not block even though buffer is full
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("respond blocked on a full channel")
	}
}
