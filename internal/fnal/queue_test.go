package fnal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue_HighBeforeNormalBeforeLow(t *testing.T) {
	q := newPriorityQueue(10)
	ctx := context.Background()

	low := newRequest(ctx, KindGetGroups)
	low.Priority = PriorityLow
	normal := newRequest(ctx, KindGetGroups)
	normal.Priority = PriorityNormal
	high := newRequest(ctx, KindGetGroups)
	high.Priority = PriorityHigh

	require.NoError(t, q.push(ctx, low))
	require.NoError(t, q.push(ctx, normal))
	require.NoError(t, q.push(ctx, high))

	got, err := q.pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, high.ID, got.ID)

	got, err = q.pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, normal.ID, got.ID)

	got, err = q.pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, low.ID, got.ID)
}

func TestPriorityQueue_PromotesLowEveryNthDequeue(t *testing.T) {
	q := newPriorityQueue(PriorityPromoteEvery + 10)
	ctx := context.Background()

	low := newRequest(ctx, KindGetGroups)
	low.Priority = PriorityLow
	require.NoError(t, q.push(ctx, low))

	for i := 0; i < PriorityPromoteEvery-1; i++ {
		high := newRequest(ctx, KindGetGroups)
		high.Priority = PriorityHigh
		require.NoError(t, q.push(ctx, high))
	}

	var lastPopped *Request
	for i := 0; i < PriorityPromoteEvery; i++ {
		got, err := q.pop(ctx)
		require.NoError(t, err)
		lastPopped = got
	}
	assert.Equal(t, low.ID, lastPopped.ID, "the PriorityPromoteEvery-th dequeue should service Low even with High pending")
}

func TestPriorityQueue_PopBlocksUntilPush(t *testing.T) {
	q := newPriorityQueue(1)
	ctx := context.Background()

	done := make(chan *Request, 1)
	go func() {
		got, err := q.pop(ctx)
		require.NoError(t, err)
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	req := newRequest(ctx, KindGetGroups)
	require.NoError(t, q.push(ctx, req))

	select {
	case got := <-done:
		assert.Equal(t, req.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("pop never returned the pushed request")
	}
}

func TestPriorityQueue_PopRespectsContextCancellation(t *testing.T) {
	q := newPriorityQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.pop(ctx)
	assert.Error(t, err)
}

func TestPriorityQueue_ConcurrentPopIsRaceFree(t *testing.T) {
	const workers = 4
	const perWorker = 200
	total := workers * perWorker

	q := newPriorityQueue(total)
	ctx := context.Background()

	for i := 0; i < total; i++ {
		req := newRequest(ctx, KindGetGroups)
		req.Priority = Priority(i % 3)
		require.NoError(t, q.push(ctx, req))
	}

	var wg sync.WaitGroup
	var popped int64
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := q.pop(ctx)
				require.NoError(t, err)
				mu.Lock()
				popped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, total, popped, "every pushed request should be popped exactly once under concurrent pop")
}
