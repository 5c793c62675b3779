package fnal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-while/fnal/internal/models"
	"github.com/go-while/fnal/internal/nntp"
)

// newTestServerService builds a serverService whose single worker talks to
// wc instead of a live connection, and starts it against ctx.
func newTestServerService(t *testing.T, ctx context.Context, name string, wc wireClient) *serverService {
	t.Helper()
	q := newPriorityQueue(defaultQueueCapacity)
	server := ServerConfig{Name: name}
	ss := &serverService{server: server, queue: q}
	ss.workers = []*worker{newWorker(0, server, q, func() wireClient { return wc })}
	ss.spawnWorkers(ctx)
	return ss
}

func testConfig() Config {
	return Config{
		Servers:              []ServerConfig{{Name: "a", Host: "a.example", Port: 119}},
		WorkerCountPerServer: 1,
		Incremental:          IncrementalConfig{DebounceMS: 0},
		Refresh:              refreshCfg(),
		MaxArticlesPerGroup:  500,
	}.withDefaults()
}

func TestFederated_GetArticle_CachesPositiveResult(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wc := &fakeWireClient{article: &models.Article{MessageID: "a@b", Subject: "hi", DateString: "Mon, 01 Jan 2024 00:00:00 +0000"}}
	ss := newTestServerService(t, ctx, "a", wc)
	cfg := testConfig()
	fs := newFederated(ctx, cfg, []*serverService{ss})
	defer fs.stop()

	art, err := fs.GetArticle(ctx, "a@b")
	require.NoError(t, err)
	assert.Equal(t, "hi", art.Subject)

	wc.article = nil
	wc.articleErr = ErrNotFoundSentinel // if the cache weren't hit, this would now surface
	art2, err := fs.GetArticle(ctx, "a@b")
	require.NoError(t, err)
	assert.Equal(t, "hi", art2.Subject)
}

func TestFederated_GetArticle_NegativeCachedAfterNotFound(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wc := &fakeWireClient{articleErr: ErrNotFoundSentinel}
	ss := newTestServerService(t, ctx, "a", wc)
	cfg := testConfig()
	fs := newFederated(ctx, cfg, []*serverService{ss})
	defer fs.stop()

	_, err := fs.GetArticle(ctx, "missing@x")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, negative, ok := fs.articleCache.Get("missing@x")
	require.True(t, ok)
	assert.True(t, negative)
}

func TestFederated_GetArticle_FallsBackAcrossServers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failing := &fakeWireClient{articleErr: ErrNotFoundSentinel}
	working := &fakeWireClient{article: &models.Article{MessageID: "a@b", Subject: "found on second server"}}

	ssA := newTestServerService(t, ctx, "a", failing)
	ssB := newTestServerService(t, ctx, "b", working)
	cfg := testConfig()
	cfg.Servers = append(cfg.Servers, ServerConfig{Name: "b", Host: "b.example", Port: 119})
	fs := newFederated(ctx, cfg, []*serverService{ssA, ssB})
	defer fs.stop()

	art, err := fs.GetArticle(ctx, "a@b")
	require.NoError(t, err)
	assert.Equal(t, "found on second server", art.Subject)
}

func TestFederated_GetThreads_CacheHitSkipsUpstream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wc := &fakeWireClient{
		groupInfo: &nntp.GroupInfo{Name: "g", First: 1, Last: 1},
		overview: []nntp.OverviewLine{
			{ArticleNum: 1, MessageID: "root@a", Subject: "hi", Date: "Mon, 01 Jan 2024 00:00:00 +0000"},
		},
	}
	ss := newTestServerService(t, ctx, "a", wc)
	cfg := testConfig()
	cfg.Incremental.DebounceMS = 60000 // keep the incremental recheck from firing mid-test
	fs := newFederated(ctx, cfg, []*serverService{ss})
	defer fs.stop()

	threads, err := fs.GetThreads(ctx, "g", 10)
	require.NoError(t, err)
	require.Len(t, threads, 1)

	wc.overviewErr = assert.AnError // if this were consulted again the second call would fail
	threads2, err := fs.GetThreads(ctx, "g", 10)
	require.NoError(t, err)
	assert.Equal(t, threads[0].RootID, threads2[0].RootID)
}

func TestFederated_GetGroups_UnionsAcrossServersFirstOccurrenceWins(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wcA := &fakeWireClient{groups: []nntp.GroupInfo{{Name: "comp.lang.go", Description: "from a"}}}
	wcB := &fakeWireClient{groups: []nntp.GroupInfo{
		{Name: "comp.lang.go", Description: "from b"},
		{Name: "rec.arts.sf", Description: "from b"},
	}}
	ssA := newTestServerService(t, ctx, "a", wcA)
	ssB := newTestServerService(t, ctx, "b", wcB)
	cfg := testConfig()
	fs := newFederated(ctx, cfg, []*serverService{ssA, ssB})
	defer fs.stop()

	groups, err := fs.GetGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byName := map[string]GroupView{}
	for _, g := range groups {
		byName[g.Name] = g
	}
	assert.Equal(t, "from a", byName["comp.lang.go"].Description, "first server's metadata wins on duplicate names")
	assert.Contains(t, byName, "rec.arts.sf")
}

func TestFederated_PostArticle_StopsAtFirstSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failing := &fakeWireClient{postErr: assert.AnError}
	working := &fakeWireClient{}
	ssA := newTestServerService(t, ctx, "a", failing)
	ssB := newTestServerService(t, ctx, "b", working)
	cfg := testConfig()
	fs := newFederated(ctx, cfg, []*serverService{ssA, ssB})
	defer fs.stop()

	err := fs.PostArticle(ctx, "g", [][2]string{{"Subject", "hi"}}, "body")
	assert.NoError(t, err)
}
