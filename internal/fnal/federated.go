package fnal

// Federated Service: the apex component. Wraps an ordered list of Server
// Services behind every end-user-visible cache, the group->server dispatch
// map, and the incremental/activity sub-components. Grounded on
// original_source/src/nntp/federated.rs (NntpFederatedService) -- structure,
// dispatch, and merge logic translated from moka+tokio::RwLock+broadcast to
// this package's generic Cache + sync.RWMutex + singleflight.Group.

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/alitto/pond"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type cachedThreads struct {
	threads           []*Thread
	lastArticleNumber int64
}

type cachedThread struct {
	thread *Thread
}

// Federated is FNAL's public-facing core: every operation in spec.md §6
// funnels through here.
type Federated struct {
	cfg      Config
	services []*serverService

	articleCache    *Cache[string, *Article]
	threadsCache    *Cache[string, *cachedThreads]
	threadCache     *Cache[string, *cachedThread]
	groupsCache     *Cache[string, []GroupView]
	groupStatsCache *Cache[string, GroupStats]

	groupServersMu sync.RWMutex
	groupServers   map[string][]int

	incremental *incrementalEngine
	activity    *activityTracker

	articleSF singleflight.Group
	threadsSF singleflight.Group
	threadSF  singleflight.Group
	groupsSF  singleflight.Group
	statsSF   singleflight.Group

	bodyPool *pond.WorkerPool

	baseCtx context.Context
}

func newFederated(ctx context.Context, cfg Config, services []*serverService) *Federated {
	return &Federated{
		cfg:      cfg,
		services: services,

		articleCache:    newCache[string, *Article]("articles", cfg.Cache.MaxArticles, cfg.Cache.ArticleTTL, cfg.Cache.NegativeTTL),
		threadsCache:    newCache[string, *cachedThreads]("threads", cfg.Cache.MaxThreadLists, cfg.Cache.ThreadsTTL, 0),
		threadCache:     newCache[string, *cachedThread]("thread", cfg.Cache.MaxThreadsSize, cfg.Cache.ThreadsTTL, 0),
		groupsCache:     newCache[string, []GroupView]("groups", 1, cfg.Cache.GroupsTTL, 0),
		groupStatsCache: newCache[string, GroupStats]("group-stats", cfg.Cache.MaxGroupStats, cfg.Cache.ThreadsTTL, 0),

		groupServers: make(map[string][]int),
		incremental:  newIncrementalEngine(cfg.Incremental),
		activity:     newActivityTracker(cfg.Refresh),
		bodyPool:     pond.New(8, 64, pond.MinWorkers(1)),
		baseCtx:      ctx,
	}
}

func (fs *Federated) stop() {
	fs.bodyPool.StopAndWait()
	fs.articleCache.Stop()
	fs.threadsCache.Stop()
	fs.threadCache.Stop()
	fs.groupsCache.Stop()
	fs.groupStatsCache.Stop()
}

// getServersForGroup returns the server indices known to carry group, or
// every index if the group is unknown (never populated, or not present in
// the most recent LIST union) -- spec.md §4.3's "smart dispatch".
func (fs *Federated) getServersForGroup(group string) []int {
	fs.groupServersMu.RLock()
	indices, ok := fs.groupServers[group]
	fs.groupServersMu.RUnlock()
	if ok {
		return indices
	}
	all := make([]int, len(fs.services))
	for i := range fs.services {
		all[i] = i
	}
	return all
}

// ---- GetArticle --------------------------------------------------------

func (fs *Federated) GetArticle(ctx context.Context, messageID string) (*Article, error) {
	if v, negative, ok := fs.articleCache.Get(messageID); ok {
		if negative {
			return nil, notFoundErr("article %s", messageID)
		}
		return v, nil
	}

	v, err, _ := fs.articleSF.Do(messageID, func() (any, error) {
		var lastErr error
		allNotFound := true
		for _, idx := range fs.getServersForGroup("") {
			art, err := fs.services[idx].GetArticle(ctx, messageID)
			if err == nil {
				fs.articleCache.Set(messageID, art)
				return art, nil
			}
			if !IsNotFound(err) {
				allNotFound = false
			}
			lastErr = err
		}
		if allNotFound && lastErr != nil {
			fs.articleCache.SetNegative(messageID, nil)
			return nil, notFoundErr("article %s not found on any server", messageID)
		}
		if lastErr == nil {
			lastErr = unavailableErr("no servers configured")
		}
		return nil, lastErr
	})
	if err != nil {
		return nil, err
	}
	return v.(*Article), nil
}

// ---- GetThreads / GetThreadsPaginated ----------------------------------

func (fs *Federated) GetThreads(ctx context.Context, group string, count int64) ([]*Thread, error) {
	if cached, _, ok := fs.threadsCache.Get(group); ok {
		fs.markGroupActive(group)
		delta, err := fs.incremental.fetchNewArticles(ctx, group, fs.dispatchNewArticles, fs.prefetchGroupStatsIfNeeded)
		if err != nil {
			log.Printf("[FNAL-FEDERATED] incremental check for %s failed, returning cached: %v", group, err)
			return cached.threads, nil
		}
		if len(delta) == 0 {
			return cached.threads, nil
		}
		var newHWM int64 = cached.lastArticleNumber
		for _, e := range delta {
			if e.ArticleNumber > newHWM {
				newHWM = e.ArticleNumber
			}
		}
		merged := mergeIntoThreads(cached.threads, delta)
		fs.threadsCache.Set(group, &cachedThreads{threads: merged, lastArticleNumber: newHWM})
		return merged, nil
	}

	v, err, _ := fs.threadsSF.Do(group, func() (any, error) {
		var lastErr error
		for _, idx := range fs.getServersForGroup(group) {
			threads, err := fs.services[idx].GetThreads(ctx, group, int64(fs.cfg.MaxArticlesPerGroup))
			if err != nil {
				lastErr = err
				continue
			}
			last := fs.cachedLastArticleNumber(group)
			if last == 0 {
				fs.prefetchGroupStatsIfNeeded(group)
			}
			fs.incremental.updateHWM(group, last)
			fs.markGroupActive(group)
			fs.threadsCache.Set(group, &cachedThreads{threads: threads, lastArticleNumber: last})
			return threads, nil
		}
		if lastErr == nil {
			lastErr = unavailableErr("group %s not found on any server", group)
		}
		return nil, lastErr
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Thread), nil
}

func (fs *Federated) cachedLastArticleNumber(group string) int64 {
	if stats, _, ok := fs.groupStatsCache.Get(group); ok {
		return stats.LastArticleNumber
	}
	return 0
}

func (fs *Federated) GetThreadsPaginated(ctx context.Context, group string, page, perPage int) ([]*Thread, PaginationInfo, error) {
	threads, err := fs.GetThreads(ctx, group, int64(fs.cfg.MaxArticlesPerGroup))
	if err != nil {
		return nil, PaginationInfo{}, err
	}
	sorted := sortThreadsByDateDesc(threads)
	page_, info := paginateSlice(sorted, page, perPage)
	return page_, info, nil
}

// ---- GetThread / GetThreadPaginated -------------------------------------

func (fs *Federated) GetThread(ctx context.Context, group, rootMessageID string) (*Thread, error) {
	key := group + ":" + rootMessageID
	if cached, _, ok := fs.threadCache.Get(key); ok {
		fs.markGroupActive(group)
		delta, err := fs.incremental.fetchNewArticles(ctx, group, fs.dispatchNewArticles, fs.prefetchGroupStatsIfNeeded)
		if err != nil {
			log.Printf("[FNAL-FEDERATED] incremental check for %s failed, returning cached thread: %v", group, err)
			return cached.thread, nil
		}
		if len(delta) == 0 {
			return cached.thread, nil
		}
		merged := mergeIntoThread(cached.thread, delta)
		if merged.ArticleCount > cached.thread.ArticleCount {
			fs.threadCache.Set(key, &cachedThread{thread: merged})
		}
		return merged, nil
	}

	v, err, _ := fs.threadSF.Do(key, func() (any, error) {
		var lastErr error
		for _, idx := range fs.getServersForGroup(group) {
			thread, err := fs.services[idx].GetThread(ctx, group, rootMessageID)
			if err != nil {
				lastErr = err
				continue
			}
			fs.threadCache.Set(key, &cachedThread{thread: thread})
			fs.markGroupActive(group)
			return thread, nil
		}
		if lastErr == nil {
			lastErr = notFoundErr("thread %s not found in %s", rootMessageID, group)
		}
		return nil, lastErr
	})
	if err != nil {
		return nil, err
	}
	return v.(*Thread), nil
}

func (fs *Federated) GetThreadPaginated(ctx context.Context, group, rootMessageID string, page, perPage, collapseThreshold int) (*Thread, []FlatComment, PaginationInfo, error) {
	thread, err := fs.GetThread(ctx, group, rootMessageID)
	if err != nil {
		return nil, nil, PaginationInfo{}, err
	}

	comments := flatten(thread.Root, collapseThreshold)
	pageComments, info := paginateSlice(comments, page, perPage)

	needed := make([]string, 0, len(pageComments))
	bodies := make(map[string]*Article, len(pageComments))
	var bodiesMu sync.Mutex
	for _, c := range pageComments {
		if art, _, ok := fs.articleCache.Get(c.MessageID); ok {
			bodies[c.MessageID] = art
		} else {
			needed = append(needed, c.MessageID)
		}
	}

	var wg sync.WaitGroup
	for _, id := range needed {
		id := id
		wg.Add(1)
		fs.bodyPool.Submit(func() {
			defer wg.Done()
			art, err := fs.GetArticle(ctx, id)
			if err != nil {
				log.Printf("[FNAL-FEDERATED] failed to fetch body for %s: %v", id, err)
				return
			}
			bodiesMu.Lock()
			bodies[id] = art
			bodiesMu.Unlock()
		})
	}
	wg.Wait()

	for i := range pageComments {
		if art, ok := bodies[pageComments[i].MessageID]; ok {
			pageComments[i].Article = art
		}
	}

	return thread, pageComments, info, nil
}

// ---- GetGroups / GetGroupStats ------------------------------------------

func (fs *Federated) GetGroups(ctx context.Context) ([]GroupView, error) {
	const key = "groups"
	if groups, _, ok := fs.groupsCache.Get(key); ok {
		return groups, nil
	}

	v, err, _ := fs.groupsSF.Do(key, func() (any, error) {
		type serverResult struct {
			idx    int
			groups []GroupView
			err    error
		}
		results := make([]serverResult, len(fs.services))
		var g errgroup.Group
		for i, svc := range fs.services {
			i, svc := i, svc
			g.Go(func() error {
				groups, err := svc.GetGroups(ctx)
				results[i] = serverResult{idx: i, groups: groups, err: err}
				return nil // per-server failures are recorded, not propagated -- every server gets a chance
			})
		}
		g.Wait()

		seen := make(map[string]bool)
		groupToServers := make(map[string][]int)
		var merged []GroupView
		anySuccess := false
		for _, r := range results {
			if r.err != nil {
				log.Printf("[FNAL-FEDERATED] GetGroups failed on %s: %v", fs.services[r.idx].server.Name, r.err)
				continue
			}
			anySuccess = true
			for _, g := range r.groups {
				groupToServers[g.Name] = append(groupToServers[g.Name], r.idx)
				if !seen[g.Name] {
					seen[g.Name] = true
					merged = append(merged, g)
				}
			}
		}
		if !anySuccess {
			return nil, unavailableErr("failed to fetch groups from any server")
		}

		fs.groupServersMu.Lock()
		fs.groupServers = groupToServers
		fs.groupServersMu.Unlock()

		sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
		fs.groupsCache.Set(key, merged)
		return merged, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]GroupView), nil
}

func (fs *Federated) GetGroupStats(ctx context.Context, group string) (GroupStats, error) {
	if stats, _, ok := fs.groupStatsCache.Get(group); ok {
		return stats, nil
	}

	v, err, _ := fs.statsSF.Do(group, func() (any, error) {
		var lastErr error
		for _, idx := range fs.getServersForGroup(group) {
			stats, err := fs.services[idx].GetGroupStats(ctx, group)
			if err != nil {
				lastErr = err
				continue
			}
			fs.groupStatsCache.Set(group, stats)
			fs.incremental.updateHWM(group, stats.LastArticleNumber)
			return stats, nil
		}
		if lastErr == nil {
			lastErr = unavailableErr("group stats for %s not available", group)
		}
		return GroupStats{}, lastErr
	})
	if err != nil {
		return GroupStats{}, err
	}
	return v.(GroupStats), nil
}

// prefetchGroupStatsIfNeeded fires a background GetGroupStats so the next
// caller's HWM isn't zero; used as the incremental engine's bootstrap hook
// and as the fallback when GetThreads can't find a cached HWM.
func (fs *Federated) prefetchGroupStatsIfNeeded(group string) {
	if _, _, ok := fs.groupStatsCache.Get(group); ok {
		return
	}
	go func() {
		if _, err := fs.GetGroupStats(fs.baseCtx, group); err != nil {
			log.Printf("[FNAL-FEDERATED] background group-stats prefetch for %s failed: %v", group, err)
		}
	}()
}

// PrefetchGroupStats fires a background GetGroupStats for every group in
// groups -- the public fire-and-forget warm-up operation (spec.md §6).
func (fs *Federated) PrefetchGroupStats(groups []string) {
	for _, g := range groups {
		g := g
		go func() {
			if _, err := fs.GetGroupStats(fs.baseCtx, g); err != nil {
				log.Printf("[FNAL-FEDERATED] prefetch for %s failed: %v", g, err)
			}
		}()
	}
}

// ---- PostArticle / CheckArticleExists -----------------------------------

func (fs *Federated) PostArticle(ctx context.Context, group string, headers [][2]string, body string) error {
	var lastErr error
	for _, svc := range fs.services {
		if err := svc.PostArticle(ctx, group, headers, body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = unavailableErr("no servers configured to post to")
	}
	return lastErr
}

func (fs *Federated) CheckArticleExists(ctx context.Context, messageID string) (bool, error) {
	var lastErr error
	for _, svc := range fs.services {
		exists, err := svc.CheckArticleExists(ctx, messageID)
		if err != nil {
			lastErr = err
			continue
		}
		return exists, nil
	}
	if lastErr == nil {
		lastErr = unavailableErr("no servers configured")
	}
	return false, lastErr
}

// ---- incremental engine wiring -------------------------------------------

func (fs *Federated) dispatchNewArticles(ctx context.Context, group string, since int64) ([]OverviewEntry, error) {
	var lastErr error
	for _, idx := range fs.getServersForGroup(group) {
		entries, err := fs.services[idx].GetNewArticles(ctx, group, since)
		if err != nil {
			lastErr = err
			continue
		}
		return entries, nil
	}
	if lastErr == nil {
		lastErr = unavailableErr("no servers available for %s", group)
	}
	return nil, lastErr
}

// triggerIncrementalUpdate is the Activity-Proportional Refresher's tick
// handler: runs an incremental fetch and, if the group's thread list is
// cached, merges the delta in -- mirroring
// federated.rs::trigger_incremental_update (background path only touches
// the threads-list cache, not individual cached threads).
func (fs *Federated) triggerIncrementalUpdate(group string) {
	delta, err := fs.incremental.fetchNewArticles(fs.baseCtx, group, fs.dispatchNewArticles, fs.prefetchGroupStatsIfNeeded)
	if err != nil {
		log.Printf("[FNAL-REFRESH] incremental update for %s failed: %v", group, err)
		return
	}
	if len(delta) == 0 {
		return
	}
	cached, _, ok := fs.threadsCache.Get(group)
	if !ok {
		return
	}
	newHWM := cached.lastArticleNumber
	for _, e := range delta {
		if e.ArticleNumber > newHWM {
			newHWM = e.ArticleNumber
		}
	}
	merged := mergeIntoThreads(cached.threads, delta)
	fs.threadsCache.Set(group, &cachedThreads{threads: merged, lastArticleNumber: newHWM})
}
