package fnal

// Incremental Update Engine: debounced, coalesced, high-water-mark-driven
// delta fetch and merge, invoked synchronously on every threads/thread
// cache hit (see federated.go) and from the Activity-Proportional
// Refresher's background tick. Grounded on
// original_source/src/nntp/federated.rs's should_check_incremental /
// get_new_articles_coalesced / trigger_incremental_update and spec.md §4.4.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// incrementalEngine owns the per-group HWM, debounce timestamps, and
// single-flight coalescing for delta fetches.
type incrementalEngine struct {
	cfg IncrementalConfig

	hwmMu sync.Mutex
	hwm   map[string]int64

	checkMu   sync.Mutex
	lastCheck map[string]time.Time

	group singleflight.Group
}

func newIncrementalEngine(cfg IncrementalConfig) *incrementalEngine {
	return &incrementalEngine{
		cfg:       cfg,
		hwm:       make(map[string]int64),
		lastCheck: make(map[string]time.Time),
	}
}

func (e *incrementalEngine) getHWM(group string) int64 {
	e.hwmMu.Lock()
	defer e.hwmMu.Unlock()
	return e.hwm[group]
}

// updateHWM advances the group's high-water mark; HWM is monotonically
// non-decreasing (spec.md §3's invariant and §8's law 1).
func (e *incrementalEngine) updateHWM(group string, newHWM int64) {
	e.hwmMu.Lock()
	defer e.hwmMu.Unlock()
	if newHWM > e.hwm[group] {
		e.hwm[group] = newHWM
	}
}

// shouldCheck reports whether enough time has passed since the last
// incremental check for group, and if so stamps "now" as the new last-check
// time. At most one true per DebounceMS window per group.
func (e *incrementalEngine) shouldCheck(group string) bool {
	now := time.Now()
	debounce := time.Duration(e.cfg.DebounceMS) * time.Millisecond

	e.checkMu.Lock()
	defer e.checkMu.Unlock()
	if last, ok := e.lastCheck[group]; ok && now.Sub(last) < debounce {
		return false
	}
	e.lastCheck[group] = now
	return true
}

// fetchNewArticles is the engine's entry point: debounce, HWM bootstrap,
// single-flight coalesce, fetch, HWM advance. dispatch is how the engine
// reaches an upstream -- supplied by Federated so the engine stays ignorant
// of server dispatch/fallback.
func (e *incrementalEngine) fetchNewArticles(ctx context.Context, group string, dispatch func(ctx context.Context, group string, since int64) ([]OverviewEntry, error), bootstrapHWM func(group string)) ([]OverviewEntry, error) {
	if !e.shouldCheck(group) {
		return nil, nil
	}

	hwm := e.getHWM(group)
	if hwm == 0 {
		// No HWM yet: fire-and-forget a stats fetch to populate it, and
		// return an empty delta rather than blocking (spec.md §4.4 "HWM
		// bootstrap").
		go bootstrapHWM(group)
		return nil, nil
	}

	v, err, _ := e.group.Do(group, func() (any, error) {
		entries, err := dispatch(ctx, group, hwm)
		if err != nil {
			return nil, err
		}
		var maxNum int64
		for _, entry := range entries {
			if entry.ArticleNumber > maxNum {
				maxNum = entry.ArticleNumber
			}
		}
		if maxNum > 0 {
			e.updateHWM(group, maxNum)
		}
		return entries, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fnal: incremental fetch for %s: %w", group, err)
	}
	if v == nil {
		return nil, nil
	}
	return v.([]OverviewEntry), nil
}

// mergeIntoThreads implements spec.md §4.4's "Merge into thread list": each
// delta entry becomes a leaf under the last referenced message-id already
// present in the tree, or a new root thread (prepended, newest-first) if no
// ancestor is found. Every existing Thread and its ThreadNode tree is cloned
// before anything is attached or counted, so a pointer to the old cached
// threads held by a concurrent reader never observes these writes
// (Thread/ThreadNode are "replaced, not mutated" per §3).
func mergeIntoThreads(threads []*Thread, delta []OverviewEntry) []*Thread {
	if len(delta) == 0 {
		return threads
	}

	merged := make([]*Thread, len(threads))
	for i, t := range threads {
		merged[i] = &Thread{
			Subject:      t.Subject,
			RootID:       t.RootID,
			ArticleCount: t.ArticleCount,
			LastPostDate: t.LastPostDate,
			Root:         cloneTree(t.Root),
		}
	}

	nodes := make(map[string]*ThreadNode)
	threadOf := make(map[string]*Thread)
	for _, t := range merged {
		for _, n := range collectNodes(t.Root) {
			nodes[n.MessageID] = n
			threadOf[n.MessageID] = t
		}
	}

	ordered := make([]OverviewEntry, len(delta))
	copy(ordered, delta)
	sortEntriesByArticleNum(ordered)

	for _, e := range ordered {
		if _, dup := nodes[e.MessageID]; dup {
			continue
		}
		node := &ThreadNode{MessageID: e.MessageID, Article: &Article{
			MessageID:  e.MessageID,
			Subject:    e.Subject,
			FromHeader: e.FromHeader,
			DateSent:   e.Date,
		}}

		parent := findKnownAncestor(e.References, nodes)
		if parent == "" {
			newThread := &Thread{
				Subject:      e.Subject,
				RootID:       e.MessageID,
				ArticleCount: 1,
				Root:         node,
				LastPostDate: e.Date,
			}
			merged = append([]*Thread{newThread}, merged...)
			nodes[e.MessageID] = node
			threadOf[e.MessageID] = newThread
			continue
		}

		nodes[parent].Children = append(nodes[parent].Children, node)
		nodes[e.MessageID] = node
		t := threadOf[parent]
		threadOf[e.MessageID] = t
		t.ArticleCount++
		if dateAfter(e.Date, t.LastPostDate) {
			t.LastPostDate = e.Date
		}
	}

	return merged
}

// mergeIntoThread implements spec.md §4.4's "Merge into single thread": same
// ancestor rule restricted to one thread's own nodes; entries with no
// in-thread ancestor are ignored (they belong to a different thread in the
// group).
func mergeIntoThread(t *Thread, delta []OverviewEntry) *Thread {
	if len(delta) == 0 {
		return t
	}

	clone := &Thread{
		Subject:      t.Subject,
		RootID:       t.RootID,
		ArticleCount: t.ArticleCount,
		LastPostDate: t.LastPostDate,
		Root:         cloneTree(t.Root),
	}

	nodes := make(map[string]*ThreadNode)
	for _, n := range collectNodes(clone.Root) {
		nodes[n.MessageID] = n
	}

	ordered := make([]OverviewEntry, len(delta))
	copy(ordered, delta)
	sortEntriesByArticleNum(ordered)

	for _, e := range ordered {
		if _, dup := nodes[e.MessageID]; dup {
			continue
		}
		parent := findKnownAncestor(e.References, nodes)
		if parent == "" {
			continue // not part of this thread
		}
		node := &ThreadNode{MessageID: e.MessageID, Article: &Article{
			MessageID:  e.MessageID,
			Subject:    e.Subject,
			FromHeader: e.FromHeader,
			DateSent:   e.Date,
		}}
		nodes[parent].Children = append(nodes[parent].Children, node)
		nodes[e.MessageID] = node
		clone.ArticleCount++
		if dateAfter(e.Date, clone.LastPostDate) {
			clone.LastPostDate = e.Date
		}
	}

	return clone
}

// collectNodes flattens a tree into its constituent nodes, depth-first.
func collectNodes(n *ThreadNode) []*ThreadNode {
	if n == nil {
		return nil
	}
	out := []*ThreadNode{n}
	for _, c := range n.Children {
		out = append(out, collectNodes(c)...)
	}
	return out
}
