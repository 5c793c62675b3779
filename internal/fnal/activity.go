package fnal

// Activity-Proportional Refresher: a circular-bucket request-rate estimator
// per group plus one long-running goroutine per active group that sleeps for
// a period computed from the group's request rate, then triggers an
// incremental update. Grounded directly on
// original_source/src/nntp/federated.rs's GroupActivity/ActivityTracker/
// calculate_refresh_period/spawn_group_refresh_task, translated from
// tokio::spawn+JoinHandle+abort to a goroutine+context.CancelFunc.

import (
	"context"
	"log"
	"math"
	"sync"
	"time"
)

// groupActivity is a circular buffer of request counts covering Window,
// one bucket per Window/BucketCount seconds.
type groupActivity struct {
	buckets        []uint32
	currentBucket  int
	bucketStartIdx int64
	totalRequests  int64
	cancel         context.CancelFunc
}

func newGroupActivity(bucketCount int) *groupActivity {
	return &groupActivity{buckets: make([]uint32, bucketCount)}
}

func (a *groupActivity) granularitySecs(window time.Duration, bucketCount int) int64 {
	return int64(window.Seconds()) / int64(bucketCount)
}

// advanceTo clears any buckets whose time window has elapsed since the last
// recorded event, mirroring GroupActivity::advance_to.
func (a *groupActivity) advanceTo(nowSecs int64, window time.Duration, bucketCount int) {
	granularity := a.granularitySecs(window, bucketCount)
	if granularity <= 0 {
		granularity = 1
	}
	nowIdx := nowSecs / granularity

	if a.bucketStartIdx == 0 && a.totalRequests == 0 {
		a.bucketStartIdx = nowIdx
		return
	}

	elapsed := nowIdx - a.bucketStartIdx
	if elapsed <= 0 {
		return
	}

	toClear := elapsed
	if toClear > int64(bucketCount) {
		toClear = int64(bucketCount)
	}
	for i := int64(1); i <= toClear; i++ {
		idx := (a.currentBucket + int(i)) % bucketCount
		a.totalRequests -= int64(a.buckets[idx])
		if a.totalRequests < 0 {
			a.totalRequests = 0
		}
		a.buckets[idx] = 0
	}
	a.currentBucket = (a.currentBucket + int(elapsed)) % bucketCount
	a.bucketStartIdx = nowIdx
}

func (a *groupActivity) recordRequest(nowSecs int64, window time.Duration, bucketCount int) {
	a.advanceTo(nowSecs, window, bucketCount)
	a.buckets[a.currentBucket]++
	a.totalRequests++
}

func (a *groupActivity) requestsPerSecond(nowSecs int64, window time.Duration, bucketCount int) float64 {
	a.advanceTo(nowSecs, window, bucketCount)
	return float64(a.totalRequests) / window.Seconds()
}

func (a *groupActivity) isInactive(nowSecs int64, window time.Duration, bucketCount int) bool {
	a.advanceTo(nowSecs, window, bucketCount)
	return a.totalRequests == 0
}

// activityTracker owns every group's rate estimator and refresh-task handle.
type activityTracker struct {
	cfg RefreshConfig

	mu     sync.Mutex
	groups map[string]*groupActivity
	epoch  time.Time
}

func newActivityTracker(cfg RefreshConfig) *activityTracker {
	return &activityTracker{cfg: cfg, groups: make(map[string]*groupActivity)}
}

func (t *activityTracker) nowSecs() int64 {
	if t.epoch.IsZero() {
		t.epoch = time.Now()
		return 0
	}
	return int64(time.Since(t.epoch).Seconds())
}

// recordRequest logs one request against group, creating its activity entry
// if this is the first one seen.
func (t *activityTracker) recordRequest(group string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowSecs()
	a, ok := t.groups[group]
	if !ok {
		a = newGroupActivity(t.cfg.BucketCount)
		t.groups[group] = a
	}
	a.recordRequest(now, t.cfg.Window, t.cfg.BucketCount)
}

func (t *activityTracker) requestsPerSecond(group string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.groups[group]
	if !ok {
		return 0
	}
	now := t.nowSecs()
	return a.requestsPerSecond(now, t.cfg.Window, t.cfg.BucketCount)
}

// activeGroups returns every group with at least one request in the current
// window, pruning (but not deleting refresh-task state for) groups that have
// gone idle.
func (t *activityTracker) activeGroups() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowSecs()
	var active []string
	for name, a := range t.groups {
		if !a.isInactive(now, t.cfg.Window, t.cfg.BucketCount) {
			active = append(active, name)
		}
	}
	return active
}

func (t *activityTracker) isActive(group string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.groups[group]
	if !ok {
		return false
	}
	return !a.isInactive(t.nowSecs(), t.cfg.Window, t.cfg.BucketCount)
}

// setRefreshTask cancels any previously running refresh task for group and
// records the new one's cancel func, so at most one is ever live.
func (t *activityTracker) setRefreshTask(group string, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.groups[group]
	if !ok {
		cancel()
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.cancel = cancel
}

func (t *activityTracker) hasRefreshTask(group string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.groups[group]
	return ok && a.cancel != nil
}

// calculateRefreshPeriod log10-interpolates between MaxPeriod (idle) and
// MinPeriod (>= HighRPS), per spec.md §4.5 step 2.
func calculateRefreshPeriod(rps float64, cfg RefreshConfig) time.Duration {
	if rps <= 0 {
		return cfg.MaxPeriod
	}
	logRPS := math.Log10(rps)
	logMin := math.Log10(1.0 / cfg.Window.Seconds())
	logMax := math.Log10(cfg.HighRPS)

	clamped := math.Max(logMin, math.Min(logMax, logRPS))
	ratio := (clamped - logMin) / (logMax - logMin)

	periodSecs := cfg.MaxPeriod.Seconds() - ratio*(cfg.MaxPeriod.Seconds()-cfg.MinPeriod.Seconds())
	if periodSecs < cfg.MinPeriod.Seconds() {
		periodSecs = cfg.MinPeriod.Seconds()
	}
	return time.Duration(periodSecs * float64(time.Second))
}

// markGroupActive records one request against group and, if no refresh task
// is currently running for it, spawns one. refresh is called on every tick
// (and should itself be idempotent/cheap on a no-op delta).
func (fs *Federated) markGroupActive(group string) {
	fs.activity.recordRequest(group)
	if fs.activity.hasRefreshTask(group) {
		return
	}
	fs.spawnGroupRefreshTask(group)
}

func (fs *Federated) spawnGroupRefreshTask(group string) {
	ctx, cancel := context.WithCancel(fs.baseCtx)
	fs.activity.setRefreshTask(group, cancel)

	go func() {
		for {
			rps := fs.activity.requestsPerSecond(group)
			period := calculateRefreshPeriod(rps, fs.cfg.Refresh)

			select {
			case <-time.After(period):
			case <-ctx.Done():
				return
			}

			// Decide and clear the task handle under one lock so the next
			// request after an idle exit sees no running task and respawns.
			t := fs.activity
			t.mu.Lock()
			if ctx.Err() != nil { // replaced by a newer task
				t.mu.Unlock()
				return
			}
			a, ok := t.groups[group]
			idle := !ok || a.isInactive(t.nowSecs(), t.cfg.Window, t.cfg.BucketCount)
			if idle && ok {
				a.cancel = nil
			}
			t.mu.Unlock()
			if idle {
				log.Printf("[FNAL-REFRESH] group %s inactive, stopping refresh task", group)
				cancel()
				return
			}

			fs.triggerIncrementalUpdate(group)
		}
	}()
}
