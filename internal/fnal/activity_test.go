package fnal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func refreshCfg() RefreshConfig {
	return RefreshConfig{
		MinPeriod:   1 * time.Second,
		MaxPeriod:   30 * time.Second,
		HighRPS:     10000,
		Window:      300 * time.Second,
		BucketCount: 60,
	}
}

func TestCalculateRefreshPeriod_IdleGetsMaxPeriod(t *testing.T) {
	cfg := refreshCfg()
	assert.Equal(t, cfg.MaxPeriod, calculateRefreshPeriod(0, cfg))
}

func TestCalculateRefreshPeriod_HighRPSGetsMinPeriod(t *testing.T) {
	cfg := refreshCfg()
	period := calculateRefreshPeriod(cfg.HighRPS*10, cfg)
	assert.Equal(t, cfg.MinPeriod, period)
}

func TestCalculateRefreshPeriod_MonotonicWithRPS(t *testing.T) {
	cfg := refreshCfg()
	low := calculateRefreshPeriod(1, cfg)
	mid := calculateRefreshPeriod(100, cfg)
	high := calculateRefreshPeriod(5000, cfg)
	assert.True(t, low > mid, "period should shrink as rps grows")
	assert.True(t, mid > high, "period should shrink as rps grows")
	assert.True(t, high >= cfg.MinPeriod)
	assert.True(t, low <= cfg.MaxPeriod)
}

func TestGroupActivity_RecordAndCount(t *testing.T) {
	a := newGroupActivity(60)
	window := 300 * time.Second

	a.recordRequest(0, window, 60)
	a.recordRequest(0, window, 60)
	a.recordRequest(1, window, 60)

	assert.EqualValues(t, 3, a.totalRequests)
}

func TestGroupActivity_AdvanceClearsOldBuckets(t *testing.T) {
	a := newGroupActivity(60)
	window := 300 * time.Second // granularity = 5s/bucket

	a.recordRequest(0, window, 60)
	assert.EqualValues(t, 1, a.totalRequests)

	// Jump forward far enough that every bucket has rolled over.
	a.advanceTo(10000, window, 60)
	assert.EqualValues(t, 0, a.totalRequests, "all buckets should have cleared after a full window elapsed")
}

func TestGroupActivity_IsInactiveWhenEmpty(t *testing.T) {
	a := newGroupActivity(60)
	window := 300 * time.Second
	assert.True(t, a.isInactive(0, window, 60))

	a.recordRequest(0, window, 60)
	assert.False(t, a.isInactive(0, window, 60))
}

func TestActivityTracker_RecordAndQuery(t *testing.T) {
	tr := newActivityTracker(refreshCfg())

	assert.False(t, tr.isActive("comp.lang.go"))
	tr.recordRequest("comp.lang.go")
	assert.True(t, tr.isActive("comp.lang.go"))
	assert.True(t, tr.requestsPerSecond("comp.lang.go") > 0)
	assert.Contains(t, tr.activeGroups(), "comp.lang.go")
}

func TestActivityTracker_SetRefreshTaskCancelsPrior(t *testing.T) {
	tr := newActivityTracker(refreshCfg())
	tr.recordRequest("comp.lang.go")

	firstCancelled := false
	tr.setRefreshTask("comp.lang.go", func() { firstCancelled = true })
	assert.True(t, tr.hasRefreshTask("comp.lang.go"))

	tr.setRefreshTask("comp.lang.go", func() {})
	assert.True(t, firstCancelled, "respawning a refresh task must cancel the previous one")
}
