package fnal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateRequiresAtLeastOneServer(t *testing.T) {
	err := Config{}.validate()
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindConfigError, fe.Kind)
}

func TestConfig_ValidateRequiresHostAndPort(t *testing.T) {
	err := Config{Servers: []ServerConfig{{Host: "", Port: 0}}}.validate()
	assert.Error(t, err)

	err = Config{Servers: []ServerConfig{{Host: "news.example.org", Port: 0}}}.validate()
	assert.Error(t, err)

	err = Config{Servers: []ServerConfig{{Host: "news.example.org", Port: 119}}}.validate()
	assert.NoError(t, err)
}

func TestConfig_WithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{Servers: []ServerConfig{{Host: "h", Port: 119}}}.withDefaults()

	assert.Equal(t, defaultWorkerCount, cfg.WorkerCountPerServer)
	assert.Equal(t, defaultDebounceMS, cfg.Incremental.DebounceMS)
	assert.Equal(t, defaultMinRefreshPeriod, cfg.Refresh.MinPeriod)
	assert.Equal(t, defaultMaxRefreshPeriod, cfg.Refresh.MaxPeriod)
	assert.Equal(t, defaultRefreshBuckets, cfg.Refresh.BucketCount)
	assert.True(t, cfg.Cache.MaxArticles > 0)
	assert.Equal(t, cfg.Cache.MaxThreadLists*threadCacheMultiplier, cfg.Cache.MaxThreadsSize)
	assert.True(t, cfg.Cache.NegativeMaxSize > 0)
}

func TestConfig_WithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Servers:              []ServerConfig{{Host: "h", Port: 119}},
		WorkerCountPerServer: 9,
		Refresh:              RefreshConfig{MinPeriod: 2 * time.Second},
	}.withDefaults()

	assert.Equal(t, 9, cfg.WorkerCountPerServer)
	assert.Equal(t, 2*time.Second, cfg.Refresh.MinPeriod)
}
