package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/channelcache"
	"github.com/halvarsson/xvdrd/internal/channels"
	"github.com/halvarsson/xvdrd/internal/config"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Channel.CacheDir = t.TempDir()
	return cfg
}

func TestScheduler_StartRejectsBadSchedule(t *testing.T) {
	s := New(testConfig(t), channelcache.New(), channels.NewList(), nil)
	err := s.Start("not a cron expression")
	assert.Error(t, err)
}

func TestScheduler_RunNowDropsStaleEntriesAndSaves(t *testing.T) {
	cfg := testConfig(t)
	cache := channelcache.New()
	chList := channels.NewList()

	chList.Load([]channels.Channel{{UID: 42, Name: "Kept"}})
	cache.Put(42, &streaminfo.Bundle{})
	cache.Put(99, &streaminfo.Bundle{})
	require.Equal(t, 2, cache.Len())

	s := New(cfg, cache, chList, nil)
	s.RunNow()

	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get(99)
	assert.False(t, ok)
	_, ok = cache.Get(42)
	assert.True(t, ok)

	loaded := channelcache.New()
	require.NoError(t, loaded.Load(filepath.Join(cfg.Channel.CacheDir, CacheFileName)))
	assert.Equal(t, 1, loaded.Len())
}

func TestScheduler_StartAndStop(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg, channelcache.New(), channels.NewList(), nil)

	require.NoError(t, s.Start("@every 1h"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
