// Package scheduler runs the background housekeeping cron job: periodic
// channel-cache garbage collection and persistence, grounded on tvarr's
// internal/scheduler (6-field robfig/cron parser, panic-recovering job
// chain) but scaled down to the one job this server actually needs instead
// of a database-backed multi-source schedule sync.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/halvarsson/xvdrd/internal/channelcache"
	"github.com/halvarsson/xvdrd/internal/channels"
	"github.com/halvarsson/xvdrd/internal/config"
)

// CacheFileName is the channel cache's on-disk file name under
// config.ChannelConfig.CacheDir, matching internal/channelcache's own "V2"
// format expectations. Exported so the embedding layer's startup code loads
// the cache from the same path this scheduler later saves it to.
const CacheFileName = "channelcache.dat"

// Scheduler owns the cron-driven channel-cache GC/save cycle: drop cache
// entries for channels no longer in the host list, then persist the result,
// the periodic half of spec.md's "garbage collect on load" contract (this
// job is the ongoing maintenance; the one-time load happens at startup
// before the server starts accepting connections).
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	parser cron.Parser

	cache     *channelcache.Cache
	chList    *channels.List
	cachePath string
	log       *slog.Logger

	entryID cron.EntryID
}

// New returns a Scheduler wired to the shared channel cache and channel
// list. It does not start the cron job; call Start for that.
func New(cfg *config.Config, cache *channelcache.Cache, chList *channels.List, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronScheduler := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Scheduler{
		cron:      cronScheduler,
		parser:    parser,
		cache:     cache,
		chList:    chList,
		cachePath: filepath.Join(cfg.Channel.CacheDir, CacheFileName),
		log:       log,
	}
}

// Start registers the GC/save job against cfg's cron schedule and starts
// the cron goroutine. Returns an error if the schedule fails to parse.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.parser.Parse(schedule); err != nil {
		return fmt.Errorf("parsing channel cache gc schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(schedule, s.runGCAndSave)
	if err != nil {
		return fmt.Errorf("scheduling channel cache gc: %w", err)
	}
	s.entryID = entryID
	s.cron.Start()

	s.log.Info("scheduler started", slog.String("channel_cache_gc_cron", schedule))
	return nil
}

// Stop stops the cron scheduler, waiting for a job in progress to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// runGCAndSave drops cache entries for channels no longer in the host list
// and persists the result, the same two-step internal/channelcache.Cache.GC
// + Cache.Save sequence spec.md's E6 testable property exercises.
func (s *Scheduler) runGCAndSave() {
	before := s.cache.Len()
	s.cache.GC(func(uid uint32) bool {
		_, ok := s.chList.ByUID(uid)
		return ok
	})
	after := s.cache.Len()

	if err := s.cache.Save(s.cachePath); err != nil {
		s.log.Error("failed to save channel cache", slog.String("error", err.Error()))
		return
	}

	s.log.Debug("channel cache gc complete",
		slog.Int("before", before),
		slog.Int("after", after),
		slog.String("path", s.cachePath))
}

// RunNow runs the GC/save job immediately, independent of the cron
// schedule. Used at startup right after the initial cache load, since a
// freshly loaded cache may still reference channels the host has since
// dropped.
func (s *Scheduler) RunNow() {
	s.runGCAndSave()
}
