package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halvarsson/xvdrd/internal/channelcache"
	"github.com/halvarsson/xvdrd/internal/channels"
	"github.com/halvarsson/xvdrd/internal/config"
	"github.com/halvarsson/xvdrd/internal/dispatch"
	"github.com/halvarsson/xvdrd/internal/livestream"
	"github.com/halvarsson/xvdrd/internal/metadata"
	"github.com/halvarsson/xvdrd/internal/observability"
	"github.com/halvarsson/xvdrd/internal/pvrserver"
	"github.com/halvarsson/xvdrd/internal/scheduler"
	"github.com/halvarsson/xvdrd/internal/version"
)

var channelsConfPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the xvdrd streaming server",
	Long: `Start the xvdrd TCP server, accepting xvdr-protocol client connections
(Kodi's pvr.vdr.vnsi and compatible front ends): channel/EPG browsing, timer
and recording management, and live/time-shift/recording stream delivery.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&channelsConfPath, "channels", "", "path to a VDR-style channels.conf file to load at startup")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := observability.NewLogger(cfg.Logging)
	slog.SetDefault(log)

	log.Info("starting xvdrd",
		slog.String("version", version.Version),
		slog.String("address", cfg.Server.Address()),
	)

	db, err := metadata.New(cfg.Database, log, nil)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	store := metadata.NewStore(db)

	chList := channels.NewList()
	if channelsConfPath != "" {
		loaded, err := channels.ParseConfFile(channelsConfPath)
		if err != nil {
			return fmt.Errorf("loading channels file: %w", err)
		}
		chList.Load(loaded)
		log.Info("loaded channel list", slog.Int("count", len(loaded)), slog.String("path", channelsConfPath))
	}

	cache := channelcache.New()
	cachePath := filepath.Join(cfg.Channel.CacheDir, scheduler.CacheFileName)
	if err := os.MkdirAll(cfg.Channel.CacheDir, 0o755); err != nil {
		return fmt.Errorf("creating channel cache dir: %w", err)
	}
	if err := cache.Load(cachePath); err != nil {
		log.Warn("failed to load channel cache, starting empty", slog.String("error", err.Error()))
	}

	sched := scheduler.New(cfg, cache, chList, log)
	sched.RunNow()
	if err := sched.Start(cfg.Scheduler.ChannelCacheGCCron); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	disp := dispatch.New(cfg, chList, store, cache, noDevicePicker{}, "xvdrd", version.Version, log)
	server := pvrserver.New(cfg, disp, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	err = server.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	sched.Stop(shutdownCtx)

	return err
}

// noDevicePicker is the default tuner collaborator when no real device
// backend is wired in: spec.md documents device/tuner access as an external
// collaborator the embedding layer supplies, and this build has no DVB/CAM
// driver integration, so every pick fails with ErrAllTunersBusy rather than
// silently no-opping.
type noDevicePicker struct{}

func (noDevicePicker) PickDevice(uint32, int) (livestream.Device, error) {
	return nil, livestream.ErrAllTunersBusy
}
