package cmd

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hoerbox/client"
	"hoerbox/config"
	"hoerbox/core/engine"
	"hoerbox/core/playlistsel"
	"hoerbox/core/rfid"
	"hoerbox/core/session"
	"hoerbox/core/timer"
	"hoerbox/logger"
)

var playerSleepAfter time.Duration

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Run the headless playback session",
	Long: `Runs the playback session against the backend API: plays the music
library through the local speaker and polls the RFID status endpoint so tags
placed on the box control playback.`,
	Run: runPlayer,
}

func init() {
	playerCmd.Flags().DurationVar(&playerSleepAfter, "sleep-after", 0,
		"pause playback after this duration, e.g. 45m (0 disables)")
	rootCmd.AddCommand(playerCmd)
}

func runPlayer(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	initLogger(cfg)

	api := client.New(cfg.APIBaseURL)

	eng := engine.NewBeepEngine(func(filename string) (io.ReadCloser, error) {
		return api.OpenMedia(filename)
	})
	defer eng.Close()

	ctrl := session.NewController(eng)
	eng.SetOnTrackEnd(ctrl.OnTrackEnded)

	prefs := session.NewPrefsStore(cfg.DataDir)
	stored := prefs.Load()
	ctrl.RestoreVolume(stored.Volume, stored.PreviousVolume)

	ctrl.SetOnChange(func(snap session.Snapshot) {
		title := ""
		if snap.Track != nil {
			title = snap.Track.Title
		}
		logger.Info("session state changed",
			logger.String("state", snap.State.String()),
			logger.Int("index", snap.Index),
			logger.String("track", title),
			logger.Float64("volume", snap.Volume))
		if snap.Err != "" {
			logger.Warn("playback error", logger.String("message", snap.Err))
		}

		if err := prefs.Save(session.Prefs{
			Volume:         snap.Volume,
			PreviousVolume: ctrl.PreMuteVolume(),
			Theme:          stored.Theme,
		}); err != nil {
			logger.Warn("failed to persist preferences", logger.ErrorField(err))
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	selector := playlistsel.New(api, ctrl)
	if err := selector.Refresh(ctx); err != nil {
		logger.Warn("initial catalog load failed, will retry via polling", logger.ErrorField(err))
	}

	poller := rfid.NewPoller(api, ctrl, selector, cfg.RFIDPollInterval)
	poller.SetOnConnectivity(func(up bool) {
		logger.Info("backend connectivity changed", logger.Bool("up", up))
	})
	go poller.Run(ctx)

	sleep := timer.NewSleep(ctrl)
	sleep.SetOnTick(func(remaining time.Duration) {
		logger.Debug("sleep timer tick", logger.Duration("remaining", remaining))
	})
	if playerSleepAfter > 0 {
		sleep.Arm(playerSleepAfter)
	}
	go sleep.Run(ctx)

	logger.Info("player session running",
		logger.String("backend", cfg.APIBaseURL),
		logger.Duration("rfid_poll_interval", cfg.RFIDPollInterval))

	<-ctx.Done()
	logger.Info("player shutting down")
}
