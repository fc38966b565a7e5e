package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hoerbox/config"
	"hoerbox/db"
	"hoerbox/library"
	"hoerbox/logger"
	"hoerbox/repository"
	"hoerbox/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the backend API server",
	Long: `Starts the HTTP API serving the song catalog, playlists, media streams
and RFID status. The music directory is scanned on startup and watched for
changes.`,
	Run: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	initLogger(cfg)

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	songs := repository.NewMySQLSongRepository()
	playlists := repository.NewMySQLPlaylistRepository()
	rfidTags := repository.NewMySQLRFIDTagRepository()

	scanner := library.NewScanner(cfg.MusicDir, songs)
	if err := scanner.Sync(); err != nil {
		logger.Error("initial library scan failed", logger.ErrorField(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := scanner.Watch(ctx); err != nil {
			logger.Error("library watcher stopped", logger.ErrorField(err))
		}
	}()

	srv := server.NewServer(cfg.MusicDir, songs, playlists, rfidTags)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ListenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	case sig := <-quit:
		logger.Info("shutting down", logger.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", logger.ErrorField(err))
		}
	}
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
}
