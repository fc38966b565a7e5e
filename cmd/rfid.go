package cmd

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"hoerbox/cache"
	"hoerbox/config"
	"hoerbox/core/rfid"
	"hoerbox/db"
	"hoerbox/logger"
	"hoerbox/model"
	"hoerbox/repository"
)

var rfidTagFile string

var rfidCmd = &cobra.Command{
	Use:   "rfid",
	Short: "Run the RFID reader service",
	Long: `Runs the reader-side service: samples the tag reader, debounces flaky
reads and publishes presence events the player session picks up. Without
reader hardware a text file stands in for the reader; whatever UID the file
contains counts as the tag currently on the box.`,
	Run: runRFID,
}

func init() {
	rfidCmd.Flags().StringVar(&rfidTagFile, "tag-file", "",
		"path of the simulated tag file (default <data-dir>/tag)")
	rootCmd.AddCommand(rfidCmd)
}

// cachePublisher adapts the event cache to the reader service.
type cachePublisher struct{}

func (cachePublisher) Publish(ctx context.Context, event string, data *model.RFIDEventData) error {
	return cache.StoreRFIDEvent(ctx, event, data)
}

func runRFID(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	initLogger(cfg)

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	tagFile := rfidTagFile
	if tagFile == "" {
		tagFile = filepath.Join(cfg.DataDir, "tag")
	}

	svc := rfid.NewService(
		&rfid.FileReader{Path: tagFile},
		cachePublisher{},
		repository.NewMySQLRFIDTagRepository(),
		repository.NewMySQLSongRepository(),
		cfg.RFIDReadInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("RFID reader service running",
		logger.String("tag_file", tagFile),
		logger.Duration("read_interval", cfg.RFIDReadInterval))

	svc.Run(ctx)
	logger.Info("RFID reader service stopped")
}
