package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hoerbox",
	Short: "hoerbox is a self-hosted audio player for kids with RFID tag control.",
	Long: `hoerbox serves a local music library over HTTP, runs a headless player
session against it, and reacts to RFID tags placed on the box: putting a tag
down starts the associated song, lifting it pauses playback.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
