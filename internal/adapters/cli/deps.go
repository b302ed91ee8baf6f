package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewDepsCmd creates the deps subcommand
func NewDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Show external tool status (yt-dlp, ffmpeg)",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show dependency status",
		RunE:  runDepsStatus,
	}

	cmd.AddCommand(statusCmd)
	return cmd
}

func runDepsStatus(cmd *cobra.Command, args []string) error {
	app, err := GetApp()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Dependency Status:")
	fmt.Println()

	// yt-dlp
	if app.Extractor.IsAvailable() {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		version, verr := app.Extractor.Version(ctx)
		cancel()
		if verr != nil {
			version = "unknown version"
		}
		fmt.Printf("  yt-dlp:   installed (%s, %s)\n", version, app.Extractor.BinaryPath())
	} else {
		fmt.Println("  yt-dlp:   not found")
	}

	// ffmpeg
	if app.Muxer.IsAvailable() {
		fmt.Printf("  ffmpeg:   installed (%s)\n", app.Muxer.BinaryPath())
	} else {
		fmt.Println("  ffmpeg:   not found (merge and mp3 delivery disabled)")
	}
	fmt.Println()

	return nil
}
