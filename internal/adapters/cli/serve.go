package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mediamux/streamgate/internal/adapters/httpapi"
)

var listenFlag string

// NewServeCmd creates the serve subcommand
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := GetApp()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	if !app.Extractor.IsAvailable() {
		return fmt.Errorf("yt-dlp not found, install it or set STREAMGATE_YTDLP")
	}

	if listenFlag != "" {
		app.Config.Server.Listen = listenFlag
	}

	signer := httpapi.NewSigner(app.Config.Server.SecretKey)
	srv := httpapi.NewServer(app.Resolver, app.Tasks, app.Muxer, app.Extractor, signer, app.Config)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("listening on %s\n", app.Config.Server.Listen)
	return srv.Run(ctx)
}
