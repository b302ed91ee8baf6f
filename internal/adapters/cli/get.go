package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mediamux/streamgate/internal/adapters/cli/tui"
	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
	"github.com/mediamux/streamgate/internal/ports"
)

// NewGetCmd creates the get subcommand
func NewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <media-url>",
		Short: "Download media to the local disk",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	app, err := GetApp()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	if !app.Extractor.IsAvailable() {
		return fmt.Errorf("yt-dlp not found, install it or set STREAMGATE_YTDLP")
	}

	pageURL, err := domain.CanonicalURL(args[0])
	if err != nil {
		return err
	}
	sel, err := domain.ParseSelector(formatFlag)
	if err != nil {
		return err
	}
	prof := platform.ForURL(pageURL)

	ctx := cmd.Context()

	// Resolve the title up front so the progress view has something
	// to show while yt-dlp works.
	item, err := app.Extractor.Extract(ctx, ports.ExtractRequest{URL: pageURL, Platform: prof})
	if err != nil {
		return err
	}

	req := ports.DownloadRequest{
		URL:      pageURL,
		Platform: prof,
		DestDir:  outputDirFlag,
		BaseName: item.ID,
	}
	switch {
	case sel.MP3:
		req.MP3 = true
		req.Bitrate = sel.MP3Bitrate
	case sel.Best():
		req.FormatExpr = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	default:
		req.FormatExpr = sel.FormatID()
	}

	if quietFlag {
		res, err := app.Extractor.Download(ctx, req, nil)
		if err != nil {
			return err
		}
		fmt.Println(res.FilePath)
		return nil
	}

	return runGetInteractive(ctx, app, item.Title, req)
}

// runGetInteractive drives the download under a bubbletea progress
// view. Pressing q cancels the underlying subprocess.
func runGetInteractive(ctx context.Context, app *App, title string, req ports.DownloadRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewDownloadModel(title))

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := app.Extractor.Download(ctx, req, func(percent float64, speed string, eta int) {
			p.Send(tui.ProgressMsg{Percent: percent, Speed: speed, ETA: eta})
		})
		if err != nil {
			p.Send(tui.FailMsg{Err: err})
			return
		}
		p.Send(tui.DoneMsg{Path: res.FilePath})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return err
	}

	model := final.(tui.DownloadModel)
	if model.Cancelled() {
		cancel()
		<-done
		fmt.Fprintln(os.Stderr, "cancelled")
		return nil
	}
	<-done
	return model.Err()
}
