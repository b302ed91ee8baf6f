package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputDirFlag string
	formatFlag    string
	quietFlag     bool
)

// Version is stamped at build time.
var Version = "dev"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "streamgate [media-url]",
		Short: "Resolve and download media from video platforms",
		Long: `streamgate resolves media pages into direct stream URLs and
downloads them through an external extractor.

Provide a URL to download it directly, or run 'streamgate serve' to
start the HTTP API.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRoot,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputDirFlag, "output-dir", "o", ".", "Directory for downloaded files")
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "", "Format selector: best, a format id, or mp3_<bitrate>")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output")

	// Add subcommands
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewGetCmd())
	rootCmd.AddCommand(NewDepsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	return runGet(cmd, args)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("streamgate %s\n", Version)
		},
	}
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
