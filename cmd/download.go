package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/opendata-tw/patentmirror/internal/discover"
	"github.com/opendata-tw/patentmirror/internal/mirror"
	"github.com/spf13/cobra"
)

func newDownloadCmd() *cobra.Command {
	var year string
	var output string
	var pageURL string
	var workers int

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Discover and mirror a year's patent XML archives",
		Long: `Discovers the FTPS download links for the selected publication year on the
TIPO open-data page and mirrors each one locally with lftp.

Each link is mirrored into <output>/<last-path-segment>/ and verified by
comparing the remote and local subdirectory counts. Already-downloaded files
are kept; lftp only transfers newer or missing files.`,
		Example: `  # Mirror publication year 114 into ./114
  patentmirror download --year 114

  # Mirror into a custom directory with 4 concurrent transfers
  patentmirror download --year 114 --output /data/tipo/114 --workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.Atoi(year); err != nil || year == "" {
				return fmt.Errorf("--year must be a numeric year identifier, got %q", year)
			}

			root := output
			if root == "" {
				root = year
			}

			if err := os.MkdirAll(root, 0755); err != nil {
				return fmt.Errorf("failed to create download root: %w", err)
			}

			closeLog, err := teeLogToFile(filepath.Join(root, year+"-download.log"))
			if err != nil {
				return err
			}
			defer closeLog()

			client := discover.NewClient(pageURL)
			links, err := client.FTPSLinks(cmd.Context(), year)
			if err != nil {
				return err
			}

			m, err := mirror.New(root, workers)
			if err != nil {
				return err
			}

			summary, err := m.MirrorAll(cmd.Context(), links)
			if err != nil {
				return err
			}

			fmt.Printf("\nDownload complete!\n")
			fmt.Printf("  Links processed: %d\n", summary.Total)
			fmt.Printf("  Mirrored:        %d\n", summary.Mirrored)
			fmt.Printf("  Failed:          %d\n", summary.Failed)
			if summary.TimedOut > 0 {
				fmt.Printf("  Timed out:       %d\n", summary.TimedOut)
			}
			if summary.Skipped > 0 {
				fmt.Printf("  Skipped:         %d\n", summary.Skipped)
			}
			fmt.Printf("\nNext steps:\n")
			fmt.Printf("  patentmirror extract --root %s\n", root)

			return nil
		},
	}

	cmd.Flags().StringVar(&year, "year", "", "Publication year to select on the TIPO site, e.g. 114 (required)")
	cmd.Flags().StringVar(&output, "output", "", "Download root directory (default: ./<year>)")
	cmd.Flags().StringVar(&pageURL, "page-url", "", "Open-data detail page URL (default: built-in TIPO URL, or TIPO_OPDATA_URL)")
	cmd.Flags().IntVar(&workers, "workers", 8, "Concurrent lftp transfers")

	_ = cmd.MarkFlagRequired("year")
	return cmd
}

// teeLogToFile duplicates slog output into a per-run log file inside the
// download root, restoring the default logger on close.
func teeLogToFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, f), nil)))
	slog.Info("Logging to file", "path", path)

	return func() {
		slog.SetDefault(previous)
		if err := f.Close(); err != nil {
			slog.Error("Failed to close log file", "path", path, "error", err)
		}
	}, nil
}
