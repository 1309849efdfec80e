package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patentmirror",
		Short: "Mirror TIPO patent open-data publications and extract CSV metadata",
		Long: `Patentmirror retrieves publicly published patent XML from the TIPO
open-data FTPS mirror and converts the records into tabular CSV metadata.

The download command discovers the per-year FTPS links on the open-data page
and mirrors each one locally with lftp. The extract command walks a directory
tree of downloaded XML documents and writes one metadata CSV per dataset.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newExtractCmd())

	return cmd
}
