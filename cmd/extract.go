package cmd

import (
	"fmt"
	"log/slog"

	"github.com/opendata-tw/patentmirror/internal/extract"
	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var root string
	var output string
	var datasets []string
	var fieldMapPath string
	var parquet bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract CSV metadata from downloaded patent XML",
		Long: `Walks every dataset subdirectory under the root path, parses each patent XML
document and writes <dataset>_metadata.csv with one row per record.

Multi-valued fields (classification codes, image references) are joined with
";". Malformed XML files are logged and skipped without aborting the dataset.
A run report is written as extract_report.yaml in the output directory.`,
		Example: `  # Extract metadata for everything downloaded for year 114
  patentmirror extract --root ./114

  # Only two datasets, CSVs into a separate directory
  patentmirror extract --root ./114 --datasets A,B --output ./114-csv

  # Also write parquet alongside each CSV
  patentmirror extract --root ./114 --parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := extract.Options{
				OutputDir: output,
				Datasets:  datasets,
				Parquet:   parquet,
			}

			if fieldMapPath != "" {
				fm, err := extract.LoadFieldMap(fieldMapPath)
				if err != nil {
					return err
				}
				opts.FieldMap = &fm
			}

			extractor, err := extract.New(root, opts)
			if err != nil {
				return err
			}

			summary, err := extractor.Run(cmd.Context())
			if err != nil {
				return err
			}

			reportPath, err := extract.WriteReport(summary)
			if err != nil {
				return err
			}
			slog.Info("Wrote run report", "path", reportPath)

			fmt.Printf("\nExtraction complete!\n")
			for _, ds := range summary.Datasets {
				fmt.Printf("  %s: %d rows (%d skipped) -> %s\n", ds.Name, ds.RowsWritten, ds.FilesSkipped, ds.CSVPath)
			}
			fmt.Printf("\nRun report: %s\n", reportPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Root directory of dataset subdirectories (required)")
	cmd.Flags().StringVar(&output, "output", "", "Output directory for CSVs (default: the root directory)")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Dataset subdirectories to include (default: all)")
	cmd.Flags().StringVar(&fieldMapPath, "field-map", "", "YAML field map overriding the built-in TIPO schema")
	cmd.Flags().BoolVar(&parquet, "parquet", false, "Also write <dataset>_metadata.parquet per dataset")

	_ = cmd.MarkFlagRequired("root")
	return cmd
}
