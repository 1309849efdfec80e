package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Options configures an extraction run.
type Options struct {
	// OutputDir receives the per-dataset CSV files. Defaults to the root
	// directory itself, alongside the dataset subdirectories.
	OutputDir string

	// Datasets restricts the run to the named subdirectories. Empty means all.
	Datasets []string

	// FieldMap overrides the built-in TIPO field map.
	FieldMap *FieldMap

	// Parquet additionally writes <dataset>_metadata.parquet next to each CSV.
	Parquet bool
}

// DatasetResult summarizes one dataset directory.
type DatasetResult struct {
	Name         string `yaml:"name"`
	FilesSeen    int    `yaml:"files_seen"`
	RowsWritten  int    `yaml:"rows_written"`
	FilesSkipped int    `yaml:"files_skipped"`
	CSVPath      string `yaml:"csv_path"`
}

// Summary aggregates an extraction run across all datasets.
type Summary struct {
	Root      string          `yaml:"root"`
	OutputDir string          `yaml:"output_dir"`
	Columns   []string        `yaml:"columns"`
	Separator string          `yaml:"separator"`
	Datasets  []DatasetResult `yaml:"datasets"`
}

// Extractor walks a root directory of dataset subdirectories of patent XML
// files and writes one metadata CSV per dataset.
type Extractor struct {
	root     string
	opts     Options
	fieldMap FieldMap
}

// New validates the root path and options and returns an extractor ready to
// run. A missing or non-directory root is reported as ErrRootNotFound.
func New(root string, opts Options) (*Extractor, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	fm := DefaultFieldMap()
	if opts.FieldMap != nil {
		fm = *opts.FieldMap
	}
	if err := fm.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field map: %w", err)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = root
	}

	return &Extractor{
		root:     root,
		opts:     opts,
		fieldMap: fm,
	}, nil
}

// Run processes every qualifying dataset and returns the run summary. Per-file
// parse failures are logged and skipped; zero qualifying datasets is fatal.
func (e *Extractor) Run(ctx context.Context) (*Summary, error) {
	datasets, err := e.datasetDirs()
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoDatasets, e.root)
	}

	if err := os.MkdirAll(e.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &Summary{
		Root:      e.root,
		OutputDir: e.opts.OutputDir,
		Columns:   e.fieldMap.Columns(),
		Separator: ValueSeparator,
	}

	for _, name := range datasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := e.processDataset(name)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		summary.Datasets = append(summary.Datasets, *result)
	}

	return summary, nil
}

// datasetDirs lists the immediate subdirectories of the root in lexicographic
// order, applying the dataset name filter.
func (e *Extractor) datasetDirs() ([]string, error) {
	entries, err := os.ReadDir(e.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if len(e.opts.Datasets) > 0 && !slices.Contains(e.opts.Datasets, entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (e *Extractor) processDataset(name string) (*DatasetResult, error) {
	dir := filepath.Join(e.root, name)
	files, err := collectXMLFiles(dir)
	if err != nil {
		return nil, err
	}

	slog.Info("Processing dataset", "dataset", name, "files", len(files))

	result := &DatasetResult{
		Name:      name,
		FilesSeen: len(files),
	}

	rows := make([][]string, 0, len(files))
	for _, file := range files {
		row, err := e.fieldMap.ParseFile(file)
		if err != nil {
			slog.Warn("Skipping malformed XML file", "dataset", name, "file", file, "error", err)
			result.FilesSkipped++
			continue
		}
		rows = append(rows, row)
	}

	csvPath := filepath.Join(e.opts.OutputDir, name+"_metadata.csv")
	if err := writeCSV(csvPath, e.fieldMap.Columns(), rows); err != nil {
		return nil, err
	}
	result.CSVPath = csvPath
	result.RowsWritten = len(rows)

	if e.opts.Parquet {
		parquetPath := filepath.Join(e.opts.OutputDir, name+"_metadata.parquet")
		if err := writeParquet(parquetPath, e.fieldMap.Columns(), rows); err != nil {
			return nil, err
		}
		slog.Info("Wrote parquet", "dataset", name, "path", parquetPath)
	}

	slog.Info("Dataset complete", "dataset", name, "rows", result.RowsWritten, "skipped", result.FilesSkipped, "csv", csvPath)
	return result, nil
}

// collectXMLFiles recursively gathers *.xml files under dir in stable
// lexicographic path order. Datasets sometimes nest one directory per record,
// so the walk descends to the leaves.
func collectXMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".xml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", dir, err)
	}

	slices.Sort(files)
	return files, nil
}

// writeCSV writes the fixed header plus one row per record. A dataset with no
// rows still gets a header-only CSV.
func writeCSV(path string, columns []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
