package extract

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// writeParquet mirrors the CSV output into a parquet file with one string
// column per schema column. The schema is built from the field map rather
// than a fixed struct so custom field maps keep working.
func writeParquet(path string, columns []string, rows [][]string) error {
	group := parquet.Group{}
	for _, col := range columns {
		group[col] = parquet.String()
	}
	schema := parquet.NewSchema("metadata", group)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[map[string]string](f, schema)

	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(columns))
		for i, col := range columns {
			record[col] = row[i]
		}
		records = append(records, record)
	}

	if len(records) > 0 {
		if _, err := writer.Write(records); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
