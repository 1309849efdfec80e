package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// reportFile is the machine-readable run report written next to the CSVs.
const reportFile = "extract_report.yaml"

type report struct {
	Timestamp string  `yaml:"timestamp"`
	Run       Summary `yaml:"run"`
}

// WriteReport saves the run summary as YAML in the output directory.
func WriteReport(summary *Summary) (string, error) {
	r := report{
		Timestamp: time.Now().Format("2006-01-02_15-04-05"),
		Run:       *summary,
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(summary.OutputDir, reportFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}
