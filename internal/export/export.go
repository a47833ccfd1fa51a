// Package export writes run reports to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
	// FormatCSV writes the step table only.
	FormatCSV ExportFormat = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// ReportExporter handles report export functionality
type ReportExporter struct {
	outputDir string
	logger    *zap.Logger
}

// NewReportExporter creates an exporter writing into outputDir.
func NewReportExporter(outputDir string, logger *zap.Logger) *ReportExporter {
	return &ReportExporter{outputDir: outputDir, logger: logger.Named("export")}
}

// Export writes report in format and returns the file path.
func (re *ReportExporter) Export(report *pipeline.Report, format ExportFormat) (string, error) {
	if report == nil {
		return "", fmt.Errorf("no report to export")
	}
	if err := os.MkdirAll(re.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(re.outputDir, generateFilename(report, format))

	var err error
	switch format {
	case FormatJSON:
		err = exportToJSON(report, outputPath)
	case FormatYAML:
		err = exportToYAML(report, outputPath)
	case FormatCSV:
		err = exportToCSV(report, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return "", err
	}

	re.logger.Info("Report exported",
		zap.String("file", outputPath),
		zap.String("run_id", report.RunID),
		zap.String("format", string(format)))
	return outputPath, nil
}

// generateFilename names a report "<pair>_<YYYYMMDD_HHMMSS>_<run-id prefix>.<ext>".
func generateFilename(report *pipeline.Report, format ExportFormat) string {
	id := report.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	pair := report.Pair
	if pair == "" {
		pair = "run"
	}
	return fmt.Sprintf("%s_%s_%s.%s", pair, report.StartedAt.UTC().Format("20060102_150405"), id, format)
}

func exportToJSON(report *pipeline.Report, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func exportToYAML(report *pipeline.Report, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create YAML file: %w", err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// CSVHeaders are the columns of the step table.
func CSVHeaders() []string {
	return []string{"run_id", "step", "status", "fatal", "duration_ms", "reason", "effects"}
}

func exportToCSV(report *pipeline.Report, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, step := range report.Steps {
		row := []string{
			report.RunID,
			string(step.Name),
			string(step.Status),
			fmt.Sprint(step.Fatal),
			fmt.Sprint(step.Duration.Milliseconds()),
			step.Reason,
			formatEffects(step.Effects),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write step: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// formatEffects renders effects as "k=v;k=v" in key order.
func formatEffects(effects map[string]string) string {
	keys := make([]string, 0, len(effects))
	for k := range effects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+effects[k])
	}
	return strings.Join(parts, ";")
}
