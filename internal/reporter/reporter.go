// Package reporter writes batch extraction results.
//
// Supported output formats:
//   - Console: coloured, human-readable summary for the terminal
//   - JSON: structured data for programmatic consumption
//   - CSV: one row per transaction for spreadsheet applications
//   - XLSX: workbook with records, summary, quality and count sheets
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.GenerateReport(result, file)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"golang-transaction-extractor/internal/batch"
	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format must not be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// FormatFromPath infers the format from an output file extension
func FormatFromPath(path string) (OutputFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, true
	case ".json":
		return FormatJSON, true
	case ".csv":
		return FormatCSV, true
	case ".txt":
		return FormatConsole, true
	default:
		return "", false
	}
}

// RecordColumns are the record columns shared by the CSV and XLSX outputs
var RecordColumns = []string{"交易时间", "交易类型", "主要标题", "副标题", "金额", "余额", "支付方式", "关联账户"}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	IncludeRecords  bool `json:"include_records" mapstructure:"include_records"`
	IncludeQuality  bool `json:"include_quality" mapstructure:"include_quality"`
	IncludeFailures bool `json:"include_failures" mapstructure:"include_failures"`
	IncludeImages   bool `json:"include_images" mapstructure:"include_images"`

	// Console formatting options
	UseColors      bool `json:"use_colors" mapstructure:"use_colors"`
	TableMaxWidth  int  `json:"table_max_width" mapstructure:"table_max_width"`
	MaxConsoleRows int  `json:"max_console_rows" mapstructure:"max_console_rows"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`
	CSVBOM       bool `json:"csv_bom" mapstructure:"csv_bom"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatXLSX,
		IncludeRecords:  true,
		IncludeQuality:  true,
		IncludeFailures: true,
		IncludeImages:   false,
		UseColors:       true,
		TableMaxWidth:   120,
		MaxConsoleRows:  50,
		CSVDelimiter:    ',',
		CSVHeaders:      true,
		CSVBOM:          true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.MaxConsoleRows < 0 {
		return fmt.Errorf("max console rows cannot be negative, got %d", c.MaxConsoleRows)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator generates extraction reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes the batch result to writer in the configured format
func (rg *ReportGenerator) GenerateReport(result *batch.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("batch result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

type palette struct {
	header  *color.Color
	section *color.Color
	good    *color.Color
	bad     *color.Color
	muted   *color.Color
}

func (rg *ReportGenerator) palette() palette {
	p := palette{
		header:  color.New(color.FgCyan, color.Bold),
		section: color.New(color.Bold),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		muted:   color.New(color.Faint),
	}
	if !rg.config.UseColors {
		for _, c := range []*color.Color{p.header, p.section, p.good, p.bad, p.muted} {
			c.DisableColor()
		}
	}
	return p
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *batch.Result, writer io.Writer) error {
	p := rg.palette()
	summary := BuildSummary(result.Records)

	p.header.Fprintf(writer, "TRANSACTION EXTRACTION REPORT\n")
	fmt.Fprintf(writer, "Run: %s\n", result.RunID)
	if result.InputDir != "" {
		fmt.Fprintf(writer, "Input: %s\n", result.InputDir)
	}
	if !result.StartedAt.IsZero() {
		fmt.Fprintf(writer, "Generated: %s\n", result.StartedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", result.Duration)

	p.section.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
	rg.printBatchStats(result.Stats, p, writer)
	fmt.Fprintf(writer, "\n")

	p.section.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(summary, p, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeRecords && len(result.Records) > 0 {
		p.section.Fprintf(writer, "=== TRANSACTIONS ===\n")
		rg.printRecords(result.Records, p, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeQuality && !result.Quality.IsEmpty() {
		p.section.Fprintf(writer, "=== DATA QUALITY ===\n")
		for _, row := range result.Quality.Rows() {
			if row.Field == "overall" {
				fmt.Fprintf(writer, "  %-8s %s\n", row.Label, row.RateString())
				continue
			}
			fmt.Fprintf(writer, "  %-8s %d/%d (%s)\n", row.Label, row.Complete, row.Total, row.RateString())
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeFailures && len(result.Failures) > 0 {
		p.section.Fprintf(writer, "=== FAILED IMAGES ===\n")
		if result.Errors != nil {
			fmt.Fprintf(writer, "By category: %s\n", result.Errors.Breakdown())
		}
		p.bad.Fprintf(writer, "%s\n", errors.FormatImageFailuresForUser(result.Failures))
	}

	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *batch.Result, writer io.Writer) error {
	filteredResult := rg.filterResultForOutput(result)

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(filteredResult)
}

// generateCSVReport writes one row per record
func (rg *ReportGenerator) generateCSVReport(result *batch.Result, writer io.Writer) error {
	if rg.config.CSVBOM {
		if _, err := io.WriteString(writer, "\ufeff"); err != nil {
			return fmt.Errorf("failed to write CSV byte order mark: %w", err)
		}
	}

	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(RecordColumns); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, r := range result.Records {
		if err := csvWriter.Write(recordRow(r)); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.Key(), err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// recordRow lays a record out in RecordColumns order
func recordRow(r *models.TransactionRecord) []string {
	return []string{
		r.DatetimeLabel,
		labelOrEmpty(r.TransactionType),
		r.Title,
		r.SubTitle,
		r.Amount,
		r.Balance,
		r.PaymentMethod,
		r.Account,
	}
}

func (rg *ReportGenerator) printBatchStats(stats batch.Stats, p palette, writer io.Writer) {
	fmt.Fprintf(writer, "Images:          %d\n", stats.TotalImages)
	p.good.Fprintf(writer, "Successful:      %d\n", stats.Successful)
	if stats.Failed > 0 {
		p.bad.Fprintf(writer, "Failed:          %d\n", stats.Failed)
	} else {
		fmt.Fprintf(writer, "Failed:          %d\n", stats.Failed)
	}
	fmt.Fprintf(writer, "No Transactions: %d\n", stats.NoTransactions)
	if stats.Skipped > 0 {
		fmt.Fprintf(writer, "Skipped:         %d\n", stats.Skipped)
	}
	fmt.Fprintf(writer, "Success Rate:    %.1f%%\n", stats.SuccessRate)
	fmt.Fprintf(writer, "Transactions:    %d\n", stats.TotalTransactions)
	fmt.Fprintf(writer, "Complete:        %d (%.1f%%)\n",
		stats.CompleteRecords, rg.calculatePercentage(stats.CompleteRecords, stats.TotalTransactions))
}

func (rg *ReportGenerator) printSummary(summary *Summary, p palette, writer io.Writer) {
	fmt.Fprintf(writer, "Total Records:    %d\n", summary.TotalRecords)
	fmt.Fprintf(writer, "Recognition Rate: %s\n", summary.RecognitionRateString())
	p.good.Fprintf(writer, "Inflow:           %s\n", summary.Inflow.StringFixed(2))
	p.bad.Fprintf(writer, "Outflow:          %s\n", summary.Outflow.StringFixed(2))
	fmt.Fprintf(writer, "Net:              %s\n", summary.Net.StringFixed(2))

	if len(summary.TypeCounts) > 0 {
		fmt.Fprintf(writer, "\nBy Type:\n")
		for _, c := range summary.TypeCounts {
			fmt.Fprintf(writer, "  %s: %d\n", c.Label, c.Count)
		}
	}
	if len(summary.PaymentCounts) > 0 {
		fmt.Fprintf(writer, "\nBy Payment Method:\n")
		for _, c := range summary.PaymentCounts {
			fmt.Fprintf(writer, "  %s: %d\n", c.Label, c.Count)
		}
	}
}

func (rg *ReportGenerator) printRecords(records []*models.TransactionRecord, p palette, writer io.Writer) {
	limit := len(records)
	if rg.config.MaxConsoleRows > 0 && limit > rg.config.MaxConsoleRows {
		limit = rg.config.MaxConsoleRows
	}

	for i, r := range records[:limit] {
		line := fmt.Sprintf("%3d. %s  %s  %s", i+1, r.DatetimeLabel, labelOrEmpty(r.TransactionType), r.Title)
		if r.SubTitle != "" {
			line += " / " + r.SubTitle
		}
		fmt.Fprint(writer, truncate(line, rg.config.TableMaxWidth-24))

		amount := r.Amount
		if amount == "" {
			amount = "-"
		}
		switch {
		case r.IsOutflow():
			p.bad.Fprintf(writer, "  %s", amount)
		case r.IsInflow():
			p.good.Fprintf(writer, "  %s", amount)
		default:
			fmt.Fprintf(writer, "  %s", amount)
		}
		if r.Balance != "" {
			p.muted.Fprintf(writer, "  余额 %s", r.Balance)
		}
		fmt.Fprintf(writer, "\n")
	}

	if limit < len(records) {
		fmt.Fprintf(writer, "  ... and %d more\n", len(records)-limit)
	}
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (rg *ReportGenerator) filterResultForOutput(result *batch.Result) map[string]interface{} {
	output := map[string]interface{}{
		"run_id":     result.RunID,
		"input_dir":  result.InputDir,
		"started_at": result.StartedAt,
		"duration":   result.Duration.String(),
		"stats":      result.Stats,
		"summary":    BuildSummary(result.Records),
	}

	if rg.config.IncludeRecords {
		output["records"] = result.Records
	}

	if rg.config.IncludeQuality && result.Quality != nil {
		output["quality"] = result.Quality
	}

	if rg.config.IncludeFailures && len(result.Failures) > 0 {
		output["failures"] = result.Failures
	}

	if rg.config.IncludeFailures && result.Errors != nil {
		output["errors"] = result.Errors
	}

	if rg.config.IncludeImages {
		output["images"] = result.Images
	}

	return output
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
