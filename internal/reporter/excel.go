package reporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"golang-transaction-extractor/internal/batch"
	"golang-transaction-extractor/internal/quality"
)

// Workbook sheet names
const (
	SheetRecords  = "交易记录"
	SheetSummary  = "数据摘要"
	SheetQuality  = "数据质量报告"
	SheetTypes    = "交易类型统计"
	SheetPayments = "支付方式统计"
)

// generateXLSXReport writes the five-sheet workbook
func (rg *ReportGenerator) generateXLSXReport(result *batch.Result, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetRecords); err != nil {
		return fmt.Errorf("failed to name records sheet: %w", err)
	}
	for _, name := range []string{SheetSummary, SheetQuality, SheetTypes, SheetPayments} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	summary := BuildSummary(result.Records)

	records := [][]interface{}{}
	for _, r := range result.Records {
		row := recordRow(r)
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		records = append(records, cells)
	}
	if err := writeSheet(f, SheetRecords, RecordColumns, records, headerStyle); err != nil {
		return err
	}

	summaryRows := [][]interface{}{
		{"总交易笔数", summary.TotalRecords},
		{"交易类型统计", formatCounts(summary.TypeCounts)},
		{"支付方式统计", formatCounts(summary.PaymentCounts)},
		{"成功识别率", summary.RecognitionRateString()},
		{"收入合计", summary.Inflow.StringFixed(2)},
		{"支出合计", summary.Outflow.StringFixed(2)},
		{"净额", summary.Net.StringFixed(2)},
		{"总图像数", result.Stats.TotalImages},
		{"成功处理", result.Stats.Successful},
		{"处理失败", result.Stats.Failed},
		{"成功率", fmt.Sprintf("%.1f%%", result.Stats.SuccessRate)},
	}
	if result.Errors != nil {
		summaryRows = append(summaryRows, []interface{}{"失败分类", result.Errors.Breakdown()})
	}
	if err := writeSheet(f, SheetSummary, []string{"项目", "值"}, summaryRows, headerStyle); err != nil {
		return err
	}

	if err := writeSheet(f, SheetQuality, []string{"字段名称", "完整记录数", "总记录数", "完整率"},
		qualityRows(result.Quality), headerStyle); err != nil {
		return err
	}

	if err := writeSheet(f, SheetTypes, []string{"交易类型", "笔数"}, countRows(summary.TypeCounts), headerStyle); err != nil {
		return err
	}
	if err := writeSheet(f, SheetPayments, []string{"支付方式", "笔数"}, countRows(summary.PaymentCounts), headerStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]interface{}, headerStyle int) error {
	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// qualityRows lays out the completeness report. The aggregate row carries the
// overall rate in the count column and "100%" as its total.
func qualityRows(report *quality.Report) [][]interface{} {
	var rows [][]interface{}
	for _, r := range report.Rows() {
		if r.Field == "overall" {
			rows = append(rows, []interface{}{r.Label, r.RateString(), "100%", r.RateString()})
			continue
		}
		rows = append(rows, []interface{}{r.Label, r.Complete, r.Total, r.RateString()})
	}
	return rows
}

func countRows(counts []Count) [][]interface{} {
	rows := make([][]interface{}, len(counts))
	for i, c := range counts {
		rows[i] = []interface{}{c.Label, c.Count}
	}
	return rows
}
