package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ettle/strcase"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet      = "Summary"
	maxSheetNameRunes = 31
)

// WriteWorkbook exports rep as an XLSX workbook: a summary sheet followed by
// one sheet per chart holding its header and rows.
func WriteWorkbook(w io.Writer, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("report: rename summary sheet: %w", err)
	}
	summary := [][]any{
		{"Template", rep.Template.Name},
		{"Description", rep.Template.Description},
		{"Generated", rep.GeneratedAt.Format(time.RFC3339)},
		{"Charts", len(rep.Charts)},
	}
	if err := writeRows(f, summarySheet, 1, summary); err != nil {
		return err
	}

	used := map[string]struct{}{strings.ToLower(summarySheet): {}}
	for i, chart := range rep.Charts {
		name := SheetName(chart.Chart.Title, i+1, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("report: add sheet %q: %w", name, err)
		}
		if err := writeChartSheet(f, name, chart); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

func writeChartSheet(f *excelize.File, sheet string, chart RenderedChart) error {
	if chart.Failed() {
		return writeRows(f, sheet, 1, [][]any{{"Error", chart.Error}})
	}
	header := make([]any, len(chart.Columns))
	for i, col := range chart.Columns {
		header[i] = col
	}
	rows := make([][]any, 0, len(chart.Rows)+1)
	rows = append(rows, header)
	for _, row := range chart.Rows {
		values := make([]any, len(chart.Columns))
		for i, col := range chart.Columns {
			values[i] = row[col]
		}
		rows = append(rows, values)
	}
	return writeRows(f, sheet, 1, rows)
}

func writeRows(f *excelize.File, sheet string, start int, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, start+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// SheetName derives a unique worksheet name from a chart title. Names are
// Pascal-cased, stripped of characters Excel rejects and truncated to 31
// characters; collisions get a numeric suffix.
func SheetName(title string, index int, used map[string]struct{}) string {
	base := strcase.ToPascal(sanitizeSheetName(title))
	if base == "" {
		base = fmt.Sprintf("Chart%d", index)
	}
	name := truncateRunes(base, maxSheetNameRunes)
	for n := 2; ; n++ {
		if _, taken := used[strings.ToLower(name)]; !taken {
			break
		}
		suffix := fmt.Sprintf("_%d", n)
		name = truncateRunes(base, maxSheetNameRunes-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = struct{}{}
	return name
}

func sanitizeSheetName(title string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\', '\'':
			return ' '
		}
		return r
	}, title)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
