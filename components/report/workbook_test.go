package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-report-builder/components/editor"
)

func TestWriteWorkbook(t *testing.T) {
	rep := Report{
		Template:    editor.Template{Name: "Monthly sales"},
		GeneratedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Charts: []RenderedChart{
			{
				Chart:   editor.ChartConfig{ID: "a", Title: "revenue by month"},
				Columns: []string{"month", "revenue"},
				Rows: []editor.Row{
					{"month": "Jan", "revenue": 400},
					{"month": "Feb", "revenue": 300},
				},
			},
			{
				Chart: editor.ChartConfig{ID: "b", Title: "revenue by month"},
				Error: "table offline",
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, rep))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "RevenueByMonth", "RevenueByMonth_2"}, f.GetSheetList())

	name, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Monthly sales", name)

	rows, err := f.GetRows("RevenueByMonth")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"month", "revenue"}, {"Jan", "400"}, {"Feb", "300"}}, rows)

	msg, err := f.GetCellValue("RevenueByMonth_2", "B1")
	require.NoError(t, err)
	assert.Equal(t, "table offline", msg)
}

func TestSheetNameRules(t *testing.T) {
	used := map[string]struct{}{"summary": {}}

	assert.Equal(t, "Chart1", SheetName("", 1, used))
	assert.Equal(t, "Chart1_2", SheetName("", 1, used))
	assert.Equal(t, "Summary_2", SheetName("summary", 3, used))

	long := SheetName(strings.Repeat("word ", 20), 4, used)
	assert.LessOrEqual(t, len([]rune(long)), 31)

	clean := SheetName("a/b:c*d?", 5, used)
	assert.NotContains(t, clean, "/")
	assert.NotContains(t, clean, ":")
}
