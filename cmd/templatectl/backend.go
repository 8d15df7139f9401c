package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/pkg/reportapi"
	"github.com/goliatone/go-report-builder/pkg/store"
)

// backend bundles the collaborators of the editor service.
type backend struct {
	Templates editor.TemplateRepository
	Sources   editor.DataSourceDirectory
	Rows      editor.RowSource
	close     func() error
}

func (b *backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// openBackend prefers a local libSQL database over the remote API.
func openBackend(ctx context.Context, g *Globals) (*backend, error) {
	switch {
	case g.DB != "":
		dsn := g.DB
		if !strings.HasPrefix(dsn, "file:") {
			dsn = "file:" + dsn
		}
		templates, err := store.NewLibSQLTemplateStore(dsn)
		if err != nil {
			return nil, err
		}
		if err := templates.Migrate(ctx); err != nil {
			_ = templates.Close()
			return nil, err
		}
		sources := store.NewLibSQLDataSources(templates.DB())
		return &backend{Templates: templates, Sources: sources, Rows: sources, close: templates.Close}, nil
	case g.APIURL != "":
		client, err := reportapi.NewClient(reportapi.Config{BaseURL: g.APIURL, APIKey: g.APIKey})
		if err != nil {
			return nil, err
		}
		return &backend{Templates: client, Sources: client, Rows: client}, nil
	default:
		return nil, errNoBackend
	}
}

// rowsFile serves tables loaded from a YAML or JSON file of the form
// {table: [{column: value, ...}, ...]}.
type rowsFile struct {
	tables map[string][]editor.Row
}

func readRowsFile(path string) (*rowsFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("templatectl: read rows %s: %w", path, err)
	}
	var tables map[string][]editor.Row
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("templatectl: parse rows %s: %w", path, err)
	}
	return &rowsFile{tables: tables}, nil
}

func (f *rowsFile) ListSources(context.Context) ([]editor.DataSource, error) {
	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]editor.DataSource, 0, len(names))
	for i, name := range names {
		out = append(out, editor.DataSource{ID: int64(i + 1), Name: name, TableName: name})
	}
	return out, nil
}

// ListColumns infers columns from the first row of the table.
func (f *rowsFile) ListColumns(_ context.Context, tableName string) ([]editor.ColumnInfo, error) {
	rows, ok := f.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", editor.ErrTableNotFound, tableName)
	}
	if len(rows) == 0 {
		return []editor.ColumnInfo{}, nil
	}
	names := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]editor.ColumnInfo, 0, len(names))
	for _, name := range names {
		kind := editor.ColumnString
		switch rows[0][name].(type) {
		case int, int64, float64:
			kind = editor.ColumnNumber
		}
		out = append(out, editor.ColumnInfo{Name: name, Type: kind})
	}
	return out, nil
}

// QueryRows projects the requested columns and applies the date range and
// limit. Dates compare as strings.
func (f *rowsFile) QueryRows(_ context.Context, q editor.DataQuery) ([]editor.Row, error) {
	rows, ok := f.tables[q.TableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", editor.ErrTableNotFound, q.TableName)
	}
	dateColumn := q.DateColumn
	if dateColumn == "" {
		dateColumn = "date"
	}
	out := []editor.Row{}
	for _, row := range rows {
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
		if q.StartDate != "" || q.EndDate != "" {
			date := fmt.Sprint(row[dateColumn])
			if (q.StartDate != "" && date < q.StartDate) || (q.EndDate != "" && date > q.EndDate) {
				continue
			}
		}
		projected := make(editor.Row, len(q.Columns))
		for _, col := range q.Columns {
			if v, ok := row[col]; ok {
				projected[col] = v
			}
		}
		out = append(out, projected)
	}
	return out, nil
}
