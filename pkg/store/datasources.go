package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-report-builder/components/editor"
)

const (
	DefaultQueryLimit = 1000
	MaxQueryLimit     = 10000
)

var (
	// ErrInvalidColumn is returned when a query names a column the table lacks.
	ErrInvalidColumn = errors.New("store: invalid column")
	// ErrInvalidQuery is returned for malformed identifiers or aggregations.
	ErrInvalidQuery = errors.New("store: invalid query")

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	periodFormats = map[string]string{
		"day":   "%Y-%m-%d",
		"week":  "%Y-W%W",
		"month": "%Y-%m",
		"year":  "%Y",
	}
)

// LibSQLDataSources serves registered tables of a libSQL database as a
// editor.DataSourceDirectory and editor.RowSource. Only tables registered in
// data_sources can be described or queried, and only by columns they have.
type LibSQLDataSources struct {
	db *sql.DB
}

// NewLibSQLDataSources wraps db, usually LibSQLTemplateStore.DB().
func NewLibSQLDataSources(db *sql.DB) *LibSQLDataSources {
	return &LibSQLDataSources{db: db}
}

// Register adds or updates a data source entry and returns its id.
func (d *LibSQLDataSources) Register(ctx context.Context, ds editor.DataSource) (int64, error) {
	if !identifierPattern.MatchString(ds.TableName) {
		return 0, fmt.Errorf("%w: table name %q", ErrInvalidQuery, ds.TableName)
	}
	var id int64
	err := d.db.QueryRowContext(ctx,
		`INSERT INTO data_sources (name, table_name, description, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(table_name) DO UPDATE SET name=excluded.name, description=excluded.description, is_active=1
		 RETURNING id`,
		ds.Name, ds.TableName, ds.Description, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: register data source %s: %w", ds.TableName, err)
	}
	return id, nil
}

func (d *LibSQLDataSources) ListSources(ctx context.Context) ([]editor.DataSource, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, table_name, description FROM data_sources WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list data sources: %w", err)
	}
	defer rows.Close()

	out := []editor.DataSource{}
	for rows.Next() {
		var ds editor.DataSource
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.TableName, &ds.Description); err != nil {
			return nil, fmt.Errorf("store: scan data source: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (d *LibSQLDataSources) ListColumns(ctx context.Context, tableName string) ([]editor.ColumnInfo, error) {
	if err := d.checkRegistered(ctx, tableName); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, fmt.Errorf("store: describe %s: %w", tableName, err)
	}
	defer rows.Close()

	out := []editor.ColumnInfo{}
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, fmt.Errorf("store: scan column: %w", err)
		}
		out = append(out, editor.ColumnInfo{Name: name, Type: columnType(declared)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", editor.ErrTableNotFound, tableName)
	}
	return out, nil
}

// QueryRows runs a filtered SELECT over a registered table. With
// Aggregations the plain Columns become group keys; GroupByPeriod then buckets
// DateColumn by day, week, month or year.
func (d *LibSQLDataSources) QueryRows(ctx context.Context, q editor.DataQuery) ([]editor.Row, error) {
	cols, err := d.ListColumns(ctx, q.TableName)
	if err != nil {
		return nil, err
	}
	stmt, args, names, err := buildQuery(q, cols)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", q.TableName, err)
	}
	defer rows.Close()

	out := []editor.Row{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		row := make(editor.Row, len(names))
		for i, name := range names {
			row[name] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *LibSQLDataSources) checkRegistered(ctx context.Context, tableName string) error {
	var id int64
	err := d.db.QueryRowContext(ctx,
		`SELECT id FROM data_sources WHERE table_name = ? AND is_active = 1`, tableName,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", editor.ErrTableNotFound, tableName)
	}
	if err != nil {
		return fmt.Errorf("store: lookup data source %s: %w", tableName, err)
	}
	return nil
}

// buildQuery renders q as a parameterized statement. It returns the result
// column names in select order.
func buildQuery(q editor.DataQuery, available []editor.ColumnInfo) (string, []any, []string, error) {
	known := make(map[string]struct{}, len(available))
	for _, col := range available {
		known[col.Name] = struct{}{}
	}
	check := func(col string) error {
		if !identifierPattern.MatchString(col) {
			return fmt.Errorf("%w: column %q", ErrInvalidQuery, col)
		}
		if _, ok := known[col]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidColumn, col)
		}
		return nil
	}

	columns := q.Columns
	if len(columns) == 0 && len(q.Aggregations) == 0 {
		for _, col := range available {
			columns = append(columns, col.Name)
		}
	}
	for _, col := range columns {
		if err := check(col); err != nil {
			return "", nil, nil, err
		}
	}
	dateColumn := q.DateColumn
	if dateColumn == "" && (q.StartDate != "" || q.EndDate != "") {
		dateColumn = "date"
	}
	if dateColumn != "" {
		if err := check(dateColumn); err != nil {
			return "", nil, nil, err
		}
	}

	period := ""
	if len(q.Aggregations) > 0 && q.GroupByPeriod != "" && dateColumn != "" {
		format, ok := periodFormats[strings.ToLower(q.GroupByPeriod)]
		if !ok {
			return "", nil, nil, fmt.Errorf("%w: group_by_period %q", ErrInvalidQuery, q.GroupByPeriod)
		}
		period = format
	}

	selects := make([]string, 0, len(columns)+len(q.Aggregations))
	names := make([]string, 0, cap(selects))
	groups := make([]string, 0, len(columns))
	for _, col := range columns {
		expr := quoteIdent(col)
		if period != "" && col == dateColumn {
			expr = fmt.Sprintf("strftime('%s', %s)", period, quoteIdent(col))
		}
		selects = append(selects, expr+" AS "+quoteIdent(col))
		names = append(names, col)
		groups = append(groups, expr)
	}
	for _, agg := range q.Aggregations {
		fn := strings.ToUpper(agg.Function)
		if !slices.Contains([]string{"SUM", "AVG", "COUNT", "MIN", "MAX"}, fn) {
			return "", nil, nil, fmt.Errorf("%w: aggregation %q", ErrInvalidQuery, agg.Function)
		}
		if err := check(agg.Column); err != nil {
			return "", nil, nil, err
		}
		alias := agg.Alias
		if alias == "" {
			alias = strings.ToLower(fn) + "_" + agg.Column
		}
		if !identifierPattern.MatchString(alias) {
			return "", nil, nil, fmt.Errorf("%w: alias %q", ErrInvalidQuery, alias)
		}
		selects = append(selects, fmt.Sprintf("%s(%s) AS %s", fn, quoteIdent(agg.Column), quoteIdent(alias)))
		names = append(names, alias)
	}
	if len(selects) == 0 {
		return "", nil, nil, fmt.Errorf("%w: no columns", ErrInvalidQuery)
	}

	var b strings.Builder
	args := []any{}
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selects, ", "), quoteIdent(q.TableName))

	where := []string{}
	if q.StartDate != "" {
		where = append(where, quoteIdent(dateColumn)+" >= ?")
		args = append(args, q.StartDate)
	}
	if q.EndDate != "" {
		where = append(where, quoteIdent(dateColumn)+" <= ?")
		args = append(args, q.EndDate)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if len(q.Aggregations) > 0 && len(groups) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(groups, ", "))
	}
	if dateColumn != "" && slices.Contains(columns, dateColumn) {
		b.WriteString(" ORDER BY " + quoteIdent(dateColumn) + " ASC")
	}
	b.WriteString(" LIMIT ?")
	args = append(args, clampLimit(q.Limit))

	return b.String(), args, names, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultQueryLimit
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return limit
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnType maps a declared SQLite column type onto the directory kinds,
// following SQLite's affinity rules.
func columnType(declared string) editor.ColumnType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return editor.ColumnDate
	case strings.Contains(t, "INT"), strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"),
		strings.Contains(t, "DOUB"), strings.Contains(t, "NUM"), strings.Contains(t, "DEC"):
		return editor.ColumnNumber
	default:
		return editor.ColumnString
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
