package editor

import (
	"context"
	"time"
)

// ChartType enumerates the supported chart widgets.
type ChartType string

const (
	ChartBar         ChartType = "bar"
	ChartLine        ChartType = "line"
	ChartPie         ChartType = "pie"
	ChartArea        ChartType = "area"
	ChartCombination ChartType = "combination"
)

// ChartTypes lists every supported chart type in palette order.
func ChartTypes() []ChartType {
	return []ChartType{ChartBar, ChartLine, ChartPie, ChartArea, ChartCombination}
}

// Valid reports whether t is one of the supported chart types.
func (t ChartType) Valid() bool {
	switch t {
	case ChartBar, ChartLine, ChartPie, ChartArea, ChartCombination:
		return true
	default:
		return false
	}
}

// ChartConfig describes a single chart widget.
type ChartConfig struct {
	ID          string      `json:"id" yaml:"id"`
	Type        ChartType   `json:"type" yaml:"type"`
	Title       string      `json:"title" yaml:"title"`
	DataBinding DataBinding `json:"dataBinding" yaml:"dataBinding"`
	Style       ChartStyle  `json:"style" yaml:"style"`
}

// DataBinding maps chart axes to columns of a data source table.
type DataBinding struct {
	DataSource string   `json:"dataSource" yaml:"dataSource"`
	XAxis      string   `json:"xAxis" yaml:"xAxis"`
	YAxis      []string `json:"yAxis" yaml:"yAxis"`
}

// ChartStyle carries presentation options for a chart.
type ChartStyle struct {
	Colors         []string `json:"colors" yaml:"colors"`
	ShowThreshold  *bool    `json:"showThreshold,omitempty" yaml:"showThreshold,omitempty"`
	ThresholdValue *float64 `json:"thresholdValue,omitempty" yaml:"thresholdValue,omitempty"`
	ShowDataLabel  *bool    `json:"showDataLabel,omitempty" yaml:"showDataLabel,omitempty"`
}

// Clone returns a copy that shares no slices or pointers with c.
func (c ChartConfig) Clone() ChartConfig {
	out := c
	out.DataBinding.YAxis = cloneStrings(c.DataBinding.YAxis)
	out.Style = c.Style.Clone()
	return out
}

// Clone returns a deep copy of the style.
func (s ChartStyle) Clone() ChartStyle {
	out := ChartStyle{Colors: cloneStrings(s.Colors)}
	if s.ShowThreshold != nil {
		v := *s.ShowThreshold
		out.ShowThreshold = &v
	}
	if s.ThresholdValue != nil {
		v := *s.ThresholdValue
		out.ThresholdValue = &v
	}
	if s.ShowDataLabel != nil {
		v := *s.ShowDataLabel
		out.ShowDataLabel = &v
	}
	return out
}

// ThresholdEnabled reports whether a threshold line should be drawn.
func (s ChartStyle) ThresholdEnabled() bool {
	return s.ShowThreshold != nil && *s.ShowThreshold && s.ThresholdValue != nil
}

// DataLabelsEnabled reports whether value labels should be drawn.
func (s ChartStyle) DataLabelsEnabled() bool {
	return s.ShowDataLabel != nil && *s.ShowDataLabel
}

// LayoutItem is a widget's grid placement. I matches the ChartConfig ID.
type LayoutItem struct {
	I      string `json:"i" yaml:"i"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	W      int    `json:"w" yaml:"w"`
	H      int    `json:"h" yaml:"h"`
	MinW   int    `json:"minW,omitempty" yaml:"minW,omitempty"`
	MinH   int    `json:"minH,omitempty" yaml:"minH,omitempty"`
	MaxW   int    `json:"maxW,omitempty" yaml:"maxW,omitempty"`
	MaxH   int    `json:"maxH,omitempty" yaml:"maxH,omitempty"`
	Static bool   `json:"static,omitempty" yaml:"static,omitempty"`
}

// DataSource is a registered table that charts can bind to.
type DataSource struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	TableName   string `json:"table_name" yaml:"table_name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ColumnType enumerates column kinds reported by the directory.
type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnNumber ColumnType = "number"
	ColumnDate   ColumnType = "date"
)

// ColumnInfo describes a single table column.
type ColumnInfo struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Template is the persisted form of a report template. Charts travel as an
// array and are keyed by id once hydrated.
type Template struct {
	ID          int64         `json:"id" yaml:"id,omitempty"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Layout      []LayoutItem  `json:"layout" yaml:"layout"`
	Charts      []ChartConfig `json:"charts" yaml:"charts"`
	IsActive    bool          `json:"is_active" yaml:"is_active,omitempty"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at" yaml:"updated_at,omitempty"`
}

// TemplateSummary is the list view of a persisted template.
type TemplateSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ChartCount  int       `json:"chart_count"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Row is a flat record returned by a data query.
type Row map[string]any

// AggregationField requests an aggregate over a column.
type AggregationField struct {
	Column   string `json:"column"`
	Function string `json:"function"`
	Alias    string `json:"alias,omitempty"`
}

// DataQuery requests rows from a registered table.
type DataQuery struct {
	TableName     string             `json:"table_name"`
	Columns       []string           `json:"columns,omitempty"`
	StartDate     string             `json:"start_date,omitempty"`
	EndDate       string             `json:"end_date,omitempty"`
	DateColumn    string             `json:"date_column,omitempty"`
	Limit         int                `json:"limit,omitempty"`
	GroupByPeriod string             `json:"group_by_period,omitempty"`
	Aggregations  []AggregationField `json:"aggregations,omitempty"`
}

// TemplateRepository loads and persists templates.
type TemplateRepository interface {
	List(ctx context.Context) ([]TemplateSummary, error)
	Load(ctx context.Context, id int64) (Template, error)
	Create(ctx context.Context, tpl Template) (int64, error)
	Update(ctx context.Context, id int64, tpl Template) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// DataSourceDirectory lists tables and their columns.
type DataSourceDirectory interface {
	ListSources(ctx context.Context) ([]DataSource, error)
	ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error)
}

// RowSource fetches data rows for report rendering.
type RowSource interface {
	QueryRows(ctx context.Context, query DataQuery) ([]Row, error)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
