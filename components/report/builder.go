package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-report-builder/components/editor"
)

var errMissingRows = errors.New("report: row source not configured")

// chartChrome is the vertical space a grid cell spends on padding.
const chartChrome = 24

// Request scopes the rows fetched for every chart of a report.
type Request struct {
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	DateColumn    string `json:"date_column,omitempty"`
	GroupByPeriod string `json:"group_by_period,omitempty"`
	// Limit caps rows per chart. Zero uses the editor preview limit of each
	// chart type.
	Limit int `json:"limit,omitempty"`
}

// RenderedChart is one chart of a built report.
type RenderedChart struct {
	Chart   editor.ChartConfig `json:"chart"`
	Layout  editor.LayoutItem  `json:"layout"`
	Columns []string           `json:"columns"`
	Rows    []editor.Row       `json:"rows"`
	HTML    string             `json:"html,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Failed reports whether the chart could not be rendered.
func (c RenderedChart) Failed() bool {
	return c.Error != ""
}

// Report is a template replayed against live rows.
type Report struct {
	Template    editor.Template `json:"template"`
	Request     Request         `json:"request"`
	Charts      []RenderedChart `json:"charts"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	Rows      editor.RowSource
	Renderer  ChartRenderer
	Telemetry Telemetry
	Now       func() time.Time
}

// Builder replays templates into reports.
type Builder struct {
	rows      editor.RowSource
	renderer  ChartRenderer
	telemetry Telemetry
	now       func() time.Time
}

// NewBuilder builds a Builder with safe defaults.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Renderer == nil {
		opts.Renderer = NewEChartsRenderer()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{
		rows:      opts.Rows,
		renderer:  opts.Renderer,
		telemetry: normalizeTelemetry(opts.Telemetry),
		now:       opts.Now,
	}
}

// Build queries and renders every chart of tpl in layout order. A chart that
// fails to query or render carries the error and does not fail the report.
func (b *Builder) Build(ctx context.Context, tpl editor.Template, req Request) (Report, error) {
	if b.rows == nil {
		return Report{}, errMissingRows
	}
	rep := Report{
		Template:    tpl,
		Request:     req,
		GeneratedAt: b.now(),
	}
	for _, placed := range placeCharts(tpl) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Charts = append(rep.Charts, b.buildChart(ctx, placed.chart, placed.layout, req))
	}
	b.telemetry.Record(ctx, "report.build", map[string]any{
		"template_id": tpl.ID,
		"charts":      len(rep.Charts),
		"failed":      countFailed(rep.Charts),
	})
	return rep, nil
}

func (b *Builder) buildChart(ctx context.Context, cfg editor.ChartConfig, layout editor.LayoutItem, req Request) RenderedChart {
	out := RenderedChart{
		Chart:   cfg,
		Layout:  layout,
		Columns: QueryColumns(cfg),
		Rows:    []editor.Row{},
	}
	if cfg.DataBinding.DataSource == "" {
		out.Error = editor.MsgDataSourceRequired
		return out
	}
	limit := req.Limit
	if limit <= 0 {
		limit = editor.PreviewLimit(cfg.Type)
	}
	rows, err := b.rows.QueryRows(ctx, editor.DataQuery{
		TableName:     cfg.DataBinding.DataSource,
		Columns:       out.Columns,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		DateColumn:    req.DateColumn,
		Limit:         limit,
		GroupByPeriod: req.GroupByPeriod,
	})
	if err != nil {
		out.Error = err.Error()
		b.telemetry.Record(ctx, "report.chart.query_error", map[string]any{
			"chart_id": cfg.ID,
			"table":    cfg.DataBinding.DataSource,
			"error":    err.Error(),
		})
		return out
	}
	if rows != nil {
		out.Rows = rows
	}
	html, err := b.renderer.Render(ctx, cfg, out.Rows, ChartHeight(layout))
	if err != nil {
		out.Error = err.Error()
		b.telemetry.Record(ctx, "report.chart.render_error", map[string]any{
			"chart_id":   cfg.ID,
			"chart_type": string(cfg.Type),
			"error":      err.Error(),
		})
		return out
	}
	out.HTML = html
	return out
}

// QueryColumns lists the columns a chart reads: the x axis followed by the
// y axis columns, without duplicates.
func QueryColumns(cfg editor.ChartConfig) []string {
	seen := map[string]struct{}{}
	cols := make([]string, 0, 1+len(cfg.DataBinding.YAxis))
	add := func(col string) {
		if col == "" {
			return
		}
		if _, ok := seen[col]; ok {
			return
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	add(cfg.DataBinding.XAxis)
	for _, col := range cfg.DataBinding.YAxis {
		add(col)
	}
	return cols
}

// ChartHeight converts a grid placement into a CSS pixel height.
func ChartHeight(item editor.LayoutItem) string {
	h := item.H*editor.GridRowHeight - chartChrome
	if h <= 0 {
		return DefaultChartHeight
	}
	return fmt.Sprintf("%dpx", h)
}

type placedChart struct {
	chart  editor.ChartConfig
	layout editor.LayoutItem
}

// placeCharts pairs charts with their placements in layout order. Charts
// missing from the layout are stacked below it.
func placeCharts(tpl editor.Template) []placedChart {
	byID := make(map[string]editor.ChartConfig, len(tpl.Charts))
	for _, cfg := range tpl.Charts {
		if cfg.ID != "" {
			byID[cfg.ID] = cfg
		}
	}
	out := make([]placedChart, 0, len(byID))
	placed := make(map[string]struct{}, len(byID))
	bottom := 0
	for _, item := range tpl.Layout {
		cfg, ok := byID[item.I]
		if !ok {
			continue
		}
		if _, dup := placed[item.I]; dup {
			continue
		}
		placed[item.I] = struct{}{}
		out = append(out, placedChart{chart: cfg, layout: item})
		bottom = max(bottom, item.Y+item.H)
	}
	for _, cfg := range tpl.Charts {
		if _, ok := placed[cfg.ID]; ok || cfg.ID == "" {
			continue
		}
		placed[cfg.ID] = struct{}{}
		item := editor.DefaultLayoutItem(cfg.ID, cfg.Type, bottom)
		bottom += item.H
		out = append(out, placedChart{chart: cfg, layout: item})
	}
	return out
}

func countFailed(charts []RenderedChart) int {
	n := 0
	for _, c := range charts {
		if c.Failed() {
			n++
		}
	}
	return n
}
