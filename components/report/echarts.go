package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/goliatone/go-report-builder/components/editor"
)

// DefaultChartHeight is used when no height is requested.
const DefaultChartHeight = "300px"

var (
	ErrUnsupportedChart = errors.New("report: unsupported chart type")
	ErrUnboundChart     = errors.New("report: chart has no y axis binding")
)

var sharedChartCache = NewChartCache(5 * time.Minute)

// ChartRenderer turns a chart configuration and its rows into embeddable HTML.
type ChartRenderer interface {
	Render(ctx context.Context, cfg editor.ChartConfig, rows []editor.Row, height string) (string, error)
}

// EChartsRenderer renders charts server-side with go-echarts.
type EChartsRenderer struct {
	cache      RenderCache
	theme      string
	assetsHost string
}

// EChartsOption customizes renderer behavior.
type EChartsOption func(*EChartsRenderer)

// WithChartCache injects a render cache. Nil disables caching.
func WithChartCache(cache RenderCache) EChartsOption {
	return func(r *EChartsRenderer) {
		r.cache = cache
	}
}

// WithChartTheme sets the ECharts theme (defaults to Westeros).
func WithChartTheme(theme string) EChartsOption {
	return func(r *EChartsRenderer) {
		r.theme = theme
	}
}

// WithAssetsHost rewrites the assets host so the ECharts runtime loads from a CDN.
func WithAssetsHost(host string) EChartsOption {
	return func(r *EChartsRenderer) {
		r.assetsHost = host
	}
}

// NewEChartsRenderer builds a renderer with the shared cache.
func NewEChartsRenderer(options ...EChartsOption) *EChartsRenderer {
	r := &EChartsRenderer{
		cache: sharedChartCache,
		theme: types.ThemeWesteros,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

var _ ChartRenderer = (*EChartsRenderer)(nil)

// Render draws cfg over rows. Bar, line and area charts plot one series per
// y axis column; pie charts use the x axis as slice names and the first y
// axis column as values; combination charts overlay a line on a bar.
func (r *EChartsRenderer) Render(_ context.Context, cfg editor.ChartConfig, rows []editor.Row, height string) (string, error) {
	if !cfg.Type.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChart, cfg.Type)
	}
	if len(cfg.DataBinding.YAxis) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnboundChart, cfg.ID)
	}
	if height == "" {
		height = DefaultChartHeight
	}
	render := func() (string, error) {
		return r.render(cfg, rows, height)
	}
	if r.cache == nil {
		return render()
	}
	key := fmt.Sprintf("%s:%s:%s", cfg.ID, cfg.Type, contentHash(cfg, rows, height, r.theme, r.assetsHost))
	return r.cache.GetOrRender(key, render)
}

func (r *EChartsRenderer) render(cfg editor.ChartConfig, rows []editor.Row, height string) (string, error) {
	labels := axisLabels(rows, cfg.DataBinding.XAxis)
	switch cfg.Type {
	case editor.ChartBar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(r.globalOptions(cfg, height)...)
		bar.SetXAxis(labels)
		for _, col := range cfg.DataBinding.YAxis {
			bar.AddSeries(col, barData(rows, col, labels), seriesOptions(cfg)...)
		}
		return renderChart(bar)
	case editor.ChartLine, editor.ChartArea:
		line := charts.NewLine()
		line.SetGlobalOptions(r.globalOptions(cfg, height)...)
		line.SetXAxis(labels)
		for _, col := range cfg.DataBinding.YAxis {
			line.AddSeries(col, lineData(rows, col, labels), seriesOptions(cfg)...)
		}
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		if cfg.Type == editor.ChartArea {
			line.SetSeriesOptions(charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: 0.3}))
		}
		return renderChart(line)
	case editor.ChartPie:
		pie := charts.NewPie()
		pie.SetGlobalOptions(r.globalOptions(cfg, height)...)
		pie.AddSeries(cfg.DataBinding.YAxis[0], pieData(rows, cfg.DataBinding.XAxis, cfg.DataBinding.YAxis[0]))
		if cfg.Style.DataLabelsEnabled() {
			pie.SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}))
		}
		return renderChart(pie)
	case editor.ChartCombination:
		barCol := cfg.DataBinding.YAxis[0]
		lineCol := barCol
		if len(cfg.DataBinding.YAxis) > 1 {
			lineCol = cfg.DataBinding.YAxis[1]
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(r.globalOptions(cfg, height)...)
		bar.SetXAxis(labels)
		bar.AddSeries(barCol, barData(rows, barCol, labels), seriesOptions(cfg)...)
		line := charts.NewLine()
		line.SetXAxis(labels)
		line.AddSeries(lineCol, lineData(rows, lineCol, labels), labelOptions(cfg)...)
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		bar.Overlap(line)
		return renderChart(bar)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChart, cfg.Type)
	}
}

func (r *EChartsRenderer) globalOptions(cfg editor.ChartConfig, height string) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:   r.theme,
		Width:   "100%",
		Height:  height,
		ChartID: chartDOMID(cfg.ID),
	}
	if r.assetsHost != "" {
		initOpts.AssetsHost = r.assetsHost
	}
	colors := cfg.Style.Colors
	if len(colors) == 0 {
		colors = editor.DefaultColors
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: cfg.Title}),
		charts.WithInitializationOpts(initOpts),
		charts.WithColorsOpts(opts.Colors(colors)),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func seriesOptions(cfg editor.ChartConfig) []charts.SeriesOpts {
	out := labelOptions(cfg)
	if cfg.Style.ThresholdEnabled() {
		out = append(out, charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
			Name:  "Target",
			YAxis: *cfg.Style.ThresholdValue,
		}))
	}
	return out
}

func labelOptions(cfg editor.ChartConfig) []charts.SeriesOpts {
	if !cfg.Style.DataLabelsEnabled() {
		return nil
	}
	return []charts.SeriesOpts{charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})}
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// axisLabels lists the x axis values in row order. Rows without the column
// are numbered.
func axisLabels(rows []editor.Row, column string) []string {
	labels := make([]string, len(rows))
	for i, row := range rows {
		label := ""
		if column != "" {
			label = formatValue(row[column])
		}
		if label == "" {
			label = strconv.Itoa(i + 1)
		}
		labels[i] = label
	}
	return labels
}

func barData(rows []editor.Row, column string, labels []string) []opts.BarData {
	data := make([]opts.BarData, len(rows))
	for i, row := range rows {
		data[i] = opts.BarData{Name: labels[i], Value: numericValue(row[column])}
	}
	return data
}

func lineData(rows []editor.Row, column string, labels []string) []opts.LineData {
	data := make([]opts.LineData, len(rows))
	for i, row := range rows {
		data[i] = opts.LineData{Name: labels[i], Value: numericValue(row[column])}
	}
	return data
}

func pieData(rows []editor.Row, nameColumn, valueColumn string) []opts.PieData {
	data := make([]opts.PieData, len(rows))
	for i, row := range rows {
		name := ""
		if nameColumn != "" {
			name = formatValue(row[nameColumn])
		}
		if name == "" {
			name = fmt.Sprintf("Slice %d", i+1)
		}
		data[i] = opts.PieData{Name: name, Value: numericValue(row[valueColumn])}
	}
	return data
}

func chartDOMID(id string) string {
	var b strings.Builder
	b.WriteString("chart_")
	for _, r := range id {
		if r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// numericValue coerces row cells to float64. Non-numeric cells plot as 0.
func numericValue(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}
}
