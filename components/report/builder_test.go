package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-report-builder/components/editor"
)

type stubRows struct {
	mu      sync.Mutex
	rows    map[string][]editor.Row
	err     map[string]error
	queries []editor.DataQuery
}

func (s *stubRows) QueryRows(_ context.Context, q editor.DataQuery) ([]editor.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if err := s.err[q.TableName]; err != nil {
		return nil, err
	}
	return s.rows[q.TableName], nil
}

type stubRenderer struct {
	err     error
	heights []string
}

func (s *stubRenderer) Render(_ context.Context, cfg editor.ChartConfig, rows []editor.Row, height string) (string, error) {
	s.heights = append(s.heights, height)
	if s.err != nil {
		return "", s.err
	}
	return "<div>" + cfg.ID + "</div>", nil
}

type recordingTelemetry struct {
	events []string
}

func (r *recordingTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	r.events = append(r.events, event)
}

func sampleTemplate() editor.Template {
	return editor.Template{
		ID:   7,
		Name: "Monthly sales",
		Layout: []editor.LayoutItem{
			{I: "b", X: 6, Y: 0, W: 6, H: 4},
			{I: "a", X: 0, Y: 0, W: 6, H: 5},
			{I: "ghost", X: 0, Y: 9, W: 6, H: 4},
		},
		Charts: []editor.ChartConfig{
			chartWith("a", editor.ChartBar, "sales", "month", "revenue"),
			chartWith("b", editor.ChartPie, "sales", "", "revenue"),
			chartWith("c", editor.ChartLine, "traffic", "day", "visits"),
		},
	}
}

func chartWith(id string, t editor.ChartType, source, x string, y ...string) editor.ChartConfig {
	return editor.ChartConfig{
		ID:          id,
		Type:        t,
		Title:       "Chart " + id,
		DataBinding: editor.DataBinding{DataSource: source, XAxis: x, YAxis: y},
	}
}

func TestBuilderRendersChartsInLayoutOrder(t *testing.T) {
	rows := &stubRows{rows: map[string][]editor.Row{
		"sales":   {{"month": "Jan", "revenue": 10}},
		"traffic": {{"day": "Mon", "visits": 3}},
	}}
	renderer := &stubRenderer{}
	telemetry := &recordingTelemetry{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	builder := NewBuilder(BuilderOptions{
		Rows:      rows,
		Renderer:  renderer,
		Telemetry: telemetry,
		Now:       func() time.Time { return now },
	})

	rep, err := builder.Build(context.Background(), sampleTemplate(), Request{StartDate: "2026-01-01", DateColumn: "month"})
	require.NoError(t, err)

	require.Len(t, rep.Charts, 3)
	assert.Equal(t, "b", rep.Charts[0].Chart.ID)
	assert.Equal(t, "a", rep.Charts[1].Chart.ID)
	assert.Equal(t, "c", rep.Charts[2].Chart.ID)
	assert.Equal(t, 5, rep.Charts[2].Layout.Y, "unplaced charts stack below the layout")
	assert.Equal(t, now, rep.GeneratedAt)
	assert.Equal(t, "<div>a</div>", rep.Charts[1].HTML)
	assert.Equal(t, []string{"216px", "276px", "216px"}, renderer.heights)

	require.Len(t, rows.queries, 3)
	assert.Equal(t, []string{"revenue"}, rows.queries[0].Columns)
	assert.Equal(t, editor.PreviewLimit(editor.ChartPie), rows.queries[0].Limit)
	assert.Equal(t, []string{"month", "revenue"}, rows.queries[1].Columns)
	assert.Equal(t, "2026-01-01", rows.queries[1].StartDate)
	assert.Equal(t, "month", rows.queries[1].DateColumn)
	assert.Contains(t, telemetry.events, "report.build")
}

func TestBuilderRecordsChartFailures(t *testing.T) {
	rows := &stubRows{
		rows: map[string][]editor.Row{"sales": {{"month": "Jan", "revenue": 10}}},
		err:  map[string]error{"traffic": errors.New("table offline")},
	}
	telemetry := &recordingTelemetry{}
	tpl := sampleTemplate()
	tpl.Charts = append(tpl.Charts, chartWith("d", editor.ChartArea, "", "x", "y"))
	builder := NewBuilder(BuilderOptions{
		Rows:      rows,
		Renderer:  &stubRenderer{},
		Telemetry: telemetry,
	})

	rep, err := builder.Build(context.Background(), tpl, Request{Limit: 50})
	require.NoError(t, err)
	require.Len(t, rep.Charts, 4)

	failed := map[string]string{}
	for _, c := range rep.Charts {
		if c.Failed() {
			failed[c.Chart.ID] = c.Error
		}
	}
	assert.Equal(t, map[string]string{
		"c": "table offline",
		"d": editor.MsgDataSourceRequired,
	}, failed)
	for _, q := range rows.queries {
		assert.Equal(t, 50, q.Limit)
	}
	assert.Contains(t, telemetry.events, "report.chart.query_error")
}

func TestBuilderRecordsRenderErrors(t *testing.T) {
	rows := &stubRows{rows: map[string][]editor.Row{}}
	telemetry := &recordingTelemetry{}
	builder := NewBuilder(BuilderOptions{
		Rows:      rows,
		Renderer:  &stubRenderer{err: errors.New("no canvas")},
		Telemetry: telemetry,
	})

	rep, err := builder.Build(context.Background(), sampleTemplate(), Request{})
	require.NoError(t, err)
	for _, c := range rep.Charts {
		assert.Equal(t, "no canvas", c.Error)
		assert.NotNil(t, c.Rows)
	}
	assert.Contains(t, telemetry.events, "report.chart.render_error")
}

func TestBuilderRequiresRows(t *testing.T) {
	_, err := NewBuilder(BuilderOptions{}).Build(context.Background(), sampleTemplate(), Request{})
	assert.ErrorIs(t, err, errMissingRows)
}

func TestBuilderStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	builder := NewBuilder(BuilderOptions{Rows: &stubRows{}, Renderer: &stubRenderer{}})
	_, err := builder.Build(ctx, sampleTemplate(), Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryColumnsDeduplicates(t *testing.T) {
	cfg := chartWith("a", editor.ChartCombination, "sales", "month", "revenue", "month", "revenue", "rate")
	assert.Equal(t, []string{"month", "revenue", "rate"}, QueryColumns(cfg))
}

func TestChartHeight(t *testing.T) {
	assert.Equal(t, "216px", ChartHeight(editor.LayoutItem{H: 4}))
	assert.Equal(t, DefaultChartHeight, ChartHeight(editor.LayoutItem{}))
}
