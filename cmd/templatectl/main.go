package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ettle/strcase"

	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/components/report"
)

type Globals struct {
	LogLevel   string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Minimum log level."`
	LogFormat  string `name:"log-format" default:"text" enum:"text,json" help:"Log output format."`
	APIURL     string `name:"api-url" env:"REPORT_BUILDER_API_URL" help:"Base URL of the reports backend."`
	APIKey     string `name:"api-key" env:"REPORT_BUILDER_API_KEY" help:"Bearer token for the reports backend."`
	DB         string `name:"db" env:"REPORT_BUILDER_DB" type:"path" help:"Path to a local libSQL database (takes precedence over --api-url)."`
	EChartsCDN string `name:"echarts-cdn" env:"REPORT_BUILDER_ECHARTS_CDN" help:"Host serving the ECharts assets."`
}

type cli struct {
	Globals

	New      newCmd      `cmd:"" help:"Scaffold a report template document."`
	Validate validateCmd `cmd:"" help:"Validate a template document against the data sources."`
	Render   renderCmd   `cmd:"" help:"Render a template document as an HTML report page."`
	Export   exportCmd   `cmd:"" help:"Export a template document as an XLSX workbook."`
	Serve    serveCmd    `cmd:"" help:"Serve the editor API, preview and change feed."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("templatectl"),
		kong.Description("Report template utility for go-report-builder."),
		kong.UsageOnError(),
	)
	err := ctx.Run(context.Background(), &c.Globals)
	ctx.FatalIfErrorf(err)
}

func (g *Globals) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if g.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (g *Globals) chartRenderer() *report.EChartsRenderer {
	options := []report.EChartsOption{}
	if g.EChartsCDN != "" {
		options = append(options, report.WithAssetsHost(g.EChartsCDN))
	}
	return report.NewEChartsRenderer(options...)
}

type newCmd struct {
	Name        string   `required:"" help:"Template name."`
	Description string   `help:"Template description."`
	Chart       []string `help:"Chart types to add, in order (bar,line,pie,area,combination)."`
	Locale      string   `default:"en" help:"Locale of generated chart titles (en, ko)."`
	Format      string   `default:"yaml" enum:"yaml,json" help:"Document format."`
	Out         string   `type:"path" help:"Output path (defaults to <name>.<format>)."`
	Overwrite   bool     `help:"Overwrite an existing document."`
}

func (cmd *newCmd) Run(_ context.Context, g *Globals) error {
	ed := editor.NewEditor(editor.NewEngine(editor.EngineOptions{Locale: cmd.Locale}))
	ed.SetTemplateName(cmd.Name)
	ed.SetDescription(cmd.Description)
	for _, t := range cmd.Chart {
		if ed.AddChart(editor.ChartType(t)) == "" {
			return fmt.Errorf("templatectl: could not add %s chart", t)
		}
	}

	path := cmd.Out
	if path == "" {
		path = documentFileName(cmd.Name, cmd.Format)
	}
	if _, err := os.Stat(path); err == nil && !cmd.Overwrite {
		return fmt.Errorf("templatectl: %s already exists (use --overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("templatectl: mkdir %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("templatectl: create %s: %w", path, err)
	}
	defer file.Close()
	if err := editor.EncodeDocument(file, editor.DocumentFromTemplate(ed.Template()), cmd.Format); err != nil {
		return err
	}
	g.logger(os.Stderr).Info("template scaffolded", "path", path, "charts", ed.ChartCount())
	return nil
}

type validateCmd struct {
	Path  string   `arg:"" type:"existingfile" help:"Template document (YAML or JSON)."`
	Table []string `help:"Known data source tables, used when no backend is configured."`
}

func (cmd *validateCmd) Run(ctx context.Context, g *Globals) error {
	doc, err := editor.ReadDocument(cmd.Path)
	if err != nil {
		return err
	}
	sources, err := cmd.sources(ctx, g)
	if err != nil {
		return err
	}

	ed := editor.NewEditor(nil)
	ed.SetDataSources(sources)
	ed.LoadTemplate(doc.Template())
	result := ed.Validate()
	if result.Valid {
		fmt.Fprintf(os.Stdout, "✓ %s is valid (%d charts)\n", cmd.Path, ed.ChartCount())
		return nil
	}
	for _, verr := range result.Errors {
		fmt.Fprintf(os.Stdout, "✗ %s: %s\n", verr.Field, verr.Message)
	}
	return &editor.ValidationFailure{Result: result}
}

func (cmd *validateCmd) sources(ctx context.Context, g *Globals) ([]editor.DataSource, error) {
	if g.DB == "" && g.APIURL == "" {
		sources := make([]editor.DataSource, 0, len(cmd.Table))
		for _, table := range cmd.Table {
			sources = append(sources, editor.DataSource{Name: table, TableName: table})
		}
		return sources, nil
	}
	b, err := openBackend(ctx, g)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return b.Sources.ListSources(ctx)
}

type ReportFlags struct {
	Rows       string `type:"existingfile" help:"YAML/JSON file mapping table names to rows (used instead of a backend)."`
	StartDate  string `name:"start-date" help:"Inclusive lower bound of the date column."`
	EndDate    string `name:"end-date" help:"Inclusive upper bound of the date column."`
	DateColumn string `name:"date-column" help:"Column the date range applies to."`
	Limit      int    `help:"Rows per chart (0 uses the preview limit of each chart type)."`
}

func (f ReportFlags) request() report.Request {
	return report.Request{
		StartDate:  f.StartDate,
		EndDate:    f.EndDate,
		DateColumn: f.DateColumn,
		Limit:      f.Limit,
	}
}

// build replays the document at path into a report.
func (f ReportFlags) build(ctx context.Context, g *Globals, path string) (report.Report, error) {
	doc, err := editor.ReadDocument(path)
	if err != nil {
		return report.Report{}, err
	}
	var rows editor.RowSource
	if f.Rows != "" {
		fileRows, err := readRowsFile(f.Rows)
		if err != nil {
			return report.Report{}, err
		}
		rows = fileRows
	} else {
		b, err := openBackend(ctx, g)
		if err != nil {
			return report.Report{}, err
		}
		defer b.Close()
		rows = b.Rows
	}
	logger := g.logger(os.Stderr)
	builder := report.NewBuilder(report.BuilderOptions{
		Rows:      rows,
		Renderer:  g.chartRenderer(),
		Telemetry: editor.NewSlogTelemetry(logger, slog.LevelDebug),
	})
	rep, err := builder.Build(ctx, doc.Template(), f.request())
	if err != nil {
		return report.Report{}, err
	}
	for _, chart := range rep.Charts {
		if chart.Failed() {
			logger.Warn("chart not rendered", "chart_id", chart.Chart.ID, "title", chart.Chart.Title, "error", chart.Error)
		}
	}
	return rep, nil
}

type renderCmd struct {
	ReportFlags
	Path string `arg:"" type:"existingfile" help:"Template document (YAML or JSON)."`
	Out  string `type:"path" help:"Output HTML path (defaults to <name>.html)."`
}

func (cmd *renderCmd) Run(ctx context.Context, g *Globals) error {
	rep, err := cmd.build(ctx, g, cmd.Path)
	if err != nil {
		return err
	}
	page, err := report.NewPageRenderer(nil)
	if err != nil {
		return err
	}
	path := outputPath(cmd.Out, rep.Template.Name, "html")
	return writeFile(path, func(w io.Writer) error { return page.Render(rep, w) })
}

type exportCmd struct {
	ReportFlags
	Path string `arg:"" type:"existingfile" help:"Template document (YAML or JSON)."`
	Out  string `type:"path" help:"Output XLSX path (defaults to <name>.xlsx)."`
}

func (cmd *exportCmd) Run(ctx context.Context, g *Globals) error {
	rep, err := cmd.build(ctx, g, cmd.Path)
	if err != nil {
		return err
	}
	path := outputPath(cmd.Out, rep.Template.Name, "xlsx")
	return writeFile(path, func(w io.Writer) error { return report.WriteWorkbook(w, rep) })
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("templatectl: create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("templatectl: close %s: %w", path, err)
	}
	fmt.Fprintf(os.Stdout, "✓ Wrote %s\n", path)
	return nil
}

func outputPath(out, name, ext string) string {
	if out != "" {
		return out
	}
	return documentFileName(name, ext)
}

// documentFileName derives a snake_case file name from a template name.
func documentFileName(name, ext string) string {
	base := strcase.ToSnake(strings.TrimSpace(name))
	if base == "" {
		base = "report"
	}
	return base + "." + ext
}

var errNoBackend = errors.New("templatectl: no backend configured (set --db, --api-url or --rows)")
