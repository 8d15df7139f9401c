package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"time"

	template "github.com/goliatone/go-template"

	"github.com/goliatone/go-report-builder/components/editor"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const pageTemplate = "report.html"

// Renderer describes the template renderer contract used for report pages.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}

// NewTemplateRenderer creates a go-template renderer backed by the embedded templates.
func NewTemplateRenderer() (Renderer, error) {
	return template.NewRenderer(
		template.WithFS(embeddedTemplates),
		template.WithBaseDir("templates"),
		template.WithExtension(".html"),
	)
}

// PageRenderer renders built reports as a standalone HTML grid page.
type PageRenderer struct {
	renderer Renderer
}

// NewPageRenderer wraps renderer; nil selects the embedded templates.
func NewPageRenderer(renderer Renderer) (*PageRenderer, error) {
	if renderer == nil {
		var err error
		renderer, err = NewTemplateRenderer()
		if err != nil {
			return nil, fmt.Errorf("report: load page templates: %w", err)
		}
	}
	return &PageRenderer{renderer: renderer}, nil
}

// Render writes the page for rep to w.
func (p *PageRenderer) Render(rep Report, w io.Writer) error {
	if _, err := p.renderer.Render(pageTemplate, PageData(rep), w); err != nil {
		return fmt.Errorf("report: render page: %w", err)
	}
	return nil
}

// PageData flattens rep into the template context.
func PageData(rep Report) map[string]any {
	charts := make([]map[string]any, 0, len(rep.Charts))
	for _, c := range rep.Charts {
		charts = append(charts, map[string]any{
			"id":     chartDOMID(c.Chart.ID),
			"title":  c.Chart.Title,
			"type":   string(c.Chart.Type),
			"column": c.Layout.X + 1,
			"row":    c.Layout.Y + 1,
			"width":  max(c.Layout.W, 1),
			"height": max(c.Layout.H, 1),
			"html":   c.HTML,
			"error":  c.Error,
		})
	}
	title := rep.Template.Name
	if title == "" {
		title = "Report"
	}
	return map[string]any{
		"title":         title,
		"description":   rep.Template.Description,
		"columns":       editor.GridColumns,
		"row_height":    editor.GridRowHeight,
		"charts":        charts,
		"empty_message": "This template has no charts.",
		"generated_at":  rep.GeneratedAt.Format(time.RFC3339),
	}
}

var errMissingBuilder = errors.New("report: builder not configured")

// Previewer renders the page of an unsaved template with preview row limits.
type Previewer struct {
	Builder *Builder
	Page    *PageRenderer
	Request Request
}

// RenderTemplate builds tpl and returns the rendered page.
func (p *Previewer) RenderTemplate(ctx context.Context, tpl editor.Template) ([]byte, error) {
	if p.Builder == nil || p.Page == nil {
		return nil, errMissingBuilder
	}
	rep, err := p.Builder.Build(ctx, tpl, p.Request)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := p.Page.Render(rep, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
