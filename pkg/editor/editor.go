package editor

import (
	core "github.com/goliatone/go-report-builder/components/editor"
)

// Service exposes the underlying components/editor.Service type.
type Service = core.Service

// Options re-export for convenience.
type Options = core.Options

// Template is the persisted report template document.
type Template = core.Template

// ChartConfig describes a single chart of a template.
type ChartConfig = core.ChartConfig

// NewService proxies to the internal constructor.
func NewService(opts Options) *Service {
	return core.NewService(opts)
}

// DecodeDocument proxies to the template document decoder.
var DecodeDocument = core.DecodeDocument

// TemplateDocument is the portable YAML/JSON form of a template.
type TemplateDocument = core.TemplateDocument
