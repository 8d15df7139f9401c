package editor

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const (
	documentVersionV1 = "1"
	// DocumentVersion is the current template document format version.
	DocumentVersion = documentVersionV1
)

// TemplateDocument is the portable YAML/JSON form of a template, used by the
// CLI and as the shape checked by DocumentValidator.
type TemplateDocument struct {
	Version     string        `json:"version" yaml:"version"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Layout      []LayoutItem  `json:"layout" yaml:"layout"`
	Charts      []ChartConfig `json:"charts" yaml:"charts"`
	Source      string        `json:"-" yaml:"-"`
}

// DocumentFromTemplate converts a template into its document form.
func DocumentFromTemplate(tpl Template) *TemplateDocument {
	tpl = cloneTemplate(tpl)
	if tpl.Layout == nil {
		tpl.Layout = []LayoutItem{}
	}
	return &TemplateDocument{
		Version:     documentVersionV1,
		Name:        tpl.Name,
		Description: tpl.Description,
		Layout:      tpl.Layout,
		Charts:      tpl.Charts,
	}
}

// Template converts the document into an unsaved template.
func (doc *TemplateDocument) Template() Template {
	if doc == nil {
		return Template{}
	}
	return cloneTemplate(Template{
		Name:        doc.Name,
		Description: doc.Description,
		Layout:      doc.Layout,
		Charts:      doc.Charts,
		IsActive:    true,
	})
}

// ReadDocument loads a template document from disk.
func ReadDocument(path string) (*TemplateDocument, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("editor: open document %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeDocument(f)
	if err != nil {
		return nil, fmt.Errorf("editor: decode document %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// DecodeDocument reads a YAML or JSON document. Unknown fields are rejected.
func DecodeDocument(r io.Reader) (*TemplateDocument, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc TemplateDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("editor: document is empty")
		}
		return nil, fmt.Errorf("editor: parse document: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// EncodeDocument writes doc as YAML, or as indented JSON when format is "json".
func EncodeDocument(w io.Writer, doc *TemplateDocument, format string) error {
	if doc == nil {
		return errors.New("editor: document is nil")
	}
	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("editor: encode document: %w", err)
	}
	return enc.Close()
}

// Validate checks the structural rules that the schema cannot express.
func (doc *TemplateDocument) Validate() error {
	if doc.Version != documentVersionV1 {
		return fmt.Errorf("editor: unsupported document version %q", doc.Version)
	}
	charts := make(map[string]struct{}, len(doc.Charts))
	for idx, cfg := range doc.Charts {
		if cfg.ID == "" {
			return fmt.Errorf("editor: chart at index %d is missing id", idx)
		}
		if !cfg.Type.Valid() {
			return fmt.Errorf("editor: chart %s has unsupported type %q", cfg.ID, cfg.Type)
		}
		if _, dup := charts[cfg.ID]; dup {
			return fmt.Errorf("editor: document duplicates chart id %s", cfg.ID)
		}
		charts[cfg.ID] = struct{}{}
	}
	placed := make(map[string]struct{}, len(doc.Layout))
	for _, item := range doc.Layout {
		if _, ok := charts[item.I]; !ok {
			return fmt.Errorf("editor: layout references unknown chart %s", item.I)
		}
		if _, dup := placed[item.I]; dup {
			return fmt.Errorf("editor: layout places chart %s twice", item.I)
		}
		placed[item.I] = struct{}{}
	}
	return nil
}

func (doc *TemplateDocument) applyDefaults() {
	if doc.Version == "" {
		doc.Version = documentVersionV1
	}
	if doc.Layout == nil {
		doc.Layout = []LayoutItem{}
	}
	if doc.Charts == nil {
		doc.Charts = []ChartConfig{}
	}
}

//go:embed schema/template.schema.json
var schemaFS embed.FS

const templateSchemaName = "template.schema.json"

// DocumentValidator checks documents against the embedded JSON schema.
type DocumentValidator struct {
	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// NewDocumentValidator builds a validator backed by jsonschema v5.
func NewDocumentValidator() *DocumentValidator {
	return &DocumentValidator{}
}

// Validate reports the first schema violation in doc.
func (v *DocumentValidator) Validate(doc *TemplateDocument) error {
	if doc == nil {
		return errors.New("editor: document is nil")
	}
	schema, err := v.schema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("editor: marshal document %q: %w", doc.Name, err)
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("editor: normalize document %q: %w", doc.Name, err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("editor: document %q failed schema validation: %w", doc.Name, err)
	}
	return nil
}

// ValidateTemplate validates tpl in its document form.
func (v *DocumentValidator) ValidateTemplate(tpl Template) error {
	return v.Validate(DocumentFromTemplate(tpl))
}

func (v *DocumentValidator) schema() (*jsonschema.Schema, error) {
	v.once.Do(func() {
		data, err := schemaFS.ReadFile("schema/" + templateSchemaName)
		if err != nil {
			v.err = fmt.Errorf("editor: read schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(templateSchemaName, bytes.NewReader(data)); err != nil {
			v.err = fmt.Errorf("editor: load schema: %w", err)
			return
		}
		v.compiled, v.err = compiler.Compile(templateSchemaName)
		if v.err != nil {
			v.err = fmt.Errorf("editor: compile schema: %w", v.err)
		}
	})
	return v.compiled, v.err
}

// TemplateSchema returns the raw embedded JSON schema.
func TemplateSchema() []byte {
	data, _ := schemaFS.ReadFile("schema/" + templateSchemaName)
	return data
}
