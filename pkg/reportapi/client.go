package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-report-builder/components/editor"
)

// Config configures the report backend client.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client talks to the report backend REST API. It serves as the template
// repository, the data source directory and the row source of the editor.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu      sync.RWMutex
	sources map[string]int64
}

var (
	_ editor.TemplateRepository  = (*Client)(nil)
	_ editor.DataSourceDirectory = (*Client)(nil)
	_ editor.RowSource           = (*Client)(nil)
)

// NewClient builds a client for the backend at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("reportapi: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  httpClient,
		sources: map[string]int64{},
	}, nil
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode       int
	Message          string
	AvailableColumns []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reportapi: remote error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) List(ctx context.Context) ([]editor.TemplateSummary, error) {
	var resp []templatePayload
	if err := c.do(ctx, http.MethodGet, "/api/reports/templates/", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]editor.TemplateSummary, len(resp))
	for i, tpl := range resp {
		out[i] = editor.Summarize(tpl.toTemplate())
	}
	return out, nil
}

func (c *Client) Load(ctx context.Context, id int64) (editor.Template, error) {
	var resp templatePayload
	if err := c.do(ctx, http.MethodGet, templatePath(id), nil, &resp); err != nil {
		return editor.Template{}, templateError(id, err)
	}
	return resp.toTemplate(), nil
}

func (c *Client) Create(ctx context.Context, tpl editor.Template) (int64, error) {
	var resp templatePayload
	if err := c.do(ctx, http.MethodPost, "/api/reports/templates/", newTemplatePayload(tpl), &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Update sends a partial update, matching the backend's PATCH semantics.
func (c *Client) Update(ctx context.Context, id int64, tpl editor.Template) (int64, error) {
	var resp templatePayload
	if err := c.do(ctx, http.MethodPatch, templatePath(id), newTemplatePayload(tpl), &resp); err != nil {
		return 0, templateError(id, err)
	}
	if resp.ID == 0 {
		return id, nil
	}
	return resp.ID, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return templateError(id, c.do(ctx, http.MethodDelete, templatePath(id), nil, nil))
}

// ListSources lists the registered data sources and remembers their ids for
// column lookups.
func (c *Client) ListSources(ctx context.Context) ([]editor.DataSource, error) {
	var resp []editor.DataSource
	if err := c.do(ctx, http.MethodGet, "/api/data-sources/sources/", nil, &resp); err != nil {
		return nil, err
	}
	c.mu.Lock()
	for _, ds := range resp {
		c.sources[ds.TableName] = ds.ID
	}
	c.mu.Unlock()
	if resp == nil {
		resp = []editor.DataSource{}
	}
	return resp, nil
}

// ListColumns resolves tableName to its source id and fetches the columns.
func (c *Client) ListColumns(ctx context.Context, tableName string) ([]editor.ColumnInfo, error) {
	id, err := c.sourceID(ctx, tableName)
	if err != nil {
		return nil, err
	}
	var resp columnsResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/data-sources/sources/%d/columns/", id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.columnInfo()
}

// QueryRows runs a data query against a registered table.
func (c *Client) QueryRows(ctx context.Context, query editor.DataQuery) ([]editor.Row, error) {
	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/api/data-sources/query/", query, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []editor.Row{}, nil
	}
	return resp.Data, nil
}

func (c *Client) sourceID(ctx context.Context, tableName string) (int64, error) {
	c.mu.RLock()
	id, ok := c.sources[tableName]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}
	if _, err := c.ListSources(ctx); err != nil {
		return 0, err
	}
	c.mu.RLock()
	id, ok = c.sources[tableName]
	c.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", editor.ErrTableNotFound, tableName)
	}
	return id, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, target any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("reportapi: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("reportapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reportapi: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("reportapi: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	var payload struct {
		Error            string   `json:"error"`
		Detail           string   `json:"detail"`
		AvailableColumns []string `json:"available_columns"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != "":
			apiErr.Message = payload.Error
		case payload.Detail != "":
			apiErr.Message = payload.Detail
		}
		apiErr.AvailableColumns = payload.AvailableColumns
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func templateError(id int64, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %d", editor.ErrTemplateNotFound, id)
	}
	return err
}

func templatePath(id int64) string {
	return fmt.Sprintf("/api/reports/templates/%d/", id)
}

type templatePayload struct {
	ID          int64                `json:"id,omitempty"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Layout      []editor.LayoutItem  `json:"layout"`
	Charts      []editor.ChartConfig `json:"charts"`
	IsActive    bool                 `json:"is_active"`
	CreatedAt   time.Time            `json:"created_at,omitzero"`
	UpdatedAt   time.Time            `json:"updated_at,omitzero"`
}

func newTemplatePayload(tpl editor.Template) templatePayload {
	p := templatePayload{
		Name:        tpl.Name,
		Description: tpl.Description,
		Layout:      tpl.Layout,
		Charts:      tpl.Charts,
		IsActive:    true,
	}
	if p.Layout == nil {
		p.Layout = []editor.LayoutItem{}
	}
	if p.Charts == nil {
		p.Charts = []editor.ChartConfig{}
	}
	return p
}

func (p templatePayload) toTemplate() editor.Template {
	return editor.Template{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Layout:      p.Layout,
		Charts:      p.Charts,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// columnsResponse carries either plain column names or {name, type} objects.
type columnsResponse struct {
	TableName string            `json:"table_name"`
	Columns   []json.RawMessage `json:"columns"`
}

func (r columnsResponse) columnInfo() ([]editor.ColumnInfo, error) {
	out := make([]editor.ColumnInfo, 0, len(r.Columns))
	for _, raw := range r.Columns {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			out = append(out, editor.ColumnInfo{Name: name, Type: editor.ColumnString})
			continue
		}
		var col editor.ColumnInfo
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, fmt.Errorf("reportapi: decode column of %s: %w", r.TableName, err)
		}
		if col.Type == "" {
			col.Type = editor.ColumnString
		}
		out = append(out, col)
	}
	return out, nil
}

type queryResponse struct {
	Data      []editor.Row `json:"data"`
	Count     int          `json:"count"`
	TableName string       `json:"table_name"`
}
