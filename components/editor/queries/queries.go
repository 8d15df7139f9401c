package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-report-builder/components/editor"
)

type stateService interface {
	State(sessionID string) (*editor.State, error)
	Validate(sessionID string) (editor.ValidationResult, error)
	Columns(ctx context.Context, sessionID, table string) ([]editor.ColumnInfo, error)
}

// SessionInput identifies an editing session.
type SessionInput struct {
	SessionID string
}

// StateView is the read model of a session.
type StateView struct {
	SessionID       string                         `json:"session_id"`
	TemplateID      int64                          `json:"template_id"`
	TemplateName    string                         `json:"template_name"`
	Description     string                         `json:"description"`
	Charts          []editor.ChartConfig           `json:"charts"`
	Layout          []editor.LayoutItem            `json:"layout"`
	SelectedChartID string                         `json:"selected_chart_id"`
	IsDirty         bool                           `json:"is_dirty"`
	IsSaving        bool                           `json:"is_saving"`
	IsLoading       bool                           `json:"is_loading"`
	Error           string                         `json:"error,omitempty"`
	DataSources     []editor.DataSource            `json:"data_sources"`
	ColumnCache     map[string][]editor.ColumnInfo `json:"column_cache"`
}

// NewStateView flattens state for transports.
func NewStateView(sessionID string, state *editor.State) StateView {
	tpl := state.Template()
	sources := state.DataSources
	if sources == nil {
		sources = []editor.DataSource{}
	}
	return StateView{
		SessionID:       sessionID,
		TemplateID:      state.TemplateID,
		TemplateName:    state.TemplateName,
		Description:     state.Description,
		Charts:          tpl.Charts,
		Layout:          tpl.Layout,
		SelectedChartID: state.SelectedChartID,
		IsDirty:         state.IsDirty,
		IsSaving:        state.IsSaving,
		IsLoading:       state.IsLoading,
		Error:           state.Error,
		DataSources:     sources,
		ColumnCache:     state.ColumnCache,
	}
}

// StateQuery reads the current state of a session.
type StateQuery struct {
	service stateService
}

func NewStateQuery(service stateService) *StateQuery {
	return &StateQuery{service: service}
}

var _ gocommand.Querier[SessionInput, StateView] = (*StateQuery)(nil)

func (q *StateQuery) Query(_ context.Context, msg SessionInput) (StateView, error) {
	state, err := q.service.State(msg.SessionID)
	if err != nil {
		return StateView{}, err
	}
	return NewStateView(msg.SessionID, state), nil
}

// ValidationQuery validates the whole template of a session.
type ValidationQuery struct {
	service stateService
}

func NewValidationQuery(service stateService) *ValidationQuery {
	return &ValidationQuery{service: service}
}

var _ gocommand.Querier[SessionInput, editor.ValidationResult] = (*ValidationQuery)(nil)

func (q *ValidationQuery) Query(_ context.Context, msg SessionInput) (editor.ValidationResult, error) {
	return q.service.Validate(msg.SessionID)
}

// ColumnsInput names the table whose columns are requested.
type ColumnsInput struct {
	SessionID string
	TableName string
}

// ColumnsQuery lists table columns through the session cache.
type ColumnsQuery struct {
	service stateService
}

func NewColumnsQuery(service stateService) *ColumnsQuery {
	return &ColumnsQuery{service: service}
}

var _ gocommand.Querier[ColumnsInput, []editor.ColumnInfo] = (*ColumnsQuery)(nil)

func (q *ColumnsQuery) Query(ctx context.Context, msg ColumnsInput) ([]editor.ColumnInfo, error) {
	return q.service.Columns(ctx, msg.SessionID, msg.TableName)
}

type templateLister interface {
	ListTemplates(ctx context.Context) ([]editor.TemplateSummary, error)
}

// TemplatesInput is the empty request of TemplatesQuery.
type TemplatesInput struct{}

// TemplatesQuery lists persisted templates.
type TemplatesQuery struct {
	service templateLister
}

func NewTemplatesQuery(service templateLister) *TemplatesQuery {
	return &TemplatesQuery{service: service}
}

var _ gocommand.Querier[TemplatesInput, []editor.TemplateSummary] = (*TemplatesQuery)(nil)

func (q *TemplatesQuery) Query(ctx context.Context, _ TemplatesInput) ([]editor.TemplateSummary, error) {
	return q.service.ListTemplates(ctx)
}
