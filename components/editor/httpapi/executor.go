package httpapi

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/components/editor/commands"
	"github.com/goliatone/go-report-builder/components/editor/queries"
)

// Executor is the transport-facing surface of the editor. Both the net/http
// handlers and the go-router adapter call through it.
type Executor interface {
	OpenSession(ctx context.Context) (string, error)
	CloseSession(ctx context.Context, sessionID string) error
	State(ctx context.Context, msg queries.SessionInput) (queries.StateView, error)
	Validate(ctx context.Context, msg queries.SessionInput) (editor.ValidationResult, error)
	Columns(ctx context.Context, msg queries.ColumnsInput) ([]editor.ColumnInfo, error)
	Templates(ctx context.Context) ([]editor.TemplateSummary, error)

	AddChart(ctx context.Context, msg commands.AddChartInput) error
	RemoveChart(ctx context.Context, msg commands.RemoveChartInput) error
	DuplicateChart(ctx context.Context, msg commands.DuplicateChartInput) error
	UpdateChart(ctx context.Context, msg commands.UpdateChartInput) error
	SelectChart(ctx context.Context, msg commands.SelectChartInput) error
	UpdateLayout(ctx context.Context, msg commands.UpdateLayoutInput) error
	UpdateMetadata(ctx context.Context, msg commands.UpdateMetadataInput) error
	LoadTemplate(ctx context.Context, msg commands.LoadTemplateInput) error
	SaveTemplate(ctx context.Context, msg commands.SaveTemplateInput) error
	ResetEditor(ctx context.Context, msg commands.ResetEditorInput) error
	CacheColumns(ctx context.Context, msg commands.CacheColumnsInput) error
	RefreshDataSources(ctx context.Context, msg commands.RefreshDataSourcesInput) error
}

type sessionManager interface {
	NewSession() (string, *editor.Editor)
	Session(sessionID string) (*editor.Editor, error)
	Close(sessionID string)
}

// CommandExecutor implements Executor with go-command commanders and queriers.
type CommandExecutor struct {
	Sessions sessionManager

	AddChartCmd           gocommand.Commander[commands.AddChartInput]
	RemoveChartCmd        gocommand.Commander[commands.RemoveChartInput]
	DuplicateChartCmd     gocommand.Commander[commands.DuplicateChartInput]
	UpdateChartCmd        gocommand.Commander[commands.UpdateChartInput]
	SelectChartCmd        gocommand.Commander[commands.SelectChartInput]
	UpdateLayoutCmd       gocommand.Commander[commands.UpdateLayoutInput]
	UpdateMetadataCmd     gocommand.Commander[commands.UpdateMetadataInput]
	LoadTemplateCmd       gocommand.Commander[commands.LoadTemplateInput]
	SaveTemplateCmd       gocommand.Commander[commands.SaveTemplateInput]
	ResetEditorCmd        gocommand.Commander[commands.ResetEditorInput]
	CacheColumnsCmd       gocommand.Commander[commands.CacheColumnsInput]
	RefreshDataSourcesCmd gocommand.Commander[commands.RefreshDataSourcesInput]

	StateQuery      gocommand.Querier[queries.SessionInput, queries.StateView]
	ValidationQuery gocommand.Querier[queries.SessionInput, editor.ValidationResult]
	ColumnsQuery    gocommand.Querier[queries.ColumnsInput, []editor.ColumnInfo]
	TemplatesQuery  gocommand.Querier[queries.TemplatesInput, []editor.TemplateSummary]
}

// NewCommandExecutor wires every command and query against service.
func NewCommandExecutor(service *editor.Service, telemetry commands.Telemetry) *CommandExecutor {
	return &CommandExecutor{
		Sessions:              service,
		AddChartCmd:           commands.NewAddChartCommand(service, telemetry),
		RemoveChartCmd:        commands.NewRemoveChartCommand(service, telemetry),
		DuplicateChartCmd:     commands.NewDuplicateChartCommand(service, telemetry),
		UpdateChartCmd:        commands.NewUpdateChartCommand(service, telemetry),
		SelectChartCmd:        commands.NewSelectChartCommand(service),
		UpdateLayoutCmd:       commands.NewUpdateLayoutCommand(service, telemetry),
		UpdateMetadataCmd:     commands.NewUpdateMetadataCommand(service),
		LoadTemplateCmd:       commands.NewLoadTemplateCommand(service, telemetry),
		SaveTemplateCmd:       commands.NewSaveTemplateCommand(service, telemetry),
		ResetEditorCmd:        commands.NewResetEditorCommand(service),
		CacheColumnsCmd:       commands.NewCacheColumnsCommand(service, telemetry),
		RefreshDataSourcesCmd: commands.NewRefreshDataSourcesCommand(service),
		StateQuery:            queries.NewStateQuery(service),
		ValidationQuery:       queries.NewValidationQuery(service),
		ColumnsQuery:          queries.NewColumnsQuery(service),
		TemplatesQuery:        queries.NewTemplatesQuery(service),
	}
}

var _ Executor = (*CommandExecutor)(nil)

var errNotConfigured = errors.New("httpapi: operation not configured")

func (e *CommandExecutor) OpenSession(context.Context) (string, error) {
	if e.Sessions == nil {
		return "", errNotConfigured
	}
	id, _ := e.Sessions.NewSession()
	return id, nil
}

func (e *CommandExecutor) CloseSession(_ context.Context, sessionID string) error {
	if e.Sessions == nil {
		return errNotConfigured
	}
	if _, err := e.Sessions.Session(sessionID); err != nil {
		return err
	}
	e.Sessions.Close(sessionID)
	return nil
}

func (e *CommandExecutor) State(ctx context.Context, msg queries.SessionInput) (queries.StateView, error) {
	return query(ctx, e.StateQuery, msg)
}

func (e *CommandExecutor) Validate(ctx context.Context, msg queries.SessionInput) (editor.ValidationResult, error) {
	return query(ctx, e.ValidationQuery, msg)
}

func (e *CommandExecutor) Columns(ctx context.Context, msg queries.ColumnsInput) ([]editor.ColumnInfo, error) {
	return query(ctx, e.ColumnsQuery, msg)
}

func (e *CommandExecutor) Templates(ctx context.Context) ([]editor.TemplateSummary, error) {
	return query(ctx, e.TemplatesQuery, queries.TemplatesInput{})
}

func (e *CommandExecutor) AddChart(ctx context.Context, msg commands.AddChartInput) error {
	return execute(ctx, e.AddChartCmd, msg)
}

func (e *CommandExecutor) RemoveChart(ctx context.Context, msg commands.RemoveChartInput) error {
	return execute(ctx, e.RemoveChartCmd, msg)
}

func (e *CommandExecutor) DuplicateChart(ctx context.Context, msg commands.DuplicateChartInput) error {
	return execute(ctx, e.DuplicateChartCmd, msg)
}

func (e *CommandExecutor) UpdateChart(ctx context.Context, msg commands.UpdateChartInput) error {
	return execute(ctx, e.UpdateChartCmd, msg)
}

func (e *CommandExecutor) SelectChart(ctx context.Context, msg commands.SelectChartInput) error {
	return execute(ctx, e.SelectChartCmd, msg)
}

func (e *CommandExecutor) UpdateLayout(ctx context.Context, msg commands.UpdateLayoutInput) error {
	return execute(ctx, e.UpdateLayoutCmd, msg)
}

func (e *CommandExecutor) UpdateMetadata(ctx context.Context, msg commands.UpdateMetadataInput) error {
	return execute(ctx, e.UpdateMetadataCmd, msg)
}

func (e *CommandExecutor) LoadTemplate(ctx context.Context, msg commands.LoadTemplateInput) error {
	return execute(ctx, e.LoadTemplateCmd, msg)
}

func (e *CommandExecutor) SaveTemplate(ctx context.Context, msg commands.SaveTemplateInput) error {
	return execute(ctx, e.SaveTemplateCmd, msg)
}

func (e *CommandExecutor) ResetEditor(ctx context.Context, msg commands.ResetEditorInput) error {
	return execute(ctx, e.ResetEditorCmd, msg)
}

func (e *CommandExecutor) CacheColumns(ctx context.Context, msg commands.CacheColumnsInput) error {
	return execute(ctx, e.CacheColumnsCmd, msg)
}

func (e *CommandExecutor) RefreshDataSources(ctx context.Context, msg commands.RefreshDataSourcesInput) error {
	return execute(ctx, e.RefreshDataSourcesCmd, msg)
}

func execute[T any](ctx context.Context, cmd gocommand.Commander[T], msg T) error {
	if cmd == nil {
		return errNotConfigured
	}
	return cmd.Execute(ctx, msg)
}

func query[T, R any](ctx context.Context, q gocommand.Querier[T, R], msg T) (R, error) {
	var zero R
	if q == nil {
		return zero, errNotConfigured
	}
	return q.Query(ctx, msg)
}
