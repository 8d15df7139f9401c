package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goliatone/go-report-builder/pkg/activity"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound  = errors.New("editor: session not found")
	ErrChartNotFound    = errors.New("editor: chart not found")
	ErrLoadInProgress   = errors.New("editor: a template load is already in progress")
	ErrSaveInProgress   = errors.New("editor: a template save is already in progress")
	ErrLayoutMismatch   = errors.New("editor: layout does not match the chart set")
	ErrInvalidChartType = errors.New("editor: unsupported chart type")
	ErrInvalidTemplate  = errors.New("editor: template id must be positive")

	errMissingTemplates = errors.New("editor: template repository not configured")
	errMissingSources   = errors.New("editor: data source directory not configured")
	errIDExhausted      = errors.New("editor: could not allocate a chart id")
)

const activityObjectTemplate = "report_template"

// Options configures the editor Service. Collaborators are interfaces so
// hosts can plug their own persistence and transports.
type Options struct {
	Templates      TemplateRepository
	Sources        DataSourceDirectory
	Sessions       SessionStore
	Engine         *Engine
	Validator      *DocumentValidator
	Telemetry      Telemetry
	ActivityHooks  activity.Hooks
	ActivityConfig activity.Config
	ChangeHook     ChangeHook
}

// Service orchestrates editing sessions on top of the template repository
// and the data source directory.
type Service struct {
	opts     Options
	activity *activity.Emitter
}

// NewService builds a Service instance with safe defaults.
func NewService(opts Options) *Service {
	if opts.Sessions == nil {
		opts.Sessions = NewInMemorySessionStore()
	}
	if opts.Engine == nil {
		opts.Engine = NewEngine(EngineOptions{})
	}
	if opts.Validator == nil {
		opts.Validator = NewDocumentValidator()
	}
	if opts.ChangeHook == nil {
		opts.ChangeHook = noopChangeHook{}
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	return &Service{
		opts:     opts,
		activity: activity.NewEmitter(opts.ActivityHooks, opts.ActivityConfig),
	}
}

// Engine returns the transition function shared by every session.
func (s *Service) Engine() *Engine {
	return s.opts.Engine
}

// NewSession opens a session under a fresh random id.
func (s *Service) NewSession() (string, *Editor) {
	id := uuid.NewString()
	return id, s.Open(id)
}

// Open returns the editor for sessionID, creating it when missing.
func (s *Service) Open(sessionID string) *Editor {
	return s.opts.Sessions.GetOrCreate(sessionID, func() *Editor {
		return NewEditor(s.opts.Engine)
	})
}

// Session returns an existing editor.
func (s *Service) Session(sessionID string) (*Editor, error) {
	ed, ok := s.opts.Sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return ed, nil
}

// Close drops the session.
func (s *Service) Close(sessionID string) {
	s.opts.Sessions.Delete(sessionID)
}

// State returns the current state of a session.
func (s *Service) State(sessionID string) (*State, error) {
	ed, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return ed.State(), nil
}

// Validate runs whole-template validation for a session.
func (s *Service) Validate(sessionID string) (ValidationResult, error) {
	ed, err := s.Session(sessionID)
	if err != nil {
		return ValidationResult{}, err
	}
	return ed.Validate(), nil
}

// ListTemplates lists persisted templates.
func (s *Service) ListTemplates(ctx context.Context) ([]TemplateSummary, error) {
	if s.opts.Templates == nil {
		return nil, errMissingTemplates
	}
	return s.opts.Templates.List(ctx)
}

// DeleteTemplate removes a persisted template.
func (s *Service) DeleteTemplate(ctx context.Context, templateID int64) error {
	if s.opts.Templates == nil {
		return errMissingTemplates
	}
	if templateID <= 0 {
		return ErrInvalidTemplate
	}
	if err := s.opts.Templates.Delete(ctx, templateID); err != nil {
		return fmt.Errorf("editor: delete template %d: %w", templateID, err)
	}
	s.recordTelemetry(ctx, "editor.template.delete", map[string]any{"template_id": templateID})
	s.emitActivity(ctx, "editor.template.delete", templateID, nil)
	return nil
}

// Load fetches templateID into the session, opening it when needed.
func (s *Service) Load(ctx context.Context, sessionID string, templateID int64) (*State, error) {
	if s.opts.Templates == nil {
		return nil, errMissingTemplates
	}
	if templateID <= 0 {
		return nil, ErrInvalidTemplate
	}
	ed := s.Open(sessionID)
	if _, err := ed.dispatchGuarded(func(st *State) error {
		switch {
		case st.IsLoading:
			return ErrLoadInProgress
		case st.IsSaving:
			return ErrSaveInProgress
		}
		return nil
	}, LoadStart{}); err != nil {
		return nil, err
	}
	s.notify(ctx, sessionID, ed, LoadStart{})

	tpl, err := s.opts.Templates.Load(ctx, templateID)
	if err == nil {
		err = s.opts.Validator.ValidateTemplate(tpl)
	}
	if err != nil {
		s.dispatch(ctx, sessionID, ed, LoadError{Message: err.Error()})
		s.recordTelemetry(ctx, "editor.template.load_error", map[string]any{
			"session_id":  sessionID,
			"template_id": templateID,
			"error":       err.Error(),
		})
		return ed.State(), fmt.Errorf("editor: load template %d: %w", templateID, err)
	}
	if tpl.ID == 0 {
		tpl.ID = templateID
	}
	s.dispatch(ctx, sessionID, ed, LoadTemplate{Template: tpl})
	state := ed.State()
	s.recordTelemetry(ctx, "editor.template.load", map[string]any{
		"session_id":  sessionID,
		"template_id": templateID,
		"charts":      len(state.Charts),
	})
	s.emitActivity(ctx, "editor.template.load", templateID, map[string]any{
		"session_id": sessionID,
		"name":       state.TemplateName,
	})
	return state, nil
}

// Save validates and persists the session's template. New templates are
// created, loaded ones updated. The returned id is the persisted id.
func (s *Service) Save(ctx context.Context, sessionID string) (int64, error) {
	if s.opts.Templates == nil {
		return 0, errMissingTemplates
	}
	ed, err := s.Session(sessionID)
	if err != nil {
		return 0, err
	}
	if result := ed.Validate(); !result.Valid {
		s.recordTelemetry(ctx, "editor.template.save_rejected", map[string]any{
			"session_id": sessionID,
			"errors":     len(result.Errors),
		})
		return 0, &ValidationFailure{Result: result}
	}
	if _, err := ed.dispatchGuarded(func(st *State) error {
		switch {
		case st.IsSaving:
			return ErrSaveInProgress
		case st.IsLoading:
			return ErrLoadInProgress
		}
		return nil
	}, SaveStart{}); err != nil {
		return 0, err
	}
	s.notify(ctx, sessionID, ed, SaveStart{})

	state := ed.State()
	tpl := state.Template()
	var id int64
	if state.IsNew() {
		id, err = s.opts.Templates.Create(ctx, tpl)
	} else {
		id, err = s.opts.Templates.Update(ctx, state.TemplateID, tpl)
	}
	if err != nil {
		s.dispatch(ctx, sessionID, ed, SaveError{Message: err.Error()})
		s.recordTelemetry(ctx, "editor.template.save_error", map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return 0, fmt.Errorf("editor: save template %q: %w", tpl.Name, err)
	}
	s.dispatch(ctx, sessionID, ed, SaveSuccess{ID: id})
	s.recordTelemetry(ctx, "editor.template.save", map[string]any{
		"session_id":  sessionID,
		"template_id": id,
		"created":     state.IsNew(),
		"charts":      len(tpl.Charts),
	})
	s.emitActivity(ctx, "editor.template.save", id, map[string]any{
		"session_id": sessionID,
		"name":       tpl.Name,
		"created":    state.IsNew(),
	})
	return id, nil
}

// RefreshDataSources reloads the data source directory into the session.
func (s *Service) RefreshDataSources(ctx context.Context, sessionID string) ([]DataSource, error) {
	if s.opts.Sources == nil {
		return nil, errMissingSources
	}
	ed, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	sources, err := s.opts.Sources.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("editor: list data sources: %w", err)
	}
	s.dispatch(ctx, sessionID, ed, SetDataSources{Sources: sources})
	s.recordTelemetry(ctx, "editor.sources.refresh", map[string]any{
		"session_id": sessionID,
		"count":      len(sources),
	})
	return ed.State().DataSources, nil
}

// Columns returns the columns of table, consulting the session cache first.
func (s *Service) Columns(ctx context.Context, sessionID, table string) ([]ColumnInfo, error) {
	ed, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if cols, ok := ed.State().ColumnCache[table]; ok {
		return append([]ColumnInfo{}, cols...), nil
	}
	if s.opts.Sources == nil {
		return nil, errMissingSources
	}
	cols, err := s.opts.Sources.ListColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("editor: list columns of %s: %w", table, err)
	}
	s.dispatch(ctx, sessionID, ed, CacheColumns{TableName: table, Columns: cols})
	return append([]ColumnInfo{}, cols...), nil
}

// CacheColumns stores a column list supplied by the caller.
func (s *Service) CacheColumns(ctx context.Context, sessionID, table string, cols []ColumnInfo) error {
	ed, err := s.Session(sessionID)
	if err != nil {
		return err
	}
	s.dispatch(ctx, sessionID, ed, CacheColumns{TableName: table, Columns: cols})
	return nil
}

// AddChart appends a default chart of type t and selects it.
func (s *Service) AddChart(ctx context.Context, sessionID string, t ChartType) (ChartConfig, error) {
	if !t.Valid() {
		return ChartConfig{}, fmt.Errorf("%w: %q", ErrInvalidChartType, t)
	}
	ed, err := s.Session(sessionID)
	if err != nil {
		return ChartConfig{}, err
	}
	id, ok := s.opts.Engine.NewID(ed.State())
	if !ok || !s.dispatch(ctx, sessionID, ed, AddChart{Type: t, ID: id}) {
		return ChartConfig{}, errIDExhausted
	}
	cfg, _ := ed.State().Chart(id)
	s.recordTelemetry(ctx, "editor.chart.add", map[string]any{
		"session_id": sessionID,
		"chart_id":   id,
		"chart_type": string(t),
	})
	return cfg, nil
}

// RemoveChart deletes a chart and its placement.
func (s *Service) RemoveChart(ctx context.Context, sessionID, chartID string) error {
	ed, err := s.sessionWithChart(sessionID, chartID)
	if err != nil {
		return err
	}
	s.dispatch(ctx, sessionID, ed, RemoveChart{ID: chartID})
	s.recordTelemetry(ctx, "editor.chart.remove", map[string]any{
		"session_id": sessionID,
		"chart_id":   chartID,
	})
	return nil
}

// DuplicateChart copies a chart directly below the original.
func (s *Service) DuplicateChart(ctx context.Context, sessionID, chartID string) (ChartConfig, error) {
	ed, err := s.sessionWithChart(sessionID, chartID)
	if err != nil {
		return ChartConfig{}, err
	}
	id, ok := s.opts.Engine.NewID(ed.State())
	if !ok || !s.dispatch(ctx, sessionID, ed, DuplicateChart{SourceID: chartID, NewID: id}) {
		return ChartConfig{}, fmt.Errorf("editor: duplicate chart %s: %w", chartID, errIDExhausted)
	}
	cfg, _ := ed.State().Chart(id)
	s.recordTelemetry(ctx, "editor.chart.duplicate", map[string]any{
		"session_id": sessionID,
		"source_id":  chartID,
		"chart_id":   id,
	})
	return cfg, nil
}

// UpdateChart merges patch over a chart.
func (s *Service) UpdateChart(ctx context.Context, sessionID, chartID string, patch ChartPatch) (ChartConfig, error) {
	ed, err := s.sessionWithChart(sessionID, chartID)
	if err != nil {
		return ChartConfig{}, err
	}
	s.dispatch(ctx, sessionID, ed, UpdateChart{ID: chartID, Patch: patch})
	cfg, ok := ed.State().Chart(chartID)
	if !ok {
		return ChartConfig{}, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	s.recordTelemetry(ctx, "editor.chart.update", map[string]any{
		"session_id": sessionID,
		"chart_id":   chartID,
	})
	return cfg, nil
}

// SelectChart focuses a chart. An empty id clears the selection and an
// unknown id leaves the state unchanged.
func (s *Service) SelectChart(ctx context.Context, sessionID, chartID string) error {
	var (
		ed  *Editor
		err error
	)
	if chartID == "" {
		ed, err = s.Session(sessionID)
	} else {
		ed, err = s.sessionWithChart(sessionID, chartID)
	}
	if err != nil {
		return err
	}
	s.dispatch(ctx, sessionID, ed, SelectChart{ID: chartID})
	return nil
}

// UpdateLayout replaces the layout. Every chart must appear exactly once and
// the layout may not reference unknown charts.
func (s *Service) UpdateLayout(ctx context.Context, sessionID string, layout []LayoutItem) error {
	ed, err := s.Session(sessionID)
	if err != nil {
		return err
	}
	if err := checkLayout(ed.State(), layout); err != nil {
		return err
	}
	s.dispatch(ctx, sessionID, ed, UpdateLayout{Layout: layout})
	s.recordTelemetry(ctx, "editor.layout.update", map[string]any{
		"session_id": sessionID,
		"items":      len(layout),
	})
	return nil
}

// Rename sets the template name.
func (s *Service) Rename(ctx context.Context, sessionID, name string) error {
	ed, err := s.Session(sessionID)
	if err != nil {
		return err
	}
	s.dispatch(ctx, sessionID, ed, SetTemplateName{Name: name})
	return nil
}

// Describe sets the template description.
func (s *Service) Describe(ctx context.Context, sessionID, description string) error {
	ed, err := s.Session(sessionID)
	if err != nil {
		return err
	}
	s.dispatch(ctx, sessionID, ed, SetDescription{Description: description})
	return nil
}

// Reset returns the session to an empty template, keeping its caches.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	ed, err := s.Session(sessionID)
	if err != nil {
		return err
	}
	previous := ed.State().TemplateID
	s.dispatch(ctx, sessionID, ed, ResetEditor{})
	s.recordTelemetry(ctx, "editor.reset", map[string]any{"session_id": sessionID})
	s.emitActivity(ctx, "editor.reset", previous, map[string]any{"session_id": sessionID})
	return nil
}

func (s *Service) sessionWithChart(sessionID, chartID string) (*Editor, error) {
	ed, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := ed.State().Chart(chartID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	return ed, nil
}

func (s *Service) dispatch(ctx context.Context, sessionID string, ed *Editor, action Action) bool {
	if !ed.Dispatch(action) {
		return false
	}
	s.notify(ctx, sessionID, ed, action)
	return true
}

func (s *Service) notify(ctx context.Context, sessionID string, ed *Editor, action Action) {
	event := newChangeEvent(sessionID, Change{Action: action, Current: ed.State()})
	if err := s.opts.ChangeHook.StateChanged(ctx, event); err != nil {
		s.recordTelemetry(ctx, "editor.hook.error", map[string]any{
			"session_id": sessionID,
			"kind":       event.Kind,
			"error":      err.Error(),
		})
	}
}

func (s *Service) recordTelemetry(ctx context.Context, event string, payload map[string]any) {
	s.opts.Telemetry.Record(ctx, event, payload)
}

func (s *Service) emitActivity(ctx context.Context, verb string, templateID int64, meta map[string]any) {
	if !s.activity.Enabled() {
		return
	}
	actor := activityContextFrom(ctx)
	objectID := ""
	if templateID > 0 {
		objectID = strconv.FormatInt(templateID, 10)
	}
	if err := s.activity.Emit(ctx, activity.Event{
		Verb:       verb,
		ActorID:    actor.ActorID,
		UserID:     actor.UserID,
		TenantID:   actor.TenantID,
		ObjectType: activityObjectTemplate,
		ObjectID:   objectID,
		Metadata:   meta,
	}); err != nil {
		s.recordTelemetry(ctx, "editor.activity.error", map[string]any{
			"verb":  verb,
			"error": err.Error(),
		})
	}
}

func checkLayout(state *State, layout []LayoutItem) error {
	seen := make(map[string]struct{}, len(layout))
	for _, item := range layout {
		if _, ok := state.Charts[item.I]; !ok {
			return fmt.Errorf("%w: unknown chart %q", ErrLayoutMismatch, item.I)
		}
		if _, dup := seen[item.I]; dup {
			return fmt.Errorf("%w: chart %q placed twice", ErrLayoutMismatch, item.I)
		}
		seen[item.I] = struct{}{}
	}
	if len(seen) != len(state.Charts) {
		return fmt.Errorf("%w: %d charts but %d placements", ErrLayoutMismatch, len(state.Charts), len(seen))
	}
	return nil
}
