package editor

import (
	"maps"
	"slices"
	"sync"
)

// Change describes one state transition observed by an Editor.
type Change struct {
	Action   Action
	Previous *State
	Current  *State
}

// Editor holds the current State of one editing session and exposes the
// mutation vocabulary as methods. It is safe for concurrent use.
type Editor struct {
	engine *Engine

	mu        sync.RWMutex
	state     *State
	listeners map[int]func(Change)
	nextID    int
}

// NewEditor creates an editor seeded with the engine's initial state.
func NewEditor(engine *Engine) *Editor {
	if engine == nil {
		engine = NewEngine(EngineOptions{})
	}
	return &Editor{
		engine:    engine,
		state:     engine.InitialState(),
		listeners: make(map[int]func(Change)),
	}
}

// Engine exposes the transition function backing the editor.
func (e *Editor) Engine() *Engine {
	return e.engine
}

// State returns the current state snapshot. Callers must not mutate it.
func (e *Editor) State() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Subscribe registers listener for every transition that produced a new
// state. The returned func removes it.
func (e *Editor) Subscribe(listener func(Change)) func() {
	if listener == nil {
		return func() {}
	}
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = listener
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Dispatch reduces action over the current state and reports whether the
// state changed.
func (e *Editor) Dispatch(action Action) bool {
	changed, _ := e.dispatchGuarded(nil, action)
	return changed
}

// dispatchGuarded runs guard against the current state under the write lock
// and only reduces action when guard returns nil.
func (e *Editor) dispatchGuarded(guard func(*State) error, action Action) (bool, error) {
	e.mu.Lock()
	prev := e.state
	if guard != nil {
		if err := guard(prev); err != nil {
			e.mu.Unlock()
			return false, err
		}
	}
	next := e.engine.Reduce(prev, action)
	if next == prev {
		e.mu.Unlock()
		return false, nil
	}
	e.state = next
	listeners := make([]func(Change), 0, len(e.listeners))
	for _, id := range sortedIntKeys(e.listeners) {
		listeners = append(listeners, e.listeners[id])
	}
	e.mu.Unlock()

	change := Change{Action: action, Previous: prev, Current: next}
	for _, listener := range listeners {
		listener(change)
	}
	return true, nil
}

func (e *Editor) LoadTemplate(tpl Template)           { e.Dispatch(LoadTemplate{Template: tpl}) }
func (e *Editor) SetTemplateName(name string)         { e.Dispatch(SetTemplateName{Name: name}) }
func (e *Editor) SetDescription(description string)   { e.Dispatch(SetDescription{Description: description}) }
func (e *Editor) UpdateLayout(layout []LayoutItem)    { e.Dispatch(UpdateLayout{Layout: layout}) }
func (e *Editor) RemoveChart(id string)               { e.Dispatch(RemoveChart{ID: id}) }
func (e *Editor) UpdateChart(id string, p ChartPatch) { e.Dispatch(UpdateChart{ID: id, Patch: p}) }
func (e *Editor) SetDirty(dirty bool)                 { e.Dispatch(SetDirty{Dirty: dirty}) }
func (e *Editor) Reset()                              { e.Dispatch(ResetEditor{}) }
func (e *Editor) StartSave()                          { e.Dispatch(SaveStart{}) }
func (e *Editor) SaveSuccess(id int64)                { e.Dispatch(SaveSuccess{ID: id}) }
func (e *Editor) SaveError(message string)            { e.Dispatch(SaveError{Message: message}) }
func (e *Editor) StartLoad()                          { e.Dispatch(LoadStart{}) }
func (e *Editor) LoadError(message string)            { e.Dispatch(LoadError{Message: message}) }
func (e *Editor) SetDataSources(sources []DataSource) { e.Dispatch(SetDataSources{Sources: sources}) }

// SelectChart focuses id. An empty id clears the selection and an id that is
// not in the chart set leaves the state unchanged.
func (e *Editor) SelectChart(id string) {
	e.Dispatch(SelectChart{ID: id})
}

func (e *Editor) CacheColumns(tableName string, columns []ColumnInfo) {
	e.Dispatch(CacheColumns{TableName: tableName, Columns: columns})
}

// AddChart appends a chart of type t and returns its id, or "" when t is not
// a supported chart type.
func (e *Editor) AddChart(t ChartType) string {
	if !t.Valid() {
		return ""
	}
	e.mu.RLock()
	id, ok := e.engine.NewID(e.state)
	e.mu.RUnlock()
	if !ok || !e.Dispatch(AddChart{Type: t, ID: id}) {
		return ""
	}
	return id
}

// DuplicateChart copies the chart stored under id and returns the new id.
func (e *Editor) DuplicateChart(id string) (string, bool) {
	e.mu.RLock()
	_, exists := e.state.Chart(id)
	newID, ok := "", false
	if exists {
		newID, ok = e.engine.NewID(e.state)
	}
	e.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.Dispatch(DuplicateChart{SourceID: id, NewID: newID}) {
		return "", false
	}
	return newID, true
}

// SelectedChart returns the selected chart. It reports false when nothing
// is selected or the selection no longer resolves.
func (e *Editor) SelectedChart() (ChartConfig, bool) {
	state := e.State()
	return state.Chart(state.SelectedChartID)
}

func (e *Editor) ChartCount() int {
	return len(e.State().Charts)
}

func (e *Editor) HasCharts() bool {
	return e.ChartCount() > 0
}

// ChartsArray lists the charts in layout order.
func (e *Editor) ChartsArray() []ChartConfig {
	return e.State().OrderedCharts()
}

// Template returns the wire snapshot of the current state.
func (e *Editor) Template() Template {
	return e.State().Template()
}

// ValidateChart validates cfg against the data sources known to the session.
func (e *Editor) ValidateChart(cfg ChartConfig) ValidationResult {
	return ValidateChart(cfg, e.State().DataSources)
}

// Validate validates every chart of the current template.
func (e *Editor) Validate() ValidationResult {
	return ValidateState(e.State())
}

func sortedIntKeys[V any](m map[int]V) []int {
	return slices.Sorted(maps.Keys(m))
}
