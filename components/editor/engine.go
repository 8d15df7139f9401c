package editor

import (
	"strconv"

	"github.com/google/uuid"
)

// IDGenerator returns a new unique chart id.
type IDGenerator func() string

// UUIDGenerator produces random UUIDv4 chart ids.
func UUIDGenerator() string {
	return uuid.NewString()
}

// SequenceGenerator returns a generator yielding ids in order, then falling
// back to chart-N once the list is exhausted. Useful for deterministic tests.
func SequenceGenerator(ids ...string) IDGenerator {
	next := 0
	return func() string {
		defer func() { next++ }()
		if next < len(ids) {
			return ids[next]
		}
		return "chart-" + strconv.Itoa(next+1)
	}
}

const maxIDAttempts = 8

// EngineOptions configures an Engine.
type EngineOptions struct {
	IDs    IDGenerator
	Locale string
}

// Engine is the single transition function over State. Reduce never mutates
// its input and returns the same pointer when an action changes nothing.
type Engine struct {
	ids   IDGenerator
	vocab vocabulary
}

// NewEngine builds an Engine with safe defaults.
func NewEngine(opts EngineOptions) *Engine {
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator
	}
	return &Engine{
		ids:   opts.IDs,
		vocab: vocabularyFor(opts.Locale),
	}
}

// Locale returns the locale used for generated titles.
func (e *Engine) Locale() string {
	return e.vocab.locale
}

// InitialState returns the empty editor state.
func (e *Engine) InitialState() *State {
	return NewState(e.vocab.locale)
}

// Reduce applies action to state and returns the next state.
func (e *Engine) Reduce(state *State, action Action) *State {
	if state == nil {
		state = e.InitialState()
	}
	switch a := action.(type) {
	case LoadTemplate:
		return e.loadTemplate(state, a.Template)
	case SetTemplateName:
		next := state.clone()
		next.TemplateName = a.Name
		next.IsDirty = true
		return next
	case SetDescription:
		next := state.clone()
		next.Description = a.Description
		next.IsDirty = true
		return next
	case UpdateLayout:
		next := state.clone()
		next.Layout = cloneLayout(a.Layout)
		next.IsDirty = true
		return next
	case AddChart:
		return e.addChart(state, a)
	case RemoveChart:
		return e.removeChart(state, a.ID)
	case DuplicateChart:
		return e.duplicateChart(state, a)
	case UpdateChart:
		existing, ok := state.Charts[a.ID]
		if !ok {
			return state
		}
		next := state.clone()
		next.Charts = state.withCharts(func(charts map[string]ChartConfig) {
			charts[a.ID] = a.Patch.apply(existing)
		})
		next.IsDirty = true
		return next
	case SelectChart:
		// Selecting an id that is not in the chart set is a no-op.
		if a.ID == state.SelectedChartID {
			return state
		}
		if a.ID != "" {
			if _, ok := state.Charts[a.ID]; !ok {
				return state
			}
		}
		next := state.clone()
		next.SelectedChartID = a.ID
		return next
	case SetDirty:
		if state.IsDirty == a.Dirty {
			return state
		}
		next := state.clone()
		next.IsDirty = a.Dirty
		return next
	case ResetEditor:
		next := e.InitialState()
		next.DataSources = state.DataSources
		if state.ColumnCache != nil {
			next.ColumnCache = state.ColumnCache
		}
		return next
	case SaveStart:
		next := state.clone()
		next.IsSaving = true
		next.Error = ""
		return next
	case SaveSuccess:
		next := state.clone()
		next.TemplateID = a.ID
		next.IsSaving = false
		next.IsDirty = false
		return next
	case SaveError:
		next := state.clone()
		next.IsSaving = false
		next.Error = a.Message
		return next
	case LoadStart:
		next := state.clone()
		next.IsLoading = true
		next.Error = ""
		return next
	case LoadError:
		next := state.clone()
		next.IsLoading = false
		next.Error = a.Message
		return next
	case SetDataSources:
		next := state.clone()
		next.DataSources = append([]DataSource(nil), a.Sources...)
		return next
	case CacheColumns:
		next := state.clone()
		cache := make(map[string][]ColumnInfo, len(state.ColumnCache)+1)
		for table, cols := range state.ColumnCache {
			cache[table] = cols
		}
		cache[a.TableName] = append([]ColumnInfo{}, a.Columns...)
		next.ColumnCache = cache
		return next
	default:
		return state
	}
}

func (e *Engine) loadTemplate(state *State, tpl Template) *State {
	charts := make(map[string]ChartConfig, len(tpl.Charts))
	for _, cfg := range tpl.Charts {
		if cfg.ID == "" {
			continue
		}
		cfg = cfg.Clone()
		if cfg.DataBinding.YAxis == nil {
			cfg.DataBinding.YAxis = []string{}
		}
		charts[cfg.ID] = cfg
	}

	layout := make([]LayoutItem, 0, len(charts))
	placed := make(map[string]struct{}, len(charts))
	for _, item := range tpl.Layout {
		if _, ok := charts[item.I]; !ok {
			continue
		}
		if _, dup := placed[item.I]; dup {
			continue
		}
		placed[item.I] = struct{}{}
		layout = append(layout, item)
	}
	next := state.clone()
	next.Layout = layout
	for _, cfg := range tpl.Charts {
		if _, ok := placed[cfg.ID]; ok || cfg.ID == "" {
			continue
		}
		placed[cfg.ID] = struct{}{}
		next.Layout = append(next.Layout, DefaultLayoutItem(cfg.ID, cfg.Type, next.layoutBottom()))
	}

	next.TemplateID = tpl.ID
	next.TemplateName = tpl.Name
	next.Description = tpl.Description
	next.Charts = charts
	next.SelectedChartID = ""
	next.IsDirty = false
	next.IsLoading = false
	next.Error = ""
	return next
}

func (e *Engine) addChart(state *State, a AddChart) *State {
	if !a.Type.Valid() {
		return state
	}
	id, ok := e.claimID(state, a.ID)
	if !ok {
		return state
	}
	next := state.clone()
	next.Charts = state.withCharts(func(charts map[string]ChartConfig) {
		charts[id] = DefaultChart(id, a.Type, e.vocab.locale)
	})
	next.Layout = append(cloneLayout(state.Layout), DefaultLayoutItem(id, a.Type, state.layoutBottom()))
	next.SelectedChartID = id
	next.IsDirty = true
	return next
}

func (e *Engine) removeChart(state *State, id string) *State {
	if _, ok := state.Charts[id]; !ok {
		return state
	}
	next := state.clone()
	next.Charts = state.withCharts(func(charts map[string]ChartConfig) {
		delete(charts, id)
	})
	layout := make([]LayoutItem, 0, len(state.Layout))
	for _, item := range state.Layout {
		if item.I != id {
			layout = append(layout, item)
		}
	}
	next.Layout = layout
	if state.SelectedChartID == id {
		next.SelectedChartID = ""
	}
	next.IsDirty = true
	return next
}

func (e *Engine) duplicateChart(state *State, a DuplicateChart) *State {
	source, ok := state.Charts[a.SourceID]
	if !ok {
		return state
	}
	sourceLayout, ok := state.LayoutFor(a.SourceID)
	if !ok {
		return state
	}
	id, ok := e.claimID(state, a.NewID)
	if !ok {
		return state
	}
	copied := source.Clone()
	copied.ID = id
	copied.Title = e.vocab.copyTitle(source.Title)

	placement := sourceLayout
	placement.I = id
	placement.Y = sourceLayout.Y + sourceLayout.H

	next := state.clone()
	next.Charts = state.withCharts(func(charts map[string]ChartConfig) {
		charts[id] = copied
	})
	next.Layout = append(cloneLayout(state.Layout), placement)
	next.SelectedChartID = id
	next.IsDirty = true
	return next
}

// claimID returns a chart id not yet present in state. A caller-supplied id
// that collides is rejected rather than replaced.
func (e *Engine) claimID(state *State, requested string) (string, bool) {
	if requested != "" {
		_, taken := state.Charts[requested]
		return requested, !taken
	}
	for range maxIDAttempts {
		id := e.ids()
		if id == "" {
			continue
		}
		if _, taken := state.Charts[id]; !taken {
			return id, true
		}
	}
	return "", false
}

// NewID draws an id from the generator that is unused in state.
func (e *Engine) NewID(state *State) (string, bool) {
	if state == nil {
		state = e.InitialState()
	}
	return e.claimID(state, "")
}

func cloneLayout(in []LayoutItem) []LayoutItem {
	out := make([]LayoutItem, len(in))
	copy(out, in)
	return out
}
