package editor

// State is the in-memory model of a template being edited. States are treated
// as immutable values: the Engine never writes to a State it was given.
type State struct {
	// TemplateID is the persisted template id, 0 while the template is unsaved.
	TemplateID   int64
	TemplateName string
	Description  string

	Charts          map[string]ChartConfig
	Layout          []LayoutItem
	SelectedChartID string

	IsDirty   bool
	IsSaving  bool
	IsLoading bool
	Error     string

	DataSources []DataSource
	// ColumnCache is keyed by table name and never invalidated within a session.
	ColumnCache map[string][]ColumnInfo
}

// NewState returns an empty state using the default template name for locale.
func NewState(locale string) *State {
	return &State{
		TemplateName: vocabularyFor(locale).TemplateName,
		Charts:       map[string]ChartConfig{},
		Layout:       []LayoutItem{},
		ColumnCache:  map[string][]ColumnInfo{},
	}
}

// IsNew reports whether the template has never been saved.
func (s *State) IsNew() bool {
	return s == nil || s.TemplateID == 0
}

// Chart returns the chart stored under id.
func (s *State) Chart(id string) (ChartConfig, bool) {
	if s == nil || id == "" {
		return ChartConfig{}, false
	}
	cfg, ok := s.Charts[id]
	return cfg, ok
}

// LayoutFor returns the layout item for id.
func (s *State) LayoutFor(id string) (LayoutItem, bool) {
	if s == nil {
		return LayoutItem{}, false
	}
	for _, item := range s.Layout {
		if item.I == id {
			return item, true
		}
	}
	return LayoutItem{}, false
}

// OrderedCharts returns the charts in layout order followed by any chart that
// has no layout entry.
func (s *State) OrderedCharts() []ChartConfig {
	if s == nil || len(s.Charts) == 0 {
		return []ChartConfig{}
	}
	out := make([]ChartConfig, 0, len(s.Charts))
	seen := make(map[string]struct{}, len(s.Charts))
	for _, item := range s.Layout {
		cfg, ok := s.Charts[item.I]
		if !ok {
			continue
		}
		if _, dup := seen[item.I]; dup {
			continue
		}
		seen[item.I] = struct{}{}
		out = append(out, cfg)
	}
	if len(out) == len(s.Charts) {
		return out
	}
	for _, id := range sortedKeys(s.Charts) {
		if _, ok := seen[id]; !ok {
			out = append(out, s.Charts[id])
		}
	}
	return out
}

// Template serializes the state into its persisted form.
func (s *State) Template() Template {
	if s == nil {
		return Template{Layout: []LayoutItem{}, Charts: []ChartConfig{}}
	}
	charts := s.OrderedCharts()
	for i := range charts {
		charts[i] = charts[i].Clone()
	}
	layout := make([]LayoutItem, len(s.Layout))
	copy(layout, s.Layout)
	return Template{
		ID:          s.TemplateID,
		Name:        s.TemplateName,
		Description: s.Description,
		Layout:      layout,
		Charts:      charts,
		IsActive:    true,
	}
}

// clone returns a shallow copy; callers replace the collections they change.
func (s *State) clone() *State {
	next := *s
	return &next
}

func (s *State) withCharts(fn func(map[string]ChartConfig)) map[string]ChartConfig {
	out := make(map[string]ChartConfig, len(s.Charts)+1)
	for id, cfg := range s.Charts {
		out[id] = cfg
	}
	fn(out)
	return out
}

func (s *State) layoutBottom() int {
	bottom := 0
	for _, item := range s.Layout {
		if end := item.Y + item.H; end > bottom {
			bottom = end
		}
	}
	return bottom
}
