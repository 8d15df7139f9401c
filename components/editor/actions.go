package editor

// Action is one member of the closed set of editor mutations.
type Action interface {
	// Kind names the action for telemetry and change events.
	Kind() string
	action()
}

// ChartPatch is a typed partial update of a ChartConfig. Nil fields are left
// untouched; id and type cannot be patched.
type ChartPatch struct {
	Title       *string      `json:"title,omitempty"`
	DataBinding *DataBinding `json:"dataBinding,omitempty"`
	Style       *ChartStyle  `json:"style,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p ChartPatch) IsZero() bool {
	return p.Title == nil && p.DataBinding == nil && p.Style == nil
}

func (p ChartPatch) apply(cfg ChartConfig) ChartConfig {
	out := cfg.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.DataBinding != nil {
		out.DataBinding = DataBinding{
			DataSource: p.DataBinding.DataSource,
			XAxis:      p.DataBinding.XAxis,
			YAxis:      cloneStrings(p.DataBinding.YAxis),
		}
		if out.DataBinding.YAxis == nil {
			out.DataBinding.YAxis = []string{}
		}
	}
	if p.Style != nil {
		out.Style = p.Style.Clone()
	}
	return out
}

type (
	// LoadTemplate hydrates the state from a loaded template (load success).
	LoadTemplate struct{ Template Template }
	// SetTemplateName renames the template.
	SetTemplateName struct{ Name string }
	// SetDescription changes the template description.
	SetDescription struct{ Description string }
	// UpdateLayout replaces the layout wholesale.
	UpdateLayout struct{ Layout []LayoutItem }
	// AddChart appends a default chart of Type. ID is generated when empty.
	AddChart struct {
		Type ChartType
		ID   string
	}
	// RemoveChart deletes a chart and its layout entry.
	RemoveChart struct{ ID string }
	// DuplicateChart copies SourceID below itself. NewID is generated when empty.
	DuplicateChart struct {
		SourceID string
		NewID    string
	}
	// UpdateChart merges Patch over the chart stored under ID.
	UpdateChart struct {
		ID    string
		Patch ChartPatch
	}
	// SelectChart focuses a chart; an empty ID clears the selection.
	SelectChart struct{ ID string }
	// SetDirty overrides the dirty flag.
	SetDirty struct{ Dirty bool }
	// ResetEditor returns to the empty state, keeping session caches.
	ResetEditor struct{}
	// SaveStart marks a save as in flight.
	SaveStart struct{}
	// SaveSuccess records the id returned by persistence.
	SaveSuccess struct{ ID int64 }
	// SaveError records a failed save.
	SaveError struct{ Message string }
	// LoadStart marks a load as in flight.
	LoadStart struct{}
	// LoadError records a failed load.
	LoadError struct{ Message string }
	// SetDataSources replaces the data source directory cache.
	SetDataSources struct{ Sources []DataSource }
	// CacheColumns stores the column list of one table.
	CacheColumns struct {
		TableName string
		Columns   []ColumnInfo
	}
)

func (LoadTemplate) Kind() string    { return "template.load" }
func (SetTemplateName) Kind() string { return "template.rename" }
func (SetDescription) Kind() string  { return "template.describe" }
func (UpdateLayout) Kind() string    { return "layout.update" }
func (AddChart) Kind() string        { return "chart.add" }
func (RemoveChart) Kind() string     { return "chart.remove" }
func (DuplicateChart) Kind() string  { return "chart.duplicate" }
func (UpdateChart) Kind() string     { return "chart.update" }
func (SelectChart) Kind() string     { return "chart.select" }
func (SetDirty) Kind() string        { return "template.dirty" }
func (ResetEditor) Kind() string     { return "editor.reset" }
func (SaveStart) Kind() string       { return "save.start" }
func (SaveSuccess) Kind() string     { return "save.success" }
func (SaveError) Kind() string       { return "save.error" }
func (LoadStart) Kind() string       { return "load.start" }
func (LoadError) Kind() string       { return "load.error" }
func (SetDataSources) Kind() string  { return "sources.set" }
func (CacheColumns) Kind() string    { return "columns.cache" }

func (LoadTemplate) action()    {}
func (SetTemplateName) action() {}
func (SetDescription) action()  {}
func (UpdateLayout) action()    {}
func (AddChart) action()        {}
func (RemoveChart) action()     {}
func (DuplicateChart) action()  {}
func (UpdateChart) action()     {}
func (SelectChart) action()     {}
func (SetDirty) action()        {}
func (ResetEditor) action()     {}
func (SaveStart) action()       {}
func (SaveSuccess) action()     {}
func (SaveError) action()       {}
func (LoadStart) action()       {}
func (LoadError) action()       {}
func (SetDataSources) action()  {}
func (CacheColumns) action()    {}
