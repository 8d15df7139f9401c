package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(ids ...string) *Engine {
	return NewEngine(EngineOptions{IDs: SequenceGenerator(ids...)})
}

func assertLockStep(t *testing.T, state *State) {
	t.Helper()
	placed := map[string]int{}
	for _, item := range state.Layout {
		placed[item.I]++
		if _, ok := state.Charts[item.I]; !ok {
			t.Fatalf("layout item %q has no chart", item.I)
		}
	}
	for id := range state.Charts {
		if placed[id] != 1 {
			t.Fatalf("chart %q placed %d times", id, placed[id])
		}
	}
	if len(state.Layout) != len(state.Charts) {
		t.Fatalf("expected %d layout items, got %d", len(state.Charts), len(state.Layout))
	}
}

func TestInitialStateDefaults(t *testing.T) {
	state := newTestEngine().InitialState()
	assert.Equal(t, "New Template", state.TemplateName)
	assert.True(t, state.IsNew())
	assert.Empty(t, state.Charts)
	assert.Empty(t, state.Layout)
	assert.False(t, state.IsDirty)
}

func TestAddChartAssignsUniqueIDs(t *testing.T) {
	engine := NewEngine(EngineOptions{})
	state := engine.InitialState()
	for _, ct := range []ChartType{ChartBar, ChartLine, ChartPie, ChartArea, ChartCombination, ChartBar} {
		state = engine.Reduce(state, AddChart{Type: ct})
	}
	require.Len(t, state.Charts, 6)
	seen := map[string]bool{}
	for id := range state.Charts {
		if seen[id] {
			t.Fatalf("duplicate chart id %q", id)
		}
		seen[id] = true
	}
	assertLockStep(t, state)
}

func TestAddChartDefaults(t *testing.T) {
	engine := newTestEngine("a", "b")
	state := engine.Reduce(engine.InitialState(), AddChart{Type: ChartBar})
	state = engine.Reduce(state, AddChart{Type: ChartPie})

	bar := state.Charts["a"]
	assert.Equal(t, "New Bar Chart", bar.Title)
	assert.Equal(t, []string{}, bar.DataBinding.YAxis)
	assert.Equal(t, DefaultColors[:3], bar.Style.Colors)

	barLayout, ok := state.LayoutFor("a")
	require.True(t, ok)
	assert.Equal(t, LayoutItem{I: "a", X: 0, Y: 0, W: 6, H: 4, MinW: 3, MinH: 3}, barLayout)

	pieLayout, ok := state.LayoutFor("b")
	require.True(t, ok)
	assert.Equal(t, 4, pieLayout.Y, "pie should be placed below the bar")
	assert.Equal(t, 4, pieLayout.W)
	assert.Equal(t, 5, pieLayout.H)

	assert.Equal(t, "b", state.SelectedChartID)
	assert.True(t, state.IsDirty)
}

func TestAddChartRejectsUnknownTypeAndCollidingID(t *testing.T) {
	engine := newTestEngine("a")
	start := engine.Reduce(engine.InitialState(), AddChart{Type: ChartBar})

	if next := engine.Reduce(start, AddChart{Type: ChartType("radar")}); next != start {
		t.Fatalf("expected unknown chart type to be a no-op")
	}
	if next := engine.Reduce(start, AddChart{Type: ChartLine, ID: "a"}); next != start {
		t.Fatalf("expected colliding id to be a no-op")
	}
}

func TestClaimIDRetriesGeneratorCollisions(t *testing.T) {
	engine := newTestEngine("a", "a", "a", "b")
	state := engine.Reduce(engine.InitialState(), AddChart{Type: ChartBar})
	state = engine.Reduce(state, AddChart{Type: ChartBar})
	_, ok := state.Charts["b"]
	assert.True(t, ok, "expected generator to be retried until an unused id appears")
	assertLockStep(t, state)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	engine := newTestEngine("a", "b")
	before := engine.Reduce(engine.InitialState(), AddChart{Type: ChartBar})
	snapshot := before.Template()

	_ = engine.Reduce(before, UpdateChart{ID: "a", Patch: ChartPatch{Title: strPtr("Changed")}})
	_ = engine.Reduce(before, AddChart{Type: ChartLine})
	_ = engine.Reduce(before, RemoveChart{ID: "a"})

	assert.Equal(t, snapshot, before.Template())
}

func TestStaleIDsAreNoOps(t *testing.T) {
	engine := newTestEngine("a")
	state := engine.Reduce(engine.InitialState(), AddChart{Type: ChartBar})

	actions := []Action{
		RemoveChart{ID: "missing"},
		UpdateChart{ID: "missing", Patch: ChartPatch{Title: strPtr("x")}},
		DuplicateChart{SourceID: "missing"},
		SelectChart{ID: "missing"},
		SelectChart{ID: "a"},
		SetDirty{Dirty: true},
	}
	for _, action := range actions {
		if next := engine.Reduce(state, action); next != state {
			t.Fatalf("expected %s to leave state unchanged", action.Kind())
		}
	}
}

func TestDirtyPropagation(t *testing.T) {
	engine := newTestEngine("a")
	clean := engine.Reduce(engine.InitialState(), LoadTemplate{Template: Template{ID: 3, Name: "Sales"}})
	require.False(t, clean.IsDirty)

	mutations := []Action{
		SetTemplateName{Name: "Renamed"},
		SetDescription{Description: "desc"},
		UpdateLayout{Layout: []LayoutItem{}},
		AddChart{Type: ChartLine},
	}
	for _, action := range mutations {
		if next := engine.Reduce(clean, action); !next.IsDirty {
			t.Fatalf("expected %s to mark the state dirty", action.Kind())
		}
	}

	withChart := engine.Reduce(clean, AddChart{Type: ChartBar, ID: "x"})
	saved := engine.Reduce(withChart, SaveSuccess{ID: 3})
	require.False(t, saved.IsDirty)
	for _, action := range []Action{
		RemoveChart{ID: "x"},
		DuplicateChart{SourceID: "x", NewID: "y"},
		UpdateChart{ID: "x", Patch: ChartPatch{Title: strPtr("t")}},
	} {
		if next := engine.Reduce(saved, action); !next.IsDirty {
			t.Fatalf("expected %s to mark the state dirty", action.Kind())
		}
	}

	selected := engine.Reduce(saved, SelectChart{ID: ""})
	assert.False(t, selected.IsDirty, "selection must not dirty the template")
}

func TestRemoveClearsSelection(t *testing.T) {
	engine := newTestEngine("a", "b")
	state := engine.Reduce(engine.InitialState(), AddChart{Type: ChartBar})
	state = engine.Reduce(state, AddChart{Type: ChartLine})
	require.Equal(t, "b", state.SelectedChartID)

	removedOther := engine.Reduce(state, RemoveChart{ID: "a"})
	assert.Equal(t, "b", removedOther.SelectedChartID)

	removedSelected := engine.Reduce(state, RemoveChart{ID: "b"})
	assert.Equal(t, "", removedSelected.SelectedChartID)
	assertLockStep(t, removedSelected)
}

func TestDuplicatePlacement(t *testing.T) {
	engine := newTestEngine("copy")
	state := engine.Reduce(engine.InitialState(), LoadTemplate{Template: Template{
		ID:   1,
		Name: "Ops",
		Charts: []ChartConfig{{
			ID: "src", Type: ChartBar, Title: "Revenue",
			DataBinding: DataBinding{DataSource: "sales", XAxis: "month", YAxis: []string{"revenue"}},
		}},
		Layout: []LayoutItem{{I: "src", X: 0, Y: 2, W: 6, H: 4}},
	}})

	next := engine.Reduce(state, DuplicateChart{SourceID: "src"})
	item, ok := next.LayoutFor("copy")
	require.True(t, ok)
	assert.Equal(t, LayoutItem{I: "copy", X: 0, Y: 6, W: 6, H: 4}, item)

	copied := next.Charts["copy"]
	assert.Equal(t, "Revenue (copy)", copied.Title)
	assert.Equal(t, ChartBar, copied.Type)
	assert.Equal(t, []string{"revenue"}, copied.DataBinding.YAxis)
	assert.Equal(t, "copy", next.SelectedChartID)
	assert.True(t, next.IsDirty)

	copied.DataBinding.YAxis[0] = "mutated"
	assert.Equal(t, "revenue", next.Charts["src"].DataBinding.YAxis[0], "duplicate must not share slices")
}

func TestUpdateChartMergesPatch(t *testing.T) {
	engine := newTestEngine("a")
	state := engine.Reduce(engine.InitialState(), AddChart{Type: ChartBar})
	original := state.Charts["a"]

	show := true
	value := 42.5
	next := engine.Reduce(state, UpdateChart{ID: "a", Patch: ChartPatch{
		DataBinding: &DataBinding{DataSource: "sales", XAxis: "month"},
		Style:       &ChartStyle{Colors: []string{"#000000"}, ShowThreshold: &show, ThresholdValue: &value},
	}})
	updated := next.Charts["a"]
	assert.Equal(t, original.Title, updated.Title)
	assert.Equal(t, ChartBar, updated.Type)
	assert.Equal(t, "sales", updated.DataBinding.DataSource)
	assert.Equal(t, []string{}, updated.DataBinding.YAxis)
	assert.True(t, updated.Style.ThresholdEnabled())
	assert.False(t, updated.Style.DataLabelsEnabled())
}

func TestLoadTemplateReconcilesLayout(t *testing.T) {
	engine := newTestEngine()
	state := engine.Reduce(engine.InitialState(), LoadStart{})
	require.True(t, state.IsLoading)

	state = engine.Reduce(state, LoadTemplate{Template: Template{
		ID:   9,
		Name: "Loaded",
		Charts: []ChartConfig{
			{ID: "a", Type: ChartBar, Title: "A"},
			{ID: "b", Type: ChartPie, Title: "B"},
		},
		Layout: []LayoutItem{
			{I: "a", X: 0, Y: 0, W: 6, H: 4},
			{I: "a", X: 6, Y: 0, W: 6, H: 4},
			{I: "ghost", X: 0, Y: 4, W: 6, H: 4},
		},
	}})
	assertLockStep(t, state)
	assert.Equal(t, int64(9), state.TemplateID)
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsDirty)
	item, ok := state.LayoutFor("b")
	require.True(t, ok)
	assert.Equal(t, 4, item.Y, "charts without a placement go to the bottom")
	assert.Equal(t, []string{}, state.Charts["a"].DataBinding.YAxis)
}

func TestSaveAndLoadLifecycle(t *testing.T) {
	engine := newTestEngine()
	state := engine.Reduce(engine.InitialState(), SetTemplateName{Name: "Q3"})

	saving := engine.Reduce(state, SaveStart{})
	assert.True(t, saving.IsSaving)

	failed := engine.Reduce(saving, SaveError{Message: "boom"})
	assert.False(t, failed.IsSaving)
	assert.Equal(t, "boom", failed.Error)
	assert.True(t, failed.IsDirty)

	retry := engine.Reduce(failed, SaveStart{})
	assert.Empty(t, retry.Error)
	saved := engine.Reduce(retry, SaveSuccess{ID: 12})
	assert.Equal(t, int64(12), saved.TemplateID)
	assert.False(t, saved.IsDirty)
	assert.False(t, saved.IsNew())

	loadFailed := engine.Reduce(engine.Reduce(saved, LoadStart{}), LoadError{Message: "missing"})
	assert.False(t, loadFailed.IsLoading)
	assert.Equal(t, "missing", loadFailed.Error)
}

func TestResetPreservesCaches(t *testing.T) {
	engine := newTestEngine("a")
	state := engine.Reduce(engine.InitialState(), SetDataSources{Sources: []DataSource{{ID: 1, Name: "Sales", TableName: "sales"}}})
	state = engine.Reduce(state, CacheColumns{TableName: "sales", Columns: []ColumnInfo{{Name: "month", Type: ColumnString}}})
	state = engine.Reduce(state, AddChart{Type: ChartBar})
	state = engine.Reduce(state, SetTemplateName{Name: "Custom"})

	reset := engine.Reduce(state, ResetEditor{})
	assert.Empty(t, reset.Charts)
	assert.Empty(t, reset.Layout)
	assert.Equal(t, "New Template", reset.TemplateName)
	assert.False(t, reset.IsDirty)
	assert.Equal(t, state.DataSources, reset.DataSources)
	assert.Equal(t, state.ColumnCache, reset.ColumnCache)
}

func TestCacheColumnsCopiesMap(t *testing.T) {
	engine := newTestEngine()
	first := engine.Reduce(engine.InitialState(), CacheColumns{TableName: "a", Columns: []ColumnInfo{{Name: "x"}}})
	second := engine.Reduce(first, CacheColumns{TableName: "b", Columns: []ColumnInfo{{Name: "y"}}})
	assert.Len(t, first.ColumnCache, 1)
	assert.Len(t, second.ColumnCache, 2)
}

func TestLocalizedEngine(t *testing.T) {
	engine := NewEngine(EngineOptions{IDs: SequenceGenerator("a", "b"), Locale: "ko-KR"})
	state := engine.InitialState()
	assert.Equal(t, "새 템플릿", state.TemplateName)
	state = engine.Reduce(state, AddChart{Type: ChartPie})
	assert.Equal(t, "새 원형 차트", state.Charts["a"].Title)
	state = engine.Reduce(state, DuplicateChart{SourceID: "a"})
	assert.Equal(t, "새 원형 차트 (복사)", state.Charts["b"].Title)
}

func TestSequenceGeneratorFallsBack(t *testing.T) {
	gen := SequenceGenerator("x")
	assert.Equal(t, "x", gen())
	assert.Equal(t, "chart-2", gen())
}

func strPtr(s string) *string { return &s }
