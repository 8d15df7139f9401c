package editor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorEndToEnd(t *testing.T) {
	ed := NewEditor(newTestEngine("A", "B"))
	ed.SetDataSources(salesSources)

	id := ed.AddChart(ChartBar)
	require.Equal(t, "A", id)

	ed.UpdateChart("A", ChartPatch{DataBinding: &DataBinding{
		DataSource: "sales",
		XAxis:      "month",
		YAxis:      []string{"revenue"},
	}})

	result := ed.Validate()
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)

	dupID, ok := ed.DuplicateChart("A")
	require.True(t, ok)
	require.Equal(t, "B", dupID)

	assert.Equal(t, 2, ed.ChartCount())
	a, _ := ed.State().LayoutFor("A")
	b, _ := ed.State().LayoutFor("B")
	assert.Equal(t, a.Y+a.H, b.Y)
	assert.Equal(t, a.X, b.X)

	selected, ok := ed.SelectedChart()
	require.True(t, ok)
	assert.Equal(t, "B", selected.ID)

	charts := ed.ChartsArray()
	require.Len(t, charts, 2)
	assert.Equal(t, "A", charts[0].ID)
	assert.Equal(t, "B", charts[1].ID)
}

func TestEditorAddChartRejectsUnknownType(t *testing.T) {
	ed := NewEditor(newTestEngine("A"))
	assert.Equal(t, "", ed.AddChart(ChartType("gauge")))
	assert.False(t, ed.HasCharts())
}

func TestEditorDuplicateUnknownChart(t *testing.T) {
	ed := NewEditor(newTestEngine("A", "B"))
	_, ok := ed.DuplicateChart("missing")
	assert.False(t, ok)
	assert.Equal(t, "A", ed.AddChart(ChartLine), "a failed duplicate must not consume ids")
}

func TestEditorSelectedChartDangling(t *testing.T) {
	ed := NewEditor(newTestEngine("A"))
	_, ok := ed.SelectedChart()
	assert.False(t, ok)

	ed.AddChart(ChartBar)
	ed.RemoveChart("A")
	_, ok = ed.SelectedChart()
	assert.False(t, ok)
}

func TestEditorSubscribeNotifiesOnChange(t *testing.T) {
	ed := NewEditor(newTestEngine("A"))
	var kinds []string
	unsubscribe := ed.Subscribe(func(c Change) {
		kinds = append(kinds, c.Action.Kind())
		if c.Previous == c.Current {
			t.Fatalf("listener called without a transition")
		}
	})

	ed.AddChart(ChartBar)
	ed.RemoveChart("missing")
	ed.SetTemplateName("Named")
	unsubscribe()
	ed.SetDescription("ignored")

	assert.Equal(t, []string{"chart.add", "template.rename"}, kinds)
}

func TestEditorTemplateSnapshot(t *testing.T) {
	ed := NewEditor(newTestEngine("A", "B"))
	ed.SetTemplateName("Weekly")
	ed.AddChart(ChartBar)
	ed.AddChart(ChartLine)

	tpl := ed.Template()
	assert.Equal(t, "Weekly", tpl.Name)
	assert.True(t, tpl.IsActive)
	require.Len(t, tpl.Charts, 2)
	require.Len(t, tpl.Layout, 2)
	assert.Equal(t, "A", tpl.Charts[0].ID)

	tpl.Charts[0].Title = "mutated"
	chart, _ := ed.State().Chart("A")
	assert.Equal(t, "New Bar Chart", chart.Title)
}

func TestEditorConcurrentDispatch(t *testing.T) {
	ed := NewEditor(NewEngine(EngineOptions{}))
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ed.AddChart(ChartArea)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, ed.ChartCount())
	assertLockStep(t, ed.State())
}
