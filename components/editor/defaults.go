package editor

import (
	"maps"
	"slices"
)

// DefaultColors is the palette new charts draw their colors from.
var DefaultColors = []string{
	"#3B82F6",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#8B5CF6",
	"#EC4899",
	"#06B6D4",
	"#84CC16",
}

// ThresholdColor is used for threshold / target lines.
const ThresholdColor = "#EF4444"

// Grid settings shared with the layout collaborator.
const (
	GridColumns   = 12
	GridRowHeight = 60
)

const newChartColorCount = 3

// Size is a width/height pair in grid units.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// SizeConfig holds the default and minimum size for a chart type.
type SizeConfig struct {
	Default Size `json:"default"`
	Min     Size `json:"min"`
}

var chartSizes = map[ChartType]SizeConfig{
	ChartBar:         {Default: Size{W: 6, H: 4}, Min: Size{W: 3, H: 3}},
	ChartLine:        {Default: Size{W: 6, H: 4}, Min: Size{W: 3, H: 3}},
	ChartPie:         {Default: Size{W: 4, H: 5}, Min: Size{W: 3, H: 4}},
	ChartArea:        {Default: Size{W: 6, H: 4}, Min: Size{W: 3, H: 3}},
	ChartCombination: {Default: Size{W: 8, H: 5}, Min: Size{W: 4, H: 4}},
}

var previewLimits = map[ChartType]int{
	ChartBar:         15,
	ChartLine:        20,
	ChartPie:         8,
	ChartArea:        20,
	ChartCombination: 15,
}

// ChartSize returns the size table entry for t.
func ChartSize(t ChartType) (SizeConfig, bool) {
	cfg, ok := chartSizes[t]
	return cfg, ok
}

// PreviewLimit is the number of rows fetched for an editor preview of t.
func PreviewLimit(t ChartType) int {
	if limit, ok := previewLimits[t]; ok {
		return limit
	}
	return 20
}

// DefaultChart builds the configuration assigned to a freshly added chart.
func DefaultChart(id string, t ChartType, locale string) ChartConfig {
	return ChartConfig{
		ID:    id,
		Type:  t,
		Title: vocabularyFor(locale).newChartTitle(t),
		DataBinding: DataBinding{
			YAxis: []string{},
		},
		Style: ChartStyle{
			Colors: slices.Clone(DefaultColors[:newChartColorCount]),
		},
	}
}

// DefaultLayoutItem builds the placement for a freshly added chart at row y.
func DefaultLayoutItem(id string, t ChartType, y int) LayoutItem {
	size, ok := chartSizes[t]
	if !ok {
		size = chartSizes[ChartBar]
	}
	return LayoutItem{
		I:    id,
		X:    0,
		Y:    y,
		W:    size.Default.W,
		H:    size.Default.H,
		MinW: size.Min.W,
		MinH: size.Min.H,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
