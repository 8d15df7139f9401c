package editor

import (
	"fmt"
	"strings"
)

// ResolveLocalizedValue selects the best translation for the provided locale and falls back to the supplied value.
// Keys are matched case-insensitively, and language-region pairs (`ko-kr`) fall back to their base language (`ko`).
func ResolveLocalizedValue(values map[string]string, locale, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	for _, candidate := range localeCandidates(locale) {
		for key, value := range values {
			if strings.EqualFold(key, candidate) && value != "" {
				return value
			}
		}
	}
	return fallback
}

// ChartTypeLabel returns the display label for a chart type.
func ChartTypeLabel(t ChartType, locale string) string {
	return ResolveLocalizedValue(chartTypeLabels[t], locale, string(t))
}

var chartTypeLabels = map[ChartType]map[string]string{
	ChartBar:         {"default": "Bar", "ko": "막대"},
	ChartLine:        {"default": "Line", "ko": "꺾은선"},
	ChartPie:         {"default": "Pie", "ko": "원형"},
	ChartArea:        {"default": "Area", "ko": "영역"},
	ChartCombination: {"default": "Combination", "ko": "복합"},
}

// vocabulary holds the generated strings the Engine writes into state.
type vocabulary struct {
	locale       string
	TemplateName string
	ChartTitle   string
	CopySuffix   string
}

var vocabularies = map[string]vocabulary{
	"default": {
		TemplateName: "New Template",
		ChartTitle:   "New %s Chart",
		CopySuffix:   " (copy)",
	},
	"ko": {
		TemplateName: "새 템플릿",
		ChartTitle:   "새 %s 차트",
		CopySuffix:   " (복사)",
	},
}

func vocabularyFor(locale string) vocabulary {
	for _, candidate := range localeCandidates(locale) {
		if v, ok := vocabularies[candidate]; ok {
			v.locale = locale
			return v
		}
	}
	v := vocabularies["default"]
	v.locale = locale
	return v
}

func (v vocabulary) newChartTitle(t ChartType) string {
	return fmt.Sprintf(v.ChartTitle, ChartTypeLabel(t, v.locale))
}

func (v vocabulary) copyTitle(title string) string {
	return title + v.CopySuffix
}

func localeCandidates(locale string) []string {
	locale = normalizeLocale(locale)
	if locale == "" {
		return []string{"default"}
	}
	candidates := []string{locale}
	if idx := strings.IndexAny(locale, "-_"); idx > 0 {
		candidates = append(candidates, locale[:idx])
	}
	return append(candidates, "default")
}

func normalizeLocale(locale string) string {
	return strings.TrimSpace(strings.ToLower(locale))
}
