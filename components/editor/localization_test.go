package editor

import "testing"

func TestResolveLocalizedValue(t *testing.T) {
	values := map[string]string{
		"en":    "Report",
		"ko":    "보고서",
		"ko-kr": "리포트",
	}
	if got := ResolveLocalizedValue(values, "ko-KR", "fallback"); got != "리포트" {
		t.Fatalf("expected region-specific match, got %q", got)
	}
	if got := ResolveLocalizedValue(values, "ko_KP", "fallback"); got != "보고서" {
		t.Fatalf("expected base locale fallback, got %q", got)
	}
	if got := ResolveLocalizedValue(values, "fr", "Report"); got != "Report" {
		t.Fatalf("expected fallback when locale missing, got %q", got)
	}
	if got := ResolveLocalizedValue(nil, "ko", "Report"); got != "Report" {
		t.Fatalf("expected fallback when no localized map, got %q", got)
	}
}

func TestChartTypeLabel(t *testing.T) {
	if got := ChartTypeLabel(ChartCombination, ""); got != "Combination" {
		t.Fatalf("expected default label, got %q", got)
	}
	if got := ChartTypeLabel(ChartBar, "ko"); got != "막대" {
		t.Fatalf("expected korean label, got %q", got)
	}
	if got := ChartTypeLabel(ChartType("radar"), "en"); got != "radar" {
		t.Fatalf("expected raw type for unknown chart, got %q", got)
	}
}

func TestVocabularyFallsBackToDefault(t *testing.T) {
	v := vocabularyFor("de-DE")
	if v.TemplateName != "New Template" {
		t.Fatalf("expected default vocabulary, got %q", v.TemplateName)
	}
	if got := v.newChartTitle(ChartArea); got != "New Area Chart" {
		t.Fatalf("unexpected chart title %q", got)
	}
}
