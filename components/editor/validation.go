package editor

import (
	"fmt"
	"strings"
)

// ValidationError reports a problem with one field of a chart.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of a validation pass.
type ValidationResult struct {
	Valid  bool              `json:"is_valid"`
	Errors []ValidationError `json:"errors"`
}

// Validation messages.
const (
	MsgTitleRequired       = "Enter a chart title"
	MsgDataSourceRequired  = "Select a data source"
	MsgDataSourceMissing   = "The data source does not exist"
	MsgXAxisRequired       = "Select an X axis column"
	MsgYAxisRequired       = "Select at least 1 Y axis column"
	MsgCombinationTwoYAxes = "Combination charts need 2 or more Y axis columns"
)

// ValidateChart checks a single chart against the known data sources.
func ValidateChart(cfg ChartConfig, sources []DataSource) ValidationResult {
	errs := make([]ValidationError, 0, 4)

	if strings.TrimSpace(cfg.Title) == "" {
		errs = append(errs, ValidationError{Field: "title", Message: MsgTitleRequired})
	}

	switch ds := cfg.DataBinding.DataSource; {
	case ds == "":
		errs = append(errs, ValidationError{Field: "dataSource", Message: MsgDataSourceRequired})
	case !hasTable(sources, ds):
		errs = append(errs, ValidationError{Field: "dataSource", Message: MsgDataSourceMissing})
	}

	if cfg.Type != ChartPie && cfg.DataBinding.XAxis == "" {
		errs = append(errs, ValidationError{Field: "xAxis", Message: MsgXAxisRequired})
	}

	yCount := len(cfg.DataBinding.YAxis)
	if yCount == 0 {
		errs = append(errs, ValidationError{Field: "yAxis", Message: MsgYAxisRequired})
	}
	// An empty list is already reported above.
	if cfg.Type == ChartCombination && yCount == 1 {
		errs = append(errs, ValidationError{Field: "yAxis", Message: MsgCombinationTwoYAxes})
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateState runs ValidateChart over every chart in the state. Field names
// are prefixed with the chart id and messages with the chart title.
func ValidateState(state *State) ValidationResult {
	all := []ValidationError{}
	if state == nil {
		return ValidationResult{Valid: true, Errors: all}
	}
	for _, cfg := range state.OrderedCharts() {
		result := ValidateChart(cfg, state.DataSources)
		for _, err := range result.Errors {
			all = append(all, ValidationError{
				Field:   cfg.ID + "." + err.Field,
				Message: fmt.Sprintf("[%s] %s", cfg.Title, err.Message),
			})
		}
	}
	return ValidationResult{Valid: len(all) == 0, Errors: all}
}

// ValidationFailure is returned when a template is submitted with errors.
type ValidationFailure struct {
	Result ValidationResult
}

func (f *ValidationFailure) Error() string {
	if f == nil || len(f.Result.Errors) == 0 {
		return "editor: template failed validation"
	}
	return fmt.Sprintf("editor: template failed validation (%d errors): %s",
		len(f.Result.Errors), f.Result.Errors[0].Message)
}

func hasTable(sources []DataSource, table string) bool {
	for _, ds := range sources {
		if ds.TableName == table {
			return true
		}
	}
	return false
}
