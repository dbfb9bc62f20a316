package engine

import (
	"time"

	"github.com/shafqat-a/scrapper/lib/provider"
)

// StepError records one failed step in a result.
type StepError struct {
	StepID    string `json:"step_id"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// Result is the outcome of one workflow execution. It is created fresh per
// run and never mutated after Execute returns. ExtractedData reflects the
// post-processed set; storage saw the raw set.
type Result struct {
	Success        bool                   `json:"success"`
	TotalSteps     int                    `json:"total_steps"`
	CompletedSteps int                    `json:"completed_steps"`
	FailedSteps    int                    `json:"failed_steps"`
	ExtractedData  []provider.DataElement `json:"-"`
	ExecutionTime  time.Duration          `json:"-"`
	Errors         []StepError            `json:"errors"`
	Metadata       map[string]any         `json:"metadata"`
}

func (r *Result) addError(stepID string, err error) {
	r.Errors = append(r.Errors, StepError{
		StepID:    stepID,
		ErrorType: errorType(err),
		Message:   err.Error(),
	})
}

// Export renders the result as the flat document consumed by presentation
// layers.
func (r *Result) Export() map[string]any {
	errs := make([]map[string]any, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = map[string]any{
			"step_id":    e.StepID,
			"error_type": e.ErrorType,
			"message":    e.Message,
		}
	}
	return map[string]any{
		"success":              r.Success,
		"total_steps":          r.TotalSteps,
		"completed_steps":      r.CompletedSteps,
		"failed_steps":         r.FailedSteps,
		"extracted_data_count": len(r.ExtractedData),
		"execution_time":       r.ExecutionTime.Seconds(),
		"error_count":          len(r.Errors),
		"errors":               errs,
		"metadata":             r.Metadata,
	}
}
