package workflow

import (
	"fmt"
	"strings"

	"github.com/shafqat-a/scrapper/lib/provider"
)

// ValidationError is a structural or business-rule failure found before any
// provider is touched. It is fatal to a run and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("workflow validation failed: %s", e.Message)
	}
	return fmt.Sprintf("workflow validation failed: %s: %s", e.Field, e.Message)
}

// Issue is a single finding in a validation report.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate gates execution: it runs every check in order and aborts on the
// first failure. The registry is consulted for provider availability.
func Validate(wf *Workflow, reg *provider.Registry) error {
	for _, check := range checks {
		if issues := check(wf, reg); len(issues) > 0 {
			return &ValidationError{Field: issues[0].Field, Message: issues[0].Message}
		}
	}
	return nil
}

// ValidateReport collects every finding instead of stopping at the first,
// for the validate CLI command.
func ValidateReport(wf *Workflow, reg *provider.Registry) []Issue {
	var issues []Issue
	for _, check := range checks {
		issues = append(issues, check(wf, reg)...)
	}
	return issues
}

var checks = []func(*Workflow, *provider.Registry) []Issue{
	checkStepOrdering,
	checkStepIDs,
	checkStepConfigs,
	checkSchema,
	checkProviderAvailability,
}

func checkStepOrdering(wf *Workflow, _ *provider.Registry) []Issue {
	if len(wf.Steps) == 0 {
		return []Issue{{Field: "steps", Message: "workflow must have at least one step"}}
	}

	var issues []Issue
	if wf.Steps[0].Command != CommandInit {
		issues = append(issues, Issue{Field: "steps[0].command", Message: "first step must be 'init'"})
	}

	hasInit := false
	for i, step := range wf.Steps {
		switch step.Command {
		case CommandInit:
			hasInit = true
		case CommandDiscover, CommandExtract, CommandPaginate:
			if !hasInit {
				issues = append(issues, Issue{
					Field:   fmt.Sprintf("steps[%d]", i),
					Message: fmt.Sprintf("step %q (%s) requires an 'init' step before it", step.ID, step.Command),
				})
			}
		}
	}
	return issues
}

func checkStepIDs(wf *Workflow, _ *provider.Registry) []Issue {
	var issues []Issue
	seen := map[string]bool{}
	for i, step := range wf.Steps {
		field := fmt.Sprintf("steps[%d].id", i)
		if step.ID == "" || !stepIDPattern.MatchString(step.ID) {
			issues = append(issues, Issue{
				Field:   field,
				Message: fmt.Sprintf("step id %q must match %s", step.ID, stepIDPattern.String()),
			})
			continue
		}
		if seen[step.ID] {
			issues = append(issues, Issue{Field: field, Message: fmt.Sprintf("duplicate step id: %s", step.ID)})
		}
		seen[step.ID] = true
	}
	return issues
}

func checkStepConfigs(wf *Workflow, _ *provider.Registry) []Issue {
	var issues []Issue
	for i, step := range wf.Steps {
		if step.Retries != nil && *step.Retries < 0 {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("steps[%d].retries", i),
				Message: "retries must not be negative",
			})
		}
		if step.TimeoutMillis != nil && *step.TimeoutMillis <= 0 {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("steps[%d].timeout", i),
				Message: "timeout must be positive",
			})
		}
		if err := step.CheckConfig(); err != nil {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("steps[%d].config", i),
				Message: fmt.Sprintf("invalid configuration for step %q: %v", step.ID, err),
			})
		}
	}
	return issues
}

func checkSchema(wf *Workflow, _ *provider.Registry) []Issue {
	schema := wf.Storage.Schema
	if schema == nil {
		return nil
	}

	var issues []Issue
	if schema.Name == "" {
		issues = append(issues, Issue{Field: "storage.schema.name", Message: "schema must have a table name"})
	}
	for _, key := range schema.PrimaryKey {
		if _, ok := schema.Fields[key]; !ok {
			issues = append(issues, Issue{
				Field:   "storage.schema.primary_key",
				Message: fmt.Sprintf("primary key field %q is not declared in schema fields", key),
			})
		}
	}
	return issues
}

func checkProviderAvailability(wf *Workflow, reg *provider.Registry) []Issue {
	var issues []Issue
	if !reg.HasScraping(wf.Scraping.Provider) {
		issues = append(issues, Issue{
			Field:   "scraping.provider",
			Message: fmt.Sprintf("scraping provider %q not available, have: %s", wf.Scraping.Provider, availableNames(reg, provider.KindScraping)),
		})
	}
	if !reg.HasStorage(wf.Storage.Provider) {
		issues = append(issues, Issue{
			Field:   "storage.provider",
			Message: fmt.Sprintf("storage provider %q not available, have: %s", wf.Storage.Provider, availableNames(reg, provider.KindStorage)),
		})
	}
	return issues
}

func availableNames(reg *provider.Registry, kind string) string {
	var names []string
	for _, md := range reg.List(kind) {
		names = append(names, md.Name)
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
