// Package workflow holds the declarative workflow document model, its JSON5
// loader and the business-rule validator run before execution.
package workflow

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/titanous/json5"
)

const (
	CommandInit     = "init"
	CommandDiscover = "discover"
	CommandExtract  = "extract"
	CommandPaginate = "paginate"
)

const (
	defaultRetries = 3
	defaultTimeout = 30 * time.Second
)

var stepIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	TargetSite  string   `json:"target_site"`
	Tags        []string `json:"tags,omitempty"`
}

type ScrapingConfig struct {
	Provider string          `json:"provider"`
	Config   provider.Config `json:"config"`
}

type StorageConfig struct {
	Provider string                     `json:"provider"`
	Config   provider.Config            `json:"config"`
	Schema   *provider.SchemaDefinition `json:"schema,omitempty"`
}

// Step is one atomic operation within a workflow. Retries and Timeout are
// pointers so that an absent field and an explicit zero stay distinct; use
// RetryCount and Timeout accessors.
type Step struct {
	ID              string         `json:"id"`
	Command         string         `json:"command"`
	Config          map[string]any `json:"config"`
	Retries         *int           `json:"retries,omitempty"`
	TimeoutMillis   *int           `json:"timeout,omitempty"`
	ContinueOnError bool           `json:"continue_on_error,omitempty"`
}

// RetryCount reports the configured retry count, defaulting to 3.
func (s Step) RetryCount() int {
	if s.Retries == nil {
		return defaultRetries
	}
	return *s.Retries
}

// Timeout reports the per-attempt deadline, defaulting to 30s.
func (s Step) Timeout() time.Duration {
	if s.TimeoutMillis == nil {
		return defaultTimeout
	}
	return time.Duration(*s.TimeoutMillis) * time.Millisecond
}

type PostProcessingStep struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// Workflow is one declarative scrape-and-store job. It is read-only during
// execution; the only sanctioned mutation is ForceContinueOnError before a
// run starts.
type Workflow struct {
	Version        string               `json:"version"`
	Metadata       Metadata             `json:"metadata"`
	Scraping       ScrapingConfig       `json:"scraping"`
	Storage        StorageConfig        `json:"storage"`
	Steps          []Step               `json:"steps"`
	PostProcessing []PostProcessingStep `json:"post_processing,omitempty"`
}

// ForceContinueOnError marks every step continue-on-error, letting callers
// (the CLI --continue-on-error flag) override the per-step setting globally.
func (w *Workflow) ForceContinueOnError() {
	for i := range w.Steps {
		w.Steps[i].ContinueOnError = true
	}
}

// Parse decodes a workflow document. JSON5 is accepted, so plain JSON
// documents parse too.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json5.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	return &wf, nil
}

// Load reads and parses a workflow document from disk.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
