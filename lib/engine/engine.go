// Package engine is the workflow orchestrator: it validates a workflow,
// acquires provider instances from an injected registry, drives the steps in
// order while threading the page context between them, stores the raw
// extracted set, runs post-processing and guarantees provider cleanup.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shafqat-a/scrapper/lib/postprocess"
	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/shafqat-a/scrapper/lib/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapper/engine")

// Engine executes workflows against providers resolved through its
// registry. One Engine may run many executions concurrently; each execution
// owns its own provider instances, page context and accumulator.
type Engine struct {
	registry *provider.Registry

	// RetryDelay is the pause before retrying a step that failed with a
	// provider error (timeouts retry immediately). Tests shorten it.
	RetryDelay time.Duration
}

func New(registry *provider.Registry) *Engine {
	return &Engine{
		registry:   registry,
		RetryDelay: time.Second,
	}
}

// Validate runs the workflow validator against this engine's registry
// without executing anything.
func (e *Engine) Validate(wf *workflow.Workflow) error {
	return workflow.Validate(wf, e.registry)
}

// Execute runs a workflow to completion and reports the structured result.
// Step failures never surface as a returned error, they are captured in the
// result; only validation and provider-setup failures do, since no
// meaningful partial progress exists before the first step runs.
func (e *Engine) Execute(ctx context.Context, wf *workflow.Workflow) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine:Execute")
	defer span.End()
	span.SetAttributes(attribute.String("workflow", wf.Metadata.Name))

	start := time.Now()
	result := &Result{
		TotalSteps: len(wf.Steps),
		Metadata: map[string]any{
			"run_id":            uuid.NewString(),
			"workflow":          wf.Metadata.Name,
			"scraping_provider": wf.Scraping.Provider,
			"storage_provider":  wf.Storage.Provider,
		},
	}

	slog.InfoContext(ctx, "starting workflow execution", "workflow", wf.Metadata.Name)

	if err := workflow.Validate(wf, e.registry); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		span.RecordError(err)
		return nil, err
	}

	scraper, storage, err := e.setupProviders(ctx, wf)
	if err != nil {
		span.SetStatus(codes.Error, "provider setup failed")
		span.RecordError(err)
		return nil, err
	}
	defer e.releaseProviders(ctx, scraper, storage)

	var page *provider.PageContext
	aborted := false

	for _, step := range wf.Steps {
		slog.InfoContext(ctx, "executing step", "id", step.ID, "command", step.Command)

		out, err := e.executeStep(ctx, scraper, step, page)
		if err != nil {
			result.FailedSteps++
			result.addError(step.ID, err)
			if !step.ContinueOnError {
				slog.ErrorContext(ctx, "step failed, aborting workflow", "id", step.ID, "err", err)
				aborted = true
				break
			}
			slog.WarnContext(ctx, "step failed but continuing", "id", step.ID, "err", err)
			continue
		}

		switch step.Command {
		case workflow.CommandInit:
			page = out.page
		case workflow.CommandDiscover, workflow.CommandExtract:
			result.ExtractedData = append(result.ExtractedData, out.elements...)
		case workflow.CommandPaginate:
			// A nil page from paginate means no further pages; the
			// current context stays in place.
			if out.page != nil {
				page = out.page
			}
		}
		result.CompletedSteps++
	}

	storeFailed := false
	if !aborted {
		// Raw extracted data is persisted before post-processing runs:
		// storage sees ground truth, post-processing shapes what
		// downstream consumers see.
		if len(result.ExtractedData) > 0 && wf.Storage.Schema != nil {
			if err := storage.Store(ctx, result.ExtractedData, wf.Storage.Schema); err != nil {
				slog.ErrorContext(ctx, "failed to store extracted data", "err", err)
				result.Errors = append(result.Errors, StepError{
					StepID:    "storage",
					ErrorType: "StorageError",
					Message:   err.Error(),
				})
				storeFailed = true
			} else {
				slog.InfoContext(ctx, "stored extracted data", "count", len(result.ExtractedData))
			}
		}

		if len(wf.PostProcessing) > 0 {
			result.ExtractedData = postprocess.Apply(ctx, wf.PostProcessing, result.ExtractedData)
		}
	}

	result.Success = result.FailedSteps == 0 && !storeFailed
	result.ExecutionTime = time.Since(start)

	slog.InfoContext(
		ctx, "workflow execution completed",
		"workflow", wf.Metadata.Name,
		"completed", result.CompletedSteps,
		"total", result.TotalSteps,
		"extracted", len(result.ExtractedData),
		"success", result.Success,
	)
	return result, nil
}

func (e *Engine) setupProviders(ctx context.Context, wf *workflow.Workflow) (provider.ScrapingProvider, provider.StorageProvider, error) {
	scraper, err := e.registry.CreateScraping(wf.Scraping.Provider)
	if err != nil {
		return nil, nil, err
	}
	if err := scraper.Initialize(ctx, wf.Scraping.Config); err != nil {
		return nil, nil, fmt.Errorf("initialize scraping provider %s: %w", wf.Scraping.Provider, err)
	}

	storage, err := e.registry.CreateStorage(wf.Storage.Provider)
	if err != nil {
		e.releaseProviders(ctx, scraper, nil)
		return nil, nil, err
	}
	if err := storage.Connect(ctx, wf.Storage.Config); err != nil {
		e.releaseProviders(ctx, scraper, nil)
		return nil, nil, fmt.Errorf("connect storage provider %s: %w", wf.Storage.Provider, err)
	}

	return scraper, storage, nil
}

// releaseProviders always runs, regardless of how the run ended. Cleanup
// failures are logged, never escalated: they must not mask the primary
// outcome.
func (e *Engine) releaseProviders(ctx context.Context, scraper provider.ScrapingProvider, storage provider.StorageProvider) {
	if scraper != nil {
		if err := scraper.Cleanup(ctx); err != nil {
			slog.WarnContext(ctx, "scraping provider cleanup failed", "err", err)
		}
	}
	if storage != nil {
		if err := storage.Disconnect(ctx); err != nil {
			slog.WarnContext(ctx, "storage provider disconnect failed", "err", err)
		}
	}
}
