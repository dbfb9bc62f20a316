package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/shafqat-a/scrapper/lib/telemetry"
	"github.com/shafqat-a/scrapper/lib/workflow"
	"github.com/stretchr/testify/require"
)

// scriptedScraper is a scraping provider driven by per-command hooks. The
// zero value succeeds on everything and extracts nothing.
type scriptedScraper struct {
	initCalls     int
	extractCalls  int
	cleanupCalls  int
	onExecuteInit func(ctx context.Context) (*provider.PageContext, error)
	onExtract     func(ctx context.Context, attempt int) ([]provider.DataElement, error)
	onPaginate    func(ctx context.Context) (*provider.PageContext, error)
}

func (s *scriptedScraper) Metadata() provider.Metadata {
	return provider.Metadata{Name: "scripted", Version: "0.0.1", Kind: provider.KindScraping}
}

func (s *scriptedScraper) Initialize(ctx context.Context, config provider.Config) error {
	return nil
}

func (s *scriptedScraper) ExecuteInit(ctx context.Context, config provider.InitConfig) (*provider.PageContext, error) {
	s.initCalls++
	if s.onExecuteInit != nil {
		return s.onExecuteInit(ctx)
	}
	return &provider.PageContext{URL: config.URL}, nil
}

func (s *scriptedScraper) ExecuteDiscover(ctx context.Context, config provider.DiscoverConfig, page *provider.PageContext) ([]provider.DataElement, error) {
	return nil, nil
}

func (s *scriptedScraper) ExecuteExtract(ctx context.Context, config provider.ExtractConfig, page *provider.PageContext) ([]provider.DataElement, error) {
	s.extractCalls++
	if s.onExtract != nil {
		return s.onExtract(ctx, s.extractCalls)
	}
	return nil, nil
}

func (s *scriptedScraper) ExecutePaginate(ctx context.Context, config provider.PaginateConfig, page *provider.PageContext) (*provider.PageContext, error) {
	if s.onPaginate != nil {
		return s.onPaginate(ctx)
	}
	return nil, nil
}

func (s *scriptedScraper) Cleanup(ctx context.Context) error {
	s.cleanupCalls++
	return nil
}

func (s *scriptedScraper) HealthCheck(ctx context.Context) bool { return true }

// recordingStorage captures what Store received so tests can compare it
// against the result's element set.
type recordingStorage struct {
	stored          [][]provider.DataElement
	disconnectCalls int
	storeErr        error
}

func (s *recordingStorage) Metadata() provider.Metadata {
	return provider.Metadata{Name: "recording", Version: "0.0.1", Kind: provider.KindStorage}
}

func (s *recordingStorage) Connect(ctx context.Context, config provider.Config) error { return nil }

func (s *recordingStorage) Store(ctx context.Context, data []provider.DataElement, schema *provider.SchemaDefinition) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	batch := make([]provider.DataElement, len(data))
	copy(batch, data)
	s.stored = append(s.stored, batch)
	return nil
}

func (s *recordingStorage) Disconnect(ctx context.Context) error {
	s.disconnectCalls++
	return nil
}

func (s *recordingStorage) HealthCheck(ctx context.Context) bool { return true }

func testSetup(scraper *scriptedScraper, storage *recordingStorage) *Engine {
	reg := provider.NewRegistry()
	reg.RegisterScraping("scripted", func() provider.ScrapingProvider { return scraper })
	reg.RegisterStorage("recording", func() provider.StorageProvider { return storage })

	eng := New(reg)
	eng.RetryDelay = time.Millisecond
	return eng
}

func testWorkflow(steps ...workflow.Step) *workflow.Workflow {
	return &workflow.Workflow{
		Version:  "1.0",
		Metadata: workflow.Metadata{Name: "test"},
		Scraping: workflow.ScrapingConfig{Provider: "scripted"},
		Storage: workflow.StorageConfig{
			Provider: "recording",
			Schema:   &provider.SchemaDefinition{Name: "results"},
		},
		Steps: steps,
	}
}

func initStep() workflow.Step {
	return workflow.Step{
		ID:      "start",
		Command: workflow.CommandInit,
		Config:  map[string]any{"url": "https://example.com"},
	}
}

func extractStep(id string) workflow.Step {
	return workflow.Step{
		ID:      id,
		Command: workflow.CommandExtract,
		Config: map[string]any{
			"elements": map[string]any{
				"title": map[string]any{"selector": "h1"},
			},
		},
	}
}

func elements(values ...string) []provider.DataElement {
	out := make([]provider.DataElement, len(values))
	for i, v := range values {
		out[i] = provider.DataElement{Type: "title", Value: v}
	}
	return out
}

func TestExecuteHappyPath(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:engine")
	defer cleanup()

	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			return elements("a", "b", "c"), nil
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), extractStep("grab")))
	require.NoError(t, err)

	require.True(t, result.Success)
	require.Equal(t, 2, result.TotalSteps)
	require.Equal(t, 2, result.CompletedSteps)
	require.Equal(t, 0, result.FailedSteps)
	require.Len(t, result.ExtractedData, 3)
	require.Empty(t, result.Errors)

	require.Len(t, storage.stored, 1)
	require.Len(t, storage.stored[0], 3)
	require.Equal(t, 1, scraper.cleanupCalls)
	require.Equal(t, 1, storage.disconnectCalls)
}

func TestExecuteRejectsInvalidWorkflow(t *testing.T) {
	scraper := &scriptedScraper{}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	wf := testWorkflow(extractStep("grab")) // no init first
	result, err := eng.Execute(context.Background(), wf)
	require.Error(t, err)
	require.Nil(t, result)
	// providers were never touched
	require.Equal(t, 0, scraper.initCalls)
	require.Equal(t, 0, scraper.cleanupCalls)
}

func TestExecuteRetriesThenFails(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			return nil, fmt.Errorf("page exploded")
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	retries := 2
	step := extractStep("grab")
	step.Retries = &retries

	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), step))
	require.NoError(t, err)

	// retries=2 means 3 attempts total
	require.Equal(t, 3, scraper.extractCalls)
	require.False(t, result.Success)
	require.Equal(t, 1, result.CompletedSteps)
	require.Equal(t, 1, result.FailedSteps)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "grab", result.Errors[0].StepID)
	require.Equal(t, "StepExecutionError", result.Errors[0].ErrorType)
	require.Contains(t, result.Errors[0].Message, "3 attempts")

	// abort skips storage but still releases providers
	require.Empty(t, storage.stored)
	require.Equal(t, 1, scraper.cleanupCalls)
	require.Equal(t, 1, storage.disconnectCalls)
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			if attempt < 3 {
				return nil, fmt.Errorf("transient failure")
			}
			return elements("recovered"), nil
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), extractStep("grab")))
	require.NoError(t, err)

	require.True(t, result.Success)
	require.Equal(t, 3, scraper.extractCalls)
	require.Len(t, result.ExtractedData, 1)
	require.Empty(t, result.Errors)
}

func TestExecuteStepTimeout(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	retries := 1
	timeout := 50
	step := extractStep("slow")
	step.Retries = &retries
	step.TimeoutMillis = &timeout

	start := time.Now()
	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), step))
	require.NoError(t, err)

	require.False(t, result.Success)
	require.Equal(t, 2, scraper.extractCalls)
	require.Equal(t, "StepTimeoutError", result.Errors[0].ErrorType)
	require.Contains(t, result.Errors[0].Message, "2 attempts")
	// timeouts retry immediately, so two 50ms attempts stay well under a second
	require.Less(t, time.Since(start), time.Second)
}

func TestExecuteContinueOnError(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			return nil, fmt.Errorf("always broken")
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	retries := 0
	failing := extractStep("broken")
	failing.Retries = &retries
	failing.ContinueOnError = true

	paginated := false
	scraper.onPaginate = func(ctx context.Context) (*provider.PageContext, error) {
		paginated = true
		return nil, nil
	}
	after := workflow.Step{
		ID:      "next",
		Command: workflow.CommandPaginate,
		Config:  map[string]any{"next_page_selector": ".next"},
	}

	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), failing, after))
	require.NoError(t, err)

	// the failing step is counted but the run carries on
	require.True(t, paginated)
	require.Equal(t, 2, result.CompletedSteps)
	require.Equal(t, 1, result.FailedSteps)
	require.False(t, result.Success)
}

func TestExecuteAbortsWithoutContinueOnError(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			return nil, fmt.Errorf("always broken")
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	retries := 0
	failing := extractStep("broken")
	failing.Retries = &retries

	reached := false
	scraper.onPaginate = func(ctx context.Context) (*provider.PageContext, error) {
		reached = true
		return nil, nil
	}
	after := workflow.Step{
		ID:      "next",
		Command: workflow.CommandPaginate,
		Config:  map[string]any{"next_page_selector": ".next"},
	}

	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), failing, after))
	require.NoError(t, err)

	require.False(t, reached)
	require.Equal(t, 1, result.CompletedSteps)
	require.Equal(t, 1, result.FailedSteps)
}

func TestExecuteStoresRawDataBeforePostProcessing(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			return elements("dup", "dup", "solo"), nil
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	wf := testWorkflow(initStep(), extractStep("grab"))
	wf.PostProcessing = []workflow.PostProcessingStep{
		{Type: "deduplicate", Config: map[string]any{}},
	}

	result, err := eng.Execute(context.Background(), wf)
	require.NoError(t, err)

	// storage received the raw set, the result carries the processed set
	require.Len(t, storage.stored, 1)
	require.Len(t, storage.stored[0], 3)
	require.Len(t, result.ExtractedData, 2)
	require.True(t, result.Success)
}

func TestExecuteStorageFailure(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			return elements("a"), nil
		},
	}
	storage := &recordingStorage{storeErr: fmt.Errorf("disk full")}
	eng := testSetup(scraper, storage)

	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), extractStep("grab")))
	require.NoError(t, err)

	require.False(t, result.Success)
	require.Equal(t, 0, result.FailedSteps)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "storage", result.Errors[0].StepID)
	require.Equal(t, "StorageError", result.Errors[0].ErrorType)
	// extracted data still comes back to the caller
	require.Len(t, result.ExtractedData, 1)
}

func TestExecuteSkipsStoreWithoutSchema(t *testing.T) {
	scraper := &scriptedScraper{
		onExtract: func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
			return elements("a"), nil
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	wf := testWorkflow(initStep(), extractStep("grab"))
	wf.Storage.Schema = nil

	result, err := eng.Execute(context.Background(), wf)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Empty(t, storage.stored)
}

func TestExecutePaginateKeepsContextOnLastPage(t *testing.T) {
	scraper := &scriptedScraper{}
	scraper.onExtract = func(ctx context.Context, attempt int) ([]provider.DataElement, error) {
		return elements(fmt.Sprintf("page-%d", attempt)), nil
	}
	// first paginate advances, second reports no further pages
	pages := 0
	scraper.onPaginate = func(ctx context.Context) (*provider.PageContext, error) {
		pages++
		if pages == 1 {
			return &provider.PageContext{URL: "https://example.com/page/2"}, nil
		}
		return nil, nil
	}

	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	paginate := func(id string) workflow.Step {
		return workflow.Step{
			ID:      id,
			Command: workflow.CommandPaginate,
			Config:  map[string]any{"next_page_selector": ".next"},
		}
	}

	result, err := eng.Execute(context.Background(), testWorkflow(
		initStep(),
		extractStep("first"),
		paginate("advance"),
		extractStep("second"),
		paginate("done"),
		extractStep("third"),
	))
	require.NoError(t, err)

	require.True(t, result.Success)
	require.Equal(t, 6, result.CompletedSteps)
	require.Len(t, result.ExtractedData, 3)
}

func TestExecuteMissingContext(t *testing.T) {
	// force a nil page at runtime: init succeeds but returns nil context
	scraper := &scriptedScraper{
		onExecuteInit: func(ctx context.Context) (*provider.PageContext, error) {
			return nil, nil
		},
	}
	storage := &recordingStorage{}
	eng := testSetup(scraper, storage)

	result, err := eng.Execute(context.Background(), testWorkflow(initStep(), extractStep("grab")))
	require.NoError(t, err)

	require.False(t, result.Success)
	require.Equal(t, "MissingContextError", result.Errors[0].ErrorType)
	// never retried, never dispatched to the provider
	require.Equal(t, 0, scraper.extractCalls)
}

func TestResultExport(t *testing.T) {
	result := &Result{
		Success:        false,
		TotalSteps:     3,
		CompletedSteps: 2,
		FailedSteps:    1,
		ExtractedData:  elements("a", "b"),
		ExecutionTime:  1500 * time.Millisecond,
		Errors: []StepError{
			{StepID: "grab", ErrorType: "StepExecutionError", Message: "boom"},
		},
	}

	export := result.Export()
	require.Equal(t, false, export["success"])
	require.Equal(t, 3, export["total_steps"])
	require.Equal(t, 2, export["extracted_data_count"])
	require.Equal(t, 1.5, export["execution_time"])
	require.Equal(t, 1, export["error_count"])
}
