package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/shafqat-a/scrapper/lib/workflow"
)

// stepOutput is the typed result of one step: a replacement page context
// (init, paginate) or extracted elements (discover, extract).
type stepOutput struct {
	page     *provider.PageContext
	elements []provider.DataElement
}

// executeStep runs one step under the step's retry/timeout policy: attempts
// 0..retries, each under a deadline. A deadline expiry retries immediately,
// any other provider error retries after a fixed short delay. The in-flight
// provider call is abandoned on expiry; the deadline context lets a
// well-behaved provider notice on its own.
func (e *Engine) executeStep(
	ctx context.Context,
	scraper provider.ScrapingProvider,
	step workflow.Step,
	page *provider.PageContext,
) (stepOutput, error) {
	if step.Command != workflow.CommandInit && page == nil {
		return stepOutput{}, &MissingContextError{StepID: step.ID, Command: step.Command}
	}

	attempt, err := e.dispatch(scraper, step, page)
	if err != nil {
		// Config decode failures are deterministic, retrying is pointless.
		return stepOutput{}, &StepExecutionError{StepID: step.ID, Attempts: 1, Cause: err}
	}

	retries := step.RetryCount()
	attempts := retries + 1

	for i := 0; i < attempts; i++ {
		out, err := e.runAttempt(ctx, step.Timeout(), attempt)
		switch {
		case err == nil:
			return out, nil

		case err == context.DeadlineExceeded:
			if ctx.Err() != nil {
				return stepOutput{}, &StepExecutionError{StepID: step.ID, Attempts: i + 1, Cause: ctx.Err()}
			}
			if i < retries {
				slog.WarnContext(
					ctx, "step timed out, retrying",
					"id", step.ID,
					"attempt", i+1,
					"attempts", attempts,
				)
				continue
			}
			return stepOutput{}, &StepTimeoutError{StepID: step.ID, Attempts: attempts}

		default:
			if i < retries {
				slog.WarnContext(
					ctx, "step failed, retrying",
					"id", step.ID,
					"attempt", i+1,
					"attempts", attempts,
					"err", err,
				)
				select {
				case <-time.After(e.RetryDelay):
				case <-ctx.Done():
					return stepOutput{}, &StepExecutionError{StepID: step.ID, Attempts: i + 1, Cause: ctx.Err()}
				}
				continue
			}
			return stepOutput{}, &StepExecutionError{StepID: step.ID, Attempts: attempts, Cause: err}
		}
	}

	// Unreachable: the loop always returns.
	return stepOutput{}, &StepExecutionError{StepID: step.ID, Attempts: attempts}
}

type attemptResult struct {
	out stepOutput
	err error
}

// runAttempt runs one provider call under a deadline. On expiry the call is
// abandoned, not interrupted; the buffered channel keeps the stray goroutine
// from blocking forever.
func (e *Engine) runAttempt(
	ctx context.Context,
	timeout time.Duration,
	attempt func(context.Context) (stepOutput, error),
) (stepOutput, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan attemptResult, 1)
	go func() {
		out, err := attempt(attemptCtx)
		results <- attemptResult{out: out, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil && attemptCtx.Err() == context.DeadlineExceeded {
			return stepOutput{}, context.DeadlineExceeded
		}
		return res.out, res.err
	case <-attemptCtx.Done():
		return stepOutput{}, context.DeadlineExceeded
	}
}

// dispatch decodes the step's typed config and binds the matching provider
// operation.
func (e *Engine) dispatch(
	scraper provider.ScrapingProvider,
	step workflow.Step,
	page *provider.PageContext,
) (func(context.Context) (stepOutput, error), error) {
	switch step.Command {
	case workflow.CommandInit:
		config, err := step.InitConfig()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (stepOutput, error) {
			next, err := scraper.ExecuteInit(ctx, config)
			return stepOutput{page: next}, err
		}, nil

	case workflow.CommandDiscover:
		config, err := step.DiscoverConfig()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (stepOutput, error) {
			elements, err := scraper.ExecuteDiscover(ctx, config, page)
			return stepOutput{elements: elements}, err
		}, nil

	case workflow.CommandExtract:
		config, err := step.ExtractConfig()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (stepOutput, error) {
			elements, err := scraper.ExecuteExtract(ctx, config, page)
			return stepOutput{elements: elements}, err
		}, nil

	case workflow.CommandPaginate:
		config, err := step.PaginateConfig()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (stepOutput, error) {
			next, err := scraper.ExecutePaginate(ctx, config, page)
			return stepOutput{page: next}, err
		}, nil

	default:
		return nil, errUnknownCommand(step.Command)
	}
}

type errUnknownCommand string

func (e errUnknownCommand) Error() string { return "unknown step command: " + string(e) }
