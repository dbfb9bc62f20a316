package engine

import "fmt"

// StepTimeoutError means every attempt of a step hit its deadline.
type StepTimeoutError struct {
	StepID   string
	Attempts int
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out after %d attempts", e.StepID, e.Attempts)
}

// StepExecutionError means every attempt of a step failed with a provider
// error.
type StepExecutionError struct {
	StepID   string
	Attempts int
	Cause    error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempts: %v", e.StepID, e.Attempts, e.Cause)
}

func (e *StepExecutionError) Unwrap() error { return e.Cause }

// MissingContextError means a discover, extract or paginate step ran with no
// page context established. The validator prevents this at load time, so
// hitting it at runtime is a workflow-ordering bug; it is never retried.
type MissingContextError struct {
	StepID  string
	Command string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("%s step %s requires page context from an init step", e.Command, e.StepID)
}

func errorType(err error) string {
	switch err.(type) {
	case *StepTimeoutError:
		return "StepTimeoutError"
	case *StepExecutionError:
		return "StepExecutionError"
	case *MissingContextError:
		return "MissingContextError"
	default:
		return "Error"
	}
}
