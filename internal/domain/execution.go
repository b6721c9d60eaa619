package domain

// ExecutionResult is the outcome of one sandboxed run. It is produced exactly
// once per invocation and never mutated afterwards.
//
// Success reflects whether the program wrote anything to stderr, not its exit
// code: code that prints only to stdout but exits nonzero is still reported
// successful. This keeps grading focused on visible errors.
type ExecutionResult struct {
	Success         bool   `json:"success"`
	Output          string `json:"output"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}
