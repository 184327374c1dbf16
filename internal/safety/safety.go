// Package safety implements the hard bound on total workflow iterations.
package safety

import "github.com/worksonmyai/relay/internal/domain"

// DefaultIterationLimit caps a workflow's total cycles unless overridden
// at start.
const DefaultIterationLimit = 100

// ExitReason classifies why a cycle ended the workflow, if it did.
type ExitReason string

const (
	ExitReasonComplete      ExitReason = "complete"
	ExitReasonMaxIterations ExitReason = "max_iterations"
	ExitReasonCancelled     ExitReason = "cancelled"
)

// CheckResult is the outcome of a governor check.
type CheckResult struct {
	ShouldHalt bool
	Reason     ExitReason
	Message    string
}

// Check evaluates the iteration bound. Halting is unconditional: once the
// count reaches the limit no further instruction may be rendered, pending
// completion or not.
func Check(rec *domain.Record) CheckResult {
	if rec.IterationCount >= rec.IterationLimit {
		return CheckResult{
			ShouldHalt: true,
			Reason:     ExitReasonMaxIterations,
			Message:    "iteration limit reached",
		}
	}
	return CheckResult{}
}
