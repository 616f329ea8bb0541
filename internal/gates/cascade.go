// Package gates implements the per-strategy filter cascades that decide
// which flow events, pattern records, and block prints become alerts.
// Cascades fail closed: a field that cannot be sanitized drops the event
// with a structured skip reason rather than letting it through.
package gates

import "fmt"

// Check is the outcome of a single gate.
type Check struct {
	Name      string      `json:"name"`
	Passed    bool        `json:"passed"`
	Value     interface{} `json:"value"`
	Threshold interface{} `json:"threshold"`
}

// Outcome is the result of running a full cascade on one candidate.
type Outcome struct {
	Keep       bool     `json:"keep"`
	Checks     []Check  `json:"checks"`
	SkipReason string   `json:"skip_reason,omitempty"`
	Passed     []string `json:"passed_gates,omitempty"`
}

// evaluator accumulates gate checks and stops at the first failure.
type evaluator struct {
	outcome Outcome
	failed  bool
}

func newEvaluator() *evaluator {
	return &evaluator{outcome: Outcome{Keep: true}}
}

// check records one gate. After a failure, later gates are not evaluated;
// the first skip reason is the one reported.
func (e *evaluator) check(name string, passed bool, value, threshold interface{}) {
	if e.failed {
		return
	}
	c := Check{Name: name, Passed: passed, Value: value, Threshold: threshold}
	e.outcome.Checks = append(e.outcome.Checks, c)
	if passed {
		e.outcome.Passed = append(e.outcome.Passed, name)
		return
	}
	e.failed = true
	e.outcome.Keep = false
	e.outcome.SkipReason = fmt.Sprintf("%s: %v (need %v)", name, value, threshold)
}

// fail drops the candidate outright, used for unsanitizable fields.
func (e *evaluator) fail(name, reason string) {
	if e.failed {
		return
	}
	e.failed = true
	e.outcome.Keep = false
	e.outcome.SkipReason = name + ": " + reason
	e.outcome.Checks = append(e.outcome.Checks, Check{Name: name, Passed: false, Value: reason})
}

func (e *evaluator) result() Outcome {
	return e.outcome
}
