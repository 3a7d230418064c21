package walkthrough

import "fmt"

// Outcome of a single step.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepOutcome is the summary line kept for one step.
type StepOutcome struct {
	Number     int
	Name       string
	StatusCode int
	Outcome    Outcome
}

// Report collects step outcomes for the closing summary. It is never written
// anywhere but the console.
type Report struct {
	RunID       string
	Steps       []StepOutcome
	LoginFailed bool
	LoginStatus int
}

func (r *Report) record(n int, name string, status int, outcome Outcome) {
	r.Steps = append(r.Steps, StepOutcome{
		Number:     n,
		Name:       name,
		StatusCode: status,
		Outcome:    outcome,
	})
}

// Ran reports whether step n was executed.
func (r *Report) Ran(n int) bool {
	for _, s := range r.Steps {
		if s.Number == n {
			return s.Outcome != OutcomeSkipped
		}
	}
	return false
}

// Count returns how many steps ended with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Summary renders the counts on one line.
func (r *Report) Summary() string {
	return fmt.Sprintf("Summary: %d ok, %d failed, %d skipped",
		r.Count(OutcomeOK), r.Count(OutcomeFailed), r.Count(OutcomeSkipped))
}
