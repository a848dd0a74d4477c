package events

import "time"

// EvaluateStart is emitted before a model is evaluated. Context carries
// the run id.
type EvaluateStart struct {
	Formula string
	Nodes   int
	Graphs  int
}

// EvaluateFinish is emitted after an evaluation completes.
type EvaluateFinish struct {
	Formula  string
	Nodes    int
	Graphs   int
	Err      error
	Duration time.Duration
}

// FixpointConverged is emitted each time a fixpoint reaches a stable
// assignment.
type FixpointConverged struct {
	Key        string
	Least      bool
	Iterations int
	Duration   time.Duration
}
