// outcome.go defines the tagged result of a stage.
//
// Short-circuiting is a normal outcome, not an error, so a cache hit never
// travels through the error path.

package plugin

// Status is the tag of an Outcome.
type Status int

const (
	// StatusContinue passes the document to the next stage.
	StatusContinue Status = iota
	// StatusAbort stops the run with an error.
	StatusAbort
	// StatusShortCircuit stops the run successfully.
	StatusShortCircuit
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusAbort:
		return "abort"
	case StatusShortCircuit:
		return "short_circuit"
	}
	return "unknown"
}

// Outcome is what a stage returns.
type Outcome struct {
	Status Status
	Err    error
}

// Continue passes the document on.
func Continue() Outcome { return Outcome{Status: StatusContinue} }

// Abort stops the run. A nil error still aborts.
func Abort(err error) Outcome { return Outcome{Status: StatusAbort, Err: err} }

// ShortCircuit stops the run successfully, skipping later stages.
func ShortCircuit() Outcome { return Outcome{Status: StatusShortCircuit} }

// Result turns a plain error into an outcome: nil continues.
func Result(err error) Outcome {
	if err != nil {
		return Abort(err)
	}
	return Continue()
}
