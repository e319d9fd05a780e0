package state

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is reported by operations run before Initialize
	// succeeded or after Close.
	ErrNotInitialized = errors.New("state: engine not initialized")

	// ErrNoGraph is reported by Evaluate before any graph was loaded.
	ErrNoGraph = errors.New("state: no graph loaded")

	// ErrUnknownNode is reported for property changes addressed to a node
	// the current graph does not contain.
	ErrUnknownNode = errors.New("state: unknown node")

	// ErrSuperseded is reported by an evaluation whose result was discarded
	// because a newer evaluation or load started after it.
	ErrSuperseded = errors.New("state: evaluation superseded")

	errNoHandle = errors.New("runtime returned no handle")
)

// Status is the outcome class of one operation.
type Status int

const (
	StatusOK Status = iota
	StatusSkipped
	StatusFailed
	StatusSuperseded
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result reports how an operation ended. Operations never return errors
// or panic; the outcome is carried here and logged.
type Result struct {
	Status Status
	Err    error

	// Generation is the evaluation ticket of the pass the operation ran,
	// or zero if it never reached evaluation.
	Generation uint64
}

// OK reports whether the operation completed and published its outcome.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

func skipped(err error) Result { return Result{Status: StatusSkipped, Err: err} }

func failed(err error) Result { return Result{Status: StatusFailed, Err: err} }
