package expr

import (
	"fmt"
	"time"
)

// DefaultTimeout is the hard limit for a single expression evaluation.
const DefaultTimeout = 2 * time.Second

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	value  Value
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error if
// the evaluation exceeds limit. On timeout the goroutine may still be
// running; ch is buffered so it can finish and be collected.
func waitWithTimeout(ch <-chan evalResult, limit time.Duration) (Value, []EvalError, error) {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.value, res.errors, res.err
	case <-timer.C:
		return Value{}, nil, fmt.Errorf("expression timed out after %s", limit)
	}
}
