// Package expr evaluates the Lisp expressions carried by expression nodes.
// It wraps zygomys in a sandboxed environment; each evaluation gets a fresh
// sandbox with the node's inputs bound as variables, so results depend only
// on the source and the bindings.
package expr

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in the expression.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Value is the result of an expression: either a number or a string.
type Value struct {
	Num    float64
	Text   string
	IsText bool
}

// NumberValue returns a numeric Value.
func NumberValue(f float64) Value { return Value{Num: f} }

// TextValue returns a string Value.
func TextValue(s string) Value { return Value{Text: s, IsText: true} }

func (v Value) String() string {
	if v.IsText {
		return strconv.Quote(v.Text)
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

// Evaluator runs expressions with a hard per-evaluation timeout.
// It is safe for concurrent use.
type Evaluator struct {
	timeout time.Duration
}

// New creates an Evaluator. A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{timeout: timeout}
}

// Timeout returns the per-evaluation limit.
func (e *Evaluator) Timeout() time.Duration {
	return e.timeout
}

// Eval evaluates source with vars bound as globals and returns the value of
// the last expression.
//
// Return semantics:
//   - On success: returns value + nil errors + nil error
//   - On parse/eval failure: returns zero value + eval errors + nil error
//   - On fatal failure (timeout, panic, bad binding): returns zero + nil + error
func (e *Evaluator) Eval(source string, vars map[string]Value) (Value, []EvalError, error) {
	prelude, err := bindings(vars)
	if err != nil {
		return Value{}, nil, err
	}

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		v, evalErrs, err := evaluate(prelude, source)
		ch <- evalResult{value: v, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, e.timeout)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func evaluate(prelude, source string) (Value, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return Value{}, []EvalError{{Message: "empty expression"}}, nil
	}

	// Sandbox mode prevents expressions from reaching the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env)

	preludeLines := strings.Count(prelude, "\n")
	err := env.LoadString(prelude + preprocessSource(source))
	if err != nil {
		return Value{}, shiftLines(parseZygomysError(err), preludeLines), nil
	}

	result, err := env.Run()
	if err != nil {
		return Value{}, shiftLines(parseZygomysError(err), preludeLines), nil
	}

	v, err := fromSexp(result)
	if err != nil {
		return Value{}, []EvalError{{Message: err.Error()}}, nil
	}
	return v, nil, nil
}

// bindings renders vars as (def name value) forms, one per line, in name
// order so line offsets are deterministic.
func bindings(vars map[string]Value) (string, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		if !validName.MatchString(name) {
			return "", fmt.Errorf("expr: invalid variable name %q", name)
		}
		v := vars[name]
		if !v.IsText && (math.IsNaN(v.Num) || math.IsInf(v.Num, 0)) {
			return "", fmt.Errorf("expr: variable %s is not finite", name)
		}
		fmt.Fprintf(&b, "(def %s %s)\n", preprocessSource(name), literal(v))
	}
	return b.String(), nil
}

// literal formats a value as zygomys source. Numbers always carry a decimal
// point so arithmetic stays in floating point.
func literal(v Value) string {
	if v.IsText {
		return strconv.Quote(v.Text)
	}
	s := strconv.FormatFloat(v.Num, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var validName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// fromSexp converts the final expression value into a Value.
func fromSexp(s zygo.Sexp) (Value, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return NumberValue(float64(v.Val)), nil
	case *zygo.SexpFloat:
		return NumberValue(v.Val), nil
	case *zygo.SexpStr:
		return TextValue(v.S), nil
	}
	if s == nil {
		return Value{}, fmt.Errorf("expression produced no value")
	}
	return Value{}, fmt.Errorf("expression must produce a number or string, got %s", s.SexpString(nil))
}

// shiftLines removes the binding prelude from reported line numbers.
func shiftLines(errs []EvalError, offset int) []EvalError {
	for i := range errs {
		if errs[i].Line > offset {
			errs[i].Line -= offset
		}
	}
	return errs
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
