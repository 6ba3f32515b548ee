// Package sandbox evaluates untrusted Starlark code with no ambient authority.
//
// Each call gets a fresh interpreter thread whose only predeclared names
// are the Starlark universe, math, json and redact. There is no filesystem,
// environment, process, network or timer access. load() is refused and
// print output is captured into the result.
//
// Timeouts are enforced by cancelling the thread from a watchdog. The
// interpreter observes cancellation between instructions whatever the code
// does, so a non-yielding loop is interrupted. A single built-in call that
// runs long cannot be interrupted; after a short grace period the sandbox
// reports a timeout and abandons that evaluation.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/reusee/starlarkutil"
	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	DefaultTimeout = 5 * time.Second

	// cancelGrace bounds how long a cancelled evaluation may take to stop.
	cancelGrace = 200 * time.Millisecond

	// maxOutput caps captured print output.
	maxOutput = 64 << 10

	// ResultGlobal is the binding a statement program uses to return a value.
	ResultGlobal = "result"

	filename = "<sandbox>"
)

var (
	ErrTimeout = errors.New("execution timed out")
	ErrRuntime = errors.New("execution failed")
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Result is the outcome of a successful evaluation.
type Result struct {
	// Value is the display form of the evaluated result. Strings are unquoted.
	Value string `json:"value"`
	// Output is everything the code printed.
	Output   string        `json:"output"`
	Steps    uint64        `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Sandbox runs code in isolated Starlark threads. It holds no mutable state
// shared between calls.
type Sandbox struct {
	maxSteps uint64
	redact   func(string) string
}

// New creates a sandbox. redact backs the redact() builtin; nil disables it.
// maxSteps of zero means no step budget.
func New(maxSteps uint64, redact func(string) string) *Sandbox {
	return &Sandbox{maxSteps: maxSteps, redact: redact}
}

type evalResult struct {
	value starlark.Value
	err   error
}

// Execute evaluates code within timeout. An expression returns its value;
// a statement program returns its top-level result binding, or None.
func (s *Sandbox) Execute(ctx context.Context, principal, code string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	out := &captured{}
	thread := &starlark.Thread{
		Name:  "sandbox",
		Print: func(_ *starlark.Thread, msg string) { out.println(msg) },
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load(%q) is not allowed", module)
		},
	}
	thread.SetLocal("principal", principal)
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}

	start := time.Now()
	done := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evalResult{err: fmt.Errorf("interpreter panic: %v", r)}
			}
		}()
		value, err := s.eval(thread, code)
		done <- evalResult{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res evalResult
	select {
	case res = <-done:
	case <-timer.C:
		thread.Cancel("timeout")
		s.drain(done)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		thread.Cancel("cancelled")
		s.drain(done)
		return nil, ctx.Err()
	}

	if res.err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRuntime, describe(res.err))
	}
	return &Result{
		Value:    display(res.value),
		Output:   out.String(),
		Steps:    thread.ExecutionSteps(),
		Duration: time.Since(start),
	}, nil
}

// drain waits up to cancelGrace for a cancelled evaluation to stop.
// Past that the goroutine is abandoned.
func (s *Sandbox) drain(done <-chan evalResult) {
	select {
	case <-done:
	case <-time.After(cancelGrace):
	}
}

func (s *Sandbox) eval(thread *starlark.Thread, code string) (starlark.Value, error) {
	env := s.predeclared()

	if expr, err := fileOptions.ParseExpr(filename, code, 0); err == nil {
		return starlark.EvalExprOptions(fileOptions, thread, expr, env)
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, code, env)
	if err != nil {
		return nil, err
	}
	if v, ok := globals[ResultGlobal]; ok {
		return v, nil
	}
	return starlark.None, nil
}

func (s *Sandbox) predeclared() starlark.StringDict {
	env := starlark.StringDict{
		"math": math.Module,
		"json": json.Module,
	}
	if s.redact != nil {
		var redact starlark.Value = starlarkutil.MakeFunc("redact", func(text string) string {
			return s.redact(text)
		})
		env["redact"] = redact
	}
	return env
}

func display(v starlark.Value) string {
	if v == nil {
		return "None"
	}
	if str, ok := v.(starlark.String); ok {
		return string(str)
	}
	return v.String()
}

func describe(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Msg
	}
	return err.Error()
}

// captured collects print output up to maxOutput bytes.
type captured struct {
	mu        sync.Mutex
	b         strings.Builder
	truncated bool
}

func (c *captured) println(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.truncated {
		return
	}
	if c.b.Len()+len(msg)+1 > maxOutput {
		c.b.WriteString("[output truncated]\n")
		c.truncated = true
		return
	}
	c.b.WriteString(msg)
	c.b.WriteByte('\n')
}

func (c *captured) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.String()
}
