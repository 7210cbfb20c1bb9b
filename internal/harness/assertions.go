package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Calls    [][]string // Engine call logs for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nEngine calls:\n")
		for i, log := range e.Calls {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, strings.Join(log, " "))
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertCallCount:
		return assertCallCount(result, a)
	case AssertCallOrder:
		return assertCallOrder(result, a)
	case AssertHandlerCount:
		return assertCount(a.Type, fmt.Sprintf("handler %s", a.Event), result.Count(TraceHandler, a.Event), a.Count)
	case AssertReadyCount:
		return assertCount(a.Type, "ready hook", result.Count(TraceHook, HookReady), a.Count)
	case AssertHookCount:
		return assertCount(a.Type, a.Hook+" hook", result.Count(TraceHook, a.Hook), a.Count)
	case AssertLifecycleCount:
		return assertCount(a.Type, "lifecycle "+a.Kind, result.Count(TraceLifecycle, a.Kind), a.Count)
	case AssertEngineCount:
		return assertCount(a.Type, "engines", len(result.Engines), a.Count)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertCount(typ, what string, got, want int) error {
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%s called %d times", what, want),
		Actual:   fmt.Sprintf("called %d times", got),
	}
}

// assertCallCount counts an engine operation across the selected engines.
func assertCallCount(result *Result, a Assertion) error {
	logs := result.Engines
	if a.Engine != nil {
		if *a.Engine >= len(logs) {
			return missingEngine(a.Type, *a.Engine, result)
		}
		logs = logs[*a.Engine : *a.Engine+1]
	}

	count := 0
	for _, log := range logs {
		for _, call := range log {
			if callOp(call) == a.Op {
				count++
			}
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s called %d times", a.Op, a.Count),
			Actual:   fmt.Sprintf("called %d times", count),
			Calls:    result.Engines,
		}
	}
	return nil
}

// assertCallOrder checks that the ops appear in order in one engine's log.
// Calls don't need to be consecutive.
func assertCallOrder(result *Result, a Assertion) error {
	index := 0
	if a.Engine != nil {
		index = *a.Engine
	}
	if index >= len(result.Engines) {
		return missingEngine(a.Type, index, result)
	}
	log := result.Engines[index]

	next := 0
	for _, call := range log {
		if next < len(a.Ops) && callMatches(call, a.Ops[next]) {
			next++
		}
	}
	if next < len(a.Ops) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("calls in order: %v", a.Ops),
			Actual:   fmt.Sprintf("%s not found after %v", a.Ops[next], a.Ops[:next]),
			Calls:    result.Engines,
		}
	}
	return nil
}

func missingEngine(typ string, index int, result *Result) error {
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("engine %d", index),
		Actual:   fmt.Sprintf("%d engines constructed", len(result.Engines)),
	}
}

// callOp returns the operation of a logged call ("on:node:click" -> "on").
func callOp(call string) string {
	op, _, _ := strings.Cut(call, ":")
	return op
}

// callMatches reports whether call matches want, which is an operation or
// an "op:event" pair.
func callMatches(call, want string) bool {
	if strings.Contains(want, ":") {
		return call == want
	}
	return callOp(call) == want
}
