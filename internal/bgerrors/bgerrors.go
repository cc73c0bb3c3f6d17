// Package bgerrors defines the error taxonomy shared across buildgrid's
// components: the plan loader, the graph builder, the staleness oracle, the
// scheduler, and the dispatch backends all report failures through the same
// typed Error so a driver can classify a failure into an exit code without
// string-matching messages.
package bgerrors

import "fmt"

// Kind classifies a buildgrid error into one of the taxonomy entries from
// the specification.
type Kind int

const (
	// ParseError indicates a command or sub-document failed to parse.
	ParseError Kind = iota
	// NameCollision indicates two targets or imports share a name.
	NameCollision
	// CyclicPlan indicates the dependency graph contains a cycle.
	CyclicPlan
	// MissingDependency indicates a command references an unknown identifier.
	MissingDependency
	// EvalError indicates a target command failed at runtime.
	EvalError
	// CacheError indicates a cache read or write failed.
	CacheError
	// BackendError indicates dispatch or worker supervision failed.
	BackendError
	// TargetTimeout indicates a per-target timeout elapsed.
	TargetTimeout
	// Cancelled indicates the run was interrupted by the caller.
	Cancelled
)

// String renders the Kind using the taxonomy's exact names, for logging and
// for tests that assert on error classification.
func (k Kind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case NameCollision:
		return "NameCollision"
	case CyclicPlan:
		return "CyclicPlan"
	case MissingDependency:
		return "MissingDependency"
	case EvalError:
		return "EvalError"
	case CacheError:
		return "CacheError"
	case BackendError:
		return "BackendError"
	case TargetTimeout:
		return "TargetTimeout"
	case Cancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Error is the typed error carried by every buildgrid component. Target is
// empty for plan-level errors (parse, name collision, cycle).
type Error struct {
	Kind   Kind
	Target string
	Err    error
}

// New constructs an *Error of the given kind wrapping err.
func New(kind Kind, target string, err error) *Error {
	return &Error{Kind: kind, Target: target, Err: err}
}

func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Target, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is a *Error of the same Kind, so callers can write
// errors.Is(err, bgerrors.New(bgerrors.CyclicPlan, "", nil)) style checks,
// but more commonly should use errors.As and inspect Kind directly.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Fatal reports whether a Kind aborts the run outright rather than being
// captured per-target under keep_going.
func Fatal(k Kind) bool {
	switch k {
	case ParseError, NameCollision, CyclicPlan, CacheError, Cancelled:
		return true
	default:
		return false
	}
}
