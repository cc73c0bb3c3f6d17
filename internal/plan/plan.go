// Package plan defines the plan surface (spec §6): a sequence of target
// rows, each naming a command expression, an optional staleness trigger,
// and an optional evaluator backend reference.
package plan

import "github.com/vk/buildgrid/internal/syntax"

// Trigger controls when a target is considered outdated (spec §4.E).
type Trigger int

const (
	// TriggerAny checks command, dependency, and file-change hashes.
	TriggerAny Trigger = iota
	TriggerMissing
	TriggerAlways
	TriggerCommand
	TriggerDepends
	TriggerFileChange
)

func (t Trigger) String() string {
	switch t {
	case TriggerAny:
		return "any"
	case TriggerMissing:
		return "missing"
	case TriggerAlways:
		return "always"
	case TriggerCommand:
		return "command"
	case TriggerDepends:
		return "depends"
	case TriggerFileChange:
		return "file_change"
	default:
		return "unknown"
	}
}

// ParseTrigger parses a trigger's textual form, as it appears in plan rows
// loaded from disk. An empty string is not a valid trigger; callers apply
// the run's trigger_default first (spec §6, "Recognized configuration
// options").
func ParseTrigger(s string) (Trigger, bool) {
	switch s {
	case "any":
		return TriggerAny, true
	case "missing":
		return TriggerMissing, true
	case "always":
		return TriggerAlways, true
	case "command":
		return TriggerCommand, true
	case "depends":
		return TriggerDepends, true
	case "file_change":
		return TriggerFileChange, true
	default:
		return 0, false
	}
}

// Row is a single target definition. Extra carries columns the core schema
// doesn't recognize, preserved on the row (spec §6). WorkItem has no field
// for them, so dispatch backends do not receive them.
type Row struct {
	Target    string
	Command   syntax.Expr
	Trigger   *Trigger // nil means "use trigger_default"
	Evaluator string   // empty means "use the default evaluator"
	Extra     map[string]any
}

// EffectiveTrigger resolves r's trigger against def, the run's configured
// trigger_default.
func (r Row) EffectiveTrigger(def Trigger) Trigger {
	if r.Trigger == nil {
		return def
	}
	return *r.Trigger
}

// Plan is an ordered sequence of rows. Target names must be unique;
// driver.Build (and planfile.Load, for plans read from disk) rejects a plan
// with a duplicate target name.
type Plan []Row

// Names returns the plan's target names in row order.
func (p Plan) Names() []string {
	out := make([]string, len(p))
	for i, r := range p {
		out[i] = r.Target
	}
	return out
}

// ByName indexes p's rows by target name. The caller is responsible for
// having already validated there are no duplicates.
func (p Plan) ByName() map[string]Row {
	out := make(map[string]Row, len(p))
	for _, r := range p {
		out[r.Target] = r
	}
	return out
}
