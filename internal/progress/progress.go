// Package progress implements the structured progress event stream (spec
// §7): the driver emits an Event on a channel when a target is found up to
// date, starts building, is built, or fails, and a consumer renders it for
// verbose or non-verbose output. Skipped and aborted targets produce no
// Event.
package progress

import "time"

// Kind classifies a progress event.
type Kind int

const (
	KindStarted Kind = iota
	KindUpToDate
	KindBuilding
	KindBuilt
	KindFailed
	KindSkipped
	KindAborted
	KindRetrying
)

func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindUpToDate:
		return "up_to_date"
	case KindBuilding:
		return "building"
	case KindBuilt:
		return "built"
	case KindFailed:
		return "failed"
	case KindSkipped:
		return "skipped"
	case KindAborted:
		return "aborted"
	case KindRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// Event is a single progress record (spec §7 "structured progress
// events").
type Event struct {
	Kind      Kind
	Target    string
	Err       error
	Timestamp time.Time
}

// Reporter is the sink the driver publishes events to. Sink is nil-safe:
// a nil Reporter's Emit is a no-op, so callers that don't care about
// progress don't need to drain a channel.
type Reporter struct {
	Sink chan<- Event
	Now  func() time.Time
}

// Emit sends an event on r's sink, stamping it with r.Now (or leaving the
// zero time if r.Now is nil, since Date/time sources are supplied by the
// embedder rather than read from the wall clock inside library code).
func (r *Reporter) Emit(kind Kind, target string, err error) {
	if r == nil || r.Sink == nil {
		return
	}
	ev := Event{Kind: kind, Target: target, Err: err}
	if r.Now != nil {
		ev.Timestamp = r.Now()
	}
	r.Sink <- ev
}
