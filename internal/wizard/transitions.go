package wizard

import "github.com/draftforge/draftforge/internal/util"

type (
	// Phase is the poller's position in its lifecycle for the live
	// execution, if any
	Phase string

	// StateTransitions maps phases to their set of valid next phases
	StateTransitions[T comparable] map[T]util.Set[T]
)

const (
	// PhaseIdle means no execution is open for the active chapter
	PhaseIdle Phase = "idle"

	// PhasePolling means an execution is live and being observed
	PhasePolling Phase = "polling"

	// PhaseAwaitingReview means the execution is suspended on a human
	// review checkpoint; status queries are withheld until a response is
	// submitted or the execution is cancelled
	PhaseAwaitingReview Phase = "awaiting-review"

	// PhaseCompleted and PhaseFailed are transient claims held while
	// terminal side effects run; the coordinator settles back to idle
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

var phaseTransitions = StateTransitions[Phase]{
	PhaseIdle: util.SetOf(PhasePolling),
	PhasePolling: util.SetOf(
		PhaseAwaitingReview,
		PhaseCompleted,
		PhaseFailed,
		PhaseIdle,
	),
	PhaseAwaitingReview: util.SetOf(
		PhasePolling,
		PhaseIdle,
	),
	PhaseCompleted: util.SetOf(PhaseIdle),
	PhaseFailed:    util.SetOf(PhaseIdle),
}

// CanTransition returns whether transition from one phase to another is
// valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}
