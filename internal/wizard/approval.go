package wizard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/draftforge/draftforge/pkg/api"
)

var (
	ErrNotGenerated = errors.New(
		"step has no generated output to approve",
	)
	ErrDependenciesNotApproved = errors.New(
		"dependency steps are not approved",
	)
	ErrExecutionActive = errors.New("an execution is already running")
	ErrTitleRequired   = errors.New("chapter title is required")
)

// CanEnter reports whether the step at the given position may be opened
// in the wizard UI sequence. The first step is always enterable; later
// steps require the immediately preceding step to be approved
func CanEnter(state *api.WizardState, index int) bool {
	order := api.StepOrder()
	if index < 0 || index >= len(order) {
		return false
	}
	if index == 0 {
		return true
	}
	return state.IsApproved(order[index-1])
}

// CanGenerate reports whether a step may be (re)generated. Generation is
// blocked while an execution is open, until the chapter has a title, and
// until every declared dependency step has been approved
func CanGenerate(
	state *api.WizardState, step api.StepID, hasActiveExecution bool,
) bool {
	return checkGenerate(state, step, hasActiveExecution) == nil
}

func checkGenerate(
	state *api.WizardState, step api.StepID, hasActiveExecution bool,
) error {
	if !api.IsValidStep(step) {
		return fmt.Errorf("%w: %s", api.ErrUnknownStep, step)
	}
	if hasActiveExecution {
		return ErrExecutionActive
	}
	if strings.TrimSpace(state.Title) == "" {
		return ErrTitleRequired
	}
	for _, dep := range api.StepDependencies(step) {
		if !state.IsApproved(dep) {
			return fmt.Errorf("%w: %s requires %s", ErrDependenciesNotApproved,
				step, dep)
		}
	}
	return nil
}

// MarkGenerated records that a step's output was produced. Idempotent:
// an existing timestamp survives regeneration observation replays
func MarkGenerated(state *api.WizardState, step api.StepID, now time.Time) {
	st := state.Step(step)
	if st.GeneratedAt.IsZero() {
		st.GeneratedAt = now
	}
}

// Approve records a human approval with optional notes. The step must
// have generated output. Approving the terminal step completes the
// chapter; CompletedAt is set exactly once
func Approve(
	state *api.WizardState, step api.StepID, notes string, now time.Time,
) error {
	if !state.IsGenerated(step) {
		return fmt.Errorf("%w: %s", ErrNotGenerated, step)
	}

	st := state.Step(step)
	st.ApprovedAt = now
	st.ApprovalNotes = notes

	if step == api.TerminalStep && state.CompletedAt.IsZero() {
		state.CompletedAt = now
	}
	return nil
}
