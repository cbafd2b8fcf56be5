package api

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Step identifiers in pipeline order. ApplyPlan and Final each depend on
// more than their immediate predecessor, so sequencing and generation
// gating consult StepDependencies rather than assuming a simple chain.
const (
	StepSceneBrief  StepID = "scene-brief"
	StepDraft       StepID = "draft"
	StepImprovePlan StepID = "improve-plan"
	StepApplyPlan   StepID = "apply-plan"
	StepFinal       StepID = "final"
)

// TerminalStep is the step whose approval completes a chapter
const TerminalStep = StepFinal

var (
	ErrUnknownStep = errors.New("unknown step")

	stepOrder = []StepID{
		StepSceneBrief,
		StepDraft,
		StepImprovePlan,
		StepApplyPlan,
		StepFinal,
	}

	stepDeps = map[StepID][]StepID{
		StepSceneBrief:  {},
		StepDraft:       {StepSceneBrief},
		StepImprovePlan: {StepDraft},
		StepApplyPlan:   {StepDraft, StepImprovePlan},
		StepFinal:       {StepDraft, StepApplyPlan},
	}

	// Aliases accepted by the original backend router
	stepAliases = map[string]StepID{
		"scenebrief":             StepSceneBrief,
		"first-draft":            StepDraft,
		"firstdraft":             StepDraft,
		"improvement-plan":       StepImprovePlan,
		"improveplan":            StepImprovePlan,
		"improvementplan":        StepImprovePlan,
		"apply-improvement-plan": StepApplyPlan,
		"applyimprovementplan":   StepApplyPlan,
		"applyplan":              StepApplyPlan,
		"final-draft":            StepFinal,
		"finaldraft":             StepFinal,
	}
)

// StepOrder returns the fixed total ordering of drafting steps
func StepOrder() []StepID {
	return slices.Clone(stepOrder)
}

// StepDependencies returns the declared dependency steps for a step. The
// result is empty for the first step and may include non-adjacent
// predecessors
func StepDependencies(id StepID) []StepID {
	return slices.Clone(stepDeps[id])
}

// StepIndex returns the position of a step in the fixed ordering, or -1 if
// the step is unknown
func StepIndex(id StepID) int {
	return slices.Index(stepOrder, id)
}

// IsValidStep returns whether the identifier names a known drafting step
func IsValidStep(id StepID) bool {
	return StepIndex(id) >= 0
}

// ParseStepID resolves a step identifier, accepting the legacy aliases used
// by older clients
func ParseStepID(s string) (StepID, error) {
	id := StepID(strings.ToLower(strings.TrimSpace(s)))
	if IsValidStep(id) {
		return id, nil
	}
	if alias, ok := stepAliases[string(id)]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownStep, s)
}
