package api

import (
	"slices"
	"time"
)

type (
	// ExecutionStatus represents the remote state of a step execution
	ExecutionStatus string

	// Tone is an entry in the fixed narration tone vocabulary
	Tone string

	// ChapterStatus summarizes drafting progress for a chapter
	ChapterStatus string

	// WizardState is the durable drafting progress record for one chapter.
	// It is loaded at the start of every session or chapter switch and
	// persisted after every mutation
	WizardState struct {
		SchemaVersion int                   `json:"schema_version"`
		Chapter       ChapterID             `json:"chapter"`
		Title         string                `json:"title"`
		Notes         string                `json:"notes,omitempty"`
		TargetLength  int                   `json:"target_length"`
		Tone          Tone                  `json:"tone"`
		Steps         map[StepID]*StepState `json:"steps"`
		CompletedAt   time.Time             `json:"completed_at,omitzero"`
		UpdatedAt     time.Time             `json:"updated_at"`
	}

	// StepState is the per-step generated/approved bookkeeping
	StepState struct {
		GeneratedAt   time.Time `json:"generated_at,omitzero"`
		ApprovedAt    time.Time `json:"approved_at,omitzero"`
		ApprovalNotes string    `json:"approval_notes,omitempty"`
	}

	// ExecutionHandle tracks the single live remote execution owned by a
	// coordinator instance
	ExecutionHandle struct {
		ExecutionID ExecutionID `json:"execution_id"`
		StepID      StepID      `json:"step_id"`
		Chapter     ChapterID   `json:"chapter"`
		StartedAt   time.Time   `json:"started_at"`
	}

	// PendingReview is surfaced mid-execution when the remote engine needs
	// a human decision before continuing
	PendingReview struct {
		Content        string   `json:"content"`
		Description    string   `json:"description"`
		ExpectedFields []string `json:"expected_fields"`
	}
)

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

const (
	ChapterNotStarted ChapterStatus = "not-started"
	ChapterInProgress ChapterStatus = "in-progress"
	ChapterCompleted  ChapterStatus = "completed"
)

const (
	ToneNeutral     Tone = "neutral"
	ToneLiterary    Tone = "literary"
	ToneGritty      Tone = "gritty"
	ToneWhimsical   Tone = "whimsical"
	ToneSuspenseful Tone = "suspenseful"
	ToneRomantic    Tone = "romantic"
)

const (
	// WizardSchemaVersion is the current on-disk schema version
	WizardSchemaVersion = 2

	// DefaultTargetLength is the word budget assigned to new chapters
	DefaultTargetLength = 3000
)

// Tones returns the fixed tone vocabulary
func Tones() []Tone {
	return []Tone{
		ToneNeutral,
		ToneLiterary,
		ToneGritty,
		ToneWhimsical,
		ToneSuspenseful,
		ToneRomantic,
	}
}

// IsValidTone returns whether the tone is part of the fixed vocabulary
func IsValidTone(t Tone) bool {
	return slices.Contains(Tones(), t)
}

// NewWizardState creates an empty progress record for a chapter with all
// steps present and untouched
func NewWizardState(chapter ChapterID, now time.Time) *WizardState {
	steps := make(map[StepID]*StepState, len(StepOrder()))
	for _, id := range StepOrder() {
		steps[id] = &StepState{}
	}
	return &WizardState{
		SchemaVersion: WizardSchemaVersion,
		Chapter:       chapter,
		TargetLength:  DefaultTargetLength,
		Tone:          ToneNeutral,
		Steps:         steps,
		UpdatedAt:     now,
	}
}

// Step returns the state record for a step, creating an empty one if the
// persisted record predates the step
func (w *WizardState) Step(id StepID) *StepState {
	if w.Steps == nil {
		w.Steps = map[StepID]*StepState{}
	}
	st, ok := w.Steps[id]
	if !ok {
		st = &StepState{}
		w.Steps[id] = st
	}
	return st
}

// IsGenerated returns whether the step's output has been produced
func (w *WizardState) IsGenerated(id StepID) bool {
	st, ok := w.Steps[id]
	return ok && !st.GeneratedAt.IsZero()
}

// IsApproved returns whether the step's output has been human-approved
func (w *WizardState) IsApproved(id StepID) bool {
	st, ok := w.Steps[id]
	return ok && !st.ApprovedAt.IsZero()
}

// IsComplete returns whether the terminal step has been approved
func (w *WizardState) IsComplete() bool {
	return !w.CompletedAt.IsZero()
}

// Clone returns a deep copy safe to hand to readers
func (w *WizardState) Clone() *WizardState {
	res := *w
	res.Steps = make(map[StepID]*StepState, len(w.Steps))
	for id, st := range w.Steps {
		step := *st
		res.Steps[id] = &step
	}
	return &res
}

// Status derives the chapter's summary status from step bookkeeping
func (w *WizardState) Status() ChapterStatus {
	if w.IsComplete() {
		return ChapterCompleted
	}
	for _, id := range StepOrder() {
		if w.IsGenerated(id) {
			return ChapterInProgress
		}
	}
	return ChapterNotStarted
}
