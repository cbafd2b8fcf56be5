package wizard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/assert/helpers"
	"github.com/draftforge/draftforge/internal/wizard"
	"github.com/draftforge/draftforge/pkg/api"
)

func TestOpenSeedsCatalogTitle(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		state, err := env.Coordinator.WizardState()
		require.NoError(t, err)
		assert.Equal(t, helpers.ChapterTitle(1), state.Title)
		assert.Equal(t, api.ChapterID(1), env.Coordinator.Chapter())
		assert.Equal(t, wizard.PhaseIdle, env.Coordinator.Phase())
	})
}

func TestOpenUnknownChapter(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		err := env.Coordinator.Open(context.Background(), 99)
		assert.ErrorIs(t, err, wizard.ErrUnknownChapter)
	})
}

func TestGenerateLaunchesExecution(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		handle, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		assert.Equal(t, api.StepSceneBrief, handle.StepID)
		assert.Equal(t, api.ChapterID(1), handle.Chapter)
		assert.NotEmpty(t, handle.ExecutionID)

		snap := env.Coordinator.Snapshot()
		assert.Equal(t, string(wizard.PhasePolling), snap.Phase)
		require.NotNil(t, snap.Handle)
		assert.Equal(t, handle.ExecutionID, snap.Handle.ExecutionID)

		started := env.Engine.Started()
		require.Len(t, started, 1)
		assert.Equal(t, api.ChapterID(1), started[0].Chapter)
		assert.Equal(t, api.StepSceneBrief, started[0].Step)
		assert.Equal(t, helpers.ChapterTitle(1), started[0].Title)

		// Only one execution at a time
		_, err = env.Coordinator.Generate(ctx, api.StepSceneBrief)
		assert.ErrorIs(t, err, wizard.ErrExecutionActive)
		assert.False(t, env.Coordinator.CanGenerate(api.StepSceneBrief))
	})
}

func TestGenerateBlockedOnDependencies(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		_, err := env.Coordinator.Generate(ctx, api.StepDraft)
		assert.ErrorIs(t, err, wizard.ErrDependenciesNotApproved)

		_, err = env.Coordinator.Generate(ctx, api.StepID("outline"))
		assert.ErrorIs(t, err, api.ErrUnknownStep)
	})
}

func TestGenerateLaunchFailure(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		boom := errors.New("backend unavailable")
		env.Engine.SetStartErr(boom)

		_, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		assert.ErrorIs(t, err, boom)

		// No handle retained; the step may be attempted again
		assert.Equal(t, wizard.PhaseIdle, env.Coordinator.Phase())
		assert.Nil(t, env.Coordinator.Snapshot().Handle)
		assert.True(t, env.Coordinator.CanGenerate(api.StepSceneBrief))
	})
}

func TestGenerateIncludesPreviousChapterContent(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		env.WriteStepContent(t, 1, api.StepFinal, "chapter one prose")
		require.NoError(t, env.Coordinator.Open(ctx, 2))

		_, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)

		started := env.Engine.Started()
		require.Len(t, started, 1)
		assert.Equal(t, "chapter one prose", started[0].PreviousChapter)
	})
}

func TestPollToCompletion(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		env.OpenGenerated(t, 3, api.StepDraft)
		env.WriteStepContent(t, 3, api.StepDraft, "the draft text")

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		require.True(t, env.Coordinator.CanGenerate(api.StepDraft))
		handle, err := env.Coordinator.Generate(ctx, api.StepDraft)
		require.NoError(t, err)

		env.Engine.SetCompleted(handle.ExecutionID)
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventExecutionCompleted)

		assert.Equal(t, wizard.PhaseIdle, env.Coordinator.Phase())
		assert.Nil(t, env.Coordinator.Snapshot().Handle)

		state, err := env.Coordinator.WizardState()
		require.NoError(t, err)
		assert.True(t, state.IsGenerated(api.StepDraft))
		assert.False(t, state.IsApproved(api.StepDraft))

		// Bookkeeping reached the durable record
		persisted := env.Store.Load(ctx, 3)
		assert.True(t, persisted.IsGenerated(api.StepDraft))

		content, err := env.Coordinator.StepContent(ctx, api.StepDraft)
		require.NoError(t, err)
		assert.Equal(t, "the draft text", content)
	})
}

func TestPollFailure(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)

		env.Engine.SetFailed(handle.ExecutionID, "model refused")
		env.Timers.Tick()
		event := helpers.WaitEvent(t, events, api.EventExecutionFailed)
		assert.Equal(t, "model refused", event.Error)

		assert.Equal(t, wizard.PhaseIdle, env.Coordinator.Phase())
		state, err := env.Coordinator.WizardState()
		require.NoError(t, err)
		assert.False(t, state.IsGenerated(api.StepSceneBrief))
	})
}

func TestPollTransportErrorRetries(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)

		env.Engine.SetStatusErr(errors.New("connection reset"))
		env.Timers.Tick()
		env.Timers.Tick()
		assert.Equal(t, wizard.PhasePolling, env.Coordinator.Phase())

		env.Engine.SetStatusErr(nil)
		env.Engine.SetCompleted(handle.ExecutionID)
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventExecutionCompleted)
	})
}

func TestReviewCheckpoint(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)

		env.Engine.SetReview(handle.ExecutionID, &api.PendingReview{
			Content:        "brief candidate",
			Description:    "Confirm the scene focus",
			ExpectedFields: []string{"feedback"},
		})
		env.Timers.Tick()
		event := helpers.WaitEvent(t, events, api.EventReviewRequested)
		require.NotNil(t, event.Review)
		assert.Equal(t, "brief candidate", event.Review.Content)

		assert.Equal(t, wizard.PhaseAwaitingReview, env.Coordinator.Phase())
		review := env.Coordinator.PendingReview()
		require.NotNil(t, review)
		assert.Equal(t, []string{"feedback"}, review.ExpectedFields)

		// While a review is pending no status queries are issued
		calls := env.Engine.StatusCalls()
		env.Timers.Tick()
		env.Timers.Tick()
		assert.Equal(t, calls, env.Engine.StatusCalls())

		err = env.Coordinator.SubmitReview(ctx, map[string]string{
			"feedback": "tighten the opening",
		})
		require.NoError(t, err)
		helpers.WaitEvent(t, events, api.EventReviewSubmitted)

		responded := env.Engine.Responded()
		require.Len(t, responded, 1)
		assert.Equal(t, "tighten the opening", responded[0]["feedback"])
		assert.Equal(t, wizard.PhasePolling, env.Coordinator.Phase())
		assert.Nil(t, env.Coordinator.PendingReview())

		env.Engine.SetCompleted(handle.ExecutionID)
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventExecutionCompleted)
	})
}

func TestSubmitReviewValidation(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		err := env.Coordinator.SubmitReview(ctx, map[string]string{"x": "y"})
		assert.ErrorIs(t, err, wizard.ErrNoPendingReview)

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		env.Engine.SetReview(handle.ExecutionID, &api.PendingReview{
			ExpectedFields: []string{"feedback"},
		})
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventReviewRequested)

		err = env.Coordinator.SubmitReview(ctx, map[string]string{
			"unrelated": "value",
		})
		assert.ErrorIs(t, err, wizard.ErrMissingReview)

		// A rejected response leaves the review pending
		boom := errors.New("respond rejected")
		env.Engine.SetRespondErr(boom)
		err = env.Coordinator.SubmitReview(ctx, map[string]string{
			"feedback": "looks fine",
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, wizard.PhaseAwaitingReview, env.Coordinator.Phase())
		assert.NotNil(t, env.Coordinator.PendingReview())
	})
}

func TestCancelWhilePolling(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)

		require.NoError(t, env.Coordinator.CancelGeneration(ctx))
		helpers.WaitEvent(t, events, api.EventExecutionCancelled)

		assert.Equal(t, wizard.PhaseIdle, env.Coordinator.Phase())
		assert.Contains(t, env.Engine.Cancelled(), handle.ExecutionID)

		err = env.Coordinator.CancelGeneration(ctx)
		assert.ErrorIs(t, err, wizard.ErrNothingToCancel)

		// A completion that was already in flight must be ignored
		env.Engine.SetCompleted(handle.ExecutionID)
		env.Timers.Tick()
		env.Coordinator.Close()

		state, err := env.Coordinator.WizardState()
		require.NoError(t, err)
		assert.False(t, state.IsGenerated(api.StepSceneBrief))
		assert.Equal(t, wizard.PhaseIdle, env.Coordinator.Phase())
	})
}

func TestCancelDuringReview(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := env.Coordinator.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		env.Engine.SetReview(handle.ExecutionID, &api.PendingReview{
			ExpectedFields: []string{"feedback"},
		})
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventReviewRequested)

		require.NoError(t, env.Coordinator.CancelGeneration(ctx))
		assert.Equal(t, wizard.PhaseIdle, env.Coordinator.Phase())
		assert.Nil(t, env.Coordinator.PendingReview())
		assert.Contains(t, env.Engine.Cancelled(), handle.ExecutionID)
	})
}

func TestCoordinatorApprove(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		env.OpenGenerated(t, 1, api.StepDraft)

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		err := env.Coordinator.Approve(ctx, api.StepDraft, "solid start")
		assert.ErrorIs(t, err, wizard.ErrNotGenerated)

		handle, err := env.Coordinator.Generate(ctx, api.StepDraft)
		require.NoError(t, err)
		env.Engine.SetCompleted(handle.ExecutionID)
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventExecutionCompleted)

		require.NoError(t, env.Coordinator.Approve(
			ctx, api.StepDraft, "solid start",
		))
		helpers.WaitEvent(t, events, api.EventStepApproved)

		persisted := env.Store.Load(ctx, 1)
		assert.True(t, persisted.IsApproved(api.StepDraft))
		assert.Equal(t, "solid start",
			persisted.Step(api.StepDraft).ApprovalNotes)
	})
}

func TestTerminalApprovalCompletesChapter(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		env.OpenGenerated(t, 1, api.StepFinal)

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := env.Coordinator.Generate(ctx, api.StepFinal)
		require.NoError(t, err)
		env.Engine.SetCompleted(handle.ExecutionID)
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventExecutionCompleted)

		require.NoError(t, env.Coordinator.Approve(ctx, api.StepFinal, ""))
		helpers.WaitEvent(t, events, api.EventChapterCompleted)

		state, err := env.Coordinator.WizardState()
		require.NoError(t, err)
		assert.True(t, state.IsComplete())
		assert.Equal(t, api.ChapterCompleted, state.Status())
	})
}

func TestAdvance(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		_, err := env.Coordinator.Advance(ctx)
		assert.ErrorIs(t, err, wizard.ErrChapterNotDone)

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		env.OpenGenerated(t, 1, "")
		next, err := env.Coordinator.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, api.ChapterID(2), next)
		assert.Equal(t, api.ChapterID(2), env.Coordinator.Chapter())
		helpers.WaitEvent(t, events, api.EventChapterAdvanced)

		// Fresh chapter, fresh state
		state, err := env.Coordinator.WizardState()
		require.NoError(t, err)
		assert.False(t, state.IsGenerated(api.StepSceneBrief))
		assert.Equal(t, helpers.ChapterTitle(2), state.Title)
	})
}

func TestAdvancePastLastChapter(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		env.OpenGenerated(t, 3, "")

		_, err := env.Coordinator.Advance(ctx)
		assert.ErrorIs(t, err, wizard.ErrLastChapter)
		assert.Equal(t, api.ChapterID(3), env.Coordinator.Chapter())
	})
}

func TestNoteDraftsAreTransient(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		env.OpenGenerated(t, 1, api.StepDraft)

		env.Coordinator.SetNoteDraft(api.StepSceneBrief, "mention the storm")
		assert.Equal(t, "mention the storm",
			env.Coordinator.NoteDraft(api.StepSceneBrief))

		// Chapter switch clears drafts
		require.NoError(t, env.Coordinator.Open(ctx, 2))
		assert.Empty(t, env.Coordinator.NoteDraft(api.StepSceneBrief))
	})
}

func TestStepContentCaching(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		// Missing content is not an error
		content, err := env.Coordinator.StepContent(ctx, api.StepDraft)
		require.NoError(t, err)
		assert.Empty(t, content)

		env.WriteStepContent(t, 1, api.StepSceneBrief, "first version")
		content, err = env.Coordinator.StepContent(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		assert.Equal(t, "first version", content)

		// Served from cache until the chapter is reopened
		env.WriteStepContent(t, 1, api.StepSceneBrief, "second version")
		content, err = env.Coordinator.StepContent(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		assert.Equal(t, "first version", content)

		require.NoError(t, env.Coordinator.Open(ctx, 2))
		require.NoError(t, env.Coordinator.Open(ctx, 1))
		content, err = env.Coordinator.StepContent(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		assert.Equal(t, "second version", content)
	})
}

func TestUpdateWizardValidation(t *testing.T) {
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		ctx := context.Background()
		require.NoError(t, env.Coordinator.Open(ctx, 1))

		err := env.Coordinator.UpdateWizard(ctx, "T", "", 2000, "operatic")
		assert.ErrorIs(t, err, wizard.ErrInvalidTone)

		err = env.Coordinator.UpdateWizard(ctx, "T", "", 0, api.ToneGritty)
		assert.ErrorIs(t, err, wizard.ErrInvalidLength)

		require.NoError(t, env.Coordinator.UpdateWizard(
			ctx, "The Beacon", "slow burn", 4500, api.ToneSuspenseful,
		))
		persisted := env.Store.Load(ctx, 1)
		assert.Equal(t, "The Beacon", persisted.Title)
		assert.Equal(t, "slow burn", persisted.Notes)
		assert.Equal(t, 4500, persisted.TargetLength)
		assert.Equal(t, api.ToneSuspenseful, persisted.Tone)
	})
}
