package server_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/assert/helpers"
	"github.com/draftforge/draftforge/internal/server"
	"github.com/draftforge/draftforge/pkg/api"
	"github.com/draftforge/draftforge/pkg/sdk"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withServer runs a test against the full HTTP stack: router, coordinator,
// in-memory bucket, and mock backend, reached through the SDK client
func withServer(
	t *testing.T, fn func(*helpers.TestWizardEnv, *sdk.Client),
) {
	t.Helper()
	helpers.WithWizard(t, func(env *helpers.TestWizardEnv) {
		srv := server.NewServer(
			env.Coordinator, env.Store, env.Catalog, env.Notifier,
			"draftforge", "test",
		)
		ts := httptest.NewServer(srv.SetupRoutes())
		defer func() {
			srv.CloseWebSockets()
			ts.Close()
		}()

		fn(env, sdk.NewClient(ts.URL, 5*time.Second))
	})
}

func TestHealthEndpoint(t *testing.T) {
	withServer(t, func(_ *helpers.TestWizardEnv, c *sdk.Client) {
		health, err := c.Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "draftforge", health.Service)
		assert.Equal(t, "healthy", health.Status)
	})
}

func TestListChaptersEndpoint(t *testing.T) {
	withServer(t, func(_ *helpers.TestWizardEnv, c *sdk.Client) {
		list, err := c.Chapters(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, list.Count)
		require.Len(t, list.Chapters, 3)
		assert.Equal(t, helpers.ChapterTitle(1), list.Chapters[0].Title)
		assert.Equal(t, api.ChapterNotStarted, list.Chapters[0].Status)
	})
}

func TestWizardSaveAndReload(t *testing.T) {
	withServer(t, func(_ *helpers.TestWizardEnv, c *sdk.Client) {
		ctx := context.Background()
		chapter := c.Chapter(2)

		saved, err := chapter.SaveWizard(ctx, &api.UpdateWizardRequest{
			Title:        "Crossing at Night",
			Notes:        "storm building",
			TargetLength: 4200,
			Tone:         api.ToneSuspenseful,
		})
		require.NoError(t, err)
		assert.Equal(t, "Crossing at Night", saved.Title)

		state, err := chapter.Wizard(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Crossing at Night", state.Title)
		assert.Equal(t, 4200, state.TargetLength)
		assert.Equal(t, api.ToneSuspenseful, state.Tone)
	})
}

func TestGenerateApproveOverHTTP(t *testing.T) {
	withServer(t, func(env *helpers.TestWizardEnv, c *sdk.Client) {
		ctx := context.Background()
		chapter := c.Chapter(1)

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := chapter.Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		require.NotNil(t, handle)

		snap, err := c.Coordinator(ctx)
		require.NoError(t, err)
		assert.Equal(t, "polling", snap.Phase)
		require.NotNil(t, snap.Handle)

		env.WriteStepContent(t, 1, api.StepSceneBrief, "the brief")
		env.Engine.SetCompleted(handle.ExecutionID)
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventExecutionCompleted)

		content, err := chapter.StepContent(ctx, api.StepSceneBrief)
		require.NoError(t, err)
		assert.Equal(t, "the brief", content)

		state, err := chapter.Approve(ctx, api.StepSceneBrief, "good hook")
		require.NoError(t, err)
		assert.True(t, state.IsApproved(api.StepSceneBrief))
		assert.Equal(t, "good hook",
			state.Step(api.StepSceneBrief).ApprovalNotes)
	})
}

func TestStepAliasAccepted(t *testing.T) {
	withServer(t, func(env *helpers.TestWizardEnv, c *sdk.Client) {
		ctx := context.Background()
		env.WriteStepContent(t, 1, api.StepDraft, "draft text")

		// Legacy clients address the draft step as "first-draft"
		content, err := c.Chapter(1).StepContent(ctx, "first-draft")
		require.NoError(t, err)
		assert.Equal(t, "draft text", content)
	})
}

func TestReviewOverHTTP(t *testing.T) {
	withServer(t, func(env *helpers.TestWizardEnv, c *sdk.Client) {
		ctx := context.Background()

		events, unsubscribe := env.Notifier.Subscribe()
		defer unsubscribe()

		handle, err := c.Chapter(1).Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)

		env.Engine.SetReview(handle.ExecutionID, &api.PendingReview{
			Content:        "brief candidate",
			ExpectedFields: []string{"feedback"},
		})
		env.Timers.Tick()
		helpers.WaitEvent(t, events, api.EventReviewRequested)

		snap, err := c.Coordinator(ctx)
		require.NoError(t, err)
		assert.Equal(t, "awaiting-review", snap.Phase)
		require.NotNil(t, snap.PendingReview)

		snap, err = c.SubmitReview(ctx, map[string]string{
			"feedback": "sharpen it",
		})
		require.NoError(t, err)
		assert.Equal(t, "polling", snap.Phase)
		assert.Nil(t, snap.PendingReview)
	})
}

func TestCancelOverHTTP(t *testing.T) {
	withServer(t, func(env *helpers.TestWizardEnv, c *sdk.Client) {
		ctx := context.Background()

		_, err := c.CancelGeneration(ctx)
		assert.ErrorIs(t, err, sdk.ErrCancel)

		handle, err := c.Chapter(1).Generate(ctx, api.StepSceneBrief)
		require.NoError(t, err)

		snap, err := c.CancelGeneration(ctx)
		require.NoError(t, err)
		assert.Equal(t, "idle", snap.Phase)
		assert.Contains(t, env.Engine.Cancelled(), handle.ExecutionID)
	})
}

func TestAdvanceOverHTTP(t *testing.T) {
	withServer(t, func(env *helpers.TestWizardEnv, c *sdk.Client) {
		ctx := context.Background()

		env.OpenGenerated(t, 1, "")
		next, err := c.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, api.ChapterID(2), next)

		snap, err := c.Coordinator(ctx)
		require.NoError(t, err)
		assert.Equal(t, api.ChapterID(2), snap.Chapter)
	})
}

func TestErrorStatusMapping(t *testing.T) {
	withServer(t, func(_ *helpers.TestWizardEnv, c *sdk.Client) {
		ctx := context.Background()

		// Unknown chapter
		_, err := c.Chapter(99).Wizard(ctx)
		assert.ErrorContains(t, err, "status 404")

		// Unknown step
		_, err = c.Chapter(1).Generate(ctx, "outline")
		assert.ErrorContains(t, err, "status 404")

		// Dependency gate
		_, err = c.Chapter(1).Generate(ctx, api.StepDraft)
		assert.ErrorContains(t, err, "status 409")

		// Nothing to advance past
		_, err = c.Advance(ctx)
		assert.ErrorContains(t, err, "status 409")

		// Tone outside the vocabulary
		_, err = c.Chapter(1).SaveWizard(ctx, &api.UpdateWizardRequest{
			Title:        "T",
			TargetLength: 1000,
			Tone:         "operatic",
		})
		assert.ErrorContains(t, err, "status 400")
	})
}
