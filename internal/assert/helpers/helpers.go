// Package helpers provides shared fixtures for coordinator and server
// tests: an in-memory artifact bucket, a scripted workflow backend, and
// manually driven clocks and timers
package helpers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/draftforge/draftforge/internal/artifact"
	"github.com/draftforge/draftforge/internal/wizard"
	"github.com/draftforge/draftforge/pkg/api"
)

type (
	// TestWizardEnv holds the components needed for coordinator testing
	TestWizardEnv struct {
		Coordinator *wizard.Coordinator
		Store       *wizard.Store
		Artifacts   artifact.Store
		Engine      *MockEngine
		Notifier    *wizard.Notifier
		Catalog     wizard.Catalog
		Clock       *ManualClock
		Timers      *TimerBox
		Cleanup     func()
	}

	// ManualClock is a test clock that advances one millisecond per read,
	// keeping persisted timestamps strictly increasing
	ManualClock struct {
		now time.Time
		mu  sync.Mutex
	}

	// ManualTimer is a Timer driven by explicit Tick calls
	ManualTimer struct {
		ch chan time.Time
	}

	// TimerBox hands out manual timers and remembers the latest one, so a
	// test can drive whichever poll loop is currently live
	TimerBox struct {
		latest *ManualTimer
		mu     sync.Mutex
	}
)

const (
	PrimaryRoot = "phase7_outputs"
	LegacyRoot  = "phase6_outputs"
)

func NewManualClock() *ManualClock {
	return &ManualClock{
		now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func NewManualTimer() *ManualTimer {
	return &ManualTimer{
		ch: make(chan time.Time),
	}
}

func (t *ManualTimer) Channel() <-chan time.Time {
	return t.ch
}

func (t *ManualTimer) Reset(time.Duration) bool {
	return true
}

func (t *ManualTimer) Stop() bool {
	return true
}

// Tick fires the timer once, blocking until the poll loop consumes it.
// The timeout path covers a loop that already exited, so an extra tick
// cannot hang the test
func (t *ManualTimer) Tick() {
	select {
	case t.ch <- time.Now():
	case <-time.After(3 * time.Second):
	}
}

func NewTimerBox() *TimerBox {
	return &TimerBox{}
}

// Constructor is a wizard.TimerConstructor backed by manual timers
func (b *TimerBox) Constructor(time.Duration) wizard.Timer {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = NewManualTimer()
	return b.latest
}

// Tick fires the most recently constructed timer, waiting briefly for a
// freshly launched poll loop to construct one
func (b *TimerBox) Tick() {
	deadline := time.Now().Add(3 * time.Second)
	for {
		b.mu.Lock()
		timer := b.latest
		b.mu.Unlock()
		if timer != nil {
			timer.Tick()
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// WithWizard runs a test against a coordinator wired to an in-memory
// bucket and a mock backend, with chapters 1-3 in the catalog
func WithWizard(t *testing.T, fn func(*TestWizardEnv)) {
	t.Helper()
	ctx := context.Background()

	bucket := memblob.OpenBucket(nil)
	artifacts := artifact.NewBlobStoreFromBucket(bucket, "")
	WriteManifest(t, bucket, 3)

	catalog, err := wizard.LoadCatalog(ctx, artifacts)
	require.NoError(t, err)

	clock := NewManualClock()
	timers := NewTimerBox()
	engine := NewMockEngine()
	notifier := wizard.NewNotifier()
	store := wizard.NewStore(artifacts, PrimaryRoot, LegacyRoot, clock.Now)

	co := wizard.NewCoordinator(store, engine, catalog, notifier,
		wizard.WithClock(clock.Now),
		wizard.WithTimerConstructor(timers.Constructor),
	)

	env := &TestWizardEnv{
		Coordinator: co,
		Store:       store,
		Artifacts:   artifacts,
		Engine:      engine,
		Notifier:    notifier,
		Catalog:     catalog,
		Clock:       clock,
		Timers:      timers,
		Cleanup: func() {
			co.Close()
			notifier.Close()
			_ = bucket.Close()
		},
	}
	defer env.Cleanup()
	fn(env)
}

// WriteManifest stores a project manifest listing the given number of
// chapters in the bucket
func WriteManifest(t *testing.T, bucket *blob.Bucket, chapters int) {
	t.Helper()
	refs := make([]map[string]any, 0, chapters)
	for i := 1; i <= chapters; i++ {
		refs = append(refs, map[string]any{
			"number": i,
			"title":  ChapterTitle(i),
		})
	}
	manifest := map[string]any{
		"state": map[string]any{
			"chapters": refs,
		},
	}
	body, err := json.Marshal(manifest)
	require.NoError(t, err)
	err = bucket.WriteAll(
		context.Background(), "manifest.json", body, nil,
	)
	require.NoError(t, err)
}

// ChapterTitle returns the manifest title used for a test chapter
func ChapterTitle(chapter int) string {
	return map[int]string{
		1: "The Lighthouse",
		2: "Crossing the Sound",
		3: "Landfall",
	}[chapter]
}

// WriteStepContent stores a step's output artifact under the primary root
func (env *TestWizardEnv) WriteStepContent(
	t *testing.T, chapter api.ChapterID, step api.StepID, content string,
) {
	t.Helper()
	path := wizard.StepArtifactPath(PrimaryRoot, chapter, step)
	err := env.Artifacts.Write(context.Background(), path, content)
	require.NoError(t, err)
}

// OpenGenerated opens a chapter and fast-forwards its wizard state so
// that every step before the given one is generated and approved. An
// empty step fast-forwards the whole chapter
func (env *TestWizardEnv) OpenGenerated(
	t *testing.T, chapter api.ChapterID, upTo api.StepID,
) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.Coordinator.Open(ctx, chapter))

	for _, id := range api.StepOrder() {
		if id == upTo {
			break
		}
		env.WriteStepContent(t, chapter, id, "content for "+string(id))
		env.approveDirect(t, chapter, id)
	}
}

// approveDirect marks a step generated and approved straight through the
// store, then reopens the chapter so the coordinator sees it
func (env *TestWizardEnv) approveDirect(
	t *testing.T, chapter api.ChapterID, step api.StepID,
) {
	t.Helper()
	ctx := context.Background()
	state := env.Store.Load(ctx, chapter)
	now := env.Clock.Now()
	st := state.Step(step)
	st.GeneratedAt = now
	st.ApprovedAt = now
	require.NoError(t, env.Store.Persist(ctx, state))
	env.reopen(t, chapter)
}

func (env *TestWizardEnv) reopen(t *testing.T, chapter api.ChapterID) {
	t.Helper()
	ctx := context.Background()
	other := chapter%3 + 1
	require.NoError(t, env.Coordinator.Open(ctx, other))
	require.NoError(t, env.Coordinator.Open(ctx, chapter))
}

// WaitEvent blocks until an event of the given type arrives on the
// channel, failing the test after a timeout. Other events are skipped
func WaitEvent(
	t *testing.T, events <-chan *api.Event, want api.EventType,
) *api.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-events:
			if event != nil && event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s event", want)
			return nil
		}
	}
}
