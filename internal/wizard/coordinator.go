package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/draftforge/draftforge/internal/client"
	"github.com/draftforge/draftforge/internal/util"
	"github.com/draftforge/draftforge/pkg/api"
	"github.com/draftforge/draftforge/pkg/log"
)

type (
	// Coordinator owns the drafting lifecycle for the active chapter: it
	// gates step generation on approvals, launches remote executions,
	// polls them to completion or review, and persists progress. At most
	// one execution is open at a time.
	//
	// All mutable state is guarded by one mutex. Poll loops run on their
	// own goroutines but may only touch state through an epoch check, so
	// loops orphaned by cancellation or chapter switches observe nothing
	Coordinator struct {
		store    *Store
		engine   client.Client
		catalog  Catalog
		notifier *Notifier
		clock    Clock
		newTimer TimerConstructor

		pollInterval time.Duration
		ctx          context.Context
		cancel       context.CancelFunc
		wg           sync.WaitGroup

		mu        sync.Mutex
		chapter   api.ChapterID
		state     *api.WizardState
		phase     Phase
		handle    *api.ExecutionHandle
		review    *api.PendingReview
		launching bool
		epoch     uint64
		content   *util.LRUCache[api.ChapterStep, string]
		notes     map[api.StepID]string
	}

	// Option configures a Coordinator
	Option func(*Coordinator)
)

var (
	ErrNoChapterOpen    = errors.New("no chapter is open")
	ErrUnknownChapter   = errors.New("chapter not in catalog")
	ErrNothingToCancel  = errors.New("no execution to cancel")
	ErrNoPendingReview  = errors.New("no review is pending")
	ErrMissingReview    = errors.New("review response has no expected field")
	ErrChapterNotDone   = errors.New("terminal step is not approved")
	ErrLastChapter      = errors.New("no chapter follows the current one")
	ErrInvalidTone      = errors.New("tone not in vocabulary")
	ErrInvalidLength    = errors.New("target length must be positive")
	errStaleExecution   = errors.New("execution superseded")
)

// WithClock overrides the wall clock, used by tests
func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithTimerConstructor overrides polling timer construction, used by
// tests to drive ticks manually
func WithTimerConstructor(tc TimerConstructor) Option {
	return func(c *Coordinator) {
		c.newTimer = tc
	}
}

// WithPollInterval sets the status polling interval
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.pollInterval = d
	}
}

// WithContentCacheSize bounds the transient step content cache
func WithContentCacheSize(n int) Option {
	return func(c *Coordinator) {
		c.content = util.NewLRUCache[api.ChapterStep, string](n)
	}
}

func NewCoordinator(
	store *Store, engine client.Client, catalog Catalog,
	notifier *Notifier, opts ...Option,
) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:        store,
		engine:       engine,
		catalog:      catalog,
		notifier:     notifier,
		clock:        time.Now,
		newTimer:     NewTimer,
		pollInterval: 2500 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
		phase:        PhaseIdle,
		content:      util.NewLRUCache[api.ChapterStep, string](64),
		notes:        map[api.StepID]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open makes a chapter the active unit of work, clearing all transient
// coordinator state and loading the chapter's persisted progress. A
// fresh chapter is seeded with its catalog title
func (c *Coordinator) Open(ctx context.Context, chapter api.ChapterID) error {
	if !c.catalog.Contains(chapter) {
		return fmt.Errorf("%w: %d", ErrUnknownChapter, chapter)
	}

	c.mu.Lock()
	if c.chapter == chapter && c.state != nil {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()
	c.chapter = chapter
	c.mu.Unlock()

	state := c.store.Load(ctx, chapter)
	if strings.TrimSpace(state.Title) == "" {
		for _, ref := range c.catalog {
			if ref.Number == chapter {
				state.Title = ref.Title
				break
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chapter != chapter {
		return nil
	}
	c.state = state
	return nil
}

// Close tears down the coordinator, stopping any polling loop
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// Chapter returns the active chapter
func (c *Coordinator) Chapter() api.ChapterID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chapter
}

// Phase returns the poller's current phase
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// WizardState returns a copy of the active chapter's progress record
func (c *Coordinator) WizardState() (*api.WizardState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil, ErrNoChapterOpen
	}
	return c.state.Clone(), nil
}

// Snapshot reports the coordinator's observable state for the cockpit
func (c *Coordinator) Snapshot() *api.CoordinatorStateResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := &api.CoordinatorStateResponse{
		Chapter: c.chapter,
		Phase:   string(c.phase),
	}
	if c.handle != nil {
		handle := *c.handle
		res.Handle = &handle
	}
	if c.review != nil {
		review := *c.review
		res.PendingReview = &review
	}
	return res
}

// UpdateWizard applies an explicit user save of the chapter's descriptive
// fields. Persistence failures are surfaced: a lost explicit save is
// user-visible
func (c *Coordinator) UpdateWizard(
	ctx context.Context, title, notes string, targetLength int, tone api.Tone,
) error {
	if !api.IsValidTone(tone) {
		return fmt.Errorf("%w: %s", ErrInvalidTone, tone)
	}
	if targetLength <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, targetLength)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return ErrNoChapterOpen
	}
	c.state.Title = title
	c.state.Notes = notes
	c.state.TargetLength = targetLength
	c.state.Tone = tone
	return c.store.Persist(ctx, c.state)
}

// CanGenerate reports whether a step may be generated right now
func (c *Coordinator) CanGenerate(step api.StepID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false
	}
	return CanGenerate(c.state, step, c.hasActiveLocked())
}

// Generate launches a remote execution for one step. Launch failures are
// surfaced and leave the coordinator idle with no handle retained
func (c *Coordinator) Generate(
	ctx context.Context, step api.StepID,
) (*api.ExecutionHandle, error) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return nil, ErrNoChapterOpen
	}
	if err := checkGenerate(c.state, step, c.hasActiveLocked()); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.launching = true
	req := &api.StartExecutionRequest{
		Chapter:      c.chapter,
		Step:         step,
		Title:        c.state.Title,
		Notes:        c.state.Notes,
		TargetLength: c.state.TargetLength,
		Tone:         c.state.Tone,
	}
	chapter := c.chapter
	c.mu.Unlock()

	if step == api.StepSceneBrief {
		req.PreviousChapter = c.previousChapterText(ctx, chapter)
	}

	execID, err := c.engine.Start(ctx, req)

	c.mu.Lock()
	c.launching = false
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.chapter != chapter {
		// Chapter switched while the launch was in flight; disown the
		// execution rather than adopt it for the wrong unit of work
		c.mu.Unlock()
		go c.disown(execID)
		return nil, errStaleExecution
	}

	handle := &api.ExecutionHandle{
		ExecutionID: execID,
		StepID:      step,
		Chapter:     chapter,
		StartedAt:   c.clock(),
	}
	c.handle = handle
	c.setPhaseLocked(PhasePolling)
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.wg.Add(1)
	go c.pollLoop(epoch, execID)

	c.publish(&api.Event{
		Type:    api.EventExecutionStarted,
		Chapter: chapter,
		Step:    step,
	})

	res := *handle
	return &res, nil
}

// Approve records human approval of a step's output. Approval of the
// terminal step completes the chapter
func (c *Coordinator) Approve(
	ctx context.Context, step api.StepID, notes string,
) error {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return ErrNoChapterOpen
	}
	if err := Approve(c.state, step, notes, c.clock()); err != nil {
		c.mu.Unlock()
		return err
	}
	delete(c.notes, step)
	chapter := c.chapter
	completed := step == api.TerminalStep
	err := c.store.Persist(ctx, c.state)
	c.mu.Unlock()

	c.publish(&api.Event{
		Type:    api.EventStepApproved,
		Chapter: chapter,
		Step:    step,
	})
	if completed {
		c.publish(&api.Event{
			Type:    api.EventChapterCompleted,
			Chapter: chapter,
		})
	}
	return err
}

// StepContent returns a step's generated output, served from the
// transient cache once fetched. Missing content is an empty string
func (c *Coordinator) StepContent(
	ctx context.Context, step api.StepID,
) (string, error) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return "", ErrNoChapterOpen
	}
	chapter := c.chapter
	c.mu.Unlock()

	key := api.ChapterStep{Chapter: chapter, StepID: step}
	return c.content.Get(key, func() (string, error) {
		return c.store.LoadStepContent(ctx, chapter, step), nil
	})
}

// PendingReview returns the surfaced review payload, if any
func (c *Coordinator) PendingReview() *api.PendingReview {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.review == nil {
		return nil
	}
	review := *c.review
	return &review
}

// SubmitReview forwards the human's response for the pending review and
// resumes polling. The response must supply at least one of the fields
// the engine asked for
func (c *Coordinator) SubmitReview(
	ctx context.Context, inputs map[string]string,
) error {
	c.mu.Lock()
	if c.phase != PhaseAwaitingReview || c.handle == nil {
		c.mu.Unlock()
		return ErrNoPendingReview
	}
	if !satisfiesReview(c.review, inputs) {
		c.mu.Unlock()
		return ErrMissingReview
	}
	execID := c.handle.ExecutionID
	epoch := c.epoch
	chapter := c.chapter
	step := c.handle.StepID
	c.mu.Unlock()

	if err := c.engine.Respond(ctx, execID, inputs); err != nil {
		return err
	}

	c.mu.Lock()
	if c.epoch == epoch && c.phase == PhaseAwaitingReview {
		c.review = nil
		c.setPhaseLocked(PhasePolling)
	}
	c.mu.Unlock()

	c.publish(&api.Event{
		Type:    api.EventReviewSubmitted,
		Chapter: chapter,
		Step:    step,
	})
	return nil
}

// CancelGeneration stops observing the live execution and asks the
// engine to terminate it. The coordinator returns to idle immediately;
// the remote side effect is not guaranteed to be undone
func (c *Coordinator) CancelGeneration(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhasePolling && c.phase != PhaseAwaitingReview {
		c.mu.Unlock()
		return ErrNothingToCancel
	}
	handle := *c.handle
	c.epoch++
	c.handle = nil
	c.review = nil
	c.setPhaseLocked(PhaseIdle)
	c.mu.Unlock()

	if err := c.engine.Cancel(ctx, handle.ExecutionID); err != nil {
		slog.Warn("Engine cancel request failed",
			log.ExecutionID(handle.ExecutionID),
			log.Error(err))
	}

	c.publish(&api.Event{
		Type:    api.EventExecutionCancelled,
		Chapter: handle.Chapter,
		Step:    handle.StepID,
	})
	return nil
}

// Advance moves the coordinator to the next chapter in the catalog,
// clearing all transient state for the finished one. Only permitted once
// the terminal step is approved
func (c *Coordinator) Advance(ctx context.Context) (api.ChapterID, error) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return 0, ErrNoChapterOpen
	}
	if !c.state.IsApproved(api.TerminalStep) {
		c.mu.Unlock()
		return 0, ErrChapterNotDone
	}
	current := c.chapter
	c.mu.Unlock()

	next, ok := c.catalog.Next(current)
	if !ok {
		return 0, ErrLastChapter
	}

	if err := c.Open(ctx, next); err != nil {
		return 0, err
	}

	c.publish(&api.Event{
		Type:    api.EventChapterAdvanced,
		Chapter: next,
	})
	return next, nil
}

// NoteDraft returns the transient, unsaved approval-notes draft for a step
func (c *Coordinator) NoteDraft(step api.StepID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notes[step]
}

// SetNoteDraft stores an approval-notes draft. Drafts are transient and
// cleared on approval or chapter switch
func (c *Coordinator) SetNoteDraft(step api.StepID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes[step] = text
}

func (c *Coordinator) pollLoop(epoch uint64, id api.ExecutionID) {
	defer c.wg.Done()

	timer := c.newTimer(c.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-timer.Channel():
		}

		c.mu.Lock()
		if epoch != c.epoch {
			c.mu.Unlock()
			return
		}
		suppress := c.phase == PhaseAwaitingReview
		c.mu.Unlock()

		if suppress {
			timer.Reset(c.pollInterval)
			continue
		}

		status, err := c.engine.Status(c.ctx, id)
		if err != nil {
			// A single failed poll is not fatal; retry on the next tick
			slog.Warn("Status poll failed",
				log.ExecutionID(id),
				log.Error(err))
			timer.Reset(c.pollInterval)
			continue
		}

		if done := c.applyStatus(epoch, id, status); done {
			return
		}
		timer.Reset(c.pollInterval)
	}
}

// applyStatus folds one status observation into coordinator state. The
// epoch and handle checks drop observations that raced a cancellation or
// chapter switch, and the polling-phase guard makes the terminal side
// effects run at most once per execution
func (c *Coordinator) applyStatus(
	epoch uint64, id api.ExecutionID, status *api.ExecutionStatusResponse,
) bool {
	c.mu.Lock()
	if epoch != c.epoch || c.handle == nil || c.handle.ExecutionID != id {
		c.mu.Unlock()
		return true
	}

	switch {
	case status.Status == api.ExecutionCompleted:
		if c.phase != PhasePolling {
			c.mu.Unlock()
			return true
		}
		c.setPhaseLocked(PhaseCompleted)
		handle := *c.handle
		c.mu.Unlock()
		c.finishCompleted(epoch, handle)
		return true

	case status.Status == api.ExecutionFailed:
		if c.phase != PhasePolling {
			c.mu.Unlock()
			return true
		}
		c.setPhaseLocked(PhaseFailed)
		handle := *c.handle
		c.handle = nil
		c.review = nil
		c.setPhaseLocked(PhaseIdle)
		c.mu.Unlock()

		c.publish(&api.Event{
			Type:    api.EventExecutionFailed,
			Chapter: handle.Chapter,
			Step:    handle.StepID,
			Error:   status.Error,
		})
		return true

	case status.PendingReview != nil && c.phase == PhasePolling:
		c.setPhaseLocked(PhaseAwaitingReview)
		review := *status.PendingReview
		c.review = &review
		handle := *c.handle
		c.mu.Unlock()

		c.publish(&api.Event{
			Type:    api.EventReviewRequested,
			Chapter: handle.Chapter,
			Step:    handle.StepID,
			Review:  &review,
		})
		return false

	default:
		c.mu.Unlock()
		return false
	}
}

// finishCompleted runs the completion side effects for an execution that
// this goroutine claimed: fetch the generated content, mark the step
// generated, persist, and settle back to idle
func (c *Coordinator) finishCompleted(epoch uint64, h api.ExecutionHandle) {
	content := c.store.LoadStepContent(c.ctx, h.Chapter, h.StepID)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	key := api.ChapterStep{Chapter: h.Chapter, StepID: h.StepID}
	c.content.Remove(key)
	_, _ = c.content.Get(key, func() (string, error) {
		return content, nil
	})

	MarkGenerated(c.state, h.StepID, c.clock())
	if err := c.store.Persist(c.ctx, c.state); err != nil {
		// Background bookkeeping: the mutation survives in memory and is
		// retried on the next persisted change
		slog.Warn("Completion bookkeeping persist failed",
			log.Chapter(h.Chapter),
			log.StepID(h.StepID),
			log.Error(err))
	}
	c.handle = nil
	c.setPhaseLocked(PhaseIdle)
	c.mu.Unlock()

	c.publish(&api.Event{
		Type:    api.EventExecutionCompleted,
		Chapter: h.Chapter,
		Step:    h.StepID,
	})
}

// disown cancels an execution that completed its launch after the
// coordinator had already moved to another chapter
func (c *Coordinator) disown(id api.ExecutionID) {
	if err := c.engine.Cancel(c.ctx, id); err != nil {
		slog.Warn("Failed to cancel disowned execution",
			log.ExecutionID(id),
			log.Error(err))
	}
}

func (c *Coordinator) previousChapterText(
	ctx context.Context, chapter api.ChapterID,
) string {
	prev := chapter - 1
	if !c.catalog.Contains(prev) {
		return ""
	}
	return c.store.LoadStepContent(ctx, prev, api.StepFinal)
}

func (c *Coordinator) hasActiveLocked() bool {
	return c.launching || c.handle != nil
}

func (c *Coordinator) resetLocked() {
	c.epoch++
	c.handle = nil
	c.review = nil
	c.launching = false
	c.phase = PhaseIdle
	c.state = nil
	c.content.Purge()
	c.notes = map[api.StepID]string{}
}

func (c *Coordinator) setPhaseLocked(next Phase) {
	if !phaseTransitions.CanTransition(c.phase, next) {
		slog.Error("Invalid poller phase transition",
			log.Status(c.phase),
			slog.String("next", string(next)))
		return
	}
	c.phase = next
}

func (c *Coordinator) publish(event *api.Event) {
	if c.notifier == nil {
		return
	}
	event.Timestamp = c.clock()
	c.notifier.Publish(event)
}

func satisfiesReview(review *api.PendingReview, inputs map[string]string) bool {
	if review == nil || len(review.ExpectedFields) == 0 {
		return len(inputs) > 0
	}
	for _, field := range review.ExpectedFields {
		if _, ok := inputs[field]; ok {
			return true
		}
	}
	return false
}
