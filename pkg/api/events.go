package api

import "time"

type (
	// EventType identifies a coordinator state change
	EventType string

	// Event is a coordinator state change pushed to observers such as the
	// WebSocket stream. Failure events carry a terse human-facing error;
	// review events carry the pending review payload
	Event struct {
		Type      EventType      `json:"type"`
		Chapter   ChapterID      `json:"chapter"`
		Step      StepID         `json:"step,omitempty"`
		Error     string         `json:"error,omitempty"`
		Review    *PendingReview `json:"review,omitempty"`
		Timestamp time.Time      `json:"timestamp"`
	}
)

const (
	EventExecutionStarted   EventType = "execution_started"
	EventExecutionCompleted EventType = "execution_completed"
	EventExecutionFailed    EventType = "execution_failed"
	EventExecutionCancelled EventType = "execution_cancelled"
	EventReviewRequested    EventType = "review_requested"
	EventReviewSubmitted    EventType = "review_submitted"
	EventStepApproved       EventType = "step_approved"
	EventChapterCompleted   EventType = "chapter_completed"
	EventChapterAdvanced    EventType = "chapter_advanced"
)
