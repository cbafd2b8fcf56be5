package api

import "time"

type (
	// StartExecutionRequest contains parameters for launching one step of
	// one chapter on the workflow backend
	StartExecutionRequest struct {
		Chapter      ChapterID `json:"chapter"`
		Step         StepID    `json:"step"`
		Title        string    `json:"title"`
		Notes        string    `json:"notes,omitempty"`
		TargetLength int       `json:"target_length"`
		Tone         Tone      `json:"tone"`
		// PreviousChapter carries prior-chapter prose for continuity on
		// steps that consume it
		PreviousChapter string `json:"previous_chapter,omitempty"`
	}

	// StartExecutionResponse is returned when an execution launch succeeds
	StartExecutionResponse struct {
		ExecutionID ExecutionID `json:"execution_id"`
	}

	// ExecutionStatusResponse is the backend's report for one execution
	ExecutionStatusResponse struct {
		Status        ExecutionStatus `json:"status"`
		Outputs       map[string]any  `json:"outputs,omitempty"`
		PendingReview *PendingReview  `json:"pending_review,omitempty"`
		Error         string          `json:"error,omitempty"`
	}

	// RespondRequest forwards human review input back to an execution
	RespondRequest struct {
		Inputs map[string]string `json:"inputs"`
	}

	// ChapterRef names one chapter in the project catalog
	ChapterRef struct {
		Number ChapterID `json:"number"`
		Title  string    `json:"title"`
	}

	// ChapterDigest provides summary information about a chapter
	ChapterDigest struct {
		Number      ChapterID     `json:"number"`
		Title       string        `json:"title"`
		Status      ChapterStatus `json:"status"`
		CompletedAt time.Time     `json:"completed_at,omitzero"`
	}

	// ChaptersListResponse contains the catalog with derived statuses
	ChaptersListResponse struct {
		Chapters []*ChapterDigest `json:"chapters"`
		Count    int              `json:"count"`
	}

	// StepContentResponse carries a step's generated artifact content
	StepContentResponse struct {
		Chapter ChapterID `json:"chapter"`
		Step    StepID    `json:"step"`
		Content string    `json:"content"`
	}

	// UpdateWizardRequest is an explicit save of a chapter's descriptive
	// fields
	UpdateWizardRequest struct {
		Title        string `json:"title"`
		Notes        string `json:"notes,omitempty"`
		TargetLength int    `json:"target_length"`
		Tone         Tone   `json:"tone"`
	}

	// ApproveRequest records a human approval with optional notes
	ApproveRequest struct {
		Notes string `json:"notes,omitempty"`
	}

	// GenerateStartedResponse is returned when a step launch succeeds
	GenerateStartedResponse struct {
		Handle *ExecutionHandle `json:"handle"`
	}

	// CoordinatorStateResponse is a snapshot of the coordinator for the
	// active chapter
	CoordinatorStateResponse struct {
		Chapter       ChapterID        `json:"chapter"`
		Phase         string           `json:"phase"`
		Handle        *ExecutionHandle `json:"handle,omitempty"`
		PendingReview *PendingReview   `json:"pending_review,omitempty"`
	}

	// AdvanceResponse reports the chapter the coordinator moved to
	AdvanceResponse struct {
		Chapter ChapterID `json:"chapter"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// ErrorResponse is the standard error payload for the HTTP API
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
)
