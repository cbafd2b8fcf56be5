package api

import "fmt"

type (
	// ChapterID identifies one chapter being drafted through the pipeline
	ChapterID int

	// StepID is a unique identifier for a drafting step
	StepID string

	// ExecutionID is a unique identifier for a remote step execution
	ExecutionID string

	// ChapterStep identifies a step execution within a chapter
	ChapterStep struct {
		Chapter ChapterID
		StepID  StepID
	}
)

// Dir returns the chapter's artifact directory name under a phase root
func (c ChapterID) Dir() string {
	return fmt.Sprintf("chapter_%d", int(c))
}

func (c ChapterStep) String() string {
	return fmt.Sprintf("%s/%s", c.Chapter.Dir(), c.StepID)
}
