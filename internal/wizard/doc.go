// Package wizard implements the drafting workflow coordinator
//
// The coordinator sequences one chapter through the ordered, dependency
// gated drafting steps: it launches each step as an asynchronous remote
// execution, polls it to completion, failure, or a human-review
// checkpoint, persists durable per-chapter progress through the artifact
// store, and enforces that a step cannot be generated until its
// prerequisite steps have been approved
package wizard
