// Package draftforge identifies the drafting coordinator service
//
// The coordinator drives one chapter at a time through an ordered,
// dependency-gated set of generation steps executed by a remote workflow
// backend, persisting durable per-chapter progress between sessions
package draftforge

const (
	// Name is the service name reported in logs and health responses
	Name = "draftforge"

	// Version is the service version reported in logs and health responses
	Version = "0.1.0"
)
