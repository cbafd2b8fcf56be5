// Package api defines the core data types for the drafting coordinator
//
// This package contains all the shared types used across the coordinator,
// including the step graph, wizard state, execution handles, review
// payloads, and HTTP messages
package api
