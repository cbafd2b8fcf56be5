// Package server implements the HTTP API for the drafting cockpit
//
// This package provides REST endpoints for chapter progress, step
// generation and approval, coordinator control, and a WebSocket event
// stream
package server
