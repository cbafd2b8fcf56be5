// Package sdk provides a Go client for the drafting cockpit HTTP API
//
// The client mirrors the cockpit's surface: chapter listings, wizard
// state reads and saves, step generation and approval, and coordinator
// control (review, cancel, advance)
package sdk
