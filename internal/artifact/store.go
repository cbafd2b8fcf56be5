// Package artifact provides read/write access to named project text blobs
// (step outputs, wizard state) through the external artifact service
package artifact

import (
	"context"
	"errors"
)

// Store is the artifact service consumed by the coordinator. Read fails
// with ErrNotFound when the path has never been written
type Store interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
}

// ErrNotFound is returned by Read for paths with no stored artifact
var ErrNotFound = errors.New("artifact not found")
