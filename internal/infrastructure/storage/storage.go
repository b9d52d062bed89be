// Package storage provides object storage implementations for attachment
// files migrated from source workspaces.
package storage

import (
	"context"
	"io"
)

// ObjectStorage persists attachment payloads. Implementations must accept
// streaming bodies; attachment files can be large.
type ObjectStorage interface {
	// Upload streams the body into the object named by storageKey.
	// size may be -1 when unknown.
	Upload(ctx context.Context, storageKey string, body io.Reader, size int64, contentType string) error

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, storageKey string) error

	// Exists reports whether the object is present
	Exists(ctx context.Context, storageKey string) (bool, error)
}
