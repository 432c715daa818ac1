// Package blob resolves opaque photo references against an external object store.
package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/police-records/registry/internal/shared"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverNone disables photo reference checks.
	DriverNone Driver = "none"
	// DriverMemory keeps objects in process; used in tests and development.
	DriverMemory Driver = "memory"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
)

// ParseDriver validates a configured driver name.
func ParseDriver(raw string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(raw))); d {
	case DriverNone, DriverMemory, DriverS3:
		return d, nil
	case "":
		return DriverNone, nil
	default:
		return "", fmt.Errorf("blob: unknown driver %q", raw)
	}
}

// Store reports whether a photo reference points at an existing object.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

// Verify rejects key with a validation error on field when the store does not
// hold it. A nil store or the none driver accepts any key.
func Verify(ctx context.Context, s Store, field, key string) error {
	if s == nil || s.Driver() == DriverNone {
		return nil
	}
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("blob: check %s: %w", field, err)
	}
	if !ok {
		return shared.Invalid(field, "no stored object under this key")
	}
	return nil
}
