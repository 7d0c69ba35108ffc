package repository

import (
	"context"
	"errors"

	"facter/internal/domain"
)

// ErrNotFound is returned when a snapshot does not exist
var ErrNotFound = errors.New("snapshot not found")

// SnapshotRepository persists fact snapshots
type SnapshotRepository interface {
	// Save stores a snapshot, assigning an ID and timestamp when unset
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Read operations
	Get(ctx context.Context, id string) (*domain.Snapshot, error)
	Latest(ctx context.Context) (*domain.Snapshot, error)
	List(ctx context.Context, limit int) ([]domain.SnapshotInfo, error)

	Delete(ctx context.Context, id string) error

	// Close releases resources
	Close() error
}
