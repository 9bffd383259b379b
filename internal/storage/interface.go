package storage

import (
	"context"

	"github.com/julianstephens/affirm/internal/models"
)

// Provider is the durable local store: a key -> JSON record table plus cache snapshots.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Records
	GetRecord(key string) ([]byte, bool, error)
	PutRecord(key string, value []byte) error
	DeleteRecord(key string) error

	// Cache snapshots
	SnapshotStore

	// Utils
	GetConfigPath() string
}

// SnapshotStore holds named, versioned sets of cached responses.
type SnapshotStore interface {
	SnapshotNames(ctx context.Context) ([]string, error)
	// PutSnapshot atomically replaces the snapshot called name with entries.
	PutSnapshot(ctx context.Context, name string, entries []models.CachedResponse) error
	// PutEntry adds or replaces one entry in an existing snapshot.
	PutEntry(ctx context.Context, name string, entry models.CachedResponse) error
	GetEntry(ctx context.Context, name, key string) (models.CachedResponse, bool, error)
	DeleteSnapshot(ctx context.Context, name string) error
}
