package featureflags

import "context"

// Repository defines the interface for feature flag storage.
type Repository interface {
	// GetFlag retrieves a single feature flag by key.
	// Returns ErrFlagNotFound if it isn't stored.
	GetFlag(ctx context.Context, key string) (*Flag, error)

	// GetAllFlags retrieves all stored feature flags.
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)

	// SetFlags creates or updates flags in one transaction.
	SetFlags(ctx context.Context, flags []*Flag) error
}
