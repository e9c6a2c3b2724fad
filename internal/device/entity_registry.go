package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EntityRecord is one registered presentation entity: a stable identifier
// (the device URL the entity was created for) and the display name it was
// given at registration time.
type EntityRecord struct {
	StableID    string `json:"stable_id"`
	DisplayName string `json:"display_name"`
}

// EntityRepository persists entity registrations.
// This abstraction allows for different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type EntityRepository interface {
	// Upsert inserts or replaces a registration.
	Upsert(ctx context.Context, record EntityRecord) error

	// GetByStableID retrieves a registration.
	// Returns ErrEntityNotFound if none exists.
	GetByStableID(ctx context.Context, id string) (*EntityRecord, error)

	// List retrieves all registrations.
	List(ctx context.Context) ([]EntityRecord, error)

	// Delete removes a registration by stable ID.
	// Returns ErrEntityNotFound if none exists.
	Delete(ctx context.Context, id string) error
}

// EntityRegistry maps stable entity identifiers to display names, backed
// by a repository with an in-memory cache for lock-free-ish lookups on the
// accessor path.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// Register/Deregister. All public methods are thread-safe.
type EntityRegistry struct {
	repo   EntityRepository
	cache  map[string]string
	mu     sync.RWMutex
	logger Logger
}

// NewEntityRegistry creates an entity registry over the given repository.
func NewEntityRegistry(repo EntityRepository) *EntityRegistry {
	return &EntityRegistry{
		repo:   repo,
		cache:  make(map[string]string),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *EntityRegistry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all registrations from the repository.
// This should be called on application startup.
func (r *EntityRegistry) RefreshCache(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entity registrations: %w", err)
	}

	r.mu.Lock()
	r.cache = make(map[string]string, len(records))
	for _, rec := range records {
		r.cache[rec.StableID] = rec.DisplayName
	}
	r.mu.Unlock()

	r.logger.Info("entity registry cache refreshed", "count", len(records))
	return nil
}

// Register persists a registration and updates the cache. Registering an
// existing stable ID replaces its display name.
func (r *EntityRegistry) Register(ctx context.Context, stableID, displayName string) error {
	if err := r.repo.Upsert(ctx, EntityRecord{StableID: stableID, DisplayName: displayName}); err != nil {
		return fmt.Errorf("registering entity %s: %w", stableID, err)
	}

	r.mu.Lock()
	r.cache[stableID] = displayName
	r.mu.Unlock()

	r.logger.Debug("entity registered", "stable_id", stableID, "name", displayName)
	return nil
}

// Deregister removes a registration.
func (r *EntityRegistry) Deregister(ctx context.Context, stableID string) error {
	if err := r.repo.Delete(ctx, stableID); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, stableID)
	r.mu.Unlock()

	r.logger.Debug("entity deregistered", "stable_id", stableID)
	return nil
}

// FindByStableID returns the display name registered for a stable ID.
// Served from cache; a miss is not an error, it degrades the caller's
// name resolution.
func (r *EntityRegistry) FindByStableID(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.cache[id]
	return name, ok
}

// Records returns all cached registrations sorted by stable ID.
func (r *EntityRegistry) Records() []EntityRecord {
	r.mu.RLock()
	records := make([]EntityRecord, 0, len(r.cache))
	for id, name := range r.cache {
		records = append(records, EntityRecord{StableID: id, DisplayName: name})
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].StableID < records[j].StableID })
	return records
}

// Count returns the number of cached registrations.
func (r *EntityRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
