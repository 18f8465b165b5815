package turn

import (
	"context"

	"github.com/jv92admin/alfred/registry"
)

// SnapshotStore is the persistence contract a concrete registry backend
// (registry/store/mongostore, or an in-memory test double) satisfies. It
// needs a SchemaProvider on every call because registry.Deserialize does,
// so BoundRegistryStore below fixes that provider once per process rather
// than threading it through every RunTurn call.
type SnapshotStore interface {
	LoadRegistry(ctx context.Context, userID string, schemas registry.SchemaProvider) (*registry.SessionIdRegistry, error)
	SaveRegistry(ctx context.Context, userID string, reg *registry.SessionIdRegistry) error
}

// BoundRegistryStore adapts a SnapshotStore plus a fixed SchemaProvider into
// the RegistryStore shape RunTurn consumes.
type BoundRegistryStore struct {
	Store   SnapshotStore
	Schemas registry.SchemaProvider
}

func (b BoundRegistryStore) Load(ctx context.Context, userID string) (*registry.SessionIdRegistry, error) {
	return b.Store.LoadRegistry(ctx, userID, b.Schemas)
}

func (b BoundRegistryStore) Save(ctx context.Context, userID string, reg *registry.SessionIdRegistry) error {
	return b.Store.SaveRegistry(ctx, userID, reg)
}
