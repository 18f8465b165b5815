// Package mongostore persists a registry.SessionIdRegistry snapshot (ref
// translations, pending artifacts) as a single BSON document per user,
// durable across process restarts.
//
// Grounded on the teacher's features/memory/mongo client: the
// FindOne/UpdateOne-with-upsert document shape and unique compound index
// carry over directly, narrowed from the teacher's (agent_id, run_id)
// keying to a single (user_id) document since one registry snapshot
// belongs to one user's ongoing conversation, not to an individual run.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jv92admin/alfred/registry"
)

const (
	defaultCollection = "alfred_registry"
	defaultTimeout     = 5 * time.Second
)

// Options configures Store.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store persists registry snapshots in MongoDB.
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// New builds a Store, ensuring the (user_id) unique index exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collection)

	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(idxCtx, idx); err != nil {
		return nil, err
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

type snapshotDocument struct {
	UserID    string    `bson:"user_id"`
	Snapshot  []byte    `bson:"snapshot"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Load returns the raw snapshot bytes previously passed to Save, or nil if
// no snapshot exists yet for userID.
func (s *Store) Load(ctx context.Context, userID string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc snapshotDocument
	err := s.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Snapshot, nil
}

// Save upserts the given snapshot bytes (registry.Serialize output) for userID.
func (s *Store) Save(ctx context.Context, userID string, snapshot []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"snapshot":   snapshot,
			"updated_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"user_id": userID,
		},
	}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// LoadRegistry loads and deserializes a registry for userID, returning an
// empty (but provider-attached) registry if none was ever saved.
func (s *Store) LoadRegistry(ctx context.Context, userID string, provider registry.SchemaProvider) (*registry.SessionIdRegistry, error) {
	raw, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return registry.New(provider), nil
	}
	reg, err := registry.Deserialize(raw, provider)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// SaveRegistry serializes and persists reg for userID.
func (s *Store) SaveRegistry(ctx context.Context, userID string, reg *registry.SessionIdRegistry) error {
	raw, err := reg.Serialize()
	if err != nil {
		return err
	}
	return s.Save(ctx, userID, raw)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
