package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// StateCollection holds one document per persisted key.
const StateCollection = "storefront_state"

type stateDocument struct {
	Key       string    `bson:"_id"`
	Session   string    `bson:"session,omitempty"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Persister stores shopper state in MongoDB. Documents expire through the
// TTL index on updated_at.
type Persister struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewPersister(db *mongo.Database) *Persister {
	return &Persister{coll: db.Collection(StateCollection), now: time.Now}
}

func (p *Persister) Get(ctx context.Context, key string) (string, bool, error) {
	var doc stateDocument
	err := p.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s from MongoDB: %w", key, err)
	}
	return doc.Value, true, nil
}

func (p *Persister) Set(ctx context.Context, key, value string) error {
	doc := stateDocument{
		Key:       key,
		Session:   sessionOf(key),
		Value:     value,
		UpdatedAt: p.now().UTC(),
	}
	_, err := p.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write %s to MongoDB: %w", key, err)
	}
	return nil
}

func (p *Persister) Remove(ctx context.Context, key string) error {
	if _, err := p.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("failed to remove %s from MongoDB: %w", key, err)
	}
	return nil
}

func (p *Persister) RemoveAll(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: keys}}}}
	if _, err := p.coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to remove %d keys from MongoDB: %w", len(keys), err)
	}
	return nil
}

// sessionOf extracts the browser session from a namespaced key such as
// "session:<id>:token".
func sessionOf(key string) string {
	rest, ok := strings.CutPrefix(key, "session:")
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, ":")
	if !ok {
		return ""
	}
	return id
}
