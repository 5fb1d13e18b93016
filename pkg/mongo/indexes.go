package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"julianmorley.ca/pasargad/storefront/pkg/global"
)

type IndexConfig struct {
	CollectionName string
	IndexModel     mongo.IndexModel
}

// requiredIndexes lists the indexes on the state collection. A non-positive
// ttl leaves documents without expiry.
func requiredIndexes(ttl time.Duration) []IndexConfig {
	indexes := []IndexConfig{
		{
			CollectionName: StateCollection,
			IndexModel: mongo.IndexModel{
				Keys:    bson.D{{Key: "session", Value: 1}},
				Options: options.Index().SetName("idx_state_session"),
			},
		},
	}
	if ttl > 0 {
		indexes = append(indexes, IndexConfig{
			CollectionName: StateCollection,
			IndexModel: mongo.IndexModel{
				Keys: bson.D{{Key: "updated_at", Value: 1}},
				Options: options.Index().
					SetName("idx_state_ttl").
					SetExpireAfterSeconds(int32(ttl / time.Second)),
			},
		})
	}
	return indexes
}

func EnsureIndexes(ctx context.Context, db *mongo.Database, ttl time.Duration, log logrus.FieldLogger) error {
	for _, idxConfig := range requiredIndexes(ttl) {
		ictx, cancel := global.WithTimer(ctx, 0)
		indexName, err := db.Collection(idxConfig.CollectionName).Indexes().CreateOne(ictx, idxConfig.IndexModel)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idxConfig.CollectionName, err)
		}
		log.WithFields(logrus.Fields{"index": indexName, "collection": idxConfig.CollectionName}).Info("index ready")
	}
	return nil
}
