package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"julianmorley.ca/pasargad/storefront/pkg/global"
)

// GetMongoClient builds a client for MONGODB_URI without contacting the server.
func GetMongoClient() (*mongo.Client, error) {
	uri, err := global.GetMongoURI()
	if err != nil {
		return nil, err
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	return client, nil
}

// InitMongoDB connects, pings and returns the configured database.
func InitMongoDB(ctx context.Context) (*mongo.Database, error) {
	client, err := GetMongoClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := global.WithTimer(ctx, 0)
	defer cancel()

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(global.GetDatabaseName()), nil
}
