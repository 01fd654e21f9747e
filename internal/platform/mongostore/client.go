// Package mongostore holds the MongoDB plumbing shared by the Mongo-backed
// repositories: connection, collection names, indexes, serial counters and
// session transactions.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	CollUnbilled   = "unbilled"
	CollOrders     = "orders"
	CollDoctors    = "doctors"
	CollMigrations = "order_migrations"
	CollCounters   = "counters"
)

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Checker reports on a Mongo database for the store health endpoint.
type Checker struct {
	DB *mongo.Database
}

func (c Checker) Name() string { return "mongo" }

func (c Checker) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, readpref.Primary())
}

func (c Checker) Stats() interface{} {
	return map[string]interface{}{
		"database": c.DB.Name(),
		"sessions": c.DB.Client().NumberSessionsInProgress(),
	}
}

// IndexModels lists the indexes each collection needs.
func IndexModels() map[string][]mongo.IndexModel {
	orderIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "serialNo", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "referredBy", Value: 1}}},
	}
	return map[string][]mongo.IndexModel{
		CollUnbilled: orderIndexes,
		CollOrders:   orderIndexes,
		CollDoctors: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		CollMigrations: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "unbilledId", Value: 1}}},
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels. Existing identical
// indexes are left alone by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, models := range IndexModels() {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
