package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Counters hands out monotonically increasing sequence numbers, one sequence
// per name, stored in the counters collection.
type Counters struct {
	coll *mongo.Collection
}

func NewCounters(db *mongo.Database) *Counters {
	return &Counters{coll: db.Collection(CollCounters)}
}

// Next increments the named sequence and returns its new value. The first
// call for a name returns 1.
func (c *Counters) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := c.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s serial: %w", name, err)
	}
	return doc.Seq, nil
}
