package databases

// go generate: mockery --name CounterDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/civil-defense-api/models"
)

const counterName = "counters"

// CounterDatabase keeps named monotonic sequences
type CounterDatabase interface {
	// Seed raises the counter to floor if it is currently lower or missing
	Seed(ctx context.Context, key string, floor int64) error
	// Increment atomically adds one and returns the new value
	Increment(ctx context.Context, key string) (int64, error)
}

type counterDatabase struct {
	db DatabaseHelper
}

// NewCounterDatabase initializes a new instance of counter database with the provided db connection
func NewCounterDatabase(db DatabaseHelper) CounterDatabase {
	return &counterDatabase{
		db: db,
	}
}

func (c *counterDatabase) Seed(ctx context.Context, key string, floor int64) error {
	_, err := c.db.Collection(counterName).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$max": bson.M{"seq": floor}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (c *counterDatabase) Increment(ctx context.Context, key string) (int64, error) {
	counter := &models.Counter{}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := c.db.Collection(counterName).FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}
