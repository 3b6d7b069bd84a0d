package databases

// go generate: mockery --name OccurrenceDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/civil-defense-api/models"
)

const occurrenceName = "occurrences"

// OccurrenceDatabase contains the methods to use with the occurrence database
type OccurrenceDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.OccurrenceDocument, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.OccurrenceDocument, error)
	InsertOne(ctx context.Context, document interface{}) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) error
	DeleteOne(ctx context.Context, filter interface{}) error
	EnsureIndexes(ctx context.Context) error
}

type occurrenceDatabase struct {
	db DatabaseHelper
}

// NewOccurrenceDatabase initializes a new instance of occurrence database with the provided db connection
func NewOccurrenceDatabase(db DatabaseHelper) OccurrenceDatabase {
	return &occurrenceDatabase{
		db: db,
	}
}

func (c *occurrenceDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.OccurrenceDocument, error) {
	occurrence := &models.OccurrenceDocument{}
	err := c.db.Collection(occurrenceName).FindOne(ctx, filter, opts...).Decode(&occurrence)
	if err != nil {
		return nil, err
	}
	return occurrence, nil
}

func (c *occurrenceDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.OccurrenceDocument, error) {
	var occurrences []models.OccurrenceDocument
	cursor, err := c.db.Collection(occurrenceName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cursor.Decode(&occurrences)
	if err != nil {
		return nil, err
	}
	return occurrences, nil
}

func (c *occurrenceDatabase) InsertOne(ctx context.Context, document interface{}) (InsertOneResultHelper, error) {
	return c.db.Collection(occurrenceName).InsertOne(ctx, document)
}

// UpdateOne returns mongo.ErrNoDocuments when the filter matched nothing
func (c *occurrenceDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) error {
	res, err := c.db.Collection(occurrenceName).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeleteOne returns mongo.ErrNoDocuments when the filter matched nothing
func (c *occurrenceDatabase) DeleteOne(ctx context.Context, filter interface{}) error {
	res, err := c.db.Collection(occurrenceName).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// EnsureIndexes creates the lookup indexes. raNumber is intentionally not
// unique, allocation races are reported by the audit job instead.
func (c *occurrenceDatabase) EnsureIndexes(ctx context.Context) error {
	coll := c.db.Collection(occurrenceName)
	for _, keys := range []bson.D{
		{{Key: "raNumber", Value: -1}},
		{{Key: "startDateTime", Value: -1}},
		{{Key: "category", Value: 1}, {Key: "status", Value: 1}},
	} {
		if _, err := coll.CreateIndex(ctx, mongo.IndexModel{Keys: keys}); err != nil {
			return err
		}
	}
	return nil
}
