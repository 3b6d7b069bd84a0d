package occurrences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/models"
)

// RemovedMessage is returned after an occurrence is deleted
const RemovedMessage = "Ocorrência removida com sucesso"

// Service implements the occurrence operations on top of the occurrences
// collection. It holds no state of its own, every call reads the store.
type Service struct {
	db        databases.OccurrenceDatabase
	allocator Allocator
	clock     Clock
	metrics   *Metrics
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the clock used for createdAt and updatedAt
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithMetrics records domain metrics on m
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService returns a Service using allocator for registration numbers
func NewService(db databases.OccurrenceDatabase, allocator Allocator, opts ...Option) *Service {
	s := &Service{
		db:        db,
		allocator: allocator,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new occurrence and returns it as read back from the store.
// actorID is the authenticated user, nil when unknown.
func (s *Service) Create(ctx context.Context, req models.CreateOccurrenceRequest, actorID *string) (*models.Occurrence, error) {
	doc, err := toStoreDocument(req, actorID, s.now())
	if err != nil {
		return nil, err
	}

	doc.RANumber, err = s.allocator.Next(ctx)
	if err != nil {
		return nil, wrap("allocate registration number", err)
	}

	res, err := s.db.InsertOne(ctx, doc)
	if err != nil {
		return nil, wrap("insert occurrence", err)
	}
	id, ok := res.Decode().(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("insert occurrence: unexpected id type %T", res.Decode())
	}

	s.metrics.IncrementCreated(string(doc.Category))
	zap.S().Infow("occurrence created", "id", id.Hex(), "raNumber", doc.RANumber, "category", doc.Category)

	return s.FindOne(ctx, id.Hex())
}

// FindAll lists occurrences matching f. Equality and date filters run in the
// store, text filters, ordering after an equality filter and pagination run
// in memory.
func (s *Service) FindAll(ctx context.Context, f models.OccurrenceFilter) (*models.PaginatedOccurrences, error) {
	plan, err := planQuery(f)
	if err != nil {
		return nil, err
	}

	docs, err := s.db.Find(ctx, plan.filter, plan.findOptions())
	if err != nil {
		return nil, wrap("find occurrences", err)
	}
	docs = plan.refine(docs)

	pageDocs, page, limit, totalPages := paginate(docs, f.Page, f.Limit)
	data := make([]models.Occurrence, 0, len(pageDocs))
	for _, doc := range pageDocs {
		data = append(data, fromStoreDocument(doc))
	}

	return &models.PaginatedOccurrences{
		Data:       data,
		Total:      len(docs),
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// FindOne returns the occurrence with the given id. Ids that are not valid
// object ids cannot exist and are reported as not found.
func (s *Service) FindOne(ctx context.Context, id string) (*models.Occurrence, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.db.FindOne(ctx, bson.M{"_id": oid})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("occurrence with id %s", id)
	}
	if err != nil {
		return nil, wrap("find occurrence", err)
	}
	occurrence := fromStoreDocument(*doc)
	return &occurrence, nil
}

// FindByRANumber returns the occurrence holding raNumber
func (s *Service) FindByRANumber(ctx context.Context, raNumber string) (*models.Occurrence, error) {
	doc, err := s.db.FindOne(ctx, bson.M{"raNumber": raNumber})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("occurrence with R.A. %s", raNumber)
	}
	if err != nil {
		return nil, wrap("find occurrence by registration number", err)
	}
	occurrence := fromStoreDocument(*doc)
	return &occurrence, nil
}

// Update applies the supplied fields of patch and returns the stored result.
// Fields absent from patch keep their values. Concurrent updates are last
// write wins per field.
func (s *Service) Update(ctx context.Context, id string, patch models.UpdateOccurrenceRequest) (*models.Occurrence, error) {
	if _, err := s.FindOne(ctx, id); err != nil {
		return nil, err
	}
	set, err := buildPatch(patch, s.now())
	if err != nil {
		return nil, err
	}

	oid, _ := primitive.ObjectIDFromHex(id)
	err = s.db.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("occurrence with id %s", id)
	}
	if err != nil {
		return nil, wrap("update occurrence", err)
	}
	return s.FindOne(ctx, id)
}

// Remove permanently deletes the occurrence
func (s *Service) Remove(ctx context.Context, id string) (*models.MessageResponse, error) {
	if _, err := s.FindOne(ctx, id); err != nil {
		return nil, err
	}

	oid, _ := primitive.ObjectIDFromHex(id)
	err := s.db.DeleteOne(ctx, bson.M{"_id": oid})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("occurrence with id %s", id)
	}
	if err != nil {
		return nil, wrap("delete occurrence", err)
	}
	zap.S().Infow("occurrence removed", "id", id)
	return &models.MessageResponse{Message: RemovedMessage}, nil
}

// DuplicateRANumbers lists the registration numbers of year held by more
// than one occurrence. Duplicates can only come from concurrent scan
// allocations.
func (s *Service) DuplicateRANumbers(ctx context.Context, year int) ([]models.DuplicateRANumber, error) {
	opts := options.Find().SetSort(bson.D{{Key: "raNumber", Value: 1}})
	docs, err := s.db.Find(ctx, yearRange(year), opts)
	if err != nil {
		return nil, wrap("find registration numbers", err)
	}

	var duplicates []models.DuplicateRANumber
	for i := 0; i < len(docs); {
		j := i + 1
		for j < len(docs) && docs[j].RANumber == docs[i].RANumber {
			j++
		}
		if j-i > 1 {
			dup := models.DuplicateRANumber{RANumber: docs[i].RANumber}
			for _, doc := range docs[i:j] {
				dup.OccurrenceIDs = append(dup.OccurrenceIDs, doc.ID.Hex())
			}
			duplicates = append(duplicates, dup)
		}
		i = j
	}
	s.metrics.SetDuplicates(len(duplicates))
	return duplicates, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound("occurrence with id %s", id)
	}
	return oid, nil
}
