//go:build integration

package occurrences

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/models"
)

var (
	mongoURI string
	redisURL string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	mongoContainer, err := tcmongo.Run(ctx, "mongo:7")
	if err != nil {
		fmt.Println("cannot start mongo container:", err)
		os.Exit(1)
	}
	mongoURI, err = mongoContainer.ConnectionString(ctx)
	if err != nil {
		fmt.Println("mongo connection string:", err)
		_ = mongoContainer.Terminate(ctx)
		os.Exit(1)
	}

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Println("cannot start redis container:", err)
		_ = mongoContainer.Terminate(ctx)
		os.Exit(1)
	}
	redisURL, err = redisContainer.ConnectionString(ctx)
	if err != nil {
		fmt.Println("redis connection string:", err)
		_ = redisContainer.Terminate(ctx)
		_ = mongoContainer.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	_ = redisContainer.Terminate(ctx)
	_ = mongoContainer.Terminate(ctx)
	os.Exit(code)
}

type MongoSuite struct {
	suite.Suite
	ctx      context.Context
	client   databases.ClientHelper
	db       databases.OccurrenceDatabase
	counters databases.CounterDatabase
	redis    *redis.Client
	now      time.Time
	service  *Service
}

func TestMongoSuite(t *testing.T) {
	suite.Run(t, new(MongoSuite))
}

func (s *MongoSuite) SetupSuite() {
	s.ctx = context.Background()
	conf := &config.Config{URL: mongoURI}
	client, err := databases.NewClient(conf)
	s.Require().NoError(err)
	s.Require().NoError(client.Connect(s.ctx))
	s.client = client

	rc, err := databases.NewRedisClient(s.ctx, redisURL)
	s.Require().NoError(err)
	s.redis = rc
}

func (s *MongoSuite) TearDownSuite() {
	_ = s.redis.Close()
	_ = s.client.Disconnect(s.ctx)
}

// SetupTest gives every test a fresh database and an empty redis
func (s *MongoSuite) SetupTest() {
	dbh := s.client.Database(fmt.Sprintf("civil-defense-%d", time.Now().UnixNano()))
	s.db = databases.NewOccurrenceDatabase(dbh)
	s.counters = databases.NewCounterDatabase(dbh)
	s.Require().NoError(s.db.EnsureIndexes(s.ctx))
	s.Require().NoError(s.redis.FlushAll(s.ctx).Err())

	s.now = time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.service = NewService(s.db, NewScanAllocator(s.db, clock), WithClock(clock))
}

func (s *MongoSuite) request(description string, start time.Time) models.CreateOccurrenceRequest {
	return models.CreateOccurrenceRequest{
		StartDateTime: start.Format(time.RFC3339),
		Category:      models.CategoryVegetationRisk,
		Description:   description,
		RequesterName: "Carlos Souza",
		Location:      &models.Location{Address: "Avenida Brasil, 200", Neighborhood: "Centro"},
	}
}

func (s *MongoSuite) TestCreateAndFindRoundTrip() {
	created, err := s.service.Create(s.ctx, s.request("Árvore com risco de queda", s.now), nil)
	s.Require().NoError(err)
	s.Equal("2024-001", created.RANumber)

	found, err := s.service.FindOne(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.RANumber, found.RANumber)
	s.True(found.StartDateTime.Equal(s.now))

	byRA, err := s.service.FindByRANumber(s.ctx, "2024-001")
	s.Require().NoError(err)
	s.Equal(created.ID, byRA.ID)
}

func (s *MongoSuite) TestFiltersArePushedDown() {
	for i := 0; i < 12; i++ {
		req := s.request(fmt.Sprintf("ocorrência %d", i), s.now.Add(-time.Duration(i)*24*time.Hour))
		if i%3 == 0 {
			req.Category = models.CategoryVegetationFire
			req.RequesterName = "Ana Costa"
		}
		_, err := s.service.Create(s.ctx, req, nil)
		s.Require().NoError(err)
	}

	page, err := s.service.FindAll(s.ctx, models.OccurrenceFilter{
		Category:      models.CategoryVegetationFire,
		RequesterName: "ana",
		StartDate:     s.now.AddDate(0, 0, -7).Format(time.RFC3339),
	})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	for i := 1; i < len(page.Data); i++ {
		s.False(page.Data[i].StartDateTime.After(page.Data[i-1].StartDateTime))
	}

	search, err := s.service.FindAll(s.ctx, models.OccurrenceFilter{Search: "OCORRência 1"})
	s.Require().NoError(err)
	s.Equal(3, search.Total)
}

func (s *MongoSuite) TestUpdateAndRemove() {
	created, err := s.service.Create(s.ctx, s.request("Galhos secos", s.now), nil)
	s.Require().NoError(err)

	status := models.StatusClosed
	updated, err := s.service.Update(s.ctx, created.ID, models.UpdateOccurrenceRequest{Status: &status})
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, updated.Status)
	s.Equal(created.Description, updated.Description)

	_, err = s.service.Remove(s.ctx, created.ID)
	s.Require().NoError(err)
	_, err = s.service.FindOne(s.ctx, created.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *MongoSuite) TestDuplicateRANumbers() {
	for _, ra := range []string{"2024-001", "2024-002", "2024-002"} {
		_, err := s.db.InsertOne(s.ctx, models.OccurrenceDocument{RANumber: ra, StartDateTime: s.now})
		s.Require().NoError(err)
	}

	dups, err := s.service.DuplicateRANumbers(s.ctx, 2024)
	s.Require().NoError(err)
	s.Require().Len(dups, 1)
	s.Equal("2024-002", dups[0].RANumber)
	s.Len(dups[0].OccurrenceIDs, 2)
}

func (s *MongoSuite) TestCounterAllocatorIsUniqueUnderConcurrency() {
	allocator := NewCounterAllocator(s.db, s.counters, fixedClock(2024))
	s.assertUniqueUnderConcurrency(allocator)
}

func (s *MongoSuite) TestRedisAllocatorSeedsFromStore() {
	seedRANumbers(s.T(), s.db, "2024-010", "2024-004")

	ra, err := NewRedisAllocator(s.db, s.redis, fixedClock(2024)).Next(s.ctx)
	s.Require().NoError(err)
	s.Equal("2024-011", ra)
}

func (s *MongoSuite) TestRedisAllocatorIsUniqueUnderConcurrency() {
	allocator := NewRedisAllocator(s.db, s.redis, fixedClock(2024))
	s.assertUniqueUnderConcurrency(allocator)
}

func (s *MongoSuite) assertUniqueUnderConcurrency(allocator Allocator) {
	const workers = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ra, err := allocator.Next(s.ctx)
			s.NoError(err)
			mu.Lock()
			seen[ra] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(seen, workers)
	s.True(seen[FormatRANumber(2024, workers)])
}
