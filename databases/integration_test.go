//go:build integration

package databases_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

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
	if mongoURI, err = mongoContainer.ConnectionString(ctx); err != nil {
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
	if redisURL, err = redisContainer.ConnectionString(ctx); err != nil {
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

func newMongoDatabase(t *testing.T) databases.DatabaseHelper {
	t.Helper()
	conf := &config.Config{URL: mongoURI, DatabaseName: fmt.Sprintf("civil-defense-%d", time.Now().UnixNano())}
	client, err := databases.NewClient(conf)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return databases.NewDatabase(conf, client)
}

func TestMongoUserDatabase_UniqueIndexes(t *testing.T) {
	ctx := context.Background()
	userDB := databases.NewUserDatabase(newMongoDatabase(t))
	require.NoError(t, userDB.EnsureIndexes(ctx))

	_, err := userDB.InsertOne(ctx, models.User{Username: "operador", Email: "operador@example.com"})
	require.NoError(t, err)

	_, err = userDB.InsertOne(ctx, models.User{Username: "operador", Email: "outro@example.com"})
	assert.True(t, mongo.IsDuplicateKeyError(err))

	_, err = userDB.InsertOne(ctx, models.User{Username: "outro", Email: "operador@example.com"})
	assert.True(t, mongo.IsDuplicateKeyError(err))

	found, err := userDB.FindOne(ctx, bson.M{"username": "operador"})
	require.NoError(t, err)
	assert.Equal(t, "operador@example.com", found.Email)
}

func TestMongoCounterDatabase_SeedAndIncrement(t *testing.T) {
	ctx := context.Background()
	counters := databases.NewCounterDatabase(newMongoDatabase(t))

	require.NoError(t, counters.Seed(ctx, "ra:2024", 41))
	require.NoError(t, counters.Seed(ctx, "ra:2024", 3))

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := counters.Increment(ctx, "ra:2024")
			assert.NoError(t, err)
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers)
	assert.True(t, seen[42])
	assert.True(t, seen[41+workers])
}

func TestMongoOccurrenceDatabase_Indexes(t *testing.T) {
	ctx := context.Background()
	occDB := databases.NewOccurrenceDatabase(newMongoDatabase(t))
	require.NoError(t, occDB.EnsureIndexes(ctx))
	require.NoError(t, occDB.EnsureIndexes(ctx))

	_, err := occDB.InsertOne(ctx, models.OccurrenceDocument{RANumber: "2024-001"})
	require.NoError(t, err)
	_, err = occDB.InsertOne(ctx, models.OccurrenceDocument{RANumber: "2024-001"})
	require.NoError(t, err)

	docs, err := occDB.Find(ctx, bson.M{"raNumber": "2024-001"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()
	client, err := databases.NewRedisClient(ctx, redisURL)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(ctx, "ping", "pong", time.Minute).Err())
	val, err := client.Get(ctx, "ping").Result()
	require.NoError(t, err)
	assert.Equal(t, "pong", val)

	_, err = databases.NewRedisClient(ctx, "not a url")
	assert.Error(t, err)
}
