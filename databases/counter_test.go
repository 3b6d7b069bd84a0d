package databases_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/databases/mocks"
	"github.com/linesmerrill/civil-defense-api/models"
)

func TestCounterDatabase_IncrementDecodesSequence(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelper := &mocks.SingleResultHelper{}

	srHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Counter)
		(*arg).Seq = 8
	})
	collectionHelper.On("FindOneAndUpdate", context.Background(),
		bson.M{"_id": "ra:2024"}, bson.M{"$inc": bson.M{"seq": 1}}, mock.Anything).
		Return(srHelper)
	dbHelper.On("Collection", "counters").Return(collectionHelper)

	seq, err := databases.NewCounterDatabase(dbHelper).Increment(context.Background(), "ra:2024")

	assert.NoError(t, err)
	assert.Equal(t, int64(8), seq)
}

func TestCounterDatabase_InMemorySeedNeverLowers(t *testing.T) {
	client := databases.NewMemoryClient()
	counters := databases.NewCounterDatabase(client.Database("test"))
	ctx := context.Background()

	require.NoError(t, counters.Seed(ctx, "ra:2024", 5))
	require.NoError(t, counters.Seed(ctx, "ra:2024", 2))

	seq, err := counters.Increment(ctx, "ra:2024")
	require.NoError(t, err)
	assert.Equal(t, int64(6), seq)
}

func TestCounterDatabase_InMemoryIncrementIsAtomic(t *testing.T) {
	client := databases.NewMemoryClient()
	counters := databases.NewCounterDatabase(client.Database("test"))
	ctx := context.Background()

	var wg sync.WaitGroup
	seen := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := counters.Increment(ctx, "ra:2025")
			assert.NoError(t, err)
			seen <- seq
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for seq := range seen {
		unique[seq] = true
	}
	assert.Len(t, unique, 50)
	assert.True(t, unique[1])
	assert.True(t, unique[50])
}
