package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/civil-defense-api/databases"
)

func TestSeedUser(t *testing.T) {
	db := NewMemoryDatabase(t)

	user := SeedUser(t, db, "ana", "secret1")

	found, err := databases.NewUserDatabase(db).FindOne(context.Background(), bson.M{"_id": user.ID})
	require.NoError(t, err)
	assert.Equal(t, "ana", found.Username)
	assert.True(t, found.IsActive())
	assert.NotEqual(t, "secret1", found.Password)
}
