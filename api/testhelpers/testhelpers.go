package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/models"
)

// NewMemoryDatabase returns an empty in-memory database for tests
func NewMemoryDatabase(t *testing.T) databases.DatabaseHelper {
	t.Helper()
	client := databases.NewMemoryClient()
	require.NoError(t, client.Connect(context.Background()))
	return client.Database("civil-defense-test")
}

// SeedUser stores an active user with the given credentials and returns it
func SeedUser(t *testing.T, db databases.DatabaseHelper, username, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	active := true
	now := time.Now().UTC()
	user := models.User{
		Username:  username,
		Name:      username,
		Email:     username + "@example.com",
		Password:  string(hash),
		Active:    &active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := databases.NewUserDatabase(db).InsertOne(context.Background(), user)
	require.NoError(t, err)
	user.ID = res.Decode().(primitive.ObjectID)
	return user
}
