// Command seed fills a civil-defense database with an admin user and a batch
// of random occurrences for local development.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/civil-defense-api/api/handlers"
	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/models"
)

func main() {
	count := flag.Int("n", 100, "number of occurrences to create")
	adminUser := flag.String("admin-user", "admin", "username of the seeded admin")
	adminPassword := flag.String("admin-password", "admin123", "password of the seeded admin")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	a := handlers.App{Config: *config.New()}
	if err := a.Initialize(); err != nil {
		zap.S().Fatalw("failed to initialize app", "error", err)
	}
	ctx := context.Background()
	defer a.Close(ctx)

	admin, err := seedAdmin(ctx, a.Users(), *adminUser, *adminPassword)
	if err != nil {
		zap.S().Errorw("failed to seed admin", "error", err)
		os.Exit(1)
	}

	now := time.Now()
	g := newGenerator(*seed, now.AddDate(0, -6, 0), now)
	created := 0
	for i := 0; i < *count; i++ {
		o, err := a.Service.Create(ctx, g.occurrence(), admin)
		if err != nil {
			zap.S().Errorw("failed to create occurrence", "index", i, "error", err)
			continue
		}
		created++
		zap.S().Debugw("created occurrence", "raNumber", o.RANumber, "category", o.Category)
	}
	zap.S().Infow("seed finished", "created", created, "requested", *count)
}

// seedAdmin inserts the admin user, an existing admin is kept as is
func seedAdmin(ctx context.Context, db databases.UserDatabase, username, password string) (*string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	active := true
	now := time.Now().UTC()
	res, err := db.InsertOne(ctx, models.User{
		Username:  username,
		Name:      "Administrador",
		Email:     username + "@defesacivil.local",
		Password:  string(hash),
		Active:    &active,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if mongo.IsDuplicateKeyError(err) {
		zap.S().Infow("admin already exists", "username", username)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	oid, ok := res.Decode().(primitive.ObjectID)
	if !ok {
		return nil, nil
	}
	id := oid.Hex()
	zap.S().Infow("created admin", "username", username, "id", id)
	return &id, nil
}
