package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/civil-defense-api/api"
	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

// CreateUserHandler registers a new user, username and email must be unique
func (u User) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid user", http.StatusBadRequest, w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := time.Now().UTC()
	user := models.User{
		Username:  req.Username,
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hash),
		Active:    &active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.DB.InsertOne(ctx, user)
	if err != nil {
		userError("failed to create user", w, err)
		return
	}
	id, ok := res.Decode().(primitive.ObjectID)
	if !ok {
		config.ErrorStatus("failed to read inserted id", http.StatusInternalServerError, w, errors.New("unexpected id type"))
		return
	}

	created, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		userError("failed to get created user", w, err)
		return
	}
	zap.S().Infow("user created", "userId", id.Hex(), "username", created.Username)
	writeJSON(w, http.StatusCreated, created)
}

// UsersFindAllHandler returns every user ordered by username
func (u User) UsersFindAllHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		userError("failed to list users", w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.User{}
	}
	writeJSON(w, http.StatusOK, dbResp)
}

// UserHandler returns a user given a userID
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["user_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusNotFound, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		userError("failed to get user by ID", w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbResp)
}

// UpdateUserHandler writes the supplied fields, a new password is hashed first
func (u User) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["user_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusNotFound, w, err)
		return
	}

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid user", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.Username != nil {
		set["username"] = *req.Username
	}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Active != nil {
		set["active"] = *req.Active
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
			return
		}
		set["password"] = string(hash)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := u.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		userError("failed to update user", w, err)
		return
	}
	updated, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		userError("failed to get updated user", w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteUserHandler permanently removes a user
func (u User) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["user_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusNotFound, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := u.DB.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		userError("failed to delete user", w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Usuário removido com sucesso"})
}

func userError(message string, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	case mongo.IsDuplicateKeyError(err):
		config.ErrorStatus("username or email already in use", http.StatusConflict, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}
