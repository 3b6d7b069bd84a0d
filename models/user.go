package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username  string             `json:"username" bson:"username"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Active    *bool              `json:"active" bson:"active"`
	CreatedAt interface{}        `json:"createdAt" bson:"createdAt"`
	UpdatedAt interface{}        `json:"updatedAt" bson:"updatedAt"`
}

// IsActive reports whether the user may log in. Users created before the
// active flag existed are treated as active.
func (u User) IsActive() bool {
	return u.Active == nil || *u.Active
}

// CreateUserRequest is the body accepted when creating a user
type CreateUserRequest struct {
	Username string `json:"username" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Active   *bool  `json:"active,omitempty"`
}

// UpdateUserRequest is a partial patch of a user
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=1"`
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
	Active   *bool   `json:"active,omitempty"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}
