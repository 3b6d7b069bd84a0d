package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/civil-defense-api/databases/mocks"
	"github.com/linesmerrill/civil-defense-api/models"
)

func TestUserLifecycle(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	rr := executeRequest(a, authed(http.MethodPost, "/api/v1/users", token, models.CreateUserRequest{
		Username: "carla",
		Name:     "Carla Souza",
		Email:    "carla@example.com",
		Password: "primeira",
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")
	var created models.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.True(t, created.IsActive())

	rr = executeRequest(a, authed(http.MethodGet, "/api/v1/users", token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "carla", users[0].Username)

	rr = executeRequest(a, authed(http.MethodPatch, "/api/v1/users/"+created.ID.Hex(), token,
		map[string]string{"password": "segunda", "name": "Carla S."}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated models.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "Carla S.", updated.Name)
	assert.Equal(t, "carla@example.com", updated.Email)

	assert.NotEmpty(t, login(t, a, "carla", "segunda"))

	rr = executeRequest(a, authed(http.MethodDelete, "/api/v1/users/"+created.ID.Hex(), token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	rr = executeRequest(a, authed(http.MethodGet, "/api/v1/users/"+created.ID.Hex(), token, nil))
	checkResponseCode(t, http.StatusNotFound, rr.Code)
}

func TestCreateUserConflict(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	rr := executeRequest(a, authed(http.MethodPost, "/api/v1/users", token, models.CreateUserRequest{
		Username: "operador",
		Name:     "Outro",
		Email:    "outro@example.com",
		Password: "123456",
	}))

	checkResponseCode(t, http.StatusConflict, rr.Code)
}

func TestCreateUserValidation(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	rr := executeRequest(a, authed(http.MethodPost, "/api/v1/users", token, models.CreateUserRequest{
		Username: "x",
		Name:     "X",
		Email:    "not-an-email",
		Password: "123",
	}))

	checkResponseCode(t, http.StatusBadRequest, rr.Code)
}

func TestUser_UserHandlerInvalidID(t *testing.T) {
	a, _, token := newTestApp(t, testConfig(), nil)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rr := executeRequest(a, authed(method, "/api/v1/users/asdf", token, `{}`))
		checkResponseCode(t, http.StatusNotFound, rr.Code)
	}
}

func TestUser_UsersFindAllHandlerFailedToFind(t *testing.T) {
	db := &mocks.UserDatabase{}
	db.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	u := User{DB: db}

	rr := httptest.NewRecorder()
	u.UsersFindAllHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	checkResponseCode(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to list users")
}

func TestUser_UsersFindAllHandlerEmpty(t *testing.T) {
	db := &mocks.UserDatabase{}
	db.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	u := User{DB: db}

	rr := httptest.NewRecorder()
	u.UsersFindAllHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	checkResponseCode(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestUser_UserHandlerStoreError(t *testing.T) {
	db := &mocks.UserDatabase{}
	db.On("FindOne", mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	u := User{DB: db}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/65f1c0ffee0000000000abcd", nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": "65f1c0ffee0000000000abcd"})
	rr := httptest.NewRecorder()
	u.UserHandler(rr, req)

	checkResponseCode(t, http.StatusInternalServerError, rr.Code)
}
