package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pulseplay/pulseplay-api/internal/middleware"
	"github.com/pulseplay/pulseplay-api/internal/models"
	"github.com/pulseplay/pulseplay-api/pkg/dto"
	"github.com/pulseplay/pulseplay-api/tests/testutil"
)

func newUserTestApp(t *testing.T, users *testutil.MockUserService) http.Handler {
	t.Helper()
	handler := NewUserHandler(users)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(testutil.TestJWTService()))
	app.Get("/users/me", handler.GetMe)
	app.Patch("/users/me", handler.UpdateMe)
	return app
}

func TestUserHandler_GetMe(t *testing.T) {
	users := new(testutil.MockUserService)
	app := newUserTestApp(t, users)

	discordID := "d-42"
	userID := uuid.New()
	user := &models.User{
		ID:        userID,
		Email:     "player@example.com",
		Username:  "player",
		DiscordID: &discordID,
		Role:      models.RoleUser,
		IsActive:  true,
	}

	users.On("GetByID", mock.Anything, userID).Return(user, nil)

	token := testutil.GenerateUserToken(t, userID, user.Email)
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", testutil.AuthHeader(token))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "player", resp.Username)
	assert.Equal(t, []string{"discord"}, resp.LinkedProviders)

	users.AssertExpectations(t)
}

func TestUserHandler_GetMe_Unauthenticated(t *testing.T) {
	users := new(testutil.MockUserService)
	app := newUserTestApp(t, users)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandler_GetMe_NotFound(t *testing.T) {
	users := new(testutil.MockUserService)
	app := newUserTestApp(t, users)

	userID := uuid.New()
	users.On("GetByID", mock.Anything, userID).Return(nil, errors.New("not found"))

	token := testutil.GenerateUserToken(t, userID, "gone@example.com")
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", testutil.AuthHeader(token))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHandler_UpdateMe(t *testing.T) {
	users := new(testutil.MockUserService)
	app := newUserTestApp(t, users)

	userID := uuid.New()
	first := "Ana"
	updated := &models.User{
		ID:        userID,
		Email:     "player@example.com",
		Username:  "player",
		FirstName: &first,
		Role:      models.RoleUser,
	}

	users.On("UpdateProfile", mock.Anything, userID, "Ana", "", "loves rhythm games").Return(updated, nil)

	token := testutil.GenerateUserToken(t, userID, "player@example.com")
	client := testutil.NewHTTPTestClient(t, app)
	rec := client.PATCH("/users/me", dto.UpdateProfileRequest{
		FirstName: "Ana",
		Bio:       "loves rhythm games",
	}, map[string]string{"Authorization": testutil.AuthHeader(token)})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.UserResponse
	testutil.ParseJSON(t, rec, &resp)
	require.NotNil(t, resp.FirstName)
	assert.Equal(t, "Ana", *resp.FirstName)

	users.AssertExpectations(t)
}
