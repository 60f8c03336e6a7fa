// Test harness for the handlers package.
//
// Tests run the real Fiber app (same routes and middleware as cmd/server)
// against an in-memory SQLite database, so every assertion goes through the
// full HTTP → handler → GORM path. Each test gets its own uniquely-named
// shared-cache database, AutoMigrated from the models, and mints its own
// HS256 tokens with the test secret — the same shape the identity provider
// issues in production.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agon-app/agon/internal/config"
	"github.com/agon-app/agon/internal/middleware"
	"github.com/agon-app/agon/internal/models"
	"github.com/agon-app/agon/internal/ws"
)

const testJWTSecret = "test-secret"

// setupTestApp builds the app exactly like cmd/server does, backed by a
// fresh in-memory database. The database handle is returned too, for tests
// that want to assert on rows directly.
func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	// A uniquely named shared-cache DSN: "shared" keeps the database alive
	// across the pool's connections, the unique name isolates tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection: SQLite's write locking doesn't mix with a pool.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.GameTemplate{},
		&models.GameTemplateTeam{},
		&models.GameTemplateInvitation{},
		&models.RecurringGame{},
		&models.Game{},
		&models.GameTeam{},
		&models.GameInvitation{},
		&models.GroupGameInvitation{},
	)
	require.NoError(t, err)

	cfg := &config.Config{JWTSecret: testJWTSecret}

	hub := ws.NewHub()

	app := fiber.New()
	app.Get("/ping", Ping)

	api := app.Group("/", middleware.Auth(cfg))
	api.Get("/users/me", GetCurrentUser(db))
	api.Post("/users", CreateUser(db))
	api.Get("/users/search", SearchUsers(db))
	api.Post("/groups", CreateGroup(db))
	api.Get("/groups", GetGroups(db))
	api.Get("/groups/search", SearchGroups(db))
	api.Get("/groups/:id", GetGroup(db))
	api.Post("/groups/:id/members", AddGroupMembers(db))
	api.Get("/groups/:id/games", GetGroupGames(db))
	api.Post("/games", CreateGame(db))
	api.Get("/games", GetGames(db))
	api.Get("/games/:id", GetGame(db))
	api.Post("/games/:game_id/invitations", AddGameInvitations(db))
	api.Put("/games/:game_id/invitations/:user_id", RespondToInvitation(db, hub))

	return app, db
}

// mintToken produces a signed HS256 token with the given subject, the same
// shape the identity provider issues.
func mintToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

// doRequest performs one request against the app as the given user.
// A nil body sends no payload; anything else is JSON-encoded.
func doRequest(t *testing.T, app *fiber.App, method, path, subject string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+mintToken(t, subject))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// decodeBody unmarshals a JSON response body into out.
func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// createTestUser creates a profile for the given subject via the real endpoint.
func createTestUser(t *testing.T, app *fiber.App, subject, username string) UserResponse {
	t.Helper()
	resp := doRequest(t, app, http.MethodPost, "/users", subject, CreateUserRequest{
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  username,
		Username:  username,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user UserResponse
	decodeBody(t, resp, &user)
	return user
}

// createTestGroup creates a group as the given subject and returns it.
func createTestGroup(t *testing.T, app *fiber.App, subject, name string) GroupResponse {
	t.Helper()
	resp := doRequest(t, app, http.MethodPost, "/groups", subject, CreateGroupRequest{Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var group GroupResponse
	decodeBody(t, resp, &group)
	return group
}

// oneOffSchedule builds a one-off schedule payload a day in the future.
func oneOffSchedule() SchedulePayload {
	ts := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	return SchedulePayload{Type: scheduleTypeOneOff, ScheduledTime: &ts}
}
