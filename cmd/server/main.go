// cmd/server/main.go
// This is the entry point for the Agon API server.
// The "cmd/server" directory follows a common Go convention: the cmd/ folder holds
// executable binaries, and internal/ holds reusable packages that are not meant to
// be imported by other projects.
package main

import (
	"log"

	// fiber is a fast HTTP web framework inspired by Express.js
	"github.com/gofiber/fiber/v2"
	// cors handles Cross-Origin Resource Sharing — allows the single-page app to
	// talk to the API even though they're running on different origins
	"github.com/gofiber/fiber/v2/middleware/cors"
	// logger prints request details (method, path, status, duration) to stdout
	"github.com/gofiber/fiber/v2/middleware/logger"

	// Internal packages — our own code, imported by module path
	"github.com/agon-app/agon/internal/config"
	"github.com/agon-app/agon/internal/database"
	"github.com/agon-app/agon/internal/handlers"
	"github.com/agon-app/agon/internal/middleware"
	"github.com/agon-app/agon/internal/ws"
)

func main() {
	// Load configuration from environment variables (and optionally a .env file).
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Connect to the PostgreSQL database.
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Run any pending SQL migration files (in the migrations/ directory).
	// Migrations are forward-only SQL scripts; running them on startup ensures
	// the database schema is always in sync when the server starts.
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// The hub fans invitation-response events out to everyone watching a game
	// over the /games/:id/live websocket. Safe to publish to from any request
	// handler.
	hub := ws.NewHub()

	app := fiber.New(fiber.Config{
		AppName: "Agon API",
	})

	// --- Global middleware ---
	// These run on every request before any route handler.
	app.Use(logger.New())
	// Allow requests from any origin during development.
	// In production, lock this down to the web client's domain.
	app.Use(cors.New())

	// --- Public routes (no auth required) ---
	// GET /ping is the liveness check used by load balancers.
	app.Get("/ping", handlers.Ping)

	// --- Authenticated routes ---
	// Everything except /ping requires a valid identity-provider JWT.
	// middleware.Auth verifies the token and exposes its subject as the
	// caller's user id; profile existence is checked per-handler, not here.
	api := app.Group("/", middleware.Auth(cfg))

	// Profile resolution
	api.Get("/users/me", handlers.GetCurrentUser(db))
	api.Post("/users", handlers.CreateUser(db))
	api.Get("/users/search", handlers.SearchUsers(db))

	// Groups (durable rosters)
	api.Post("/groups", handlers.CreateGroup(db))
	api.Get("/groups", handlers.GetGroups(db))
	api.Get("/groups/search", handlers.SearchGroups(db))
	api.Get("/groups/:id", handlers.GetGroup(db))
	api.Post("/groups/:id/members", handlers.AddGroupMembers(db))
	api.Get("/groups/:id/games", handlers.GetGroupGames(db))

	// Games and invitations
	api.Post("/games", handlers.CreateGame(db))
	api.Get("/games", handlers.GetGames(db))
	api.Get("/games/:id", handlers.GetGame(db))
	api.Post("/games/:game_id/invitations", handlers.AddGameInvitations(db))
	api.Put("/games/:game_id/invitations/:user_id", handlers.RespondToInvitation(db, hub))
	api.Get("/games/:id/live", handlers.RequireWebSocketUpgrade, handlers.GameLive(hub))

	// Start listening for HTTP connections on the configured port.
	log.Printf("Starting server on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
