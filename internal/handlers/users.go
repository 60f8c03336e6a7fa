// This file handles the /users routes — profile resolution and user search.
//
// Identity works in two steps:
//  1. The Auth middleware verifies the bearer token and exposes its subject
//     claim as the caller's user id.
//  2. A users row for that id only exists once the caller has created their
//     profile via POST /users. Until then, GET /users/me returns 404 —
//     deliberately distinct from 401, so clients can tell "sign-up needed"
//     apart from "bad token".
//
// Each exported function follows the "handler factory" pattern: it takes a *gorm.DB
// and returns a fiber.Handler (a function that handles a single HTTP request).
// This lets us inject the database without using global variables.
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/agon-app/agon/internal/middleware"
	"github.com/agon-app/agon/internal/models"
)

// UserResponse is the public shape of a user profile.
// We use a dedicated response struct (instead of the raw GORM model) so we control
// exactly what fields are serialised to JSON.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// CreateUserRequest is the JSON body we expect on POST /users.
// The user's id is NOT part of the body — it always comes from the token
// subject, so nobody can create a profile for someone else.
type CreateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// GetCurrentUser returns a handler for GET /users/me.
// Looks up the profile row keyed by the token subject; 404 if the caller has
// authenticated but never created a profile.
func GetCurrentUser(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "user not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch user",
			})
		}

		return c.JSON(toUserResponse(user))
	}
}

// CreateUser returns a handler for POST /users.
// Creates the caller's profile with the token subject as primary key.
// Creating the same profile twice is a 409 — the subject is durable, so a
// second create can only be a client bug.
func CreateUser(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)

		var req CreateUserRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}

		if req.Username == "" || req.Email == "" || req.FirstName == "" || req.LastName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "username, email, first_name and last_name are required",
			})
		}

		// Check for an existing profile first so the duplicate case surfaces
		// as a typed conflict instead of a driver-specific constraint error.
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create user",
			})
		}
		if count > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "profile already exists",
			})
		}

		user := models.User{
			ID:        userID,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		}
		if err := db.Create(&user).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create user",
			})
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// SearchUsers returns a handler for GET /users/search?q=.
// Case-insensitive substring match over username, first name, last name,
// and the "first last" concatenation — the invitation UI feeds keystrokes
// straight in here. Results are capped at 20, ordered by username.
func SearchUsers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		like := "%" + q + "%"

		var users []models.User
		err := db.
			Where("LOWER(username) LIKE LOWER(?)", like).
			Or("LOWER(first_name) LIKE LOWER(?)", like).
			Or("LOWER(last_name) LIKE LOWER(?)", like).
			Or("LOWER(first_name || ' ' || last_name) LIKE LOWER(?)", like).
			Order("username").
			Limit(20).
			Find(&users).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to search users",
			})
		}

		response := make([]UserResponse, 0, len(users))
		for _, u := range users {
			response = append(response, toUserResponse(u))
		}
		return c.JSON(response)
	}
}
