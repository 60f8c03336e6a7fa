// Package handlers contains the HTTP route handler functions for the Agon API.
// Each handler corresponds to one API endpoint and is responsible for reading the
// request, performing any business logic, and writing a response.
package handlers

import "github.com/gofiber/fiber/v2"

// Ping handles GET /ping.
// It returns a simple JSON response indicating the server is alive and reachable.
// This endpoint is intentionally lightweight — no database queries, no authentication.
// It's used by:
//   - Load balancers and orchestrators to check whether to send traffic to this instance
//   - Developers checking if the server started correctly
func Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
