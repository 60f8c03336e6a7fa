// This file handles GET /games/:id/live — the WebSocket endpoint that streams
// invitation-response events for a game as they happen, so a game screen can
// update without polling GET /games/:id.
package handlers

import (
	// websocket is the Fiber adapter for WebSocket connections. Fiber runs on
	// fasthttp, so the usual net/http upgraders don't apply here.
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/agon-app/agon/internal/ws"
)

// RequireWebSocketUpgrade rejects plain HTTP requests to the live endpoint
// before the upgrade handler runs. Mounted immediately before GameLive.
func RequireWebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// GameLive returns the WebSocket handler for GET /games/:id/live.
// Each connection subscribes to the game's event feed and copies it out to
// the socket until either side closes.
func GameLive(hub *ws.Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sub := hub.Subscribe(conn.Params("id"))

		// Writer: drain the subscription onto the socket. The hub closes the
		// channel on unsubscribe (or if this watcher falls too far behind),
		// which ends the loop.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range sub.C {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		// Reader: the live feed is one-way, but we must keep reading to
		// notice when the client hangs up (ReadMessage errors on close).
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		hub.Unsubscribe(sub)
		<-done
	})
}
