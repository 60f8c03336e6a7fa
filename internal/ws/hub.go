// Package ws pushes invitation updates to clients watching a game over a
// WebSocket, so a game screen reflects accept/decline responses the moment
// they happen instead of polling GET /games/:id.
//
// The hub is a plain mutex-guarded registry of per-game subscriptions.
// Publishing never blocks on a watcher: each subscription has a bounded
// queue, and a watcher that lets its queue fill up is dropped on the spot.
// That property matters because BroadcastInvitation is called from request
// goroutines — one stuck connection must never back up an API response.
package ws

import (
	"encoding/json"
	"sync"
)

// EventInvitationResponse tags events emitted when an invitee accepts or
// declines. It is the only event type today; the Type field exists so
// clients can dispatch when more are added.
const EventInvitationResponse = "invitation_response"

// InvitationEvent is the JSON payload pushed to a game's watchers when an
// invitation response lands.
type InvitationEvent struct {
	Type        string `json:"type"`
	GameID      string `json:"game_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	RespondedAt string `json:"responded_at"`
}

// subscriptionBuffer is the per-watcher queue size. Falling this far behind
// means the connection is effectively dead and gets dropped.
const subscriptionBuffer = 16

// Subscription is one watcher's event feed for a single game. Receive from C
// until it is closed; the hub closes it on Unsubscribe, or itself when the
// watcher is too slow to keep up.
type Subscription struct {
	gameID string
	C      chan []byte
}

// Hub routes invitation events to everyone watching a game.
// Safe for concurrent use; no background goroutine involved.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[*Subscription]struct{})}
}

// Subscribe opens a feed of events for the given game.
func (h *Hub) Subscribe(gameID string) *Subscription {
	sub := &Subscription{
		gameID: gameID,
		C:      make(chan []byte, subscriptionBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[gameID] == nil {
		h.watchers[gameID] = make(map[*Subscription]struct{})
	}
	h.watchers[gameID][sub] = struct{}{}
	return sub
}

// Unsubscribe ends a feed and closes its channel.
// Calling it more than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sub)
}

// drop removes a subscription and closes its channel. Caller must hold mu.
func (h *Hub) drop(sub *Subscription) {
	subs, ok := h.watchers[sub.gameID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.C)
	if len(subs) == 0 {
		delete(h.watchers, sub.gameID)
	}
}

// BroadcastInvitation delivers one response event to every watcher of the
// event's game. Delivery is best-effort: a watcher whose queue is full is
// dropped immediately, so this returns promptly no matter what the
// connections are doing.
func (h *Hub) BroadcastInvitation(ev InvitationEvent) {
	ev.Type = EventInvitationResponse
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.watchers[ev.GameID] {
		select {
		case sub.C <- payload:
		default:
			h.drop(sub)
		}
	}
}
