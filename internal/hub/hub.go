package hub

import (
	"context"
	"encoding/json"
	"sync"
)

// EventMessagesChanged tells subscribers to reload the chat snapshot.
const EventMessagesChanged = "messages_changed"

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is one subscriber of a chat. It holds at most one undelivered
// event; a newer event replaces an older one the subscriber has not read yet.
type Client chan []byte

// Hub fans chat change events out to the subscribers on this instance.
type Hub struct {
	chats map[string]map[Client]bool
	mu    sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		chats: make(map[string]map[Client]bool),
	}
}

// Subscribe registers a new client for chatID.
func (h *Hub) Subscribe(chatID string) Client {
	client := make(Client, 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.chats[chatID]; !ok {
		h.chats[chatID] = make(map[Client]bool)
	}
	h.chats[chatID][client] = true
	return client
}

// Unsubscribe removes a client and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(chatID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.chats[chatID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client)
			if len(clients) == 0 {
				delete(h.chats, chatID)
			}
		}
	}
}

// Subscribers returns the number of live clients of chatID.
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID])
}

// Broadcast sends an event to all clients of chatID without blocking.
func (h *Hub) Broadcast(chatID string, event Event) error {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Write lock: replacing a stale event drains the channel, which must not
	// race with another broadcaster doing the same.
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.chats[chatID] {
		select {
		case client <- messageBytes:
		default:
			select {
			case <-client:
			default:
			}
			select {
			case client <- messageBytes:
			default:
			}
		}
	}
	return nil
}

// NotifyChanged broadcasts a change event for chatID on this instance only.
func (h *Hub) NotifyChanged(_ context.Context, chatID string) error {
	return h.Broadcast(chatID, Event{Type: EventMessagesChanged, Payload: chatID})
}
