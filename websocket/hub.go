package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"service-marketplace-server/models"
	"service-marketplace-server/services"
)

// Client is one authenticated connection. ServiceType is only set for
// professionals and selects which new requests they hear about.
type Client struct {
	Hub         *Hub
	ID          uint
	Role        models.Role
	ServiceType string
	Conn        *websocket.Conn
	Send        chan []byte
}

// Message is the envelope written to every client.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Hub tracks connected clients and fans lifecycle events out to them.
// It satisfies services.Notifier.
type Hub struct {
	// One connection per account; a reconnect replaces the older one.
	Clients map[uint]*Client

	Register   chan *Client
	Unregister chan *Client

	log  *zap.Logger
	mu   sync.RWMutex
	done chan struct{}
}

var _ services.Notifier = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		Clients:    make(map[uint]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		log:        log,
		done:       make(chan struct{}),
	}
}

// Run owns client registration until ctx is cancelled, then closes every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if old, ok := h.Clients[client.ID]; ok && old != client {
				close(old.Send)
			}
			h.Clients[client.ID] = client
			h.mu.Unlock()
			h.log.Debug("websocket client registered",
				zap.Uint("user_id", client.ID), zap.String("role", string(client.Role)))

		case client := <-h.Unregister:
			h.mu.Lock()
			if current, ok := h.Clients[client.ID]; ok && current == client {
				delete(h.Clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			h.log.Debug("websocket client unregistered", zap.Uint("user_id", client.ID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.Clients {
				close(client.Send)
				delete(h.Clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Notify routes a committed event. New requests go to every connected
// professional of the matching service type; everything else goes to the
// customer and professional on the request. Slow clients miss messages
// rather than stall the caller.
func (h *Hub) Notify(_ context.Context, event services.Event) {
	data, err := json.Marshal(&Message{
		Type:      string(event.Type),
		Timestamp: event.OccurredAt,
		Data:      event,
	})
	if err != nil {
		h.log.Error("marshal websocket event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if event.Type == services.EventRequestCreated {
		for _, client := range h.Clients {
			if client.Role == models.RoleProfessional && client.ServiceType == event.ServiceType {
				h.deliver(client, data)
			}
		}
		return
	}
	for _, id := range []uint{event.CustomerID, event.ProfessionalID} {
		if id == 0 {
			continue
		}
		if client, ok := h.Clients[id]; ok {
			h.deliver(client, data)
		}
	}
}

// SendToUser writes msg to one account if it is connected.
func (h *Hub) SendToUser(userID uint, msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal websocket message", zap.Error(err))
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.Clients[userID]
	if !ok {
		return false
	}
	return h.deliver(client, data)
}

// caller holds h.mu
func (h *Hub) deliver(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		h.log.Warn("websocket send buffer full, dropping message", zap.Uint("user_id", client.ID))
		return false
	}
}

func (h *Hub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.Clients[userID]
	return ok
}

func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients)
}
