package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/event"
	"github.com/ignatzorin/gig-escrow-backend/internal/goroutine"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/metrics"
)

const gigChangedType = "gig.changed"

// Hub держит подключения по пользователям и рассылает им события заданий.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
}

type message struct {
	userID  uuid.UUID
	payload []byte
}

var _ event.Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
	}
}

// Run крутит главный цикл хаба и завершается с отменой ctx.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.userID, msg.payload)
		}
	}
}

// Register и Unregister не блокируются после остановки хаба.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToUser ставит сообщение в очередь. Поле "type": имя события,
// "data": полезная нагрузка.
func (h *Hub) BroadcastToUser(userID uuid.UUID, eventType string, data any) error {
	raw, err := json.Marshal(map[string]any{
		"type": eventType,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case h.broadcast <- message{userID: userID, payload: raw}:
		return nil
	default:
		return fmt.Errorf("ws: очередь рассылки переполнена")
	}
}

// GigChanged рассылает событие участникам задания. Не блокирует:
// при переполненной очереди событие теряется, клиент перечитает задание сам.
func (h *Hub) GigChanged(_ context.Context, e event.GigChanged) {
	for _, userID := range e.Recipients {
		if err := h.BroadcastToUser(userID, gigChangedType, e); err != nil {
			logger.ForGig(e.GigID, string(e.Action)).WithError(err).Warn("событие не отправлено")
		}
	}
}

// ClientCount возвращает число подключений пользователя.
func (h *Hub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	metrics.WSClients.Inc()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if _, present := clients[client]; !present {
			return
		}
		delete(clients, client)
		client.closeSend()
		metrics.WSClients.Dec()
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.clients {
		for c := range clients {
			c.closeSend()
			metrics.WSClients.Dec()
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			// медленный клиент: отключаем, не задерживая остальных
			c := client
			goroutine.SafeGo(c.Close)
		}
	}
}
