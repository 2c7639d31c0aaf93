package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// subscriber одно websocket соединение
type subscriber struct {
	send chan []byte
}

// Hub раздает события подключенным websocket клиентам.
// Медленный клиент не блокирует публикацию: при заполненном буфере событие
// для него отбрасывается.
type Hub struct {
	logger   *slog.Logger
	clients  map[*subscriber]struct{}
	upgrader websocket.Upgrader
	mu       sync.RWMutex
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Доступ ограничен токеном, браузерный origin не проверяется
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish рассылает событие всем подписчикам без ожидания
func (h *Hub) Publish(ctx context.Context, eventType string, data any) error {
	payload, err := json.Marshal(NewEvent(eventType, data))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for sub := range h.clients {
		select {
		case sub.send <- payload:
		default:
			dropped++
		}
	}

	if dropped > 0 {
		h.logger.WarnContext(ctx, "Slow websocket subscribers, event dropped",
			slog.String("type", eventType),
			slog.Int("dropped", dropped),
		)
	}
	return nil
}

// Subscribers возвращает количество подключенных клиентов
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP переводит запрос в websocket и держит соединение до отключения клиента
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту ошибкой
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := &subscriber{send: make(chan []byte, sendBuffer)}
	h.add(sub)

	h.logger.DebugContext(r.Context(), "Websocket subscriber connected",
		slog.String("remote_addr", r.RemoteAddr),
	)

	readDone := make(chan struct{})
	go h.readLoop(conn, readDone)
	h.writeLoop(conn, sub, readDone)

	h.logger.DebugContext(r.Context(), "Websocket subscriber disconnected",
		slog.String("remote_addr", r.RemoteAddr),
	)
}

// Close отключает всех подписчиков
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.clients {
		delete(h.clients, sub)
		close(sub.send)
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Канал закрывается под write lock: Publish отправляет только под read lock
	if _, ok := h.clients[sub]; ok {
		delete(h.clients, sub)
		close(sub.send)
	}
}

// readLoop нужен для обработки pong и close от клиента.
// Входящие сообщения игнорируются.
func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(sub)
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// для websocket таймаут записи не восстанавливается
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-readDone:
			return
		}
	}
}
