// Package server собирает HTTP сервер синхронизации из хранилища,
// applier, обработчиков и middleware.
package server

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/changesync/internal/server/handlers"
	"github.com/iudanet/changesync/internal/server/middleware"
)

// Routes зависимости маршрутизатора
type Routes struct {
	Logger      *slog.Logger
	Sync        *handlers.SyncHandler
	Health      *handlers.HealthHandler
	Events      http.Handler            // websocket поток событий, nil - не подключен
	RateLimiter *middleware.RateLimiter // nil - без ограничения
	Token       string
}

// NewRouter регистрирует маршруты:
//
//	POST /sync/push   - применение батча (токен, rate limit)
//	GET  /sync/events - websocket поток событий (токен)
//	GET  /health      - проверка доступности
func NewRouter(r Routes) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.TokenAuth(r.Logger, r.Token)

	var push http.Handler = http.HandlerFunc(r.Sync.Push)
	if r.RateLimiter != nil {
		push = r.RateLimiter.Middleware(push)
	}
	mux.Handle("POST /sync/push", auth(push))

	if r.Events != nil {
		mux.Handle("GET /sync/events", auth(r.Events))
	}

	mux.HandleFunc("GET /health", r.Health.Health)

	return middleware.Recovery(r.Logger)(middleware.Logging(r.Logger, "/health")(mux))
}
