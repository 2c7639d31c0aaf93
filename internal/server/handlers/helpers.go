package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/changesync/pkg/api"
)

// sendJSON отправляет JSON ответ
func sendJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError отправляет ответ с ошибкой
func sendError(w http.ResponseWriter, logger *slog.Logger, resp api.ErrorResponse, statusCode int) {
	sendJSON(w, logger, resp, statusCode)
}
