package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/changesync/internal/crypto"
)

// TokenHeader заголовок с общим секретом синхронизации
const TokenHeader = "X-Sync-Token"

// TokenAuth создает middleware для проверки общего токена синхронизации.
// Значение токена никогда не попадает в логи.
func TokenAuth(logger *slog.Logger, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(TokenHeader)
			if got == "" {
				logger.WarnContext(r.Context(), "Missing sync token",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr))
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if !crypto.CompareToken(got, token) {
				logger.WarnContext(r.Context(), "Invalid sync token",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr))
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
