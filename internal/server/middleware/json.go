package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iudanet/changesync/pkg/api"
)

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: msg})
}
