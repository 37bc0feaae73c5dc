package schedtest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/me/schedctl/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondJSON writes v as the JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondMessage writes a {"message": …} body.
func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, model.MessageResponse{Message: msg})
}

// respondError writes an error body with an optional machine-readable code.
func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, model.MessageResponse{Detail: detail, Code: code})
}
