// Package middleware provides HTTP middleware for the import API.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/acadimport/internal/core"
)

// writeError writes the same JSON error shape the handlers use.
func writeError(w http.ResponseWriter, status int, msg core.UserMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
