// Package middleware holds the operator API's http.Handler wrappers.
package middleware

import (
	"encoding/json"
	"net/http"
)

func reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
