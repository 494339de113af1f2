package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onetarget777/kachra-site/internal/services"
)

// ErrorResponse is the uniform error body. Only a human-readable
// message is exposed; internal diagnostics stay in the logs.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, ErrorResponse{Error: message}, status)
}

// requestMeta extracts the client attribution recorded in audit logs.
func requestMeta(r *http.Request) services.RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	} else if idx := strings.IndexByte(ip, ','); idx >= 0 {
		ip = strings.TrimSpace(ip[:idx])
	}
	return services.RequestMeta{
		IPAddress: ip,
		UserAgent: r.Header.Get("User-Agent"),
	}
}
