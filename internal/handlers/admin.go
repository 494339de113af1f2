package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/onetarget777/kachra-site/internal/quota"
	"github.com/onetarget777/kachra-site/internal/services"
)

// AdminHandler exposes the administrator console endpoints. Every
// gated endpoint resolves the caller's account and checks its
// administrator flag: missing identity is 401, insufficient privilege
// is 403.
type AdminHandler struct {
	admins *services.AdminService
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(admins *services.AdminService) *AdminHandler {
	return &AdminHandler{admins: admins}
}

// gate enforces admin access for query-identified endpoints. It writes
// the error response and returns false when access is denied.
func (h *AdminHandler) gate(w http.ResponseWriter, r *http.Request) bool {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondError(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}

	if err := h.admins.RequireAdmin(r.Context(), userID); err != nil {
		if errors.Is(err, services.ErrNotAdmin) {
			respondError(w, "Forbidden", http.StatusForbidden)
			return false
		}
		log.Error().Err(err).Msg("Admin check failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return false
	}
	return true
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	admin, mustChange, err := h.admins.AdminLogin(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondError(w, "Invalid admin credentials", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("Admin login failed")
		respondError(w, "Failed to authenticate admin", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"user": map[string]interface{}{
			"id":                 admin.ID,
			"email":              admin.Email,
			"username":           admin.Username,
			"name":               admin.FullName,
			"isAdmin":            true,
			"mustChangePassword": mustChange,
		},
	}, http.StatusOK)
}

// ChangePassword handles POST /admin/change-password.
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.NewPassword == "" {
		respondError(w, "User ID and new password are required", http.StatusBadRequest)
		return
	}

	err := h.admins.ChangePassword(r.Context(), req.UserID, req.NewPassword, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPasswordTooShort):
			respondError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		case errors.Is(err, quota.ErrAccountNotFound):
			respondError(w, "Admin not found", http.StatusNotFound)
		default:
			log.Error().Err(err).Msg("Admin password change failed")
			respondError(w, "Failed to change password", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"message": "Password changed successfully",
	}, http.StatusOK)
}

// Metrics handles GET /admin/metrics.
func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}

	metrics, err := h.admins.Metrics(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Metrics aggregation failed")
		respondError(w, "Failed to fetch metrics", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    metrics,
	}, http.StatusOK)
}

// GetSettings handles GET /admin/settings.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}

	settings, err := h.admins.GetSettings(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Settings load failed")
		respondError(w, "Failed to fetch settings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    settings,
	}, http.StatusOK)
}

// UpdateSettings handles PATCH /admin/settings.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r) {
		return
	}

	var update services.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	settings, err := h.admins.UpdateSettings(r.Context(), update)
	if err != nil {
		log.Error().Err(err).Msg("Settings update failed")
		respondError(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    settings,
	}, http.StatusOK)
}
