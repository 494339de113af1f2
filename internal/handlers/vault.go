package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/onetarget777/kachra-site/internal/quota"
	"github.com/onetarget777/kachra-site/internal/services"
)

// VaultHandler exposes per-account storage reporting.
type VaultHandler struct {
	vault *services.VaultService
}

// NewVaultHandler creates the vault handler.
func NewVaultHandler(vault *services.VaultService) *VaultHandler {
	return &VaultHandler{vault: vault}
}

// Storage handles GET /vault/storage.
func (h *VaultHandler) Storage(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.vault.StorageSummary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, quota.ErrAccountNotFound) {
			respondError(w, "User not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("Storage summary failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    summary,
	}, http.StatusOK)
}
