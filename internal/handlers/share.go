package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/onetarget777/kachra-site/internal/services"
)

// ShareHandler resolves public share links.
type ShareHandler struct {
	minter *services.LinkMinter
}

// NewShareHandler creates the share handler.
func NewShareHandler(minter *services.LinkMinter) *ShareHandler {
	return &ShareHandler{minter: minter}
}

// Resolve handles GET /s/{code}: looks up the share code, bumps view
// counters, and returns the content metadata. Share links resolve
// regardless of the content's privacy flag.
func (h *ShareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	link, content, err := h.minter.Resolve(code)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			respondError(w, "Share link not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("Share link resolution failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"shortCode": link.ShortCode,
			"views":     link.Views + 1,
			"content": map[string]interface{}{
				"id":       content.ID,
				"filename": content.Filename,
				"fileType": content.FileType,
				"fileSize": content.FileSize,
				"isNSFW":   content.IsNSFW,
			},
		},
	}, http.StatusOK)
}
