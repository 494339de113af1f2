package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/onetarget777/kachra-site/internal/middleware"
	"github.com/onetarget777/kachra-site/internal/quota"
	"github.com/onetarget777/kachra-site/internal/services"
)

// maxMultipartMemory bounds how much of a multipart body is buffered in
// memory before spilling to temp files.
const maxMultipartMemory = 32 << 20

// UploadHandler exposes the content admission pipeline over HTTP.
type UploadHandler struct {
	uploads *services.UploadService
}

// NewUploadHandler creates the upload handler.
func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// uploadData is the success payload for one admitted upload.
type uploadData struct {
	ID              string `json:"id"`
	Filename        string `json:"filename"`
	FileType        string `json:"fileType"`
	FileSize        int64  `json:"fileSize"`
	FilePath        string `json:"filePath"`
	IsNSFW          bool   `json:"isNSFW"`
	NSFWProbability int    `json:"nsfwProbability"`
	IsPrivate       bool   `json:"isPrivate"`
	ShareLink       string `json:"shareLink,omitempty"`
	IsGuest         bool   `json:"isGuest"`
}

// Upload handles POST /upload.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	_, fileHeader, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return
	}

	opts := services.UploadOptions{
		SelfDeclaredNSFW: r.FormValue("isNSFW") == "true",
		Private:          r.FormValue("isPrivate") == "true",
		MintShareLink:    r.FormValue("autoGenerateShareLink") == "true",
		Meta:             requestMeta(r),
	}

	// Explicit form field first, session cookie as fallback.
	if userID := r.FormValue("userId"); userID != "" {
		opts.AccountID = &userID
	} else if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		opts.AccountID = &claims.UserID
	}

	result, err := h.uploads.Upload(r.Context(), fileHeader, opts)
	if err != nil {
		var capacity *quota.CapacityError
		switch {
		case errors.Is(err, quota.ErrAccountNotFound):
			respondError(w, "User not found", http.StatusNotFound)
		case errors.As(err, &capacity):
			respondError(w, capacity.Error(), http.StatusRequestEntityTooLarge)
		default:
			log.Error().Err(err).Msg("Upload failed")
			respondError(w, "Failed to upload file", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"data": uploadData{
			ID:              result.Content.ID,
			Filename:        result.Content.Filename,
			FileType:        result.Content.FileType,
			FileSize:        result.Content.FileSize,
			FilePath:        result.Content.FilePath,
			IsNSFW:          result.Content.IsNSFW,
			NSFWProbability: result.Content.NSFWScore,
			IsPrivate:       result.Content.IsPrivate,
			ShareLink:       result.ShareURL,
			IsGuest:         result.IsGuest,
		},
	}, http.StatusOK)
}
