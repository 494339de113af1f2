package services

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
)

// RequestMeta carries the client attribution recorded with audit
// entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Audit appends one activity-log entry. The log is append-only and
// write-only from this service's perspective; failures are logged and
// never surfaced to the caller.
func Audit(db *gorm.DB, action string, details any, meta RequestMeta, accountID, contentID *string) {
	payload, err := json.Marshal(details)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode audit details")
		payload = []byte("{}")
	}

	entry := models.ActivityLog{
		Action:    action,
		Details:   string(payload),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		AccountID: accountID,
		ContentID: contentID,
	}
	if err := db.Create(&entry).Error; err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to write audit entry")
	}
}
