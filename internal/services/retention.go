package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/quota"
	"github.com/onetarget777/kachra-site/internal/storage"
)

// RetentionSweeper removes content older than its owner's retention
// window. Guest content follows the site-wide default. The sweep is
// best-effort housekeeping and never blocks request handling.
type RetentionSweeper struct {
	db    *gorm.DB
	store storage.Storage
}

// NewRetentionSweeper creates the sweeper.
func NewRetentionSweeper(db *gorm.DB, store storage.Storage) *RetentionSweeper {
	return &RetentionSweeper{db: db, store: store}
}

// Sweep deletes expired content: bytes via the storage backend, then
// the metadata row. Individual failures are logged and skipped.
func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	settings, err := quota.LoadSettings(s.db)
	if err != nil {
		return err
	}

	now := time.Now()

	var accounts []models.Account
	if err := s.db.Find(&accounts).Error; err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	pools := make(map[string]int, len(accounts))

	// Candidates are rows older than the shortest window in play; each
	// row is then checked against its owner's actual window.
	shortest := settings.PoolDays
	for _, a := range accounts {
		pools[a.ID] = a.PoolDays
		if a.PoolDays < shortest {
			shortest = a.PoolDays
		}
	}

	var candidates []models.Content
	if err := s.db.Where("created_at <= ?", now.AddDate(0, 0, -shortest)).
		Find(&candidates).Error; err != nil {
		return fmt.Errorf("failed to load expired content: %w", err)
	}

	removed := 0
	for _, content := range candidates {
		window := settings.PoolDays
		if content.AccountID != nil {
			if days, ok := pools[*content.AccountID]; ok {
				window = days
			}
		}
		if content.CreatedAt.After(now.AddDate(0, 0, -window)) {
			continue
		}

		if err := s.store.Delete(ctx, content.FilePath); err != nil {
			log.Warn().Err(err).Str("content", content.ID).Msg("Failed to delete expired bytes")
			continue
		}
		if err := s.db.Delete(&content).Error; err != nil {
			log.Warn().Err(err).Str("content", content.ID).Msg("Failed to delete expired content row")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Retention sweep completed")
	}
	return nil
}

// Run sweeps immediately and then on every tick until the context is
// cancelled.
func (s *RetentionSweeper) Run(ctx context.Context, interval time.Duration) {
	if err := s.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("Retention sweep failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Retention sweep failed")
			}
		}
	}
}
