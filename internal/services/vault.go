package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/quota"
)

// StorageSummary is the per-account usage breakdown for the vault
// dashboard.
type StorageSummary struct {
	UsedBytes      int64 `json:"used"`
	LimitBytes     int64 `json:"limit"`
	RemainingBytes int64 `json:"remaining"`
	UsedPercentage int64 `json:"usedPercentage"`
	Files          struct {
		Total   int64 `json:"total"`
		Private int64 `json:"private"`
		Public  int64 `json:"public"`
	} `json:"files"`
	TotalViews int64 `json:"totalViews"`
	TotalLikes int64 `json:"totalLikes"`
}

// VaultService reports per-account storage usage.
type VaultService struct {
	db     *gorm.DB
	ledger *quota.Ledger
}

// NewVaultService creates the vault service.
func NewVaultService(db *gorm.DB) *VaultService {
	return &VaultService{db: db, ledger: quota.NewLedger(db)}
}

// StorageSummary computes the account's usage against its effective
// limit, with file and engagement counts.
func (s *VaultService) StorageSummary(ctx context.Context, accountID string) (*StorageSummary, error) {
	var account models.Account
	if err := s.db.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, quota.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	settings, err := quota.LoadSettings(s.db)
	if err != nil {
		return nil, err
	}

	limitMB := settings.UserUploadLimitMB
	if account.UploadLimitMB != nil {
		limitMB = *account.UploadLimitMB
	}
	limitBytes := limitMB * 1024 * 1024

	used, err := s.ledger.Usage(accountID)
	if err != nil {
		return nil, err
	}

	var summary StorageSummary
	summary.UsedBytes = used
	summary.LimitBytes = limitBytes
	if remaining := limitBytes - used; remaining > 0 {
		summary.RemainingBytes = remaining
	}
	if limitBytes > 0 {
		summary.UsedPercentage = used * 100 / limitBytes
	}

	if err := s.db.Model(&models.Content{}).Where("account_id = ?", accountID).Count(&summary.Files.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	if err := s.db.Model(&models.Content{}).Where("account_id = ? AND is_private = ?", accountID, true).Count(&summary.Files.Private).Error; err != nil {
		return nil, fmt.Errorf("failed to count private files: %w", err)
	}
	summary.Files.Public = summary.Files.Total - summary.Files.Private

	if err := s.db.Model(&models.Content{}).Where("account_id = ?", accountID).
		Select("COALESCE(SUM(views), 0)").Scan(&summary.TotalViews).Error; err != nil {
		return nil, fmt.Errorf("failed to sum views: %w", err)
	}
	if err := s.db.Model(&models.Like{}).
		Joins("JOIN contents ON contents.id = likes.content_id").
		Where("contents.account_id = ?", accountID).
		Count(&summary.TotalLikes).Error; err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	return &summary, nil
}
