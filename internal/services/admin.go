package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/quota"
)

// Well-known administrator record, auto-created on first admin login.
// The default credential must be rotated before administrative actions;
// AdminLogin reports whether it is still in place.
const (
	DefaultAdminEmail    = "info@zoibox.example"
	DefaultAdminPassword = "admin123"
	defaultAdminUsername = "admin"
)

var (
	// ErrNotAdmin is returned when the acting account exists but lacks
	// the administrator flag, or does not exist at all.
	ErrNotAdmin = errors.New("administrator access required")

	// ErrPasswordTooShort rejects admin passwords under 8 characters.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// AdminService implements the administrator console operations.
type AdminService struct {
	db *gorm.DB
}

// NewAdminService creates the admin service.
func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// ensureDefaultAdmin creates the well-known administrator record if it
// is absent.
func (s *AdminService) ensureDefaultAdmin() error {
	var count int64
	if err := s.db.Model(&models.Account{}).Where("email = ?", DefaultAdminEmail).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for admin account: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}

	username := defaultAdminUsername
	admin := models.Account{
		Email:        DefaultAdminEmail,
		Username:     &username,
		FullName:     "System Administrator",
		PasswordHash: string(hash),
		IsAdmin:      true,
		PoolDays:     365,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Info().Msg("Bootstrapped default administrator account")
	return nil
}

// AdminLogin authenticates an administrator, bootstrapping the default
// record on first use. mustChangePassword is true while the stored
// credential still matches the well-known default.
func (s *AdminService) AdminLogin(ctx context.Context, email, password string, meta RequestMeta) (*models.Account, bool, error) {
	if err := s.ensureDefaultAdmin(); err != nil {
		return nil, false, err
	}

	var admin models.Account
	if err := s.db.First(&admin, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrInvalidCredentials
		}
		return nil, false, fmt.Errorf("failed to load account: %w", err)
	}
	if !admin.IsAdmin {
		return nil, false, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, false, ErrInvalidCredentials
	}

	mustChange := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(DefaultAdminPassword)) == nil

	Audit(s.db, "admin_login", map[string]any{
		"email":                email,
		"forcedPasswordChange": mustChange,
	}, meta, &admin.ID, nil)

	return &admin, mustChange, nil
}

// ChangePassword rotates an administrator's credential.
func (s *AdminService) ChangePassword(ctx context.Context, accountID, newPassword string, meta RequestMeta) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	var admin models.Account
	if err := s.db.First(&admin, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return quota.ErrAccountNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !admin.IsAdmin {
		return quota.ErrAccountNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.db.Model(&admin).Update("password_hash", string(hash)).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	Audit(s.db, "admin_password_changed", map[string]any{"userId": accountID}, meta, &admin.ID, nil)
	return nil
}

// RequireAdmin resolves the acting account and checks its administrator
// flag. Missing or non-admin accounts yield ErrNotAdmin.
func (s *AdminService) RequireAdmin(ctx context.Context, accountID string) error {
	var admin models.Account
	if err := s.db.Select("is_admin").First(&admin, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAdmin
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !admin.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}

// Metrics are the aggregate site counters for the admin dashboard.
type Metrics struct {
	Users struct {
		Total int64 `json:"total"`
	} `json:"users"`
	Content struct {
		Total     int64 `json:"total"`
		NSFWCount int64 `json:"nsfwCount"`
		Private   int64 `json:"private"`
	} `json:"content"`
	Engagement struct {
		TotalViews         int64 `json:"totalViews"`
		TotalLikes         int64 `json:"totalLikes"`
		AvgViewsPerContent int64 `json:"avgViewsPerContent"`
	} `json:"engagement"`
	Storage struct {
		UsedBytes   int64 `json:"used"`
		AvgFileSize int64 `json:"avgFileSize"`
	} `json:"storage"`
}

// Metrics computes the aggregate counters.
func (s *AdminService) Metrics(ctx context.Context) (*Metrics, error) {
	var m Metrics

	if err := s.db.Model(&models.Account{}).Count(&m.Users.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	if err := s.db.Model(&models.Content{}).Count(&m.Content.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count content: %w", err)
	}
	if err := s.db.Model(&models.Content{}).Where("is_nsfw = ?", true).Count(&m.Content.NSFWCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count NSFW content: %w", err)
	}
	if err := s.db.Model(&models.Content{}).Where("is_private = ?", true).Count(&m.Content.Private).Error; err != nil {
		return nil, fmt.Errorf("failed to count private content: %w", err)
	}
	if err := s.db.Model(&models.Like{}).Count(&m.Engagement.TotalLikes).Error; err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	if err := s.db.Model(&models.Content{}).Select("COALESCE(SUM(views), 0)").Scan(&m.Engagement.TotalViews).Error; err != nil {
		return nil, fmt.Errorf("failed to sum views: %w", err)
	}
	if err := s.db.Model(&models.Content{}).Select("COALESCE(SUM(file_size), 0)").Scan(&m.Storage.UsedBytes).Error; err != nil {
		return nil, fmt.Errorf("failed to sum storage: %w", err)
	}

	if m.Content.Total > 0 {
		m.Engagement.AvgViewsPerContent = m.Engagement.TotalViews / m.Content.Total
		m.Storage.AvgFileSize = m.Storage.UsedBytes / m.Content.Total
	}
	return &m, nil
}

// GetSettings returns the site settings, lazily created with defaults.
func (s *AdminService) GetSettings(ctx context.Context) (*models.SiteSettings, error) {
	return quota.LoadSettings(s.db)
}

// SettingsUpdate holds a partial settings change; nil fields are left
// untouched.
type SettingsUpdate struct {
	GuestUploadLimitMB *int64 `json:"guestUploadLimit"`
	UserUploadLimitMB  *int64 `json:"userUploadLimit"`
	PoolDays           *int   `json:"poolDays"`
}

// UpdateSettings applies a partial update to the single settings row.
func (s *AdminService) UpdateSettings(ctx context.Context, update SettingsUpdate) (*models.SiteSettings, error) {
	settings, err := quota.LoadSettings(s.db)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]interface{})
	if update.GuestUploadLimitMB != nil {
		changes["guest_upload_limit_mb"] = *update.GuestUploadLimitMB
	}
	if update.UserUploadLimitMB != nil {
		changes["user_upload_limit_mb"] = *update.UserUploadLimitMB
	}
	if update.PoolDays != nil {
		changes["pool_days"] = *update.PoolDays
	}

	if len(changes) > 0 {
		if err := s.db.Model(settings).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	return quota.LoadSettings(s.db)
}
