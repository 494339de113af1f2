package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a registered user (or the bootstrapped administrator).
type Account struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	Username     *string `gorm:"uniqueIndex" json:"username,omitempty"`
	FullName     string  `json:"full_name"`
	PasswordHash string  `gorm:"not null" json:"-"`
	IsAdmin      bool    `gorm:"not null;default:false" json:"is_admin"`

	// UploadLimitMB overrides the site-wide registered-user limit when set.
	UploadLimitMB *int64 `json:"upload_limit_mb,omitempty"`

	// StorageUsedMB is an advisory cache refreshed after each admitted
	// upload. The authoritative usage is the sum of live Content sizes;
	// never gate on this field.
	StorageUsedMB int64 `gorm:"not null;default:0" json:"storage_used_mb"`

	// PoolDays is the retention window for this account's content.
	PoolDays int `gorm:"not null;default:30" json:"pool_days"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Content is one uploaded asset.
type Content struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Filename  string `gorm:"not null" json:"filename"`  // Original uploaded filename
	FileType  string `gorm:"not null" json:"fileType"`  // MIME type as declared by the client
	FileSize  int64  `gorm:"not null" json:"fileSize"`  // Size in bytes
	FilePath  string `gorm:"not null" json:"filePath"`  // Storage backend key
	IsNSFW    bool   `gorm:"not null;default:false" json:"isNSFW"`
	NSFWScore int    `gorm:"not null;default:0" json:"nsfwProbability"` // 0-100
	IsPrivate bool   `gorm:"not null;default:false" json:"isPrivate"`
	Views     int64  `gorm:"not null;default:0" json:"views"`

	// AccountID is nil for guest uploads.
	AccountID *string `gorm:"index" json:"userId"`
}

func (c *Content) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ShareLink is a short public alias for one Content record.
type ShareLink struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ShortCode string  `gorm:"uniqueIndex;not null" json:"shortCode"`
	ContentID string  `gorm:"index;not null" json:"contentId"`
	AccountID *string `json:"userId"`
	Views     int64   `gorm:"not null;default:0" json:"views"`
}

func (s *ShareLink) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SiteSettings is the single global configuration row, lazily created
// with defaults on first read.
type SiteSettings struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	GuestUploadLimitMB int64 `gorm:"not null;default:100" json:"guestUploadLimit"`
	UserUploadLimitMB  int64 `gorm:"not null;default:500" json:"userUploadLimit"`
	PoolDays           int   `gorm:"not null;default:30" json:"poolDays"`
}

// ActivityLog is an append-only audit record. It is written by the
// admission pipeline and admin operations and never read back here.
type ActivityLog struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Action    string  `gorm:"index;not null" json:"action"`
	Details   string  `json:"details"` // JSON payload
	IPAddress string  `json:"ip_address"`
	UserAgent string  `json:"user_agent"`
	AccountID *string `json:"user_id"`
	ContentID *string `json:"content_id"`
}

func (l *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Like records one account liking one content item. Only counted, never
// listed, by this service.
type Like struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ContentID string `gorm:"index;not null" json:"contentId"`
	AccountID string `gorm:"index;not null" json:"userId"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
