package quota

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
)

const megabyte = 1024 * 1024

// ErrAccountNotFound is returned when a supplied account id does not
// resolve to a stored account.
var ErrAccountNotFound = errors.New("account not found")

// Principal is the acting identity for a request: an authenticated
// account or an anonymous guest. Guest uploads are checked against the
// flat guest limit independently; cumulative guest usage is not tracked.
type Principal struct {
	accountID string
	guest     bool
}

// Guest returns the anonymous principal.
func Guest() Principal {
	return Principal{guest: true}
}

// ForAccount returns the principal for an authenticated account.
func ForAccount(id string) Principal {
	return Principal{accountID: id}
}

// IsGuest reports whether the principal is anonymous.
func (p Principal) IsGuest() bool {
	return p.guest
}

// AccountID returns the account id and whether one is present.
func (p Principal) AccountID() (string, bool) {
	if p.guest {
		return "", false
	}
	return p.accountID, true
}

// CapacityError rejects an upload that would exceed the principal's
// storage limit. It carries both tier limits for client display.
type CapacityError struct {
	GuestLimitMB int64
	UserLimitMB  int64
	LimitBytes   int64
	UsedBytes    int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("storage limit exceeded (guest: %dMB, registered: %dMB)",
		e.GuestLimitMB, e.UserLimitMB)
}

// Admission describes an admitted upload: the effective limit and the
// usage including the candidate size.
type Admission struct {
	LimitBytes int64
	UsedBytes  int64 // current usage + candidate size
}

// Ledger computes storage usage and remaining allowance against the
// principal's tiered limit.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a quota ledger over the given database.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// LoadSettings returns the global settings row, creating it with the
// hardcoded defaults (100/500/30) if absent.
func LoadSettings(db *gorm.DB) (*models.SiteSettings, error) {
	var settings models.SiteSettings
	err := db.First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings = models.SiteSettings{
		GuestUploadLimitMB: 100,
		UserUploadLimitMB:  500,
		PoolDays:           30,
	}
	if err := db.Create(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	return &settings, nil
}

// Usage returns the authoritative storage usage for an account: the sum
// of fileSize over its live Content rows.
func (l *Ledger) Usage(accountID string) (int64, error) {
	var used int64
	err := l.db.Model(&models.Content{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(file_size), 0)").
		Scan(&used).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum content sizes: %w", err)
	}
	return used, nil
}

// Admit decides whether a candidate upload of the given byte size fits
// within the principal's effective limit. It returns a *CapacityError
// on rejection and ErrAccountNotFound for an unknown account id.
func (l *Ledger) Admit(p Principal, size int64) (*Admission, error) {
	settings, err := LoadSettings(l.db)
	if err != nil {
		return nil, err
	}

	var limitBytes, used int64

	if id, ok := p.AccountID(); ok {
		var account models.Account
		if err := l.db.First(&account, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAccountNotFound
			}
			return nil, fmt.Errorf("failed to load account: %w", err)
		}

		limitMB := settings.UserUploadLimitMB
		if account.UploadLimitMB != nil {
			limitMB = *account.UploadLimitMB
		}
		limitBytes = limitMB * megabyte

		if used, err = l.Usage(id); err != nil {
			return nil, err
		}
	} else {
		limitBytes = settings.GuestUploadLimitMB * megabyte
	}

	if used+size > limitBytes {
		return nil, &CapacityError{
			GuestLimitMB: settings.GuestUploadLimitMB,
			UserLimitMB:  settings.UserUploadLimitMB,
			LimitBytes:   limitBytes,
			UsedBytes:    used,
		}
	}

	return &Admission{LimitBytes: limitBytes, UsedBytes: used + size}, nil
}

// RefreshAdvisory updates the account's cached storage-used counter to
// ceil(usedBytes/1MB). The cache is display-only; Admit re-derives
// usage from Content sums every time.
func (l *Ledger) RefreshAdvisory(accountID string, usedBytes int64) error {
	usedMB := (usedBytes + megabyte - 1) / megabyte
	err := l.db.Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("storage_used_mb", usedMB).Error
	if err != nil {
		return fmt.Errorf("failed to refresh storage counter: %w", err)
	}
	return nil
}
