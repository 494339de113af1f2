package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
)

// shortCodeLen is the rendered length of a share code: 6 random bytes
// as hex, truncated to 8 URL-safe characters.
const shortCodeLen = 8

// ErrLinkNotFound is returned when a share code resolves to nothing.
var ErrLinkNotFound = errors.New("share link not found")

// LinkMinter creates short public aliases for content records.
type LinkMinter struct {
	db      *gorm.DB
	baseURL string
}

// NewLinkMinter creates a minter that renders links under baseURL.
func NewLinkMinter(db *gorm.DB, baseURL string) *LinkMinter {
	return &LinkMinter{db: db, baseURL: baseURL}
}

// Mint generates a collision-resistant short code bound to the content
// record and persists it with zero views. The code space is large
// relative to expected volume; a uniqueness violation on insert is
// retried once before giving up.
func (m *LinkMinter) Mint(contentID string, accountID *string) (*models.ShareLink, error) {
	for attempt := 0; attempt < 2; attempt++ {
		code, err := generateShortCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate share code: %w", err)
		}

		link := &models.ShareLink{
			ShortCode: code,
			ContentID: contentID,
			AccountID: accountID,
		}
		err = m.db.Create(link).Error
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create share link: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to mint unique share code")
}

// URL renders the public URL for a share code.
func (m *LinkMinter) URL(code string) string {
	return m.baseURL + "/s/" + code
}

// Resolve looks up a share code and bumps the view counters on both
// the link and its content.
func (m *LinkMinter) Resolve(code string) (*models.ShareLink, *models.Content, error) {
	var link models.ShareLink
	if err := m.db.First(&link, "short_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrLinkNotFound
		}
		return nil, nil, fmt.Errorf("failed to load share link: %w", err)
	}

	var content models.Content
	if err := m.db.First(&content, "id = ?", link.ContentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrLinkNotFound
		}
		return nil, nil, fmt.Errorf("failed to load content: %w", err)
	}

	if err := m.db.Model(&link).Update("views", gorm.Expr("views + 1")).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to bump link views: %w", err)
	}
	if err := m.db.Model(&content).Update("views", gorm.Expr("views + 1")).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to bump content views: %w", err)
	}

	return &link, &content, nil
}

func generateShortCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:shortCodeLen], nil
}
