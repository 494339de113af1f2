// Package session mints and verifies the signed tokens carried in the
// identity cookie.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/onetarget777/kachra-site/internal/models"
)

// CookieName is the identity cookie set at login.
const CookieName = "session"

// AdminCookieName is the advisory administrator flag cookie.
const AdminCookieName = "isAdmin"

// Cookie lifetimes for normal and remember-me logins.
const (
	DefaultTTL    = 24 * time.Hour
	RememberMeTTL = 30 * 24 * time.Hour
)

// ErrInvalidToken is returned for a token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// Claims are the session token contents.
type Claims struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Manager signs and parses session tokens with a shared HMAC secret.
type Manager struct {
	secret []byte
}

// NewManager creates a session manager with the given signing secret.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Generate mints a signed token for the account, valid for ttl.
func (m *Manager) Generate(account *models.Account, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:  account.ID,
		IsAdmin: account.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies a token and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
