package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/otp"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailNotRegistered = errors.New("registered email not available")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AuthService implements signup with OTP confirmation, login, and
// OTP-based password resets. The two OTP engines share rules but run
// over disjoint stores with disjoint success actions.
type AuthService struct {
	db        *gorm.DB
	signupOTP *otp.Engine
	resetOTP  *otp.Engine
}

// NewAuthService creates the authentication service.
func NewAuthService(db *gorm.DB, signupOTP, resetOTP *otp.Engine) *AuthService {
	return &AuthService{db: db, signupOTP: signupOTP, resetOTP: resetOTP}
}

// pendingAccount is the fully-prepared account payload stored with a
// signup challenge and materialized on successful verification.
type pendingAccount struct {
	FullName     string `json:"full_name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	PoolDays     int    `json:"pool_days"`
}

// Signup validates uniqueness, hashes the password, and issues a signup
// OTP carrying the pending account. No account row exists until the
// code is redeemed.
func (s *AuthService) Signup(ctx context.Context, fullName, username, email, password string) (string, error) {
	var count int64
	if err := s.db.Model(&models.Account{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return "", ErrUsernameTaken
	}

	if err := s.db.Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	payload, err := json.Marshal(pendingAccount{
		FullName:     fullName,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		PoolDays:     30,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode pending account: %w", err)
	}

	code, err := s.signupOTP.Issue(ctx, email, payload)
	if err != nil {
		return "", err
	}

	// An email delivery integration would send the code here.
	log.Info().Str("email", email).Msg("Signup OTP issued")
	return code, nil
}

// VerifySignup redeems a signup OTP and materializes the pending
// account. Returns otp.ErrInvalidOrExpired for any failed check.
func (s *AuthService) VerifySignup(ctx context.Context, email, code string) (*models.Account, error) {
	var account *models.Account
	err := s.signupOTP.Redeem(ctx, email, code, func(payload []byte) error {
		var pending pendingAccount
		if err := json.Unmarshal(payload, &pending); err != nil {
			return fmt.Errorf("failed to decode pending account: %w", err)
		}

		account = &models.Account{
			Email:        pending.Email,
			Username:     &pending.Username,
			FullName:     pending.FullName,
			PasswordHash: pending.PasswordHash,
			PoolDays:     pending.PoolDays,
		}
		if err := s.db.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("account", account.ID).Msg("Signup verified, account created")
	return account, nil
}

// ForgotPassword issues a password-reset OTP for a registered email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	var count int64
	if err := s.db.Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to check email: %w", err)
	}
	if count == 0 {
		return "", ErrEmailNotRegistered
	}

	code, err := s.resetOTP.Issue(ctx, email, nil)
	if err != nil {
		return "", err
	}

	log.Info().Str("email", email).Msg("Password reset OTP issued")
	return code, nil
}

// VerifyReset redeems a reset OTP and overwrites the account credential
// with a freshly generated random password, which is returned so the
// caller can deliver it.
func (s *AuthService) VerifyReset(ctx context.Context, email, code string) (string, error) {
	var newPassword string
	err := s.resetOTP.Redeem(ctx, email, code, func([]byte) error {
		pw, err := generatePassword()
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		res := s.db.Model(&models.Account{}).
			Where("email = ?", email).
			Update("password_hash", string(hash))
		if res.Error != nil {
			return fmt.Errorf("failed to update password: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrEmailNotRegistered
		}

		newPassword = pw
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("email", email).Msg("Password reset applied")
	return newPassword, nil
}

// Login checks the credential pair. Unknown email and wrong password
// return the same error so neither half is revealed.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Account, error) {
	var account models.Account
	if err := s.db.First(&account, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &account, nil
}

// UsernameAvailable reports whether no account holds the username.
func (s *AuthService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Account{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count == 0, nil
}

// generatePassword returns a 16-character random credential.
func generatePassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf)[:16], nil
}
