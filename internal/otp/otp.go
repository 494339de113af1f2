// Package otp issues, stores, expires, and redeems single-use
// time-boxed verification codes. Two engines run over disjoint stores:
// one for password resets, one for signup confirmation.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// TTL is how long an issued challenge stays redeemable.
const TTL = 30 * time.Minute

// ErrInvalidOrExpired is returned for an absent, expired, or mismatched
// code. The three cases are deliberately indistinguishable.
var ErrInvalidOrExpired = errors.New("invalid or expired code")

// Challenge is one live verification challenge for a subject email.
// Payload carries the fully-prepared pending-account record for the
// signup flow; it is empty for password resets.
type Challenge struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Payload   []byte    `json:"payload,omitempty"`
}

// Store is the keyed challenge storage. At most one live challenge
// exists per key; Put overwrites. Implementations may expire entries on
// their own, but the engine re-checks expiry at verify time regardless.
type Store interface {
	Put(ctx context.Context, key string, ch Challenge, ttl time.Duration) error
	Get(ctx context.Context, key string) (Challenge, bool, error)
	Delete(ctx context.Context, key string) error
}

// Engine runs the issue/verify state machine over a Store.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Issue generates a fresh 6-digit code for the subject email with a
// 30-minute expiry, silently superseding any prior challenge for that
// email. The payload, if any, is returned on successful redemption.
func (e *Engine) Issue(ctx context.Context, email string, payload []byte) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	ch := Challenge{
		Code:      code,
		ExpiresAt: e.now().Add(TTL),
		Payload:   payload,
	}
	if err := e.store.Put(ctx, email, ch, TTL); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}
	return code, nil
}

// Redeem verifies the code for the subject email and, on a match, runs
// the success action and deletes the challenge. The challenge survives
// a failed action so the user can retry; a successful redemption can
// never be replayed.
func (e *Engine) Redeem(ctx context.Context, email, code string, action func(payload []byte) error) error {
	ch, ok, err := e.store.Get(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to load challenge: %w", err)
	}
	if !ok {
		return ErrInvalidOrExpired
	}

	if e.now().After(ch.ExpiresAt) {
		if err := e.store.Delete(ctx, email); err != nil {
			return fmt.Errorf("failed to purge expired challenge: %w", err)
		}
		return ErrInvalidOrExpired
	}

	if ch.Code != code {
		return ErrInvalidOrExpired
	}

	if action != nil {
		if err := action(ch.Payload); err != nil {
			return err
		}
	}

	if err := e.store.Delete(ctx, email); err != nil {
		return fmt.Errorf("failed to delete redeemed challenge: %w", err)
	}
	return nil
}

// generateCode returns a uniformly random 6-digit code in
// [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
