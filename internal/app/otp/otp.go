// Package otp manages short-lived one-time codes for password resets.
// Codes live for five minutes, must be verified before use and are
// consumed on first successful reset.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// TTL is how long a code stays valid after issuance.
const TTL = 5 * time.Minute

// ErrNotFound is returned when no live code exists for the key.
var ErrNotFound = errors.New("otp not found")

// Record is one issued code.
type Record struct {
	Code      string    `json:"code"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists codes keyed by the account email. Implementations expire
// records at Record.ExpiresAt.
type Store interface {
	Put(ctx context.Context, email string, rec Record) error
	Get(ctx context.Context, email string) (Record, error)
	MarkVerified(ctx context.Context, email string) error
	Delete(ctx context.Context, email string) error
}

// GenerateCode returns a random six-digit numeric code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
