package models

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the read-only identity reference shown next to memberships and invitations.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name,omitempty" db:"full_name"`
	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
}

// Actor is the authenticated identity performing an operation. Every core
// operation receives it explicitly.
type Actor struct {
	UserID string
	Email  string
}

// NormalizedEmail returns the actor's email trimmed and lower-cased.
func (a Actor) NormalizedEmail() string {
	return NormalizeEmail(a.Email)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TokenClaims represents the JWT token claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Type   string `json:"type"` // "access" or "refresh"
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// Actor converts verified claims into an Actor.
func (c *TokenClaims) Actor() Actor {
	return Actor{UserID: c.UserID, Email: c.Email}
}
