// Package auth issues and checks operator sessions.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session has expired")
)

const issuer = "weaponcam"

// Sessions signs and validates HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions uses secret as the signing key. An empty secret gets a random
// key, so sessions do not survive a restart.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if secret == "" {
		key := make([]byte, 32)
		rand.Read(key)
		secret = hex.EncodeToString(key)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

// TTL returns how long an issued session stays valid.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue returns a new signed session token and its expiry.
func (s *Sessions) Issue() (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks the signature, issuer and expiry of a session token.
func (s *Sessions) Validate(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredSession
		}
		return ErrInvalidSession
	}
	if !token.Valid {
		return ErrInvalidSession
	}
	return nil
}

// CheckPassword compares a login attempt with the configured password,
// which may be plain text or a bcrypt hash.
func CheckPassword(configured, attempt string) bool {
	if IsBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(attempt)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(attempt)) == 1
}

// IsBcryptHash reports whether s looks like a bcrypt hash.
func IsBcryptHash(s string) bool {
	return len(s) == 60 && s[0] == '$'
}

// HashPassword returns the bcrypt hash of password, for PASSWORD values.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
