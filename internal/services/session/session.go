// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session manages signed session cookies.
package session

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"codeberg.org/oliverandrich/loginflow/internal/config"
	"codeberg.org/oliverandrich/loginflow/internal/models"
)

// Data is the payload stored in the session cookie.
type Data struct {
	UserID   string    `json:"uid"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IssuedAt time.Time `json:"iat"`
}

// Manager creates and validates session cookies using securecookie.
type Manager struct {
	sc         *securecookie.SecureCookie
	cookieName string
	maxAge     time.Duration
	secure     bool
}

// NewManager creates a session manager from configuration. Keys are
// hex-encoded; a missing hash key is generated at startup, which
// invalidates sessions across restarts and is only suitable for
// development.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := keyFromHex(cfg.HashKey, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid session hash key: %w", err)
	}

	var blockKey []byte
	if cfg.BlockKey != "" {
		blockKey, err = keyFromHex(cfg.BlockKey, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid session block key: %w", err)
		}
	}

	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "_session"
	}
	maxAge := time.Duration(cfg.MaxAge) * time.Second
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))

	return &Manager{
		sc:         sc,
		cookieName: cookieName,
		maxAge:     maxAge,
		secure:     secure,
	}, nil
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Create builds a signed session cookie for a user.
func (m *Manager) Create(user *models.User) (*http.Cookie, error) {
	data := Data{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		IssuedAt: time.Now().UTC(),
	}

	encoded, err := m.sc.Encode(m.cookieName, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	return &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Parse validates a session cookie and returns its payload.
func (m *Manager) Parse(cookie *http.Cookie) (*Data, error) {
	var data Data
	if err := m.sc.Decode(m.cookieName, cookie.Value, &data); err != nil {
		return nil, fmt.Errorf("invalid session cookie: %w", err)
	}
	return &data, nil
}

// Clear returns an expired cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// keyFromHex decodes a hex key, generating a random one when empty.
func keyFromHex(s string, size int) ([]byte, error) {
	if s == "" {
		return securecookie.GenerateRandomKey(size), nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != size {
		return nil, fmt.Errorf("key must be %d bytes, got %d", size, len(key))
	}
	return key, nil
}
