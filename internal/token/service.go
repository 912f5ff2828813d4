// Package token issues and verifies the signed tokens a client presents
// to resume its server-side session over a new connection.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service provides JWT-based session resumption with replay protection.
type Service struct {
	signingKey []byte
	algorithm  jwt.SigningMethod
	nonceStore *nonceStore
	config     *Config
	mu         sync.RWMutex
}

// Config defines Service configuration.
type Config struct {
	TTL         time.Duration // default 24 hours
	NonceWindow time.Duration // default 5 minutes
}

// DefaultConfig returns secure defaults.
func DefaultConfig() *Config {
	return &Config{
		TTL:         24 * time.Hour,
		NonceWindow: 5 * time.Minute,
	}
}

// SessionToken is the JWT payload tying a token to one session.
type SessionToken struct {
	SessionID string `json:"session_id"`
	Nonce     string `json:"nonce"`
	jwt.RegisteredClaims
}

// nonceStore tracks seen nonces for replay protection.
type nonceStore struct {
	nonces map[string]time.Time
	mu     sync.RWMutex
}

func newNonceStore() *nonceStore {
	return &nonceStore{nonces: make(map[string]time.Time)}
}

func (ns *nonceStore) add(nonce string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.nonces[nonce] = time.Now()
}

func (ns *nonceStore) exists(nonce string, window time.Duration) bool {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	if ts, ok := ns.nonces[nonce]; ok {
		return time.Since(ts) < window
	}
	return false
}

// Cleanup removes expired nonces and returns how many were dropped.
func (s *Service) Cleanup() int {
	s.nonceStore.mu.Lock()
	defer s.nonceStore.mu.Unlock()

	count := 0
	cutoff := time.Now().Add(-s.config.NonceWindow)
	for nonce, ts := range s.nonceStore.nonces {
		if ts.Before(cutoff) {
			delete(s.nonceStore.nonces, nonce)
			count++
		}
	}
	return count
}

// NewService creates a Service with a fresh random signing key. Always
// HS256, to prevent algorithm confusion.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	signingKey := make([]byte, 32)
	if _, err := rand.Read(signingKey); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Service{
		signingKey: signingKey,
		algorithm:  jwt.SigningMethodHS256,
		nonceStore: newNonceStore(),
		config:     config,
	}, nil
}

// Generate creates a token for a session.
func (s *Service) Generate(sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	nonce, err := generateNonce()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	claims := &SessionToken{
		SessionID: sessionID,
		Nonce:     nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "livemarkup",
			Subject:   sessionID,
		},
	}
	tok := jwt.NewWithClaims(s.algorithm, claims)
	signed, err := tok.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns its payload. A token verifies at
// most once per nonce window; a second presentation is treated as replay.
func (s *Service) Verify(tokenString string) (*SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := jwt.ParseWithClaims(tokenString, &SessionToken{}, func(t *jwt.Token) (any, error) {
		if t.Method != s.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := tok.Claims.(*SessionToken)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if s.nonceStore.exists(claims.Nonce, s.config.NonceWindow) {
		return nil, fmt.Errorf("token replay detected")
	}
	s.nonceStore.add(claims.Nonce)
	return claims, nil
}

// RotateSigningKey replaces the signing key, invalidating outstanding
// tokens.
func (s *Service) RotateSigningKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newKey := make([]byte, 32)
	if _, err := rand.Read(newKey); err != nil {
		return fmt.Errorf("generate new signing key: %w", err)
	}
	s.signingKey = newKey
	return nil
}

func generateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
