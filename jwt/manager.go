// Package jwt implements the default bearer-token issuer: short-lived
// signed JWTs over HS256 or Ed25519.
package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with an HMAC-SHA256 shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

// Config carries issuer settings. PrivateKey is the HMAC secret for HS256
// or an ed25519.PrivateKey seed/key for Ed25519.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

// AccessClaims is the token payload: subject (user ID), email, and the
// registered claim set with a uuid token ID.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and parses access tokens.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// NewManager validates the key material for the chosen method.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case "", MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		switch len(cfg.PrivateKey) {
		case ed25519.SeedSize:
			key := ed25519.NewKeyFromSeed(cfg.PrivateKey)
			m.signKey = key
			m.verifyKey = key.Public()
		case ed25519.PrivateKeySize:
			key := ed25519.PrivateKey(cfg.PrivateKey)
			m.signKey = key
			m.verifyKey = key.Public()
		default:
			return nil, errors.New("ed25519 requires a seed or private key")
		}
		if len(cfg.PublicKey) == ed25519.PublicKeySize {
			m.verifyKey = ed25519.PublicKey(cfg.PublicKey)
		}
		m.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// Issue signs an access token for the subject.
func (m *Manager) Issue(subject, email string) (string, error) {
	if m == nil {
		return "", errors.New("nil jwt manager")
	}

	now := time.Now()
	claims := AccessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// Parse verifies the signature and standard time claims and returns the
// decoded payload.
func (m *Manager) Parse(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (any, error) { return m.verifyKey, nil },
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
