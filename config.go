package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config carries all engine tuning. Configure before [Builder.Build] and
// treat as immutable afterwards.
type Config struct {
	RateLimit RateLimitConfig
	TOTP      TOTPConfig
	Cache     CacheConfig
	Password  PasswordConfig
	JWT       JWTConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Notify    NotifyConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the adaptive per-(ip, action) limiter.
//
// The window is fixed and short to bound burst attempts; the threshold is
// the adaptive part. Every HistoryStep historical attempts shrink the
// allowance by one, capped at MaxPenalty, so the effective threshold range
// is [BaseAttempts-MaxPenalty, BaseAttempts] with a hard floor of 1.
type RateLimitConfig struct {
	BaseAttempts int
	Window       time.Duration
	HistoryTTL   time.Duration
	HistoryStep  int
	MaxPenalty   int
}

// TOTPConfig tunes one-time code verification and MFA enrollment.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	// TokenTTL bounds the cached per-user challenge (the MFA_TOKEN_TTL of
	// the verification flow).
	TokenTTL time.Duration
}

// CacheConfig tunes user-record caching.
type CacheConfig struct {
	UserTTL time.Duration
}

// PasswordConfig carries Argon2id parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// JWTConfig configures the default token issuer. Ignored when a custom
// [TokenIssuer] is injected.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the atomic counter set.
type MetricsConfig struct {
	Enabled bool
}

// NotifyConfig tunes the queued notification dispatcher built by
// [NewQueuedNotifier].
type NotifyConfig struct {
	BufferSize   int
	MaxRetries   int
	RetryBackoff time.Duration
	DropIfFull   bool
}

// DefaultConfig returns the reference policy: 5 base attempts over a 60s
// window with a 24h history horizon, 6-digit SHA1 TOTP with one step of
// skew, 5-minute MFA challenges, 1-hour user caching.
func DefaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			BaseAttempts: 5,
			Window:       60 * time.Second,
			HistoryTTL:   24 * time.Hour,
			HistoryStep:  10,
			MaxPenalty:   4,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
			TokenTTL:  5 * time.Minute,
		},
		Cache: CacheConfig{
			UserTTL: time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authcore",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{
			BufferSize:   256,
			MaxRetries:   3,
			RetryBackoff: 500 * time.Millisecond,
			DropIfFull:   true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	return out
}

// Validate rejects configurations the engine cannot run safely.
func (c Config) Validate() error {
	if c.RateLimit.BaseAttempts < 1 {
		return errors.New("RateLimit.BaseAttempts must be >= 1")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit.Window must be positive")
	}
	if c.RateLimit.HistoryTTL < c.RateLimit.Window {
		return errors.New("RateLimit.HistoryTTL must cover at least one window")
	}
	if c.RateLimit.HistoryStep < 1 {
		return errors.New("RateLimit.HistoryStep must be >= 1")
	}
	if c.RateLimit.MaxPenalty < 0 || c.RateLimit.MaxPenalty >= c.RateLimit.BaseAttempts {
		return errors.New("RateLimit.MaxPenalty must keep the threshold floor >= 1")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("TOTP.Digits must be in [6, 10]")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP.Period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 4 {
		return errors.New("TOTP.Skew must be in [0, 4]")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP.Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.TokenTTL <= 0 {
		return errors.New("TOTP.TokenTTL must be positive")
	}
	if c.Cache.UserTTL <= 0 {
		return errors.New("Cache.UserTTL must be positive")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	return nil
}
