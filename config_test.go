package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestDefaultConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RateLimit.BaseAttempts != 5 {
		t.Fatalf("BaseAttempts = %d, want 5", cfg.RateLimit.BaseAttempts)
	}
	if cfg.RateLimit.Window != 60*time.Second {
		t.Fatalf("Window = %s, want 60s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.HistoryStep != 10 || cfg.RateLimit.MaxPenalty != 4 {
		t.Fatalf("history policy = step %d penalty %d, want 10/4", cfg.RateLimit.HistoryStep, cfg.RateLimit.MaxPenalty)
	}
	if cfg.TOTP.Digits != 6 || cfg.TOTP.Period != 30 || cfg.TOTP.Skew != 1 {
		t.Fatalf("totp policy = %d digits, %ds period, %d skew", cfg.TOTP.Digits, cfg.TOTP.Period, cfg.TOTP.Skew)
	}
	if cfg.TOTP.TokenTTL != 5*time.Minute {
		t.Fatalf("TokenTTL = %s, want 5m", cfg.TOTP.TokenTTL)
	}
	if cfg.Cache.UserTTL != time.Hour {
		t.Fatalf("UserTTL = %s, want 1h", cfg.Cache.UserTTL)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero base attempts", func(c *Config) { c.RateLimit.BaseAttempts = 0 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"history shorter than window", func(c *Config) { c.RateLimit.HistoryTTL = time.Second }},
		{"zero history step", func(c *Config) { c.RateLimit.HistoryStep = 0 }},
		{"penalty floor below one", func(c *Config) { c.RateLimit.MaxPenalty = c.RateLimit.BaseAttempts }},
		{"too few digits", func(c *Config) { c.TOTP.Digits = 5 }},
		{"too many digits", func(c *Config) { c.TOTP.Digits = 11 }},
		{"negative skew", func(c *Config) { c.TOTP.Skew = -1 }},
		{"excessive skew", func(c *Config) { c.TOTP.Skew = 5 }},
		{"unknown algorithm", func(c *Config) { c.TOTP.Algorithm = "MD5" }},
		{"zero token ttl", func(c *Config) { c.TOTP.TokenTTL = 0 }},
		{"zero user ttl", func(c *Config) { c.Cache.UserTTL = 0 }},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesKeyMaterial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] = 'X'

	if cfg.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone shares private key backing array")
	}
}
