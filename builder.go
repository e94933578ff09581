package authcore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/internal/cache"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Builder wires an [Engine] from its collaborators. Configure, then call
// [Builder.Build] exactly once.
//
// The cache is required and comes from either [Builder.WithRedis] (the
// shipped Redis store) or [Builder.WithCache] (any implementation of the
// [Cache] contract). The user store is always the host's.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	cache     Cache
	userStore UserStore
	issuer    TokenIssuer
	notifier  Notifier
	monitor   Monitor
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the shipped cache.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache injects a custom cache, overriding the Redis store even when a
// client was supplied.
func (b *Builder) WithCache(c Cache) *Builder {
	b.cache = c
	return b
}

// WithUserStore supplies the host's durable user repository. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithTokenIssuer replaces the default JWT issuer.
func (b *Builder) WithTokenIssuer(issuer TokenIssuer) *Builder {
	b.issuer = issuer
	return b
}

// WithNotifier supplies the delivery queue for registration events and
// verification emails. Defaults to [NoOpNotifier].
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithMonitor supplies the error-telemetry collaborator. Defaults to
// [NoOpMonitor].
func (b *Builder) WithMonitor(m Monitor) *Builder {
	b.monitor = m
	return b
}

// WithAuditSink supplies the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, constructs the internal stores, and
// returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.cache
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("cache required: supply WithRedis or WithCache")
		}
		store = cache.NewRedisStore(b.redis)
	}

	if b.userStore == nil {
		return nil, errors.New("user store required")
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	issuer := b.issuer
	if issuer == nil {
		if len(cfg.JWT.PrivateKey) == 0 {
			return nil, errors.New("JWT.PrivateKey required when no custom token issuer is set")
		}
		manager, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cfg.JWT.PrivateKey,
			PublicKey:     cfg.JWT.PublicKey,
			Issuer:        cfg.JWT.Issuer,
		})
		if err != nil {
			return nil, err
		}
		issuer = &jwtTokenIssuer{manager: manager}
	}

	decoy, err := newDecoyHash(hasher)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		cache:     store,
		users:     b.userStore,
		hasher:    hasher,
		issuer:    issuer,
		decoyHash: decoy,
	}

	engine.limiter = rate.New(store, rate.Config{
		BaseAttempts: cfg.RateLimit.BaseAttempts,
		Window:       cfg.RateLimit.Window,
		HistoryTTL:   cfg.RateLimit.HistoryTTL,
		HistoryStep:  cfg.RateLimit.HistoryStep,
		MaxPenalty:   cfg.RateLimit.MaxPenalty,
	})
	engine.mfaTokens = stores.NewMFATokenStore(store)
	engine.totp = newTOTPManager(cfg.TOTP)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	if cfg.Metrics.Enabled {
		engine.metrics = newMetrics()
	}

	engine.notifier = b.notifier
	if engine.notifier == nil {
		engine.notifier = NoOpNotifier{}
	}
	engine.monitor = b.monitor
	if engine.monitor == nil {
		engine.monitor = NoOpMonitor{}
	}

	b.built = true

	return engine, nil
}

// jwtTokenIssuer adapts the jwt manager to the [TokenIssuer] contract.
type jwtTokenIssuer struct {
	manager *jwt.Manager
}

func (i *jwtTokenIssuer) Issue(_ context.Context, user User) (*Token, error) {
	signed, err := i.manager.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
	}, nil
}

// newDecoyHash produces a hash of random material no caller knows, used to
// equalize verification cost for unknown emails.
func newDecoyHash(hasher *password.Argon2) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("decoy hash: %w", err)
	}
	return hasher.Hash(base64.RawStdEncoding.EncodeToString(raw))
}
