package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func registerTestUser(t *testing.T, engine *Engine, email, passwd string) *User {
	t.Helper()

	user, err := engine.Register(testCtx(), RegisterRequest{
		Name:     "Test User",
		Email:    email,
		Password: passwd,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return user
}

func TestAuthenticateSuccess(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t, testEngineConfig())
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	token, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if token.AccessToken == "" {
		t.Fatal("expected non-empty access token")
	}
	if token.TokenType != "Bearer" {
		t.Fatalf("token type = %s, want Bearer", token.TokenType)
	}

	if got := engine.metrics.Get(MetricLoginSuccess); got != 1 {
		t.Fatalf("MetricLoginSuccess = %d, want 1", got)
	}
	if got := engine.metrics.Get(MetricTokenIssued); got != 1 {
		t.Fatalf("MetricTokenIssued = %d, want 1", got)
	}
}

func TestAuthenticateUsesUserCache(t *testing.T) {
	engine, store, _, _, _ := newTestEngine(t, testEngineConfig())
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	for i := 0; i < 3; i++ {
		if _, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", ""); err != nil {
			t.Fatalf("Authenticate %d failed: %v", i+1, err)
		}
	}

	// Only the first login reaches the store; the rest hit the cache.
	if got := store.emailLookups(); got != 1 {
		t.Fatalf("store lookups = %d, want 1", got)
	}
	if got := engine.metrics.Get(MetricUserCacheMiss); got != 1 {
		t.Fatalf("MetricUserCacheMiss = %d, want 1", got)
	}
	if got := engine.metrics.Get(MetricUserCacheHit); got != 2 {
		t.Fatalf("MetricUserCacheHit = %d, want 2", got)
	}
}

func TestAuthenticateCachedEntryExpires(t *testing.T) {
	engine, store, _, _, mr := newTestEngine(t, testEngineConfig())
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	if _, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	mr.FastForward(time.Hour + time.Minute)

	if _, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("Authenticate after expiry failed: %v", err)
	}
	if got := store.emailLookups(); got != 2 {
		t.Fatalf("store lookups = %d, want 2 after cache expiry", got)
	}
}

func TestAuthenticateUnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t, testEngineConfig())
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	unknownErr := func() error {
		_, err := engine.Authenticate(testCtx(), "nobody@example.com", "correct-horse", "")
		return err
	}()
	wrongErr := func() error {
		_, err := engine.Authenticate(testCtx(), "alice@example.com", "wrong-horse-!", "")
		return err
	}()

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("errors must be indistinguishable: %q vs %q", unknownErr, wrongErr)
	}
	if got := engine.metrics.Get(MetricLoginFailure); got != 2 {
		t.Fatalf("MetricLoginFailure = %d, want 2", got)
	}
}

func TestAuthenticateTrimsEmail(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t, testEngineConfig())
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	if _, err := engine.Authenticate(testCtx(), "  alice@example.com ", "correct-horse", ""); err != nil {
		t.Fatalf("Authenticate with padded email failed: %v", err)
	}
}

func TestAuthenticateRateLimited(t *testing.T) {
	cfg := testEngineConfig()
	cfg.RateLimit.BaseAttempts = 2
	cfg.RateLimit.MaxPenalty = 1
	engine, _, _, _, _ := newTestEngine(t, cfg)
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	for i := 0; i < 2; i++ {
		if _, err := engine.Authenticate(testCtx(), "alice@example.com", "wrong-horse-!", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected credential rejection, got %v", i+1, err)
		}
	}

	_, err := engine.Authenticate(testCtx(), "alice@example.com", "wrong-horse-!", "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var limited *RateLimitError
	if !errors.As(err, &limited) {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if limited.Action != actionLogin {
		t.Fatalf("action = %s, want %s", limited.Action, actionLogin)
	}
	if limited.RetryAfter <= 0 || limited.RetryAfter > 60*time.Second {
		t.Fatalf("retry after out of range: %s", limited.RetryAfter)
	}
	if got := engine.metrics.Get(MetricLoginRateLimited); got != 1 {
		t.Fatalf("MetricLoginRateLimited = %d, want 1", got)
	}
}

func TestAuthenticateRegisterAndLoginWindowsIsolated(t *testing.T) {
	cfg := testEngineConfig()
	cfg.RateLimit.BaseAttempts = 2
	cfg.RateLimit.MaxPenalty = 1
	engine, _, _, _, _ := newTestEngine(t, cfg)
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	// Exhaust the login window; registration still has an attempt, since
	// the window counter is per action.
	if _, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if _, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected login window exhausted, got %v", err)
	}

	if _, err := engine.Register(testCtx(), RegisterRequest{
		Name: "Bob", Email: "bob@example.com", Password: "correct-horse",
	}); err != nil {
		t.Fatalf("register unexpectedly gated: %v", err)
	}
}

func TestAuthenticateAdaptiveThresholdShrinks(t *testing.T) {
	cfg := testEngineConfig()
	cfg.RateLimit.BaseAttempts = 5
	cfg.RateLimit.HistoryStep = 2
	cfg.RateLimit.MaxPenalty = 4
	engine, _, _, _, mr := newTestEngine(t, cfg)
	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	// Burn the first window: the register attempt plus three failed logins
	// leaves four attempts in history.
	for i := 0; i < 3; i++ {
		if _, err := engine.Authenticate(testCtx(), "alice@example.com", "wrong-horse-!", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	mr.FastForward(61 * time.Second)

	// The history penalty shrinks the fresh window: the third attempt is
	// gated even though the base allowance is five.
	for i := 0; i < 2; i++ {
		if _, err := engine.Authenticate(testCtx(), "alice@example.com", "wrong-horse-!", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("new-window attempt %d: %v", i+1, err)
		}
	}
	if _, err := engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected shrunken threshold to gate third attempt, got %v", err)
	}
}

func TestAuthenticateTokenIssuerFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := New().
		WithConfig(testEngineConfig()).
		WithRedis(client).
		WithUserStore(newMockUserStore()).
		WithTokenIssuer(failingIssuer{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	registerTestUser(t, engine, "alice@example.com", "correct-horse")

	_, err = engine.Authenticate(testCtx(), "alice@example.com", "correct-horse", "")
	if !errors.Is(err, ErrTokenIssuerUnavailable) {
		t.Fatalf("expected ErrTokenIssuerUnavailable, got %v", err)
	}
	if got := engine.metrics.Get(MetricLoginFailure); got != 1 {
		t.Fatalf("MetricLoginFailure = %d, want 1", got)
	}
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, User) (*Token, error) {
	return nil, errors.New("kms offline")
}
