package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Counters is the subset of the host cache the limiter depends on. Hit must
// be atomic and establish the window TTL only when it creates the key.
type Counters interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	RemainingTTL(ctx context.Context, key string) (time.Duration, error)
}

// Config holds limiter tuning parameters.
type Config struct {
	BaseAttempts int
	Window       time.Duration
	HistoryTTL   time.Duration
	HistoryStep  int
	MaxPenalty   int
}

// Limiter tracks attempt counts per (action, ip) key in a fixed window and
// decides admission against a threshold derived from the IP's history.
type Limiter struct {
	cache  Counters
	config Config
}

// New creates a [Limiter] backed by the given counter cache.
func New(cache Counters, cfg Config) *Limiter {
	if cfg.BaseAttempts <= 0 {
		cfg.BaseAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = 24 * time.Hour
	}
	if cfg.HistoryStep <= 0 {
		cfg.HistoryStep = 10
	}
	if cfg.MaxPenalty <= 0 {
		cfg.MaxPenalty = 4
	}
	return &Limiter{
		cache:  cache,
		config: cfg,
	}
}

// AttemptKey is the window counter key for an (action, ip) pair.
func AttemptKey(action, ip string) string {
	return action + ":" + ip
}

// HistoryKey is the long-horizon counter key for an IP.
func HistoryKey(ip string) string {
	return "rate:history:" + ip
}

// TooManyAttempts reports whether the current window's count for key has
// reached maxAttempts. A fresh key counts as zero.
func (l *Limiter) TooManyAttempts(ctx context.Context, key string, maxAttempts int) (bool, error) {
	count, err := l.count(ctx, key)
	if err != nil {
		return false, err
	}
	return count >= int64(maxAttempts), nil
}

// AvailableIn returns the remaining time until the window for key resets.
// Only meaningful after TooManyAttempts reported true.
func (l *Limiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.cache.RemainingTTL(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return ttl, nil
}

// Hit records one attempt for key. The first hit in a window establishes
// the window length; later hits within the window do not extend it.
func (l *Limiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := l.cache.Hit(ctx, key, window)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return count, nil
}

// DynamicThreshold reads the IP's attempt history and derives the current
// allowance. Pure function of the cached history value, so repeated calls
// with unchanged history agree.
func (l *Limiter) DynamicThreshold(ctx context.Context, ip string) (int, error) {
	history, err := l.count(ctx, HistoryKey(ip))
	if err != nil {
		return 0, err
	}
	return Threshold(l.config.BaseAttempts, history, l.config.HistoryStep, l.config.MaxPenalty), nil
}

// Threshold computes max(1, base - min(history/step, maxPenalty)).
func Threshold(base int, history int64, step, maxPenalty int) int {
	penalty := history / int64(step)
	if penalty > int64(maxPenalty) {
		penalty = int64(maxPenalty)
	}
	threshold := base - int(penalty)
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}

// Enforce gates one attempt for (ip, action): it computes the dynamic
// threshold, rejects with a retry-after carrying [*Error] when the window
// is exhausted, and otherwise records the attempt in both the window and
// history counters.
func (l *Limiter) Enforce(ctx context.Context, ip, action string) error {
	threshold, err := l.DynamicThreshold(ctx, ip)
	if err != nil {
		return err
	}

	key := AttemptKey(action, ip)
	exceeded, err := l.TooManyAttempts(ctx, key, threshold)
	if err != nil {
		return err
	}
	if exceeded {
		retryAfter, err := l.AvailableIn(ctx, key)
		if err != nil {
			return err
		}
		return &Error{
			RetryAfter: retryAfter,
			IP:         ip,
			Action:     action,
		}
	}

	if _, err := l.Hit(ctx, key, l.config.Window); err != nil {
		return err
	}
	if _, err := l.Hit(ctx, HistoryKey(ip), l.config.HistoryTTL); err != nil {
		return err
	}
	return nil
}

func (l *Limiter) count(ctx context.Context, key string) (int64, error) {
	raw, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		return 0, nil
	}

	count, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric counter at %s", ErrBackendUnavailable, key)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}
