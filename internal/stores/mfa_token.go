package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrBackend wraps cache failures behind the MFA token store.
var ErrBackend = errors.New("mfa token backend unavailable")

// MFAToken is the cached per-user challenge: the seeded generator state for
// one verification window. Created lazily on the first verification
// attempt, destroyed on success, left to expire on failure.
type MFAToken struct {
	UserID   string `json:"uid"`
	Secret   []byte `json:"secret"`
	IssuedAt int64  `json:"iat"`
}

// Cache is the subset of the host cache the store depends on.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) (bool, error)
}

// MFATokenStore keeps one challenge per user under mfa:token:{userID}.
type MFATokenStore struct {
	cache Cache
}

func NewMFATokenStore(cache Cache) *MFATokenStore {
	return &MFATokenStore{cache: cache}
}

func (s *MFATokenStore) key(userID string) string {
	return "mfa:token:" + userID
}

func usedKey(userID string, counter int64) string {
	return "mfa:used:" + userID + ":" + strconv.FormatInt(counter, 10)
}

// Load returns the cached challenge for the user, or nil when absent.
func (s *MFATokenStore) Load(ctx context.Context, userID string) (*MFAToken, error) {
	data, ok, err := s.cache.Get(ctx, s.key(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if !ok {
		return nil, nil
	}

	var token MFAToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: corrupt challenge record", ErrBackend)
	}
	return &token, nil
}

// Save stores the challenge with the given TTL.
func (s *MFATokenStore) Save(ctx context.Context, token *MFAToken, ttl time.Duration) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if err := s.cache.Put(ctx, s.key(token.UserID), data, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Consume evicts the user's challenge and reports whether one existed.
func (s *MFATokenStore) Consume(ctx context.Context, userID string) (bool, error) {
	deleted, err := s.cache.Forget(ctx, s.key(userID))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return deleted, nil
}

// MarkCounterUsed records that the code at the given time step has been
// accepted for the user. Returns false when the step was already consumed,
// which means the same code is being replayed. The TTL must cover the
// verifier's full skew window.
func (s *MFATokenStore) MarkCounterUsed(ctx context.Context, userID string, counter int64, ttl time.Duration) (bool, error) {
	stored, err := s.cache.Add(ctx, usedKey(userID, counter), []byte("1"), ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return stored, nil
}
