package authcore

import (
	"context"
	"time"
)

// User is the identity record owned by the [UserStore]. The Engine holds
// only transient copies during a request.
type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	MFASecret         []byte
	MFAEnabled        bool
	VerificationToken string
}

// PublicUser is the externally safe representation cached after
// registration. It never carries the password hash or MFA secret.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public strips credential material from the user record.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// CreateUserInput is the input for [UserStore.Create].
type CreateUserInput struct {
	Name              string
	Email             string
	PasswordHash      string
	VerificationToken string
}

// UserStore is the durable repository contract the host application must
// implement. Create must enforce email uniqueness and return
// [ErrDuplicateEmail] on violation; lookups return [ErrUserNotFound] for
// missing records.
type UserStore interface {
	Create(ctx context.Context, input CreateUserInput) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Update(ctx context.Context, user User) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Cache is the key-value collaborator shared by the Engine, the rate
// limiter, and the MFA challenge store. Implementations must be safe for
// concurrent use; Add and Hit must be atomic at the store level.
//
// The shipped implementation is Redis-backed ([Builder.WithRedis]); tests
// may inject any in-memory fake via [Builder.WithCache].
type Cache interface {
	// Get returns the value and whether the key exists. A miss is
	// (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Add stores the value only when the key is absent and reports whether
	// it was stored.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Remember returns the cached value or computes it via fn and stores it
	// (cache-aside). fn must be idempotent and side-effect-free so repeated
	// misses under races are safe.
	Remember(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error)
	Forget(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Hit atomically increments the counter at key, establishing the window
	// TTL only when the increment created the key.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	RemainingTTL(ctx context.Context, key string) (time.Duration, error)
}

// Token is the opaque bearer credential returned by [Engine.Authenticate].
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// TokenIssuer mints the bearer token after a successful authentication.
// The default issuer signs JWTs (see the jwt package); hosts may swap in
// their own.
type TokenIssuer interface {
	Issue(ctx context.Context, user User) (*Token, error)
}

// Notification kinds enqueued by the Engine.
const (
	NotifyUserRegistered    = "user.registered"
	NotifyVerificationEmail = "email.verification"
)

// Notifier receives fire-and-forget delivery jobs. Enqueue must never block
// the caller's flow; delivery, retries, and backoff are the implementation's
// concern. See [NewQueuedNotifier] for the shipped dispatcher.
type Notifier interface {
	Enqueue(kind string, payload map[string]string, priority uint8)
}

// Monitor is the error-telemetry collaborator. Both methods are
// best-effort: they must not block or fail the caller's flow.
type Monitor interface {
	ReportException(ctx context.Context, err error)
	ReportEvent(ctx context.Context, name string, details map[string]string)
}

// NoOpMonitor discards all reports.
type NoOpMonitor struct{}

func (NoOpMonitor) ReportException(context.Context, error)                {}
func (NoOpMonitor) ReportEvent(context.Context, string, map[string]string) {}

// NoOpNotifier discards all notification jobs.
type NoOpNotifier struct{}

func (NoOpNotifier) Enqueue(string, map[string]string, uint8) {}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// MFAProvision holds the base32 secret and otpauth:// URI returned by
// [Engine.ProvisionMFA].
type MFAProvision struct {
	SecretBase32 string
	URI          string
}
