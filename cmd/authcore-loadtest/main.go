package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	authcore "github.com/MrEthical07/authcore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "authentication operations")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-secret-loadtest-secret!")
	// Throughput run, not a throttling run: keep the limiter out of the way.
	cfg.RateLimit.BaseAttempts = *ops * 2
	// Cheap parameters so the run measures plumbing, not Argon2.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	store := newMemoryStore()

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	emails, err := seedUsers(ctx, engine, store, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	stats := runLoginPhase(ctx, engine, emails, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", stats)

	snapshot := engine.MetricsSnapshot()
	fmt.Printf("login_success=%d login_failure=%d cache_hit=%d cache_miss=%d\n",
		snapshot.Counters[authcore.MetricLoginSuccess],
		snapshot.Counters[authcore.MetricLoginFailure],
		snapshot.Counters[authcore.MetricUserCacheHit],
		snapshot.Counters[authcore.MetricUserCacheMiss],
	)
}

// seedUsers registers users directly through the store with one shared hash
// so seeding is not dominated by Argon2.
func seedUsers(ctx context.Context, engine *authcore.Engine, store *memoryStore, n int) ([]string, error) {
	first, err := engine.Register(authcore.WithClientIP(ctx, "10.0.0.1"), authcore.RegisterRequest{
		Name:     "loadtest-0",
		Email:    "loadtest-0@example.test",
		Password: loadtestPassword,
	})
	if err != nil {
		return nil, err
	}

	hash := first.PasswordHash
	emails := make([]string, 0, n)
	emails = append(emails, first.Email)
	for i := 1; i < n; i++ {
		email := "loadtest-" + strconv.Itoa(i) + "@example.test"
		if _, err := store.Create(ctx, authcore.CreateUserInput{
			Name:         "loadtest-" + strconv.Itoa(i),
			Email:        email,
			PasswordHash: hash,
		}); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, nil
}

const loadtestPassword = "correct-horse-battery"

func runLoginPhase(ctx context.Context, engine *authcore.Engine, emails []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			workerCtx := authcore.WithClientIP(ctx, "10.1."+strconv.Itoa(worker/256)+"."+strconv.Itoa(worker%256))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				email := emails[r.Intn(len(emails))]
				t0 := time.Now()
				_, err := engine.Authenticate(workerCtx, email, loadtestPassword, "")
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50,
		s.p95,
		s.p99,
	)
}

// memoryStore is an in-memory user store for load testing.
type memoryStore struct {
	mu      sync.RWMutex
	nextID  int
	byID    map[string]authcore.User
	byEmail map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byID:    make(map[string]authcore.User),
		byEmail: make(map[string]string),
	}
}

func (s *memoryStore) Create(_ context.Context, input authcore.CreateUserInput) (authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[input.Email]; exists {
		return authcore.User{}, authcore.ErrDuplicateEmail
	}

	s.nextID++
	user := authcore.User{
		ID:                "user-" + strconv.Itoa(s.nextID),
		Name:              input.Name,
		Email:             input.Email,
		PasswordHash:      input.PasswordHash,
		VerificationToken: input.VerificationToken,
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return user, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return authcore.User{}, authcore.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return authcore.User{}, authcore.ErrUserNotFound
	}
	return user, nil
}

func (s *memoryStore) Update(_ context.Context, user authcore.User) (authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; !ok {
		return authcore.User{}, authcore.ErrUserNotFound
	}
	s.byID[user.ID] = user
	return user, nil
}

func (s *memoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}
