package stores

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/internal/cache"
)

func newTestTokenStore(t *testing.T) (*MFATokenStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewMFATokenStore(cache.NewRedisStore(client)), mr
}

func TestLoadMissingChallenge(t *testing.T) {
	store, _ := newTestTokenStore(t)

	token, err := store.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != nil {
		t.Fatalf("expected nil for missing challenge, got %+v", token)
	}
}

func TestSaveLoadConsume(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	in := &MFAToken{
		UserID:   "u1",
		Secret:   []byte("12345678901234567890"),
		IssuedAt: time.Now().Unix(),
	}
	if err := store.Save(ctx, in, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := store.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out == nil || out.UserID != "u1" || string(out.Secret) != string(in.Secret) {
		t.Fatalf("loaded challenge mismatch: %+v", out)
	}

	existed, err := store.Consume(ctx, "u1")
	if err != nil || !existed {
		t.Fatalf("Consume: existed=%v err=%v", existed, err)
	}

	out, err = store.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load after consume failed: %v", err)
	}
	if out != nil {
		t.Fatal("expected challenge gone after consume")
	}
}

func TestChallengeExpires(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &MFAToken{UserID: "u1", Secret: []byte("s")}, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(5*time.Minute + time.Second)

	token, err := store.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != nil {
		t.Fatal("expected challenge expired")
	}
}

func TestMarkCounterUsedRejectsReplay(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	fresh, err := store.MarkCounterUsed(ctx, "u1", 41152263, 90*time.Second)
	if err != nil || !fresh {
		t.Fatalf("first mark: fresh=%v err=%v", fresh, err)
	}

	fresh, err = store.MarkCounterUsed(ctx, "u1", 41152263, 90*time.Second)
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if fresh {
		t.Fatal("expected replayed counter rejected")
	}

	// A different step and a different user are both fresh.
	if fresh, _ := store.MarkCounterUsed(ctx, "u1", 41152264, 90*time.Second); !fresh {
		t.Fatal("expected next counter fresh")
	}
	if fresh, _ := store.MarkCounterUsed(ctx, "u2", 41152263, 90*time.Second); !fresh {
		t.Fatal("expected other user's counter fresh")
	}
}

func TestMarkCounterUsedExpiresWithWindow(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	if fresh, err := store.MarkCounterUsed(ctx, "u1", 7, 90*time.Second); err != nil || !fresh {
		t.Fatalf("mark: fresh=%v err=%v", fresh, err)
	}

	mr.FastForward(91 * time.Second)

	fresh, err := store.MarkCounterUsed(ctx, "u1", 7, 90*time.Second)
	if err != nil {
		t.Fatalf("mark after expiry failed: %v", err)
	}
	if !fresh {
		t.Fatal("expected expired ledger entry to free the counter")
	}
}
