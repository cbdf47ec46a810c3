package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fastplay/tokenarcade/internal/session"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb), mr
}

func sample(id string) *session.Session {
	return &session.Session{
		ID:        id,
		AccountID: 1,
		GameID:    "archery-2d",
		Stake:     30,
		Status:    session.StatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateGetUpdate(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	s := sample("s1")

	err := store.Create(ctx, s)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.GameID != s.GameID || got.Stake != s.Stake || got.Status != s.Status {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, s)
	}

	got.Status = session.StatusSettled
	got.Payout = 60

	err = store.Update(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	again, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if again.Status != session.StatusSettled || again.Payout != 60 {
		t.Fatalf("update lost: %+v", again)
	}
}

func TestGet_Missing(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestUpdate_Missing(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	err := store.Update(context.Background(), sample("ghost"))
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestTerminalSessionsExpireSooner(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()

	live := sample("live")
	if err := store.Create(ctx, live); err != nil {
		t.Fatalf("create live: %v", err)
	}

	done := sample("done")
	done.Status = session.StatusSettled
	if err := store.Create(ctx, done); err != nil {
		t.Fatalf("create done: %v", err)
	}

	if mr.TTL(key("live")) <= mr.TTL(key("done")) {
		t.Fatalf("live TTL %v should exceed terminal TTL %v",
			mr.TTL(key("live")), mr.TTL(key("done")))
	}

	// past the terminal TTL the settled session is gone, the live one is not
	mr.FastForward(ttlTerminal + time.Minute)

	if _, err := store.Get(ctx, "done"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("settled session should have expired, got %v", err)
	}
	if _, err := store.Get(ctx, "live"); err != nil {
		t.Fatalf("live session should survive: %v", err)
	}
}
