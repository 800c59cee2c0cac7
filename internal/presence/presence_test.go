package presence

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(rdb, time.Minute), mr
}

func TestMarkOnlineAndOffline(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	tr.MarkOnline(ctx, "player_1", "d1")
	online, err := tr.Online(ctx, "player_1")
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if !online {
		t.Fatal("expected player_1 online")
	}

	tr.MarkOffline(ctx, "player_1")
	online, err = tr.Online(ctx, "player_1")
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if online {
		t.Fatal("expected player_1 offline after disconnect")
	}
}

func TestPresenceExpiresWithoutActivity(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	tr.MarkOnline(ctx, "player_1", "d1")
	mr.FastForward(2 * time.Minute)

	online, err := tr.Online(ctx, "player_1")
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if online {
		t.Fatal("stale presence key did not expire")
	}
}

func TestTouchRefreshesTTL(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	tr.MarkOnline(ctx, "player_1", "d1")
	mr.FastForward(50 * time.Second)
	tr.Touch(ctx, "player_1")
	mr.FastForward(50 * time.Second)

	online, err := tr.Online(ctx, "player_1")
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if !online {
		t.Fatal("touch did not refresh the TTL")
	}
}

func TestDisabledTrackerNoOps(t *testing.T) {
	var tr *Tracker
	ctx := context.Background()

	tr.MarkOnline(ctx, "player_1", "d1")
	tr.Touch(ctx, "player_1")
	tr.MarkOffline(ctx, "player_1")
	if online, err := tr.Online(ctx, "player_1"); err != nil || online {
		t.Fatalf("disabled tracker: online=%v err=%v", online, err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// An empty URL configures the disabled tracker.
	got, err := New("", time.Minute)
	if err != nil || got != nil {
		t.Fatalf("New with empty url: %v %v", got, err)
	}
}
