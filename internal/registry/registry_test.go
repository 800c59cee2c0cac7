package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct {
	open atomic.Bool

	mu   sync.Mutex
	sent []any
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.open.Store(true)
	return c
}

func (c *fakeConn) Open() bool { return c.open.Load() }

func (c *fakeConn) SendJSON(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestGetOrCreateAndLookups(t *testing.T) {
	r := New(0)

	a1, created := r.GetOrCreate("d1", newFakeConn())
	if !created {
		t.Fatal("first contact must create")
	}
	if a1.ID() != "player_1" {
		t.Fatalf("first id %q", a1.ID())
	}

	a2, created := r.GetOrCreate("d1", newFakeConn())
	if created || a2 != a1 {
		t.Fatal("same device must resolve to the same account")
	}

	if got, ok := r.ByDevice("d1"); !ok || got != a1 {
		t.Fatal("ByDevice lookup failed")
	}
	if got, ok := r.ByAccount("player_1"); !ok || got != a1 {
		t.Fatal("ByAccount lookup failed")
	}
	if _, ok := r.ByDevice("nope"); ok {
		t.Fatal("unknown device resolved")
	}
}

func TestGetOrCreateRaceCreatesOnce(t *testing.T) {
	r := New(0)

	const racers = 50
	var created atomic.Int64
	accounts := make([]string, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct, c := r.GetOrCreate("shared-device", newFakeConn())
			if c {
				created.Add(1)
			}
			accounts[i] = acct.ID()
		}(i)
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Fatalf("expected exactly one create, got %d", created.Load())
	}
	for _, id := range accounts[1:] {
		if id != accounts[0] {
			t.Fatalf("racers saw different accounts: %q vs %q", accounts[0], id)
		}
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New(0)
	a, _ := r.GetOrCreate("d1", newFakeConn())

	if !r.Remove(a.ID()) {
		t.Fatal("first remove should report true")
	}
	if r.Remove(a.ID()) {
		t.Fatal("second remove should be a no-op")
	}
	if _, ok := r.ByDevice("d1"); ok {
		t.Fatal("device index still holds removed account")
	}
	if _, ok := r.ByAccount(a.ID()); ok {
		t.Fatal("account index still holds removed account")
	}
}

func TestDeliverBestEffort(t *testing.T) {
	r := New(50 * time.Millisecond)
	ctx := context.Background()

	conn := newFakeConn()
	a, _ := r.GetOrCreate("d1", conn)
	if !r.Deliver(ctx, a, "hello") {
		t.Fatal("delivery to open conn should succeed")
	}
	if conn.sentCount() != 1 {
		t.Fatalf("conn received %d messages", conn.sentCount())
	}

	conn.open.Store(false)
	if r.Deliver(ctx, a, "again") {
		t.Fatal("delivery to closed conn must report false")
	}

	b, _ := r.GetOrCreate("d2", nil)
	if r.Deliver(ctx, b, "offline") {
		t.Fatal("delivery with no conn must report false")
	}
}
