package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/rollhouse-backend-go/internal/account"
	"github.com/kapu/rollhouse-backend-go/internal/obslog"
)

// Registry owns the process-wide account indices: deviceID to account and
// playerID to account. Lookups, inserts and removals run concurrently on
// sync.Map shards; there is no global lock over all accounts.
type Registry struct {
	seq      atomic.Uint64
	byDevice sync.Map // deviceID -> *account.Account
	byID     sync.Map // playerID -> *account.Account

	// peekWait bounds the connection-lock wait inside Deliver.
	peekWait time.Duration
}

func New(peekWait time.Duration) *Registry {
	if peekWait <= 0 {
		peekWait = 150 * time.Millisecond
	}
	return &Registry{peekWait: peekWait}
}

// GetOrCreate returns the account for deviceID, creating one bound to
// conn when the device is unknown. Exactly one of two racing creators
// wins the LoadOrStore; the loser's freshly built account is discarded
// and its id is simply never issued (ids are never reused, so a gap is
// harmless). The returned created flag tells the login gate whether the
// supplied conn is already bound.
func (r *Registry) GetOrCreate(deviceID string, conn account.Conn) (acct *account.Account, created bool) {
	if v, ok := r.byDevice.Load(deviceID); ok {
		return v.(*account.Account), false
	}
	fresh := account.New(r.nextID(), deviceID, conn)
	if v, loaded := r.byDevice.LoadOrStore(deviceID, fresh); loaded {
		return v.(*account.Account), false
	}
	r.byID.Store(fresh.ID(), fresh)
	obslog.L().Info("account_create",
		zap.String("player_id", fresh.ID()),
		zap.String("device_id", deviceID),
	)
	return fresh, true
}

// ByDevice looks up the account for a device identity.
func (r *Registry) ByDevice(deviceID string) (*account.Account, bool) {
	v, ok := r.byDevice.Load(deviceID)
	if !ok {
		return nil, false
	}
	return v.(*account.Account), true
}

// ByAccount looks up an account by player id.
func (r *Registry) ByAccount(playerID string) (*account.Account, bool) {
	v, ok := r.byID.Load(playerID)
	if !ok {
		return nil, false
	}
	return v.(*account.Account), true
}

// Remove deletes an account from both indices. Normal disconnects never
// call this: they only unbind the connection so the account survives for
// reconnection. Remove exists for explicit account deletion and is
// idempotent.
func (r *Registry) Remove(playerID string) bool {
	v, loaded := r.byID.LoadAndDelete(playerID)
	if !loaded {
		return false
	}
	acct := v.(*account.Account)
	r.byDevice.CompareAndDelete(acct.DeviceID(), v)
	obslog.L().Info("account_remove", zap.String("player_id", playerID))
	return true
}

// Deliver pushes payload to the account's live connection, best effort.
// The connection is peeked under a bounded wait and the send happens
// outside every account lock. There is no queue and no retry; a miss is
// logged and reported to the caller for counting, nothing more.
func (r *Registry) Deliver(ctx context.Context, acct *account.Account, payload any) bool {
	conn, ok := acct.PeekConn(r.peekWait)
	if !ok {
		obslog.L().Debug("push_skip_offline", zap.String("player_id", acct.ID()))
		return false
	}
	if err := conn.SendJSON(ctx, payload); err != nil {
		obslog.L().Warn("push_send_failed",
			zap.String("player_id", acct.ID()),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (r *Registry) nextID() string {
	return fmt.Sprintf("player_%d", r.seq.Add(1))
}
