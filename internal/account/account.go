package account

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kapu/rollhouse-backend-go/pkg/gamedto"
)

// Conn is the live transport binding an account may hold. Implementations
// must tolerate concurrent SendJSON calls and report Open false once the
// underlying connection is gone.
type Conn interface {
	Open() bool
	SendJSON(ctx context.Context, v any) error
}

// BindResult is the three-way outcome of a connection bind attempt.
// Timeout is deliberately not collapsed into AlreadyBound: timeout means
// "nothing happened", already-bound means "someone else holds the slot".
type BindResult uint8

const (
	BindBound BindResult = iota
	BindAlreadyBound
	BindLockTimeout
)

func (r BindResult) String() string {
	switch r {
	case BindBound:
		return "bound"
	case BindAlreadyBound:
		return "already_bound"
	default:
		return "lock_timeout"
	}
}

// Account is one player's in-memory state. Balances and the connection
// binding are guarded by independent locks: a stalled transport send must
// never delay a balance mutation, and vice versa. The balance mutex is
// only ever held for in-memory arithmetic, so it is unbounded; the
// connection lock uses bounded waits because refusing a connection-state
// change only costs a dropped push or a rejected reconnect, never
// currency.
type Account struct {
	id       string
	deviceID string

	mu       sync.Mutex
	balances map[gamedto.ResourceType]int64

	connLock timedLock
	conn     Conn
}

// New constructs an account with zeroed balances. The initial connection
// is bound directly: at creation no other goroutine can hold a reference
// to the account, so there is no contention to arbitrate.
func New(id, deviceID string, conn Conn) *Account {
	return &Account{
		id:       id,
		deviceID: deviceID,
		balances: map[gamedto.ResourceType]int64{
			gamedto.ResourceCoins: 0,
			gamedto.ResourceRolls: 0,
		},
		connLock: newTimedLock(),
		conn:     conn,
	}
}

func (a *Account) ID() string       { return a.id }
func (a *Account) DeviceID() string { return a.deviceID }

// Balance reads the current value for kind.
func (a *Account) Balance(kind gamedto.ResourceType) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[kind]
}

// AdjustResult says why a balance adjustment was or was not applied.
type AdjustResult uint8

const (
	AdjustApplied AdjustResult = iota
	AdjustInsufficient
	AdjustOverflow
)

// TryAdjust applies delta to kind as one check-then-set critical section.
// A delta that would drive the balance negative, or past the int64
// ceiling, is rejected wholesale and the untouched current balance is
// returned.
func (a *Account) TryAdjust(kind gamedto.ResourceType, delta int64) (AdjustResult, int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.balances[kind]
	if delta > 0 && cur > math.MaxInt64-delta {
		return AdjustOverflow, cur
	}
	next := cur + delta
	if next < 0 {
		return AdjustInsufficient, cur
	}
	a.balances[kind] = next
	return AdjustApplied, next
}

// TryBind claims the connection slot for conn. The slot is free when it
// is empty or the held connection has already closed; otherwise the
// caller loses to whoever bound first. The whole check-and-set runs
// inside the connection lock so two racing reconnects cannot both
// observe "unbound".
func (a *Account) TryBind(conn Conn, wait time.Duration) BindResult {
	if !a.connLock.tryAcquire(wait) {
		return BindLockTimeout
	}
	defer a.connLock.release()
	if a.conn != nil && a.conn.Open() {
		return BindAlreadyBound
	}
	a.conn = conn
	return BindBound
}

// Unbind clears the connection slot. It reports false only when the lock
// could not be acquired within wait, in which case the slot is untouched.
func (a *Account) Unbind(wait time.Duration) bool {
	if !a.connLock.tryAcquire(wait) {
		return false
	}
	defer a.connLock.release()
	a.conn = nil
	return true
}

// PeekConn reads the current connection for push delivery. ok is false
// when the slot is empty, the held connection is closed, or the lock wait
// expired.
func (a *Account) PeekConn(wait time.Duration) (conn Conn, ok bool) {
	if !a.connLock.tryAcquire(wait) {
		return nil, false
	}
	defer a.connLock.release()
	if a.conn == nil || !a.conn.Open() {
		return nil, false
	}
	return a.conn, true
}
