package auth

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/rollhouse-backend-go/internal/account"
	"github.com/kapu/rollhouse-backend-go/internal/obslog"
	"github.com/kapu/rollhouse-backend-go/internal/registry"
)

var ErrEmptyDeviceID = errors.New("device id must not be empty")

// Outcome classifies a login attempt. Duplicate and LockBusy stay
// separate: duplicate is a denial, lock-busy means nothing happened and
// the client may retry.
type Outcome uint8

const (
	OutcomeCreated Outcome = iota
	OutcomeResumed
	OutcomeDuplicate
	OutcomeLockBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeResumed:
		return "resumed"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "lock_busy"
	}
}

type Result struct {
	Outcome  Outcome
	PlayerID string
}

// Gate runs the login/reconnect protocol: a connection moves from
// unauthenticated to authenticated(playerID) or stays where it was.
type Gate struct {
	reg      *registry.Registry
	bindWait time.Duration
}

func NewGate(reg *registry.Registry, bindWait time.Duration) *Gate {
	return &Gate{reg: reg, bindWait: bindWait}
}

// Login resolves deviceID to an account, creating one on first contact,
// and attempts to claim its connection slot for conn. The claim is a
// single check-and-set inside the account's connection lock, so of two
// racing reconnects for the same device exactly one binds; the other
// observes the winner's connection and is rejected as a duplicate.
// Balances are never touched on this path.
func (g *Gate) Login(deviceID string, conn account.Conn) (Result, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return Result{}, ErrEmptyDeviceID
	}

	acct, created := g.reg.GetOrCreate(deviceID, conn)
	if created {
		// Creation bound conn synchronously; nothing left to claim.
		return Result{Outcome: OutcomeCreated, PlayerID: acct.ID()}, nil
	}

	switch acct.TryBind(conn, g.bindWait) {
	case account.BindBound:
		obslog.L().Info("login_resume",
			zap.String("player_id", acct.ID()),
			zap.String("device_id", deviceID),
		)
		return Result{Outcome: OutcomeResumed, PlayerID: acct.ID()}, nil
	case account.BindAlreadyBound:
		obslog.L().Warn("login_duplicate",
			zap.String("player_id", acct.ID()),
			zap.String("device_id", deviceID),
		)
		return Result{Outcome: OutcomeDuplicate, PlayerID: acct.ID()}, nil
	default:
		obslog.L().Warn("login_lock_busy",
			zap.String("player_id", acct.ID()),
			zap.String("device_id", deviceID),
		)
		return Result{Outcome: OutcomeLockBusy, PlayerID: acct.ID()}, nil
	}
}
