package gift

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/rollhouse-backend-go/internal/account"
	"github.com/kapu/rollhouse-backend-go/internal/metrics"
	"github.com/kapu/rollhouse-backend-go/internal/obslog"
	"github.com/kapu/rollhouse-backend-go/internal/registry"
	"github.com/kapu/rollhouse-backend-go/pkg/gamedto"
)

var (
	ErrNonPositiveAmount = errors.New("gift amount must be positive")
	ErrSelfGift          = errors.New("cannot gift yourself")
	ErrUnknownSender     = errors.New("unknown sender account")
	ErrUnknownRecipient  = errors.New("unknown recipient account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRecipientOverflow = errors.New("recipient balance would overflow")
)

// Result carries the sender's balance after the attempt; on any rejection
// it is the unchanged current balance, kept for display.
type Result struct {
	SenderBalance       int64
	RecipientNewBalance int64
}

// Engine executes gift transfers: validation without account locks, the
// ordered two-account critical section, then a detached best-effort push
// to the recipient.
type Engine struct {
	reg         *registry.Registry
	met         *metrics.Metrics
	pushTimeout time.Duration
}

func NewEngine(reg *registry.Registry, met *metrics.Metrics) *Engine {
	return &Engine{reg: reg, met: met, pushTimeout: 5 * time.Second}
}

// Send transfers amount of kind from sender to recipient. On success the
// recipient's GiftEvent is dispatched on its own goroutine after both
// balance locks are released: at most once, never retried, and a failure
// neither rolls back the transfer nor reaches the caller. The event's
// balance is captured inside the transfer's critical section, so it is
// exact for this transfer even if a later one lands before the frame
// does.
func (e *Engine) Send(senderID, recipientID string, kind gamedto.ResourceType, amount int64) (Result, error) {
	sender, ok := e.reg.ByAccount(senderID)
	if !ok {
		return Result{}, ErrUnknownSender
	}
	if amount <= 0 {
		return Result{SenderBalance: sender.Balance(kind)}, ErrNonPositiveAmount
	}
	if senderID == recipientID {
		return Result{SenderBalance: sender.Balance(kind)}, ErrSelfGift
	}
	recipient, ok := e.reg.ByAccount(recipientID)
	if !ok {
		return Result{SenderBalance: sender.Balance(kind)}, ErrUnknownRecipient
	}

	res, err := account.Transfer(sender, recipient, kind, amount)
	if err != nil {
		// Transfer re-validates what was just checked; reaching this
		// branch means a bug upstream, not a player error.
		return Result{SenderBalance: sender.Balance(kind)}, err
	}
	switch res.Status {
	case account.TransferInsufficient:
		return Result{SenderBalance: res.SenderBalance}, ErrInsufficientFunds
	case account.TransferOverflow:
		return Result{SenderBalance: res.SenderBalance}, ErrRecipientOverflow
	}

	obslog.L().Info("gift_applied",
		zap.String("sender_id", senderID),
		zap.String("recipient_id", recipientID),
		zap.String("resource", string(kind)),
		zap.Int64("amount", amount),
	)

	e.notify(senderID, recipient, kind, amount, res.RecipientBalance)

	return Result{SenderBalance: res.SenderBalance, RecipientNewBalance: res.RecipientBalance}, nil
}

func (e *Engine) notify(senderID string, recipient *account.Account, kind gamedto.ResourceType, amount, newBalance int64) {
	env, err := gamedto.NewEnvelope(gamedto.TypeGiftEvent, "", gamedto.GiftEvent{
		FromPlayerID:  senderID,
		ResourceType:  string(kind),
		ResourceValue: amount,
		NewBalance:    newBalance,
	})
	if err != nil {
		obslog.L().Error("gift_event_encode", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.pushTimeout)
		defer cancel()
		if !e.reg.Deliver(ctx, recipient, env) {
			e.met.PushesDropped.Inc()
		}
	}()
}
