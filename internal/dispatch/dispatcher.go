package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/rollhouse-backend-go/internal/account"
	"github.com/kapu/rollhouse-backend-go/internal/auth"
	"github.com/kapu/rollhouse-backend-go/internal/gift"
	"github.com/kapu/rollhouse-backend-go/internal/metrics"
	"github.com/kapu/rollhouse-backend-go/internal/obslog"
	"github.com/kapu/rollhouse-backend-go/internal/presence"
	"github.com/kapu/rollhouse-backend-go/internal/registry"
	"github.com/kapu/rollhouse-backend-go/pkg/gamedto"
)

// Dispatcher routes inbound envelopes to the login gate, the
// single-account balance path, or the gift engine. Every command except
// Login requires an authenticated session, and the acting identity is
// always the session's — the wire payloads carry no "whose account"
// field the dispatcher would trust. All faults are converted to response
// or Error envelopes here; nothing escapes to tear down the connection.
type Dispatcher struct {
	gate  *auth.Gate
	reg   *registry.Registry
	gifts *gift.Engine
	met   *metrics.Metrics
	pres  *presence.Tracker

	unbindWait time.Duration
}

func New(gate *auth.Gate, reg *registry.Registry, gifts *gift.Engine, met *metrics.Metrics, pres *presence.Tracker, unbindWait time.Duration) *Dispatcher {
	return &Dispatcher{
		gate:       gate,
		reg:        reg,
		gifts:      gifts,
		met:        met,
		pres:       pres,
		unbindWait: unbindWait,
	}
}

// Handle processes one inbound envelope and returns exactly one response
// envelope carrying the request's correlation id unchanged.
func (d *Dispatcher) Handle(ctx context.Context, sess *Session, env gamedto.Envelope) (out gamedto.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("dispatch_panic",
				zap.Any("panic", r),
				zap.String("type", string(env.Type)),
				zap.Stack("stack"),
			)
			out = errorEnvelope(gamedto.CodeInternal, "internal error", env.CorrelationID)
		}
	}()

	switch env.Type {
	case gamedto.TypeLogin:
		return d.handleLogin(ctx, sess, env)
	case gamedto.TypeUpdateResources:
		return d.handleUpdateResources(ctx, sess, env)
	case gamedto.TypeSendGift:
		return d.handleSendGift(ctx, sess, env)
	case gamedto.TypeLoginResponse, gamedto.TypeUpdateResourcesResponse,
		gamedto.TypeSendGiftResponse, gamedto.TypeGiftEvent, gamedto.TypeError:
		return errorEnvelope(gamedto.CodeUnknownType, "client must not send server frames", env.CorrelationID)
	default:
		return errorEnvelope(gamedto.CodeUnknownType, "unknown message type", env.CorrelationID)
	}
}

func (d *Dispatcher) handleLogin(ctx context.Context, sess *Session, env gamedto.Envelope) gamedto.Envelope {
	var req gamedto.LoginRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return errorEnvelope(gamedto.CodeInvalidPayload, "malformed login payload", env.CorrelationID)
	}

	// Re-login on an already authenticated connection is idempotent.
	if pid := sess.PlayerID(); pid != "" {
		return respond(gamedto.TypeLoginResponse, env.CorrelationID,
			gamedto.LoginResponse{PlayerID: pid, Success: true})
	}

	res, err := d.gate.Login(req.DeviceID, sess.Conn())
	if err != nil {
		if errors.Is(err, auth.ErrEmptyDeviceID) {
			return errorEnvelope(gamedto.CodeInvalidPayload, "device id must not be empty", env.CorrelationID)
		}
		obslog.L().Error("login_failed", zap.Error(err))
		return errorEnvelope(gamedto.CodeInternal, "internal error", env.CorrelationID)
	}

	d.met.Logins.WithLabelValues(res.Outcome.String()).Inc()
	switch res.Outcome {
	case auth.OutcomeCreated, auth.OutcomeResumed:
		sess.authenticate(res.PlayerID, req.DeviceID)
		d.pres.MarkOnline(ctx, res.PlayerID, req.DeviceID)
		return respond(gamedto.TypeLoginResponse, env.CorrelationID,
			gamedto.LoginResponse{PlayerID: res.PlayerID, Success: true})
	case auth.OutcomeDuplicate:
		return errorEnvelope(gamedto.CodeDuplicateLogin, "device already has a live session", env.CorrelationID)
	default: // auth.OutcomeLockBusy
		d.met.LockTimeouts.Inc()
		return errorEnvelope(gamedto.CodeLockBusy, "login busy, retry", env.CorrelationID)
	}
}

func (d *Dispatcher) handleUpdateResources(ctx context.Context, sess *Session, env gamedto.Envelope) gamedto.Envelope {
	pid := sess.PlayerID()
	if pid == "" {
		return errorEnvelope(gamedto.CodeNotAuthenticated, "login first", env.CorrelationID)
	}
	var req gamedto.UpdateResourcesRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return errorEnvelope(gamedto.CodeInvalidPayload, "malformed update payload", env.CorrelationID)
	}
	kind, ok := gamedto.ParseResourceType(req.ResourceType)
	if !ok {
		return errorEnvelope(gamedto.CodeInvalidPayload, "unknown resource type", env.CorrelationID)
	}
	if req.ResourceValue == 0 {
		return errorEnvelope(gamedto.CodeInvalidPayload, "resource value must be non-zero", env.CorrelationID)
	}

	// The acting account is the session's, regardless of anything the
	// payload could claim.
	acct, ok := d.reg.ByAccount(pid)
	if !ok {
		return errorEnvelope(gamedto.CodeUnknownAccount, "account no longer exists", env.CorrelationID)
	}

	adj, balance := acct.TryAdjust(kind, req.ResourceValue)
	d.pres.Touch(ctx, pid)
	if adj != account.AdjustApplied {
		reason := gamedto.CodeInsufficientFunds
		if adj == account.AdjustOverflow {
			reason = gamedto.CodeBalanceOverflow
		}
		d.met.Adjusts.WithLabelValues("rejected").Inc()
		return respond(gamedto.TypeUpdateResourcesResponse, env.CorrelationID, gamedto.UpdateResourcesResponse{
			Success:      false,
			ResourceType: string(kind),
			NewBalance:   balance,
			Reason:       reason,
		})
	}
	d.met.Adjusts.WithLabelValues("applied").Inc()
	return respond(gamedto.TypeUpdateResourcesResponse, env.CorrelationID, gamedto.UpdateResourcesResponse{
		Success:      true,
		ResourceType: string(kind),
		NewBalance:   balance,
	})
}

func (d *Dispatcher) handleSendGift(ctx context.Context, sess *Session, env gamedto.Envelope) gamedto.Envelope {
	pid := sess.PlayerID()
	if pid == "" {
		return errorEnvelope(gamedto.CodeNotAuthenticated, "login first", env.CorrelationID)
	}
	var req gamedto.SendGiftRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return errorEnvelope(gamedto.CodeInvalidPayload, "malformed gift payload", env.CorrelationID)
	}
	kind, ok := gamedto.ParseResourceType(req.ResourceType)
	if !ok {
		return errorEnvelope(gamedto.CodeInvalidPayload, "unknown resource type", env.CorrelationID)
	}
	if req.ResourceValue <= 0 {
		return errorEnvelope(gamedto.CodeInvalidPayload, "gift amount must be positive", env.CorrelationID)
	}

	// Sender identity comes from the session, never from the wire.
	res, err := d.gifts.Send(pid, req.FriendPlayerID, kind, req.ResourceValue)
	d.pres.Touch(ctx, pid)
	if err != nil {
		return d.giftRejection(res, err, env.CorrelationID)
	}
	d.met.Gifts.WithLabelValues("applied").Inc()
	return respond(gamedto.TypeSendGiftResponse, env.CorrelationID, gamedto.SendGiftResponse{
		Success:          true,
		SenderNewBalance: res.SenderBalance,
	})
}

func (d *Dispatcher) giftRejection(res gift.Result, err error, correlationID string) gamedto.Envelope {
	var reason string
	switch {
	case errors.Is(err, gift.ErrInsufficientFunds):
		reason = gamedto.CodeInsufficientFunds
	case errors.Is(err, gift.ErrRecipientOverflow):
		reason = gamedto.CodeBalanceOverflow
	case errors.Is(err, gift.ErrSelfGift):
		reason = gamedto.CodeSelfGift
	case errors.Is(err, gift.ErrUnknownRecipient):
		reason = gamedto.CodeUnknownAccount
	case errors.Is(err, gift.ErrNonPositiveAmount):
		reason = gamedto.CodeInvalidPayload
	case errors.Is(err, gift.ErrUnknownSender):
		d.met.Gifts.WithLabelValues("error").Inc()
		return errorEnvelope(gamedto.CodeUnknownAccount, "account no longer exists", correlationID)
	default:
		obslog.L().Error("gift_failed", zap.Error(err))
		d.met.Gifts.WithLabelValues("error").Inc()
		return errorEnvelope(gamedto.CodeInternal, "internal error", correlationID)
	}
	d.met.Gifts.WithLabelValues("rejected").Inc()
	return respond(gamedto.TypeSendGiftResponse, correlationID, gamedto.SendGiftResponse{
		Success:          false,
		SenderNewBalance: res.SenderBalance,
		Reason:           reason,
	})
}

// Disconnect runs connection-teardown cleanup: the account keeps its
// identity and balances, only the connection slot is cleared so the
// device can reconnect later.
func (d *Dispatcher) Disconnect(ctx context.Context, sess *Session) {
	pid := sess.PlayerID()
	if pid == "" {
		return
	}
	d.pres.MarkOffline(ctx, pid)
	acct, ok := d.reg.ByAccount(pid)
	if !ok {
		return
	}
	if !acct.Unbind(d.unbindWait) {
		d.met.LockTimeouts.Inc()
		obslog.L().Warn("unbind_lock_busy", zap.String("player_id", pid))
	}
}

func respond(t gamedto.MessageType, correlationID string, payload any) gamedto.Envelope {
	env, err := gamedto.NewEnvelope(t, correlationID, payload)
	if err != nil {
		obslog.L().Error("response_encode", zap.String("type", string(t)), zap.Error(err))
		return errorEnvelope(gamedto.CodeInternal, "internal error", correlationID)
	}
	return env
}

func errorEnvelope(code, message, correlationID string) gamedto.Envelope {
	return gamedto.DomainError{Code: code, Message: message}.ErrorFrame(correlationID)
}
