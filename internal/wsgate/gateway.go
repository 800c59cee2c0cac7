package wsgate

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/rollhouse-backend-go/internal/config"
	"github.com/kapu/rollhouse-backend-go/internal/dispatch"
	"github.com/kapu/rollhouse-backend-go/internal/metrics"
	"github.com/kapu/rollhouse-backend-go/internal/obslog"
	"github.com/kapu/rollhouse-backend-go/pkg/gamedto"
)

// Gateway accepts player websockets and runs one read loop per
// connection. Envelopes are handled sequentially per connection; the
// dispatcher owns everything beyond framing.
type Gateway struct {
	disp *dispatch.Dispatcher
	met  *metrics.Metrics

	writeTimeout time.Duration
	pingInterval time.Duration
	ratePerSec   rate.Limit
	rateBurst    int
}

func New(disp *dispatch.Dispatcher, met *metrics.Metrics, cfg *config.AppConfig) *Gateway {
	return &Gateway{
		disp:         disp,
		met:          met,
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
		ratePerSec:   rate.Limit(cfg.RatePerSec),
		rateBurst:    cfg.RateBurst,
	}
}

func (g *Gateway) Handler() http.Handler {
	return http.HandlerFunc(g.handleWS)
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	wc := newWSConn(conn, g.writeTimeout)
	sess := dispatch.NewSession(wc)
	limiter := rate.NewLimiter(g.ratePerSec, g.rateBurst)

	g.met.SessionsActive.Inc()
	obslog.L().Info("ws_open", zap.String("conn_id", connID))

	ctx, cancel := context.WithCancel(r.Context())
	go g.pingLoop(ctx, conn, connID)

	g.readLoop(ctx, conn, wc, sess, limiter, connID)

	cancel()
	wc.markClosed()
	g.met.SessionsActive.Dec()

	// The request context is gone once the socket breaks; teardown gets
	// its own budget.
	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	g.disp.Disconnect(dctx, sess)
	dcancel()

	_ = conn.Close(websocket.StatusNormalClosure, "session end")
	obslog.L().Info("ws_close",
		zap.String("conn_id", connID),
		zap.String("player_id", sess.PlayerID()),
	)
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, wc *wsConn, sess *dispatch.Session, limiter *rate.Limiter, connID string) {
	for {
		var env gamedto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			obslog.L().Debug("ws_read_end", zap.String("conn_id", connID), zap.Error(err))
			return
		}
		if !limiter.Allow() {
			if err := wc.SendJSON(ctx, rateLimited(env.CorrelationID)); err != nil {
				return
			}
			continue
		}
		resp := g.disp.Handle(ctx, sess, env)
		if err := wc.SendJSON(ctx, resp); err != nil {
			obslog.L().Debug("ws_write_end", zap.String("conn_id", connID), zap.Error(err))
			return
		}
	}
}

func (g *Gateway) pingLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	t := time.NewTicker(g.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_ping_failed", zap.String("conn_id", connID), zap.Error(err))
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func rateLimited(correlationID string) gamedto.Envelope {
	return gamedto.DomainError{Code: gamedto.CodeRateLimited, Message: "too many requests"}.ErrorFrame(correlationID)
}
