package admin

import (
	"encoding/json"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/kapu/rollhouse-backend-go/internal/obslog"
)

// Server is the operations listener: /healthz, /stats, /metrics. It is
// never exposed to players.
type Server struct {
	addr    string
	started time.Time
	metrics fasthttp.RequestHandler
	srv     *fasthttp.Server
}

func New(addr string, reg *prometheus.Registry) *Server {
	s := &Server{
		addr:    addr,
		started: time.Now(),
		metrics: fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		),
	}
	s.srv = &fasthttp.Server{
		Handler:      s.route,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves in the background and only logs listener failures; a dead
// admin port must not take the game down.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(s.addr); err != nil {
			obslog.L().Error("admin_listen_failed", zap.String("addr", s.addr), zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/stats":
		s.handleStats(ctx)
	case "/metrics":
		s.metrics(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleStats(ctx *fasthttp.RequestCtx) {
	body, err := json.Marshal(map[string]any{
		"uptime_sec": int64(time.Since(s.started).Seconds()),
		"goroutines": runtime.NumGoroutine(),
	})
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
