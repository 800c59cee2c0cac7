package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/rollhouse-backend-go/internal/admin"
	"github.com/kapu/rollhouse-backend-go/internal/auth"
	appcfg "github.com/kapu/rollhouse-backend-go/internal/config"
	"github.com/kapu/rollhouse-backend-go/internal/dispatch"
	"github.com/kapu/rollhouse-backend-go/internal/gift"
	"github.com/kapu/rollhouse-backend-go/internal/metrics"
	"github.com/kapu/rollhouse-backend-go/internal/obslog"
	"github.com/kapu/rollhouse-backend-go/internal/presence"
	"github.com/kapu/rollhouse-backend-go/internal/registry"
	"github.com/kapu/rollhouse-backend-go/internal/wsgate"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	defer obslog.Sync()

	met := metrics.New()

	pres, err := presence.New(cfg.RedisURL, cfg.PresenceTTL)
	if err != nil {
		log.Fatalf("presence init error: %v", err)
	}
	if pres != nil {
		defer pres.Close()
	}

	reg := registry.New(cfg.BindLockWait)
	gate := auth.NewGate(reg, cfg.BindLockWait)
	gifts := gift.NewEngine(reg, met)
	disp := dispatch.New(gate, reg, gifts, met, pres, cfg.UnbindLockWait)
	gw := wsgate.New(disp, met, cfg)

	adminSrv := admin.New(cfg.AdminAddr, met.Registry())
	adminSrv.Start()

	mux := http.NewServeMux()
	mux.Handle("/ws", gw.Handler())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("listen failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = srv.Shutdown(shCtx)
	cancel()
	_ = adminSrv.Shutdown()
}
