// Command gateway runs the pay-per-request agent gateway: an A2A JSON-RPC
// surface and a REST x402 surface over a shared payment state machine.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/config"
	"github.com/agentmesh/x402-gateway/internal/engine"
	"github.com/agentmesh/x402-gateway/internal/executor"
	"github.com/agentmesh/x402-gateway/internal/facilitator"
	"github.com/agentmesh/x402-gateway/internal/server"
	"github.com/agentmesh/x402-gateway/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	st := store.NewState()
	persister := &store.Persister{Path: cfg.SnapshotFile, Log: log}
	persister.Load(st)

	var fac facilitator.Facilitator
	if cfg.FacilitatorURL != "" {
		fac = facilitator.NewRemote(facilitator.RemoteConfig{URL: cfg.FacilitatorURL})
		log.Info("using remote facilitator", "url", cfg.FacilitatorURL)
	} else {
		fac = &facilitator.Local{}
	}

	builder := &catalog.Builder{PayTo: cfg.PayTo, FacilitatorURL: cfg.FacilitatorURL}
	executors := executor.NewRegistry(cfg, log)
	eng := engine.New(st, builder, executors, fac, cfg.ExecutorTimeout, log)
	srv := server.New(cfg, eng, log, st.StartedAt)

	done := make(chan struct{})
	persisterDone := make(chan struct{})
	go func() {
		persister.Run(done, cfg.SnapshotInterval, st)
		close(persisterDone)
	}()

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("gateway listening",
			"port", cfg.Port,
			"publicUrl", cfg.PublicURL,
			"payTo", cfg.PayTo)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}
	close(done)
	<-persisterDone
	log.Info("goodbye")
}
