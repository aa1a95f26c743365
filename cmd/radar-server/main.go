package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/phantomscan/phantomscan/internal/alerts"
	"github.com/phantomscan/phantomscan/internal/api"
	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
	"github.com/phantomscan/phantomscan/internal/store"
	"github.com/phantomscan/phantomscan/internal/ws"
)

func main() {
	policyPath := flag.String("policy", "config/policy.yaml", "path to the policy file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("radar-server starting", "policy", *policyPath)

	initial, err := policy.Load(*policyPath)
	if err != nil {
		slog.Error("failed to load policy", "err", err)
		os.Exit(1)
	}

	slog.Info("policy loaded",
		"http_port", initial.Server.HTTPPort,
		"strict", initial.Feed.Strict,
		"store_ttl", initial.Server.StoreTTL,
		"corpus_size", initial.Hallucinations.Size(),
	)

	var current atomic.Pointer[policy.Policy]
	current.Store(initial)
	pol := func() *policy.Policy { return current.Load() }

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Result store with background TTL eviction.
	st := store.New(initial.Server.StoreTTL)
	go st.Run(ctx)

	// Alerts engine — evaluates rules on every stored result.
	alertEngine := alerts.New(initial.Server.Alerts)

	// Watch the policy file for hot-reload.
	go func() {
		if err := policy.Watch(ctx, *policyPath, func(updated *policy.Policy) {
			current.Store(updated)
			slog.Info("policy hot-reloaded",
				"strict", updated.Feed.Strict,
				"corpus_size", updated.Hallucinations.Size())
		}); err != nil {
			slog.Error("policy watcher stopped", "err", err)
		}
	}()

	// WebSocket hub — broadcasts the live feed to dashboard clients.
	hub := ws.New(st, pol, initial.Server.BroadcastInterval)
	go hub.Run(ctx)

	// Combined HTTP server: REST API + metrics + WebSocket hub.
	onScored := func(scored []model.ScoredCandidate) {
		for _, sc := range scored {
			alertEngine.Evaluate(sc)
		}
	}
	apiHandler := api.New(st, pol, onScored)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/metrics", apiHandler)
	httpMux.Handle("/ws/feed", hub)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", initial.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", initial.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("radar-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
