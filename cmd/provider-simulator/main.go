package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-settlement/internal/provider"
	simulator "github.com/radieske/sports-bet-settlement/internal/provider-simulator"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("provider timezone", zap.Error(err))
	}
	sports, err := provider.LoadCatalog(cfg.SportsConfig)
	if err != nil {
		log.Fatal("sports catalog", zap.Error(err))
	}

	// Métricas Prometheus das requisições servidas
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_sim_requests_total",
		Help: "requisições servidas por liga, tipo e status",
	}, []string{"sport", "kind", "status"})
	prometheus.MustRegister(requests)

	sim := &simulator.Simulator{
		Sports:   sports,
		APIKey:   cfg.ProviderAPIKey,
		Location: loc,
		Log:      log,
		OnRequest: func(sport, kind string, status int) {
			requests.WithLabelValues(sport, kind, strconv.Itoa(status)).Inc()
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsPort, nil, log) })
	g.Go(func() error {
		srv := &http.Server{
			Addr:              ":" + cfg.HTTPPort,
			Handler:           sim.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		return metrics.ListenAndShutdown(gctx, srv, log)
	})

	log.Info("provider simulator running", zap.Int("sports", len(sports)), zap.String("timezone", loc.String()))
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("provider simulator stopped with error", zap.Error(err))
	}
}
