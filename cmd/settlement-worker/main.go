package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-settlement/internal/provider"
	"github.com/radieske/sports-bet-settlement/internal/scheduler"
	"github.com/radieske/sports-bet-settlement/internal/settlement"
	"github.com/radieske/sports-bet-settlement/internal/settlement/publisher"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/db"
	skafka "github.com/radieske/sports-bet-settlement/internal/shared/kafka"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("provider timezone", zap.Error(err))
	}
	sports, err := provider.LoadCatalog(cfg.SportsConfig)
	if err != nil {
		log.Fatal("sports catalog", zap.Error(err))
	}

	st, err := db.OpenStore(ctx, cfg.StoreDriver, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("store open", zap.Error(err), zap.String("driver", cfg.StoreDriver))
	}
	defer st.Close()

	// Métricas Prometheus do motor
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_games_ingested_total", Help: "jogos gravados por liga"}, []string{"sport"})
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_games_resolved_total", Help: "jogos resolvidos por vencedor"}, []string{"winner"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_settled_total", Help: "apostas liquidadas por status"}, []string{"status"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "erros por estágio"}, []string{"stage"})
	passDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_pass_duration_seconds",
		Help:    "duração das passadas do motor",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"task", "result"})
	prometheus.MustRegister(ingested, resolved, settled, errorsBy, passDur)

	eng := &settlement.Engine{
		Store: st,
		Provider: provider.NewClient(provider.Config{
			BaseURL:    cfg.ProviderBaseURL,
			APIKey:     cfg.ProviderAPIKey,
			Timeout:    cfg.ProviderTimeout,
			RatePerSec: cfg.ProviderRatePerSec,
		}, log),
		Sports:     sports,
		Log:        log,
		Location:   loc,
		Retention:  cfg.RetentionWindow,
		Staleness:  cfg.StaleWindow,
		OnIngested: func(sport string, n int) { ingested.WithLabelValues(sport).Add(float64(n)) },
		OnResolved: func(winner string) { resolved.WithLabelValues(winner).Inc() },
		OnSettled:  func(status string) { settled.WithLabelValues(status).Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Eventos são opcionais: sem brokers o motor roda sem publicar
	if brokers := skafka.Brokers(cfg.KafkaBrokers); len(brokers) > 0 {
		if cfg.Env == "local" || cfg.Env == "dev" {
			tctx, tcancel := context.WithTimeout(ctx, 10*time.Second)
			if err := skafka.EnsureTopics(tctx, brokers, log, cfg.TopicGamesIngested, cfg.TopicGamesResolved, cfg.TopicBetsSettled); err != nil {
				log.Warn("ensure topics failed", zap.Error(err))
			}
			tcancel()
		}
		pub := publisher.NewKafkaPublisher(brokers, publisher.Topics{
			GamesIngested: cfg.TopicGamesIngested,
			GamesResolved: cfg.TopicGamesResolved,
			BetsSettled:   cfg.TopicBetsSettled,
		}, log)
		defer pub.Close()
		eng.Events = pub
	}

	sched := &scheduler.Scheduler{
		Log: log,
		Tasks: []scheduler.Task{
			{Name: "full_pass", Interval: cfg.FullPassInterval, Run: eng.FullPass},
			{Name: "resolve_pass", Interval: cfg.ResolveInterval, Run: eng.ResolvePass},
		},
		OnRun: func(task string, took time.Duration, err error) {
			result := "ok"
			if err != nil {
				result = "error"
			}
			passDur.WithLabelValues(task, result).Observe(took.Seconds())
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsPort, st.Ping, log) })
	g.Go(func() error { return sched.Run(gctx) })

	log.Info("settlement-worker started",
		zap.Int("sports", len(sports)),
		zap.Duration("full_pass_interval", cfg.FullPassInterval),
		zap.Duration("resolve_interval", cfg.ResolveInterval),
	)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("settlement-worker stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}
