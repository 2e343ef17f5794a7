package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-settlement/internal/bet-api/cache"
	"github.com/radieske/sports-bet-settlement/internal/bet-api/consumer"
	httpapi "github.com/radieske/sports-bet-settlement/internal/bet-api/http"
	"github.com/radieske/sports-bet-settlement/internal/bet-api/ws"
	"github.com/radieske/sports-bet-settlement/internal/settlement/publisher"
	sharedcache "github.com/radieske/sports-bet-settlement/internal/shared/cache"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/db"
	skafka "github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
	"github.com/radieske/sports-bet-settlement/internal/store"
)

const storeRetryInterval = 3 * time.Second

// localBroadcaster entrega direto no hub quando não há Redis (instância única).
type localBroadcaster struct{ hub *ws.Hub }

func (b localBroadcaster) Publish(_ context.Context, u ws.Update) error {
	b.hub.Broadcast(u)
	return nil
}

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

	// Métricas Prometheus da API
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_api_bets_placed_total", Help: "apostas aceitas por liga"}, []string{"sport"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_api_events_consumed_total", Help: "eventos consumidos por tópico"}, []string{"topic"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_api_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(placed, consumed, errorsBy)

	api := &httpapi.Server{
		Log:             log,
		Gate:            store.NewGate(),
		UserHeader:      cfg.UserHeader,
		AdminToken:      cfg.AdminToken,
		StartingBalance: cfg.StartingBalance,
		StaleWindow:     cfg.StaleWindow,
		OnPlaced:        func(sport string) { placed.WithLabelValues(sport).Inc() },
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, admin endpoint is open")
	}

	hub := ws.NewHub(func(*http.Request) bool { return true }, api.IdentifyStream, log)
	api.Hub = hub

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, running without cache and pub/sub", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var gamesCache *cache.GamesCache
	var bcast consumer.Broadcaster = localBroadcaster{hub: hub}
	if rdb != nil {
		gamesCache = cache.New(rdb, 0)
		api.Cache = gamesCache
		bcast = ws.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Kafka: eventos do cancelamento administrativo e consumo das atualizações do motor
	if brokers := skafka.Brokers(cfg.KafkaBrokers); len(brokers) > 0 {
		pub := publisher.NewKafkaPublisher(brokers, publisher.Topics{
			GamesIngested: cfg.TopicGamesIngested,
			GamesResolved: cfg.TopicGamesResolved,
			BetsSettled:   cfg.TopicBetsSettled,
		}, log)
		defer pub.Close()
		api.Events = pub

		reader := skafka.NewReader(brokers, "bet-api", cfg.TopicGamesIngested, cfg.TopicGamesResolved, cfg.TopicBetsSettled)
		defer reader.Close()

		proc := &consumer.Processor{
			Log:         log,
			Reader:      reader,
			Broadcaster: bcast,
			OnConsumed:  func(topic string) { consumed.WithLabelValues(topic).Inc() },
			OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
		}
		if gamesCache != nil {
			proc.Cache = gamesCache
		}
		g.Go(func() error {
			if err := proc.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if rdb != nil {
		g.Go(func() error {
			if err := ws.RunRedisSubscriber(gctx, rdb, cfg.RedisPubSubChannel, hub, log); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	// Store abre em segundo plano; até lá as rotas respondem 503
	g.Go(func() error {
		for attempt := 1; ; attempt++ {
			st, err := db.OpenStore(gctx, cfg.StoreDriver, cfg.PostgresDSN)
			if err == nil {
				api.Gate.Open(st)
				log.Info("store ready", zap.String("driver", cfg.StoreDriver), zap.Int("attempt", attempt))
				return nil
			}
			log.Warn("store not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(storeRetryInterval):
			}
		}
	})

	g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsPort, api.Gate.Ping, log) })
	g.Go(func() error {
		srv := &http.Server{
			Addr:              ":" + cfg.HTTPPort,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		return metrics.ListenAndShutdown(gctx, srv, log)
	})

	log.Info("bet-api started", zap.String("port", cfg.HTTPPort))
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("bet-api stopped with error", zap.Error(err))
	}

	if api.Gate.Ready() {
		if st, err := api.Gate.Wait(context.Background()); err == nil {
			_ = st.Close()
		}
	}
	log.Info("bet-api stopped")
}
