package main

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
)

var proxied = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_requests_total",
	Help: "requisições por rota e status",
}, []string{"route", "status"})

func rp(to string, log *zap.Logger) *httputil.ReverseProxy {
	u, err := url.Parse(to)
	if err != nil {
		log.Fatal("invalid upstream url", zap.String("url", to), zap.Error(err))
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	return p
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

	prometheus.MustRegister(proxied)
	bet := rp(cfg.BetAPIURL, log)

	mux := http.NewServeMux()

	// bet-api (ex.: /api/place-bet -> bet-api /place-bet)
	mux.Handle("/api/", counted("api", http.StripPrefix("/api", bet)))

	// WebSocket passa direto; o ReverseProxy trata o upgrade
	mux.Handle("/ws", counted("ws", bet))

	// Cliente web estático, quando configurado
	if cfg.StaticDir != "" {
		mux.Handle("/", counted("static", http.FileServer(http.Dir(cfg.StaticDir))))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsPort, nil, log) })
	g.Go(func() error {
		srv := &http.Server{
			Addr:              ":" + cfg.HTTPPort,
			Handler:           withCORS(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		return metrics.ListenAndShutdown(gctx, srv, log)
	})

	log.Info("api-gateway listening", zap.String("port", cfg.HTTPPort), zap.String("bet_api", cfg.BetAPIURL))
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap permite ao ResponseController achar o Hijacker no upgrade do WebSocket.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func counted(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		proxied.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-user-id, X-Admin-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
