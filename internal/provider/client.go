// Package provider é o cliente HTTP do fornecedor de odds e resultados.
// Falhas (rede, status não-2xx, JSON inválido) viram ErrUpstreamUnavailable;
// não há retry dentro de uma passada, a próxima passada tenta de novo.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRatePerSec = 5
)

// Config parametriza o cliente do fornecedor.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
}

// Client faz GETs limitados por taxa no fornecedor.
type Client struct {
	http    *http.Client
	base    string
	key     string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient cria o cliente. Timeout e taxa zerados usam os padrões (10s, 5 req/s).
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		log:     log,
	}
}

// OddsByDate busca os jogos com odds pré-jogo de uma liga numa data.
func (c *Client) OddsByDate(ctx context.Context, sport Sport, date time.Time) ([]Game, error) {
	return c.get(ctx, sport.oddsURL(c.base, date.Format(DateLayout)))
}

// ScoresByDate busca placares e status dos jogos de uma liga numa data.
func (c *Client) ScoresByDate(ctx context.Context, sport Sport, date time.Time) ([]Game, error) {
	return c.get(ctx, sport.scoresURL(c.base, date.Format(DateLayout)))
}

func (c *Client) get(ctx context.Context, rawURL string) ([]Game, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrUpstreamUnavailable, err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	if c.key != "" {
		q := u.Query()
		q.Set("key", c.key)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%w: provider http %d: %s", domain.ErrUpstreamUnavailable, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out []Game
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode provider response: %w", domain.ErrUpstreamUnavailable, err)
	}

	c.log.Debug("provider request",
		zap.String("path", u.Path),
		zap.Int("games", len(out)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}
