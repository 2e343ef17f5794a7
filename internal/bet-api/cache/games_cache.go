package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

// DefaultTTL da lista de jogos em cache.
const DefaultTTL = 30 * time.Second

const keyGames = "games:undecided"

// GamesCache guarda a resposta de GET /games no Redis.
type GamesCache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *GamesCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &GamesCache{R: r, TTL: ttl}
}

// Get devolve (jogos, true) em cache hit.
func (c *GamesCache) Get(ctx context.Context) ([]domain.Game, bool, error) {
	b, err := c.R.Get(ctx, keyGames).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var games []domain.Game
	if err := json.Unmarshal(b, &games); err != nil {
		return nil, false, err
	}
	return games, true, nil
}

func (c *GamesCache) Set(ctx context.Context, games []domain.Game) error {
	b, err := json.Marshal(games)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyGames, b, c.TTL).Err()
}

// Invalidate apaga a lista; chamado quando jogos são ingeridos ou resolvidos.
func (c *GamesCache) Invalidate(ctx context.Context) error {
	return c.R.Del(ctx, keyGames).Err()
}
