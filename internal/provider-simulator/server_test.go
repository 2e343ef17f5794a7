package simulator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/provider"
	simulator "github.com/radieske/sports-bet-settlement/internal/provider-simulator"
	"github.com/radieske/sports-bet-settlement/internal/settlement"
	"github.com/radieske/sports-bet-settlement/internal/store/memory"
)

// 20:00 UTC: jogos das 13h, 15h e 17h já terminaram; o das 19h está em andamento.
var now = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

type requestLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *requestLog) observe(sport, kind string, status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, sport+"/"+kind)
}

func newSimulator(t *testing.T, key string) (*httptest.Server, *requestLog) {
	t.Helper()
	rl := &requestLog{}
	sim := &simulator.Simulator{
		Sports:    provider.DefaultCatalog(),
		APIKey:    key,
		Location:  time.UTC,
		Now:       func() time.Time { return now },
		OnRequest: rl.observe,
	}
	srv := httptest.NewServer(sim.Router())
	t.Cleanup(srv.Close)
	return srv, rl
}

func sport(t *testing.T, code domain.Sport) provider.Sport {
	t.Helper()
	sp, ok := provider.Lookup(provider.DefaultCatalog(), code)
	require.True(t, ok)
	return sp
}

func TestOdds_Deterministic(t *testing.T) {
	srv, rl := newSimulator(t, "")
	c := provider.NewClient(provider.Config{BaseURL: srv.URL, RatePerSec: 100}, nil)
	ctx := context.Background()

	first, err := c.OddsByDate(ctx, sport(t, "NBA"), now)
	require.NoError(t, err)
	require.Len(t, first, 4)
	second, err := c.OddsByDate(ctx, sport(t, "NBA"), now)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, g := range first {
		home, _ := g.Odds()
		assert.NotNil(t, home)
		_, ok := g.ScheduledAt(time.UTC)
		assert.True(t, ok)
	}

	nhl, err := c.OddsByDate(ctx, sport(t, "NHL"), now)
	require.NoError(t, err)
	yesterday, err := c.OddsByDate(ctx, sport(t, "NBA"), now.AddDate(0, 0, -1))
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, g := range append(append(first, nhl...), yesterday...) {
		assert.False(t, seen[g.ID()], "duplicate id %d", g.ID())
		seen[g.ID()] = true
	}

	assert.Len(t, rl.calls, 4)
	assert.Equal(t, "NBA/odds", rl.calls[0])
}

func TestScores_FollowClock(t *testing.T) {
	srv, _ := newSimulator(t, "")
	c := provider.NewClient(provider.Config{BaseURL: srv.URL, RatePerSec: 100}, nil)

	for _, code := range []domain.Sport{"NBA", "MLB", "NFL"} {
		games, err := c.ScoresByDate(context.Background(), sport(t, code), now)
		require.NoError(t, err)
		require.Len(t, games, 4)

		final := 0
		for _, g := range games {
			home, away := g.Scores()
			if provider.IsFinal(g.Status) {
				final++
				assert.NotNil(t, home, "%s game %d", code, g.ID())
				assert.NotNil(t, away)
			} else {
				assert.Nil(t, home)
			}
		}
		assert.Equal(t, 3, final, code)
	}
}

func TestAPIKey(t *testing.T) {
	srv, _ := newSimulator(t, "k1")

	bad := provider.NewClient(provider.Config{BaseURL: srv.URL, APIKey: "nope", RatePerSec: 100}, nil)
	_, err := bad.OddsByDate(context.Background(), sport(t, "NBA"), now)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	good := provider.NewClient(provider.Config{BaseURL: srv.URL, APIKey: "k1", RatePerSec: 100}, nil)
	_, err = good.OddsByDate(context.Background(), sport(t, "NBA"), now)
	assert.NoError(t, err)

	res, err := http.Get(srv.URL + "/nba/odds/json/GameOddsByDate/2024-03-10")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestBadDate(t *testing.T) {
	srv, _ := newSimulator(t, "")
	res, err := http.Get(srv.URL + "/nba/odds/json/GameOddsByDate/10-03-2024")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestEngineAgainstSimulator(t *testing.T) {
	srv, _ := newSimulator(t, "")
	st := memory.New(func() time.Time { return now })
	eng := &settlement.Engine{
		Store:    st,
		Provider: provider.NewClient(provider.Config{BaseURL: srv.URL, RatePerSec: 100}, nil),
		Sports:   []provider.Sport{sport(t, "NBA")},
		Now:      func() time.Time { return now },
		Location: time.UTC,
	}
	ctx := context.Background()

	ing, err := eng.IngestOdds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, ing.Upserted)

	rep, err := eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Checked)
	assert.Equal(t, 3, rep.Resolved)
	assert.Equal(t, 1, rep.Pending)

	open, err := st.Games().ListUndecided(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}
