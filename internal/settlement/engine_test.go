package settlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/provider"
	"github.com/radieske/sports-bet-settlement/internal/settlement"
	"github.com/radieske/sports-bet-settlement/internal/store"
	"github.com/radieske/sports-bet-settlement/internal/store/memory"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

var now = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu     sync.Mutex
	odds   map[string][]provider.Game
	scores map[string][]provider.Game
	fail   map[string]bool
	calls  map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		odds:   make(map[string][]provider.Game),
		scores: make(map[string][]provider.Game),
		fail:   make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func key(sp provider.Sport, d time.Time) string {
	return string(sp.Code) + "|" + d.Format(provider.DateLayout)
}

func (f *fakeProvider) OddsByDate(_ context.Context, sp provider.Sport, d time.Time) ([]provider.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(sp, d)
	f.calls["odds|"+k]++
	if f.fail[k] {
		return nil, domain.ErrUpstreamUnavailable
	}
	return f.odds[k], nil
}

func (f *fakeProvider) ScoresByDate(_ context.Context, sp provider.Sport, d time.Time) ([]provider.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(sp, d)
	f.calls["scores|"+k]++
	if f.fail[k] {
		return nil, domain.ErrUpstreamUnavailable
	}
	return f.scores[k], nil
}

type recorder struct {
	mu       sync.Mutex
	ingested []events.GamesIngested
	resolved []events.GameResolved
	settled  []events.BetSettled
}

func (r *recorder) GamesIngested(_ context.Context, e events.GamesIngested) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested = append(r.ingested, e)
	return nil
}

func (r *recorder) GameResolved(_ context.Context, e events.GameResolved) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, e)
	return nil
}

func (r *recorder) BetSettled(_ context.Context, e events.BetSettled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, e)
	return errors.New("broker down") // falha de publicação não pode interromper a passada
}

// flakyStore falha ListPendingByGame as primeiras n vezes.
type flakyStore struct {
	*memory.Store
	mu sync.Mutex
	n  int
}

func (s *flakyStore) Bets() store.BetRepository { return flakyBets{s.Store.Bets(), s} }

type flakyBets struct {
	store.BetRepository
	s *flakyStore
}

func (b flakyBets) ListPendingByGame(ctx context.Context, gameID int64) ([]domain.Bet, error) {
	b.s.mu.Lock()
	if b.s.n > 0 {
		b.s.n--
		b.s.mu.Unlock()
		return nil, domain.Persistence("list pending bets", errors.New("connection reset"))
	}
	b.s.mu.Unlock()
	return b.BetRepository.ListPendingByGame(ctx, gameID)
}

type fixture struct {
	st   *memory.Store
	prov *fakeProvider
	rec  *recorder
	eng  *settlement.Engine
	nba  provider.Sport
	nhl  provider.Sport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New(func() time.Time { return now })
	prov := newFakeProvider()
	rec := &recorder{}
	cat := provider.DefaultCatalog()
	nba, _ := provider.Lookup(cat, "NBA")
	nhl, _ := provider.Lookup(cat, "NHL")
	return &fixture{
		st:   st,
		prov: prov,
		rec:  rec,
		nba:  nba,
		nhl:  nhl,
		eng: &settlement.Engine{
			Store:    st,
			Provider: prov,
			Sports:   []provider.Sport{nba, nhl},
			Events:   rec,
			Now:      func() time.Time { return now },
			Location: time.UTC,
		},
	}
}

func (f *fixture) seedGame(t *testing.T, g domain.Game) {
	t.Helper()
	if g.Sport == "" {
		g.Sport = "NBA"
	}
	if g.ScheduledAt.IsZero() {
		g.ScheduledAt = now.Add(-2 * time.Hour)
	}
	_, err := f.st.Games().UpsertScheduled(context.Background(), g)
	require.NoError(t, err)
}

func (f *fixture) placeBet(t *testing.T, user string, gameID int64, side domain.Side, amount string) domain.Bet {
	t.Helper()
	ctx := context.Background()
	_, err := f.st.Balances().GetOrCreate(ctx, user, dec("1000"))
	require.NoError(t, err)
	b, _, err := f.st.Bets().Place(ctx, domain.Bet{UserID: user, GameID: gameID, Side: side, Amount: dec(amount)})
	require.NoError(t, err)
	return b
}

func (f *fixture) balance(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	b, err := f.st.Balances().GetOrCreate(context.Background(), user, dec("1000"))
	require.NoError(t, err)
	return b.Amount
}

func (f *fixture) finalScore(sp provider.Sport, d time.Time, id int64, home, away int) {
	f.prov.scores[key(sp, d)] = append(f.prov.scores[key(sp, d)], provider.Game{
		GlobalGameID: id, Status: "Final", HomeTeamScore: intp(home), AwayTeamScore: intp(away),
	})
}

func TestIngestOdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prov.odds[key(f.nba, now)] = []provider.Game{
		{
			GlobalGameID: 1, HomeTeamName: "Lakers", AwayTeamName: "Celtics", DateTime: "2024-03-10T23:00:00",
			PregameOdds: []provider.PregameOdds{{HomeMoneyLine: intp(-150), AwayMoneyLine: intp(130)}},
		},
		{GlobalGameID: 2, DateTime: "2024-03-10T23:30:00"},
		{GlobalGameID: 0, DateTime: "2024-03-10T23:30:00"},
		{
			GlobalGameID: 3, DateTime: "2024-03-11T00:00:00",
			PregameOdds: []provider.PregameOdds{
				{Sportsbook: "Empty"},
				{Sportsbook: "Second", HomeMoneyLine: intp(120)},
				{Sportsbook: "Third", HomeMoneyLine: intp(-300), AwayMoneyLine: intp(250)},
			},
		},
	}
	f.prov.fail[key(f.nhl, now)] = true

	rep, err := f.eng.IngestOdds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Upserted)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []domain.Sport{"NHL"}, rep.FailedSports)

	g1, err := f.st.Games().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Lakers", g1.HomeTeam)
	require.NotNil(t, g1.HomeOdds)
	assert.Equal(t, -150, *g1.HomeOdds)
	assert.False(t, g1.Winner.Decided())

	g2, err := f.st.Games().Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", g2.HomeTeam)
	assert.Nil(t, g2.HomeOdds)
	assert.Nil(t, g2.AwayOdds)

	// a primeira linha vazia é pulada; a segunda vale mesmo só com um lado
	g3, err := f.st.Games().Get(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, g3.HomeOdds)
	assert.Equal(t, 120, *g3.HomeOdds)
	assert.Nil(t, g3.AwayOdds)

	require.Len(t, f.rec.ingested, 1)
	assert.Equal(t, "NBA", f.rec.ingested[0].Sport)
}

func TestIngestOdds_DoesNotOverwriteDecidedGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, HomeTeam: "A", AwayTeam: "B", HomeOdds: intp(-150), AwayOdds: intp(130)})

	applied, err := f.st.Games().MarkFinished(ctx, domain.Resolution{GameID: 1, Winner: domain.WinnerHome, FinishedAt: now})
	require.NoError(t, err)
	require.True(t, applied)

	f.prov.odds[key(f.nba, now)] = []provider.Game{{
		GlobalGameID: 1, HomeTeamName: "A", AwayTeamName: "B", DateTime: "2024-03-10T18:00:00",
		PregameOdds: []provider.PregameOdds{{HomeMoneyLine: intp(500), AwayMoneyLine: intp(-900)}},
	}}

	rep, err := f.eng.IngestOdds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Upserted)
	assert.Equal(t, 1, rep.Skipped)

	g, err := f.st.Games().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.WinnerHome, g.Winner)
	assert.Equal(t, -150, *g.HomeOdds)
}

func TestResolvePending_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, HomeTeam: "A", AwayTeam: "B", HomeOdds: intp(-150), AwayOdds: intp(130)})
	bet := f.placeBet(t, "u1", 1, domain.SideAway, "100")
	loser := f.placeBet(t, "u2", 1, domain.SideHome, "50")
	assert.True(t, dec("900").Equal(f.balance(t, "u1")))

	f.finalScore(f.nba, now, 1, 98, 104)

	rep, err := f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)
	assert.Equal(t, 1, rep.Settle.Won)
	assert.Equal(t, 1, rep.Settle.Lost)

	g, err := f.st.Games().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.WinnerAway, g.Winner)
	assert.Equal(t, domain.GameFinished, g.Status)
	require.NotNil(t, g.FinishedAt)

	won, err := f.st.Bets().Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetWon, won.Status)
	assert.True(t, dec("230").Equal(won.Payout.Decimal))
	assert.True(t, dec("1130").Equal(f.balance(t, "u1")))

	lost, err := f.st.Bets().Get(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetLost, lost.Status)
	assert.True(t, dec("950").Equal(f.balance(t, "u2")))

	require.Len(t, f.rec.resolved, 1)
	assert.Equal(t, "away", f.rec.resolved[0].Winner)
	assert.Len(t, f.rec.settled, 2)
}

func TestResolvePending_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, HomeOdds: intp(-150), AwayOdds: intp(130)})
	f.placeBet(t, "u1", 1, domain.SideAway, "100")
	f.finalScore(f.nba, now, 1, 1, 2)

	_, err := f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	first := f.balance(t, "u1")

	rep, err := f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Checked)
	assert.Equal(t, 0, rep.Settle.Applied())

	// liquidar de novo o mesmo jogo é no-op
	sr, err := f.eng.SettleGame(ctx, 1, domain.WinnerAway)
	require.NoError(t, err)
	assert.Equal(t, 0, sr.Applied())

	assert.True(t, first.Equal(f.balance(t, "u1")))
	assert.Len(t, f.st.Ledger("u1"), 2) // DEBIT + PAYOUT
}

func TestResolvePending_TieIsDecided(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, HomeOdds: intp(-150), AwayOdds: intp(130)})
	f.seedGame(t, domain.Game{ID: 2, HomeOdds: intp(110), AwayOdds: intp(-130)})
	bet := f.placeBet(t, "u1", 1, domain.SideHome, "40")
	f.finalScore(f.nba, now, 1, 3, 3)

	rep, err := f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)
	assert.Equal(t, 1, rep.Pending)
	assert.Equal(t, 1, rep.Settle.Pushed)

	pushed, err := f.st.Bets().Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetPushed, pushed.Status)
	assert.True(t, dec("1000").Equal(f.balance(t, "u1")))

	undecided, err := f.st.Games().ListUndecided(ctx)
	require.NoError(t, err)
	require.Len(t, undecided, 1)
	assert.Equal(t, int64(2), undecided[0].ID)

	tie, err := f.st.Games().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.WinnerTie, tie.Winner)
	assert.True(t, tie.Winner.Decided())

	// uma segunda passada não volta a reembolsar o empate
	_, err = f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(f.balance(t, "u1")))
}

func TestResolvePending_CandidateDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, ScheduledAt: now.Add(-26 * time.Hour)})
	f.seedGame(t, domain.Game{ID: 2, ScheduledAt: now.Add(-1 * time.Hour)})
	f.seedGame(t, domain.Game{ID: 3, ScheduledAt: now.Add(-1 * time.Hour)})

	yesterday := now.AddDate(0, 0, -1)
	f.prov.fail[key(f.nba, now)] = true
	f.finalScore(f.nba, yesterday, 1, 100, 90)
	f.prov.scores[key(f.nba, yesterday)] = append(f.prov.scores[key(f.nba, yesterday)],
		provider.Game{GlobalGameID: 2, Status: "InProgress", HomeTeamScore: intp(50), AwayTeamScore: intp(40)})

	rep, err := f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)
	assert.Equal(t, 2, rep.Pending)

	g1, err := f.st.Games().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.WinnerHome, g1.Winner)

	g2, err := f.st.Games().Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, g2.Winner.Decided())

	// respostas reaproveitadas dentro da passada
	assert.Equal(t, 1, f.prov.calls["scores|"+key(f.nba, now)])
	assert.Equal(t, 1, f.prov.calls["scores|"+key(f.nba, yesterday)])
	assert.Equal(t, 1, f.prov.calls["scores|"+key(f.nba, now.AddDate(0, 0, -2))])
}

func TestSettleGame_ConcurrentPassesCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, HomeOdds: intp(150), AwayOdds: intp(-170)})
	f.placeBet(t, "u1", 1, domain.SideHome, "100")
	_, err := f.st.Games().MarkFinished(ctx, domain.Resolution{GameID: 1, Winner: domain.WinnerHome, FinishedAt: now})
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]settlement.SettleReport, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], _ = f.eng.SettleGame(ctx, 1, domain.WinnerHome)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, r := range reports {
		won += r.Won
	}
	assert.Equal(t, 1, won)
	assert.True(t, dec("1150").Equal(f.balance(t, "u1")))

	payouts := 0
	for _, e := range f.st.Ledger("u1") {
		if e.Op == domain.LedgerPayout {
			payouts++
		}
	}
	assert.Equal(t, 1, payouts)
}

func TestSettleGame_RejectsUndecided(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.SettleGame(context.Background(), 1, domain.WinnerUndecided)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestRetireFinished_KeepsReferencedGames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := now.Add(-8 * 24 * time.Hour)

	f.seedGame(t, domain.Game{ID: 1, ScheduledAt: old})
	f.seedGame(t, domain.Game{ID: 2, ScheduledAt: old})
	f.seedGame(t, domain.Game{ID: 3, ScheduledAt: now.Add(-time.Hour)})
	f.placeBet(t, "u1", 1, domain.SideHome, "10")

	for _, id := range []int64{1, 2} {
		_, err := f.st.Games().MarkFinished(ctx, domain.Resolution{GameID: id, Winner: domain.WinnerAway, FinishedAt: old})
		require.NoError(t, err)
	}
	_, err := f.st.Games().MarkFinished(ctx, domain.Resolution{GameID: 3, Winner: domain.WinnerAway, FinishedAt: now})
	require.NoError(t, err)

	rep, err := f.eng.RetireFinished(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, 1, rep.Kept)

	_, err = f.st.Games().Get(ctx, 1)
	assert.NoError(t, err)
	_, err = f.st.Games().Get(ctx, 2)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = f.st.Games().Get(ctx, 3)
	assert.NoError(t, err)
}

func TestForceRetireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := now.Add(-72 * time.Hour)

	f.seedGame(t, domain.Game{ID: 1, ScheduledAt: stale})
	f.seedGame(t, domain.Game{ID: 2, ScheduledAt: stale, HomeOdds: intp(100), AwayOdds: intp(100)})
	f.seedGame(t, domain.Game{ID: 3, ScheduledAt: now.Add(-time.Hour)})
	// a aposta é colocada enquanto o jogo ainda é recente
	bet := f.placeBet(t, "u1", 2, domain.SideAway, "75")

	rep, err := f.eng.ForceRetireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, 1, rep.Canceled)
	assert.Equal(t, 1, rep.Refunded)

	_, err = f.st.Games().Get(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	g2, err := f.st.Games().Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, g2.AutoCanceled)
	assert.Equal(t, domain.WinnerTie, g2.Winner)
	assert.Equal(t, domain.GameFinished, g2.Status)

	refunded, err := f.st.Bets().Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetRefunded, refunded.Status)
	assert.True(t, dec("1000").Equal(f.balance(t, "u1")))

	g3, err := f.st.Games().Get(ctx, 3)
	require.NoError(t, err)
	assert.False(t, g3.Winner.Decided())

	// segunda execução não encontra mais nada
	rep, err = f.eng.ForceRetireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, settlement.RetireReport{}, rep)
}

func TestResolvePending_ResumesInterruptedSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, HomeOdds: intp(-150), AwayOdds: intp(130)})
	bet := f.placeBet(t, "u1", 1, domain.SideAway, "100")
	f.finalScore(f.nba, now, 1, 98, 104)

	// falha na liquidação logo após o resultado e na retomada da mesma passada
	flaky := &flakyStore{Store: f.st, n: 2}
	f.eng.Store = flaky

	rep, err := f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)
	assert.Equal(t, 0, rep.Resumed)
	assert.Equal(t, 0, rep.Settle.Applied())

	pending, err := f.st.Bets().Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetPending, pending.Status)
	assert.True(t, dec("900").Equal(f.balance(t, "u1")))

	rep, err = f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Checked)
	assert.Equal(t, 1, rep.Resumed)
	assert.Equal(t, 1, rep.Settle.Won)

	won, err := f.st.Bets().Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetWon, won.Status)
	assert.True(t, dec("1130").Equal(f.balance(t, "u1")))

	// nada mais a retomar
	rep, err = f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Resumed)
	assert.Equal(t, 0, rep.Settle.Applied())
	assert.Len(t, f.st.Ledger("u1"), 2)
}

func TestResolvePending_ResumesCanceledGameAsRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGame(t, domain.Game{ID: 1, ScheduledAt: now.Add(-72 * time.Hour), HomeOdds: intp(100), AwayOdds: intp(100)})
	bet := f.placeBet(t, "u1", 1, domain.SideHome, "75")

	f.eng.Store = &flakyStore{Store: f.st, n: 1}

	rr, err := f.eng.ForceRetireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rr.Canceled)
	assert.Equal(t, 0, rr.Refunded)

	pending, err := f.st.Bets().Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetPending, pending.Status)

	rep, err := f.eng.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resumed)
	assert.Equal(t, 1, rep.Settle.Refunded)
	assert.Equal(t, 0, rep.Settle.Pushed)

	refunded, err := f.st.Bets().Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetRefunded, refunded.Status)
	assert.True(t, dec("1000").Equal(f.balance(t, "u1")))

	ledger := f.st.Ledger("u1")
	require.Len(t, ledger, 2)
	assert.Equal(t, domain.LedgerRefund, ledger[1].Op)
}

func TestFullPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prov.odds[key(f.nba, now)] = []provider.Game{{
		GlobalGameID: 9, HomeTeamName: "A", AwayTeamName: "B", DateTime: "2024-03-10T15:00:00",
		PregameOdds: []provider.PregameOdds{{HomeMoneyLine: intp(-200), AwayMoneyLine: intp(170)}},
	}}
	require.NoError(t, f.eng.FullPass(ctx))

	f.placeBet(t, "u1", 9, domain.SideHome, "50")
	f.finalScore(f.nba, now, 9, 110, 100)
	require.NoError(t, f.eng.ResolvePass(ctx))

	assert.True(t, dec("1025").Equal(f.balance(t, "u1")))
}
