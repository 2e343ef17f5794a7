package settlement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/provider"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

// ResolveReport resume uma passada de resolução.
type ResolveReport struct {
	Checked  int
	Resolved int
	Handled  int // já decididos por outra passada entre a leitura e a escrita
	Pending  int // não encontrados ou ainda não finais
	Resumed  int // jogos decididos em passadas anteriores com apostas ainda pending
	Settle   SettleReport
	Retire   RetireReport
}

// scoreboard guarda as respostas de placar por liga+data dentro de uma passada,
// para não repetir a mesma chamada para cada jogo.
type scoreboard struct {
	e       *Engine
	fetched map[string][]provider.Game
	failed  map[string]bool
}

func (s *scoreboard) find(ctx context.Context, sp provider.Sport, gameID int64) (provider.Game, bool) {
	for _, d := range s.e.candidateDates() {
		date := d.Format(provider.DateLayout)
		key := string(sp.Code) + "|" + date
		if s.failed[key] {
			continue
		}
		games, ok := s.fetched[key]
		if !ok {
			var err error
			games, err = s.e.Provider.ScoresByDate(ctx, sp, d)
			if err != nil {
				s.e.log().Warn("scores fetch failed",
					zap.String("sport", string(sp.Code)), zap.String("date", date), zap.Error(err))
				s.e.fail("resolve_fetch")
				s.failed[key] = true
				continue
			}
			s.fetched[key] = games
		}
		for _, g := range games {
			if g.ID() == gameID {
				return g, true
			}
		}
	}
	return provider.Game{}, false
}

// ResolvePending procura resultado para cada jogo sem vencedor. Quando o jogo
// está final, grava o vencedor com escrita condicional e, só se ela aplicou,
// liquida as apostas do jogo. No fim roda a aposentadoria de jogos antigos.
func (e *Engine) ResolvePending(ctx context.Context) (ResolveReport, error) {
	var rep ResolveReport

	games, err := e.Store.Games().ListUndecided(ctx)
	if err != nil {
		e.fail("resolve_list")
		return rep, fmt.Errorf("list undecided games: %w", err)
	}

	board := &scoreboard{e: e, fetched: make(map[string][]provider.Game), failed: make(map[string]bool)}
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Checked++
		log := e.log().With(zap.Int64("game_id", g.ID), zap.String("sport", string(g.Sport)))

		sp, ok := provider.Lookup(e.Sports, g.Sport)
		if !ok {
			log.Warn("no provider endpoint for sport")
			rep.Pending++
			continue
		}

		pg, found := board.find(ctx, sp, g.ID)
		if !found || !provider.IsFinal(pg.Status) {
			rep.Pending++
			continue
		}
		home, away := pg.Scores()
		if home == nil || away == nil {
			log.Warn("final game without scores", zap.String("status", pg.Status))
			rep.Pending++
			continue
		}

		res := domain.Resolution{
			GameID:     g.ID,
			Winner:     domain.WinnerFromScores(*home, *away),
			HomeScore:  home,
			AwayScore:  away,
			FinishedAt: e.now().UTC(),
		}
		applied, err := e.Store.Games().MarkFinished(ctx, res)
		if err != nil {
			log.Warn("mark finished failed", zap.Error(err))
			e.fail("resolve_mark")
			continue
		}
		if !applied {
			log.Info("game already resolved by another pass")
			rep.Handled++
			continue
		}

		rep.Resolved++
		if e.OnResolved != nil {
			e.OnResolved(string(res.Winner))
		}
		log.Info("game resolved", zap.String("winner", string(res.Winner)), zap.Int("home_score", *home), zap.Int("away_score", *away))
		e.publishResolved(ctx, g, res, false)

		sr, err := e.SettleGame(ctx, g.ID, res.Winner)
		rep.Settle.add(sr)
		if err != nil {
			log.Warn("settle game failed", zap.Error(err))
			e.fail("settle")
		}
	}

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	e.resumeSettlement(ctx, &rep)

	rr, err := e.RetireFinished(ctx)
	rep.Retire = rr
	if err != nil {
		e.log().Warn("retire finished games failed", zap.Error(err))
	}

	e.log().Info("resolution pass done",
		zap.Int("checked", rep.Checked),
		zap.Int("resolved", rep.Resolved),
		zap.Int("already_handled", rep.Handled),
		zap.Int("pending", rep.Pending),
		zap.Int("resumed", rep.Resumed),
		zap.Int("bets_settled", rep.Settle.Applied()),
		zap.Int("games_deleted", rep.Retire.Deleted),
	)
	return rep, nil
}

// resumeSettlement retoma jogos cujo vencedor já foi gravado mas cuja
// liquidação falhou no meio. Jogos auto-cancelados voltam pelo reembolso.
func (e *Engine) resumeSettlement(ctx context.Context, rep *ResolveReport) {
	games, err := e.Store.Games().ListDecidedWithPendingBets(ctx)
	if err != nil {
		e.log().Warn("list decided games with pending bets failed", zap.Error(err))
		e.fail("resume_list")
		return
	}
	for _, g := range games {
		if ctx.Err() != nil {
			return
		}
		log := e.log().With(zap.Int64("game_id", g.ID), zap.String("sport", string(g.Sport)))
		var (
			sr  SettleReport
			err error
		)
		if g.AutoCanceled {
			sr, err = e.refundPending(ctx, g.ID)
		} else {
			sr, err = e.SettleGame(ctx, g.ID, g.Winner)
		}
		rep.Settle.add(sr)
		if err != nil {
			log.Warn("resume settlement failed", zap.Bool("auto_canceled", g.AutoCanceled), zap.Error(err))
			e.fail("resume")
			continue
		}
		rep.Resumed++
		log.Info("settlement resumed", zap.Int("applied", sr.Applied()), zap.Int("failed", sr.Failed))
	}
}

func (e *Engine) publishResolved(ctx context.Context, g domain.Game, res domain.Resolution, canceled bool) {
	ev := events.GameResolved{
		GameID:       g.ID,
		Sport:        string(g.Sport),
		Winner:       string(res.Winner),
		HomeScore:    res.HomeScore,
		AwayScore:    res.AwayScore,
		AutoCanceled: canceled,
		FinishedAt:   res.FinishedAt,
	}
	if err := e.events().GameResolved(ctx, ev); err != nil {
		e.log().Warn("publish game resolved failed", zap.Int64("game_id", g.ID), zap.Error(err))
		e.fail("publish")
	}
}
