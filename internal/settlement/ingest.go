package settlement

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/provider"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

// IngestReport resume uma passada de ingestão.
type IngestReport struct {
	Upserted     int
	Skipped      int // jogos já decididos que o feed ainda devolve
	Failed       int // jogos que não puderam ser gravados
	FailedSports []domain.Sport
}

// IngestOdds busca as odds de hoje de cada liga e faz upsert dos jogos.
// Falha de uma liga é logada e não interrompe as outras.
func (e *Engine) IngestOdds(ctx context.Context) (IngestReport, error) {
	var rep IngestReport
	today := e.today()
	date := today.Format(provider.DateLayout)

	for _, sp := range e.Sports {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		log := e.log().With(zap.String("sport", string(sp.Code)), zap.String("date", date))

		games, err := e.Provider.OddsByDate(ctx, sp, today)
		if err != nil {
			log.Warn("odds fetch failed", zap.Error(err))
			e.fail("ingest_fetch")
			rep.FailedSports = append(rep.FailedSports, sp.Code)
			continue
		}

		upserted, skipped := 0, 0
		for _, pg := range games {
			g, ok := e.normalize(sp.Code, pg)
			if !ok {
				log.Warn("skipping game without id or schedule", zap.Int64("game_id", pg.ID()))
				rep.Failed++
				continue
			}
			applied, err := e.Store.Games().UpsertScheduled(ctx, g)
			if err != nil {
				log.Warn("game upsert failed", zap.Int64("game_id", g.ID), zap.Error(err))
				e.fail("ingest_upsert")
				rep.Failed++
				continue
			}
			if applied {
				upserted++
			} else {
				skipped++
			}
		}

		rep.Upserted += upserted
		rep.Skipped += skipped
		if e.OnIngested != nil {
			e.OnIngested(string(sp.Code), upserted)
		}
		log.Info("odds ingested", zap.Int("upserted", upserted), zap.Int("skipped_decided", skipped))

		if err := e.events().GamesIngested(ctx, events.GamesIngested{
			Sport: string(sp.Code), Date: date, Upserted: upserted, Skipped: skipped, Ts: e.now().UTC(),
		}); err != nil {
			log.Warn("publish games ingested failed", zap.Error(err))
			e.fail("publish")
		}
	}
	return rep, nil
}

// normalize converte o jogo do fornecedor no registro canônico.
// Times ausentes viram "Unknown", odds ausentes ficam nil.
func (e *Engine) normalize(sport domain.Sport, pg provider.Game) (domain.Game, bool) {
	id := pg.ID()
	if id == 0 {
		return domain.Game{}, false
	}
	at, ok := pg.ScheduledAt(e.loc())
	if !ok {
		return domain.Game{}, false
	}
	home, away := pg.Teams()
	homeOdds, awayOdds := pg.Odds()
	return domain.Game{
		ID:          id,
		Sport:       sport,
		HomeTeam:    home,
		AwayTeam:    away,
		ScheduledAt: at.UTC(),
		HomeOdds:    homeOdds,
		AwayOdds:    awayOdds,
		Status:      domain.GameScheduled,
	}, true
}
