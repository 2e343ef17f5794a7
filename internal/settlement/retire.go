package settlement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

// RetireReport conta o que a aposentadoria fez.
type RetireReport struct {
	Deleted  int `json:"deletedCount"`
	Canceled int `json:"canceledCount"`
	Kept     int `json:"keptCount"`
	Refunded int `json:"refundedBets"`
}

// RetireFinished apaga jogos finalizados há mais que a janela de retenção
// e que não têm apostas. Jogos referenciados ficam como histórico.
func (e *Engine) RetireFinished(ctx context.Context) (RetireReport, error) {
	var rep RetireReport
	cutoff := e.now().Add(-e.retention())

	games, err := e.Store.Games().ListFinishedBefore(ctx, cutoff)
	if err != nil {
		e.fail("retire_list")
		return rep, fmt.Errorf("list finished games: %w", err)
	}
	for _, g := range games {
		deleted, err := e.Store.Games().DeleteIfUnreferenced(ctx, g.ID)
		if err != nil {
			e.log().Warn("delete finished game failed", zap.Int64("game_id", g.ID), zap.Error(err))
			e.fail("retire_delete")
			continue
		}
		if deleted {
			rep.Deleted++
		} else {
			rep.Kept++
		}
	}
	if rep.Deleted > 0 {
		e.log().Info("finished games retired", zap.Int("deleted", rep.Deleted), zap.Int("kept", rep.Kept))
	}
	return rep, nil
}

// ForceRetireStale é o gatilho administrativo: jogos sem resultado com horário
// mais antigo que a janela de staleness são apagados (sem apostas) ou
// cancelados como empate auto-cancelado com reembolso das apostas pending.
func (e *Engine) ForceRetireStale(ctx context.Context) (RetireReport, error) {
	var rep RetireReport
	now := e.now().UTC()
	cutoff := now.Add(-e.staleness())

	games, err := e.Store.Games().ListStaleUndecided(ctx, cutoff)
	if err != nil {
		e.fail("retire_list")
		return rep, fmt.Errorf("list stale games: %w", err)
	}

	for _, g := range games {
		log := e.log().With(zap.Int64("game_id", g.ID), zap.String("sport", string(g.Sport)))

		n, err := e.Store.Bets().CountByGame(ctx, g.ID)
		if err != nil {
			log.Warn("count bets failed", zap.Error(err))
			e.fail("retire_count")
			continue
		}
		if n == 0 {
			deleted, err := e.Store.Games().DeleteIfUnreferenced(ctx, g.ID)
			if err != nil {
				log.Warn("delete stale game failed", zap.Error(err))
				e.fail("retire_delete")
				continue
			}
			if deleted {
				rep.Deleted++
				continue
			}
			// uma aposta chegou entre a contagem e o delete: cai no cancelamento
		}

		canceled, err := e.Store.Games().ForceCancel(ctx, g.ID, now)
		if err != nil {
			log.Warn("cancel stale game failed", zap.Error(err))
			e.fail("retire_cancel")
			continue
		}
		if !canceled {
			log.Info("stale game resolved meanwhile, skipping")
			continue
		}
		rep.Canceled++
		e.publishResolved(ctx, g, domain.Resolution{GameID: g.ID, Winner: domain.WinnerTie, FinishedAt: now}, true)

		sr, err := e.refundPending(ctx, g.ID)
		rep.Refunded += sr.Refunded
		if err != nil {
			log.Warn("refund pending bets failed", zap.Error(err))
			e.fail("retire_refund")
		}
		log.Info("stale game canceled", zap.Int("refunded_bets", sr.Refunded))
	}

	e.log().Info("stale games retired", zap.Int("deleted", rep.Deleted), zap.Int("canceled", rep.Canceled))
	return rep, nil
}

// refundPending devolve o stake de cada aposta pending do jogo (status refunded).
func (e *Engine) refundPending(ctx context.Context, gameID int64) (SettleReport, error) {
	var rep SettleReport
	bets, err := e.Store.Bets().ListPendingByGame(ctx, gameID)
	if err != nil {
		return rep, fmt.Errorf("list pending bets: %w", err)
	}
	at := e.now().UTC()
	for _, b := range bets {
		e.apply(ctx, b, domain.Transition{
			BetID:  b.ID,
			UserID: b.UserID,
			To:     domain.BetRefunded,
			Payout: b.Amount,
			Credit: b.Amount,
			Op:     domain.LedgerRefund,
			At:     at,
		}, &rep)
	}
	return rep, nil
}
