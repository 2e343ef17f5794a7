package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

// SettleReport conta as transições de uma liquidação.
type SettleReport struct {
	Won, Lost, Pushed, Refunded int
	Skipped                     int // já processadas por outra passada
	Failed                      int
}

// Applied é o total de apostas que mudaram de status.
func (r SettleReport) Applied() int { return r.Won + r.Lost + r.Pushed + r.Refunded }

func (r *SettleReport) add(o SettleReport) {
	r.Won += o.Won
	r.Lost += o.Lost
	r.Pushed += o.Pushed
	r.Refunded += o.Refunded
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

func (r *SettleReport) count(s domain.BetStatus) {
	switch s {
	case domain.BetWon:
		r.Won++
	case domain.BetLost:
		r.Lost++
	case domain.BetPushed:
		r.Pushed++
	case domain.BetRefunded:
		r.Refunded++
	}
}

// SettleGame liquida as apostas pending de um jogo decidido.
// Cada aposta é atômica por si; erro numa aposta não desfaz as anteriores.
func (e *Engine) SettleGame(ctx context.Context, gameID int64, winner domain.Winner) (SettleReport, error) {
	var rep SettleReport
	if !winner.Valid() {
		return rep, fmt.Errorf("%w: game %d has no decided winner", domain.ErrInvalidInput, gameID)
	}

	bets, err := e.Store.Bets().ListPendingByGame(ctx, gameID)
	if err != nil {
		return rep, fmt.Errorf("list pending bets: %w", err)
	}
	if len(bets) == 0 {
		return rep, nil
	}

	// odds lidas uma vez por jogo
	game, err := e.Store.Games().Get(ctx, gameID)
	if err != nil {
		return rep, fmt.Errorf("load game: %w", err)
	}

	at := e.now().UTC()
	for _, b := range bets {
		t := Classify(game, winner, b, at)
		e.apply(ctx, b, t, &rep)
	}
	return rep, nil
}

// Classify decide a transição de uma aposta dado o vencedor:
// empate devolve o stake (pushed), lado vencedor recebe o payout das odds
// (sem odds, recebe o stake de volta), lado perdedor não recebe nada.
func Classify(game domain.Game, winner domain.Winner, b domain.Bet, at time.Time) domain.Transition {
	t := domain.Transition{BetID: b.ID, UserID: b.UserID, At: at}
	switch {
	case winner == domain.WinnerTie:
		t.To, t.Op = domain.BetPushed, domain.LedgerPush
		t.Payout, t.Credit = b.Amount, b.Amount
	case string(b.Side) == string(winner):
		t.To, t.Op = domain.BetWon, domain.LedgerPayout
		if odds := game.OddsFor(b.Side); odds != nil {
			t.Payout = Payout(b.Amount, *odds)
		} else {
			t.Payout = b.Amount
		}
		t.Credit = t.Payout
	default:
		t.To = domain.BetLost
		t.Payout, t.Credit = decimal.Zero, decimal.Zero
	}
	return t
}

// apply grava a transição com a guarda status = pending.
func (e *Engine) apply(ctx context.Context, b domain.Bet, t domain.Transition, rep *SettleReport) {
	log := e.log().With(zap.Int64("bet_id", b.ID), zap.Int64("game_id", b.GameID), zap.String("user_id", b.UserID))

	applied, err := e.Store.Bets().Settle(ctx, t)
	if err != nil {
		log.Warn("bet settlement failed", zap.String("to", string(t.To)), zap.Error(err))
		e.fail("settle_bet")
		rep.Failed++
		return
	}
	if !applied {
		log.Info("bet already processed, skipping")
		rep.Skipped++
		return
	}

	rep.count(t.To)
	if e.OnSettled != nil {
		e.OnSettled(string(t.To))
	}
	log.Debug("bet settled", zap.String("status", string(t.To)), zap.String("payout", t.Payout.StringFixed(2)))

	if err := e.events().BetSettled(ctx, events.BetSettled{
		BetID: b.ID, UserID: b.UserID, GameID: b.GameID,
		Status: string(t.To), Amount: b.Amount, Payout: t.Payout, Ts: t.At,
	}); err != nil {
		log.Warn("publish bet settled failed", zap.Error(err))
		e.fail("publish")
	}
}
