// Package wager implementa as operações de fronteira: colocar aposta e
// movimentar saldo. Erros saem com o tipo específico (domain.Err*) para o
// cliente explicar por que a aposta foi recusada.
package wager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/store"
)

// DefaultStartingBalance é o saldo criado no primeiro acesso do usuário.
var DefaultStartingBalance = decimal.NewFromInt(1000)

// lateWindow: jogo com horário mais antigo que isso não aceita aposta.
const lateWindow = 24 * time.Hour

// PlaceInput é o pedido de aposta já decodificado.
// GameID nil e Side vazio indicam campo ausente.
type PlaceInput struct {
	UserID string
	GameID *int64
	Side   domain.Side
	Amount decimal.Decimal
}

// Placed é o resultado de uma aposta aceita.
type Placed struct {
	Bet     domain.Bet     `json:"bet"`
	Balance domain.Balance `json:"balance"`
}

// BetView é uma aposta com o jogo referenciado (nil se o jogo foi apagado).
type BetView struct {
	domain.Bet
	Game *domain.Game `json:"game,omitempty"`
}

// Service opera sobre um store já inicializado.
type Service struct {
	Store           store.Store
	Log             *zap.Logger
	Now             func() time.Time
	StartingBalance decimal.Decimal

	OnPlaced func(sport string)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) starting() decimal.Decimal {
	if s.StartingBalance.IsPositive() {
		return s.StartingBalance
	}
	return DefaultStartingBalance
}

func (s *Service) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// ValidAmount aceita apenas valores positivos com no máximo 2 casas decimais.
func ValidAmount(a decimal.Decimal) error {
	if !a.IsPositive() || !a.Equal(a.Round(2)) {
		return domain.ErrInvalidAmount
	}
	return nil
}

// PlaceBet valida na ordem: campos, valor, lado, existência do jogo, jogo aberto,
// horário, odds do lado, e por fim debita o saldo e grava a aposta atomicamente.
func (s *Service) PlaceBet(ctx context.Context, in PlaceInput) (Placed, error) {
	if in.UserID == "" {
		return Placed{}, domain.ErrUnauthenticated
	}
	if in.GameID == nil || in.Side == "" {
		return Placed{}, fmt.Errorf("%w: gameId, bet and amount are required", domain.ErrMissingField)
	}
	if err := ValidAmount(in.Amount); err != nil {
		return Placed{}, err
	}
	if !in.Side.Valid() {
		return Placed{}, domain.ErrInvalidSide
	}

	game, err := s.Store.Games().Get(ctx, *in.GameID)
	if err != nil {
		return Placed{}, err
	}
	if !game.Open() {
		return Placed{}, domain.ErrGameClosed
	}
	if game.ScheduledAt.Before(s.now().Add(-lateWindow)) {
		return Placed{}, domain.ErrGameClosed
	}
	if game.OddsFor(in.Side) == nil {
		return Placed{}, domain.ErrOddsUnavailable
	}

	// saldo criado sob demanda, como numa leitura de /balance
	if _, err := s.Store.Balances().GetOrCreate(ctx, in.UserID, s.starting()); err != nil {
		return Placed{}, err
	}

	bet, bal, err := s.Store.Bets().Place(ctx, domain.Bet{
		UserID: in.UserID,
		GameID: game.ID,
		Side:   in.Side,
		Amount: in.Amount,
	})
	if err != nil {
		return Placed{}, err
	}

	if s.OnPlaced != nil {
		s.OnPlaced(string(game.Sport))
	}
	s.log().Info("bet placed",
		zap.Int64("bet_id", bet.ID),
		zap.Int64("game_id", bet.GameID),
		zap.String("user_id", bet.UserID),
		zap.String("side", string(bet.Side)),
		zap.String("amount", bet.Amount.StringFixed(2)),
	)
	return Placed{Bet: bet, Balance: bal}, nil
}

// Balance devolve o saldo, criando com o valor inicial no primeiro acesso.
func (s *Service) Balance(ctx context.Context, userID string) (domain.Balance, error) {
	if userID == "" {
		return domain.Balance{}, domain.ErrUnauthenticated
	}
	return s.Store.Balances().GetOrCreate(ctx, userID, s.starting())
}

// AddFunds credita o saldo (incondicional).
func (s *Service) AddFunds(ctx context.Context, userID string, amount decimal.Decimal) (domain.Balance, error) {
	if userID == "" {
		return domain.Balance{}, domain.ErrUnauthenticated
	}
	if err := ValidAmount(amount); err != nil {
		return domain.Balance{}, err
	}
	if _, err := s.Store.Balances().GetOrCreate(ctx, userID, s.starting()); err != nil {
		return domain.Balance{}, err
	}
	return s.Store.Balances().Credit(ctx, userID, amount, domain.LedgerCredit, "deposit:"+uuid.NewString())
}

// Deduct debita o saldo exigindo saldo suficiente no momento da escrita.
func (s *Service) Deduct(ctx context.Context, userID string, amount decimal.Decimal) (domain.Balance, error) {
	if userID == "" {
		return domain.Balance{}, domain.ErrUnauthenticated
	}
	if err := ValidAmount(amount); err != nil {
		return domain.Balance{}, err
	}
	return s.Store.Balances().Debit(ctx, userID, amount, domain.LedgerDebit, "withdraw:"+uuid.NewString())
}

// Bets lista as apostas do usuário (mais recentes primeiro) com seus jogos.
// Jogos são lidos uma vez cada.
func (s *Service) Bets(ctx context.Context, userID string) ([]BetView, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	bets, err := s.Store.Bets().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	games := make(map[int64]*domain.Game)
	out := make([]BetView, 0, len(bets))
	for _, b := range bets {
		g, seen := games[b.GameID]
		if !seen {
			got, err := s.Store.Games().Get(ctx, b.GameID)
			switch {
			case err == nil:
				g = &got
			case errors.Is(err, domain.ErrNotFound):
				g = nil
			default:
				return nil, err
			}
			games[b.GameID] = g
		}
		out = append(out, BetView{Bet: b, Game: g})
	}
	return out, nil
}

// Games lista os jogos ainda sem resultado, por horário.
func (s *Service) Games(ctx context.Context) ([]domain.Game, error) {
	games, err := s.Store.Games().ListUndecided(ctx)
	if err != nil {
		return nil, err
	}
	if games == nil {
		games = []domain.Game{}
	}
	return games, nil
}
