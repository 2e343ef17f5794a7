package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

type BalanceResponse struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

type PlaceBetResponse struct {
	Bet     domain.Bet      `json:"bet"`
	Balance decimal.Decimal `json:"balance"`
}

// CleanupResponse é a resposta de POST /admin/cleanup-old-games.
type CleanupResponse struct {
	DeletedCount  int `json:"deletedCount"`
	CanceledCount int `json:"canceledCount"`
	RefundedBets  int `json:"refundedBets"`
}

// PlacedBet é uma aposta com o jogo referenciado, como em GET /placed-bets.
type PlacedBet struct {
	domain.Bet
	Game *domain.Game `json:"game,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
