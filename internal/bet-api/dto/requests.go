package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest é o corpo de POST /place-bet.
// amount aceita número ou string JSON ("12.50").
type PlaceBetRequest struct {
	GameID *int64          `json:"gameId"`
	Bet    string          `json:"bet"`
	Amount decimal.Decimal `json:"amount"`
}

// AmountRequest é o corpo de POST /balance/add e /balance/deduct.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
