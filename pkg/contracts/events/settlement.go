package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento publicado no tópico "games_ingested" ao fim da ingestão de uma liga.
type GamesIngested struct {
	Sport    string    `json:"sport"`
	Date     string    `json:"date"`
	Upserted int       `json:"upserted"`
	Skipped  int       `json:"skipped"` // jogos já decididos, não tocados
	Ts       time.Time `json:"ts"`
}

// Evento publicado no tópico "games_resolved" quando um jogo recebe resultado
// (inclusive cancelamento automático por jogo parado).
type GameResolved struct {
	GameID       int64     `json:"game_id"`
	Sport        string    `json:"sport"`
	Winner       string    `json:"winner"` // "home" | "away" | "tie"
	HomeScore    *int      `json:"home_score,omitempty"`
	AwayScore    *int      `json:"away_score,omitempty"`
	AutoCanceled bool      `json:"auto_canceled,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Evento publicado no tópico "bets_settled" para cada transição aplicada.
type BetSettled struct {
	BetID  int64           `json:"bet_id"`
	UserID string          `json:"user_id"`
	GameID int64           `json:"game_id"`
	Status string          `json:"status"` // "won" | "lost" | "pushed" | "refunded"
	Amount decimal.Decimal `json:"amount"`
	Payout decimal.Decimal `json:"payout"`
	Ts     time.Time       `json:"ts"`
}
