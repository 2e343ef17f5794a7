package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sport identifica a liga de um jogo (ex: "NBA", "NHL", "MLB").
type Sport string

// Side é o lado apostado.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// Valid indica se o lado é home ou away.
func (s Side) Valid() bool { return s == SideHome || s == SideAway }

// Winner é o resultado de um jogo em três estados:
// indefinido (ainda não decidido) ou decidido como home, away ou empate.
// WinnerUndecided é persistido como NULL; empate nunca é confundido com indefinido.
type Winner string

const (
	WinnerUndecided Winner = ""
	WinnerHome      Winner = "home"
	WinnerAway      Winner = "away"
	WinnerTie       Winner = "tie"
)

// Decided retorna true quando o jogo já tem resultado (inclusive empate).
func (w Winner) Decided() bool { return w != WinnerUndecided }

// Valid aceita apenas os três resultados decididos.
func (w Winner) Valid() bool { return w == WinnerHome || w == WinnerAway || w == WinnerTie }

// WinnerFromScores decide o vencedor comparando o placar final.
func WinnerFromScores(home, away int) Winner {
	switch {
	case home > away:
		return WinnerHome
	case away > home:
		return WinnerAway
	default:
		return WinnerTie
	}
}

type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameFinished  GameStatus = "finished"
)

// Game é o registro canônico de um jogo ingerido do fornecedor.
// HomeOdds/AwayOdds estão no formato americano e podem faltar.
type Game struct {
	ID           int64      `json:"id"`
	Sport        Sport      `json:"sport"`
	HomeTeam     string     `json:"homeTeam"`
	AwayTeam     string     `json:"awayTeam"`
	ScheduledAt  time.Time  `json:"scheduledAt"`
	HomeOdds     *int       `json:"homeOdds"`
	AwayOdds     *int       `json:"awayOdds"`
	Status       GameStatus `json:"status"`
	Winner       Winner     `json:"winner,omitempty"`
	HomeScore    *int       `json:"homeScore,omitempty"`
	AwayScore    *int       `json:"awayScore,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	AutoCanceled bool       `json:"autoCanceled,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// OddsFor retorna a odd do lado escolhido (nil quando não cotado).
func (g Game) OddsFor(side Side) *int {
	switch side {
	case SideHome:
		return g.HomeOdds
	case SideAway:
		return g.AwayOdds
	}
	return nil
}

// Open indica se o jogo ainda aceita resultado (sem vencedor e não finalizado).
func (g Game) Open() bool { return !g.Winner.Decided() && g.Status != GameFinished }

// Resolution é o resultado final aplicado a um jogo, uma única vez.
type Resolution struct {
	GameID     int64
	Winner     Winner
	HomeScore  *int
	AwayScore  *int
	FinishedAt time.Time
}

type BetStatus string

const (
	BetPending  BetStatus = "pending"
	BetWon      BetStatus = "won"
	BetLost     BetStatus = "lost"
	BetPushed   BetStatus = "pushed"
	BetRefunded BetStatus = "refunded"
)

// Terminal indica se o status encerra o ciclo da aposta.
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost || s == BetPushed || s == BetRefunded
}

// Bet é uma aposta colocada por um usuário.
type Bet struct {
	ID          int64               `json:"id"`
	UserID      string              `json:"userId"`
	GameID      int64               `json:"gameId"`
	Side        Side                `json:"bet"`
	Amount      decimal.Decimal     `json:"amount"`
	Status      BetStatus           `json:"status"`
	Payout      decimal.NullDecimal `json:"payout"`
	PlacedAt    time.Time           `json:"placedAt"`
	ProcessedAt *time.Time          `json:"processedAt,omitempty"`
}

// Balance é o saldo de um usuário.
type Balance struct {
	UserID    string          `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// LedgerOp classifica os lançamentos do razão de saldo.
type LedgerOp string

const (
	LedgerCredit LedgerOp = "CREDIT"
	LedgerDebit  LedgerOp = "DEBIT"
	LedgerPayout LedgerOp = "PAYOUT"
	LedgerPush   LedgerOp = "PUSH"
	LedgerRefund LedgerOp = "REFUND"
)

// Transition é a mudança pending -> terminal de uma aposta, com o crédito
// a ser lançado no saldo do dono (zero para aposta perdida).
type Transition struct {
	BetID  int64
	UserID string
	To     BetStatus
	Payout decimal.Decimal
	Credit decimal.Decimal
	Op     LedgerOp
	At     time.Time
}
