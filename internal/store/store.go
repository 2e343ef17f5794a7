package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

// GameRepository guarda os jogos ingeridos.
// Todas as escritas que dependem do resultado usam "winner IS NULL" como guarda.
type GameRepository interface {
	// UpsertScheduled insere ou atualiza um jogo sem resultado.
	// Retorna false quando o jogo já está decidido (nada é alterado).
	UpsertScheduled(ctx context.Context, g domain.Game) (bool, error)
	Get(ctx context.Context, id int64) (domain.Game, error)
	// ListUndecided lista jogos sem vencedor e com status diferente de finished.
	ListUndecided(ctx context.Context) ([]domain.Game, error)
	// MarkFinished aplica o resultado apenas se o jogo ainda não tem vencedor.
	MarkFinished(ctx context.Context, r domain.Resolution) (bool, error)
	// ForceCancel finaliza um jogo sem resultado como empate auto-cancelado.
	ForceCancel(ctx context.Context, id int64, at time.Time) (bool, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.Game, error)
	ListStaleUndecided(ctx context.Context, cutoff time.Time) ([]domain.Game, error)
	// ListDecidedWithPendingBets lista jogos com vencedor que ainda têm apostas pending.
	ListDecidedWithPendingBets(ctx context.Context) ([]domain.Game, error)
	// DeleteIfUnreferenced remove o jogo somente se nenhuma aposta o referencia.
	DeleteIfUnreferenced(ctx context.Context, id int64) (bool, error)
}

// BetRepository guarda as apostas. Place e Settle são atômicos com o saldo.
type BetRepository interface {
	// Place debita o saldo (com guarda de suficiência) e insere a aposta
	// pending numa única operação, atribuindo o ID pela sequência.
	Place(ctx context.Context, b domain.Bet) (domain.Bet, domain.Balance, error)
	Get(ctx context.Context, id int64) (domain.Bet, error)
	ListPendingByGame(ctx context.Context, gameID int64) ([]domain.Bet, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Bet, error)
	CountByGame(ctx context.Context, gameID int64) (int, error)
	// Settle aplica a transição só se a aposta ainda estiver pending e credita
	// o saldo na mesma operação. Retorna false quando outra passada já processou.
	Settle(ctx context.Context, t domain.Transition) (bool, error)
}

// BalanceRepository guarda os saldos. Créditos são incondicionais;
// débitos exigem saldo suficiente no momento da escrita.
type BalanceRepository interface {
	GetOrCreate(ctx context.Context, userID string, starting decimal.Decimal) (domain.Balance, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, op domain.LedgerOp, ref string) (domain.Balance, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, op domain.LedgerOp, ref string) (domain.Balance, error)
}

// Store é o contexto de persistência criado uma vez no startup
// e passado explicitamente para cada componente.
type Store interface {
	Games() GameRepository
	Bets() BetRepository
	Balances() BalanceRepository
	Ping(ctx context.Context) error
	Close() error
}
