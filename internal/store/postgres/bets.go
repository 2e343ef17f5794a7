package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

// BetRepo persiste apostas em placed_bets. O ID vem da sequência BIGSERIAL.
type BetRepo struct{ db *sql.DB }

const betColumns = `id, user_id, game_id, side, amount, status, payout, placed_at, processed_at`

func scanBet(r rowScanner) (domain.Bet, error) {
	var (
		b            domain.Bet
		side, status string
		processedAt  sql.NullTime
	)
	if err := r.Scan(&b.ID, &b.UserID, &b.GameID, &side, &b.Amount, &status, &b.Payout, &b.PlacedAt, &processedAt); err != nil {
		return domain.Bet{}, err
	}
	b.Side = domain.Side(side)
	b.Status = domain.BetStatus(status)
	b.ProcessedAt = timePtr(processedAt)
	return b, nil
}

func (r *BetRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Bet, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, domain.Persistence(op, err)
	}
	defer rows.Close()
	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, domain.Persistence(op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence(op, err)
	}
	return out, nil
}

// Place debita o saldo e cria a aposta pending na mesma transação.
// Lock pessimista na linha do saldo; o jogo é travado em modo compartilhado
// para não ser apagado pela limpeza no meio da colocação.
func (r *BetRepo) Place(ctx context.Context, b domain.Bet) (domain.Bet, domain.Balance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bet{}, domain.Balance{}, domain.Persistence("place bet", err)
	}
	defer tx.Rollback()

	var open bool
	err = tx.QueryRowContext(ctx, `SELECT winner IS NULL FROM games WHERE id=$1 FOR SHARE`, b.GameID).Scan(&open)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, domain.Balance{}, domain.ErrGameNotFound
	} else if err != nil {
		return domain.Bet{}, domain.Balance{}, domain.Persistence("place bet", err)
	}
	if !open {
		return domain.Bet{}, domain.Balance{}, domain.ErrGameClosed
	}

	var current decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT amount FROM balances WHERE user_id=$1 FOR UPDATE`, b.UserID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, domain.Balance{}, domain.ErrUserNotFound
	} else if err != nil {
		return domain.Bet{}, domain.Balance{}, domain.Persistence("place bet", err)
	}
	if current.LessThan(b.Amount) {
		return domain.Bet{}, domain.Balance{}, domain.ErrInsufficientFunds
	}

	bal := domain.Balance{UserID: b.UserID}
	if err = tx.QueryRowContext(ctx, `
		UPDATE balances SET amount = amount - $1, version = version + 1, updated_at = NOW()
		WHERE user_id=$2 AND amount >= $1
		RETURNING amount, updated_at`, b.Amount, b.UserID).Scan(&bal.Amount, &bal.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bet{}, domain.Balance{}, domain.ErrInsufficientFunds
		}
		return domain.Bet{}, domain.Balance{}, domain.Persistence("place bet", err)
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO placed_bets (user_id, game_id, side, amount, status, placed_at)
		VALUES ($1,$2,$3,$4,'pending',NOW())
		RETURNING `+betColumns, b.UserID, b.GameID, string(b.Side), b.Amount)
	placed, err := scanBet(row)
	if err != nil {
		return domain.Bet{}, domain.Balance{}, domain.Persistence("place bet", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO balance_ledger (user_id, operation_type, amount, reference)
		VALUES ($1,$2,$3,$4)`,
		b.UserID, string(domain.LedgerDebit), b.Amount.Neg(), "bet:"+strconv.FormatInt(placed.ID, 10)); err != nil {
		return domain.Bet{}, domain.Balance{}, domain.Persistence("place bet", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Bet{}, domain.Balance{}, domain.Persistence("place bet", err)
	}
	return placed, bal, nil
}

func (r *BetRepo) Get(ctx context.Context, id int64) (domain.Bet, error) {
	b, err := scanBet(r.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM placed_bets WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, fmt.Errorf("bet %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Bet{}, domain.Persistence("get bet", err)
	}
	return b, nil
}

func (r *BetRepo) ListPendingByGame(ctx context.Context, gameID int64) ([]domain.Bet, error) {
	return r.query(ctx, "list pending bets", `
		SELECT `+betColumns+`
		FROM placed_bets
		WHERE game_id=$1 AND status='pending'
		ORDER BY id`, gameID)
}

func (r *BetRepo) ListByUser(ctx context.Context, userID string) ([]domain.Bet, error) {
	return r.query(ctx, "list user bets", `
		SELECT `+betColumns+`
		FROM placed_bets
		WHERE user_id=$1
		ORDER BY id DESC`, userID)
}

func (r *BetRepo) CountByGame(ctx context.Context, gameID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM placed_bets WHERE game_id=$1`, gameID).Scan(&n); err != nil {
		return 0, domain.Persistence("count bets", err)
	}
	return n, nil
}

// Settle muda o status só se a aposta ainda estiver pending (guarda de idempotência)
// e credita o saldo na mesma transação. Duas passadas concorrentes: só uma credita.
func (r *BetRepo) Settle(ctx context.Context, t domain.Transition) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.Persistence("settle bet", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `
		UPDATE placed_bets SET status=$1, payout=$2, processed_at=$3
		WHERE id=$4 AND status='pending'
		RETURNING user_id`, string(t.To), t.Payout, t.At, t.BetID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil // já processada por outra passada
	} else if err != nil {
		return false, domain.Persistence("settle bet", err)
	}

	if t.Credit.IsPositive() {
		ref := "bet:" + strconv.FormatInt(t.BetID, 10)
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO balances (user_id, amount) VALUES ($1,$2)
			ON CONFLICT (user_id) DO UPDATE SET
			  amount     = balances.amount + EXCLUDED.amount,
			  version    = balances.version + 1,
			  updated_at = NOW()`, userID, t.Credit); err != nil {
			return false, domain.Persistence("settle bet", err)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO balance_ledger (user_id, operation_type, amount, reference)
			VALUES ($1,$2,$3,$4)`, userID, string(t.Op), t.Credit, ref); err != nil {
			return false, domain.Persistence("settle bet", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, domain.Persistence("settle bet", err)
	}
	return true, nil
}
