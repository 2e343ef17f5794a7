package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

// BalanceRepo implementa o razão de saldos: incremento/decremento atômicos
// no banco, nunca read-modify-write na aplicação.
type BalanceRepo struct{ db *sql.DB }

// GetOrCreate retorna o saldo do usuário, criando com o valor inicial se não existir.
func (r *BalanceRepo) GetOrCreate(ctx context.Context, userID string, starting decimal.Decimal) (domain.Balance, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO balances (user_id, amount) VALUES ($1,$2) ON CONFLICT (user_id) DO NOTHING`,
		userID, starting); err != nil {
		return domain.Balance{}, domain.Persistence("create balance", err)
	}
	b := domain.Balance{UserID: userID}
	if err := r.db.QueryRowContext(ctx,
		`SELECT amount, updated_at FROM balances WHERE user_id=$1`, userID).Scan(&b.Amount, &b.UpdatedAt); err != nil {
		return domain.Balance{}, domain.Persistence("get balance", err)
	}
	return b, nil
}

// Credit incrementa o saldo (incondicional) e registra no ledger.
func (r *BalanceRepo) Credit(ctx context.Context, userID string, amount decimal.Decimal, op domain.LedgerOp, ref string) (domain.Balance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Balance{}, domain.Persistence("credit balance", err)
	}
	defer tx.Rollback()

	b := domain.Balance{UserID: userID}
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO balances (user_id, amount) VALUES ($1,$2)
		ON CONFLICT (user_id) DO UPDATE SET
		  amount     = balances.amount + EXCLUDED.amount,
		  version    = balances.version + 1,
		  updated_at = NOW()
		RETURNING amount, updated_at`, userID, amount).Scan(&b.Amount, &b.UpdatedAt); err != nil {
		return domain.Balance{}, domain.Persistence("credit balance", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO balance_ledger (user_id, operation_type, amount, reference)
		VALUES ($1,$2,$3,$4)`, userID, string(op), amount, ref); err != nil {
		return domain.Balance{}, domain.Persistence("credit balance", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Balance{}, domain.Persistence("credit balance", err)
	}
	return b, nil
}

// Debit decrementa o saldo com guarda de suficiência na própria instrução UPDATE.
func (r *BalanceRepo) Debit(ctx context.Context, userID string, amount decimal.Decimal, op domain.LedgerOp, ref string) (domain.Balance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Balance{}, domain.Persistence("debit balance", err)
	}
	defer tx.Rollback()

	b := domain.Balance{UserID: userID}
	err = tx.QueryRowContext(ctx, `
		UPDATE balances SET amount = amount - $1, version = version + 1, updated_at = NOW()
		WHERE user_id=$2 AND amount >= $1
		RETURNING amount, updated_at`, amount, userID).Scan(&b.Amount, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var one int
		if qerr := tx.QueryRowContext(ctx, `SELECT 1 FROM balances WHERE user_id=$1`, userID).Scan(&one); errors.Is(qerr, sql.ErrNoRows) {
			return domain.Balance{}, domain.ErrUserNotFound
		}
		return domain.Balance{}, domain.ErrInsufficientFunds
	} else if err != nil {
		return domain.Balance{}, domain.Persistence("debit balance", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO balance_ledger (user_id, operation_type, amount, reference)
		VALUES ($1,$2,$3,$4)`, userID, string(op), amount.Neg(), ref); err != nil {
		return domain.Balance{}, domain.Persistence("debit balance", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Balance{}, domain.Persistence("debit balance", err)
	}
	return b, nil
}
