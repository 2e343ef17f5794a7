// Package postgres implementa o contrato de store sobre Postgres (lib/pq).
// Toda garantia de concorrência vem de escritas condicionais e transações curtas.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/radieske/sports-bet-settlement/internal/store"
)

//go:embed schema.sql
var schema string

// Store agrega os repositórios sobre uma única conexão *sql.DB.
type Store struct{ db *sql.DB }

// New retorna o store. O schema deve ser aplicado com Migrate.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate aplica o schema (idempotente, CREATE ... IF NOT EXISTS).
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Games() store.GameRepository       { return &GameRepo{db: s.db} }
func (s *Store) Bets() store.BetRepository         { return &BetRepo{db: s.db} }
func (s *Store) Balances() store.BalanceRepository { return &BalanceRepo{db: s.db} }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// rowScanner cobre *sql.Row e *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ store.Store = (*Store)(nil)
