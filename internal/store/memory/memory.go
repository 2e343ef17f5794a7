// Package memory implementa o contrato de store em memória, com as mesmas
// guardas condicionais do Postgres. Usado em testes e em STORE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/store"
)

// LedgerEntry espelha uma linha de balance_ledger.
type LedgerEntry struct {
	UserID string
	Op     domain.LedgerOp
	Amount decimal.Decimal
	Ref    string
	At     time.Time
}

// Store guarda tudo em mapas protegidos por um único mutex;
// cada método é atômico, como uma escrita condicional no banco.
type Store struct {
	mu        sync.Mutex
	games     map[int64]domain.Game
	bets      map[int64]domain.Bet
	balances  map[string]domain.Balance
	ledger    []LedgerEntry
	lastBetID int64
	now       func() time.Time
}

// New cria um store vazio. now pode ser nil (usa time.Now).
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		games:    make(map[int64]domain.Game),
		bets:     make(map[int64]domain.Bet),
		balances: make(map[string]domain.Balance),
		now:      now,
	}
}

func (s *Store) Games() store.GameRepository       { return games{s} }
func (s *Store) Bets() store.BetRepository         { return bets{s} }
func (s *Store) Balances() store.BalanceRepository { return balances{s} }
func (s *Store) Ping(context.Context) error        { return nil }
func (s *Store) Close() error                      { return nil }

// Ledger devolve uma cópia dos lançamentos de um usuário.
func (s *Store) Ledger(userID string) []LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LedgerEntry
	for _, e := range s.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// credit precisa ser chamado com o mutex travado.
func (s *Store) credit(userID string, amount decimal.Decimal, op domain.LedgerOp, ref string, at time.Time) domain.Balance {
	b, ok := s.balances[userID]
	if !ok {
		b = domain.Balance{UserID: userID, Amount: decimal.Zero}
	}
	b.Amount = b.Amount.Add(amount)
	b.UpdatedAt = at
	s.balances[userID] = b
	s.ledger = append(s.ledger, LedgerEntry{UserID: userID, Op: op, Amount: amount, Ref: ref, At: at})
	return b
}

// debit precisa ser chamado com o mutex travado.
func (s *Store) debit(userID string, amount decimal.Decimal, op domain.LedgerOp, ref string, at time.Time) (domain.Balance, error) {
	b, ok := s.balances[userID]
	if !ok {
		return domain.Balance{}, domain.ErrUserNotFound
	}
	if b.Amount.LessThan(amount) {
		return domain.Balance{}, domain.ErrInsufficientFunds
	}
	b.Amount = b.Amount.Sub(amount)
	b.UpdatedAt = at
	s.balances[userID] = b
	s.ledger = append(s.ledger, LedgerEntry{UserID: userID, Op: op, Amount: amount.Neg(), Ref: ref, At: at})
	return b, nil
}

type games struct{ s *Store }

func (r games) UpsertScheduled(_ context.Context, g domain.Game) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if cur, ok := r.s.games[g.ID]; ok && cur.Winner.Decided() {
		return false, nil
	}
	g.Winner = domain.WinnerUndecided
	if g.Status == "" {
		g.Status = domain.GameScheduled
	}
	g.UpdatedAt = r.s.now()
	r.s.games[g.ID] = g
	return true, nil
}

func (r games) Get(_ context.Context, id int64) (domain.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[id]
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return g, nil
}

func (r games) list(keep func(domain.Game) bool) []domain.Game {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Game
	for _, g := range r.s.games {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func (r games) ListUndecided(context.Context) ([]domain.Game, error) {
	return r.list(domain.Game.Open), nil
}

func (r games) ListFinishedBefore(_ context.Context, cutoff time.Time) ([]domain.Game, error) {
	return r.list(func(g domain.Game) bool {
		return g.Status == domain.GameFinished && g.FinishedAt != nil && g.FinishedAt.Before(cutoff)
	}), nil
}

func (r games) ListStaleUndecided(_ context.Context, cutoff time.Time) ([]domain.Game, error) {
	return r.list(func(g domain.Game) bool {
		return g.Open() && g.ScheduledAt.Before(cutoff)
	}), nil
}

// ListDecidedWithPendingBets: o filtro roda sob o lock adquirido por list.
func (r games) ListDecidedWithPendingBets(context.Context) ([]domain.Game, error) {
	pending := func(id int64) bool {
		for _, b := range r.s.bets {
			if b.GameID == id && b.Status == domain.BetPending {
				return true
			}
		}
		return false
	}
	return r.list(func(g domain.Game) bool {
		return g.Winner.Decided() && pending(g.ID)
	}), nil
}

func (r games) MarkFinished(_ context.Context, res domain.Resolution) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[res.GameID]
	if !ok {
		return false, domain.ErrGameNotFound
	}
	if g.Winner.Decided() {
		return false, nil
	}
	at := res.FinishedAt
	g.Winner = res.Winner
	g.Status = domain.GameFinished
	g.HomeScore = res.HomeScore
	g.AwayScore = res.AwayScore
	g.FinishedAt = &at
	g.UpdatedAt = r.s.now()
	r.s.games[g.ID] = g
	return true, nil
}

func (r games) ForceCancel(_ context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[id]
	if !ok {
		return false, domain.ErrGameNotFound
	}
	if g.Winner.Decided() {
		return false, nil
	}
	g.Winner = domain.WinnerTie
	g.Status = domain.GameFinished
	g.AutoCanceled = true
	g.FinishedAt = &at
	g.UpdatedAt = r.s.now()
	r.s.games[id] = g
	return true, nil
}

func (r games) DeleteIfUnreferenced(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.games[id]; !ok {
		return false, nil
	}
	for _, b := range r.s.bets {
		if b.GameID == id {
			return false, nil
		}
	}
	delete(r.s.games, id)
	return true, nil
}

type bets struct{ s *Store }

func (r bets) Place(_ context.Context, b domain.Bet) (domain.Bet, domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.games[b.GameID]
	if !ok {
		return domain.Bet{}, domain.Balance{}, domain.ErrGameNotFound
	}
	if !g.Open() {
		return domain.Bet{}, domain.Balance{}, domain.ErrGameClosed
	}
	at := r.s.now()
	id := r.s.lastBetID + 1
	bal, err := r.s.debit(b.UserID, b.Amount, domain.LedgerDebit, "bet:"+strconv.FormatInt(id, 10), at)
	if err != nil {
		return domain.Bet{}, domain.Balance{}, err
	}
	r.s.lastBetID = id

	b.ID = id
	b.Status = domain.BetPending
	b.Payout = decimal.NullDecimal{}
	b.ProcessedAt = nil
	if b.PlacedAt.IsZero() {
		b.PlacedAt = at
	}
	r.s.bets[id] = b
	return b, bal, nil
}

func (r bets) Get(_ context.Context, id int64) (domain.Bet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bets[id]
	if !ok {
		return domain.Bet{}, fmt.Errorf("bet %d: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (r bets) ListPendingByGame(_ context.Context, gameID int64) ([]domain.Bet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Bet
	for _, b := range r.s.bets {
		if b.GameID == gameID && b.Status == domain.BetPending {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r bets) ListByUser(_ context.Context, userID string) ([]domain.Bet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Bet
	for _, b := range r.s.bets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r bets) CountByGame(_ context.Context, gameID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.bets {
		if b.GameID == gameID {
			n++
		}
	}
	return n, nil
}

func (r bets) Settle(_ context.Context, t domain.Transition) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bets[t.BetID]
	if !ok {
		return false, fmt.Errorf("bet %d: %w", t.BetID, domain.ErrNotFound)
	}
	if b.Status != domain.BetPending {
		return false, nil
	}
	at := t.At
	b.Status = t.To
	b.Payout = decimal.NewNullDecimal(t.Payout)
	b.ProcessedAt = &at
	r.s.bets[b.ID] = b

	if t.Credit.IsPositive() {
		r.s.credit(b.UserID, t.Credit, t.Op, "bet:"+strconv.FormatInt(b.ID, 10), at)
	}
	return true, nil
}

type balances struct{ s *Store }

func (r balances) GetOrCreate(_ context.Context, userID string, starting decimal.Decimal) (domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.balances[userID]; ok {
		return b, nil
	}
	b := domain.Balance{UserID: userID, Amount: starting, UpdatedAt: r.s.now()}
	r.s.balances[userID] = b
	return b, nil
}

func (r balances) Credit(_ context.Context, userID string, amount decimal.Decimal, op domain.LedgerOp, ref string) (domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.credit(userID, amount, op, ref, r.s.now()), nil
}

func (r balances) Debit(_ context.Context, userID string, amount decimal.Decimal, op domain.LedgerOp, ref string) (domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.debit(userID, amount, op, ref, r.s.now())
}

var _ store.Store = (*Store)(nil)
