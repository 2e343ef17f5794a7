package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/bet-api/dto"
	"github.com/radieske/sports-bet-settlement/internal/bet-api/ws"
	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/settlement"
	"github.com/radieske/sports-bet-settlement/internal/store"
	"github.com/radieske/sports-bet-settlement/internal/wager"
)

const (
	defaultUserHeader   = "x-user-id"
	adminTokenHeader    = "X-Admin-Token"
	defaultReadyTimeout = 2 * time.Second
	maxBodyBytes        = 1 << 20
)

// GamesCache é o cache opcional da lista de jogos.
type GamesCache interface {
	Get(ctx context.Context) ([]domain.Game, bool, error)
	Set(ctx context.Context, games []domain.Game) error
	Invalidate(ctx context.Context) error
}

// Server expõe a API de apostas e saldo usada pelo cliente web.
// O store vem do Gate: enquanto não estiver pronto, as rotas respondem 503.
type Server struct {
	Log    *zap.Logger
	Gate   *store.Gate
	Cache  GamesCache           // opcional
	Hub    *ws.Hub              // opcional, habilita /ws
	Events settlement.Publisher // opcional, eventos do cancelamento administrativo

	UserHeader      string
	AdminToken      string // vazio libera o endpoint administrativo
	StartingBalance decimal.Decimal
	StaleWindow     time.Duration
	ReadyTimeout    time.Duration
	Now             func() time.Time

	OnPlaced func(sport string) // métricas
}

type ctxKey struct{}

// Router retorna o roteador HTTP com as rotas da API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/games", s.listGames)
	r.Post("/admin/cleanup-old-games", s.cleanupOldGames)
	if s.Hub != nil {
		r.Get("/ws", s.Hub.HandleWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/placed-bets", s.listPlacedBets)
		r.Post("/place-bet", s.placeBet)
		r.Get("/balance", s.getBalance)
		r.Post("/balance/add", s.addBalance)
		r.Post("/balance/deduct", s.deductBalance)
	})
	return r
}

// Identify extrai o usuário do cabeçalho; "anonymous" conta como ausente.
func (s *Server) Identify(r *http.Request) string {
	h := s.UserHeader
	if h == "" {
		h = defaultUserHeader
	}
	return normalizeUser(r.Header.Get(h))
}

// IdentifyStream é o Identify do upgrade WebSocket: navegadores não mandam
// cabeçalho no upgrade, então aceita também ?user=.
func (s *Server) IdentifyStream(r *http.Request) string {
	if u := s.Identify(r); u != "" {
		return u
	}
	return normalizeUser(r.URL.Query().Get("user"))
}

func normalizeUser(v string) string {
	user := strings.TrimSpace(v)
	if strings.EqualFold(user, "anonymous") {
		return ""
	}
	return user
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := s.Identify(r)
		if user == "" {
			s.writeError(w, domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func userFrom(ctx context.Context) string {
	u, _ := ctx.Value(ctxKey{}).(string)
	return u
}

// store espera o gate por no máximo ReadyTimeout.
func (s *Server) store(r *http.Request) (store.Store, error) {
	timeout := s.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	return s.Gate.Wait(ctx)
}

func (s *Server) wager(r *http.Request) (*wager.Service, error) {
	st, err := s.store(r)
	if err != nil {
		return nil, err
	}
	return &wager.Service{
		Store:           st,
		Log:             s.Log,
		Now:             s.Now,
		StartingBalance: s.StartingBalance,
		OnPlaced:        s.OnPlaced,
	}, nil
}

// listGames devolve os jogos sem resultado, preferencialmente do cache
func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	if s.Cache != nil {
		if games, ok, err := s.Cache.Get(r.Context()); err == nil && ok {
			writeJSON(w, http.StatusOK, games)
			return
		} else if err != nil {
			s.Log.Debug("games cache get failed", zap.Error(err))
		}
	}

	svc, err := s.wager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	games, err := svc.Games(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.Cache != nil {
		if err := s.Cache.Set(r.Context(), games); err != nil {
			s.Log.Debug("games cache set failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) listPlacedBets(w http.ResponseWriter, r *http.Request) {
	svc, err := s.wager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views, err := svc.Bets(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.PlacedBet, 0, len(views))
	for _, v := range views {
		out = append(out, dto.PlacedBet{Bet: v.Bet, Game: v.Game})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	svc, err := s.wager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	placed, err := svc.PlaceBet(r.Context(), wager.PlaceInput{
		UserID: userFrom(r.Context()),
		GameID: req.GameID,
		Side:   domain.Side(strings.ToLower(strings.TrimSpace(req.Bet))),
		Amount: req.Amount,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{Bet: placed.Bet, Balance: placed.Balance.Amount})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	svc, err := s.wager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := svc.Balance(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: bal.UserID, Balance: bal.Amount})
}

func (s *Server) addBalance(w http.ResponseWriter, r *http.Request) {
	s.moveBalance(w, r, (*wager.Service).AddFunds)
}

func (s *Server) deductBalance(w http.ResponseWriter, r *http.Request) {
	s.moveBalance(w, r, (*wager.Service).Deduct)
}

func (s *Server) moveBalance(w http.ResponseWriter, r *http.Request,
	op func(*wager.Service, context.Context, string, decimal.Decimal) (domain.Balance, error)) {
	var req dto.AmountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	svc, err := s.wager(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := op(svc, r.Context(), userFrom(r.Context()), req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: bal.UserID, Balance: bal.Amount})
}

// cleanupOldGames força a aposentadoria de jogos parados (apaga ou cancela + reembolsa).
func (s *Server) cleanupOldGames(w http.ResponseWriter, r *http.Request) {
	if s.AdminToken != "" {
		got := r.Header.Get(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.AdminToken)) != 1 {
			s.writeError(w, domain.ErrUnauthenticated)
			return
		}
	}
	st, err := s.store(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	eng := &settlement.Engine{
		Store:     st,
		Log:       s.Log,
		Events:    s.Events,
		Now:       s.Now,
		Staleness: s.StaleWindow,
	}
	rep, err := eng.ForceRetireStale(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.Cache != nil && rep.Deleted+rep.Canceled > 0 {
		if err := s.Cache.Invalidate(r.Context()); err != nil {
			s.Log.Debug("games cache invalidate failed", zap.Error(err))
		}
	}
	s.Log.Info("admin cleanup done", zap.Int("deleted", rep.Deleted), zap.Int("canceled", rep.Canceled))
	writeJSON(w, http.StatusOK, dto.CleanupResponse{
		DeletedCount:  rep.Deleted,
		CanceledCount: rep.Canceled,
		RefundedBets:  rep.Refunded,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidInput, errors.New("bad json"))
	}
	return nil
}
