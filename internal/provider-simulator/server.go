// Package simulator imita o fornecedor de odds e placares para ambientes locais.
// Os jogos são determinísticos: o mesmo dia gera sempre os mesmos ids, odds e
// placares, e o status avança com o relógio (Scheduled, InProgress, Final).
package simulator

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/provider"
)

// Simulator serve as rotas de odds e placares de cada liga do catálogo.
type Simulator struct {
	Sports   []provider.Sport
	APIKey   string // vazio aceita qualquer chave
	Location *time.Location
	Now      func() time.Time
	Log      *zap.Logger

	OnRequest func(sport, kind string, status int) // métricas
}

func (s *Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Simulator) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *Simulator) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// Router monta as rotas a partir dos templates do catálogo ({sport} e {date}).
func (s *Simulator) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requireKey)

	for i, sp := range s.Sports {
		r.Get(routePattern(sp.OddsPath, sp.Path), s.handler(i, sp, "odds", false))
		r.Get(routePattern(sp.ScoresPath, sp.Path), s.handler(i, sp, "scores", true))
	}
	return r
}

func routePattern(tmpl, sportPath string) string {
	return strings.ReplaceAll(tmpl, "{sport}", sportPath)
}

func (s *Simulator) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" {
			got := r.URL.Query().Get("key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.APIKey)) != 1 {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Simulator) handler(idx int, sp provider.Sport, kind string, withScores bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := time.ParseInLocation(provider.DateLayout, chi.URLParam(r, "date"), s.loc())
		if err != nil {
			s.observe(sp, kind, http.StatusBadRequest)
			http.Error(w, "bad date", http.StatusBadRequest)
			return
		}

		sl := slate{sportIdx: idx, sport: sp, loc: s.loc(), now: s.now()}
		games := sl.games(day, withScores)

		s.observe(sp, kind, http.StatusOK)
		s.log().Debug("provider request served",
			zap.String("sport", string(sp.Code)),
			zap.String("kind", kind),
			zap.String("date", day.Format(provider.DateLayout)),
			zap.Int("games", len(games)),
		)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(games)
	}
}

func (s *Simulator) observe(sp provider.Sport, kind string, status int) {
	if s.OnRequest != nil {
		s.OnRequest(string(sp.Code), kind, status)
	}
}
