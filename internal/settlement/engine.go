// Package settlement é o motor de liquidação: ingere odds, resolve resultados,
// liquida apostas e aposenta jogos antigos. Toda proteção contra processamento
// duplo vem das escritas condicionais do store (winner IS NULL, status = pending);
// o motor não usa locks e tolera passadas sobrepostas.
package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/provider"
	"github.com/radieske/sports-bet-settlement/internal/store"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

const (
	DefaultRetention = 7 * 24 * time.Hour
	DefaultStaleness = 48 * time.Hour
)

// Provider é o que o motor usa do fornecedor de odds/resultados.
type Provider interface {
	OddsByDate(ctx context.Context, sport provider.Sport, date time.Time) ([]provider.Game, error)
	ScoresByDate(ctx context.Context, sport provider.Sport, date time.Time) ([]provider.Game, error)
}

// Publisher recebe os eventos de liquidação. Falhas são só logadas.
type Publisher interface {
	GamesIngested(ctx context.Context, e events.GamesIngested) error
	GameResolved(ctx context.Context, e events.GameResolved) error
	BetSettled(ctx context.Context, e events.BetSettled) error
}

// Engine agrega as dependências de uma passada. Não guarda estado entre passadas.
// Callbacks de métricas são opcionais.
type Engine struct {
	Store    store.Store
	Provider Provider
	Sports   []provider.Sport
	Log      *zap.Logger
	Events   Publisher

	Now       func() time.Time
	Location  *time.Location // fuso do fornecedor, define o "hoje"
	Retention time.Duration  // jogos finalizados mais antigos que isso podem ser apagados
	Staleness time.Duration  // jogos sem resultado mais antigos que isso podem ser cancelados

	OnIngested func(sport string, n int)
	OnResolved func(winner string)
	OnSettled  func(status string)
	OnError    func(stage string)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) loc() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.UTC
}

func (e *Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e *Engine) events() Publisher {
	if e.Events != nil {
		return e.Events
	}
	return nopPublisher{}
}

func (e *Engine) retention() time.Duration {
	if e.Retention > 0 {
		return e.Retention
	}
	return DefaultRetention
}

func (e *Engine) staleness() time.Duration {
	if e.Staleness > 0 {
		return e.Staleness
	}
	return DefaultStaleness
}

func (e *Engine) fail(stage string) {
	if e.OnError != nil {
		e.OnError(stage)
	}
}

// today devolve a data corrente no fuso do fornecedor (meia-noite local).
func (e *Engine) today() time.Time {
	n := e.now().In(e.loc())
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, e.loc())
}

// candidateDates: hoje, ontem e anteontem, compensando atraso de fuso/publicação.
func (e *Engine) candidateDates() []time.Time {
	d := e.today()
	return []time.Time{d, d.AddDate(0, 0, -1), d.AddDate(0, 0, -2)}
}

// FullPass roda ingestão seguida de resolução (que termina com a aposentadoria).
func (e *Engine) FullPass(ctx context.Context) error {
	if _, err := e.IngestOdds(ctx); err != nil {
		return err
	}
	_, err := e.ResolvePending(ctx)
	return err
}

// ResolvePass roda só a resolução, para a cadência curta.
func (e *Engine) ResolvePass(ctx context.Context) error {
	_, err := e.ResolvePending(ctx)
	return err
}

type nopPublisher struct{}

func (nopPublisher) GamesIngested(context.Context, events.GamesIngested) error { return nil }
func (nopPublisher) GameResolved(context.Context, events.GameResolved) error   { return nil }
func (nopPublisher) BetSettled(context.Context, events.BetSettled) error       { return nil }
