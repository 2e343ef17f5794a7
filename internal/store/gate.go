package store

import (
	"context"
	"errors"
	"sync"
)

// ErrNotReady é devolvido quando o contexto termina antes do store ficar pronto.
var ErrNotReady = errors.New("store not ready")

// Gate bloqueia as operações até o store ser inicializado.
type Gate struct {
	once  sync.Once
	ready chan struct{}
	st    Store
}

func NewGate() *Gate { return &Gate{ready: make(chan struct{})} }

// Open libera o gate. Chamadas seguintes são ignoradas.
func (g *Gate) Open(s Store) {
	g.once.Do(func() {
		g.st = s
		close(g.ready)
	})
}

// Wait devolve o store assim que estiver pronto, ou ErrNotReady se ctx acabar antes.
func (g *Gate) Wait(ctx context.Context) (Store, error) {
	select {
	case <-g.ready:
		return g.st, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrNotReady, ctx.Err())
	}
}

// Ready indica, sem bloquear, se o gate já foi aberto.
func (g *Gate) Ready() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Ping usado pelo /healthz.
func (g *Gate) Ping(ctx context.Context) error {
	if !g.Ready() {
		return ErrNotReady
	}
	return g.st.Ping(ctx)
}
